// Package voice chooses the text-to-speech voice used for a language and persona.
//
// Selection is a pure function over the voices an engine reports: an explicit
// override wins when its language matches, otherwise candidates in the
// requested language are scored by name heuristics and the best one is kept.
package voice

import (
	"errors"
	"strings"
)

// Common errors
var (
	ErrUnknownLanguage = errors.New("unknown language")
	ErrUnknownPersona  = errors.New("unknown persona")
)

// Language is a supported speech language, stored as its BCP-47 tag.
type Language string

const (
	English Language = "en-US"
	Hindi   Language = "hi-IN"
)

// Tag returns the full language tag.
func (l Language) Tag() string {
	return string(l)
}

// Primary returns the lower-cased primary subtag ("en", "hi").
func (l Language) Primary() string {
	tag := strings.ToLower(string(l))
	if i := strings.IndexAny(tag, "-_"); i >= 0 {
		return tag[:i]
	}
	return tag
}

// ParseLanguage accepts a full tag or a bare primary subtag.
func ParseLanguage(s string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "en", "en-us", "english":
		return English, nil
	case "hi", "hi-in", "hindi":
		return Hindi, nil
	}
	return "", ErrUnknownLanguage
}

// Persona is the gender the user wants their voice to have.
type Persona string

const (
	Male   Persona = "male"
	Female Persona = "female"
)

// ParsePersona parses "male" or "female".
func ParsePersona(s string) (Persona, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "male":
		return Male, nil
	case "female":
		return Female, nil
	}
	return "", ErrUnknownPersona
}

// Descriptor describes a voice as reported by the speech engine.
type Descriptor struct {
	Name        string `json:"name" yaml:"name"`
	LanguageTag string `json:"lang" yaml:"lang"`
	URI         string `json:"voiceURI" yaml:"uri"`
}

// Request is what the caller wants spoken with.
type Request struct {
	Language    Language
	Persona     Persona
	OverrideURI string
}

// Ranked pairs a candidate voice with its score.
type Ranked struct {
	Descriptor
	Score int `json:"score"`
}

// MatchesLanguage reports whether the voice's tag starts with the language's
// primary subtag, ignoring case.
func (d Descriptor) MatchesLanguage(lang Language) bool {
	return strings.HasPrefix(strings.ToLower(d.LanguageTag), lang.Primary())
}
