// Package cue plays the short sounds that confirm recognized gestures and
// other UI feedback.
package cue

import (
	"fmt"
	"strings"
)

// Profile names a sound.
type Profile string

const (
	Happy    Profile = "happy"
	Sad      Profile = "sad"
	Neutral  Profile = "neutral"
	Alert    Profile = "alert"
	Question Profile = "question"
	Social   Profile = "social"
)

// Profiles lists every known profile.
var Profiles = []Profile{Happy, Sad, Neutral, Alert, Question, Social}

// ParseProfile parses a profile name. Unknown names are an error.
func ParseProfile(s string) (Profile, error) {
	p := Profile(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Profiles {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown sound profile %q", s)
}

// Waveform is an oscillator shape.
type Waveform int

const (
	Sine Waveform = iota
	Triangle
	Square
)

// Tone is a fixed-pitch note. The envelope rises linearly to Volume over
// 10ms and decays exponentially to silence at Duration. The oscillator
// keeps running 100ms past Duration.
type Tone struct {
	Freq     float64
	Start    float64 // seconds
	Duration float64
	Volume   float64
	Wave     Waveform
}

// Slide is a pitch sweep from From to To over Duration.
type Slide struct {
	From     float64
	To       float64
	Start    float64
	Duration float64
	Wave     Waveform
}

// Sound is the notes that make up a profile.
type Sound struct {
	Tones  []Tone
	Slides []Slide
}

// sounds maps each profile to its notes.
var sounds = map[Profile]Sound{
	// C5 E5 G5 B5 arpeggio
	Happy: {Tones: []Tone{
		{Freq: 523.25, Start: 0, Duration: 0.1, Volume: 0.2},
		{Freq: 659.25, Start: 0.06, Duration: 0.1, Volume: 0.2},
		{Freq: 783.99, Start: 0.12, Duration: 0.1, Volume: 0.2},
		{Freq: 987.77, Start: 0.18, Duration: 0.3, Volume: 0.15},
	}},
	// A3 to F3, second voice slightly detuned
	Sad: {Tones: []Tone{
		{Freq: 220.00, Start: 0, Duration: 0.5, Volume: 0.2, Wave: Triangle},
		{Freq: 218.00, Start: 0, Duration: 0.5, Volume: 0.1, Wave: Triangle},
		{Freq: 174.61, Start: 0.3, Duration: 0.7, Volume: 0.2, Wave: Triangle},
	}},
	Alert: {Tones: []Tone{
		{Freq: 880, Start: 0, Duration: 0.08, Volume: 0.15, Wave: Square},
		{Freq: 880, Start: 0.12, Duration: 0.08, Volume: 0.15, Wave: Square},
	}},
	Question: {Slides: []Slide{
		{From: 300, To: 1000, Start: 0, Duration: 0.25},
	}},
	// G4 to E5
	Social: {Tones: []Tone{
		{Freq: 392.00, Start: 0, Duration: 0.15, Volume: 0.2},
		{Freq: 659.25, Start: 0.12, Duration: 0.25, Volume: 0.2},
	}},
	Neutral: {Tones: []Tone{
		{Freq: 1000, Start: 0, Duration: 0.04, Volume: 0.1},
	}},
}

// SoundFor returns the notes of p. Unknown profiles sound like Neutral.
func SoundFor(p Profile) Sound {
	if s, ok := sounds[p]; ok {
		return s
	}
	return sounds[Neutral]
}
