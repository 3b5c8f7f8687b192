package gesture

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/normanking/voicelink/internal/voice"
)

//go:embed vocabulary.yaml
var defaultVocabularyYAML []byte

// ErrEmptyVocabulary is returned when a vocabulary file defines no phrases.
var ErrEmptyVocabulary = errors.New("vocabulary has no phrases")

// Phrase is what a recognized gesture means.
type Phrase struct {
	Label   string `yaml:"label" json:"label"`
	Emoji   string `yaml:"emoji" json:"emoji"`
	English string `yaml:"en" json:"en"`
	Hindi   string `yaml:"hi" json:"hi"`
}

// Text returns the phrase in the given language.
func (p Phrase) Text(lang voice.Language) string {
	if lang == voice.Hindi {
		return p.Hindi
	}
	return p.English
}

// Vocabulary maps classifier labels to phrases.
type Vocabulary struct {
	phrases map[string]Phrase
	order   []string
}

type vocabularyFile struct {
	Phrases []Phrase `yaml:"phrases"`
}

// DefaultVocabulary returns the built-in ten-gesture vocabulary.
func DefaultVocabulary() *Vocabulary {
	v, err := ParseVocabulary(defaultVocabularyYAML)
	if err != nil {
		panic(fmt.Sprintf("gesture: built-in vocabulary: %v", err))
	}
	return v
}

// ParseVocabulary decodes a YAML vocabulary document.
func ParseVocabulary(data []byte) (*Vocabulary, error) {
	var file vocabularyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse vocabulary: %w", err)
	}
	if len(file.Phrases) == 0 {
		return nil, ErrEmptyVocabulary
	}

	v := &Vocabulary{phrases: make(map[string]Phrase, len(file.Phrases))}
	for _, p := range file.Phrases {
		if p.Label == "" {
			return nil, fmt.Errorf("parse vocabulary: phrase %q has no label", p.English)
		}
		v.set(p)
	}
	return v, nil
}

// LoadVocabulary reads a vocabulary file and layers it over the built-in
// one. Entries with a known label replace it; new labels are appended.
func LoadVocabulary(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	overrides, err := ParseVocabulary(data)
	if err != nil {
		return nil, err
	}

	v := DefaultVocabulary()
	for _, label := range overrides.order {
		v.set(overrides.phrases[label])
	}
	return v, nil
}

func (v *Vocabulary) set(p Phrase) {
	if _, ok := v.phrases[p.Label]; !ok {
		v.order = append(v.order, p.Label)
	}
	v.phrases[p.Label] = p
}

// Lookup returns the phrase for a label.
func (v *Vocabulary) Lookup(label string) (Phrase, bool) {
	p, ok := v.phrases[label]
	return p, ok
}

// Phrases returns all phrases in file order.
func (v *Vocabulary) Phrases() []Phrase {
	out := make([]Phrase, 0, len(v.order))
	for _, label := range v.order {
		out = append(out, v.phrases[label])
	}
	return out
}

// Len returns the number of labels.
func (v *Vocabulary) Len() int {
	return len(v.order)
}
