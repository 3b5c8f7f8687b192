package conversation

import (
	"strings"
	"sync"

	"github.com/normanking/voicelink/internal/voice"
)

var quickReplies = map[voice.Language][]string{
	voice.English: {"Okay", "I understand", "Wait", "What?"},
	voice.Hindi:   {"ठीक है", "समझ गया", "एक मिनट", "क्या मतलब?"},
}

// QuickReplies returns the one-tap partner replies for lang.
func QuickReplies(lang voice.Language) []string {
	replies := quickReplies[lang]
	if replies == nil {
		replies = quickReplies[voice.English]
	}
	return append([]string(nil), replies...)
}

// TestPhrase is spoken when previewing a voice.
func TestPhrase(lang voice.Language) string {
	if lang == voice.Hindi {
		return "नमस्ते, यह मेरी आवाज़ है"
	}
	return "Hello, this is my voice"
}

// Sentence is a queue of phrases spoken together.
type Sentence struct {
	mu    sync.Mutex
	queue []Phrase
}

// Add appends p.
func (s *Sentence) Add(p Phrase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, p)
}

// Remove deletes the phrase at index i. Out-of-range indexes are ignored.
func (s *Sentence) Remove(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.queue) {
		return
	}
	s.queue = append(s.queue[:i], s.queue[i+1:]...)
}

// Clear empties the queue.
func (s *Sentence) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = nil
}

// Items returns the queued phrases in order.
func (s *Sentence) Items() []Phrase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Phrase(nil), s.queue...)
}

// Text joins the queued phrases with ". ". It is empty when nothing is
// queued.
func (s *Sentence) Text(lang voice.Language, persona voice.Persona) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	parts := make([]string, len(s.queue))
	for i, p := range s.queue {
		parts[i] = p.Text(lang, persona)
	}
	return strings.Join(parts, ". ")
}
