// Package conversation keeps the message log between the user and their
// conversation partner, along with recently used phrases.
package conversation

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/normanking/voicelink/internal/cue"
	"github.com/normanking/voicelink/internal/voice"
)

// Common errors
var (
	ErrEmptyMessage  = errors.New("message text is empty")
	ErrUnknownSender = errors.New("unknown sender")
	ErrUnknownType   = errors.New("unknown message type")
)

// Sender is who produced a message.
type Sender string

const (
	SenderUser    Sender = "user"
	SenderPartner Sender = "partner"
)

// MessageType is how a message was produced.
type MessageType string

const (
	TypeText  MessageType = "text"
	TypeSign  MessageType = "sign"
	TypeVoice MessageType = "voice"
)

// Message is one entry in the conversation.
type Message struct {
	ID        string      `json:"id"`
	Text      string      `json:"text"`
	Sender    Sender      `json:"sender"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// Phrase is a tappable symbol on the phrase board. The female variants are
// used for the female persona when set.
type Phrase struct {
	ID            string      `json:"id"`
	Label         string      `json:"label"`
	Emoji         string      `json:"emoji"`
	English       string      `json:"phraseEn"`
	EnglishFemale string      `json:"phraseEnFemale,omitempty"`
	Hindi         string      `json:"phraseHi"`
	HindiFemale   string      `json:"phraseHiFemale,omitempty"`
	Sound         cue.Profile `json:"soundProfile,omitempty"`
}

// Text returns the phrase for a language and persona.
func (p Phrase) Text(lang voice.Language, persona voice.Persona) string {
	if lang == voice.Hindi {
		if persona == voice.Female && p.HindiFemale != "" {
			return p.HindiFemale
		}
		return p.Hindi
	}
	if persona == voice.Female && p.EnglishFemale != "" {
		return p.EnglishFemale
	}
	return p.English
}

// Config configures log and recents sizes.
type Config struct {
	// MaxMessages is the number of messages kept (default: 16)
	MaxMessages int
	// MaxRecents is the number of recent phrases kept (default: 12)
	MaxRecents int
}

// DefaultConfig returns the default sizes.
func DefaultConfig() Config {
	return Config{
		MaxMessages: 16,
		MaxRecents:  12,
	}
}

// Log is the bounded conversation history. Older messages are dropped
// first.
type Log struct {
	mu       sync.RWMutex
	messages []Message
	max      int
	now      func() time.Time
}

// NewLog creates an empty log holding at most max messages.
func NewLog(max int) *Log {
	if max <= 0 {
		max = DefaultConfig().MaxMessages
	}
	return &Log{
		messages: make([]Message, 0, max),
		max:      max,
		now:      time.Now,
	}
}

// Add appends a message and returns it.
func (l *Log) Add(text string, sender Sender, typ MessageType) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, ErrEmptyMessage
	}
	switch sender {
	case SenderUser, SenderPartner:
	default:
		return Message{}, ErrUnknownSender
	}
	if typ == "" {
		typ = TypeText
	}
	switch typ {
	case TypeText, TypeSign, TypeVoice:
	default:
		return Message{}, ErrUnknownType
	}

	m := Message{
		ID:        uuid.NewString(),
		Text:      text,
		Sender:    sender,
		Type:      typ,
		Timestamp: l.now(),
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, m)
	l.trimLocked()
	return m, nil
}

func (l *Log) trimLocked() {
	if len(l.messages) > l.max {
		l.messages = append([]Message(nil), l.messages[len(l.messages)-l.max:]...)
	}
}

// Messages returns a copy of the log, oldest first.
func (l *Log) Messages() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// LastFrom returns the newest message from sender.
func (l *Log) LastFrom(sender Sender) (Message, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for i := len(l.messages) - 1; i >= 0; i-- {
		if l.messages[i].Sender == sender {
			return l.messages[i], true
		}
	}
	return Message{}, false
}

// Restore replaces the log, keeping the newest messages that fit.
func (l *Log) Restore(msgs []Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages[:0:0], msgs...)
	l.trimLocked()
}

// Clear removes all messages.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = l.messages[:0]
}

// Len returns the number of messages.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// Recents is the most-recently-used phrase list, newest first and unique
// by phrase ID.
type Recents struct {
	mu      sync.RWMutex
	phrases []Phrase
	max     int
}

// NewRecents creates an empty list holding at most max phrases.
func NewRecents(max int) *Recents {
	if max <= 0 {
		max = DefaultConfig().MaxRecents
	}
	return &Recents{max: max}
}

// Use moves p to the front.
func (r *Recents) Use(p Phrase) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make([]Phrase, 0, r.max)
	next = append(next, p)
	for _, existing := range r.phrases {
		if existing.ID == p.ID {
			continue
		}
		if len(next) == r.max {
			break
		}
		next = append(next, existing)
	}
	r.phrases = next
}

// List returns the phrases, newest first.
func (r *Recents) List() []Phrase {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Phrase, len(r.phrases))
	copy(out, r.phrases)
	return out
}

// Restore replaces the list. Duplicates after the first are dropped.
func (r *Recents) Restore(phrases []Phrase) {
	r.mu.Lock()
	r.phrases = nil
	r.mu.Unlock()
	for i := len(phrases) - 1; i >= 0; i-- {
		r.Use(phrases[i])
	}
}
