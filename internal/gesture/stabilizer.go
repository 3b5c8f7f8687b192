package gesture

import (
	"sync"
	"time"

	"github.com/normanking/voicelink/internal/voice"
)

// Stabilizer defaults.
const (
	DefaultConfidenceThreshold = 0.55
	DefaultHoldDuration        = 400 * time.Millisecond
	DefaultCooldown            = 2000 * time.Millisecond
)

// NoGesture is the label classifiers use when no hand pose is recognized.
const NoGesture = "None"

// State is the stabilizer's position in the hold cycle.
type State string

const (
	StateIdle      State = "idle"
	StateHolding   State = "holding"
	StateConfirmed State = "confirmed"
)

// Config tunes the stabilizer.
type Config struct {
	// ConfidenceThreshold is the score a sample must exceed to count.
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
	// HoldDuration is how long a label must be held before it is confirmed.
	HoldDuration time.Duration `mapstructure:"hold_duration"`
	// Cooldown is the minimum gap between two utterances of the same label.
	Cooldown time.Duration `mapstructure:"cooldown"`
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: DefaultConfidenceThreshold,
		HoldDuration:        DefaultHoldDuration,
		Cooldown:            DefaultCooldown,
	}
}

// Sample is one frame's resolved gesture.
type Sample struct {
	Label       string  `json:"label"`
	Confidence  float64 `json:"confidence"`
	TimestampMs int64   `json:"timestampMs"`
}

// PhraseEvent is emitted when a held gesture should be spoken.
type PhraseEvent struct {
	Phrase
	TimestampMs int64 `json:"timestampMs"`
}

// Result describes the stabilizer after a step.
type Result struct {
	State   State        `json:"state"`
	Label   string       `json:"label"`
	Display string       `json:"display"`
	Event   *PhraseEvent `json:"event,omitempty"`
}

// Stabilizer debounces per-frame gesture samples. A label must be held for
// longer than HoldDuration to be confirmed, and each label is emitted at
// most once per Cooldown. One Stabilizer lives for one camera session.
type Stabilizer struct {
	mu sync.Mutex

	cfg   Config
	vocab *Vocabulary
	lang  voice.Language

	state     State
	label     string
	holdStart int64
	display   string

	lastSpoken map[string]int64
}

// NewStabilizer creates an idle stabilizer. Zero config fields fall back
// to the defaults.
func NewStabilizer(cfg Config, vocab *Vocabulary) *Stabilizer {
	def := DefaultConfig()
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = def.ConfidenceThreshold
	}
	if cfg.HoldDuration <= 0 {
		cfg.HoldDuration = def.HoldDuration
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	return &Stabilizer{
		cfg:        cfg,
		vocab:      vocab,
		lang:       voice.English,
		state:      StateIdle,
		lastSpoken: make(map[string]int64, vocab.Len()),
	}
}

// SetLanguage selects the language used for confirmed display text.
func (s *Stabilizer) SetLanguage(lang voice.Language) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lang = lang
}

// Step advances the machine by one sample. Labels outside the vocabulary
// are ignored and leave the state unchanged.
func (s *Stabilizer) Step(sample Sample) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sample.Confidence <= s.cfg.ConfidenceThreshold || sample.Label == "" || sample.Label == NoGesture {
		s.state = StateIdle
		s.label = ""
		s.holdStart = 0
		s.display = ""
		return s.resultLocked(nil)
	}

	phrase, ok := s.vocab.Lookup(sample.Label)
	if !ok {
		return s.resultLocked(nil)
	}

	now := sample.TimestampMs
	if sample.Label != s.label {
		s.state = StateHolding
		s.label = sample.Label
		s.holdStart = now
		s.display = phrase.Emoji + " ..."
		return s.resultLocked(nil)
	}

	if now-s.holdStart <= s.cfg.HoldDuration.Milliseconds() {
		s.state = StateHolding
		return s.resultLocked(nil)
	}

	s.state = StateConfirmed
	s.display = phrase.Emoji + " " + phrase.Text(s.lang)

	last, spoken := s.lastSpoken[sample.Label]
	if spoken && now-last <= s.cfg.Cooldown.Milliseconds() {
		return s.resultLocked(nil)
	}
	s.lastSpoken[sample.Label] = now
	return s.resultLocked(&PhraseEvent{Phrase: phrase, TimestampMs: now})
}

func (s *Stabilizer) resultLocked(ev *PhraseEvent) Result {
	return Result{State: s.state, Label: s.label, Display: s.display, Event: ev}
}

// State returns the current state.
func (s *Stabilizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Reset returns to Idle and forgets all cooldowns.
func (s *Stabilizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateIdle
	s.label = ""
	s.holdStart = 0
	s.display = ""
	s.lastSpoken = make(map[string]int64, s.vocab.Len())
}
