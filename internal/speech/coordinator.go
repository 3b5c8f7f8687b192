// Package speech speaks phrases aloud with the voice that best fits the
// user's language and persona.
package speech

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/normanking/voicelink/internal/bus"
	"github.com/normanking/voicelink/internal/config"
	"github.com/normanking/voicelink/internal/tts"
	"github.com/normanking/voicelink/internal/voice"
)

// Settings controls how a phrase is spoken.
type Settings struct {
	Language voice.Language
	Persona  voice.Persona
	Rate     float64
	Pitch    float64
	Volume   float64
	VoiceURI string
}

// FromConfig converts stored user settings. Unknown values fall back to
// English and the female persona.
func FromConfig(s config.Settings) Settings {
	lang, err := voice.ParseLanguage(s.Language)
	if err != nil {
		lang = voice.English
	}
	persona, err := voice.ParsePersona(s.Gender)
	if err != nil {
		persona = voice.Female
	}
	return Settings{
		Language: lang,
		Persona:  persona,
		Rate:     s.Rate,
		Pitch:    s.Pitch,
		Volume:   s.Volume,
		VoiceURI: s.SelectedVoiceURI,
	}
}

// utterance is the single in-flight speech request.
type utterance struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Coordinator owns the speech channel. A new Speak always preempts the
// previous one, so at most one utterance is audible.
type Coordinator struct {
	engine   tts.Engine
	voices   *tts.VoiceCache
	eventBus *bus.EventBus
	logger   zerolog.Logger

	mu     sync.Mutex
	active *utterance
}

// NewCoordinator creates a coordinator speaking through engine.
func NewCoordinator(engine tts.Engine, voices *tts.VoiceCache, eventBus *bus.EventBus, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		engine:   engine,
		voices:   voices,
		eventBus: eventBus,
		logger:   logger.With().Str("component", "speech").Logger(),
	}
}

// Speak cancels anything being said and starts saying text. It returns
// once the new utterance has started.
func (c *Coordinator) Speak(text string, s Settings) {
	c.SpeakNotify(text, s, nil)
}

// SpeakNotify is Speak with a callback run when the utterance ends. The
// callback receives context.Canceled if the utterance was preempted.
func (c *Coordinator) SpeakNotify(text string, s Settings, onDone func(error)) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()

	u := c.buildUtterance(text, s)
	ctx, cancel := context.WithCancel(context.Background())
	active := &utterance{cancel: cancel, done: make(chan struct{})}
	c.active = active

	go c.run(ctx, active, u, onDone)
}

// buildUtterance resolves the voice and language for text.
func (c *Coordinator) buildUtterance(text string, s Settings) tts.Utterance {
	req := voice.Request{Language: s.Language, Persona: s.Persona, OverrideURI: s.VoiceURI}
	available := c.voices.Voices(context.Background())

	u := tts.Utterance{
		Text:     text,
		Language: s.Language.Tag(),
		Rate:     s.Rate,
		Pitch:    s.Pitch,
		Volume:   s.Volume,
	}
	if d, ok := voice.Select(available, req); ok {
		u.Voice = &d
		u.Language = d.LanguageTag
	}
	return u
}

func (c *Coordinator) run(ctx context.Context, active *utterance, u tts.Utterance, onDone func(error)) {
	voiceName := ""
	if u.Voice != nil {
		voiceName = u.Voice.Name
	}
	c.logger.Debug().
		Str("voice", voiceName).
		Str("lang", u.Language).
		Int("textLen", len(u.Text)).
		Msg("Speaking")
	c.eventBus.Publish(bus.Event{
		Type: bus.EventTypeSpeechStarted,
		Data: map[string]any{"text": u.Text, "voice": voiceName, "lang": u.Language},
	})

	err := c.engine.Speak(ctx, u)
	close(active.done)

	c.mu.Lock()
	if c.active == active {
		c.active = nil
	}
	c.mu.Unlock()
	active.cancel()

	switch {
	case errors.Is(err, context.Canceled):
		c.eventBus.Publish(bus.Event{Type: bus.EventTypeSpeechCancelled, Data: map[string]any{"text": u.Text}})
	case err != nil:
		c.logger.Warn().Err(err).Msg("Speech failed")
		c.eventBus.Publish(bus.Event{Type: bus.EventTypeSpeechFailed, Data: map[string]any{"error": err.Error()}})
	default:
		c.eventBus.Publish(bus.Event{Type: bus.EventTypeSpeechCompleted, Data: map[string]any{"text": u.Text}})
	}

	if onDone != nil {
		onDone(err)
	}
}

// Stop cancels the current utterance, if any, and waits for it to end.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Coordinator) stopLocked() {
	if c.active == nil {
		return
	}
	prev := c.active
	c.active = nil
	prev.cancel()
	c.engine.Cancel()
	<-prev.done
}

// Speaking reports whether an utterance is in flight.
func (c *Coordinator) Speaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}

// SelectedVoice reports which voice Speak would use for s.
func (c *Coordinator) SelectedVoice(s Settings) (voice.Descriptor, bool) {
	available := c.voices.Voices(context.Background())
	return voice.Select(available, voice.Request{Language: s.Language, Persona: s.Persona, OverrideURI: s.VoiceURI})
}
