package bridge

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/normanking/voicelink/internal/conversation"
	"github.com/normanking/voicelink/internal/speech"
	"github.com/normanking/voicelink/internal/tts"
	"github.com/normanking/voicelink/internal/voice"
)

// SelectedVoice is the voice Speak would use right now.
type SelectedVoice struct {
	Found bool             `json:"found"`
	Voice voice.Descriptor `json:"voice"`
}

// SpeechBridge exposes speech output to the frontend
type SpeechBridge struct {
	binding
	coord    *speech.Coordinator
	voices   *tts.VoiceCache
	settings func() speech.Settings
	logger   zerolog.Logger

	unsubscribe func()
}

// NewSpeechBridge creates a new speech bridge. settings is read on every
// call so changes apply immediately.
func NewSpeechBridge(coord *speech.Coordinator, voices *tts.VoiceCache, settings func() speech.Settings, logger zerolog.Logger) *SpeechBridge {
	return &SpeechBridge{
		coord:    coord,
		voices:   voices,
		settings: settings,
		logger:   logger.With().Str("component", "speech-bridge").Logger(),
	}
}

// Bind sets the Wails runtime context and starts forwarding voice list
// changes.
func (b *SpeechBridge) Bind(ctx context.Context) {
	b.bind(ctx)
	if b.unsubscribe != nil {
		b.unsubscribe()
	}
	b.unsubscribe = b.voices.Subscribe(func(all []voice.Descriptor) {
		lang := b.settings().Language
		b.emit(EventVoicesChanged, voice.ForLanguage(all, lang))
	})
}

// Speak says text with the current settings, cutting off anything being
// said.
func (b *SpeechBridge) Speak(text string) {
	b.coord.Speak(text, b.settings())
}

// Stop cancels speech.
func (b *SpeechBridge) Stop() {
	b.coord.Stop()
}

// IsSpeaking reports whether an utterance is in flight.
func (b *SpeechBridge) IsSpeaking() bool {
	return b.coord.Speaking()
}

// TestVoice says the sample sentence for the current language.
func (b *SpeechBridge) TestVoice() {
	s := b.settings()
	b.coord.Speak(conversation.TestPhrase(s.Language), s)
}

// GetVoices returns the installed voices for the current language, for the
// manual voice picker.
func (b *SpeechBridge) GetVoices() []voice.Descriptor {
	all := b.voices.Voices(context.Background())
	return voice.ForLanguage(all, b.settings().Language)
}

// GetSelectedVoice reports which voice would be used.
func (b *SpeechBridge) GetSelectedVoice() SelectedVoice {
	d, ok := b.coord.SelectedVoice(b.settings())
	return SelectedVoice{Found: ok, Voice: d}
}

// RefreshVoices re-reads the engine's voice list.
func (b *SpeechBridge) RefreshVoices() error {
	if err := b.voices.Refresh(context.Background()); err != nil {
		b.logger.Warn().Err(err).Msg("Voice refresh failed")
		return err
	}
	return nil
}
