package bridge

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/normanking/voicelink/internal/conversation"
	"github.com/normanking/voicelink/internal/live"
	"github.com/normanking/voicelink/internal/speech"
)

// LiveRunner is the live voice assistant session.
type LiveRunner interface {
	Start(opts live.Options) error
	Stop()
	Status() live.Status
	OnStatus(fn func(live.Status))
	OnMessage(fn func(text string, sender conversation.Sender))
}

// LiveBridge exposes the live voice assistant to the frontend. Finished
// turns are recorded in the conversation.
type LiveBridge struct {
	binding
	session  LiveRunner
	profiles ProfileStore
	settings func() speech.Settings
	logger   zerolog.Logger
}

// NewLiveBridge creates a new live bridge. conv and profiles may be nil.
func NewLiveBridge(session LiveRunner, conv *ConversationBridge, profiles ProfileStore, settings func() speech.Settings, logger zerolog.Logger) *LiveBridge {
	b := &LiveBridge{
		session:  session,
		profiles: profiles,
		settings: settings,
		logger:   logger.With().Str("component", "live-bridge").Logger(),
	}
	session.OnStatus(func(st live.Status) {
		b.emit(EventLiveStatus, st)
	})
	if conv != nil {
		session.OnMessage(conv.AddLiveMessage)
	}
	return b
}

// Bind sets the Wails runtime context
func (b *LiveBridge) Bind(ctx context.Context) {
	b.bind(ctx)
}

// StartLive connects the assistant with the user's persona voice. It is
// also the retry after an error.
func (b *LiveBridge) StartLive() error {
	s := b.settings()
	opts := live.Options{
		Voice:             live.VoiceFor(string(s.Persona)),
		SystemInstruction: live.Instruction(b.userName()),
	}
	return b.session.Start(opts)
}

// StopLive disconnects the assistant.
func (b *LiveBridge) StopLive() {
	b.session.Stop()
}

// GetLiveStatus returns the assistant's state.
func (b *LiveBridge) GetLiveStatus() live.Status {
	return b.session.Status()
}

func (b *LiveBridge) userName() string {
	if b.profiles == nil {
		return ""
	}
	p, err := b.profiles.Profile(context.Background())
	if err != nil {
		b.logger.Debug().Err(err).Msg("No profile for live session")
		return ""
	}
	return p.Name
}
