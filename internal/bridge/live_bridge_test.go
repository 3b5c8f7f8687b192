package bridge

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/voicelink/internal/conversation"
	"github.com/normanking/voicelink/internal/live"
	"github.com/normanking/voicelink/internal/speech"
	"github.com/normanking/voicelink/internal/store"
	"github.com/normanking/voicelink/internal/voice"
)

type fakeLive struct {
	mu        sync.Mutex
	started   []live.Options
	stopped   int
	status    live.Status
	onStatus  func(live.Status)
	onMessage func(string, conversation.Sender)
}

func (f *fakeLive) Start(opts live.Options) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status.State == live.StateActive {
		return live.ErrSessionActive
	}
	f.started = append(f.started, opts)
	f.status = live.Status{State: live.StateActive}
	return nil
}

func (f *fakeLive) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
	f.status = live.Status{State: live.StateIdle}
}

func (f *fakeLive) Status() live.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeLive) OnStatus(fn func(live.Status))                  { f.onStatus = fn }
func (f *fakeLive) OnMessage(fn func(string, conversation.Sender)) { f.onMessage = fn }

type staticProfiles struct {
	profile store.Profile
}

func (s *staticProfiles) Profile(context.Context) (store.Profile, error) { return s.profile, nil }
func (s *staticProfiles) SaveProfile(_ context.Context, p store.Profile) error {
	s.profile = p
	return nil
}

func TestLiveBridge_StartUsesPersonaAndName(t *testing.T) {
	session := &fakeLive{}
	settings := func() speech.Settings { return speech.Settings{Language: voice.English, Persona: voice.Male} }
	b := NewLiveBridge(session, nil, &staticProfiles{profile: store.Profile{Name: "Ravi"}}, settings, zerolog.Nop())

	require.NoError(t, b.StartLive())
	require.Len(t, session.started, 1)
	assert.Equal(t, "Puck", session.started[0].Voice)
	assert.Contains(t, session.started[0].SystemInstruction, "Ravi")
	assert.Equal(t, live.StateActive, b.GetLiveStatus().State)

	assert.ErrorIs(t, b.StartLive(), live.ErrSessionActive)

	b.StopLive()
	assert.Equal(t, 1, session.stopped)
	assert.Equal(t, live.StateIdle, b.GetLiveStatus().State)
}

func TestLiveBridge_UnboundStatusIsDropped(t *testing.T) {
	session := &fakeLive{}
	settings := func() speech.Settings { return speech.Settings{Persona: voice.Female} }
	NewLiveBridge(session, nil, nil, settings, zerolog.Nop())

	require.NotNil(t, session.onStatus)
	assert.NotPanics(t, func() { session.onStatus(live.Status{State: live.StateError, Error: live.MsgConnectionLost}) })
	assert.Nil(t, session.onMessage)
}

func TestLiveBridge_TurnsAreRecorded(t *testing.T) {
	settings := &fixedSettings{s: speech.Settings{Language: voice.English, Persona: voice.Female}}
	conv := NewConversationBridge(ConversationDeps{Speaker: &recordingSpeaker{}, Settings: settings.get}, zerolog.Nop())
	session := &fakeLive{}
	b := NewLiveBridge(session, conv, nil, settings.get, zerolog.Nop())

	require.NoError(t, b.StartLive())
	assert.Equal(t, "Kore", session.started[0].Voice)
	assert.Contains(t, session.started[0].SystemInstruction, "the user")

	require.NotNil(t, session.onMessage)
	session.onMessage("Is the shop open?", conversation.SenderPartner)
	session.onMessage("Yes, until six.", conversation.SenderUser)

	msgs := conv.GetMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, conversation.SenderPartner, msgs[0].Sender)
	assert.Equal(t, conversation.SenderUser, msgs[1].Sender)
	assert.Equal(t, conversation.TypeVoice, msgs[1].Type)
	assert.Equal(t, "Yes, until six.", msgs[1].Text)
}
