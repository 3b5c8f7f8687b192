package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/voicelink/internal/bus"
	"github.com/normanking/voicelink/internal/config"
	"github.com/normanking/voicelink/internal/conversation"
	"github.com/normanking/voicelink/internal/cue"
	"github.com/normanking/voicelink/internal/gesture"
	"github.com/normanking/voicelink/internal/signgen"
	"github.com/normanking/voicelink/internal/speech"
	"github.com/normanking/voicelink/internal/store"
	"github.com/normanking/voicelink/internal/stt"
	"github.com/normanking/voicelink/internal/vision"
	"github.com/normanking/voicelink/internal/voice"
)

type spoken struct {
	text string
	lang voice.Language
}

type recordingSpeaker struct {
	mu   sync.Mutex
	said []spoken
}

func (r *recordingSpeaker) Speak(text string, s speech.Settings) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.said = append(r.said, spoken{text: text, lang: s.Language})
}

func (r *recordingSpeaker) all() []spoken {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]spoken(nil), r.said...)
}

type recordingCues struct {
	mu     sync.Mutex
	played []cue.Profile
}

func (r *recordingCues) Play(p cue.Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.played = append(r.played, p)
}

func (r *recordingCues) all() []cue.Profile {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]cue.Profile(nil), r.played...)
}

type fixedSettings struct {
	mu sync.Mutex
	s  speech.Settings
}

func (f *fixedSettings) get() speech.Settings {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.s
}

var water = conversation.Phrase{
	ID:          "water",
	Emoji:       "💧",
	English:     "I want water",
	Hindi:       "मुझे पानी चाहिए",
	HindiFemale: "मुझे पानी चाहिए, कृपया",
	Sound:       cue.Question,
}

var thanks = conversation.Phrase{ID: "thanks", English: "Thank you", Hindi: "धन्यवाद"}

func memStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(store.Options{InMemory: true}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestWebRecognizer_Unbound(t *testing.T) {
	r := NewWebRecognizer()
	assert.ErrorIs(t, r.Start("en-US"), stt.ErrRecognizerUnavailable)
	assert.False(t, r.Running())
	r.Stop()
	r.ended()
	assert.False(t, r.Running())
}

func TestEventForwarder_UnboundDropsEvents(t *testing.T) {
	eventBus := bus.NewEventBus()
	f := NewEventForwarder(eventBus, []bus.EventType{bus.EventTypeSpeechStarted})

	assert.False(t, f.bound())
	assert.NotPanics(t, func() {
		eventBus.PublishSync(bus.Event{Type: bus.EventTypeSpeechStarted, Data: map[string]any{"text": "hello"}})
	})
}

func TestStartResult(t *testing.T) {
	tests := []struct {
		err  error
		ok   bool
		kind string
	}{
		{nil, true, ""},
		{fmt.Errorf("open camera: %w", vision.ErrPermissionDenied), false, "permission"},
		{fmt.Errorf("open camera: %w", vision.ErrCameraNotAvailable), false, "unavailable"},
		{fmt.Errorf("%w: gpu down", vision.ErrModelUnavailable), false, "model"},
		{vision.ErrSessionActive, false, "active"},
		{errors.New("other"), false, "unknown"},
	}
	for _, tt := range tests {
		r := startResult(tt.err)
		assert.Equal(t, tt.ok, r.OK)
		assert.Equal(t, tt.kind, r.Kind)
		if tt.err != nil {
			assert.Equal(t, tt.err.Error(), r.Error)
		}
	}
}

func TestConversationBridge_SpeakPhrase(t *testing.T) {
	speaker := &recordingSpeaker{}
	cues := &recordingCues{}
	settings := &fixedSettings{s: speech.Settings{Language: voice.Hindi, Persona: voice.Female}}
	st := memStore(t)

	b := NewConversationBridge(ConversationDeps{
		Speaker:  speaker,
		Cues:     cues,
		Store:    st,
		Settings: settings.get,
	}, zerolog.Nop())

	b.SpeakPhrase(water)
	b.SpeakPhrase(thanks)
	b.SpeakPhrase(water)

	said := speaker.all()
	require.Len(t, said, 3)
	assert.Equal(t, "मुझे पानी चाहिए, कृपया", said[0].text)
	assert.Equal(t, voice.Hindi, said[0].lang)
	assert.Equal(t, []cue.Profile{cue.Question, cue.Neutral, cue.Question}, cues.all())

	recents := b.GetRecents()
	require.Len(t, recents, 2)
	assert.Equal(t, "water", recents[0].ID)
	assert.Equal(t, "thanks", recents[1].ID)

	msgs := b.GetMessages()
	require.Len(t, msgs, 3)
	assert.Equal(t, conversation.SenderUser, msgs[0].Sender)
	assert.Equal(t, conversation.TypeVoice, msgs[0].Type)

	// A fresh bridge over the same store sees the saved state.
	again := NewConversationBridge(ConversationDeps{Speaker: speaker, Store: st, Settings: settings.get}, zerolog.Nop())
	require.NoError(t, again.Restore(context.Background()))
	assert.Len(t, again.GetMessages(), 3)
	assert.Equal(t, recents, again.GetRecents())

	require.NoError(t, again.ClearConversation())
	assert.Empty(t, again.GetMessages())
	assert.Empty(t, again.GetRecents())

	history, err := st.History(context.Background())
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestConversationBridge_Sentence(t *testing.T) {
	speaker := &recordingSpeaker{}
	cues := &recordingCues{}
	settings := &fixedSettings{s: speech.Settings{Language: voice.English, Persona: voice.Male}}
	b := NewConversationBridge(ConversationDeps{Speaker: speaker, Cues: cues, Settings: settings.get}, zerolog.Nop())

	b.SpeakSentence()
	assert.Empty(t, speaker.all())

	b.AddToSentence(water)
	b.AddToSentence(thanks)
	items := b.AddToSentence(water)
	require.Len(t, items, 3)

	items = b.RemoveFromSentence(2)
	require.Len(t, items, 2)

	b.SpeakSentence()
	said := speaker.all()
	require.Len(t, said, 1)
	assert.Equal(t, "I want water. Thank you", said[0].text)
	assert.Len(t, b.GetSentence(), 2)

	b.ClearSentence()
	assert.Empty(t, b.GetSentence())
	assert.Equal(t, []cue.Profile{cue.Neutral, cue.Social, cue.Sad}, cues.all())

	msgs := b.GetMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, conversation.TypeText, msgs[0].Type)
}

func TestConversationBridge_QuickReplies(t *testing.T) {
	settings := &fixedSettings{s: speech.Settings{Language: voice.Hindi}}
	b := NewConversationBridge(ConversationDeps{Speaker: &recordingSpeaker{}, Settings: settings.get}, zerolog.Nop())
	assert.Contains(t, b.GetQuickReplies(), "ठीक है")
}

func TestConversationBridge_PartnerSpeech(t *testing.T) {
	settings := &fixedSettings{s: speech.Settings{Language: voice.English}}
	rec := NewWebRecognizer()
	listener := stt.NewListener(rec, stt.Config{}, nil, zerolog.Nop())
	cues := &recordingCues{}

	b := NewConversationBridge(ConversationDeps{
		Speaker:    &recordingSpeaker{},
		Cues:       cues,
		Listener:   listener,
		Recognizer: rec,
		Settings:   settings.get,
	}, zerolog.Nop())

	b.StartListening()
	assert.True(t, b.IsListening())
	assert.Equal(t, []cue.Profile{cue.Alert}, cues.all())

	b.ReportResults([]stt.Result{
		{IsFinal: true, Alternatives: []stt.Alternative{{Transcript: " Where Is The Bus ", Confidence: 0.9}}},
		{IsFinal: false, Alternatives: []stt.Alternative{{Transcript: "and"}}},
	}, 0)

	msgs := b.GetMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "where is the bus", msgs[0].Text)
	assert.Equal(t, conversation.SenderPartner, msgs[0].Sender)

	b.ReportError(stt.CodeNotAllowed)
	b.ReportEnd()
	b.StopListening()
	assert.False(t, b.IsListening())
}

type echoGenerator struct{}

func (echoGenerator) Generate(_ context.Context, text string) (signgen.Image, error) {
	return signgen.Image{Text: text, MIMEType: "image/png", Data: []byte{1}}, nil
}

func TestConversationBridge_PartnerMessageRequestsSign(t *testing.T) {
	settings := &fixedSettings{s: speech.Settings{Language: voice.English}}
	signs := signgen.NewService(echoGenerator{}, 10*time.Millisecond, 4, nil, zerolog.Nop())
	defer signs.Close()

	b := NewConversationBridge(ConversationDeps{Speaker: &recordingSpeaker{}, Signs: signs, Settings: settings.get}, zerolog.Nop())

	results := make(chan signgen.Result, 1)
	signs.OnResult(func(r signgen.Result) {
		b.signResult(r)
		results <- r
	})

	b.AddPartnerMessage("Good morning")
	select {
	case r := <-results:
		require.NoError(t, r.Err)
		assert.Equal(t, "Good morning", r.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("no sign result")
	}

	b.AddPartnerMessage("   ")
	assert.Len(t, b.GetMessages(), 1)
}

func TestConversationBridge_RecordsRecognizedGestures(t *testing.T) {
	eventBus := bus.NewEventBus()
	settings := &fixedSettings{s: speech.Settings{Language: voice.Hindi}}
	b := NewConversationBridge(ConversationDeps{Speaker: &recordingSpeaker{}, Settings: settings.get, EventBus: eventBus}, zerolog.Nop())

	eventBus.Publish(bus.Event{
		Type: bus.EventTypeGestureRecognized,
		Data: map[string]any{"label": "Thumb_Up", "en": "Yes", "hi": "हाँ"},
	})

	require.Eventually(t, func() bool { return len(b.GetMessages()) == 1 }, time.Second, 5*time.Millisecond)
	msg := b.GetMessages()[0]
	assert.Equal(t, "हाँ", msg.Text)
	assert.Equal(t, conversation.TypeSign, msg.Type)
}

type fakeTuner struct {
	mu   sync.Mutex
	lang voice.Language
	cfg  gesture.Config
}

func (f *fakeTuner) SetLanguage(lang voice.Language) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lang = lang
}

func (f *fakeTuner) SetStabilizerConfig(cfg gesture.Config) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfg = cfg
}

type fakeListenLang struct{ lang string }

func (f *fakeListenLang) SetLanguage(lang string) { f.lang = lang }

type fakeCueConfig struct{ cfg config.CueConfig }

func (f *fakeCueConfig) SetConfig(cfg config.CueConfig) { f.cfg = cfg }

type fakeSignToggle struct{ enabled bool }

func (f *fakeSignToggle) SetEnabled(enabled bool) { f.enabled = enabled }

func newSettingsBridge(t *testing.T) (*SettingsBridge, string, SettingsTargets) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.SignGen.APIKey = "secret"
	targets := SettingsTargets{
		Gesture:  &fakeTuner{},
		Listener: &fakeListenLang{},
		Cues:     &fakeCueConfig{},
		Signs:    &fakeSignToggle{},
		Profiles: memStore(t),
	}
	return NewSettingsBridge(cfg, dir, targets, nil, zerolog.Nop()), dir, targets
}

func TestSettingsBridge_AppliesOnCreate(t *testing.T) {
	_, _, targets := newSettingsBridge(t)

	assert.Equal(t, voice.English, targets.Gesture.(*fakeTuner).lang)
	assert.Equal(t, 400*time.Millisecond, targets.Gesture.(*fakeTuner).cfg.HoldDuration)
	assert.Equal(t, "en-US", targets.Listener.(*fakeListenLang).lang)
	assert.True(t, targets.Cues.(*fakeCueConfig).cfg.Enabled)
	assert.True(t, targets.Signs.(*fakeSignToggle).enabled)
}

func TestSettingsBridge_SaveSettings(t *testing.T) {
	b, dir, targets := newSettingsBridge(t)

	s := b.GetSettings()
	s.Language = "hi-IN"
	s.Gender = "robot"
	s.Rate = 1.5
	s.SignGenerationEnabled = false
	require.NoError(t, b.SaveSettings(s))

	got := b.GetSettings()
	assert.Equal(t, "hi-IN", got.Language)
	assert.Equal(t, "female", got.Gender)
	assert.Equal(t, voice.Hindi, b.Speech().Language)
	assert.Equal(t, 1.5, b.Speech().Rate)

	assert.Equal(t, voice.Hindi, targets.Gesture.(*fakeTuner).lang)
	assert.Equal(t, "hi-IN", targets.Listener.(*fakeListenLang).lang)
	assert.False(t, targets.Signs.(*fakeSignToggle).enabled)

	loaded, err := config.LoadFrom(dir)
	require.NoError(t, err)
	assert.Equal(t, "hi-IN", loaded.Settings.Language)
	assert.False(t, loaded.Settings.SignGenerationEnabled)
}

func TestSettingsBridge_SoundCues(t *testing.T) {
	b, _, targets := newSettingsBridge(t)
	require.NoError(t, b.SetSoundCues(false))
	assert.False(t, b.SoundCuesEnabled())
	assert.False(t, targets.Cues.(*fakeCueConfig).cfg.Enabled)
}

func TestSettingsBridge_ReloadKeepsAPIKey(t *testing.T) {
	b, _, targets := newSettingsBridge(t)

	next := config.DefaultConfig()
	next.Settings.Language = "hi-IN"
	next.Gesture.HoldDuration = 600 * time.Millisecond
	b.Reload(next)

	assert.Equal(t, "hi-IN", b.GetSettings().Language)
	assert.Equal(t, 600*time.Millisecond, targets.Gesture.(*fakeTuner).cfg.HoldDuration)

	b.mu.RLock()
	defer b.mu.RUnlock()
	assert.Equal(t, "secret", b.cfg.SignGen.APIKey)
}

func TestSettingsBridge_Onboarding(t *testing.T) {
	b, _, _ := newSettingsBridge(t)
	assert.True(t, b.NeedsOnboarding())

	require.NoError(t, b.CompleteOnboarding(OnboardingData{Name: "  Meera ", Gender: "female", Language: "hi-IN"}))
	assert.False(t, b.NeedsOnboarding())

	p, err := b.GetProfile()
	require.NoError(t, err)
	assert.Equal(t, "Meera", p.Name)
	assert.Equal(t, "hi-IN", p.Language)
	assert.Equal(t, "hi-IN", b.GetSettings().Language)
}
