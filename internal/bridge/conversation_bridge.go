package bridge

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/normanking/voicelink/internal/bus"
	"github.com/normanking/voicelink/internal/conversation"
	"github.com/normanking/voicelink/internal/cue"
	"github.com/normanking/voicelink/internal/signgen"
	"github.com/normanking/voicelink/internal/speech"
	"github.com/normanking/voicelink/internal/stt"
	"github.com/normanking/voicelink/internal/voice"
)

// HistoryStore persists the conversation between runs.
type HistoryStore interface {
	Recents(ctx context.Context) ([]conversation.Phrase, error)
	SaveRecents(ctx context.Context, phrases []conversation.Phrase) error
	History(ctx context.Context) ([]conversation.Message, error)
	SaveHistory(ctx context.Context, msgs []conversation.Message) error
	ClearConversation(ctx context.Context) error
}

// Speaker says text with the given settings.
type Speaker interface {
	Speak(text string, s speech.Settings)
}

// SignResult is a finished sign illustration for the frontend.
type SignResult struct {
	Text    string `json:"text"`
	DataURL string `json:"dataUrl,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ConversationDeps are the components behind the conversation screen.
// Cues, Signs, Listener and Store may be nil.
type ConversationDeps struct {
	Speaker    Speaker
	Cues       speech.Cues
	Listener   *stt.Listener
	Recognizer *WebRecognizer
	Signs      *signgen.Service
	Store      HistoryStore
	Settings   func() speech.Settings
	EventBus   *bus.EventBus
	Config     conversation.Config
}

// ConversationBridge exposes the conversation log, phrase board, sentence
// builder and partner input to the frontend
type ConversationBridge struct {
	binding
	deps     ConversationDeps
	log      *conversation.Log
	recents  *conversation.Recents
	sentence *conversation.Sentence
	logger   zerolog.Logger
}

// NewConversationBridge creates a new conversation bridge
func NewConversationBridge(deps ConversationDeps, logger zerolog.Logger) *ConversationBridge {
	def := conversation.DefaultConfig()
	if deps.Config.MaxMessages <= 0 {
		deps.Config.MaxMessages = def.MaxMessages
	}
	if deps.Config.MaxRecents <= 0 {
		deps.Config.MaxRecents = def.MaxRecents
	}
	b := &ConversationBridge{
		deps:     deps,
		log:      conversation.NewLog(deps.Config.MaxMessages),
		recents:  conversation.NewRecents(deps.Config.MaxRecents),
		sentence: &conversation.Sentence{},
		logger:   logger.With().Str("component", "conversation").Logger(),
	}

	if deps.Listener != nil {
		deps.Listener.OnTranscript(func(text string) {
			b.AddPartnerMessage(text)
		})
	}
	if deps.Signs != nil {
		deps.Signs.OnResult(b.signResult)
	}
	if deps.EventBus != nil {
		deps.EventBus.Subscribe(bus.EventTypeGestureRecognized, b.gestureRecognized)
	}
	return b
}

// Bind sets the Wails runtime context
func (b *ConversationBridge) Bind(ctx context.Context) {
	b.bind(ctx)
}

// Restore loads the saved conversation and recents.
func (b *ConversationBridge) Restore(ctx context.Context) error {
	if b.deps.Store == nil {
		return nil
	}
	msgs, err := b.deps.Store.History(ctx)
	if err != nil {
		return err
	}
	recents, err := b.deps.Store.Recents(ctx)
	if err != nil {
		return err
	}
	b.log.Restore(msgs)
	b.recents.Restore(recents)
	b.logger.Debug().Int("messages", len(msgs)).Int("recents", len(recents)).Msg("Conversation restored")
	return nil
}

// GetMessages returns the conversation, oldest first.
func (b *ConversationBridge) GetMessages() []conversation.Message {
	return b.log.Messages()
}

// GetRecents returns recently spoken phrases, newest first.
func (b *ConversationBridge) GetRecents() []conversation.Phrase {
	return b.recents.List()
}

// GetQuickReplies returns the partner quick replies for the current
// language.
func (b *ConversationBridge) GetQuickReplies() []string {
	return conversation.QuickReplies(b.deps.Settings().Language)
}

// SpeakPhrase speaks a phrase board symbol and records it.
func (b *ConversationBridge) SpeakPhrase(p conversation.Phrase) {
	s := b.deps.Settings()
	sound := p.Sound
	if sound == "" {
		sound = cue.Neutral
	}
	b.play(sound)

	text := p.Text(s.Language, s.Persona)
	b.deps.Speaker.Speak(text, s)

	b.recents.Use(p)
	b.saveRecents()
	b.add(text, conversation.SenderUser, conversation.TypeVoice)
}

// SpeakText speaks typed text and records it.
func (b *ConversationBridge) SpeakText(text string) {
	s := b.deps.Settings()
	b.play(cue.Social)
	b.deps.Speaker.Speak(text, s)
	b.add(text, conversation.SenderUser, conversation.TypeText)
}

// AddPartnerMessage records what the partner said and requests its sign
// illustration.
func (b *ConversationBridge) AddPartnerMessage(text string) {
	msg, ok := b.add(text, conversation.SenderPartner, conversation.TypeVoice)
	if ok && b.deps.Signs != nil {
		b.deps.Signs.Request(msg.Text)
	}
}

// AddLiveMessage records a finished live assistant turn. Partner speech
// also requests its sign illustration.
func (b *ConversationBridge) AddLiveMessage(text string, sender conversation.Sender) {
	if sender == conversation.SenderPartner {
		b.AddPartnerMessage(text)
		return
	}
	b.add(text, conversation.SenderUser, conversation.TypeVoice)
}

// ClearConversation empties the log and recents.
func (b *ConversationBridge) ClearConversation() error {
	b.log.Clear()
	b.recents.Restore(nil)
	if b.deps.Store != nil {
		if err := b.deps.Store.ClearConversation(context.Background()); err != nil {
			return err
		}
	}
	b.emit(EventCleared)
	return nil
}

// AddToSentence queues a phrase in the sentence builder.
func (b *ConversationBridge) AddToSentence(p conversation.Phrase) []conversation.Phrase {
	b.sentence.Add(p)
	return b.sentence.Items()
}

// RemoveFromSentence drops the phrase at index i.
func (b *ConversationBridge) RemoveFromSentence(i int) []conversation.Phrase {
	b.play(cue.Neutral)
	b.sentence.Remove(i)
	return b.sentence.Items()
}

// ClearSentence empties the sentence builder.
func (b *ConversationBridge) ClearSentence() {
	b.play(cue.Sad)
	b.sentence.Clear()
}

// GetSentence returns the queued phrases.
func (b *ConversationBridge) GetSentence() []conversation.Phrase {
	return b.sentence.Items()
}

// SpeakSentence speaks the queued phrases as one utterance. The queue is
// kept so it can be repeated.
func (b *ConversationBridge) SpeakSentence() {
	s := b.deps.Settings()
	text := b.sentence.Text(s.Language, s.Persona)
	if text == "" {
		return
	}
	b.play(cue.Social)
	b.deps.Speaker.Speak(text, s)
	b.add(text, conversation.SenderUser, conversation.TypeText)
}

// StartListening starts partner speech recognition.
func (b *ConversationBridge) StartListening() {
	if b.deps.Listener == nil {
		return
	}
	b.play(cue.Alert)
	b.deps.Listener.Start()
}

// StopListening stops partner speech recognition.
func (b *ConversationBridge) StopListening() {
	if b.deps.Listener == nil {
		return
	}
	b.deps.Listener.Stop()
}

// IsListening reports whether partner speech is being recognized.
func (b *ConversationBridge) IsListening() bool {
	return b.deps.Listener != nil && b.deps.Listener.Listening()
}

// ReportResults receives recognition results from the webview. first is
// the index of the first changed result.
func (b *ConversationBridge) ReportResults(results []stt.Result, first int) {
	if b.deps.Listener != nil {
		b.deps.Listener.HandleResults(results, first)
	}
}

// ReportError receives a recognition error code from the webview.
func (b *ConversationBridge) ReportError(code string) {
	if b.deps.Listener != nil {
		b.deps.Listener.HandleError(code)
	}
}

// ReportEnd tells the listener the webview's recognition session ended.
func (b *ConversationBridge) ReportEnd() {
	if b.deps.Recognizer != nil {
		b.deps.Recognizer.ended()
	}
	if b.deps.Listener != nil {
		b.deps.Listener.HandleEnd()
	}
}

func (b *ConversationBridge) add(text string, sender conversation.Sender, typ conversation.MessageType) (conversation.Message, bool) {
	msg, err := b.log.Add(text, sender, typ)
	if err != nil {
		b.logger.Debug().Err(err).Msg("Message dropped")
		return conversation.Message{}, false
	}
	b.saveHistory()
	b.deps.EventBus.Publish(bus.Event{
		Type: bus.EventTypeMessageAdded,
		Data: map[string]any{"id": msg.ID, "sender": string(msg.Sender), "type": string(msg.Type)},
	})
	b.emit(EventMessage, msg)
	return msg, true
}

func (b *ConversationBridge) saveHistory() {
	if b.deps.Store == nil {
		return
	}
	if err := b.deps.Store.SaveHistory(context.Background(), b.log.Messages()); err != nil {
		b.logger.Warn().Err(err).Msg("Failed to save conversation")
	}
}

func (b *ConversationBridge) saveRecents() {
	if b.deps.Store == nil {
		return
	}
	if err := b.deps.Store.SaveRecents(context.Background(), b.recents.List()); err != nil {
		b.logger.Warn().Err(err).Msg("Failed to save recents")
	}
}

func (b *ConversationBridge) play(p cue.Profile) {
	if b.deps.Cues != nil {
		b.deps.Cues.Play(p)
	}
}

// gestureRecognized records a spoken gesture phrase as a sign message.
func (b *ConversationBridge) gestureRecognized(e bus.Event) {
	key := "en"
	if b.deps.Settings().Language == voice.Hindi {
		key = "hi"
	}
	text, _ := e.Data[key].(string)
	b.add(text, conversation.SenderUser, conversation.TypeSign)
}

func (b *ConversationBridge) signResult(r signgen.Result) {
	out := SignResult{Text: r.Text}
	if r.Err != nil {
		out.Error = r.Err.Error()
	} else {
		out.DataURL = r.Image.DataURL()
	}
	b.emit(EventSign, out)
}
