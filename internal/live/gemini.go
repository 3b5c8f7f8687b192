package live

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/genai"
)

// DefaultModel is the native audio model used when none is configured.
const DefaultModel = "gemini-2.5-flash-native-audio-preview-09-2025"

// GeminiConnector opens Gemini Live API sessions.
type GeminiConnector struct {
	client *genai.Client
	model  string
}

// NewGeminiConnector creates a connector using apiKey.
func NewGeminiConnector(ctx context.Context, apiKey, model string) (*GeminiConnector, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	return &GeminiConnector{client: client, model: model}, nil
}

// Connect opens an audio session with both transcriptions enabled.
func (g *GeminiConnector) Connect(ctx context.Context, opts Options) (Conn, error) {
	session, err := g.client.Live.Connect(ctx, g.model, connectConfig(opts))
	if err != nil {
		return nil, fmt.Errorf("genai live connect: %w", err)
	}
	return &geminiConn{session: session}, nil
}

func connectConfig(opts Options) *genai.LiveConnectConfig {
	cfg := &genai.LiveConnectConfig{
		ResponseModalities:       []genai.Modality{genai.ModalityAudio},
		InputAudioTranscription:  &genai.AudioTranscriptionConfig{},
		OutputAudioTranscription: &genai.AudioTranscriptionConfig{},
	}
	if opts.Voice != "" {
		cfg.SpeechConfig = &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: opts.Voice},
			},
		}
	}
	if opts.SystemInstruction != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: opts.SystemInstruction}}}
	}
	return cfg
}

type geminiConn struct {
	session   *genai.Session
	closeOnce sync.Once
	closeErr  error
}

func (c *geminiConn) SendAudio(pcm []byte) error {
	return c.session.SendRealtimeInput(genai.LiveRealtimeInput{
		Audio: &genai.Blob{Data: pcm, MIMEType: InputMIMEType},
	})
}

func (c *geminiConn) Receive() (Message, error) {
	msg, err := c.session.Receive()
	if err != nil {
		return Message{}, err
	}
	return messageFromServer(msg), nil
}

func (c *geminiConn) Close() error {
	c.closeOnce.Do(func() { c.closeErr = c.session.Close() })
	return c.closeErr
}

// messageFromServer keeps the parts of a server message the session uses.
// Audio from every inline part of the model turn is concatenated.
func messageFromServer(msg *genai.LiveServerMessage) Message {
	var out Message
	if msg == nil || msg.ServerContent == nil {
		return out
	}
	sc := msg.ServerContent
	out.TurnComplete = sc.TurnComplete
	out.Interrupted = sc.Interrupted
	if sc.InputTranscription != nil {
		out.InputText = sc.InputTranscription.Text
	}
	if sc.OutputTranscription != nil {
		out.OutputText = sc.OutputTranscription.Text
	}
	if sc.ModelTurn != nil {
		for _, p := range sc.ModelTurn.Parts {
			if p != nil && p.InlineData != nil {
				out.Audio = append(out.Audio, p.InlineData.Data...)
			}
		}
	}
	return out
}

// Offline is a connector that always fails with Err, used when no model
// is configured.
type Offline struct {
	Err error
}

// Connect returns o.Err.
func (o Offline) Connect(context.Context, Options) (Conn, error) {
	return nil, o.Err
}
