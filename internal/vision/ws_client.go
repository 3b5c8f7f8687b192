package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/normanking/voicelink/internal/gesture"
)

const (
	handshakeTimeout = 10 * time.Second
	classifyTimeout  = 2 * time.Second
	writeTimeout     = 5 * time.Second
	incomingBuffer   = 16
)

// WSInitMessage asks the service to load a model on a delegate
type WSInitMessage struct {
	Type       string   `json:"type"`
	ModelAsset string   `json:"model_asset"`
	Delegate   Delegate `json:"delegate"`
	NumHands   int      `json:"num_hands"`
}

// WSReadyMessage confirms the model is loaded
type WSReadyMessage struct {
	Type     string   `json:"type"`
	Delegate Delegate `json:"delegate"`
}

// WSFrameMessage carries one frame to classify
type WSFrameMessage struct {
	Type        string `json:"type"`
	Data        string `json:"data"`
	MimeType    string `json:"mime_type"`
	Sequence    int64  `json:"sequence"`
	TimestampMs int64  `json:"timestamp_ms"`
}

// WSCategory is one scored gesture label
type WSCategory struct {
	CategoryName string  `json:"category_name"`
	Score        float64 `json:"score"`
}

// WSResultMessage is the classification of a frame
type WSResultMessage struct {
	Type      string                `json:"type"`
	Sequence  int64                 `json:"sequence"`
	Gestures  []WSCategory          `json:"gestures"`
	Landmarks gesture.HandLandmarks `json:"landmarks"`
}

// WSErrorMessage reports errors
type WSErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// RemoteFactory creates classifiers backed by a gesture recognition
// service reached over WebSocket.
type RemoteFactory struct {
	URL    string
	Dialer *websocket.Dialer
	logger zerolog.Logger
}

// NewRemoteFactory creates a factory for the service at rawURL. http and
// https URLs are converted to ws and wss.
func NewRemoteFactory(rawURL string, logger zerolog.Logger) *RemoteFactory {
	return &RemoteFactory{
		URL:    rawURL,
		Dialer: websocket.DefaultDialer,
		logger: logger.With().Str("component", "classifier").Logger(),
	}
}

// NewClassifier connects and loads the model on opts.Delegate.
func (f *RemoteFactory) NewClassifier(ctx context.Context, opts ClassifierOptions) (Classifier, error) {
	u, err := url.Parse(f.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}

	f.logger.Info().Str("url", u.String()).Str("delegate", string(opts.Delegate)).Msg("Connecting to gesture classifier")

	conn, _, err := f.Dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	c := &RemoteClassifier{
		conn:     conn,
		logger:   f.logger,
		incoming: make(chan json.RawMessage, incomingBuffer),
		done:     make(chan struct{}),
	}
	if err := c.handshake(opts); err != nil {
		conn.Close()
		return nil, err
	}
	conn.SetReadDeadline(time.Time{})
	go c.readLoop()

	f.logger.Info().Str("delegate", string(opts.Delegate)).Msg("Gesture classifier ready")
	return c, nil
}

// RemoteClassifier classifies frames one at a time over a WebSocket.
// After the handshake a single goroutine owns reads, so a frame that times
// out leaves the connection usable and its late result is skipped as stale.
// Close may be called while Classify is blocked and unblocks it.
type RemoteClassifier struct {
	logger zerolog.Logger
	conn   *websocket.Conn
	closed atomic.Bool

	incoming chan json.RawMessage
	done     chan struct{}
	readErr  error // set before done is closed

	mu       sync.Mutex
	sequence int64
}

// readLoop forwards messages to incoming until the connection fails.
// Messages nobody is waiting for are dropped when the buffer is full.
func (c *RemoteClassifier) readLoop() {
	defer close(c.done)
	for {
		var raw json.RawMessage
		if err := c.conn.ReadJSON(&raw); err != nil {
			c.readErr = err
			return
		}
		select {
		case c.incoming <- raw:
		default:
			c.logger.Debug().Msg("Dropping unread classifier message")
		}
	}
}

// drain discards messages left over from earlier frames.
func (c *RemoteClassifier) drain() {
	for {
		select {
		case <-c.incoming:
		default:
			return
		}
	}
}

func (c *RemoteClassifier) handshake(opts ClassifierOptions) error {
	c.conn.SetWriteDeadline(time.Now().Add(handshakeTimeout))
	init := WSInitMessage{
		Type:       "init",
		ModelAsset: opts.ModelAsset,
		Delegate:   opts.Delegate,
		NumHands:   opts.NumHands,
	}
	if err := c.conn.WriteJSON(init); err != nil {
		return fmt.Errorf("write init: %w", err)
	}

	c.conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	var raw json.RawMessage
	if err := c.conn.ReadJSON(&raw); err != nil {
		return fmt.Errorf("read init reply: %w", err)
	}
	if _, err := c.handleMessage(raw, 0); err != nil {
		return err
	}
	var ready WSReadyMessage
	if err := json.Unmarshal(raw, &ready); err != nil || ready.Type != "ready" {
		return fmt.Errorf("unexpected init reply %q", ready.Type)
	}
	return nil
}

// Classify sends frame and waits for its result, at most classifyTimeout
// or until ctx is done. A timeout fails only this frame.
func (c *RemoteClassifier) Classify(ctx context.Context, frame Frame) (gesture.Classification, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return gesture.Classification{}, ErrNotConnected
	}
	select {
	case <-c.done:
		return gesture.Classification{}, c.connErr()
	default:
	}

	c.drain()
	c.sequence++
	seq := c.sequence

	mimeType := "image/jpeg"
	if frame.Format == "png" {
		mimeType = "image/png"
	}

	msg := WSFrameMessage{
		Type:        "frame",
		Data:        base64.StdEncoding.EncodeToString(frame.Data),
		MimeType:    mimeType,
		Sequence:    seq,
		TimestampMs: frame.TimestampMs,
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteJSON(msg); err != nil {
		return gesture.Classification{}, fmt.Errorf("write frame: %w", err)
	}

	timer := time.NewTimer(classifyTimeout)
	defer timer.Stop()
	for {
		select {
		case raw := <-c.incoming:
			result, err := c.handleMessage(raw, seq)
			if err != nil {
				return gesture.Classification{}, err
			}
			if result != nil {
				return *result, nil
			}
		case <-c.done:
			return gesture.Classification{}, c.connErr()
		case <-timer.C:
			return gesture.Classification{}, fmt.Errorf("frame %d: %w", seq, context.DeadlineExceeded)
		case <-ctx.Done():
			return gesture.Classification{}, ctx.Err()
		}
	}
}

// connErr reports why the reader stopped. Only valid after done is closed.
func (c *RemoteClassifier) connErr() error {
	if c.closed.Load() || c.readErr == nil {
		return ErrNotConnected
	}
	return fmt.Errorf("%w: read: %w", ErrNotConnected, c.readErr)
}

// handleMessage processes one incoming message. It returns a result only
// for the frame numbered seq; stale results are skipped.
func (c *RemoteClassifier) handleMessage(raw json.RawMessage, seq int64) (*gesture.Classification, error) {
	var typeMsg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &typeMsg); err != nil {
		return nil, fmt.Errorf("parse message type: %w", err)
	}

	switch typeMsg.Type {
	case "ready":
		var msg WSReadyMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, fmt.Errorf("parse ready message: %w", err)
		}
		c.logger.Debug().Str("delegate", string(msg.Delegate)).Msg("Model loaded")
		return nil, nil

	case "result":
		var msg WSResultMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, fmt.Errorf("parse result message: %w", err)
		}
		if msg.Sequence != seq {
			c.logger.Debug().Int64("sequence", msg.Sequence).Int64("want", seq).Msg("Skipping stale result")
			return nil, nil
		}
		out := gesture.Classification{Label: gesture.NoGesture, Landmarks: msg.Landmarks}
		if len(msg.Gestures) > 0 {
			out.Label = msg.Gestures[0].CategoryName
			out.Confidence = msg.Gestures[0].Score
		}
		return &out, nil

	case "error":
		var msg WSErrorMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, fmt.Errorf("parse error message: %w", err)
		}
		return nil, fmt.Errorf("server: %s", msg.Message)

	default:
		c.logger.Debug().Str("type", typeMsg.Type).Msg("Unknown message type")
		return nil, nil
	}
}

// Close closes the connection.
func (c *RemoteClassifier) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.conn.Close()
}
