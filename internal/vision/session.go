package vision

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/voicelink/internal/bus"
	"github.com/normanking/voicelink/internal/config"
	"github.com/normanking/voicelink/internal/gesture"
	"github.com/normanking/voicelink/internal/voice"
)

// SessionConfig configures a camera session.
type SessionConfig struct {
	Facing     FacingMode
	Classifier ClassifierOptions
	Stabilizer gesture.Config
	MaxFPS     int // 0 processes every frame
}

// SessionConfigFrom builds a session config from application config.
func SessionConfigFrom(cfg *config.Config) SessionConfig {
	facing := FacingMode(cfg.Vision.FacingMode)
	if facing != FacingEnvironment {
		facing = FacingUser
	}
	return SessionConfig{
		Facing: facing,
		Classifier: ClassifierOptions{
			ModelAsset: cfg.Vision.ModelAsset,
			Delegate:   Delegate(cfg.Vision.Delegate),
			NumHands:   1,
		},
		Stabilizer: gesture.Config{
			ConfidenceThreshold: cfg.Gesture.ConfidenceThreshold,
			HoldDuration:        cfg.Gesture.HoldDuration,
			Cooldown:            cfg.Gesture.Cooldown,
		},
		MaxFPS: cfg.Vision.MaxFPS,
	}
}

// reconnectInterval spaces out attempts to replace a lost classifier.
const reconnectInterval = 5 * time.Second

// run is one started camera session.
type run struct {
	cancel     context.CancelFunc
	done       chan struct{}
	stream     Stream
	stabilizer *gesture.Stabilizer
	facing     FacingMode
	maxFPS     int
	opts       ClassifierOptions

	// classifier and delegate are replaced by the frame loop on reconnect.
	clsMu      sync.Mutex
	classifier Classifier
	delegate   Delegate

	lastFrameMs int64
	lastDisplay string
	nextDial    time.Time
}

func (r *run) currentDelegate() Delegate {
	r.clsMu.Lock()
	defer r.clsMu.Unlock()
	return r.delegate
}

func (r *run) closeClassifier() {
	r.clsMu.Lock()
	defer r.clsMu.Unlock()
	r.classifier.Close()
}

// Session owns the camera, the classifier and the stabilizer between
// Start and Stop. Frames are classified one at a time on a single
// goroutine; a frame that fails or panics is skipped.
type Session struct {
	camera   Camera
	factory  ClassifierFactory
	vocab    *gesture.Vocabulary
	handler  PhraseHandler
	eventBus *bus.EventBus
	logger   zerolog.Logger

	// lifeMu serializes Start, Stop and SwitchFacing so a new stream is
	// never opened while the previous one is still being released.
	lifeMu sync.Mutex

	mu   sync.Mutex
	cfg  SessionConfig
	lang voice.Language
	cur  *run

	cbMu     sync.RWMutex
	onUpdate func(Update)
}

// NewSession creates a stopped session.
func NewSession(camera Camera, factory ClassifierFactory, vocab *gesture.Vocabulary, handler PhraseHandler, cfg SessionConfig, eventBus *bus.EventBus, logger zerolog.Logger) *Session {
	if vocab == nil {
		vocab = gesture.DefaultVocabulary()
	}
	if cfg.Facing == "" {
		cfg.Facing = FacingUser
	}
	return &Session{
		camera:   camera,
		factory:  factory,
		vocab:    vocab,
		handler:  handler,
		eventBus: eventBus,
		logger:   logger.With().Str("component", "session").Logger(),
		cfg:      cfg,
		lang:     voice.English,
	}
}

// OnUpdate registers a callback run after every processed frame.
func (s *Session) OnUpdate(cb func(Update)) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	s.onUpdate = cb
}

// SetLanguage changes the language of confirmed display text.
func (s *Session) SetLanguage(lang voice.Language) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lang = lang
	if s.cur != nil {
		s.cur.stabilizer.SetLanguage(lang)
	}
}

// SetStabilizerConfig applies to the next Start.
func (s *Session) SetStabilizerConfig(cfg gesture.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Stabilizer = cfg
}

// Running reports whether the session is started.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur != nil
}

// Facing returns the configured facing mode.
func (s *Session) Facing() FacingMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Facing
}

// Delegate returns the delegate the running classifier uses.
func (s *Session) Delegate() Delegate {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return ""
	}
	return s.cur.currentDelegate()
}

// Start opens the camera and loads the classifier. On error nothing is
// left running and the camera is released.
func (s *Session) Start(ctx context.Context) error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	return s.start(ctx)
}

func (s *Session) start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur != nil {
		return ErrSessionActive
	}

	stream, err := s.camera.Open(ctx, s.cfg.Facing)
	if err != nil {
		s.publishError(err)
		return fmt.Errorf("open camera: %w", err)
	}

	classifier, delegate, err := LoadClassifier(ctx, s.factory, s.cfg.Classifier, s.logger)
	if err != nil {
		stream.Close()
		s.publishError(err)
		return err
	}

	stabilizer := gesture.NewStabilizer(s.cfg.Stabilizer, s.vocab)
	stabilizer.SetLanguage(s.lang)

	loopCtx, cancel := context.WithCancel(context.Background())
	r := &run{
		cancel:     cancel,
		done:       make(chan struct{}),
		stream:     stream,
		classifier: classifier,
		delegate:   delegate,
		stabilizer: stabilizer,
		facing:     s.cfg.Facing,
		maxFPS:     s.cfg.MaxFPS,
		opts:       s.cfg.Classifier,
	}
	s.cur = r

	go s.loop(loopCtx, r)

	s.logger.Info().
		Str("facing", string(r.facing)).
		Str("delegate", string(delegate)).
		Msg("Camera session started")
	s.eventBus.Publish(bus.Event{
		Type: bus.EventTypeCameraStarted,
		Data: map[string]any{"facing": string(r.facing), "delegate": string(delegate)},
	})
	return nil
}

// Stop ends the session and waits for the frame loop to exit. Speech
// started by the session is cancelled. Stop is a no-op when stopped.
func (s *Session) Stop() {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	s.stop()
}

// stop releases everything before the session reports itself stopped.
func (s *Session) stop() {
	s.mu.Lock()
	r := s.cur
	s.mu.Unlock()

	if r == nil {
		return
	}

	r.cancel()
	r.closeClassifier()
	<-r.done
	r.stream.Close()
	if s.handler != nil {
		s.handler.Silence()
	}

	s.mu.Lock()
	s.cur = nil
	s.mu.Unlock()

	s.logger.Info().Msg("Camera session stopped")
	s.eventBus.Publish(bus.Event{Type: bus.EventTypeCameraStopped})
}

// SwitchFacing restarts the session on another camera. Hold and cooldown
// state starts over.
func (s *Session) SwitchFacing(ctx context.Context, facing FacingMode) error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	s.stop()

	s.mu.Lock()
	s.cfg.Facing = facing
	s.mu.Unlock()

	return s.start(ctx)
}

func (s *Session) loop(ctx context.Context, r *run) {
	defer close(r.done)

	frames := r.stream.Frames()
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-frames:
			if !ok {
				return
			}
			s.processFrame(ctx, r, f)
		}
	}
}

func (s *Session) processFrame(ctx context.Context, r *run, f Frame) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error().Interface("panic", rec).Msg("Frame processing panicked")
		}
	}()

	if r.maxFPS > 0 && r.lastFrameMs > 0 {
		if f.TimestampMs-r.lastFrameMs < int64(1000/r.maxFPS) {
			return
		}
	}
	r.lastFrameMs = f.TimestampMs

	c, err := r.classifier.Classify(ctx, f)
	if err != nil {
		switch {
		case ctx.Err() != nil:
		case errors.Is(err, ErrNotConnected):
			s.reconnect(ctx, r, err)
		default:
			s.logger.Debug().Err(err).Msg("Frame skipped")
		}
		return
	}
	if ctx.Err() != nil {
		return
	}

	sample := gesture.Resolve(c, f.TimestampMs)
	result := r.stabilizer.Step(sample)

	s.cbMu.RLock()
	cb := s.onUpdate
	s.cbMu.RUnlock()
	if cb != nil {
		cb(Update{
			Result:   result,
			Sample:   sample,
			Overlay:  gesture.Project(c.Landmarks, f.Width, f.Height, r.facing == FacingUser),
			Raw:      c,
			Delegate: r.delegate,
		})
	}

	if result.Display != r.lastDisplay {
		r.lastDisplay = result.Display
		s.eventBus.Publish(bus.Event{
			Type: bus.EventTypeGestureDisplay,
			Data: map[string]any{"display": result.Display, "state": string(result.State), "label": result.Label},
		})
	}

	if result.Event == nil {
		return
	}

	ev := *result.Event
	s.logger.Info().Str("label", ev.Label).Int64("ts", ev.TimestampMs).Msg("Gesture recognized")
	s.eventBus.Publish(bus.Event{
		Type: bus.EventTypeGestureRecognized,
		Data: map[string]any{"label": ev.Label, "emoji": ev.Emoji, "en": ev.English, "hi": ev.Hindi, "timestampMs": ev.TimestampMs},
	})
	if s.handler != nil {
		s.handler.HandlePhrase(ev)
	}
}

// reconnect replaces a classifier whose connection was lost. Attempts are
// at most one per reconnectInterval; frames in between are skipped.
func (s *Session) reconnect(ctx context.Context, r *run, cause error) {
	now := time.Now()
	if now.Before(r.nextDial) {
		return
	}
	r.nextDial = now.Add(reconnectInterval)

	s.logger.Warn().Err(cause).Msg("Classifier connection lost, reconnecting")
	c, delegate, err := LoadClassifier(ctx, s.factory, r.opts, s.logger)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn().Err(err).Msg("Classifier reconnect failed")
		}
		return
	}

	r.clsMu.Lock()
	defer r.clsMu.Unlock()
	if ctx.Err() != nil {
		c.Close()
		return
	}
	r.classifier.Close()
	r.classifier, r.delegate = c, delegate
	s.logger.Info().Str("delegate", string(delegate)).Msg("Classifier reconnected")
}

func (s *Session) publishError(err error) {
	kind := "unknown"
	switch {
	case errors.Is(err, ErrPermissionDenied):
		kind = "permission"
	case errors.Is(err, ErrCameraNotAvailable):
		kind = "unavailable"
	case errors.Is(err, ErrModelUnavailable):
		kind = "model"
	}
	s.logger.Warn().Err(err).Str("kind", kind).Msg("Camera session failed to start")
	s.eventBus.Publish(bus.Event{
		Type: bus.EventTypeCameraError,
		Data: map[string]any{"kind": kind, "error": err.Error()},
	})
}
