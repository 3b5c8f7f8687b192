package signgen

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/normanking/voicelink/internal/bus"
)

const generateTimeout = 60 * time.Second

// Result is the outcome of a debounced request.
type Result struct {
	Text  string
	Image Image
	Err   error
}

// Normalize is the cache key for text: lower case with single spaces.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// Service debounces generation requests and caches images by normalized
// text. Only the latest request delivers a result.
type Service struct {
	gen      Generator
	cache    *lru.Cache[string, Image]
	group    singleflight.Group
	debounce time.Duration
	eventBus *bus.EventBus
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	enabled  bool
	timer    *time.Timer
	inflight context.CancelFunc
	latest   uint64
	onResult func(Result)
}

// NewService creates an enabled service. gen may be nil, in which case
// every request fails with ErrNoAPIKey.
func NewService(gen Generator, debounce time.Duration, cacheSize int, eventBus *bus.EventBus, logger zerolog.Logger) *Service {
	if cacheSize <= 0 {
		cacheSize = 64
	}
	cache, _ := lru.New[string, Image](cacheSize)
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		gen:      gen,
		cache:    cache,
		debounce: debounce,
		eventBus: eventBus,
		logger:   logger.With().Str("component", "signgen").Logger(),
		ctx:      ctx,
		cancel:   cancel,
		enabled:  true,
	}
}

// OnResult registers the callback for debounced results.
func (s *Service) OnResult(cb func(Result)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onResult = cb
}

// SetEnabled turns generation on or off. Turning it off drops any pending
// request.
func (s *Service) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
	if !enabled {
		s.cancelPendingLocked()
	}
}

// Enabled reports whether generation is on.
func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Request schedules generation for text after the debounce delay,
// replacing any earlier pending request. Empty text only cancels.
func (s *Service) Request(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelPendingLocked()
	if !s.enabled || Normalize(text) == "" {
		return
	}

	s.latest++
	id := s.latest
	s.timer = time.AfterFunc(s.debounce, func() { s.fire(id, text) })
}

// cancelPendingLocked supersedes the current request, whether it is still
// waiting out the debounce or already generating.
func (s *Service) cancelPendingLocked() {
	s.latest++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.inflight != nil {
		s.inflight()
		s.inflight = nil
	}
}

func (s *Service) fire(id uint64, text string) {
	s.mu.Lock()
	if id != s.latest {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, generateTimeout)
	s.inflight = cancel
	s.mu.Unlock()
	defer cancel()

	img, err := s.Generate(ctx, text)
	if errors.Is(err, context.Canceled) && ctx.Err() == nil {
		// Joined a shared call for the same text that a superseded
		// request cancelled.
		img, err = s.Generate(ctx, text)
	}

	s.mu.Lock()
	current := id == s.latest
	cb := s.onResult
	s.mu.Unlock()

	if !current {
		return
	}

	if err != nil {
		s.logger.Warn().Err(err).Msg("Sign generation failed")
		s.eventBus.Publish(bus.Event{Type: bus.EventTypeSignFailed, Data: map[string]any{"text": text, "error": err.Error()}})
	} else {
		s.eventBus.Publish(bus.Event{Type: bus.EventTypeSignGenerated, Data: map[string]any{"text": text, "mimeType": img.MIMEType}})
	}
	if cb != nil {
		cb(Result{Text: text, Image: img, Err: err})
	}
}

// Generate returns the illustration for text, from cache when possible.
// Concurrent calls for the same text share one model request.
func (s *Service) Generate(ctx context.Context, text string) (Image, error) {
	if !s.Enabled() {
		return Image{}, ErrDisabled
	}
	key := Normalize(text)
	if img, ok := s.cache.Get(key); ok {
		s.logger.Debug().Str("text", key).Msg("Sign cache hit")
		return img, nil
	}
	if s.gen == nil {
		return Image{}, ErrNoAPIKey
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		start := time.Now()
		img, err := s.gen.Generate(ctx, text)
		if err != nil {
			return Image{}, err
		}
		s.cache.Add(key, img)
		s.logger.Info().Str("text", key).Dur("latency", time.Since(start)).Int("bytes", len(img.Data)).Msg("Sign generated")
		return img, nil
	})
	if err != nil {
		return Image{}, err
	}
	return v.(Image), nil
}

// Close drops pending requests and aborts in-flight generation.
func (s *Service) Close() {
	s.mu.Lock()
	s.cancelPendingLocked()
	s.mu.Unlock()
	s.cancel()
}
