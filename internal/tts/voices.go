package tts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/voicelink/internal/voice"
)

// listTimeout bounds a single voice enumeration.
const listTimeout = 5 * time.Second

// NewEngine returns the engine named in cfg.
func NewEngine(cfg Config, logger zerolog.Logger) (Engine, error) {
	switch cfg.Engine {
	case "", "say":
		return NewSayEngine(cfg, logger), nil
	case "espeak":
		return NewEspeakEngine(cfg, logger), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrEngineUnavailable, cfg.Engine)
}

// VoiceCache holds the engine's voice list and keeps it current. Engines
// often report no voices until they finish loading, so an empty cache is
// refilled on demand.
type VoiceCache struct {
	engine Engine
	logger zerolog.Logger

	mu     sync.RWMutex
	voices []voice.Descriptor

	subMu  sync.Mutex
	nextID int
	subs   map[int]func([]voice.Descriptor)
}

// NewVoiceCache wraps an engine and subscribes to its change notifications.
func NewVoiceCache(engine Engine, logger zerolog.Logger) *VoiceCache {
	c := &VoiceCache{
		engine: engine,
		logger: logger.With().Str("component", "voices").Logger(),
		subs:   make(map[int]func([]voice.Descriptor)),
	}
	engine.OnVoicesChanged(func() {
		ctx, cancel := context.WithTimeout(context.Background(), listTimeout)
		defer cancel()
		if err := c.Refresh(ctx); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to refresh voices after change")
		}
	})
	return c
}

// Voices returns the cached list, populating it first if it is empty.
func (c *VoiceCache) Voices(ctx context.Context) []voice.Descriptor {
	c.mu.RLock()
	voices := c.voices
	c.mu.RUnlock()

	if len(voices) == 0 {
		if err := c.Refresh(ctx); err != nil {
			c.logger.Debug().Err(err).Msg("Voice list unavailable")
			return nil
		}
		c.mu.RLock()
		voices = c.voices
		c.mu.RUnlock()
	}

	out := make([]voice.Descriptor, len(voices))
	copy(out, voices)
	return out
}

// Refresh re-reads the engine's voices and notifies subscribers.
func (c *VoiceCache) Refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	voices, err := c.engine.ListVoices(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.voices = voices
	c.mu.Unlock()

	c.logger.Debug().Int("count", len(voices)).Msg("Voices loaded")

	c.subMu.Lock()
	subs := make([]func([]voice.Descriptor), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.subMu.Unlock()

	for _, fn := range subs {
		fn(voices)
	}
	return nil
}

// Subscribe registers fn for voice list updates and returns a function
// that removes it.
func (c *VoiceCache) Subscribe(fn func([]voice.Descriptor)) func() {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	id := c.nextID
	c.nextID++
	c.subs[id] = fn

	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		delete(c.subs, id)
	}
}
