package tts

import (
	"context"
	"fmt"
	"os/exec"
	"sync"

	"github.com/rs/zerolog"
)

// process runs one speech subprocess at a time and can kill it on demand.
type process struct {
	logger zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc

	listenersMu sync.Mutex
	listeners   []func()
}

func (p *process) run(ctx context.Context, name string, args ...string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.cancel = cancel
	p.mu.Unlock()

	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()

	p.mu.Lock()
	p.cancel = nil
	p.mu.Unlock()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		p.logger.Error().
			Err(err).
			Str("output", string(output)).
			Msg("Speech process failed")
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (p *process) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

func (p *process) onVoicesChanged(fn func()) {
	p.listenersMu.Lock()
	defer p.listenersMu.Unlock()
	p.listeners = append(p.listeners, fn)
}

func (p *process) voicesChanged() {
	p.listenersMu.Lock()
	listeners := make([]func(), len(p.listeners))
	copy(listeners, p.listeners)
	p.listenersMu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}
