package stt

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/voicelink/internal/bus"
)

// Listener keeps a Recognizer running while listening is wanted. When a
// session ends on its own it is restarted after RestartDelay, unless the
// recognizer reported a permission error.
type Listener struct {
	rec      Recognizer
	eventBus *bus.EventBus
	logger   zerolog.Logger
	delay    time.Duration

	mu           sync.Mutex
	shouldListen bool
	lang         string
	restart      *time.Timer
	onTranscript func(string)
}

// NewListener creates a stopped listener.
func NewListener(rec Recognizer, cfg Config, eventBus *bus.EventBus, logger zerolog.Logger) *Listener {
	def := DefaultConfig()
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = def.RestartDelay
	}
	if cfg.Language == "" {
		cfg.Language = def.Language
	}
	return &Listener{
		rec:      rec,
		eventBus: eventBus,
		logger:   logger.With().Str("component", "listener").Logger(),
		delay:    cfg.RestartDelay,
		lang:     cfg.Language,
	}
}

// OnTranscript registers the callback for final transcripts.
func (l *Listener) OnTranscript(cb func(string)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onTranscript = cb
}

// Start begins listening.
func (l *Listener) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.shouldListen = true
	l.startLocked()
	l.eventBus.Publish(bus.Event{Type: bus.EventTypeListeningStarted, Data: map[string]any{"lang": l.lang}})
}

func (l *Listener) startLocked() {
	if err := l.rec.Start(l.lang); err != nil {
		// Usually already running.
		l.logger.Debug().Err(err).Msg("Recognizer start failed")
	}
}

// Stop ends listening. No restart follows.
func (l *Listener) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	wasListening := l.shouldListen
	l.shouldListen = false
	if l.restart != nil {
		l.restart.Stop()
		l.restart = nil
	}
	l.rec.Stop()
	if wasListening {
		l.eventBus.Publish(bus.Event{Type: bus.EventTypeListeningStopped})
	}
}

// Listening reports whether listening is wanted.
func (l *Listener) Listening() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.shouldListen
}

// Language returns the recognition language.
func (l *Listener) Language() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lang
}

// SetLanguage changes the recognition language. A running session is
// stopped so that the restart picks up the new language.
func (l *Listener) SetLanguage(lang string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if lang == "" || lang == l.lang {
		return
	}
	l.lang = lang
	if l.shouldListen {
		l.rec.Stop()
	}
}

// HandleResults processes recognizer results from index first on. Each
// final result's best transcript is trimmed, lower-cased and delivered.
func (l *Listener) HandleResults(results []Result, first int) {
	l.mu.Lock()
	cb := l.onTranscript
	l.mu.Unlock()

	if first < 0 {
		first = 0
	}
	for i := first; i < len(results); i++ {
		r := results[i]
		if !r.IsFinal || len(r.Alternatives) == 0 {
			continue
		}
		transcript := strings.ToLower(strings.TrimSpace(r.Alternatives[0].Transcript))
		if transcript == "" {
			continue
		}

		l.logger.Debug().Str("transcript", transcript).Msg("Final transcript")
		l.eventBus.Publish(bus.Event{
			Type: bus.EventTypeTranscript,
			Data: map[string]any{"text": transcript, "confidence": r.Alternatives[0].Confidence},
		})
		if cb != nil {
			cb(transcript)
		}
	}
}

// HandleError processes a recognizer error code. Permission errors stop
// listening.
func (l *Listener) HandleError(code string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.logger.Warn().Str("code", code).Msg("Speech recognition error")

	data := map[string]any{"code": code}
	if code == CodeNotAllowed || code == CodeServiceNotAllowed {
		l.shouldListen = false
		data["error"] = ErrPermissionDenied.Error()
	}
	l.eventBus.Publish(bus.Event{Type: bus.EventTypeListenError, Data: data})
}

// HandleEnd is called when a recognition session ends. If listening is
// still wanted a new session starts after the restart delay.
func (l *Listener) HandleEnd() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.shouldListen {
		return
	}
	if l.restart != nil {
		l.restart.Stop()
	}
	l.restart = time.AfterFunc(l.delay, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.restart = nil
		if l.shouldListen {
			l.startLocked()
		}
	})
}
