// Package bridge provides Wails Go-JS bindings.
package bridge

import (
	"context"
	"errors"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/normanking/voicelink/internal/bus"
	"github.com/normanking/voicelink/internal/stt"
)

// Frontend event names
const (
	EventLogEntry      = "log:entry"
	EventVoicesChanged = "voices:changed"
	EventGestureUpdate = "gesture:update"
	EventSettingsSaved = "settings:saved"
	EventMessage       = "conversation:message"
	EventCleared       = "conversation:cleared"
	EventSign          = "sign:result"
	EventListenStart   = "listen:start"
	EventListenStop    = "listen:stop"
	EventLiveStatus    = "live:status"
	EventBusPrefix     = "bus:"
)

var errAlreadyRunning = errors.New("recognizer already running")

// binding holds the Wails context. Events emitted before Bind are dropped.
type binding struct {
	mu  sync.RWMutex
	ctx context.Context
}

func (b *binding) bind(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ctx = ctx
}

func (b *binding) bound() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ctx != nil
}

func (b *binding) emit(name string, data ...interface{}) {
	b.mu.RLock()
	ctx := b.ctx
	b.mu.RUnlock()
	if ctx == nil {
		return
	}
	runtime.EventsEmit(ctx, name, data...)
}

// EventForwarder relays bus events to the frontend as "bus:<type>".
type EventForwarder struct {
	binding
}

// NewEventForwarder subscribes to types on eventBus.
func NewEventForwarder(eventBus *bus.EventBus, types []bus.EventType) *EventForwarder {
	f := &EventForwarder{}
	eventBus.SubscribeMultiple(types, f.forward)
	return f
}

// Bind sets the Wails runtime context
func (f *EventForwarder) Bind(ctx context.Context) {
	f.bind(ctx)
}

func (f *EventForwarder) forward(e bus.Event) {
	f.emit(EventBusPrefix+string(e.Type), e.Data)
}

// WebRecognizer runs speech recognition in the webview. Start and Stop are
// sent to the frontend as events; the frontend reports results back
// through ConversationBridge.
type WebRecognizer struct {
	binding

	mu      sync.Mutex
	running bool
}

// NewWebRecognizer creates an unbound recognizer.
func NewWebRecognizer() *WebRecognizer {
	return &WebRecognizer{}
}

// Bind sets the Wails runtime context
func (r *WebRecognizer) Bind(ctx context.Context) {
	r.bind(ctx)
}

// Start asks the frontend to begin a recognition session.
func (r *WebRecognizer) Start(lang string) error {
	if !r.bound() {
		return stt.ErrRecognizerUnavailable
	}
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return errAlreadyRunning
	}
	r.running = true
	r.mu.Unlock()

	r.emit(EventListenStart, lang)
	return nil
}

// Stop asks the frontend to end the session. The end is reported back
// later, never from inside Stop.
func (r *WebRecognizer) Stop() {
	r.mu.Lock()
	wasRunning := r.running
	r.mu.Unlock()
	if wasRunning {
		r.emit(EventListenStop)
	}
}

// Running reports whether a session is open.
func (r *WebRecognizer) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *WebRecognizer) ended() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running = false
}
