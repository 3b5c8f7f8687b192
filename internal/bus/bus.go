// Package bus provides an internal event bus for component communication
package bus

import (
	"sync"
)

// EventType identifies different event types
type EventType string

// Event types for VoiceLink
const (
	// Speech output events
	EventTypeSpeechStarted   EventType = "speech.started"
	EventTypeSpeechCompleted EventType = "speech.completed"
	EventTypeSpeechCancelled EventType = "speech.cancelled"
	EventTypeSpeechFailed    EventType = "speech.failed"
	EventTypeVoicesChanged   EventType = "speech.voices_changed"

	// Camera session events
	EventTypeCameraStarted EventType = "camera.started"
	EventTypeCameraStopped EventType = "camera.stopped"
	EventTypeCameraError   EventType = "camera.error"

	// Gesture events
	EventTypeGestureDisplay    EventType = "gesture.display"
	EventTypeGestureRecognized EventType = "gesture.recognized"

	// Partner speech events
	EventTypeListeningStarted EventType = "listen.started"
	EventTypeListeningStopped EventType = "listen.stopped"
	EventTypeTranscript       EventType = "listen.transcript"
	EventTypeListenError      EventType = "listen.error"

	// Conversation events
	EventTypeMessageAdded EventType = "conversation.message_added"

	// Sign visualization events
	EventTypeSignGenerated EventType = "sign.generated"
	EventTypeSignFailed    EventType = "sign.failed"

	// Live conversation events
	EventTypeLiveStatus EventType = "live.status"

	// Settings events
	EventTypeSettingsChanged EventType = "settings.changed"
)

// Event represents a bus event
type Event struct {
	Type EventType
	Data map[string]any
}

// Handler is a function that handles events
type Handler func(Event)

// EventBus is a simple pub/sub event bus
type EventBus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for an event type
func (b *EventBus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// SubscribeMultiple adds a handler for multiple event types
func (b *EventBus) SubscribeMultiple(eventTypes []EventType, handler Handler) {
	for _, et := range eventTypes {
		b.Subscribe(et, handler)
	}
}

func (b *EventBus) snapshot(t EventType) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	handlers := make([]Handler, len(b.handlers[t]))
	copy(handlers, b.handlers[t])
	return handlers
}

// Publish sends an event to all subscribed handlers without waiting.
// A nil bus drops the event.
func (b *EventBus) Publish(event Event) {
	if b == nil {
		return
	}
	for _, handler := range b.snapshot(event.Type) {
		go handler(event)
	}
}

// PublishSync sends an event and waits for all handlers to complete
func (b *EventBus) PublishSync(event Event) {
	if b == nil {
		return
	}
	var wg sync.WaitGroup
	for _, handler := range b.snapshot(event.Type) {
		wg.Add(1)
		go func(h Handler) {
			defer wg.Done()
			h(event)
		}(handler)
	}
	wg.Wait()
}

// Clear removes all handlers
func (b *EventBus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[EventType][]Handler)
}
