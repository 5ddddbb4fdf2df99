package samsung

import (
	"log/slog"
	"sync"
)

// Event types
const (
	EventEntityUpdate     = "entity_update"
	EventDeviceDiscovered = "device_discovered"
	EventCommandQueued    = "command_queued"
)

// Event is published on the bus. Data is an Update, a Discovery or a
// protocol.Command depending on Type.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// EventHandler is a callback for events.
type EventHandler func(Event)

// EventBus provides pub/sub for bridge events.
type EventBus struct {
	mu          sync.RWMutex
	handlers    map[string]map[uint64]EventHandler
	allHandlers map[uint64]EventHandler
	nextID      uint64
	logger      *slog.Logger
}

// NewEventBus creates a new event bus.
func NewEventBus(logger *slog.Logger) *EventBus {
	return &EventBus{
		handlers:    make(map[string]map[uint64]EventHandler),
		allHandlers: make(map[uint64]EventHandler),
		logger:      logger,
	}
}

// On registers a handler for one event type and returns its unsubscribe func.
func (eb *EventBus) On(eventType string, handler EventHandler) func() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	id := eb.nextID
	eb.nextID++
	if eb.handlers[eventType] == nil {
		eb.handlers[eventType] = make(map[uint64]EventHandler)
	}
	eb.handlers[eventType][id] = handler
	return func() {
		eb.mu.Lock()
		defer eb.mu.Unlock()
		delete(eb.handlers[eventType], id)
	}
}

// OnAll registers a handler for every event.
func (eb *EventBus) OnAll(handler EventHandler) func() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	id := eb.nextID
	eb.nextID++
	eb.allHandlers[id] = handler
	return func() {
		eb.mu.Lock()
		defer eb.mu.Unlock()
		delete(eb.allHandlers, id)
	}
}

// OnUpdate registers a handler for entity updates.
func (eb *EventBus) OnUpdate(fn func(Update)) func() {
	return eb.On(EventEntityUpdate, func(e Event) {
		if u, ok := e.Data.(Update); ok {
			fn(u)
		}
	})
}

// OnDiscovery registers a handler for newly seen unconfigured addresses.
func (eb *EventBus) OnDiscovery(fn func(Discovery)) func() {
	return eb.On(EventDeviceDiscovered, func(e Event) {
		if d, ok := e.Data.(Discovery); ok {
			fn(d)
		}
	})
}

// Emit calls the matching handlers synchronously. Panics are recovered and
// logged. A nil bus drops the event.
func (eb *EventBus) Emit(event Event) {
	if eb == nil {
		return
	}
	eb.mu.RLock()
	handlers := make([]EventHandler, 0, len(eb.handlers[event.Type])+len(eb.allHandlers))
	for _, h := range eb.handlers[event.Type] {
		handlers = append(handlers, h)
	}
	for _, h := range eb.allHandlers {
		handlers = append(handlers, h)
	}
	eb.mu.RUnlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					eb.logger.Error("event handler panic", "type", event.Type, "panic", r)
				}
			}()
			h(event)
		}()
	}
}
