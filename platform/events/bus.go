package events

import (
	"context"
	"sync"

	"leadmarket_backend/platform/logger"
)

// InMemoryBus is a process-local Bus implementation. Async handlers run in
// their own goroutine; handler errors are logged, never propagated to the
// publisher.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	log      *logger.Logger
}

// NewInMemoryBus creates a new in-memory event bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return &InMemoryBus{
		handlers: make(map[string][]Handler),
		log:      log,
	}
}

// Subscribe registers a handler for the named event.
func (b *InMemoryBus) Subscribe(eventName string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], handler)
}

// Publish dispatches the event to all handlers asynchronously.
// The handler goroutine is detached from the request context so an
// in-flight notification survives the HTTP response.
func (b *InMemoryBus) Publish(_ context.Context, event Event) {
	for _, h := range b.handlersFor(event.EventName()) {
		go func(h Handler) {
			if err := h.Handle(context.Background(), event); err != nil && b.log != nil {
				b.log.Error("event handler failed", "event", event.EventName(), "error", err)
			}
		}(h)
	}
}

// PublishSync dispatches the event and returns the first handler error.
func (b *InMemoryBus) PublishSync(ctx context.Context, event Event) error {
	for _, h := range b.handlersFor(event.EventName()) {
		if err := h.Handle(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

func (b *InMemoryBus) handlersFor(name string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	registered := b.handlers[name]
	out := make([]Handler, len(registered))
	copy(out, registered)
	return out
}
