package domain

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"hireguard.io/atssync/internal/pkg/logger"
)

// EventHandler processes one webhook event.
type EventHandler[R any] func(ctx context.Context, event *WebhookEvent) R

// EventDispatcher routes webhook events to the handler registered for their
// type. Exactly one handler may be registered per type; unknown types fall
// through to the fallback.
type EventDispatcher[R any] struct {
	handlers map[EventType]EventHandler[R]
	fallback EventHandler[R]
	mu       sync.RWMutex
}

// NewEventDispatcher creates a dispatcher. fallback handles unknown event
// types and must not fail.
func NewEventDispatcher[R any](fallback EventHandler[R]) *EventDispatcher[R] {
	return &EventDispatcher[R]{
		handlers: make(map[EventType]EventHandler[R]),
		fallback: fallback,
	}
}

// Register binds handler to each of the given types, replacing any earlier
// registration.
func (d *EventDispatcher[R]) Register(handler EventHandler[R], types ...EventType) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range types {
		d.handlers[t] = handler
	}
}

// Handles reports whether a handler is registered for t.
func (d *EventDispatcher[R]) Handles(t EventType) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[t]
	return ok
}

// Dispatch runs the handler for event.Type.
func (d *EventDispatcher[R]) Dispatch(ctx context.Context, event *WebhookEvent) R {
	d.mu.RLock()
	handler, ok := d.handlers[event.Type]
	d.mu.RUnlock()

	if !ok {
		logger.Debug("No handler registered for event type",
			zap.String("event_type", string(event.Type)),
			zap.String("raw_event", event.RawEvent),
			zap.String("hook_id", event.HookID),
		)
		return d.fallback(ctx, event)
	}
	return handler(ctx, event)
}
