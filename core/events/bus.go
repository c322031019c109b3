// Package events provides the catalog event bus. The catalog publishes an
// event whenever the set of active types changes, so that hosts can refresh
// caches or push updates to clients.
package events

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Catalog event names.
const (
	TypeLoaded      = "type.loaded"
	TypeRemoved     = "type.removed"
	CatalogReloaded = "catalog.reloaded"
	CatalogFailed   = "catalog.failed"
)

// Event represents a published event.
type Event struct {
	// Name is the event name (e.g., "type.loaded").
	Name string

	// TypeID is the affected event type, empty for catalog-wide events.
	TypeID string

	// Source names where the change came from (e.g., "dir:./types").
	Source string

	// Err is set on failure events.
	Err error

	// Meta contains additional metadata.
	Meta map[string]any
}

// Handler is a function that processes an event.
type Handler func(ctx context.Context, event Event) error

// Bus is a simple publish/subscribe event bus.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   zerolog.Logger
}

// NewBus creates a new event bus.
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

// Subscribe registers a handler for an event.
// Supports wildcard subscriptions:
//   - "type.loaded" - exact match
//   - "type.*" - all type events
//   - "*" - all events
func (b *Bus) Subscribe(name string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], handler)
}

// Publish emits an event to all matching handlers.
// Handlers are called synchronously in registration order; a failing
// handler is logged and does not stop the others.
func (b *Bus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	matched := b.match(event.Name)
	b.mu.RUnlock()

	b.logger.Debug().
		Str("event", event.Name).
		Str("type", event.TypeID).
		Str("source", event.Source).
		Msg("event emitted")

	for _, handler := range matched {
		if err := handler(ctx, event); err != nil {
			b.logger.Error().
				Err(err).
				Str("event", event.Name).
				Msg("event handler error")
		}
	}
}

// HasSubscribers checks if any handlers are registered for an event.
func (b *Bus) HasSubscribers(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.match(name)) > 0
}

// match collects exact, prefix wildcard and global handlers, in that order.
func (b *Bus) match(name string) []Handler {
	var matched []Handler
	matched = append(matched, b.handlers[name]...)
	if prefix, _, ok := strings.Cut(name, "."); ok && prefix != "" {
		matched = append(matched, b.handlers[prefix+".*"]...)
	}
	return append(matched, b.handlers["*"]...)
}
