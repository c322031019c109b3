package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/artpar/eventdsl/core/compiler"
	"github.com/artpar/eventdsl/core/event"
	"github.com/artpar/eventdsl/core/events"
)

// UnknownTypeError is returned when no type is registered under ID.
type UnknownTypeError struct {
	ID string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown event type %q", e.ID)
}

// Registry resolves runtimes by type id. Load replaces the whole set under
// the write lock; compiled types themselves are never mutated.
type Registry struct {
	mu sync.RWMutex

	// runtimes by type id
	runtimes map[string]*Runtime

	// ids in load order
	order []string

	opts []Option
	cfg  config
}

// NewRegistry creates an empty registry. opts are applied to every runtime
// it creates.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{
		runtimes: make(map[string]*Runtime),
		opts:     opts,
		cfg:      newConfig(opts),
	}
}

// Load replaces the registered types with the types of model. A nil model
// clears the registry.
func (r *Registry) Load(ctx context.Context, model *compiler.DataModel) {
	if model == nil {
		model = compiler.NewDataModel()
	}
	runtimes := make(map[string]*Runtime, model.Len())
	order := make([]string, 0, model.Len())
	for _, ct := range model.Types() {
		runtimes[ct.ID] = New(ct, r.opts...)
		order = append(order, ct.ID)
	}

	r.mu.Lock()
	previous := r.order
	r.runtimes = runtimes
	r.order = order
	r.mu.Unlock()

	var removed []string
	for _, id := range previous {
		if _, ok := runtimes[id]; !ok {
			removed = append(removed, id)
		}
	}

	r.cfg.logger.Info().
		Int("types", len(order)).
		Strs("removed", removed).
		Msg("registry loaded")

	if r.cfg.bus == nil {
		return
	}
	for _, id := range order {
		r.cfg.bus.Publish(ctx, events.Event{Name: events.TypeLoaded, TypeID: id})
	}
	for _, id := range removed {
		r.cfg.bus.Publish(ctx, events.Event{Name: events.TypeRemoved, TypeID: id})
	}
}

// Lookup returns the runtime for id, or an *UnknownTypeError.
func (r *Registry) Lookup(id string) (*Runtime, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rt, ok := r.runtimes[id]
	if !ok {
		return nil, &UnknownTypeError{ID: id}
	}
	return rt, nil
}

// Remove unregisters id.
func (r *Registry) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	if _, ok := r.runtimes[id]; !ok {
		r.mu.Unlock()
		return &UnknownTypeError{ID: id}
	}
	delete(r.runtimes, id)
	order := make([]string, 0, len(r.order))
	for _, existing := range r.order {
		if existing != id {
			order = append(order, existing)
		}
	}
	r.order = order
	r.mu.Unlock()

	r.cfg.logger.Info().Str("type", id).Msg("type removed")
	if r.cfg.bus != nil {
		r.cfg.bus.Publish(ctx, events.Event{Name: events.TypeRemoved, TypeID: id})
	}
	return nil
}

// IDs returns the registered type ids in load order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// Runtimes returns the registered runtimes in load order.
func (r *Registry) Runtimes() []*Runtime {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Runtime, len(r.order))
	for i, id := range r.order {
		out[i] = r.runtimes[id]
	}
	return out
}

// Len returns the number of registered types.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Validate looks up typeID and validates ev with it.
func (r *Registry) Validate(typeID string, ev event.Event, ctx event.Context) (event.ValidationResult, error) {
	rt, err := r.Lookup(typeID)
	if err != nil {
		return event.ValidationResult{}, err
	}
	return rt.Validate(ev, ctx), nil
}

// Render looks up typeID and renders ev with it.
func (r *Registry) Render(typeID string, ev event.Event, ctx event.Context) (event.RenderedEvent, error) {
	rt, err := r.Lookup(typeID)
	if err != nil {
		return event.RenderedEvent{}, err
	}
	return rt.Render(ev, ctx)
}
