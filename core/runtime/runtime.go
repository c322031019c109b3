// Package runtime is the host-facing façade over compiled event types. A
// Runtime wraps one compiled type; a Registry resolves runtimes by type id
// and swaps the whole set atomically on reload.
package runtime

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/eventdsl/core/compiler"
	"github.com/artpar/eventdsl/core/event"
	"github.com/artpar/eventdsl/core/events"
	"github.com/artpar/eventdsl/core/schema"
	"github.com/artpar/eventdsl/ports"
)

// Runtime validates and renders events of one compiled type. It is safe for
// concurrent use.
type Runtime struct {
	ct  *compiler.CompiledType
	cfg config
}

type config struct {
	logger   zerolog.Logger
	metrics  ports.Metrics
	bus      *events.Bus
	clock    ports.Clock
	location *time.Location
}

// Option configures a Runtime or Registry.
type Option func(*config)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithMetrics records validations and renders.
func WithMetrics(m ports.Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// WithBus publishes registry changes on bus.
func WithBus(bus *events.Bus) Option {
	return func(c *config) { c.bus = bus }
}

// WithClock fills Context.Now from clock when the caller leaves it zero.
func WithClock(clock ports.Clock) Option {
	return func(c *config) { c.clock = clock }
}

// WithLocation sets the calendar location used when Context.Location is nil.
func WithLocation(loc *time.Location) Option {
	return func(c *config) { c.location = loc }
}

func newConfig(opts []Option) config {
	cfg := config{
		logger:  zerolog.Nop(),
		metrics: nopMetrics{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

type nopMetrics struct{}

func (nopMetrics) ObserveValidation(string, bool, int, time.Duration) {}
func (nopMetrics) ObserveRender(string, error, time.Duration)         {}
func (nopMetrics) ObserveReload(int, error)                           {}

// New creates a runtime for ct.
func New(ct *compiler.CompiledType, opts ...Option) *Runtime {
	return &Runtime{ct: ct, cfg: newConfig(opts)}
}

// ID returns the type id.
func (r *Runtime) ID() string {
	return r.ct.ID
}

// Name returns the type's display name.
func (r *Runtime) Name() string {
	return r.ct.Name
}

// Description returns the type's description.
func (r *Runtime) Description() string {
	return r.ct.Description
}

// Schema returns the generated payload schema.
func (r *Runtime) Schema() *schema.Schema {
	return r.ct.Schema
}

// Declaration returns the declaration the type was compiled from.
func (r *Runtime) Declaration() schema.TypeDeclaration {
	return r.ct.Declaration()
}

// Behavior returns a copy of the type's behavior flags.
func (r *Runtime) Behavior() map[string]any {
	return r.ct.Behavior()
}

// Validate validates ev. Failures are reported in the result, never as an
// error.
func (r *Runtime) Validate(ev event.Event, ctx event.Context) event.ValidationResult {
	start := time.Now()
	result := r.ct.Validate(ev, r.prepare(ctx))
	r.cfg.metrics.ObserveValidation(r.ct.ID, result.Valid, len(result.Errors), time.Since(start))

	if !result.Valid {
		r.cfg.logger.Debug().
			Str("type", r.ct.ID).
			Str("event", ev.ID).
			Strs("errors", result.Errors).
			Msg("event failed validation")
	}
	return result
}

// Render renders ev. Only computed display bindings can fail.
func (r *Runtime) Render(ev event.Event, ctx event.Context) (event.RenderedEvent, error) {
	start := time.Now()
	out, err := r.ct.Render(ev, r.prepare(ctx))
	r.cfg.metrics.ObserveRender(r.ct.ID, err, time.Since(start))

	if err != nil {
		r.cfg.logger.Warn().
			Err(err).
			Str("type", r.ct.ID).
			Str("event", ev.ID).
			Msg("render failed")
	}
	return out, err
}

// prepare fills the parts of ctx the host left empty. The caller's value is
// not modified.
func (r *Runtime) prepare(ctx event.Context) event.Context {
	if ctx.Now.IsZero() && r.cfg.clock != nil {
		ctx.Now = r.cfg.clock.Now()
	}
	if ctx.Location == nil {
		ctx.Location = r.cfg.location
	}
	return ctx
}
