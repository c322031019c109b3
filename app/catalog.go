// Package app provides application services that orchestrate domain logic.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/eventdsl/core/compiler"
	"github.com/artpar/eventdsl/core/events"
	"github.com/artpar/eventdsl/core/runtime"
	"github.com/artpar/eventdsl/core/schema"
	"github.com/artpar/eventdsl/ports"
)

// CatalogService loads declarations from its sources, compiles them and
// installs the result into a runtime.Registry.
type CatalogService struct {
	sources  []ports.DeclarationSource
	registry *runtime.Registry
	metrics  ports.Metrics
	bus      *events.Bus
	clock    ports.Clock
	logger   zerolog.Logger
	strict   atomic.Bool

	// Serializes reloads; lookups go through the registry and never wait here.
	reloadMu sync.Mutex

	status atomic.Pointer[CatalogStatus]

	refreshInterval time.Duration
	stopRefresh     chan struct{}
	stopOnce        sync.Once
}

// CatalogStatus describes the outcome of the last reload.
type CatalogStatus struct {
	Types      []string  `json:"types"`
	Errors     []string  `json:"errors"`
	ReloadedAt time.Time `json:"reloaded_at"`
}

// CatalogConfig contains configuration for CatalogService.
type CatalogConfig struct {
	// Strict rejects the whole reload when any declaration fails to compile.
	// Otherwise failing declarations are skipped and reported.
	Strict bool

	// RefreshInterval reloads periodically when positive.
	RefreshInterval time.Duration
}

// NewCatalogService creates a catalog service. metrics and bus may be nil.
func NewCatalogService(
	sources []ports.DeclarationSource,
	registry *runtime.Registry,
	metrics ports.Metrics,
	bus *events.Bus,
	clock ports.Clock,
	logger zerolog.Logger,
	cfg CatalogConfig,
) *CatalogService {
	s := &CatalogService{
		sources:         sources,
		registry:        registry,
		metrics:         metrics,
		bus:             bus,
		clock:           clock,
		logger:          logger.With().Str("service", "catalog").Logger(),
		refreshInterval: cfg.RefreshInterval,
		stopRefresh:     make(chan struct{}),
	}
	s.strict.Store(cfg.Strict)
	return s
}

// SetStrict switches between strict and lenient compilation for later reloads.
func (s *CatalogService) SetStrict(strict bool) {
	s.strict.Store(strict)
}

// Start performs the initial load and, when configured, starts the
// background refresh goroutine.
func (s *CatalogService) Start(ctx context.Context) error {
	if err := s.Reload(ctx); err != nil {
		return err
	}
	if s.refreshInterval > 0 {
		go s.refreshLoop()
	}
	return nil
}

// Stop stops the background refresh goroutine.
func (s *CatalogService) Stop() {
	s.stopOnce.Do(func() { close(s.stopRefresh) })
}

func (s *CatalogService) refreshLoop() {
	ticker := time.NewTicker(s.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopRefresh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := s.Reload(ctx); err != nil {
				s.logger.Error().Err(err).Msg("failed to refresh catalog")
			}
			cancel()
		}
	}
}

// Reload reads every source, compiles the declarations and swaps them into
// the registry. A source error, or any compile error in strict mode, keeps
// the previously loaded types and is returned. In lenient mode compile
// errors are recorded in Status and the remaining types are loaded.
func (s *CatalogService) Reload(ctx context.Context) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	decls, err := s.collect(ctx)
	if err != nil {
		return s.fail(ctx, err)
	}

	var (
		model   *compiler.DataModel
		skipped []error
	)
	if s.strict.Load() {
		model, err = compiler.Compile(decls)
		if err != nil {
			return s.fail(ctx, err)
		}
	} else {
		model, skipped = compiler.CompileEach(decls)
		for _, e := range skipped {
			s.logger.Warn().Err(e).Msg("skipping declaration")
		}
	}

	s.registry.Load(ctx, model)

	status := &CatalogStatus{
		Types:      model.IDs(),
		Errors:     errorStrings(skipped),
		ReloadedAt: s.now(),
	}
	s.status.Store(status)

	if s.metrics != nil {
		s.metrics.ObserveReload(model.Len(), nil)
	}
	if s.bus != nil {
		s.bus.Publish(ctx, events.Event{
			Name: events.CatalogReloaded,
			Meta: map[string]any{"types": model.Len(), "skipped": len(skipped)},
		})
	}

	s.logger.Info().
		Int("types", model.Len()).
		Int("skipped", len(skipped)).
		Msg("catalog reloaded")
	return nil
}

func (s *CatalogService) collect(ctx context.Context) ([]schema.TypeDeclaration, error) {
	var decls []schema.TypeDeclaration
	for _, src := range s.sources {
		loaded, err := src.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", src.Name(), err)
		}
		s.logger.Debug().
			Str("source", src.Name()).
			Int("declarations", len(loaded)).
			Msg("source loaded")
		decls = append(decls, loaded...)
	}
	return decls, nil
}

func (s *CatalogService) fail(ctx context.Context, err error) error {
	s.logger.Error().Err(err).Msg("catalog reload failed, keeping loaded types")

	prev := s.Status()
	s.status.Store(&CatalogStatus{
		Types:      prev.Types,
		Errors:     []string{err.Error()},
		ReloadedAt: prev.ReloadedAt,
	})

	if s.metrics != nil {
		s.metrics.ObserveReload(s.registry.Len(), err)
	}
	if s.bus != nil {
		s.bus.Publish(ctx, events.Event{Name: events.CatalogFailed, Err: err})
	}
	return err
}

// Status returns the outcome of the last reload.
func (s *CatalogService) Status() CatalogStatus {
	if st := s.status.Load(); st != nil {
		return *st
	}
	return CatalogStatus{}
}

// Registry returns the registry the catalog loads into.
func (s *CatalogService) Registry() *runtime.Registry {
	return s.registry
}

func (s *CatalogService) now() time.Time {
	if s.clock == nil {
		return time.Now()
	}
	return s.clock.Now()
}

func errorStrings(errs []error) []string {
	out := make([]string, 0, len(errs))
	for _, err := range errs {
		out = append(out, err.Error())
	}
	return out
}

// IsCompileError reports whether err, or any error it wraps, is a compile error.
func IsCompileError(err error) bool {
	var ce *compiler.CompileError
	return errors.As(err, &ce)
}
