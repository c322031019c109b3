package bootstrap

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/artpar/eventdsl/core/events"
)

// RegisterHooks subscribes the built-in catalog event handlers to bus.
func RegisterHooks(bus *events.Bus, logger zerolog.Logger) {
	bus.Subscribe("type.*", logTypeChange(logger))
	bus.Subscribe(events.CatalogFailed, logCatalogFailure(logger))

	logger.Debug().Msg("catalog hooks registered")
}

// logTypeChange records every type that enters or leaves the registry.
func logTypeChange(logger zerolog.Logger) events.Handler {
	return func(ctx context.Context, e events.Event) error {
		logger.Info().
			Str("event", e.Name).
			Str("type", e.TypeID).
			Str("source", e.Source).
			Msg("event type changed")
		return nil
	}
}

// logCatalogFailure reports a rejected reload at warn level; the previous
// types stay active.
func logCatalogFailure(logger zerolog.Logger) events.Handler {
	return func(ctx context.Context, e events.Event) error {
		logger.Warn().Err(e.Err).Msg("catalog reload rejected")
		return nil
	}
}
