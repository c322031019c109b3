package openapi

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Service caches the generated spec until the loaded types change.
type Service struct {
	types  func() []Type
	gen    *Generator
	logger zerolog.Logger

	cache atomic.Pointer[Spec]
	mu    sync.Mutex // Protects cache generation
}

// NewService creates a service that describes the types returned by types.
func NewService(types func() []Type, logger zerolog.Logger) *Service {
	return &Service{
		types:  types,
		gen:    NewGenerator(),
		logger: logger,
	}
}

// Spec returns the spec with baseURL as its only server.
func (s *Service) Spec(baseURL string) *Spec {
	if cached := s.cache.Load(); cached != nil {
		return s.cloneSpecWithServer(cached, baseURL)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring lock
	if cached := s.cache.Load(); cached != nil {
		return s.cloneSpecWithServer(cached, baseURL)
	}

	types := s.types()
	spec := s.gen.Generate(types)
	s.cache.Store(spec)
	s.logger.Debug().Int("types", len(types)).Msg("openapi spec generated")

	return s.cloneSpecWithServer(spec, baseURL)
}

// InvalidateCache forces the next Spec call to regenerate the spec.
func (s *Service) InvalidateCache() {
	s.cache.Store(nil)
}

// cloneSpecWithServer creates a copy of the spec with the given server URL.
func (s *Service) cloneSpecWithServer(spec *Spec, baseURL string) *Spec {
	data, err := json.Marshal(spec)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to clone openapi spec")
		return spec
	}

	var cloned Spec
	if err := json.Unmarshal(data, &cloned); err != nil {
		s.logger.Error().Err(err).Msg("failed to unmarshal cloned openapi spec")
		return spec
	}

	cloned.Servers = []Server{{URL: baseURL, Description: "Current server"}}
	return &cloned
}
