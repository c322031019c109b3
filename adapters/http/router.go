package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/artpar/eventdsl/adapters/metrics"
	"github.com/artpar/eventdsl/app"
	"github.com/artpar/eventdsl/core/openapi"
	"github.com/artpar/eventdsl/core/runtime"
)

// RouterConfig holds optional configuration for the router.
type RouterConfig struct {
	Metrics *metrics.Collector // Optional; enables request metrics and /metrics
	Catalog *app.CatalogService
	OpenAPI *openapi.Service // Optional; enables /.well-known/openapi.json and /swagger/
	Timeout time.Duration    // Per-request timeout (default 30s)
}

// NewRouter creates the HTTP router.
func NewRouter(registry *runtime.Registry, logger zerolog.Logger, cfg RouterConfig) chi.Router {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	h := NewHandler(registry, cfg.Catalog, logger)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Timeout))

	if cfg.Metrics != nil {
		r.Use(NewMetricsMiddleware(cfg.Metrics))
		r.Handle("/metrics", cfg.Metrics.Handler())
	}

	r.Get("/healthz", h.Health)

	if cfg.OpenAPI != nil {
		r.Get("/.well-known/openapi.json", OpenAPISpec(cfg.OpenAPI))
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/.well-known/openapi.json"),
		))
	}

	r.Route("/types", func(r chi.Router) {
		r.Get("/", h.ListTypes)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetType)
			r.Get("/schema", h.GetSchema)
			r.Get("/behavior", h.GetBehavior)
			r.Post("/validate", h.Validate)
			r.Post("/render", h.Render)
		})
	})

	r.Get("/catalog", h.CatalogStatus)
	r.Post("/catalog/reload", h.ReloadCatalog)

	return r
}

// NewMetricsMiddleware records request durations by route pattern.
func NewMetricsMiddleware(m *metrics.Collector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/metrics" || r.URL.Path == "/healthz" {
				next.ServeHTTP(w, r)
				return
			}

			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			m.RequestDuration.
				WithLabelValues(r.Method, route, statusLabel(ww.Status())).
				Observe(time.Since(start).Seconds())
		})
	}
}

// statusLabel returns a string label for the status code.
func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "other"
	}
}

// NewLoggingMiddleware logs every request at debug level.
func NewLoggingMiddleware(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			// Skip logging for health checks and metrics
			if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
				return
			}

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}
