// Package metrics provides Prometheus metrics collection for the event type
// runtime.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/artpar/eventdsl/ports"
)

const namespace = "eventdsl"

// DefaultBuckets are the duration histogram buckets, in seconds.
func DefaultBuckets() []float64 {
	return []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05, .1}
}

// Collector holds all Prometheus metrics of the runtime.
type Collector struct {
	gatherer prometheus.Gatherer

	// Validation metrics
	ValidationsTotal   *prometheus.CounterVec
	ValidationErrors   *prometheus.CounterVec
	ValidationDuration *prometheus.HistogramVec

	// Render metrics
	RendersTotal   *prometheus.CounterVec
	RenderDuration *prometheus.HistogramVec

	// Catalog metrics
	TypesLoaded      prometheus.Gauge
	Reloads          prometheus.Counter
	ReloadErrors     prometheus.Counter
	LastReloadSecond prometheus.Gauge

	// HTTP metrics
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
}

// New creates a collector on its own registry, with Go and process
// collectors included.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return NewWithRegistry(reg)
}

// NewWithRegistry creates a collector whose metrics are registered with reg.
// Useful for testing to avoid global state. When reg is also a Gatherer,
// Handler serves it.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	c := &Collector{
		ValidationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validations_total",
				Help:      "Total number of event validations",
			},
			[]string{"type", "result"},
		),
		ValidationErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validation_errors_total",
				Help:      "Total number of validation error messages produced",
			},
			[]string{"type"},
		),
		ValidationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "validation_duration_seconds",
				Help:      "Validation duration in seconds",
				Buckets:   DefaultBuckets(),
			},
			[]string{"type"},
		),
		RendersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "renders_total",
				Help:      "Total number of event renders",
			},
			[]string{"type", "result"},
		),
		RenderDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "render_duration_seconds",
				Help:      "Render duration in seconds",
				Buckets:   DefaultBuckets(),
			},
			[]string{"type"},
		),
		TypesLoaded: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "types_loaded",
				Help:      "Number of compiled event types currently active",
			},
		),
		Reloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "catalog_reloads_total",
				Help:      "Total number of successful catalog reloads",
			},
		),
		ReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "catalog_reload_errors_total",
				Help:      "Total number of catalog reloads that reported errors",
			},
		),
		LastReloadSecond: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "catalog_last_reload_timestamp",
				Help:      "Unix timestamp of the last catalog reload",
			},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Number of HTTP requests currently being served",
			},
		),
	}
	if g, ok := reg.(prometheus.Gatherer); ok {
		c.gatherer = g
	}
	return c
}

// ObserveValidation implements ports.Metrics.
func (c *Collector) ObserveValidation(typeID string, valid bool, errorCount int, d time.Duration) {
	c.ValidationsTotal.WithLabelValues(typeID, resultLabel(valid)).Inc()
	if errorCount > 0 {
		c.ValidationErrors.WithLabelValues(typeID).Add(float64(errorCount))
	}
	c.ValidationDuration.WithLabelValues(typeID).Observe(d.Seconds())
}

// ObserveRender implements ports.Metrics.
func (c *Collector) ObserveRender(typeID string, err error, d time.Duration) {
	c.RendersTotal.WithLabelValues(typeID, resultLabel(err == nil)).Inc()
	c.RenderDuration.WithLabelValues(typeID).Observe(d.Seconds())
}

// ObserveReload implements ports.Metrics.
func (c *Collector) ObserveReload(loaded int, err error) {
	c.TypesLoaded.Set(float64(loaded))
	c.LastReloadSecond.SetToCurrentTime()
	if err != nil {
		c.ReloadErrors.Inc()
		return
	}
	c.Reloads.Inc()
}

// Handler returns the HTTP handler for the /metrics endpoint. Collectors
// registered with a Registerer that cannot gather serve the default gatherer.
func (c *Collector) Handler() http.Handler {
	if c.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

func resultLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

// Nop discards all observations.
type Nop struct{}

func (Nop) ObserveValidation(string, bool, int, time.Duration) {}
func (Nop) ObserveRender(string, error, time.Duration)         {}
func (Nop) ObserveReload(int, error)                           {}

var (
	_ ports.Metrics = (*Collector)(nil)
	_ ports.Metrics = Nop{}
)
