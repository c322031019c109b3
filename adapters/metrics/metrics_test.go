package metrics_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/artpar/eventdsl/adapters/metrics"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather error: %v", err)
	}
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		out[f.GetName()] = f
	}
	return out
}

func TestObserveValidation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	m.ObserveValidation("meeting", true, 0, time.Millisecond)
	m.ObserveValidation("meeting", false, 2, time.Millisecond)
	m.ObserveValidation("holiday", false, 1, time.Millisecond)

	families := gather(t, reg)

	total, ok := families["eventdsl_validations_total"]
	if !ok {
		t.Fatal("eventdsl_validations_total metric not found")
	}
	if len(total.GetMetric()) != 3 {
		t.Errorf("expected 3 metric series, got %d", len(total.GetMetric()))
	}

	errs, ok := families["eventdsl_validation_errors_total"]
	if !ok {
		t.Fatal("eventdsl_validation_errors_total metric not found")
	}
	var sum float64
	for _, metric := range errs.GetMetric() {
		sum += metric.GetCounter().GetValue()
	}
	if sum != 3 {
		t.Errorf("validation errors = %v, want 3", sum)
	}

	if _, ok := families["eventdsl_validation_duration_seconds"]; !ok {
		t.Error("eventdsl_validation_duration_seconds metric not found")
	}
}

func TestObserveRender(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	m.ObserveRender("meeting", nil, time.Microsecond)
	m.ObserveRender("meeting", errors.New("boom"), time.Microsecond)

	families := gather(t, reg)
	renders, ok := families["eventdsl_renders_total"]
	if !ok {
		t.Fatal("eventdsl_renders_total metric not found")
	}
	if len(renders.GetMetric()) != 2 {
		t.Errorf("expected 2 metric series (ok, error), got %d", len(renders.GetMetric()))
	}
}

func TestObserveReload(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	m.ObserveReload(4, nil)
	m.ObserveReload(3, errors.New("compile failed"))

	families := gather(t, reg)

	loaded := families["eventdsl_types_loaded"]
	if loaded == nil || loaded.GetMetric()[0].GetGauge().GetValue() != 3 {
		t.Errorf("types_loaded = %v, want 3", loaded)
	}
	if v := families["eventdsl_catalog_reloads_total"].GetMetric()[0].GetCounter().GetValue(); v != 1 {
		t.Errorf("reloads = %v, want 1", v)
	}
	if v := families["eventdsl_catalog_reload_errors_total"].GetMetric()[0].GetCounter().GetValue(); v != 1 {
		t.Errorf("reload errors = %v, want 1", v)
	}
	if _, ok := families["eventdsl_catalog_last_reload_timestamp"]; !ok {
		t.Error("eventdsl_catalog_last_reload_timestamp metric not found")
	}
}

func TestHandler(t *testing.T) {
	m := metrics.New()
	m.ObserveValidation("meeting", true, 0, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"eventdsl_validations_total", "go_goroutines"} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}
