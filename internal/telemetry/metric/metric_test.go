package metric

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCommandCounters(t *testing.T) {
	m := New()

	m.CommandsTotal.WithLabelValues("GET", "ok").Inc()
	m.CommandsTotal.WithLabelValues("GET", "ok").Inc()
	m.CommandsTotal.WithLabelValues("SET", "error").Inc()

	if got := testutil.ToFloat64(m.CommandsTotal.WithLabelValues("GET", "ok")); got != 2 {
		t.Errorf("GET/ok = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.CommandsTotal.WithLabelValues("SET", "error")); got != 1 {
		t.Errorf("SET/error = %v, want 1", got)
	}
}

func TestConnectionGauge(t *testing.T) {
	m := New()

	m.ConnectionsActive.Inc()
	m.ConnectionsActive.Inc()
	m.ConnectionsActive.Dec()

	if got := testutil.ToFloat64(m.ConnectionsActive); got != 1 {
		t.Errorf("ConnectionsActive = %v, want 1", got)
	}
}

func TestKeyCountGauge(t *testing.T) {
	m := New()
	m.RegisterKeyCount(func() float64 { return 7 })

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	if !strings.Contains(body, "redis_keys 7") {
		t.Errorf("metrics output missing redis_keys gauge:\n%s", body)
	}
}

func TestHandlerServesRegisteredMetrics(t *testing.T) {
	m := New()
	m.KeysExpiredTotal.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "redis_keys_expired_total 1") {
		t.Error("metrics output missing redis_keys_expired_total")
	}
}
