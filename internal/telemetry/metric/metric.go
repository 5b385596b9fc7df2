// Package metric provides Prometheus metrics for the server.
//
// It exposes command throughput, command latency, connection counts and
// cache size in Prometheus format on a dedicated HTTP endpoint.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics, registered on a private registry
// so tests can create independent instances.
type Metrics struct {
	reg *prometheus.Registry

	// CommandsTotal counts dispatched commands by name and outcome.
	CommandsTotal *prometheus.CounterVec

	// CommandDuration observes dispatch latency per command.
	CommandDuration *prometheus.HistogramVec

	// ConnectionsActive tracks currently open client connections.
	ConnectionsActive prometheus.Gauge

	// ConnectionsTotal counts accepted client connections.
	ConnectionsTotal prometheus.Counter

	// KeysExpiredTotal counts entries removed by lazy expiration.
	KeysExpiredTotal prometheus.Counter
}

// New creates a Metrics instance with all collectors registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		reg: reg,
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "redis",
			Name:      "commands_total",
			Help:      "Number of dispatched commands by name and outcome.",
		}, []string{"command", "status"}),
		CommandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "redis",
			Name:      "command_duration_seconds",
			Help:      "Command dispatch latency.",
			Buckets:   prometheus.ExponentialBuckets(0.000005, 4, 10),
		}, []string{"command"}),
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "redis",
			Name:      "connections_active",
			Help:      "Currently open client connections.",
		}),
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "redis",
			Name:      "connections_total",
			Help:      "Accepted client connections.",
		}),
		KeysExpiredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "redis",
			Name:      "keys_expired_total",
			Help:      "Entries removed by lazy expiration on read.",
		}),
	}

	reg.MustRegister(
		m.CommandsTotal,
		m.CommandDuration,
		m.ConnectionsActive,
		m.ConnectionsTotal,
		m.KeysExpiredTotal,
		collectors.NewGoCollector(),
	)

	return m
}

// RegisterKeyCount registers a gauge backed by the given function, used to
// report the current number of keys in the store.
func (m *Metrics) RegisterKeyCount(fn func() float64) {
	m.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "redis",
		Name:      "keys",
		Help:      "Current number of keys in the store, including not yet reclaimed expired entries.",
	}, fn))
}

// Handler returns an HTTP handler serving the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
