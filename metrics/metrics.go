// Package metrics holds the Prometheus collectors shared by the lookup client
// and the session controller.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scan-lookup pipeline.
type Metrics struct {
	Registry          *prometheus.Registry
	LookupsTotal      *prometheus.CounterVec
	LookupDuration    prometheus.Histogram
	LookupErrorsTotal *prometheus.CounterVec
	SessionsTotal     *prometheus.CounterVec
	DiscardedSymbols  prometheus.Counter
}

// New constructs and registers all metrics on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	lookups := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barscan_lookup_requests_total",
			Help: "Total product lookups by outcome.",
		},
		[]string{"outcome"},
	)
	duration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "barscan_lookup_duration_seconds",
			Help:    "Latency of product lookup round trips.",
			Buckets: prometheus.DefBuckets,
		},
	)
	lookupErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barscan_lookup_errors_total",
			Help: "Total failed product lookups by error type.",
		},
		[]string{"error_type"},
	)
	sessions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barscan_sessions_total",
			Help: "Total finished capture sessions by outcome.",
		},
		[]string{"outcome"},
	)
	discarded := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "barscan_symbols_discarded_total",
			Help: "Symbol events ignored because the session already left capturing.",
		},
	)

	registry.MustRegister(lookups, duration, lookupErrors, sessions, discarded)

	return &Metrics{
		Registry:          registry,
		LookupsTotal:      lookups,
		LookupDuration:    duration,
		LookupErrorsTotal: lookupErrors,
		SessionsTotal:     sessions,
		DiscardedSymbols:  discarded,
	}
}

// IncLookup increments the lookup counter for an outcome label.
func (m *Metrics) IncLookup(outcome string) {
	if m == nil {
		return
	}
	m.LookupsTotal.WithLabelValues(outcome).Inc()
}

// ObserveDuration records a lookup round-trip duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.LookupDuration.Observe(d.Seconds())
}

// IncError increments the lookup error counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.LookupErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncSession increments the finished sessions counter.
func (m *Metrics) IncSession(outcome string) {
	if m == nil {
		return
	}
	m.SessionsTotal.WithLabelValues(outcome).Inc()
}

// IncDiscarded counts a symbol event dropped after the first.
func (m *Metrics) IncDiscarded() {
	if m == nil {
		return
	}
	m.DiscardedSymbols.Inc()
}
