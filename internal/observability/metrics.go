// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Lookup outcomes used as the "outcome" label.
const (
	OutcomeSuccess   = "success"
	OutcomeNotFound  = "not_found"
	OutcomeService   = "service_error"
	OutcomeMalformed = "malformed"
	OutcomeCanceled  = "canceled"
)

// Metrics holds the Prometheus metrics for event time selection.
type Metrics struct {
	registry *prometheus.Registry

	InputsTotal      prometheus.Counter
	LookupsTotal     *prometheus.CounterVec
	LookupDuration   prometheus.Histogram
	ServiceAvailable prometheus.Gauge
	ActiveSessions   prometheus.Gauge
}

// NewMetrics creates a Metrics instance registered on its own registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "evtimesel"
	}

	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		InputsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lookup",
			Name:      "inputs_total",
			Help:      "Total number of identifier inputs received before debouncing",
		}),
		LookupsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lookup",
			Name:      "requests_total",
			Help:      "Total number of event lookups by outcome",
		}, []string{"outcome"}),
		LookupDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "lookup",
			Name:      "duration_seconds",
			Help:      "Event lookup latency",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		ServiceAvailable: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "service",
			Name:      "available",
			Help:      "1 if the event service answered the version probe, 0 otherwise",
		}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "web",
			Name:      "active_sessions",
			Help:      "Number of open builder page sessions",
		}),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordInput counts one identifier keystroke.
func (m *Metrics) RecordInput() {
	m.InputsTotal.Inc()
}

// RecordLookup records a finished lookup.
func (m *Metrics) RecordLookup(outcome string, d time.Duration) {
	m.LookupsTotal.WithLabelValues(outcome).Inc()
	m.LookupDuration.Observe(d.Seconds())
}

// SetServiceAvailable updates the availability gauge.
func (m *Metrics) SetServiceAvailable(ok bool) {
	if ok {
		m.ServiceAvailable.Set(1)
		return
	}
	m.ServiceAvailable.Set(0)
}
