// Package metrics holds the registry's Prometheus instruments.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks transition outcomes, event publishing and cache efficiency.
type Metrics struct {
	Transitions        *prometheus.CounterVec
	TransitionDuration *prometheus.HistogramVec
	PublishFailures    prometheus.Counter
	CacheRequests      *prometheus.CounterVec
}

// New registers all registry metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registry_transitions_total",
			Help: "Transitions by name and result code",
		}, []string{"transition", "result"}),
		TransitionDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "registry_transition_duration_seconds",
			Help:    "Duration of transitions including the store transaction",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"transition"}),
		PublishFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "registry_event_publish_failures_total",
			Help: "Committed transitions whose event could not be published",
		}),
		CacheRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registry_cache_requests_total",
			Help: "Snapshot cache lookups by result (hit, miss, error)",
		}, []string{"result"}),
	}
}

// ObserveTransition records one transition outcome.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveTransition(name, result string, start time.Time) {
	m.Transitions.WithLabelValues(name, result).Inc()
	m.TransitionDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
}

// CacheResult counts a cache lookup.
func (m *Metrics) CacheResult(result string) {
	m.CacheRequests.WithLabelValues(result).Inc()
}
