package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks event recording.
type Metrics struct {
	Recorded        *prometheus.CounterVec
	PersistFailures prometheus.Counter
	PersistDuration prometheus.Histogram
}

// NewMetrics registers the event recorder metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		Recorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "namex_events_recorded_total",
			Help: "Total number of name request events recorded",
		}, []string{"action", "outcome"}),
		PersistFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "namex_events_persist_failures_total",
			Help: "Total number of events that could not be persisted",
		}),
		PersistDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "namex_events_persist_duration_seconds",
			Help:    "Duration of event persistence",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) incRecorded(action string, outcome Outcome) {
	if m == nil {
		return
	}
	m.Recorded.WithLabelValues(action, string(outcome)).Inc()
}

func (m *Metrics) incPersistFailures() {
	if m == nil {
		return
	}
	m.PersistFailures.Inc()
}

func (m *Metrics) observePersist(seconds float64) {
	if m == nil {
		return
	}
	m.PersistDuration.Observe(seconds)
}
