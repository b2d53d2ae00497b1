package notification

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks notification delivery.
type Metrics struct {
	Enqueued    prometheus.Counter
	Rejected    prometheus.Counter
	Delivered   prometheus.Counter
	SendErrors  prometheus.Counter
	QueueLength prometheus.Gauge
}

func NewMetrics() *Metrics {
	return &Metrics{
		Enqueued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "namex_notifications_enqueued_total",
			Help: "Total number of notifications queued for delivery",
		}),
		Rejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "namex_notifications_rejected_total",
			Help: "Total number of notifications refused because the queue was full",
		}),
		Delivered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "namex_notifications_delivered_total",
			Help: "Total number of notifications delivered to the broker",
		}),
		SendErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "namex_notifications_send_errors_total",
			Help: "Total number of failed delivery attempts",
		}),
		QueueLength: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "namex_notifications_queue_length",
			Help: "Notifications waiting for delivery",
		}),
	}
}

func (m *Metrics) enqueued(queued int) {
	if m == nil {
		return
	}
	m.Enqueued.Inc()
	m.QueueLength.Set(float64(queued))
}

func (m *Metrics) rejected(queued int) {
	if m == nil {
		return
	}
	m.Rejected.Inc()
	m.QueueLength.Set(float64(queued))
}

func (m *Metrics) delivered(n, queued int) {
	if m == nil {
		return
	}
	m.Delivered.Add(float64(n))
	m.QueueLength.Set(float64(queued))
}

func (m *Metrics) sendError() {
	if m == nil {
		return
	}
	m.SendErrors.Inc()
}
