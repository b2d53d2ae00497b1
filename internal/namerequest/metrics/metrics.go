package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the name request engine.
type Metrics struct {
	// Orchestrated operations by action and outcome
	Actions *prometheus.CounterVec

	ActionLatency *prometheus.HistogramVec

	// Checkouts refused because another token holds the request
	LockConflicts prometheus.Counter

	// Per-payment refund results: refunded, skipped, failed
	Refunds *prometheus.CounterVec

	RefundedAmount prometheus.Counter

	// Side effects that failed after the state change was committed
	SideEffectFailures *prometheus.CounterVec
}

// New creates a new Metrics instance with all name request metrics registered.
func New() *Metrics {
	return &Metrics{
		Actions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "namex_request_actions_total",
			Help: "Total name request operations by action and outcome",
		}, []string{"action", "outcome"}),

		ActionLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "namex_request_action_duration_seconds",
			Help:    "Duration of name request operations including side effects",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"action"}),

		LockConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "namex_request_lock_conflicts_total",
			Help: "Total checkout attempts refused because the request is held",
		}),

		Refunds: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "namex_refund_payments_total",
			Help: "Total payments processed by the refund coordinator by result",
		}, []string{"result"}),

		RefundedAmount: promauto.NewCounter(prometheus.CounterOpts{
			Name: "namex_refunded_amount_total",
			Help: "Sum of receipt amounts refunded",
		}),

		SideEffectFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "namex_side_effect_failures_total",
			Help: "Total isolated side effect failures by target",
		}, []string{"target"}), // target: "search", "payment", "notification", "event"
	}
}

func (m *Metrics) IncrementAction(action, outcome string) {
	if m != nil {
		m.Actions.WithLabelValues(action, outcome).Inc()
	}
}

func (m *Metrics) ObserveActionLatency(action string, d time.Duration) {
	if m != nil {
		m.ActionLatency.WithLabelValues(action).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementLockConflict() {
	if m != nil {
		m.LockConflicts.Inc()
	}
}

// IncrementRefund records one payment outcome and the amount refunded for it.
func (m *Metrics) IncrementRefund(result string, amount float64) {
	if m == nil {
		return
	}
	m.Refunds.WithLabelValues(result).Inc()
	if amount > 0 {
		m.RefundedAmount.Add(amount)
	}
}

func (m *Metrics) IncrementSideEffectFailure(target string) {
	if m != nil {
		m.SideEffectFailures.WithLabelValues(target).Inc()
	}
}
