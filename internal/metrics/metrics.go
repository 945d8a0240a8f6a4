package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "reservation"

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	BookingRequests    *prometheus.CounterVec
	Transitions        *prometheus.CounterVec
	Conflicts          prometheus.Counter
	WaitlistEnqueued   prometheus.Counter
	WaitlistPromotions prometheus.Counter
	WaitlistExpired    prometheus.Counter
	TxDuration         *prometheus.HistogramVec
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer in
// the server and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		BookingRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_requests_total",
			Help:      "Booking requests by outcome.",
		}, []string{"outcome"}),

		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_transitions_total",
			Help:      "Booking status transitions.",
		}, []string{"from", "to"}),

		Conflicts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_conflicts_total",
			Help:      "Requests rejected or queued because of an overlapping active booking.",
		}),

		WaitlistEnqueued: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "waitlist_enqueued_total",
			Help:      "Waitlist entries created.",
		}),

		WaitlistPromotions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "waitlist_promotions_total",
			Help:      "Waitlist entries promoted to bookings.",
		}),

		WaitlistExpired: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "waitlist_expired_total",
			Help:      "Waitlist entries expired during promotion.",
		}),

		TxDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "engine_tx_duration_seconds",
			Help:      "Duration of engine transactions by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

// ObserveTx records how long an engine operation held its transaction.
func (m *Metrics) ObserveTx(operation string, start time.Time) {
	if m == nil {
		return
	}
	m.TxDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncRequest(outcome string) {
	if m == nil {
		return
	}
	m.BookingRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncTransition(from, to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) IncConflict() {
	if m == nil {
		return
	}
	m.Conflicts.Inc()
}

func (m *Metrics) IncEnqueued() {
	if m == nil {
		return
	}
	m.WaitlistEnqueued.Inc()
}

func (m *Metrics) AddPromotions(n int) {
	if m == nil || n == 0 {
		return
	}
	m.WaitlistPromotions.Add(float64(n))
}

func (m *Metrics) AddExpired(n int) {
	if m == nil || n == 0 {
		return
	}
	m.WaitlistExpired.Add(float64(n))
}
