package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the engine's Prometheus collectors. One instance per process,
// registered against the default registry by New.
type Metrics struct {
	Adjustments        *prometheus.CounterVec
	Alerts             *prometheus.CounterVec
	Reservations       *prometheus.CounterVec
	Compensations      prometheus.Counter
	ReservationSeconds prometheus.Histogram
}

func New(namespace string) *Metrics {
	m := &Metrics{
		Adjustments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_adjustments_total",
			Help:      "Stock mutations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		Alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_alerts_total",
			Help:      "Low-stock alerts emitted, by severity.",
		}, []string{"severity"}),
		Reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_reservations_total",
			Help:      "Reservation batches by terminal outcome.",
		}, []string{"outcome"}),
		Compensations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_compensations_total",
			Help:      "Reservation batches that ran rollback after a partial apply.",
		}),
		ReservationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stock_reservation_duration_seconds",
			Help:      "Wall time of Reserve calls.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	prometheus.MustRegister(
		m.Adjustments,
		m.Alerts,
		m.Reservations,
		m.Compensations,
		m.ReservationSeconds,
	)
	return m
}

// NewNop returns unregistered collectors for tests, so parallel test packages
// never collide on the default registry.
func NewNop() *Metrics {
	return &Metrics{
		Adjustments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stock_adjustments_total",
		}, []string{"operation", "outcome"}),
		Alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stock_alerts_total",
		}, []string{"severity"}),
		Reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stock_reservations_total",
		}, []string{"outcome"}),
		Compensations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stock_compensations_total",
		}),
		ReservationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "stock_reservation_duration_seconds",
		}),
	}
}
