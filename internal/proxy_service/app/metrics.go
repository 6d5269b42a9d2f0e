package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	poolReservationsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "proxycall",
			Name:      "pool_reservations_total",
			Help:      "Total number of pool reservation attempts by outcome.",
		},
		[]string{"outcome"}, // reserved, lost_race, exhausted, error
	)

	poolReservationAttemptsHist = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "proxycall",
			Name:      "pool_reservation_attempts",
			Help:      "Number of scan attempts needed per successful reservation.",
			Buckets:   []float64{1, 2, 3, 5, 8, 10},
		},
	)

	poolTransitionsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "proxycall",
			Name:      "pool_transitions_total",
			Help:      "Total number of pool entry state transitions.",
		},
		[]string{"transition"}, // finalize, release, replenish, purge
	)

	confirmationsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "proxycall",
			Name:      "confirmations_total",
			Help:      "Total number of confirmation workflow operations by outcome.",
		},
		[]string{"operation", "outcome"},
	)

	routingDecisionsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "proxycall",
			Name:      "routing_decisions_total",
			Help:      "Total number of routing decisions.",
		},
		[]string{"channel", "kind", "reason"},
	)

	expiredPendingCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "proxycall",
			Name:      "expired_pending_total",
			Help:      "Total number of pending confirmations moved to EXPIRED.",
		},
	)

	sweepDurationHist = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "proxycall",
			Name:      "expiry_sweep_duration_seconds",
			Help:      "Duration of expiry sweeps.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)
