package gatekeeper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for gatekeeper decisions
var (
	decisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_decisions_total",
			Help: "Total number of gatekeeper access decisions",
		},
		[]string{"outcome", "stage", "reason"},
	)

	decisionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gatekeeper_decision_duration_seconds",
			Help:    "Gatekeeper decision duration in seconds, timing envelope included",
			Buckets: []float64{.025, .05, .1, .15, .2, .25, .3, .5, 1, 2.5},
		},
		[]string{"outcome"},
	)
)

func recordDecision(outcome, stage, reason string, elapsed time.Duration) {
	decisionsTotal.WithLabelValues(outcome, stage, reason).Inc()
	decisionDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}
