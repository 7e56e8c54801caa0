package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initCallerMetrics() {
	r.CallerAttemptsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "leader_caller_attempts_total",
			Help: "Leader call attempts by outcome",
		},
		[]string{"service", "outcome"}, // ok, retry, error
	)

	r.CallerRetriesTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "leader_caller_retries_total",
			Help: "Total number of leader call retries after backoff",
		},
	)

	r.CallerErrorsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "leader_caller_errors_total",
			Help: "Terminal leader call errors by kind",
		},
		[]string{"service", "kind"}, // service_not_started, leader_not_found
	)

	r.CallerDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "leader_caller_duration_seconds",
			Help:    "End-to-end duration of leader calls in seconds",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1.0, 5.0, 15.0, 60.0},
		},
	)
}
