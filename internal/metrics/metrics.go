// Package metrics exposes Prometheus instrumentation for the scoring batch.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EvaluationsTotal counts individual prediction evaluations by outcome.
	EvaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prediction_evaluations_total",
		Help: "Number of prediction evaluations, by result.",
	}, []string{"result"}) // result: evaluated | error

	// BatchRunsTotal counts scoring batch executions.
	BatchRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prediction_batch_runs_total",
		Help: "Number of scoring batch runs.",
	})

	// BatchDuration observes wall time of a full scoring batch.
	BatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "prediction_batch_duration_seconds",
		Help:    "Duration of scoring batch runs.",
		Buckets: prometheus.DefBuckets,
	})
)
