package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	traversalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlpilot_traversals_total",
			Help: "Total number of completed workflow traversals by final status.",
		},
		[]string{"status"},
	)
	traversalDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sqlpilot_traversal_duration_seconds",
			Help:    "End-to-end traversal latency.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)
	stageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlpilot_stage_duration_seconds",
			Help:    "Per-stage latency within a traversal.",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 15, 30},
		},
		[]string{"stage"},
	)
	retriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlpilot_retries_total",
			Help: "Total number of reflector repair passes across all traversals.",
		},
	)
	generationCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlpilot_generation_calls_total",
			Help: "Total number of generation backend calls by stage and outcome.",
		},
		[]string{"stage", "outcome"},
	)
	resultRowsReturned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sqlpilot_result_rows_returned",
			Help:    "Row counts of successfully executed queries after cap enforcement.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
		},
	)
	archiveWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlpilot_archive_writes_total",
			Help: "Total number of result archive writes by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		traversalsTotal,
		traversalDurationSeconds,
		stageDurationSeconds,
		retriesTotal,
		generationCallsTotal,
		resultRowsReturned,
		archiveWritesTotal,
	)
}

func ObserveTraversal(status string, elapsed time.Duration) {
	traversalsTotal.WithLabelValues(status).Inc()
	traversalDurationSeconds.Observe(elapsed.Seconds())
}

func ObserveStage(stage string, elapsed time.Duration) {
	stageDurationSeconds.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func IncrementRetries() {
	retriesTotal.Inc()
}

func ObserveGenerationCall(stage, outcome string) {
	generationCallsTotal.WithLabelValues(stage, outcome).Inc()
}

func ObserveResultRows(count int) {
	if count < 0 {
		count = 0
	}
	resultRowsReturned.Observe(float64(count))
}

func ObserveArchiveWrite(outcome string) {
	archiveWritesTotal.WithLabelValues(outcome).Inc()
}
