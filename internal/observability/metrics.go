package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlpilot_http_requests_total",
			Help: "Total number of HTTP requests by matched route.",
		},
		[]string{"method", "route", "status"},
	)

	// Ask latency is dominated by generation calls and the retry loop;
	// the buckets keep sub-second resolution for the read-only routes
	// and stretch to two minutes for full traversals.
	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlpilot_http_request_duration_seconds",
			Help:    "HTTP request latency by matched route.",
			Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"method", "route", "status"},
	)

	authFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlpilot_auth_failures_total",
			Help: "Requests rejected by API key validation.",
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDurationSeconds, authFailuresTotal)
}

// IncrementAuthFailures counts a request rejected for a missing or
// invalid API key.
func IncrementAuthFailures() {
	authFailuresTotal.Inc()
}
