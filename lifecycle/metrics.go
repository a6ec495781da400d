package lifecycle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the process-level counters surfaced alongside the
// healthcheck endpoint.
type Metrics struct {
	BlocksProcessed *prometheus.CounterVec
	DispatchFailures *prometheus.CounterVec
	JobsCompleted   prometheus.Counter
}

// NewMetrics registers and returns the process metrics against the default
// registry.
func NewMetrics() *Metrics {
	return &Metrics{
		BlocksProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_blocks_processed_total",
			Help: "Number of blocks whose handler ran to completion, by chain.",
		}, []string{"chain"}),
		DispatchFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_dispatch_failures_total",
			Help: "Number of downstream dispatch failures, by channel.",
		}, []string{"channel"}),
		JobsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "monitor_jobs_completed_total",
			Help: "Number of FinishedOperatorJob events observed.",
		}),
	}
}
