package lifecycle

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetricsCountersIncrement(t *testing.T) {
	m := NewMetrics()

	m.BlocksProcessed.WithLabelValues("eth").Inc()
	m.BlocksProcessed.WithLabelValues("eth").Inc()
	if got := testutil.ToFloat64(m.BlocksProcessed.WithLabelValues("eth")); got != 2 {
		t.Errorf("BlocksProcessed[eth] = %v, want 2", got)
	}

	m.DispatchFailures.WithLabelValues("queue").Inc()
	if got := testutil.ToFloat64(m.DispatchFailures.WithLabelValues("queue")); got != 1 {
		t.Errorf("DispatchFailures[queue] = %v, want 1", got)
	}

	m.JobsCompleted.Add(3)
	if got := testutil.ToFloat64(m.JobsCompleted); got != 3 {
		t.Errorf("JobsCompleted = %v, want 3", got)
	}
}
