package ingestor

import (
	"math/big"
	"testing"

	"github.com/holograph-network/monitor/job"
)

type fakePusher struct {
	pushed []job.BlockJob
}

func (f *fakePusher) Push(j job.BlockJob) { f.pushed = append(f.pushed, j) }

func TestEnqueueRangeIsExclusiveOfFrom(t *testing.T) {
	i := New(nil)
	q := &fakePusher{}
	i.enqueueRange("eth", 10, 13, q)
	if len(q.pushed) != 3 {
		t.Fatalf("expected 3 jobs for (10,13], got %d", len(q.pushed))
	}
	for idx, want := range []uint64{11, 12, 13} {
		if q.pushed[idx].BlockNumber != want {
			t.Errorf("pushed[%d] = %d, want %d", idx, q.pushed[idx].BlockNumber, want)
		}
	}
}

func TestEnqueueRangeNoOpWhenToNotGreaterThanFrom(t *testing.T) {
	i := New(nil)
	q := &fakePusher{}
	i.enqueueRange("eth", 10, 10, q)
	i.enqueueRange("eth", 10, 5, q)
	if len(q.pushed) != 0 {
		t.Errorf("expected no jobs pushed, got %d", len(q.pushed))
	}
}

func TestOnHeaderBackfillsGap(t *testing.T) {
	i := New(nil)
	q := &fakePusher{}
	i.setLastSeen("eth", 100)

	i.onHeader("eth", big.NewInt(103), q)

	if len(q.pushed) != 3 {
		t.Fatalf("expected backfill 101,102 plus the new head 103, got %d jobs: %+v", len(q.pushed), q.pushed)
	}
	wantBlocks := []uint64{101, 102, 103}
	for idx, want := range wantBlocks {
		if q.pushed[idx].BlockNumber != want {
			t.Errorf("pushed[%d] = %d, want %d", idx, q.pushed[idx].BlockNumber, want)
		}
	}
	if got := i.getLastSeen("eth"); got != 103 {
		t.Errorf("lastSeen = %d, want 103", got)
	}
}

func TestOnHeaderNoGapPushesOneJob(t *testing.T) {
	i := New(nil)
	q := &fakePusher{}
	i.setLastSeen("eth", 100)

	i.onHeader("eth", big.NewInt(101), q)

	if len(q.pushed) != 1 || q.pushed[0].BlockNumber != 101 {
		t.Fatalf("expected exactly one job for 101, got %+v", q.pushed)
	}
}
