package lifecycle

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestLifecycleWaitRunsExitHooksAfterWorkers(t *testing.T) {
	l := New()

	var workerRan, exitRan int32
	l.Go(func(ctx context.Context) error {
		atomic.StoreInt32(&workerRan, 1)
		return nil
	})
	l.OnExit(func() error {
		if atomic.LoadInt32(&workerRan) != 1 {
			t.Errorf("exit hook ran before its worker finished")
		}
		atomic.StoreInt32(&exitRan, 1)
		return nil
	})

	if err := l.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if atomic.LoadInt32(&exitRan) != 1 {
		t.Errorf("expected the exit hook to run")
	}
}

func TestLifecycleWorkerErrorCancelsContext(t *testing.T) {
	l := New()
	boom := errors.New("boom")

	l.Go(func(ctx context.Context) error {
		return boom
	})
	l.Go(func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})

	err := l.Wait()
	if !errors.Is(err, boom) {
		t.Fatalf("Wait() = %v, want %v", err, boom)
	}
}

func TestLifecycleShutdownCancelsContext(t *testing.T) {
	l := New()
	done := make(chan struct{})
	l.Go(func(ctx context.Context) error {
		<-ctx.Done()
		close(done)
		return nil
	})

	l.Shutdown()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("worker did not observe Shutdown's cancellation")
	}
	l.Wait()
}

func TestLifecycleExitHooksRunOnce(t *testing.T) {
	l := New()
	var calls int32
	l.OnExit(func() error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	l.Wait()
	l.Wait()
	if calls != 1 {
		t.Errorf("expected exit hooks to run exactly once, got %d", calls)
	}
}
