// Package lifecycle centralizes signal handling and graceful shutdown: it
// fans out a single cancellation signal, awaits workers, and only then lets
// the caller save progress.
package lifecycle

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"
)

// Lifecycle owns the root context for the process and every tracked worker
// goroutine.
type Lifecycle struct {
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	mu       sync.Mutex
	onExit   []func() error
	exitOnce sync.Once
}

// New constructs a Lifecycle with a fresh cancellable context.
func New() *Lifecycle {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)
	return &Lifecycle{ctx: ctx, cancel: cancel, group: g}
}

// Context returns the root context; it is cancelled on any shutdown trigger.
func (l *Lifecycle) Context() context.Context { return l.ctx }

// Go tracks fn as a supervised worker: the first non-nil error from any
// worker cancels the context for all others.
func (l *Lifecycle) Go(fn func(ctx context.Context) error) {
	l.group.Go(func() error { return fn(l.ctx) })
}

// OnExit registers fn to run during Wait, after every worker has returned,
// in registration order. Used for the Progress Store's final Save
//.
func (l *Lifecycle) OnExit(fn func() error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onExit = append(l.onExit, fn)
}

// WatchSignals starts a goroutine that cancels the context on SIGINT,
// SIGTERM, SIGUSR1, or SIGUSR2.
func (l *Lifecycle) WatchSignals() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2)
	go func() {
		sig := <-ch
		log.Info("lifecycle: shutdown signal received", "signal", sig)
		l.cancel()
	}()
}

// Shutdown triggers cancellation directly, as a tracked signal would (used
// by Monitor.Run once every chain's processor loop has returned).
func (l *Lifecycle) Shutdown() { l.cancel() }

// Wait blocks until every tracked worker has returned, then runs the exit
// hooks exactly once, in order, and returns the first error encountered
// (worker error takes precedence over exit-hook error).
func (l *Lifecycle) Wait() error {
	workerErr := l.group.Wait()

	var exitErr error
	l.exitOnce.Do(func() {
		l.mu.Lock()
		hooks := append([]func() error(nil), l.onExit...)
		l.mu.Unlock()
		for _, fn := range hooks {
			if err := fn(); err != nil && exitErr == nil {
				exitErr = err
			}
		}
	})

	if workerErr != nil {
		return workerErr
	}
	return exitErr
}
