package dispatch

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// Dispatcher combines the message-queue channel and the REST channel into
// a single Downstream Dispatcher.
type Dispatcher struct {
	Queue *QueueChannel
	REST  *RESTChannel
}

// New constructs a Dispatcher. queue may be nil if no queue channel is
// configured (e.g. a propagator-only deployment).
func New(queue *QueueChannel, rest *RESTChannel) *Dispatcher {
	return &Dispatcher{Queue: queue, REST: rest}
}

// Start performs the startup health check (queue channel) and begins the
// REST channel's scheduling loop. In non-local environments a queue health
// check failure is fatal, §7 "Config/auth").
func (d *Dispatcher) Start(ctx context.Context, env Environment) error {
	if d.Queue != nil {
		if err := d.Queue.HealthCheck(ctx); err != nil && !env.isLocal() {
			log.Crit("dispatch: queue unreachable at startup", "err", err)
			return err
		}
	}
	if d.REST != nil {
		go d.REST.Run(ctx)
	}
	return nil
}

// SendEvent pushes msg to the message-queue channel.
func (d *Dispatcher) SendEvent(ctx context.Context, msg Message) error {
	if d.Queue == nil {
		return nil
	}
	return d.Queue.Send(ctx, msg)
}

// ScheduleREST enqueues a DBJob for immediate (now) processing by the REST
// channel.
func (d *Dispatcher) ScheduleREST(job DBJob) {
	if d.REST == nil {
		return
	}
	if job.TimestampSec == 0 {
		job.TimestampSec = time.Now().Unix()
	}
	d.REST.Schedule(job)
}
