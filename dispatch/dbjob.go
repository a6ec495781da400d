// Package dispatch implements the Downstream Dispatcher: a fire-and-forget
// message-queue channel and a priority-scheduled REST channel with bounded
// retry.
package dispatch

import "github.com/holograph-network/monitor/chain"

// MaxAttempts bounds a DBJob's retry count.
const MaxAttempts = 10

// finalAttemptThreshold is the attempts count at which a retry is the last
// one and gets re-enqueued at the tail instead of the head.
const finalAttemptThreshold = 9

// RequestDescriptor names the REST call a DBJob will issue; it is opaque to
// the dispatcher beyond Method/Path, which are only used for logging.
type RequestDescriptor struct {
	Method string
	Path   string
	Body   any
}

// DBJob is a deferred downstream REST side-effect.
type DBJob struct {
	Attempts     int
	TimestampSec int64
	Chain        *chain.Chain
	Request      RequestDescriptor
	SuccessFn    func(args any)
	Args         any
	Tags         []string
}

// nextTimestamp computes the bucket a retried job should land in: the tail
// re-enqueue (final attempt) and the head re-enqueue (immediate retry) both
// land one second after the given timestamp, which retry passes as the
// bucket the job was taken from (a 1s cooldown); the head/tail placement
// within that bucket is what changes, not the bucket.
func (j DBJob) nextTimestamp(nowSec int64) int64 {
	return nowSec + 1
}
