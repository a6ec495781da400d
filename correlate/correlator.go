package correlate

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	lru "github.com/hashicorp/golang-lru/v2"
)

// evictedCacheSize bounds the recently-evicted job hash cache used to
// suppress duplicate-phase processing after a job has already completed and
// been archived.
const evictedCacheSize = 4096

// OperatorJobValidator decides, from the destination-chain gas estimate,
// whether an available job has in fact already been executed.
type OperatorJobValidator interface {
	ValidateOperatorJob(ctx context.Context, chainName string, jobHash common.Hash, payload []byte) (completed bool, err error)
}

// Archiver persists a completed job (or is invoked once per flush) so that a
// restart can rebuild the phase index.
type Archiver interface {
	Append(*Job) error
}

// request is the message-passing envelope used to serialize all mutation
// through a single owner goroutine.
type request struct {
	apply func(c *Correlator)
	done  chan struct{}
}

// Correlator owns the jobHash -> Job index. All mutation happens on its own
// goroutine; callers use the Observe* methods which block until the
// goroutine has applied the change.
type Correlator struct {
	validator OperatorJobValidator
	archiver  Archiver

	index map[common.Hash]*Job

	evicted *lru.Cache[common.Hash, struct{}]

	reqs chan request
	quit chan struct{}
}

// New constructs a Correlator. Call Run in its own goroutine before issuing
// any Observe* call.
func New(validator OperatorJobValidator, archiver Archiver) *Correlator {
	evicted, _ := lru.New[common.Hash, struct{}](evictedCacheSize)
	return &Correlator{
		validator: validator,
		archiver:  archiver,
		index:     make(map[common.Hash]*Job),
		evicted:   evicted,
		reqs:      make(chan request, 64),
		quit:      make(chan struct{}),
	}
}

// Run processes requests until ctx is cancelled. It must be started exactly
// once, before any Observe* call.
func (c *Correlator) Run(ctx context.Context) {
	defer close(c.quit)
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-c.reqs:
			r.apply(c)
			close(r.done)
		}
	}
}

func (c *Correlator) call(fn func(c *Correlator)) {
	done := make(chan struct{})
	c.reqs <- request{apply: fn, done: done}
	<-done
}

func (c *Correlator) getOrCreate(hash common.Hash) *Job {
	j, ok := c.index[hash]
	if !ok {
		j = &Job{JobHash: hash, Type: TypeUnknown}
		c.index[hash] = j
	}
	return j
}

// maybeFlush archives and evicts j once all three phases are recorded
//.
func (c *Correlator) maybeFlush(j *Job) {
	if j.phaseCount() < 3 {
		return
	}
	j.Completed = true
	if c.archiver != nil {
		if err := c.archiver.Append(j); err != nil {
			log.Error("correlate: archive append failed", "jobHash", j.JobHash, "err", err)
		}
	}
	delete(c.index, j.JobHash)
	c.evicted.Add(j.JobHash, struct{}{})
	log.Info("correlate: job completed and evicted", "jobHash", j.JobHash, "type", j.Type)
}

// alreadyFlushed reports whether jobHash was already archived and evicted,
// so a late-arriving phase observation (e.g. a reorg replay or an overlap
// between repair and live ingestion) does not resurrect a phantom entry.
func (c *Correlator) alreadyFlushed(jobHash common.Hash) bool {
	_, ok := c.evicted.Get(jobHash)
	return ok
}

// ObserveOrigin records a bridge-out (origin) phase observation. jobType is
// resolved by the caller (Block Processor's handler) from the Transfer and
// deploy events decoded from the same receipt; bridge method calldata is not
// parsed.
func (c *Correlator) ObserveOrigin(tx common.Hash, chainName string, block uint64, jobHash common.Hash, jobType Type) {
	c.call(func(c *Correlator) {
		if c.alreadyFlushed(jobHash) {
			log.Debug("correlate: ignoring origin for already-completed job", "jobHash", jobHash)
			return
		}
		j := c.getOrCreate(jobHash)
		j.Origin = ChainBlock{Tx: tx, Chain: chainName, Block: block}
		j.Type = jobType
		c.maybeFlush(j)
	})
}

// ObserveAvailable records an inbound-availability phase observation and
// consults the OperatorJobValidator to decide whether the job should be
// marked completed outright.
func (c *Correlator) ObserveAvailable(ctx context.Context, tx common.Hash, chainName string, block uint64, jobHash common.Hash, payload []byte) error {
	var validateErr error
	var skip bool
	c.call(func(c *Correlator) {
		if c.alreadyFlushed(jobHash) {
			skip = true
			return
		}
		j := c.getOrCreate(jobHash)
		j.Available = ChainBlock{Tx: tx, Chain: chainName, Block: block}
	})
	if skip {
		log.Debug("correlate: ignoring available for already-completed job", "jobHash", jobHash)
		return nil
	}
	if c.validator == nil {
		return nil
	}
	completed, err := c.validator.ValidateOperatorJob(ctx, chainName, jobHash, payload)
	if err != nil {
		validateErr = fmt.Errorf("correlate: validate operator job %s: %w", jobHash, err)
	}
	c.call(func(c *Correlator) {
		j, ok := c.index[jobHash]
		if !ok {
			return
		}
		if completed {
			j.Completed = true
		}
		c.maybeFlush(j)
	})
	return validateErr
}

// ObserveExecuted records operator execution, marks the job completed, and
// replaces its jobType with the caller's when that is not TypeUnknown (the
// caller derives it from the executing receipt's Transfer and deploy events;
// the inner bridge function's calldata is not parsed).
func (c *Correlator) ObserveExecuted(tx common.Hash, chainName string, block uint64, jobHash common.Hash, jobType Type) {
	c.call(func(c *Correlator) {
		if c.alreadyFlushed(jobHash) {
			log.Debug("correlate: ignoring executed for already-completed job", "jobHash", jobHash)
			return
		}
		j := c.getOrCreate(jobHash)
		j.Operator = ChainBlock{Tx: tx, Chain: chainName, Block: block}
		j.Completed = true
		if jobType != TypeUnknown {
			j.Type = jobType
		}
		c.maybeFlush(j)
	})
}

// Snapshot returns a copy of every job currently held in the working index
// (incomplete jobs only, since completed ones are evicted on flush).
func (c *Correlator) Snapshot() []*Job {
	var out []*Job
	c.call(func(c *Correlator) {
		out = make([]*Job, 0, len(c.index))
		for _, j := range c.index {
			cp := *j
			out = append(out, &cp)
		}
	})
	return out
}

// Reload rebuilds the working index from previously archived jobs: a job
// with all three phases present is treated as already complete and is not
// added to the working set.
//
// An earlier version of this package evicted via a loop index rather than
// the phase counter in the reload path specifically. Reload here always
// uses phaseCount, in both the live and the reload path, deliberately
// collapsing that ambiguity.
func (c *Correlator) Reload(jobs []*Job) {
	c.call(func(c *Correlator) {
		for _, j := range jobs {
			if j.phaseCount() >= 3 {
				continue // already complete, do not repopulate the working set
			}
			cp := *j
			c.index[cp.JobHash] = &cp
		}
	})
}
