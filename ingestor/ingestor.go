// Package ingestor produces a monotonically increasing stream of block
// numbers to process for each configured chain.
package ingestor

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/holograph-network/monitor/job"
	"github.com/holograph-network/monitor/provider"
)

// Pusher is the push-only view of a per-chain block-job queue; the Ingestor
// never pops.
type Pusher interface {
	Push(job.BlockJob)
}

// Mode selects the backfill strategy applied before a chain's ingestor loop
// settles into steady-state header subscription.
type Mode int

const (
	// ModeSync resumes from the saved progress watermark (the default).
	ModeSync Mode = iota
	// ModeWarp enqueues [head-W, head] once, then proceeds normally.
	ModeWarp
	// ModeRepair processes [head-R, head] and signals completion; no
	// subscription is opened.
	ModeRepair
)

// ChainConfig parameterizes one chain's ingestor loop.
type ChainConfig struct {
	Chain        string
	Mode         Mode
	WarpBlocks   uint64 // used when Mode == ModeWarp
	RepairBlocks uint64 // used when Mode == ModeRepair
	ResumeFrom   uint64 // seeded from the Progress Store; 0 means "current head"
}

// Ingestor drives one goroutine per configured chain.
type Ingestor struct {
	pool *provider.Pool

	mu       sync.Mutex
	lastSeen map[string]uint64

	// needToSubscribe reports, per chain, whether steady-state header
	// subscription should start after backfill (false for ModeRepair).
	needToSubscribe map[string]*atomic.Bool

	// done is closed, per chain, once a repair-mode ingestor has finished
	// enqueueing its bounded range.
	done map[string]chan struct{}
}

// New constructs an Ingestor bound to pool.
func New(pool *provider.Pool) *Ingestor {
	return &Ingestor{
		pool:            pool,
		lastSeen:        make(map[string]uint64),
		needToSubscribe: make(map[string]*atomic.Bool),
		done:            make(map[string]chan struct{}),
	}
}

// Done returns a channel that closes once chainName's repair-mode backfill
// has completed enqueueing. It is nil for non-repair chains.
func (i *Ingestor) Done(chainName string) <-chan struct{} {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.done[chainName]
}

// setLastSeen records the last header number observed for chainName.
func (i *Ingestor) setLastSeen(chainName string, n uint64) {
	i.mu.Lock()
	i.lastSeen[chainName] = n
	i.mu.Unlock()
}

func (i *Ingestor) getLastSeen(chainName string) uint64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.lastSeen[chainName]
}

// Start begins ingestion for one chain according to cfg, pushing BlockJobs
// onto q. It returns once backfill has been scheduled; steady-state header
// subscription (if any) continues on a background goroutine until ctx is
// cancelled.
func (i *Ingestor) Start(ctx context.Context, cfg ChainConfig, q Pusher) error {
	cli, err := i.pool.Get(cfg.Chain)
	if err != nil {
		return err
	}
	head, err := cli.Eth().BlockNumber(ctx)
	if err != nil {
		return err
	}

	subscribe := &atomic.Bool{}
	subscribe.Store(true)
	i.mu.Lock()
	i.needToSubscribe[cfg.Chain] = subscribe
	i.mu.Unlock()

	switch cfg.Mode {
	case ModeWarp:
		// from is the exclusive lower bound, so head-W itself is enqueued.
		from := uint64(0)
		if head > cfg.WarpBlocks {
			from = head - cfg.WarpBlocks - 1
		}
		i.enqueueRange(cfg.Chain, from, head, q)
		i.setLastSeen(cfg.Chain, head)

	case ModeRepair:
		// from is the exclusive lower bound, so head-R itself is enqueued.
		from := uint64(0)
		if head > cfg.RepairBlocks {
			from = head - cfg.RepairBlocks - 1
		}
		subscribe.Store(false)
		done := make(chan struct{})
		i.mu.Lock()
		i.done[cfg.Chain] = done
		i.mu.Unlock()
		i.enqueueRange(cfg.Chain, from, head, q)
		i.setLastSeen(cfg.Chain, head)
		close(done)
		log.Info("ingestor: repair range enqueued, not subscribing", "chain", cfg.Chain, "from", from+1, "to", head)
		return nil

	default: // ModeSync
		from := cfg.ResumeFrom
		if from == 0 {
			i.setLastSeen(cfg.Chain, head)
		} else {
			i.enqueueRange(cfg.Chain, from, head, q)
			i.setLastSeen(cfg.Chain, head)
		}
	}

	go i.subscribeHeaders(ctx, cfg.Chain, q)
	return nil
}

// enqueueRange pushes BlockJobs for every n in (from, to], in strictly
// ascending order, unless from == 0 and to == 0 (nothing to backfill).
func (i *Ingestor) enqueueRange(chainName string, from, to uint64, q Pusher) {
	if to <= from {
		return
	}
	for n := from + 1; n <= to; n++ {
		q.Push(job.BlockJob{Chain: chainName, BlockNumber: n})
	}
}

func (i *Ingestor) subscribeHeaders(ctx context.Context, chainName string, q Pusher) {
	cli, err := i.pool.Get(chainName)
	if err != nil {
		log.Warn("ingestor: cannot subscribe, no client", "chain", chainName, "err", err)
		return
	}

	headers := make(chan *types.Header)
	arm := func(c *provider.Client) {
		sub, err := c.Eth().SubscribeNewHead(ctx, headers)
		if err != nil {
			log.Warn("ingestor: subscribe failed", "chain", chainName, "err", err)
			return
		}
		go func() {
			<-ctx.Done()
			sub.Unsubscribe()
		}()
	}
	arm(cli)
	i.pool.OnReconnect(chainName, arm)

	for {
		select {
		case <-ctx.Done():
			return
		case h, ok := <-headers:
			if !ok {
				return
			}
			i.onHeader(chainName, h.Number, q)
		}
	}
}

func (i *Ingestor) onHeader(chainName string, number *big.Int, q Pusher) {
	b := number.Uint64()
	i.pool.RecordSeenBlock(chainName, b)

	last := i.getLastSeen(chainName)
	if last > 0 && b > last+1 {
		log.Info("ingestor: gap detected, backfilling", "chain", chainName, "from", last+1, "to", b-1)
		i.enqueueRange(chainName, last, b-1, q)
	}
	q.Push(job.BlockJob{Chain: chainName, BlockNumber: b})
	i.setLastSeen(chainName, b)
}
