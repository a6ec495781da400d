// Package processor implements the Block Processor: dequeues one block job
// at a time per chain, fetches the full block, applies the Transaction
// Filter, and invokes the caller's handler.
package processor

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/holograph-network/monitor/filter"
	"github.com/holograph-network/monitor/job"
	"github.com/holograph-network/monitor/progress"
	"github.com/holograph-network/monitor/provider"
)

const (
	emptyQueueSleep  = time.Second
	watchdogInterval = time.Second
	watchdogThreshold = 15 * time.Second
)

// InterestingTransaction is a transaction selected by the filter, carrying
// its full receipt logs.
type InterestingTransaction struct {
	Tx      *types.Transaction
	Receipt *types.Receipt
	From    common.Address
}

// Handler processes the interesting transactions of one block to
// completion before the processor advances progress.
type Handler func(ctx context.Context, chainName string, blockNumber uint64, txs []InterestingTransaction) error

// Done reports (for repair-mode chains) whether the ingestor has finished
// producing jobs for this chain. Non-repair chains should return a channel
// that never closes.
type Done func() <-chan struct{}

// Processor drives one dequeue loop per chain.
type Processor struct {
	pool     *provider.Pool
	filter   *filter.Set
	handler  Handler
	progress *progress.Store

	lastDoneMu sync.Mutex
	lastDone   map[string]time.Time
}

// New constructs a Processor.
func New(pool *provider.Pool, f *filter.Set, handler Handler, store *progress.Store) *Processor {
	return &Processor{
		pool:     pool,
		filter:   f,
		handler:  handler,
		progress: store,
		lastDone: make(map[string]time.Time),
	}
}

func (p *Processor) setLastDone(chainName string, t time.Time) {
	p.lastDoneMu.Lock()
	p.lastDone[chainName] = t
	p.lastDoneMu.Unlock()
}

func (p *Processor) getLastDone(chainName string) (time.Time, bool) {
	p.lastDoneMu.Lock()
	defer p.lastDoneMu.Unlock()
	t, ok := p.lastDone[chainName]
	return t, ok
}

// Run drains q for chainName until ctx is cancelled (or, for a repair-mode
// chain, until ingestorDone closes and the queue is empty). Exactly one
// goroutine should call Run per chain.
func (p *Processor) Run(ctx context.Context, chainName string, q *job.Queue, ingestorDone <-chan struct{}) error {
	p.setLastDone(chainName, time.Now())

	kick := make(chan struct{}, 1)
	go p.watchdog(ctx, chainName, kick)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		bj, ok := q.Pop()
		if !ok {
			if ingestorDone != nil {
				select {
				case <-ingestorDone:
					if q.Len() == 0 {
						log.Info("processor: repair range drained, exiting", "chain", chainName)
						return nil
					}
				default:
				}
			}
			select {
			case <-ctx.Done():
				return nil
			case <-kick:
			case <-time.After(emptyQueueSleep):
			}
			continue
		}

		if err := p.processOne(ctx, bj, q); err != nil {
			log.Warn("processor: block handling error", "chain", chainName, "block", bj.BlockNumber, "err", err)
		}
		p.setLastDone(chainName, time.Now())
	}
}

func (p *Processor) processOne(ctx context.Context, bj job.BlockJob, q *job.Queue) error {
	cli, err := p.pool.Get(bj.Chain)
	if err != nil {
		q.PushFront(bj)
		return fmt.Errorf("processor: no client for %s: %w", bj.Chain, err)
	}

	block, err := cli.Eth().BlockByNumber(ctx, new(big.Int).SetUint64(bj.BlockNumber))
	if err != nil || block == nil {
		q.PushFront(bj)
		return fmt.Errorf("processor: fetch block %d failed: %w", bj.BlockNumber, err)
	}

	interesting, err := p.collectInteresting(ctx, cli, bj.Chain, block)
	if err != nil {
		q.PushFront(bj)
		return err
	}

	if len(interesting) > 0 && p.handler != nil {
		if err := p.handler(ctx, bj.Chain, bj.BlockNumber, interesting); err != nil {
			return fmt.Errorf("processor: handler error on block %d: %w", bj.BlockNumber, err)
		}
	}

	if p.progress != nil {
		p.progress.Set(bj.Chain, bj.BlockNumber)
	}
	return nil
}

func (p *Processor) collectInteresting(ctx context.Context, cli *provider.Client, chainName string, block *types.Block) ([]InterestingTransaction, error) {
	signer := types.LatestSignerForChainID(new(big.Int).SetUint64(cli.Chain.ChainID))
	senderOf := func(tx *types.Transaction) (common.Address, error) {
		return types.Sender(signer, tx)
	}

	matched := p.filter.Apply(chainName, block.Transactions(), senderOf)
	if len(matched) == 0 {
		return nil, nil
	}

	out := make([]InterestingTransaction, 0, len(matched))
	for _, tx := range matched {
		receipt, err := cli.Eth().TransactionReceipt(ctx, tx.Hash())
		if err != nil {
			return nil, fmt.Errorf("processor: fetch receipt %s: %w", tx.Hash(), err)
		}
		from, _ := senderOf(tx)
		out = append(out, InterestingTransaction{Tx: tx, Receipt: receipt, From: from})
	}
	return out, nil
}

// watchdog re-kicks the dequeue loop if no block has completed within
// watchdogThreshold, guarding against lost timers.
func (p *Processor) watchdog(ctx context.Context, chainName string, kick chan<- struct{}) {
	ticker := time.NewTicker(watchdogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			last, ok := p.getLastDone(chainName)
			if !ok {
				continue
			}
			if time.Since(last) > watchdogThreshold {
				log.Warn("processor: watchdog kick", "chain", chainName)
				select {
				case kick <- struct{}{}:
				default:
				}
			}
		}
	}
}
