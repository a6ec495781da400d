// Package analyzer implements the Analyzer write-side orchestrator: a bounded,
// one-shot scan over explicit block ranges that feeds the same Job Correlator
// machinery as the live pipeline and exports the resulting archive
//.
package analyzer

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/holograph-network/monitor/correlate"
	"github.com/holograph-network/monitor/decode"
	"github.com/holograph-network/monitor/filter"
	"github.com/holograph-network/monitor/provider"
)

// Scope names one chain's inclusive block range to analyze. EndBlock == 0
// means "the chain's head at run time".
type Scope struct {
	Network    string
	StartBlock uint64
	EndBlock   uint64
}

// Analyzer drives a finite scan of Scope entries through the Transaction
// Filter and Receipt Decoder into a Correlator, then exports the archive.
type Analyzer struct {
	pool      *provider.Pool
	filter    *filter.Set
	correlate *correlate.Correlator
	archive   *correlate.FileArchive
}

// New constructs an Analyzer. archive is both the Correlator's Archiver and
// the file written at the end of Run.
func New(pool *provider.Pool, f *filter.Set, validator correlate.OperatorJobValidator, archive *correlate.FileArchive) *Analyzer {
	return &Analyzer{
		pool:      pool,
		filter:    f,
		correlate: correlate.New(validator, archive),
		archive:   archive,
	}
}

// Run scans every scope entry sequentially and blocks until done. It starts
// and stops the Correlator's own goroutine internally so callers never see
// its message-passing plumbing.
func (a *Analyzer) Run(ctx context.Context, scopes []Scope) error {
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		a.correlate.Run(runCtx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	if a.archive != nil {
		a.correlate.Reload(a.archive.Jobs())
	}

	for _, s := range scopes {
		if err := a.runScope(ctx, s); err != nil {
			return fmt.Errorf("analyzer: scope %s: %w", s.Network, err)
		}
	}
	return a.archiveActiveJobs()
}

// archiveActiveJobs persists every job still short of all three phases at
// the end of the scan, so a later analyze run reloading this archive starts
// from the same active/completed split instead of losing partial jobs that
// fell outside this scan's block ranges.
func (a *Analyzer) archiveActiveJobs() error {
	if a.archive == nil {
		return nil
	}
	for _, j := range a.correlate.Snapshot() {
		if err := a.archive.Append(j); err != nil {
			return fmt.Errorf("analyzer: archive active job %s: %w", j.JobHash, err)
		}
	}
	return nil
}

func (a *Analyzer) runScope(ctx context.Context, s Scope) error {
	cli, err := a.pool.Get(s.Network)
	if err != nil {
		return fmt.Errorf("no client: %w", err)
	}

	end := s.EndBlock
	if end == 0 {
		head, err := cli.Eth().BlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("resolve head: %w", err)
		}
		end = head
	}

	log.Info("analyzer: scanning", "chain", s.Network, "start", s.StartBlock, "end", end)
	for n := s.StartBlock; n <= end; n++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := a.scanBlock(ctx, cli, s.Network, n); err != nil {
			return fmt.Errorf("block %d: %w", n, err)
		}
	}
	return nil
}

func (a *Analyzer) scanBlock(ctx context.Context, cli *provider.Client, chainName string, blockNumber uint64) error {
	block, err := cli.Eth().BlockByNumber(ctx, new(big.Int).SetUint64(blockNumber))
	if err != nil || block == nil {
		return err
	}

	signer := types.LatestSignerForChainID(new(big.Int).SetUint64(cli.Chain.ChainID))
	senderOf := func(tx *types.Transaction) (common.Address, error) {
		return types.Sender(signer, tx)
	}

	matched := a.filter.Apply(chainName, block.Transactions(), senderOf)

	for _, tx := range matched {
		receipt, err := cli.Eth().TransactionReceipt(ctx, tx.Hash())
		if err != nil {
			return fmt.Errorf("fetch receipt %s: %w", tx.Hash(), err)
		}
		events, err := decode.Receipt(receipt)
		if err != nil {
			log.Warn("analyzer: decode integrity error", "tx", tx.Hash(), "err", err)
		}
		a.correlateEvents(ctx, chainName, blockNumber, tx.Hash(), events)
	}
	return nil
}

func (a *Analyzer) correlateEvents(ctx context.Context, chainName string, blockNumber uint64, txHash common.Hash, events []decode.Event) {
	jobType := classifyJobType(events)
	for _, ev := range events {
		switch e := ev.(type) {
		case decode.CrossChainMessageSent:
			a.correlate.ObserveOrigin(txHash, chainName, blockNumber, e.JobHash, jobType)
		case decode.AvailableOperatorJob:
			if err := a.correlate.ObserveAvailable(ctx, txHash, chainName, blockNumber, e.JobHash, e.Payload); err != nil {
				log.Warn("analyzer: observe available failed", "jobHash", e.JobHash, "err", err)
			}
		case decode.FinishedOperatorJob:
			a.correlate.ObserveExecuted(txHash, chainName, blockNumber, e.JobHash, jobType)
		}
	}
}

// classifyJobType resolves a Job's Type from the Transfer/deploy events
// observed in the same receipt, the same derivation the live pipeline's
// handler (monitor.classifyJobType) uses; bridge method calldata is not parsed.
func classifyJobType(events []decode.Event) correlate.Type {
	for _, ev := range events {
		switch e := ev.(type) {
		case decode.BridgeableContractDeployed:
			return correlate.TypeDeploy
		case decode.Transfer:
			switch e.Standard {
			case decode.KindTransferERC20:
				return correlate.TypeERC20
			case decode.KindTransferERC721:
				return correlate.TypeERC721
			}
		}
	}
	return correlate.TypeUnknown
}
