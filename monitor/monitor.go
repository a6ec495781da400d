// Package monitor wires the Provider Pool, Block Ingestor, Block Processor,
// Job Correlator, Downstream Dispatcher, Progress Store, and Lifecycle into
// the single running indexer process.
package monitor

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/holograph-network/monitor/chain"
	"github.com/holograph-network/monitor/correlate"
	"github.com/holograph-network/monitor/decode"
	"github.com/holograph-network/monitor/dispatch"
	"github.com/holograph-network/monitor/filter"
	"github.com/holograph-network/monitor/ingestor"
	"github.com/holograph-network/monitor/job"
	"github.com/holograph-network/monitor/lifecycle"
	"github.com/holograph-network/monitor/processor"
	"github.com/holograph-network/monitor/progress"
	"github.com/holograph-network/monitor/provider"
)

// Config bundles everything Monitor needs to start one indexer process
//.
type Config struct {
	Registry    *chain.Registry
	Filter      *filter.Set
	Chains      []ingestor.ChainConfig
	Dispatcher  *dispatch.Dispatcher
	Env         dispatch.Environment
	Validator   correlate.OperatorJobValidator
	Archiver    correlate.Archiver
	ProgressDir string
	ProgressFileName string
	HealthCheckPort int // 0 disables the healthcheck HTTP server
}

// Monitor is the running process: one Ingestor/Processor pair per configured
// chain, fed by a shared Provider Pool and converging on a single
// Correlator and Dispatcher.
type Monitor struct {
	cfg Config

	pool      *provider.Pool
	ingestor  *ingestor.Ingestor
	correlate *correlate.Correlator
	progress  *progress.Store
	metrics   *lifecycle.Metrics
	lc        *lifecycle.Lifecycle

	queues map[string]*job.Queue
}

// New constructs a Monitor. It dials every configured chain's provider
// immediately; per-chain dial failures are not fatal, the
// reconnect loop takes over.
func New(ctx context.Context, cfg Config) (*Monitor, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("monitor: registry is required")
	}
	store, err := progress.Open(cfg.ProgressDir, cfg.ProgressFileName)
	if err != nil {
		return nil, fmt.Errorf("monitor: open progress store: %w", err)
	}

	pool := provider.New(ctx, cfg.Registry)
	m := &Monitor{
		cfg:       cfg,
		pool:      pool,
		ingestor:  ingestor.New(pool),
		correlate: correlate.New(cfg.Validator, cfg.Archiver),
		progress:  store,
		metrics:   lifecycle.NewMetrics(),
		lc:        lifecycle.New(),
		queues:    make(map[string]*job.Queue),
	}
	return m, nil
}

// Run starts every worker goroutine and blocks until shutdown (a tracked
// signal, a fatal startup error, or every chain's processor loop having
// returned, as repair-mode chains do after their bounded scan).
func (m *Monitor) Run(ctx context.Context) error {
	m.lc.WatchSignals()
	m.lc.OnExit(m.progress.Save)

	if m.cfg.Dispatcher != nil {
		if err := m.cfg.Dispatcher.Start(m.lc.Context(), m.cfg.Env); err != nil {
			return fmt.Errorf("monitor: dispatcher startup: %w", err)
		}
	}

	m.lc.Go(func(ctx context.Context) error {
		m.correlate.Run(ctx)
		return nil
	})

	proc := processor.New(m.pool, m.cfg.Filter, m.handleBlock, m.progress)
	procDone := make(chan struct{}, len(m.cfg.Chains))

	for _, cc := range m.cfg.Chains {
		cc := cc
		cc.ResumeFrom = m.progress.Get(cc.Chain)
		q := job.NewQueue()
		m.queues[cc.Chain] = q

		m.lc.Go(func(ctx context.Context) error {
			if err := m.ingestor.Start(ctx, cc, q); err != nil {
				return fmt.Errorf("monitor: start ingestor for %s: %w", cc.Chain, err)
			}
			return nil
		})
		m.lc.Go(func(ctx context.Context) error {
			defer func() { procDone <- struct{}{} }()
			done := m.ingestor.Done(cc.Chain)
			return proc.Run(ctx, cc.Chain, q, done)
		})
	}

	// Once every chain's processor loop has returned (a repair-mode chain
	// returns after draining its range), stop the remaining workers.
	if len(m.cfg.Chains) > 0 {
		go func() {
			for range m.cfg.Chains {
				<-procDone
			}
			m.Shutdown()
		}()
	}

	if m.cfg.HealthCheckPort > 0 {
		hc := lifecycle.NewHealthcheck(m.pool)
		m.lc.Go(func(ctx context.Context) error {
			return lifecycle.Serve(ctx, m.cfg.HealthCheckPort, hc)
		})
	}

	return m.lc.Wait()
}

// Shutdown triggers a clean stop, as used by repair-mode completion.
func (m *Monitor) Shutdown() { m.lc.Shutdown() }

// handleBlock is the Processor.Handler: it decodes every interesting
// transaction's receipt, feeds the Correlator, and forwards downstream
// dispatch messages.
func (m *Monitor) handleBlock(ctx context.Context, chainName string, blockNumber uint64, txs []processor.InterestingTransaction) error {
	c, ok := m.cfg.Registry.Get(chainName)
	if !ok {
		return fmt.Errorf("monitor: unknown chain %s", chainName)
	}

	for _, it := range txs {
		events, err := decode.Receipt(it.Receipt)
		if err != nil {
			log.Warn("monitor: decode integrity error", "chain", chainName, "tx", it.Tx.Hash(), "err", err)
		}
		m.correlateAndDispatch(ctx, c, blockNumber, it, events)
	}

	m.metrics.BlocksProcessed.WithLabelValues(chainName).Inc()
	return nil
}

func (m *Monitor) correlateAndDispatch(ctx context.Context, c *chain.Chain, blockNumber uint64, it processor.InterestingTransaction, events []decode.Event) {
	txHash := it.Tx.Hash()
	jobType := classifyJobType(events)

	for _, ev := range events {
		switch e := ev.(type) {
		case decode.CrossChainMessageSent:
			m.correlate.ObserveOrigin(txHash, c.Name, blockNumber, e.JobHash, jobType)
		case decode.AvailableOperatorJob:
			if err := m.correlate.ObserveAvailable(ctx, txHash, c.Name, blockNumber, e.JobHash, e.Payload); err != nil {
				log.Warn("monitor: observe available failed", "jobHash", e.JobHash, "err", err)
			}
		case decode.FinishedOperatorJob:
			m.correlate.ObserveExecuted(txHash, c.Name, blockNumber, e.JobHash, jobType)
			m.metrics.JobsCompleted.Inc()
		case decode.FailedOperatorJob:
			m.correlate.ObserveExecuted(txHash, c.Name, blockNumber, e.JobHash, jobType)
		}
		m.dispatchEvent(ctx, c, blockNumber, txHash, ev)
	}
}

// dispatchEvent forwards a decoded event to the message-queue channel.
func (m *Monitor) dispatchEvent(ctx context.Context, c *chain.Chain, blockNumber uint64, txHash common.Hash, ev decode.Event) {
	if m.cfg.Dispatcher == nil {
		return
	}
	msg := dispatch.Message{
		Type:      "HolographProtocol",
		EventName: ev.Kind().String(),
		TagID:     dispatch.NewTagID(),
		ChainID:   c.ChainID,
		HolographAddress: c.Peers.Factory.Hex(),
		Environment: string(m.cfg.Env),
		Payload: dispatch.Payload{
			Tx:       txHash.Hex(),
			BlockNum: blockNumber,
		},
	}
	if err := m.cfg.Dispatcher.SendEvent(ctx, msg); err != nil {
		m.metrics.DispatchFailures.WithLabelValues("queue").Inc()
		log.Warn("monitor: dispatch send failed", "chain", c.Name, "event", msg.EventName, "err", err)
	}
}

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
