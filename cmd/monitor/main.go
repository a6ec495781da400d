// Command monitor is the CLI surface for the cross-chain event indexer:
// indexer, analyze, propagator, and the thin executor-backed utility
// commands.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/holograph-network/monitor/analyzer"
	"github.com/holograph-network/monitor/chain"
	"github.com/holograph-network/monitor/correlate"
	"github.com/holograph-network/monitor/decode"
	"github.com/holograph-network/monitor/dispatch"
	"github.com/holograph-network/monitor/executor"
	"github.com/holograph-network/monitor/filter"
	"github.com/holograph-network/monitor/ingestor"
	"github.com/holograph-network/monitor/internal/signerif"
	"github.com/holograph-network/monitor/job"
	"github.com/holograph-network/monitor/lifecycle"
	"github.com/holograph-network/monitor/monitor"
	"github.com/holograph-network/monitor/processor"
	"github.com/holograph-network/monitor/propagate"
	"github.com/holograph-network/monitor/provider"
)

const defaultProgressFile = "progress.json"

var envFlag = &cli.StringFlag{
	Name:  "env",
	Usage: "localhost, experimental, develop, testnet, or mainnet",
	Value: string(dispatch.EnvLocalhost),
}

var networksFlag = &cli.StringFlag{
	Name:     "networks",
	Usage:    "path to the TOML network config file",
	Required: true,
}

func main() {
	app := &cli.App{
		Name:  "monitor",
		Usage: "cross-chain bridge event indexer",
		Commands: []*cli.Command{
			analyzeCommand(),
			indexerCommand(),
			propagatorCommand(),
			faucetCommand(),
			bridgeCollectionCommand(),
			createContractCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Crit("monitor: fatal", "err", err)
	}
}

func loadRegistry(c *cli.Context) (*chain.Registry, error) {
	return chain.LoadFile(c.String("networks"))
}

// defaultFilterBoundedSize caps the Transaction Filter's cross-block dedup
// cache; large enough to cover several hours of bridge traffic on every
// configured chain without growing unbounded over a long-running process.
const defaultFilterBoundedSize = 65536

// defaultFilterSet admits any transaction addressed to one of the protocol's
// own per-chain contracts.
func defaultFilterSet(reg *chain.Registry) *filter.Set {
	bridge := map[string]common.Address{}
	factory := map[string]common.Address{}
	operator := map[string]common.Address{}
	for _, c := range reg.All() {
		bridge[c.Name] = c.Peers.Bridge
		factory[c.Name] = c.Peers.Factory
		operator[c.Name] = c.Peers.Operator
	}
	set, err := filter.NewBoundedSet(defaultFilterBoundedSize,
		filter.MatchToPerChain(bridge),
		filter.MatchToPerChain(factory),
		filter.MatchToPerChain(operator),
	)
	if err != nil {
		log.Warn("monitor: bounded filter cache unavailable, falling back to unbounded", "err", err)
		return filter.NewSet(
			filter.MatchToPerChain(bridge),
			filter.MatchToPerChain(factory),
			filter.MatchToPerChain(operator),
		)
	}
	return set
}

func buildExecutor(ctx context.Context, reg *chain.Registry) (*executor.Executor, error) {
	pool := provider.New(ctx, reg)
	key := os.Getenv("PRIVATE_KEY")
	if key == "" {
		return nil, fmt.Errorf("PRIVATE_KEY environment variable is required")
	}
	signer, err := signerif.FromHex(key)
	if err != nil {
		return nil, err
	}
	return executor.New(pool, signer), nil
}

// buildQueueChannel loads AWS credentials the standard way (static
// AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY env vars if set, falling back to
// the SDK's default provider chain otherwise) and wraps an SQS client as the
// message-queue downstream path.
func buildQueueChannel(ctx context.Context, queueURL string) (*dispatch.QueueChannel, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if ak, sk := os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY"); ak != "" && sk != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(ak, sk, os.Getenv("AWS_SESSION_TOKEN")),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("monitor: load AWS config: %w", err)
	}
	sender := dispatch.NewSQSSender(sqs.NewFromConfig(cfg), queueURL)
	return dispatch.NewQueueChannel(sender, queueURL), nil
}

func analyzeCommand() *cli.Command {
	return &cli.Command{
		Name:  "analyze",
		Usage: "scan explicit block ranges and export the job archive",
		Flags: []cli.Flag{
			envFlag,
			networksFlag,
			&cli.StringFlag{Name: "scope", Usage: "JSON array of {network,startBlock,endBlock}", Required: true},
			&cli.StringFlag{Name: "output", Usage: "path to write the archive JSON to", Required: true},
		},
		Action: func(c *cli.Context) error {
			reg, err := loadRegistry(c)
			if err != nil {
				return err
			}
			var raw []struct {
				Network    string `json:"network"`
				StartBlock uint64 `json:"startBlock"`
				EndBlock   uint64 `json:"endBlock"`
			}
			if err := json.Unmarshal([]byte(c.String("scope")), &raw); err != nil {
				return fmt.Errorf("monitor: parse --scope: %w", err)
			}
			scopes := make([]analyzer.Scope, 0, len(raw))
			for _, r := range raw {
				scopes = append(scopes, analyzer.Scope{Network: r.Network, StartBlock: r.StartBlock, EndBlock: r.EndBlock})
			}

			ctx := context.Background()
			pool := provider.New(ctx, reg)
			archive, err := correlate.OpenFileArchive(c.String("output"))
			if err != nil {
				return err
			}
			exec, err := buildExecutor(ctx, reg)
			var validator correlate.OperatorJobValidator
			if err == nil {
				validator = exec
			} else {
				log.Warn("monitor: analyze running without an operator-job validator", "err", err)
			}

			a := analyzer.New(pool, defaultFilterSet(reg), validator, archive)
			if err := a.Run(ctx, scopes); err != nil {
				return err
			}
			log.Info("monitor: analyze complete", "output", c.String("output"))
			return nil
		},
	}
}

func indexerCommand() *cli.Command {
	return &cli.Command{
		Name:  "indexer",
		Usage: "run the live multi-chain event indexer",
		Flags: []cli.Flag{
			envFlag,
			networksFlag,
			&cli.StringFlag{Name: "host", Usage: "REST dispatch base URL"},
			&cli.StringFlag{Name: "queueUrl", Usage: "SQS queue URL for the message-queue downstream path"},
			&cli.BoolFlag{Name: "healthCheck", Usage: "enable the healthcheck HTTP server"},
			&cli.IntFlag{Name: "healthCheckPort", Value: 6000},
			&cli.BoolFlag{Name: "warp", Usage: "backfill a fixed window before subscribing"},
		},
		Action: func(c *cli.Context) error {
			reg, err := loadRegistry(c)
			if err != nil {
				return err
			}
			ctx := context.Background()

			env := dispatch.Environment(c.String("env"))
			var rest *dispatch.RESTChannel
			if host := c.String("host"); host != "" {
				rest = dispatch.NewRESTChannel(host, env)
			}
			var queue *dispatch.QueueChannel
			if queueURL := c.String("queueUrl"); queueURL != "" {
				queue, err = buildQueueChannel(ctx, queueURL)
				if err != nil {
					return err
				}
			}
			disp := dispatch.New(queue, rest)

			chainCfgs := make([]ingestor.ChainConfig, 0, len(reg.All()))
			for _, ch := range reg.All() {
				mode := ingestor.ModeSync
				if c.Bool("warp") {
					mode = ingestor.ModeWarp
				}
				chainCfgs = append(chainCfgs, ingestor.ChainConfig{Chain: ch.Name, Mode: mode, WarpBlocks: 1000})
			}

			healthPort := 0
			if c.Bool("healthCheck") {
				healthPort = c.Int("healthCheckPort")
			}

			cfg := monitor.Config{
				Registry:         reg,
				Filter:           defaultFilterSet(reg),
				Chains:           chainCfgs,
				Dispatcher:       disp,
				Env:              env,
				ProgressDir:      ".",
				ProgressFileName: defaultProgressFile,
				HealthCheckPort:  healthPort,
			}

			m, err := monitor.New(ctx, cfg)
			if err != nil {
				return err
			}
			return m.Run(ctx)
		},
	}
}

func propagatorCommand() *cli.Command {
	return &cli.Command{
		Name:  "propagator",
		Usage: "replay bridgeable contract deployments to peer chains",
		Flags: []cli.Flag{
			envFlag,
			networksFlag,
			&cli.StringFlag{Name: "mode", Value: string(propagate.ModeListen), Usage: "listen, manual, or auto"},
			&cli.BoolFlag{Name: "sync"},
			&cli.BoolFlag{Name: "repair"},
			&cli.BoolFlag{Name: "recover"},
			&cli.StringFlag{Name: "recoverFile"},
		},
		Action: func(c *cli.Context) error {
			reg, err := loadRegistry(c)
			if err != nil {
				return err
			}
			ctx := context.Background()
			exec, err := buildExecutor(ctx, reg)
			if err != nil {
				return err
			}

			prop := propagate.New(propagate.Mode(c.String("mode")), exec, stdinConfirmer, reg.Names())

			if c.Bool("recover") {
				raw, err := os.ReadFile(c.String("recoverFile"))
				if err != nil {
					return fmt.Errorf("monitor: read recoverFile: %w", err)
				}
				var list propagate.RecoverList
				if err := json.Unmarshal(raw, &list); err != nil {
					return fmt.Errorf("monitor: parse recoverFile: %w", err)
				}
				return prop.Recover(ctx, list)
			}

			return runPropagatorPipeline(ctx, reg, prop, c.String("mode"), c.Bool("sync"))
		},
	}
}

// runPropagatorPipeline starts one ingestor/processor pair per configured
// chain, watching for BridgeableContractDeployed events and feeding every
// candidate to prop.Observe. It runs until the process receives a shutdown
// signal.
func runPropagatorPipeline(ctx context.Context, reg *chain.Registry, prop *propagate.Propagator, mode string, warp bool) error {
	lc := lifecycle.New()
	lc.WatchSignals()

	pool := provider.New(ctx, reg)
	ing := ingestor.New(pool)

	handler := func(ctx context.Context, chainName string, blockNumber uint64, txs []processor.InterestingTransaction) error {
		for _, it := range txs {
			events, err := decode.Receipt(it.Receipt)
			if err != nil {
				log.Warn("monitor: propagator decode error", "chain", chainName, "tx", it.Tx.Hash(), "err", err)
			}
			for _, ev := range events {
				deployed, ok := ev.(decode.BridgeableContractDeployed)
				if !ok {
					continue
				}
				if err := prop.Observe(ctx, chainName, deployed); err != nil {
					log.Warn("monitor: propagator observe failed", "chain", chainName, "contract", deployed.Contract, "err", err)
				}
			}
		}
		return nil
	}
	proc := processor.New(pool, defaultFilterSet(reg), handler, nil)

	ingestMode := ingestor.ModeSync
	if warp {
		ingestMode = ingestor.ModeWarp
	}

	for _, ch := range reg.All() {
		cc := ingestor.ChainConfig{Chain: ch.Name, Mode: ingestMode, WarpBlocks: 1000}
		q := job.NewQueue()

		lc.Go(func(ctx context.Context) error {
			if err := ing.Start(ctx, cc, q); err != nil {
				return fmt.Errorf("monitor: propagator start ingestor for %s: %w", cc.Chain, err)
			}
			return nil
		})
		lc.Go(func(ctx context.Context) error {
			done := ing.Done(cc.Chain)
			return proc.Run(ctx, cc.Chain, q, done)
		})
	}

	log.Info("monitor: propagator started", "mode", mode)
	return lc.Wait()
}

// stdinConfirmer is the CLI's manual-mode Confirmer: a simple y/n prompt.
// It is the only place in this module that talks to stdin.
func stdinConfirmer(ctx context.Context, d propagate.Deployment, target string) bool {
	fmt.Printf("replay deployment %s from %s to %s? [y/N] ", d.Contract, d.SourceChain, target)
	var answer string
	fmt.Scanln(&answer)
	return strings.EqualFold(strings.TrimSpace(answer), "y")
}

func faucetCommand() *cli.Command {
	return &cli.Command{
		Name:  "faucet",
		Usage: "request test funds on a network (thin executor wrapper)",
		Flags: []cli.Flag{envFlag, networksFlag, &cli.StringFlag{Name: "network", Required: true}},
		Action: func(c *cli.Context) error {
			reg, err := loadRegistry(c)
			if err != nil {
				return err
			}
			ctx := context.Background()
			exec, err := buildExecutor(ctx, reg)
			if err != nil {
				return err
			}
			target, ok := reg.Get(c.String("network"))
			if !ok {
				return fmt.Errorf("monitor: unknown network %s", c.String("network"))
			}
			_, err = exec.Execute(ctx, executor.Call{Chain: target.Name, Contract: target.Peers.Factory, WaitForReceipt: true})
			return err
		},
	}
}

func bridgeCollectionCommand() *cli.Command {
	return &cli.Command{
		Name:  "bridge:collection",
		Usage: "re-submit a collection bridge transaction by hash (thin executor wrapper)",
		Flags: []cli.Flag{
			envFlag,
			networksFlag,
			&cli.StringFlag{Name: "network", Required: true, Usage: "chain the transaction originally ran on"},
			&cli.StringFlag{Name: "tx", Required: true, Usage: "hash of the transaction to replay"},
		},
		Action: func(c *cli.Context) error {
			reg, err := loadRegistry(c)
			if err != nil {
				return err
			}
			ctx := context.Background()
			target, ok := reg.Get(c.String("network"))
			if !ok {
				return fmt.Errorf("monitor: unknown network %s", c.String("network"))
			}
			pool := provider.New(ctx, reg)
			cli, err := pool.Get(target.Name)
			if err != nil {
				return fmt.Errorf("monitor: %s: %w", target.Name, err)
			}
			original, isPending, err := cli.Eth().TransactionByHash(ctx, common.HexToHash(c.String("tx")))
			if err != nil {
				return fmt.Errorf("monitor: fetch tx %s: %w", c.String("tx"), err)
			}
			if isPending {
				return fmt.Errorf("monitor: tx %s is still pending, nothing to replay", c.String("tx"))
			}
			to := original.To()
			if to == nil {
				return fmt.Errorf("monitor: tx %s has no recipient, cannot replay", c.String("tx"))
			}

			exec, err := buildExecutor(ctx, reg)
			if err != nil {
				return err
			}
			log.Info("monitor: bridge:collection replay requested", "network", target.Name, "tx", c.String("tx"))
			_, err = exec.Execute(ctx, executor.Call{
				Chain:          target.Name,
				Contract:       *to,
				Data:           original.Data(),
				Value:          original.Value(),
				WaitForReceipt: true,
			})
			return err
		},
	}
}

func createContractCommand() *cli.Command {
	return &cli.Command{
		Name:  "create:contract",
		Usage: "deploy a bridgeable contract on a target network (thin executor wrapper)",
		Flags: []cli.Flag{
			envFlag,
			networksFlag,
			&cli.StringFlag{Name: "deploymentType", Required: true},
			&cli.StringFlag{Name: "tx"},
			&cli.StringFlag{Name: "txNetwork"},
			&cli.StringFlag{Name: "targetNetwork", Required: true},
		},
		Action: func(c *cli.Context) error {
			reg, err := loadRegistry(c)
			if err != nil {
				return err
			}
			ctx := context.Background()
			exec, err := buildExecutor(ctx, reg)
			if err != nil {
				return err
			}
			target, ok := reg.Get(c.String("targetNetwork"))
			if !ok {
				return fmt.Errorf("monitor: unknown network %s", c.String("targetNetwork"))
			}
			_, err = exec.Execute(ctx, executor.Call{Chain: target.Name, Contract: target.Peers.Factory, WaitForReceipt: true})
			return err
		},
	}
}
