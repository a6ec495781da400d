// Package propagate implements the write-side Propagator orchestrator: it
// replays contract deployments observed on one chain to a set of peer
// chains.
package propagate

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/holograph-network/monitor/decode"
	"github.com/holograph-network/monitor/executor"
)

// Mode selects how a candidate deployment is handled before replay
//.
type Mode string

const (
	ModeListen Mode = "listen" // observe only, never replay
	ModeManual Mode = "manual" // ask Confirmer before replay
	ModeAuto   Mode = "auto"   // replay automatically
)

// Deployment is a candidate contract deployment discovered on SourceChain.
type Deployment struct {
	Contract    common.Address
	ConfigHash  common.Hash
	SourceChain string
}

// Confirmer decides whether a manual-mode candidate should be replayed. The
// core never prompts interactively itself; the CLI
// layer supplies a Confirmer backed by stdin when Mode == ModeManual.
type Confirmer func(ctx context.Context, d Deployment, target string) bool

// Propagator replays BridgeableContractDeployed events to peer chains.
type Propagator struct {
	mode      Mode
	exec      *executor.Executor
	confirm   Confirmer
	targets   []string
}

// New constructs a Propagator targeting the given peer chain names.
func New(mode Mode, exec *executor.Executor, confirm Confirmer, targets []string) *Propagator {
	return &Propagator{mode: mode, exec: exec, confirm: confirm, targets: targets}
}

// Observe is called with every decoded BridgeableContractDeployed event from
// the read pipeline; in ModeListen it only logs.
func (p *Propagator) Observe(ctx context.Context, sourceChain string, ev decode.BridgeableContractDeployed) error {
	d := Deployment{Contract: ev.Contract, ConfigHash: ev.Hash, SourceChain: sourceChain}
	log.Info("propagate: candidate deployment observed", "contract", d.Contract, "source", sourceChain)

	if p.mode == ModeListen {
		return nil
	}
	for _, target := range p.targets {
		if target == sourceChain {
			continue
		}
		if p.mode == ModeManual {
			if p.confirm == nil || !p.confirm(ctx, d, target) {
				log.Info("propagate: skipped by confirmer", "contract", d.Contract, "target", target)
				continue
			}
		}
		if err := p.replay(ctx, d, target); err != nil {
			log.Error("propagate: replay failed", "contract", d.Contract, "target", target, "err", err)
		}
	}
	return nil
}

func (p *Propagator) replay(ctx context.Context, d Deployment, target string) error {
	_, err := p.exec.Execute(ctx, executor.Call{
		Chain:          target,
		Contract:       d.Contract,
		Data:           deploymentCalldata(d),
		WaitForReceipt: true,
	})
	if err != nil {
		return fmt.Errorf("propagate: replay to %s: %w", target, err)
	}
	log.Info("propagate: replayed deployment", "contract", d.Contract, "target", target)
	return nil
}

// deploymentCalldata is a placeholder seam: concrete ABI encoding of the
// factory's deployment-replay method is a decoder capability the core
// depends on, not one it implements.
func deploymentCalldata(d Deployment) []byte {
	return d.ConfigHash.Bytes()
}

// RecoverList is the --recover/--recoverFile shape: a
// fixed JSON list of deployments to replay instead of listening live.
type RecoverList []struct {
	ContractAddress common.Address `json:"contractAddress"`
	SourceNetwork   string         `json:"sourceNetwork"`
	TargetNetworks  []string       `json:"targetNetworks"`
}

// Recover replays every entry in list unconditionally (auto semantics),
// regardless of p.mode, matching the one-shot nature of --recover.
func (p *Propagator) Recover(ctx context.Context, list RecoverList) error {
	for _, entry := range list {
		d := Deployment{Contract: entry.ContractAddress, SourceChain: entry.SourceNetwork}
		for _, target := range entry.TargetNetworks {
			if err := p.replay(ctx, d, target); err != nil {
				log.Error("propagate: recover replay failed", "contract", d.Contract, "target", target, "err", err)
			}
		}
	}
	return nil
}
