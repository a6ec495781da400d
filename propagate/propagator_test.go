package propagate

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/holograph-network/monitor/chain"
	"github.com/holograph-network/monitor/decode"
	"github.com/holograph-network/monitor/executor"
	"github.com/holograph-network/monitor/provider"
)

func emptyExecutor(t *testing.T) *executor.Executor {
	t.Helper()
	reg, err := chain.NewRegistry(nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	pool := provider.New(context.Background(), reg)
	return executor.New(pool, nil)
}

func TestObserveListenModeNeverConfirms(t *testing.T) {
	confirmCalled := false
	confirm := func(ctx context.Context, d Deployment, target string) bool {
		confirmCalled = true
		return true
	}
	p := New(ModeListen, emptyExecutor(t), confirm, []string{"eth", "polygon"})

	ev := decode.BridgeableContractDeployed{Contract: common.HexToAddress("0x1"), Hash: common.HexToHash("0x2")}
	if err := p.Observe(context.Background(), "eth", ev); err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if confirmCalled {
		t.Errorf("expected ModeListen to never consult the Confirmer")
	}
}

func TestObserveManualModeConfirmsEveryNonSourceTarget(t *testing.T) {
	var confirmedTargets []string
	confirm := func(ctx context.Context, d Deployment, target string) bool {
		confirmedTargets = append(confirmedTargets, target)
		return false
	}
	p := New(ModeManual, emptyExecutor(t), confirm, []string{"eth", "polygon", "avalanche"})

	ev := decode.BridgeableContractDeployed{Contract: common.HexToAddress("0x1"), Hash: common.HexToHash("0x2")}
	if err := p.Observe(context.Background(), "eth", ev); err != nil {
		t.Fatalf("Observe: %v", err)
	}

	want := []string{"polygon", "avalanche"}
	if len(confirmedTargets) != len(want) {
		t.Fatalf("confirmed targets = %v, want %v", confirmedTargets, want)
	}
	for i, w := range want {
		if confirmedTargets[i] != w {
			t.Errorf("confirmedTargets[%d] = %s, want %s", i, confirmedTargets[i], w)
		}
	}
}

func TestObserveManualModeSkipsReplayOnConfirmFalse(t *testing.T) {
	confirm := func(ctx context.Context, d Deployment, target string) bool { return false }
	p := New(ModeManual, emptyExecutor(t), confirm, []string{"eth", "polygon"})

	ev := decode.BridgeableContractDeployed{Contract: common.HexToAddress("0x1"), Hash: common.HexToHash("0x2")}
	// emptyExecutor's pool has no configured chains, so any attempted replay
	// would fail; Observe must still return nil either way (failures are
	// logged, not propagated), so this only asserts no panic/deadlock.
	if err := p.Observe(context.Background(), "eth", ev); err != nil {
		t.Fatalf("Observe: %v", err)
	}
}

func TestRecoverSwallowsPerEntryFailures(t *testing.T) {
	p := New(ModeListen, emptyExecutor(t), nil, nil)
	list := RecoverList{
		{ContractAddress: common.HexToAddress("0x1"), SourceNetwork: "eth", TargetNetworks: []string{"polygon"}},
	}
	if err := p.Recover(context.Background(), list); err != nil {
		t.Fatalf("Recover: %v", err)
	}
}

func TestDeploymentCalldataIsConfigHash(t *testing.T) {
	d := Deployment{ConfigHash: common.HexToHash("0xabc")}
	got := deploymentCalldata(d)
	if string(got) != string(d.ConfigHash.Bytes()) {
		t.Errorf("deploymentCalldata = %x, want %x", got, d.ConfigHash.Bytes())
	}
}
