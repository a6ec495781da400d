package main

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/holograph-network/monitor/chain"
)

func testRegistry(t *testing.T) *chain.Registry {
	t.Helper()
	peers := chain.PeerAddresses{
		Bridge:   common.HexToAddress("0xb000000000000000000000000000000000000b"),
		Factory:  common.HexToAddress("0xfac70000000000000000000000000000000000"),
		Operator: common.HexToAddress("0x0000000000000000000000000000000000000a"),
	}
	c, err := chain.New("eth", 1, 1, "https://rpc.example.com", peers)
	if err != nil {
		t.Fatalf("chain.New: %v", err)
	}
	reg, err := chain.NewRegistry([]*chain.Chain{c})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}

func noSender(*types.Transaction) (common.Address, error) { return common.Address{}, nil }

func TestDefaultFilterSetMatchesConfiguredPeerAddresses(t *testing.T) {
	reg := testRegistry(t)
	set := defaultFilterSet(reg)

	c, _ := reg.Get("eth")
	for _, to := range []common.Address{c.Peers.Bridge, c.Peers.Factory, c.Peers.Operator} {
		tx := types.NewTx(&types.LegacyTx{To: &to})
		if got := set.Apply("eth", []*types.Transaction{tx}, noSender); len(got) != 1 {
			t.Errorf("expected a configured peer address %s to match", to)
		}
	}
}

func TestDefaultFilterSetRejectsUnrelatedAddress(t *testing.T) {
	reg := testRegistry(t)
	set := defaultFilterSet(reg)

	to := common.HexToAddress("0xdeaddeaddeaddeaddeaddeaddeaddeaddeaddead")
	tx := types.NewTx(&types.LegacyTx{To: &to})
	if got := set.Apply("eth", []*types.Transaction{tx}, noSender); len(got) != 0 {
		t.Errorf("expected an unrelated address not to match, got %v", got)
	}
}
