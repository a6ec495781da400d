package filter

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var bridgeAddr = common.HexToAddress("0x1111111111111111111111111111111111111111")
var otherAddr = common.HexToAddress("0x2222222222222222222222222222222222222222")

func sampleTx(to common.Address, data []byte) *types.Transaction {
	return types.NewTx(&types.LegacyTx{
		Nonce:    0,
		To:       &to,
		Value:    big.NewInt(0),
		Gas:      21000,
		GasPrice: big.NewInt(1),
		Data:     data,
	})
}

func constSender(addr common.Address) func(*types.Transaction) (common.Address, error) {
	return func(*types.Transaction) (common.Address, error) { return addr, nil }
}

func TestSetMatchTo(t *testing.T) {
	set := NewSet(MatchTo(bridgeAddr))
	matched := sampleTx(bridgeAddr, nil)
	unmatched := sampleTx(otherAddr, nil)

	out := set.Apply("eth", []*types.Transaction{matched, unmatched}, constSender(otherAddr))
	if len(out) != 1 || out[0].Hash() != matched.Hash() {
		t.Fatalf("expected only the matched tx, got %d results", len(out))
	}
}

func TestSetMatchFunctionSelector(t *testing.T) {
	sel := Selector{0xde, 0xad, 0xbe, 0xef}
	set := NewSet(MatchFunctionSelector(sel))
	tx := sampleTx(otherAddr, []byte{0xde, 0xad, 0xbe, 0xef, 0x01})
	short := sampleTx(otherAddr, []byte{0x01, 0x02})

	out := set.Apply("eth", []*types.Transaction{tx, short}, constSender(otherAddr))
	if len(out) != 1 || out[0].Hash() != tx.Hash() {
		t.Fatalf("expected only the selector-matched tx, got %d results", len(out))
	}
}

func TestSetDedupWithinCall(t *testing.T) {
	set := NewSet(MatchTo(bridgeAddr))
	tx := sampleTx(bridgeAddr, nil)
	out := set.Apply("eth", []*types.Transaction{tx, tx}, constSender(otherAddr))
	if len(out) != 1 {
		t.Fatalf("expected the duplicate tx to be admitted once, got %d", len(out))
	}
}

func TestBoundedSetDedupAcrossCalls(t *testing.T) {
	set, err := NewBoundedSet(16, MatchTo(bridgeAddr))
	if err != nil {
		t.Fatalf("NewBoundedSet: %v", err)
	}
	tx := sampleTx(bridgeAddr, nil)

	first := set.Apply("eth", []*types.Transaction{tx}, constSender(otherAddr))
	if len(first) != 1 {
		t.Fatalf("expected tx admitted on first call, got %d", len(first))
	}
	second := set.Apply("eth", []*types.Transaction{tx}, constSender(otherAddr))
	if len(second) != 0 {
		t.Fatalf("expected tx suppressed on second call, got %d", len(second))
	}
}

func TestMatchToPerChainUnknownNetwork(t *testing.T) {
	set := NewSet(MatchToPerChain(map[string]common.Address{"eth": bridgeAddr}))
	tx := sampleTx(bridgeAddr, nil)
	out := set.Apply("polygon", []*types.Transaction{tx}, constSender(otherAddr))
	if len(out) != 0 {
		t.Errorf("expected no match for an unconfigured chain, got %d", len(out))
	}
}
