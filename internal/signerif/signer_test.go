package signerif

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/core/types"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestFromHexAcceptsWithAndWithoutPrefix(t *testing.T) {
	s1, err := FromHex(testKeyHex)
	if err != nil {
		t.Fatalf("FromHex: %v", err)
	}
	s2, err := FromHex("0x" + testKeyHex)
	if err != nil {
		t.Fatalf("FromHex with 0x prefix: %v", err)
	}
	if s1.Address() != s2.Address() {
		t.Errorf("addresses differ: %s vs %s", s1.Address(), s2.Address())
	}
}

func TestFromHexRejectsInvalidKey(t *testing.T) {
	if _, err := FromHex("not-a-hex-key"); err == nil {
		t.Fatalf("expected an error for a malformed key")
	}
}

func TestSignTxProducesRecoverableAddress(t *testing.T) {
	s, err := FromHex(testKeyHex)
	if err != nil {
		t.Fatalf("FromHex: %v", err)
	}

	tx := types.NewTx(&types.LegacyTx{Nonce: 0, Gas: 21000, GasPrice: big.NewInt(1)})
	chainID := big.NewInt(1)
	signed, err := s.SignTx(chainID, tx)
	if err != nil {
		t.Fatalf("SignTx: %v", err)
	}

	signer := types.LatestSignerForChainID(chainID)
	from, err := types.Sender(signer, signed)
	if err != nil {
		t.Fatalf("Sender: %v", err)
	}
	if from != s.Address() {
		t.Errorf("recovered sender = %s, want %s", from, s.Address())
	}
}

func TestTrim0x(t *testing.T) {
	cases := []struct{ in, want string }{
		{"0xabc", "abc"},
		{"0Xabc", "abc"},
		{"abc", "abc"},
		{"0", "0"},
		{"", ""},
	}
	for _, c := range cases {
		if got := trim0x(c.in); got != c.want {
			t.Errorf("trim0x(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
