// Package signerif provides the minimal executor.Signer implementation the
// CLI needs to actually submit transactions. Keystore files, passphrase
// prompts, and hardware wallets are out of scope; this is a
// single hex private key read from the environment.
package signerif

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// PrivateKeySigner signs transactions with a single in-memory ECDSA key.
type PrivateKeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// FromHex builds a PrivateKeySigner from a hex-encoded secp256k1 private
// key (with or without a leading 0x).
func FromHex(hexKey string) (*PrivateKeySigner, error) {
	key, err := crypto.HexToECDSA(trim0x(hexKey))
	if err != nil {
		return nil, fmt.Errorf("signerif: parse private key: %w", err)
	}
	return &PrivateKeySigner{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

func trim0x(s string) string {
	if len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// Address returns the signer's address.
func (s *PrivateKeySigner) Address() common.Address { return s.address }

// SignTx signs tx for chainID using EIP-155 replay protection.
func (s *PrivateKeySigner) SignTx(chainID *big.Int, tx *types.Transaction) (*types.Transaction, error) {
	signer := types.LatestSignerForChainID(chainID)
	return types.SignTx(tx, signer, s.key)
}
