// Package executor implements the write-side Transaction Executor: gas
// estimation, nonce-safe send, wait-for-receipt, and retry classification
//. It is independent of the read pipeline and is shared by
// the propagator, analyzer CLI helpers, and the operator-job validator used
// by the Job Correlator.
package executor

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/holograph-network/monitor/provider"
)

// Signer abstracts wallet custody and transaction signing. Concrete key
// storage, decryption, and interactive passphrase prompts are out of scope
// for this module; callers supply a Signer implementation.
type Signer interface {
	Address() common.Address
	SignTx(chainID *big.Int, tx *types.Transaction) (*types.Transaction, error)
}

// Call describes one contract invocation to execute.
type Call struct {
	Chain          string
	Contract       common.Address
	Data           []byte
	Value          *big.Int
	WaitForReceipt bool
}

// mumbaiGasBump is applied to the observed gas price on mumbai.
const mumbaiGasBump = 1.25

const (
	receiptMaxAttempts = 10
	receiptMinInterval = 500 * time.Millisecond
	receiptMaxInterval = 10 * time.Second
)

// alreadyExecutedSignal is matched (as a substring) against a revert reason
// to recognize the "job already executed" condition consulted by
// ValidateOperatorJob.
const alreadyExecutedSignal = "already executed"

// ErrAlreadyExecuted is returned by EstimateGas when the call reverts
// because the underlying job has already been executed.
var ErrAlreadyExecuted = errors.New("executor: job already executed")

// Executor submits transactions against chains reachable through pool,
// using signer for every chain (a real deployment would select a signer per
// chain; this module treats signer selection as the caller's concern).
type Executor struct {
	pool   *provider.Pool
	signer Signer
}

// New constructs an Executor.
func New(pool *provider.Pool, signer Signer) *Executor {
	return &Executor{pool: pool, signer: signer}
}

// EstimateGas returns the estimated gas limit for call, or (0, ErrAlreadyExecuted)
// when the call reverts with the "already executed" signal.
func (e *Executor) EstimateGas(ctx context.Context, call Call) (uint64, error) {
	cli, err := e.pool.Get(call.Chain)
	if err != nil {
		return 0, &provider.Error{Chain: call.Chain, Transient: true, Err: err}
	}
	msg := ethereumCallMsg(e.signer.Address(), call)
	gas, err := cli.Eth().EstimateGas(ctx, msg)
	if err != nil {
		if isAlreadyExecuted(err) {
			return 0, ErrAlreadyExecuted
		}
		return 0, &provider.Error{Chain: call.Chain, Transient: classifyTransient(err), Err: err}
	}
	return gas, nil
}

// ValidateOperatorJob implements correlate.OperatorJobValidator: it asks the
// destination chain whether executing this job would revert with the
// "already done" signal.
func (e *Executor) ValidateOperatorJob(ctx context.Context, chainName string, jobHash common.Hash, payload []byte) (bool, error) {
	cli, err := e.pool.Get(chainName)
	if err != nil {
		return false, err
	}
	reg, _ := lookupPeerOperator(cli)
	_, gasErr := e.EstimateGas(ctx, Call{Chain: chainName, Contract: reg, Data: payload})
	if errors.Is(gasErr, ErrAlreadyExecuted) {
		return true, nil
	}
	if gasErr != nil {
		var perr *provider.Error
		if errors.As(gasErr, &perr) && perr.Transient {
			return false, gasErr
		}
		return false, nil
	}
	return false, nil
}

// Execute estimates gas, submits the transaction, and optionally waits for
// its receipt.
func (e *Executor) Execute(ctx context.Context, call Call) (*types.Receipt, error) {
	cli, err := e.pool.Get(call.Chain)
	if err != nil {
		return nil, &provider.Error{Chain: call.Chain, Transient: true, Err: err}
	}

	gasLimit, err := e.EstimateGas(ctx, call)
	if err != nil {
		return nil, err
	}

	gasPrice, err := cli.Eth().SuggestGasPrice(ctx)
	if err != nil {
		return nil, &provider.Error{Chain: call.Chain, Transient: true, Err: err}
	}
	if call.Chain == "mumbai" {
		gasPrice = bumpGasPrice(gasPrice, mumbaiGasBump)
	}

	nonce, err := cli.Eth().PendingNonceAt(ctx, e.signer.Address())
	if err != nil {
		return nil, &provider.Error{Chain: call.Chain, Transient: true, Err: err}
	}

	value := call.Value
	if value == nil {
		value = big.NewInt(0)
	}
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &call.Contract,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     call.Data,
	})

	chainID, err := cli.Eth().ChainID(ctx)
	if err != nil {
		return nil, &provider.Error{Chain: call.Chain, Transient: true, Err: err}
	}
	signed, err := e.signer.SignTx(chainID, tx)
	if err != nil {
		return nil, fmt.Errorf("executor: sign tx: %w", err)
	}

	if err := cli.Eth().SendTransaction(ctx, signed); err != nil {
		if classifyTransient(err) {
			log.Warn("executor: transient submission error", "chain", call.Chain, "err", err)
		}
		return nil, &provider.Error{Chain: call.Chain, Transient: classifyTransient(err), Err: err}
	}

	if !call.WaitForReceipt {
		return nil, nil
	}
	return e.waitForReceipt(ctx, cli, signed.Hash())
}

func (e *Executor) waitForReceipt(ctx context.Context, cli *provider.Client, txHash common.Hash) (*types.Receipt, error) {
	interval := receiptMinInterval
	for attempt := 0; attempt < receiptMaxAttempts; attempt++ {
		receipt, err := cli.Eth().TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
		interval *= 2
		if interval > receiptMaxInterval {
			interval = receiptMaxInterval
		}
	}
	return nil, fmt.Errorf("executor: receipt not found for %s after %d attempts", txHash, receiptMaxAttempts)
}

func bumpGasPrice(price *big.Int, factor float64) *big.Int {
	f := new(big.Float).Mul(new(big.Float).SetInt(price), big.NewFloat(factor))
	out, _ := f.Int(nil)
	return out
}

func isAlreadyExecuted(err error) bool {
	return err != nil && containsFold(err.Error(), alreadyExecutedSignal)
}

// classifyTransient distinguishes retryable submission failures (nonce
// races, socket drops) from terminal ones.
func classifyTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, sig := range []string{"nonce too low", "replacement transaction underpriced", "connection reset", "EOF", "already known"} {
		if containsFold(msg, sig) {
			return true
		}
	}
	return false
}
