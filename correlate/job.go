// Package correlate implements the Job Correlator: a single-threaded,
// in-memory state machine that stitches together the three phases of a
// cross-chain bridge job.
package correlate

import (
	"github.com/ethereum/go-ethereum/common"
)

// Type classifies the bridge payload a job carries.
type Type string

const (
	TypeDeploy  Type = "deploy"
	TypeERC20   Type = "erc20"
	TypeERC721  Type = "erc721"
	TypeUnknown Type = "unknown"
)

// Phase identifies which of the three lifecycle events is being reported.
type Phase int

const (
	PhaseOrigin Phase = iota
	PhaseAvailable
	PhaseExecuted
)

// ChainBlock names the chain and block number at which a phase was observed.
type ChainBlock struct {
	Tx    common.Hash
	Chain string
	Block uint64
}

func (cb ChainBlock) recorded() bool { return cb.Tx != (common.Hash{}) }

// Job is the correlator's in-memory record for one jobHash.
type Job struct {
	JobHash common.Hash
	Type    Type

	Origin    ChainBlock
	Available ChainBlock
	Operator  ChainBlock

	Completed bool
}

// phaseCount returns how many of the three phases have been recorded,
// re-derivable from the presence of each tx hash.
func (j *Job) phaseCount() int {
	n := 0
	if j.Origin.recorded() {
		n++
	}
	if j.Available.recorded() {
		n++
	}
	if j.Operator.recorded() {
		n++
	}
	return n
}
