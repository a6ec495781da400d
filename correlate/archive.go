package correlate

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// record is the on-disk shape of one archived job: a JSON array of
// discriminated records, each with {logType: ...}.
type record struct {
	LogType string `json:"logType"`

	JobHash common.Hash `json:"jobHash"`
	Type    Type        `json:"type"`

	OriginTx      common.Hash `json:"originTx,omitempty"`
	OriginChain   string      `json:"originNetwork,omitempty"`
	OriginBlock   uint64      `json:"originBlock,omitempty"`
	AvailableTx   common.Hash `json:"availableTx,omitempty"`
	AvailableChain string     `json:"availableNetwork,omitempty"`
	AvailableBlock uint64     `json:"availableBlock,omitempty"`
	OperatorTx    common.Hash `json:"operatorTx,omitempty"`
	OperatorChain string      `json:"operatorNetwork,omitempty"`
	OperatorBlock uint64      `json:"operatorBlock,omitempty"`

	Completed bool `json:"completed"`
}

func logTypeFor(j *Job) string {
	if j.Type == TypeDeploy {
		return "ContractDeployment"
	}
	return "AvailableJob"
}

func toRecord(j *Job) record {
	return record{
		LogType:        logTypeFor(j),
		JobHash:        j.JobHash,
		Type:           j.Type,
		OriginTx:       j.Origin.Tx,
		OriginChain:    j.Origin.Chain,
		OriginBlock:    j.Origin.Block,
		AvailableTx:    j.Available.Tx,
		AvailableChain: j.Available.Chain,
		AvailableBlock: j.Available.Block,
		OperatorTx:     j.Operator.Tx,
		OperatorChain:  j.Operator.Chain,
		OperatorBlock:  j.Operator.Block,
		Completed:      j.Completed,
	}
}

func fromRecord(r record) *Job {
	return &Job{
		JobHash:   r.JobHash,
		Type:      r.Type,
		Origin:    ChainBlock{Tx: r.OriginTx, Chain: r.OriginChain, Block: r.OriginBlock},
		Available: ChainBlock{Tx: r.AvailableTx, Chain: r.AvailableChain, Block: r.AvailableBlock},
		Operator:  ChainBlock{Tx: r.OperatorTx, Chain: r.OperatorChain, Block: r.OperatorBlock},
		Completed: r.Completed,
	}
}

// FileArchive is an Archiver that appends to, and can reload, a single JSON
// array file").
type FileArchive struct {
	path string

	mu      sync.Mutex
	records []record
}

// OpenFileArchive loads an existing archive file, or starts a fresh empty
// one if path does not exist.
func OpenFileArchive(path string) (*FileArchive, error) {
	a := &FileArchive{path: path}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return a, nil
		}
		return nil, fmt.Errorf("correlate: read archive %s: %w", path, err)
	}
	if len(raw) == 0 {
		return a, nil
	}
	if err := json.Unmarshal(raw, &a.records); err != nil {
		return nil, fmt.Errorf("correlate: parse archive %s: %w", path, err)
	}
	return a, nil
}

// Append adds j to the in-memory record set and rewrites the archive file.
// Rewrite-on-append keeps the file always loadable, at the cost of rewriting
// the whole array on every append.
func (a *FileArchive) Append(j *Job) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, toRecord(j))
	return a.persist()
}

func (a *FileArchive) persist() error {
	raw, err := json.MarshalIndent(a.records, "", "  ")
	if err != nil {
		return err
	}
	tmp := a.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, a.path)
}

// Jobs returns every archived record decoded back into a *Job, in archive
// order, for use by Correlator.Reload.
func (a *FileArchive) Jobs() []*Job {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*Job, 0, len(a.records))
	for _, r := range a.records {
		out = append(out, fromRecord(r))
	}
	return out
}
