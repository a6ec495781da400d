package correlate

import (
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestFileArchiveAppendAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "archive.json")

	a, err := OpenFileArchive(path)
	if err != nil {
		t.Fatalf("OpenFileArchive (new file): %v", err)
	}

	j := &Job{
		JobHash:   common.HexToHash("0xabc"),
		Type:      TypeERC20,
		Origin:    ChainBlock{Tx: common.HexToHash("0x1"), Chain: "eth", Block: 10},
		Available: ChainBlock{Tx: common.HexToHash("0x2"), Chain: "polygon", Block: 11},
		Operator:  ChainBlock{Tx: common.HexToHash("0x3"), Chain: "polygon", Block: 12},
		Completed: true,
	}
	if err := a.Append(j); err != nil {
		t.Fatalf("Append: %v", err)
	}

	reopened, err := OpenFileArchive(path)
	if err != nil {
		t.Fatalf("OpenFileArchive (reload): %v", err)
	}
	jobs := reopened.Jobs()
	if len(jobs) != 1 {
		t.Fatalf("expected 1 reloaded job, got %d", len(jobs))
	}
	got := jobs[0]
	if got.JobHash != j.JobHash || got.Type != j.Type || !got.Completed {
		t.Errorf("reloaded job mismatch: got %+v, want %+v", got, j)
	}
	if got.Origin.Block != 10 || got.Available.Block != 11 || got.Operator.Block != 12 {
		t.Errorf("reloaded phase blocks mismatch: %+v", got)
	}
}

func TestOpenFileArchiveMissingFile(t *testing.T) {
	dir := t.TempDir()
	a, err := OpenFileArchive(filepath.Join(dir, "missing.json"))
	if err != nil {
		t.Fatalf("OpenFileArchive on missing file should not error, got %v", err)
	}
	if len(a.Jobs()) != 0 {
		t.Errorf("expected no jobs from a fresh archive, got %d", len(a.Jobs()))
	}
}
