// Package progress persists the per-chain last-processed block height so a
// restart resumes close to where it left off.
package progress

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

// Store owns a single snapshot file. Reads on Open; atomic temp-file+rename
// writes on Save.
type Store struct {
	path string

	mu       sync.Mutex
	snapshot map[string]uint64
}

// Open reads the existing snapshot file at <configDir>/<filename>, or starts
// with an empty snapshot if it does not exist. A chain absent or zero means
// "start from current head".
func Open(configDir, filename string) (*Store, error) {
	path := filepath.Join(configDir, filename)
	s := &Store{path: path, snapshot: make(map[string]uint64)}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	if len(raw) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(raw, &s.snapshot); err != nil {
		return nil, err
	}
	return s, nil
}

// Get returns the last-processed block height for chainName, or 0 if the
// chain is absent from the snapshot.
func (s *Store) Get(chainName string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot[chainName]
}

// Set records chainName's last fully-handled block. Callers update this only
// after a block's handler has run to completion, so
// the in-memory snapshot is always a valid upper bound for Save.
func (s *Store) Set(chainName string, block uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if block > s.snapshot[chainName] {
		s.snapshot[chainName] = block
	}
}

// Save atomically persists the current snapshot (temp-file + rename).
func (s *Store) Save() error {
	s.mu.Lock()
	raw, err := json.MarshalIndent(s.snapshot, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return err
	}
	log.Info("progress: snapshot saved", "path", s.path)
	return nil
}

// Snapshot returns a copy of the current chain -> block map.
func (s *Store) Snapshot() map[string]uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]uint64, len(s.snapshot))
	for k, v := range s.snapshot {
		out[k] = v
	}
	return out
}
