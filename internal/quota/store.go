package quota

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Store abstracts persistence of the quota state. Load returns (nil, nil)
// when no record exists yet.
type Store interface {
	Load() (*State, error)
	Save(*State) error
}

// FileStore persists the state as a single JSON record on disk.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed store at the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load() (*State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read quota state: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode quota state: %w", err)
	}
	return &st, nil
}

func (s *FileStore) Save(st *State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode quota state: %w", err)
	}

	// Write-then-rename so a crash mid-write can't corrupt the record.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write quota state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename quota state: %w", err)
	}
	return nil
}

// MemoryStore keeps the state in memory only. Used in tests and for hosts
// that accept losing the budget count on restart.
type MemoryStore struct {
	mu    sync.Mutex
	state *State
}

// NewMemoryStore creates an in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load() (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return nil, nil
	}
	st := *s.state
	return &st, nil
}

func (s *MemoryStore) Save(st *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *st
	s.state = &cp
	return nil
}
