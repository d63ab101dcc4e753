package store

import (
	"fmt"
	"maps"
	"sync"

	"github.com/praetorian-inc/sieve/pkg/types"
)

// MemoryStore implements Store using in-memory data structures.
type MemoryStore struct {
	mu    sync.RWMutex
	runs  []*types.Run
	index map[string]int // run ID -> position in runs
}

// NewMemory creates a new in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		runs:  make([]*types.Run, 0),
		index: make(map[string]int),
	}
}

// AddRun stores a copy of r.
func (m *MemoryStore) AddRun(r *types.Run) error {
	if r.ID == "" {
		return fmt.Errorf("run ID is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.index[r.ID]; exists {
		return fmt.Errorf("run %s already stored", r.ID)
	}
	m.index[r.ID] = len(m.runs)
	m.runs = append(m.runs, copyRun(r))
	return nil
}

// GetRun retrieves a run by ID.
func (m *MemoryStore) GetRun(id string) (*types.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx, ok := m.index[id]
	if !ok {
		return nil, fmt.Errorf("run %s not found", id)
	}
	return copyRun(m.runs[idx]), nil
}

// GetRuns retrieves all runs in insertion order.
func (m *MemoryStore) GetRuns() ([]*types.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*types.Run, len(m.runs))
	for i, r := range m.runs {
		result[i] = copyRun(r)
	}
	return result, nil
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error {
	return nil
}

func copyRun(r *types.Run) *types.Run {
	c := *r
	c.PatternHits = maps.Clone(r.PatternHits)
	return &c
}
