package store

import (
	"fmt"

	"github.com/praetorian-inc/sieve/pkg/types"
)

// Store persists scan run summaries.
type Store interface {
	// AddRun stores a run and its per-pattern match counts.
	AddRun(r *types.Run) error

	// GetRun retrieves a run by ID.
	GetRun(id string) (*types.Run, error)

	// GetRuns retrieves all runs, oldest first.
	GetRuns() ([]*types.Run, error)

	// Close closes the store.
	Close() error
}

// Config for store initialization.
type Config struct {
	// Path is the database file path.
	// Use ":memory:" for the in-memory store (useful for testing).
	Path string
}

// New creates a new Store.
// ":memory:" returns a MemoryStore, any other path a SQLiteStore.
func New(cfg Config) (Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if cfg.Path == ":memory:" {
		return NewMemory(), nil
	}
	return NewSQLite(cfg.Path)
}
