package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/praetorian-inc/sieve/pkg/types"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite (pure Go driver, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a SQLite-based store at path.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := CreateSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// AddRun stores a run and its pattern hits in one transaction.
func (s *SQLiteStore) AddRun(r *types.Run) error {
	if r.ID == "" {
		return fmt.Errorf("run ID is required")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs (id, started_at, input, backend, fingerprint, bytes_scanned, records, truncated, matches, elapsed_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID,
		r.StartedAt.UnixNano(),
		r.Input,
		r.Backend,
		r.Fingerprint,
		r.Stats.BytesScanned,
		r.Stats.Records,
		r.Stats.Truncated,
		r.Stats.Matches,
		int64(r.Stats.Elapsed),
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	for id, hits := range r.PatternHits {
		_, err = tx.Exec("INSERT INTO pattern_hits (run_id, pattern_id, hits) VALUES (?, ?, ?)", r.ID, int64(id), hits)
		if err != nil {
			return fmt.Errorf("inserting pattern hits: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(id string) (*types.Run, error) {
	row := s.db.QueryRow(`
		SELECT id, started_at, input, backend, fingerprint, bytes_scanned, records, truncated, matches, elapsed_ns
		FROM runs WHERE id = ?
	`, id)

	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying run: %w", err)
	}

	if err := s.loadPatternHits(r); err != nil {
		return nil, err
	}
	return r, nil
}

// GetRuns retrieves all runs, oldest first.
func (s *SQLiteStore) GetRuns() ([]*types.Run, error) {
	rows, err := s.db.Query(`
		SELECT id, started_at, input, backend, fingerprint, bytes_scanned, records, truncated, matches, elapsed_ns
		FROM runs ORDER BY started_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}

	var runs []*types.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	rows.Close()

	for _, r := range runs {
		if err := s.loadPatternHits(r); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*types.Run, error) {
	var (
		r         types.Run
		startedAt int64
		elapsed   int64
	)
	err := row.Scan(
		&r.ID,
		&startedAt,
		&r.Input,
		&r.Backend,
		&r.Fingerprint,
		&r.Stats.BytesScanned,
		&r.Stats.Records,
		&r.Stats.Truncated,
		&r.Stats.Matches,
		&elapsed,
	)
	if err != nil {
		return nil, err
	}
	r.StartedAt = time.Unix(0, startedAt).UTC()
	r.Stats.Elapsed = time.Duration(elapsed)
	return &r, nil
}

func (s *SQLiteStore) loadPatternHits(r *types.Run) error {
	rows, err := s.db.Query("SELECT pattern_id, hits FROM pattern_hits WHERE run_id = ?", r.ID)
	if err != nil {
		return fmt.Errorf("querying pattern hits: %w", err)
	}
	defer rows.Close()

	r.PatternHits = make(map[uint]int64)
	for rows.Next() {
		var id, hits int64
		if err := rows.Scan(&id, &hits); err != nil {
			return fmt.Errorf("scanning pattern hits: %w", err)
		}
		r.PatternHits[uint(id)] = hits
	}
	return rows.Err()
}
