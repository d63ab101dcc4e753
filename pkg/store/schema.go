package store

import (
	"database/sql"
	"fmt"
)

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// CreateSchema creates the database schema if it doesn't exist.
func CreateSchema(db *sql.DB) error {
	if err := createSchemaVersionTable(db); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	if err := createRunsTable(db); err != nil {
		return fmt.Errorf("creating runs table: %w", err)
	}

	if err := createPatternHitsTable(db); err != nil {
		return fmt.Errorf("creating pattern_hits table: %w", err)
	}

	return nil
}

func createSchemaVersionTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&count)
	if err != nil {
		return err
	}

	if count == 0 {
		_, err = db.Exec("INSERT INTO schema_version (version) VALUES (?)", SchemaVersion)
		return err
	}

	return nil
}

func createRunsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at INTEGER NOT NULL,
			input TEXT NOT NULL,
			backend TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			bytes_scanned INTEGER NOT NULL,
			records INTEGER NOT NULL,
			truncated INTEGER NOT NULL,
			matches INTEGER NOT NULL,
			elapsed_ns INTEGER NOT NULL
		)
	`)
	return err
}

func createPatternHitsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS pattern_hits (
			run_id TEXT NOT NULL REFERENCES runs(id),
			pattern_id INTEGER NOT NULL,
			hits INTEGER NOT NULL,
			PRIMARY KEY (run_id, pattern_id)
		)
	`)
	return err
}
