// Package sqlite provides durable storage for reindex job records and the
// token usage ledger on a single embedded SQLite database.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/fyrsmithlabs/ragd/internal/reindex"
	"github.com/fyrsmithlabs/ragd/internal/usage"
)

// migrations are applied in order; schema_migrations tracks the current
// version so re-opening an existing database is a no-op.
var migrations = []string{
	`CREATE TABLE reindex_jobs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT,
		documents_processed INTEGER NOT NULL DEFAULT 0,
		vectors_generated INTEGER NOT NULL DEFAULT 0,
		cost_estimate REAL NOT NULL DEFAULT 0,
		stale_doc_rate REAL NOT NULL DEFAULT 0,
		error_count INTEGER NOT NULL DEFAULT 0,
		trigger_type TEXT NOT NULL,
		version TEXT NOT NULL,
		model_used TEXT NOT NULL
	);
	CREATE INDEX idx_reindex_jobs_start_time ON reindex_jobs(start_time);`,

	`CREATE TABLE usage_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		type TEXT NOT NULL,
		amount INTEGER NOT NULL,
		user_id TEXT,
		recorded_at TEXT NOT NULL
	);`,
}

// Store is a unified SQLite-based storage that backs the job store and
// usage ledger interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a SQLite store under dataDir.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".ragd", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "ragd.db")

	// WAL keeps readers unblocked while a job run writes its updates.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: dbPath}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// JobStore returns a reindex.JobStore backed by this store.
func (s *Store) JobStore() reindex.JobStore {
	return &jobStore{store: s}
}

// UsageLedger returns a usage.Ledger backed by this store.
func (s *Store) UsageLedger() usage.Ledger {
	return &usageLedger{store: s}
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	for i, stmt := range migrations {
		version := i + 1
		if version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing migration %d: %w", version, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
	}

	return nil
}

// ==================== Helper Functions ====================

// formatNullableTime formats a time to RFC3339, or returns nil for nil
// or zero times.
func formatNullableTime(t *time.Time) interface{} {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.Format(time.RFC3339Nano)
}

// parseNullableTime parses a nullable RFC3339 string. Returns nil for
// empty or invalid values.
func parseNullableTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	return &t
}
