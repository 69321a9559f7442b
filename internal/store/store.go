package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when a requested encounter or report does not exist.
var ErrNotFound = errors.New("not found")

// pragmas are applied to every connection in order.
//
//   - WAL so list/show commands can read while analyze writes
//   - NORMAL synchronous, durable enough for re-importable captures
//   - 5-second busy timeout for lock contention
//   - foreign keys so reports cannot outlive their encounter
var pragmas = []struct{ name, value string }{
	{"journal_mode", "WAL"},
	{"synchronous", "NORMAL"},
	{"busy_timeout", "5000"},
	{"foreign_keys", "ON"},
}

// migrations[i] upgrades user_version i to i+1. Each runs in its own
// transaction together with the version bump.
var migrations = []func(tx *sql.Tx) error{
	// v1: ListReports filters by encounter and orders by insertion.
	func(tx *sql.Tx) error {
		_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_reports_encounter ON reports(encounter_id, seq)`)
		return err
	},
}

// Store is the SQLite-backed archive of imported encounters and the
// reports produced from them.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path, applies pragmas, creates
// missing tables and runs pending migrations. Opening an up-to-date
// database is a no-op beyond the pragmas.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, p := range pragmas {
		stmt := fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", stmt, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	from, err := migrate(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Debug("store opened", "path", path, "schema_from", from, "schema_version", len(migrations))
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// migrate applies every migration above the stored user_version and
// returns the version it started from.
func migrate(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("get user_version: %w", err)
	}

	for v := version; v < len(migrations); v++ {
		tx, err := db.Begin()
		if err != nil {
			return version, err
		}
		if err := migrations[v](tx); err != nil {
			tx.Rollback()
			return version, fmt.Errorf("migrate to v%d: %w", v+1, err)
		}
		// PRAGMA does not accept bound parameters.
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", v+1)); err != nil {
			tx.Rollback()
			return version, fmt.Errorf("set user_version: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return version, err
		}
	}
	return version, nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(ctx context.Context, name, expected string) error {
	var value string
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
