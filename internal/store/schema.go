// Package store persists the domain queue and crawl results in a single
// SQLite database with atomic lease and transition semantics.
package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// Sentinel errors surfaced to the orchestrator.
var (
	// ErrStorageUnavailable wraps any backend failure; the orchestrator
	// stops leasing and drains when it sees this.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrNotProcessing is returned when a transition requires the row to be
	// under an active lease and it is not.
	ErrNotProcessing = errors.New("queue entry not in PROCESSING")

	// ErrNotFound is returned for operations on unknown domains.
	ErrNotFound = errors.New("queue entry not found")
)

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrStorageUnavailable, err)
}

// openDB opens the SQLite file with the pragmas the single-writer design
// relies on. The connection pool is capped at one connection so transactions
// serialize instead of returning SQLITE_BUSY.
func openDB(path string) (*sql.DB, error) {
	dsn := "file:" + path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=foreign_keys(ON)" +
		"&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	return db, nil
}
