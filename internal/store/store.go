package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Firmograph/Firmograph/internal/model"
	"github.com/Firmograph/Firmograph/internal/netutil"
)

// Store is the durable queue and result repository. All methods are safe for
// concurrent use; the single-connection pool serializes writes.
type Store struct {
	db *sql.DB

	// now is replaceable in tests.
	now func() time.Time
}

// Open opens (creating if needed) the database at path and applies pending
// migrations.
func Open(path string) (*Store, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, storageErr("open store", err)
	}
	if err := migrateDB(db); err != nil {
		db.Close()
		return nil, storageErr("migrate store", err)
	}
	log.Printf("Queue store opened at %s", path)
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Enqueue inserts domain as PENDING if it is not already known. Re-enqueuing
// an existing domain is a no-op; the source of record is the first insert.
func (s *Store) Enqueue(domain, source string) error {
	d := netutil.NormalizeHost(domain)
	if d == "" {
		return fmt.Errorf("enqueue: empty domain")
	}
	now := s.now().UnixNano()
	_, err := s.db.Exec(
		`INSERT INTO queue (domain, source, status, created_at_ns, updated_at_ns)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(domain) DO NOTHING`,
		d, source, model.StatusPending, now, now)
	if err != nil {
		return storageErr("enqueue", err)
	}
	return nil
}

// Lease atomically claims up to n entries that are PENDING or whose
// PROCESSING lease has expired. Claimed entries move to PROCESSING with a
// fresh lease stamp and an incremented attempt counter.
func (s *Store) Lease(n int, ttl time.Duration) ([]model.QueueEntry, error) {
	if n <= 0 {
		return nil, nil
	}
	now := s.now().UnixNano()
	expires := now + ttl.Nanoseconds()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, storageErr("lease", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(
		`SELECT domain, source, attempts, created_at_ns
		 FROM queue
		 WHERE status = ? OR (status = ? AND lease_expires_at_ns < ?)
		 ORDER BY updated_at_ns ASC
		 LIMIT ?`,
		model.StatusPending, model.StatusProcessing, now, n)
	if err != nil {
		return nil, storageErr("lease select", err)
	}
	var entries []model.QueueEntry
	for rows.Next() {
		var e model.QueueEntry
		if err := rows.Scan(&e.Domain, &e.Source, &e.Attempts, &e.CreatedAtNs); err != nil {
			rows.Close()
			return nil, storageErr("lease scan", err)
		}
		entries = append(entries, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, storageErr("lease rows", err)
	}

	for i := range entries {
		e := &entries[i]
		if _, err := tx.Exec(
			`UPDATE queue
			 SET status = ?, attempts = attempts + 1, lease_expires_at_ns = ?, updated_at_ns = ?
			 WHERE domain = ?`,
			model.StatusProcessing, expires, now, e.Domain); err != nil {
			return nil, storageErr("lease update", err)
		}
		e.Status = model.StatusProcessing
		e.Attempts++
		e.LeaseExpiresAtNs = expires
		e.UpdatedAtNs = now
	}
	if err := tx.Commit(); err != nil {
		return nil, storageErr("lease commit", err)
	}
	return entries, nil
}

// Complete upserts the result and moves the entry to a terminal status in a
// single transaction. It fails with ErrNotProcessing unless the entry is
// under an active lease.
func (s *Store) Complete(domain string, res *model.CrawlResult, terminal model.Status) error {
	if !terminal.IsTerminal() {
		return fmt.Errorf("complete %s: %q is not a terminal status", domain, terminal)
	}
	d := netutil.NormalizeHost(domain)
	now := s.now().UnixNano()

	tx, err := s.db.Begin()
	if err != nil {
		return storageErr("complete", err)
	}
	defer tx.Rollback()

	if err := requireProcessing(tx, d); err != nil {
		return err
	}
	if res != nil {
		if err := upsertResult(tx, d, res); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(
		`UPDATE queue SET status = ?, lease_expires_at_ns = 0, updated_at_ns = ? WHERE domain = ?`,
		terminal, now, d); err != nil {
		return storageErr("complete update", err)
	}
	if err := tx.Commit(); err != nil {
		return storageErr("complete commit", err)
	}
	return nil
}

// Fail moves a leased entry to a terminal status without writing a result.
func (s *Store) Fail(domain string, terminal model.Status) error {
	return s.Complete(domain, nil, terminal)
}

// Release returns a leased entry to PENDING with attempts preserved. Used
// for host-mutex deferral and cancellation.
func (s *Store) Release(domain string) error {
	d := netutil.NormalizeHost(domain)
	now := s.now().UnixNano()
	r, err := s.db.Exec(
		`UPDATE queue SET status = ?, lease_expires_at_ns = 0, updated_at_ns = ?
		 WHERE domain = ? AND status = ?`,
		model.StatusPending, now, d, model.StatusProcessing)
	if err != nil {
		return storageErr("release", err)
	}
	affected, err := r.RowsAffected()
	if err != nil {
		return storageErr("release", err)
	}
	if affected == 0 {
		return fmt.Errorf("release %s: %w", d, ErrNotProcessing)
	}
	return nil
}

// Reset moves entries in the given terminal statuses back to PENDING with
// attempts preserved. With no filter it targets every failure status
// (COMPLETED rows are only reset when named explicitly, which is the
// re-crawl path). Returns the number of rows transitioned.
func (s *Store) Reset(filter []model.Status) (int64, error) {
	if len(filter) == 0 {
		for _, st := range model.TerminalStatuses {
			if st != model.StatusCompleted {
				filter = append(filter, st)
			}
		}
	}
	placeholders := make([]string, 0, len(filter))
	args := make([]any, 0, len(filter)+1)
	args = append(args, model.StatusPending, s.now().UnixNano())
	for _, st := range filter {
		if !st.IsTerminal() {
			return 0, fmt.Errorf("reset: %q is not a terminal status", st)
		}
		placeholders = append(placeholders, "?")
		args = append(args, st)
	}
	r, err := s.db.Exec(
		`UPDATE queue SET status = ?, lease_expires_at_ns = 0, updated_at_ns = ?
		 WHERE status IN (`+strings.Join(placeholders, ",")+`)`, args...)
	if err != nil {
		return 0, storageErr("reset", err)
	}
	n, err := r.RowsAffected()
	if err != nil {
		return 0, storageErr("reset", err)
	}
	return n, nil
}

// SnapshotStats returns row counts per status.
func (s *Store) SnapshotStats() (map[model.Status]int, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM queue GROUP BY status`)
	if err != nil {
		return nil, storageErr("stats", err)
	}
	defer rows.Close()
	stats := make(map[model.Status]int)
	for rows.Next() {
		var st model.Status
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, storageErr("stats scan", err)
		}
		stats[st] = n
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("stats rows", err)
	}
	return stats, nil
}

// Entry returns the queue row for domain.
func (s *Store) Entry(domain string) (*model.QueueEntry, error) {
	d := netutil.NormalizeHost(domain)
	var e model.QueueEntry
	err := s.db.QueryRow(
		`SELECT domain, source, status, attempts, lease_expires_at_ns, created_at_ns, updated_at_ns
		 FROM queue WHERE domain = ?`, d).
		Scan(&e.Domain, &e.Source, &e.Status, &e.Attempts, &e.LeaseExpiresAtNs, &e.CreatedAtNs, &e.UpdatedAtNs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entry %s: %w", d, ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("entry", err)
	}
	return &e, nil
}

func requireProcessing(tx *sql.Tx, domain string) error {
	var st model.Status
	err := tx.QueryRow(`SELECT status FROM queue WHERE domain = ?`, domain).Scan(&st)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", domain, ErrNotFound)
	}
	if err != nil {
		return storageErr("status check", err)
	}
	if st != model.StatusProcessing {
		return fmt.Errorf("%s is %s: %w", domain, st, ErrNotProcessing)
	}
	return nil
}
