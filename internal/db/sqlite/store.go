// Package sqlite implements db.Store on a local SQLite file via the pure-Go
// modernc.org/sqlite driver. It is the zero-dependency deployment option:
// one collection, one file, durable writes.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/kailas-cloud/ragdex/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// Config holds settings for a SQLite store.
type Config struct {
	Path string
}

// Store implements db.Store on a single SQLite database file.
type Store struct {
	db   *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	data       BLOB NOT NULL,
	PRIMARY KEY (collection, id)
);
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	expires_at INTEGER
);
`

// NewStore opens (or creates) the database file and applies the schema.
// WAL mode lets searches proceed concurrently with the single writer.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	conn, err := sql.Open("sqlite", cfg.Path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(FULL)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := conn.Exec(schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{db: conn, path: cfg.Path}, nil
}

// Ping checks database availability.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() {
	_ = s.db.Close()
}

// WaitForReady pings once; a local file is either usable or not.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.Ping(ctx)
}

// PutEntries upserts a batch of entry records in one transaction.
func (s *Store) PutEntries(ctx context.Context, collection string, records []db.EntryRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &db.Error{Op: db.OpPutEntries, Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO entries (collection, id, data) VALUES (?, ?, ?)
		 ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data`)
	if err != nil {
		return &db.Error{Op: db.OpPutEntries, Err: err}
	}
	defer func() { _ = stmt.Close() }()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, collection, rec.ID, rec.Data); err != nil {
			return &db.Error{Op: db.OpPutEntries, Err: fmt.Errorf("id %s: %w", rec.ID, err)}
		}
	}

	if err := tx.Commit(); err != nil {
		return &db.Error{Op: db.OpPutEntries, Err: err}
	}
	return nil
}

// ListEntries returns every entry record of a collection in insertion order.
func (s *Store) ListEntries(ctx context.Context, collection string) ([]db.EntryRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, data FROM entries WHERE collection = ? ORDER BY rowid`, collection)
	if err != nil {
		return nil, &db.Error{Op: db.OpList, Err: err}
	}
	defer func() { _ = rows.Close() }()

	var records []db.EntryRecord
	for rows.Next() {
		var rec db.EntryRecord
		if err := rows.Scan(&rec.ID, &rec.Data); err != nil {
			return nil, &db.Error{Op: db.OpList, Err: err}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &db.Error{Op: db.OpList, Err: err}
	}
	return records, nil
}

// DeleteEntries removes every entry of a collection.
func (s *Store) DeleteEntries(ctx context.Context, collection string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE collection = ?`, collection); err != nil {
		return &db.Error{Op: db.OpDel, Err: err}
	}
	return nil
}
