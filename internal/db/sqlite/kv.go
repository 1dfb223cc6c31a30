package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/kailas-cloud/ragdex/internal/db"
)

// Get retrieves a value by key, honoring expiry.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	var expiresAt *int64
	err := s.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM kv WHERE key = ?`, key).Scan(&value, &expiresAt)
	if err != nil {
		if isNoRows(err) {
			return nil, db.ErrKeyNotFound
		}
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	if expiresAt != nil && time.Now().Unix() >= *expiresAt {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
		return nil, db.ErrKeyNotFound
	}
	return value, nil
}

// Set stores a value at the given key without expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, expires_at) VALUES (?, ?, NULL)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value, expires_at = NULL`,
		key, value)
	if err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	return nil
}

// SetWithTTL stores a value with an expiration.
func (s *Store) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	expires := time.Now().Add(ttl).Unix()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, expires)
	if err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	return nil
}

// IncrBy atomically increments an integer value stored as text.
func (s *Store) IncrBy(ctx context.Context, key string, val int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, expires_at) VALUES (?, CAST(? AS BLOB), NULL)
		 ON CONFLICT (key) DO UPDATE SET value = CAST(CAST(kv.value AS INTEGER) + ? AS BLOB)`,
		key, val, val)
	if err != nil {
		return &db.Error{Op: db.OpIncrBy, Err: err}
	}
	return nil
}

// Expire sets expiry on a key. When nx=true, only keys without expiry are touched.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error {
	expires := time.Now().Add(ttl).Unix()
	q := `UPDATE kv SET expires_at = ? WHERE key = ?`
	if nx {
		q += ` AND expires_at IS NULL`
	}
	if _, err := s.db.ExecContext(ctx, q, expires, key); err != nil {
		return &db.Error{Op: db.OpExpire, Err: err}
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
