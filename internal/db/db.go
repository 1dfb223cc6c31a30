package db

import (
	"context"
	"time"
)

// Store is the database facade combining all sub-interfaces. Consumers use
// the narrow sub-interfaces (ISP); only the composition root sees Store.
type Store interface {
	Pinger
	KVStore
	EntryStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore provides simple key-value operations (embedding cache, budget counters).
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	IncrBy(ctx context.Context, key string, val int64) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// EntryRecord is one persisted index entry: an id plus an opaque payload.
// Payload layout and result ordering belong to the repository layer.
type EntryRecord struct {
	ID   string
	Data []byte
}

// EntryStore persists index entries per collection. PutEntries must be
// atomic for the whole batch: either every record in the batch is durable
// when the call returns, or none is. Re-putting an existing id replaces it.
type EntryStore interface {
	PutEntries(ctx context.Context, collection string, records []EntryRecord) error
	ListEntries(ctx context.Context, collection string) ([]EntryRecord, error)
	DeleteEntries(ctx context.Context, collection string) error
}
