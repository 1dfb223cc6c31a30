// Package index implements the persistent vector index: exact cosine search
// over an in-memory snapshot, durably backed by a db.Store.
package index

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/db"
	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/metrics"
)

// DefaultCollection is the single logical collection of a deployment.
const DefaultCollection = "main"

// store is the consumer interface for index persistence (ISP).
type store interface {
	PutEntries(ctx context.Context, collection string, records []db.EntryRecord) error
	ListEntries(ctx context.Context, collection string) ([]db.EntryRecord, error)
	DeleteEntries(ctx context.Context, collection string) error
}

// Repo is the vector index for one collection. Writes are serialized
// (single-writer discipline); searches run concurrently against the
// in-memory snapshot. Every successful Insert/Reset is durable in the
// backing store before the call returns.
type Repo struct {
	store      store
	collection string
	dim        int
	logger     *zap.Logger

	mu      sync.RWMutex
	entries []domain.IndexEntry // in insertion order; search tie-break relies on it
	byID    map[string]int
}

// New creates an index repository for the given vector dimension.
func New(s store, dim int, logger *zap.Logger) *Repo {
	return &Repo{
		store:      s,
		collection: DefaultCollection,
		dim:        dim,
		logger:     logger,
		byID:       make(map[string]int),
	}
}

// Load hydrates the in-memory snapshot from the backing store. Call once at
// startup; previously ingested chunks survive restarts without re-embedding.
func (r *Repo) Load(ctx context.Context) error {
	records, err := r.store.ListEntries(ctx, r.collection)
	if err != nil {
		return fmt.Errorf("list entries: %w", err)
	}

	stored := make([]storedEntry, 0, len(records))
	for _, rec := range records {
		var se storedEntry
		if err := json.Unmarshal(rec.Data, &se); err != nil {
			return fmt.Errorf("decode entry %s: %w", rec.ID, err)
		}
		stored = append(stored, se)
	}
	sort.Slice(stored, func(i, j int) bool { return stored[i].Position < stored[j].Position })

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = r.entries[:0]
	r.byID = make(map[string]int, len(stored))
	for _, se := range stored {
		r.byID[se.Entry.ID] = len(r.entries)
		r.entries = append(r.entries, se.Entry)
	}

	metrics.IndexEntriesGauge.Set(float64(len(r.entries)))
	r.logger.Info("Vector index loaded",
		zap.Int("entries", len(r.entries)),
		zap.Int("dimensions", r.dim),
	)
	return nil
}

// Insert durably stores a batch of entries and updates the snapshot.
// The batch is atomic: a persistence failure leaves neither store nor
// snapshot modified. Entries without an id get a random one; re-inserting
// an existing id replaces the stored record instead of duplicating it.
func (r *Repo) Insert(ctx context.Context, entries []domain.IndexEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	for i := range entries {
		if len(entries[i].Vector) != r.dim {
			return 0, fmt.Errorf("entry %d: vector width %d, index width %d: %w",
				i, len(entries[i].Vector), r.dim, domain.ErrDimensionMismatch)
		}
		if entries[i].ID == "" {
			entries[i].ID = uuid.NewString()
		}
		if err := entries[i].Metadata.Validate(); err != nil {
			return 0, fmt.Errorf("entry %d: %w", i, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	records := make([]db.EntryRecord, 0, len(entries))
	positions := make([]int, len(entries))
	next := len(r.entries)
	seen := make(map[string]int, len(entries))

	for i, e := range entries {
		pos, exists := r.byID[e.ID]
		if !exists {
			if p, dup := seen[e.ID]; dup {
				pos = p // same id twice within the batch: last write wins
			} else {
				pos = next
				next++
			}
		}
		seen[e.ID] = pos
		positions[i] = pos

		data, err := json.Marshal(storedEntry{Entry: e, Position: pos})
		if err != nil {
			return 0, fmt.Errorf("encode entry %s: %w", e.ID, err)
		}
		records = append(records, db.EntryRecord{ID: e.ID, Data: data})
	}

	if err := r.store.PutEntries(ctx, r.collection, records); err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err)
	}

	// Apply to the snapshot only after the batch is durable. Positions are
	// assigned densely, so a new entry always lands at the current tail.
	for i, e := range entries {
		pos := positions[i]
		if pos < len(r.entries) {
			r.entries[pos] = e
		} else {
			r.entries = append(r.entries, e)
		}
		r.byID[e.ID] = pos
	}
	metrics.IndexEntriesGauge.Set(float64(len(r.entries)))

	return len(entries), nil
}

// Search returns up to k entries with cosine similarity >= minSim, sorted
// descending by similarity; ties rank the earlier-inserted entry first.
func (r *Repo) Search(ctx context.Context, vector []float32, k int, minSim float64) ([]domain.SearchResult, error) {
	if len(vector) != r.dim {
		return nil, fmt.Errorf("query vector width %d, index width %d: %w",
			len(vector), r.dim, domain.ErrDimensionMismatch)
	}
	if k <= 0 {
		return nil, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	type scored struct {
		pos int
		sim float64
	}
	hits := make([]scored, 0, len(r.entries))
	for pos, e := range r.entries {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("search cancelled: %w", err)
		}
		sim, err := domain.Cosine(vector, e.Vector)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.ID, err)
		}
		if sim >= minSim {
			hits = append(hits, scored{pos: pos, sim: sim})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].sim != hits[j].sim {
			return hits[i].sim > hits[j].sim
		}
		return hits[i].pos < hits[j].pos
	})
	if len(hits) > k {
		hits = hits[:k]
	}

	results := make([]domain.SearchResult, len(hits))
	for i, h := range hits {
		e := r.entries[h.pos]
		results[i] = domain.SearchResult{
			ID:         e.ID,
			Text:       e.Text,
			Metadata:   e.Metadata,
			Similarity: h.sim,
			Distance:   1 - h.sim,
			SearchType: domain.SearchSemantic,
			Rank:       i + 1,
		}
	}
	return results, nil
}

// EntriesBySource returns up to limit entries whose source or document name
// contains any of the given lowercase tokens. Serves the metadata pass.
func (r *Repo) EntriesBySource(_ context.Context, tokens []string, limit int) []domain.IndexEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.IndexEntry
	for _, e := range r.entries {
		if matchesSource(&e.Metadata, tokens) {
			out = append(out, e)
			if len(out) == limit {
				break
			}
		}
	}
	return out
}

// Get returns the entry with the given id, if present.
func (r *Repo) Get(_ context.Context, id string) (domain.IndexEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pos, ok := r.byID[id]
	if !ok {
		return domain.IndexEntry{}, false
	}
	return r.entries[pos], true
}

// Stats reports collection totals.
func (r *Repo) Stats(_ context.Context) domain.Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make(map[string]struct{})
	for i := range r.entries {
		sources[r.entries[i].Metadata.Source] = struct{}{}
	}
	return domain.Stats{TotalEntries: len(r.entries), DistinctSources: len(sources)}
}

// Reset destructively empties the collection. It takes the write lock for
// its whole duration, excluding concurrent searches and inserts.
func (r *Repo) Reset(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.DeleteEntries(ctx, r.collection); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err)
	}
	r.entries = nil
	r.byID = make(map[string]int)
	metrics.IndexEntriesGauge.Set(0)
	r.logger.Warn("Vector index reset")
	return nil
}

// Backup writes a whole-collection snapshot to path.
func (r *Repo) Backup(_ context.Context, path string) error {
	r.mu.RLock()
	snapshot := backupFile{Dimensions: r.dim, Entries: append([]domain.IndexEntry(nil), r.entries...)}
	r.mu.RUnlock()

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	r.logger.Info("Vector index backed up",
		zap.String("path", path),
		zap.Int("entries", len(snapshot.Entries)),
	)
	return nil
}

// Restore replaces the collection with a snapshot previously written by
// Backup. A dimension mismatch between the snapshot and the index is
// refused rather than silently corrupting the collection.
func (r *Repo) Restore(ctx context.Context, path string) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}
	var snapshot backupFile
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("decode backup: %w", err)
	}
	if snapshot.Dimensions != r.dim {
		return fmt.Errorf("backup width %d, index width %d: %w",
			snapshot.Dimensions, r.dim, domain.ErrDimensionMismatch)
	}

	if err := r.Reset(ctx); err != nil {
		return err
	}
	if _, err := r.Insert(ctx, snapshot.Entries); err != nil {
		return fmt.Errorf("restore entries: %w", err)
	}
	r.logger.Info("Vector index restored",
		zap.String("path", path),
		zap.Int("entries", len(snapshot.Entries)),
	)
	return nil
}

// All returns a copy of every entry in insertion order (used to rebuild the
// lexical index after restore).
func (r *Repo) All(_ context.Context) []domain.IndexEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.IndexEntry(nil), r.entries...)
}
