package domain

import (
	"fmt"
	"time"
)

// KeyPrefix namespaces every storage key written by ragdex.
const KeyPrefix = "ragdex:"

// Metadata is the typed per-entry metadata record. The required keys from
// the ingestion contract are first-class fields; provider-specific extras
// go into Extra.
type Metadata struct {
	Source   string            `json:"source"`
	Document string            `json:"document"`
	ChunkID  string            `json:"chunk_id"`
	Page     int               `json:"page,omitempty"`
	AddedAt  time.Time         `json:"added_at"`
	Extra    map[string]string `json:"extra,omitempty"`
}

// Validate checks the required metadata fields at construction time rather
// than by convention.
func (m *Metadata) Validate() error {
	if m.Source == "" {
		return fmt.Errorf("metadata: source is required")
	}
	if m.ChunkID == "" {
		return fmt.Errorf("metadata: chunk_id is required")
	}
	if m.AddedAt.IsZero() {
		return fmt.Errorf("metadata: added_at is required")
	}
	return nil
}

// IndexEntry is the persisted unit of the vector index. Read-only after
// insert except for full-collection reset.
type IndexEntry struct {
	ID       string    `json:"id"`
	Text     string    `json:"text"`
	Vector   []float32 `json:"vector"`
	Metadata Metadata  `json:"metadata"`
}

// Stats summarizes a collection.
type Stats struct {
	TotalEntries    int `json:"total_entries"`
	DistinctSources int `json:"distinct_sources"`
}
