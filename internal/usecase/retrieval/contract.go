package retrieval

import (
	"context"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/repository/lexical"
)

// VectorIndex is the slice of the index the retriever needs.
type VectorIndex interface {
	Search(ctx context.Context, vector []float32, k int, minSim float64) ([]domain.SearchResult, error)
	EntriesBySource(ctx context.Context, tokens []string, limit int) []domain.IndexEntry
	Get(ctx context.Context, id string) (domain.IndexEntry, bool)
}

// LexicalIndex serves term matches for the expansion pass.
type LexicalIndex interface {
	Search(ctx context.Context, terms []string, limit int) ([]lexical.Hit, error)
}
