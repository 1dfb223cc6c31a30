package ingest

import (
	"context"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// Chunker splits raw documents into retrieval units.
type Chunker interface {
	Split(doc domain.Document) []domain.Chunk
}

// Embedder vectorizes chunk texts in batches.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}

// VectorIndex persists entries for semantic search.
type VectorIndex interface {
	Insert(ctx context.Context, entries []domain.IndexEntry) (int, error)
}

// LexicalIndex indexes entries for term-based expansion search.
type LexicalIndex interface {
	IndexEntries(ctx context.Context, entries []domain.IndexEntry) error
}
