package pipeline

import (
	"context"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// Embedder vectorizes the question.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Retriever runs the hybrid search.
type Retriever interface {
	Search(ctx context.Context, queryText string, queryVector []float32, topK int) (
		results []domain.SearchResult, degraded bool, err error,
	)
}
