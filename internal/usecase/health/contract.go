package health

import (
	"context"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// DBPinger checks storage availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// IndexReader reports vector index state.
type IndexReader interface {
	Stats(ctx context.Context) domain.Stats
}
