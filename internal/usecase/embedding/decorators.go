package embedding

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// VerifyDimensionEmbedder rejects provider output whose width differs from the
// declared dimension. Vectors are never padded or truncated.
type VerifyDimensionEmbedder struct {
	inner domain.Embedder
	dim   int
}

// NewVerifyDimensionEmbedder wraps an embedder with an output width check.
func NewVerifyDimensionEmbedder(inner domain.Embedder, dim int) *VerifyDimensionEmbedder {
	return &VerifyDimensionEmbedder{inner: inner, dim: dim}
}

// Embed delegates and checks the result width.
func (v *VerifyDimensionEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := v.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	if len(res.Embedding) != v.dim {
		return domain.EmbeddingResult{}, fmt.Errorf("provider returned %d dims, expected %d: %w",
			len(res.Embedding), v.dim, domain.ErrDimensionMismatch)
	}
	return res, nil
}

// BatchEmbed delegates and checks every result width.
func (v *VerifyDimensionEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	res, err := embedInner(ctx, v.inner, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}
	for i, emb := range res.Embeddings {
		if len(emb) != v.dim {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("provider returned %d dims at index %d, expected %d: %w",
				len(emb), i, v.dim, domain.ErrDimensionMismatch)
		}
	}
	return res, nil
}

// NormalizeEmbedder L2-normalizes provider output so cosine similarity
// reduces to a dot product downstream.
type NormalizeEmbedder struct {
	inner domain.Embedder
}

// NewNormalizeEmbedder wraps an embedder with L2 normalization.
func NewNormalizeEmbedder(inner domain.Embedder) *NormalizeEmbedder {
	return &NormalizeEmbedder{inner: inner}
}

// Embed delegates and normalizes the result in place.
func (n *NormalizeEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := n.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	domain.Normalize(res.Embedding)
	return res, nil
}

// BatchEmbed delegates and normalizes every result in place.
func (n *NormalizeEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	res, err := embedInner(ctx, n.inner, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}
	for _, emb := range res.Embeddings {
		domain.Normalize(emb)
	}
	return res, nil
}

// embedInner delegates a batch to the inner embedder, using its native batch
// support when available and per-item fallback otherwise.
func embedInner(ctx context.Context, inner domain.Embedder, texts []string) (domain.BatchEmbeddingResult, error) {
	if be, ok := inner.(domain.BatchEmbedder); ok {
		return be.BatchEmbed(ctx, texts)
	}
	return domain.BatchFallback(ctx, inner, texts)
}
