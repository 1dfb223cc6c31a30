package embedding

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// recordingEmbedder captures every input it sees.
type recordingEmbedder struct {
	inputs []string
	dim    int
}

func (r *recordingEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	r.inputs = append(r.inputs, text)
	vec := make([]float32, r.dim)
	vec[0] = 1
	return domain.EmbeddingResult{Embedding: vec}, nil
}

func TestServiceTruncatesInput(t *testing.T) {
	inner := &recordingEmbedder{dim: 2}
	svc := NewService(&ServiceConfig{
		Embedder:      inner,
		Dimension:     2,
		MaxInputChars: 10,
		Logger:        zap.NewNop(),
	})

	if _, err := svc.Embed(context.Background(), strings.Repeat("a", 50)); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if got := len(inner.inputs[0]); got != 10 {
		t.Fatalf("provider saw %d chars, want 10", got)
	}
}

func TestServiceTruncateRuneBoundary(t *testing.T) {
	inner := &recordingEmbedder{dim: 2}
	svc := NewService(&ServiceConfig{
		Embedder:      inner,
		Dimension:     2,
		MaxInputChars: 5,
		Logger:        zap.NewNop(),
	})

	// "ééé" is 6 bytes; a byte cut at 5 would split the last rune.
	if _, err := svc.Embed(context.Background(), "ééé"); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if inner.inputs[0] != "éé" {
		t.Fatalf("provider saw %q, want %q", inner.inputs[0], "éé")
	}
}

func TestServiceBatchSubBatches(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding: []float32{1, 0},
	}}
	svc := NewService(&ServiceConfig{
		Embedder:  inner,
		Dimension: 2,
		BatchSize: 4,
		Logger:    zap.NewNop(),
	})

	texts := make([]string, 10)
	for i := range texts {
		texts[i] = "chunk"
	}

	res, err := svc.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(res.Embeddings) != 10 {
		t.Fatalf("got %d embeddings, want 10", len(res.Embeddings))
	}
	// 10 texts at batch size 4: 3 sub-batches.
	if inner.batchCalls != 3 {
		t.Fatalf("inner batch called %d times, want 3", inner.batchCalls)
	}
}

func TestServiceBatchEmpty(t *testing.T) {
	svc := NewService(&ServiceConfig{
		Embedder:  &recordingEmbedder{dim: 2},
		Dimension: 2,
		Logger:    zap.NewNop(),
	})

	res, err := svc.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(res.Embeddings) != 0 {
		t.Fatal("expected no embeddings")
	}
}

func TestServiceSimilarity(t *testing.T) {
	svc := NewService(&ServiceConfig{
		Embedder:  &recordingEmbedder{dim: 2},
		Dimension: 2,
		Logger:    zap.NewNop(),
	})

	sim, err := svc.Similarity([]float32{1, 0}, []float32{0, 1})
	if err != nil {
		t.Fatalf("Similarity: %v", err)
	}
	if math.Abs(sim) > 1e-9 {
		t.Fatalf("orthogonal vectors should have similarity 0, got %f", sim)
	}

	if _, err := svc.Similarity([]float32{1, 0}, []float32{1, 0, 0}); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestVerifyDimensionEmbedder(t *testing.T) {
	inner := &recordingEmbedder{dim: 3}
	v := NewVerifyDimensionEmbedder(inner, 4)

	if _, err := v.Embed(context.Background(), "q"); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}

	ok := NewVerifyDimensionEmbedder(&recordingEmbedder{dim: 4}, 4)
	if _, err := ok.Embed(context.Background(), "q"); err != nil {
		t.Fatalf("Embed: %v", err)
	}
}

func TestNormalizeEmbedder(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding: []float32{3, 4},
	}}
	n := NewNormalizeEmbedder(inner)

	res, err := n.Embed(context.Background(), "q")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if !domain.IsNormalized(res.Embedding) {
		t.Fatalf("vector not normalized: %v (norm %f)", res.Embedding, domain.Norm(res.Embedding))
	}
}
