package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// flakyEmbedder fails the first failures calls, then succeeds.
type flakyEmbedder struct {
	failures int
	err      error
	calls    int
	result   domain.EmbeddingResult
}

func (f *flakyEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	f.calls++
	if f.calls <= f.failures {
		return domain.EmbeddingResult{}, f.err
	}
	return f.result, nil
}

func newFallback(primary, fallback domain.Embedder) *FallbackEmbedder {
	return NewFallbackEmbedder(&FallbackConfig{
		Primary:      primary,
		Fallback:     fallback,
		PrimaryName:  "primary",
		FallbackName: "fallback",
		MaxRetries:   3,
		Backoff:      time.Millisecond,
		Logger:       zap.NewNop(),
	})
}

func TestFallbackRetriesThenSucceeds(t *testing.T) {
	primary := &flakyEmbedder{
		failures: 2,
		err:      domain.ErrRateLimited,
		result:   domain.EmbeddingResult{Embedding: []float32{1, 0}},
	}
	f := newFallback(primary, nil)

	res, err := f.Embed(context.Background(), "q")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if primary.calls != 3 {
		t.Fatalf("primary called %d times, want 3", primary.calls)
	}
	if len(res.Embedding) != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestFallbackSwitchesProvider(t *testing.T) {
	primary := &flakyEmbedder{failures: 10, err: domain.ErrEmbeddingProviderError}
	secondary := &flakyEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0, 1}}}
	f := newFallback(primary, secondary)

	res, err := f.Embed(context.Background(), "q")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if primary.calls != 3 {
		t.Fatalf("primary called %d times, want 3", primary.calls)
	}
	if secondary.calls != 1 {
		t.Fatalf("fallback called %d times, want 1", secondary.calls)
	}
	if res.Embedding[1] != 1 {
		t.Fatal("expected fallback provider result")
	}
}

func TestFallbackExhaustedReturnsUnavailable(t *testing.T) {
	primary := &flakyEmbedder{failures: 10, err: domain.ErrRateLimited}
	secondary := &flakyEmbedder{failures: 10, err: domain.ErrEmbeddingProviderError}
	f := newFallback(primary, secondary)

	_, err := f.Embed(context.Background(), "q")
	if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
}

func TestFallbackNoSecondaryReturnsUnavailable(t *testing.T) {
	primary := &flakyEmbedder{failures: 10, err: domain.ErrRateLimited}
	f := newFallback(primary, nil)

	_, err := f.Embed(context.Background(), "q")
	if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
}

func TestFallbackNonRetryableSurfacesImmediately(t *testing.T) {
	primary := &flakyEmbedder{failures: 10, err: domain.ErrDimensionMismatch}
	secondary := &flakyEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0, 1}}}
	f := newFallback(primary, secondary)

	_, err := f.Embed(context.Background(), "q")
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if primary.calls != 1 {
		t.Fatalf("primary called %d times, want 1", primary.calls)
	}
	if secondary.calls != 0 {
		t.Fatal("fallback must not run on non-retryable errors")
	}
}

func TestFallbackHonorsContextDuringBackoff(t *testing.T) {
	primary := &flakyEmbedder{failures: 10, err: domain.ErrRateLimited}
	f := NewFallbackEmbedder(&FallbackConfig{
		Primary:     primary,
		PrimaryName: "primary",
		MaxRetries:  5,
		Backoff:     time.Minute,
		Logger:      zap.NewNop(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Embed(ctx, "q")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}
