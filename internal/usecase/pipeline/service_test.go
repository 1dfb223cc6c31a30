package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/query"
)

type mockEmbedder struct {
	err   error
	slow  time.Duration
	calls int
}

func (m *mockEmbedder) Embed(ctx context.Context, _ string) (domain.EmbeddingResult, error) {
	m.calls++
	if m.slow > 0 {
		select {
		case <-ctx.Done():
			return domain.EmbeddingResult{}, ctx.Err()
		case <-time.After(m.slow):
		}
	}
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: []float32{1, 0}}, nil
}

type mockRetriever struct {
	results  []domain.SearchResult
	degraded bool
	err      error

	gotVector []float32
	gotTopK   int
}

func (m *mockRetriever) Search(_ context.Context, _ string, vector []float32, topK int) ([]domain.SearchResult, bool, error) {
	m.gotVector = vector
	m.gotTopK = topK
	return m.results, m.degraded, m.err
}

func result(id, source, text string, sim float64) domain.SearchResult {
	return domain.SearchResult{
		ID:         id,
		Text:       text,
		Metadata:   domain.Metadata{Source: source},
		Similarity: sim,
	}
}

func TestRetrieve(t *testing.T) {
	ret := &mockRetriever{results: []domain.SearchResult{
		result("a", "x.pdf", "first chunk", 0.9),
		result("b", "y.pdf", "second chunk", 0.8),
		result("c", "x.pdf", "third chunk", 0.7),
	}}
	s := New(&mockEmbedder{}, ret, Config{}, zap.NewNop())

	rc, err := s.Retrieve(context.Background(), "What is the vacation policy?", nil)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(rc.Results) != 3 {
		t.Fatalf("got %d results, want 3", len(rc.Results))
	}
	if rc.Context != "first chunk\n\nsecond chunk\n\nthird chunk" {
		t.Fatalf("bad context %q", rc.Context)
	}
	if len(rc.Sources) != 2 || rc.Sources[0] != "x.pdf" || rc.Sources[1] != "y.pdf" {
		t.Fatalf("bad sources %v", rc.Sources)
	}
	if rc.Degraded {
		t.Fatal("unexpected degraded flag")
	}
	if ret.gotVector == nil {
		t.Fatal("retriever did not receive the question vector")
	}
}

func TestRetrieveUsesEstimator(t *testing.T) {
	ret := &mockRetriever{}
	s := New(&mockEmbedder{}, ret, Config{}, zap.NewNop())

	question := "short query"
	if _, err := s.Retrieve(context.Background(), question, nil); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if ret.gotTopK != query.EstimateTopK(question) {
		t.Fatalf("topK = %d, want estimator value %d", ret.gotTopK, query.EstimateTopK(question))
	}
}

func TestRetrieveTopKOverrideClamped(t *testing.T) {
	ret := &mockRetriever{}
	s := New(&mockEmbedder{}, ret, Config{}, zap.NewNop())

	over := 100
	if _, err := s.Retrieve(context.Background(), "q", &over); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if ret.gotTopK != query.MaxTopK {
		t.Fatalf("topK = %d, want clamp to %d", ret.gotTopK, query.MaxTopK)
	}

	under := 0
	if _, err := s.Retrieve(context.Background(), "q", &under); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if ret.gotTopK != query.MinTopK {
		t.Fatalf("topK = %d, want clamp to %d", ret.gotTopK, query.MinTopK)
	}
}

func TestRetrieveContextBudget(t *testing.T) {
	big := strings.Repeat("a", 50)
	ret := &mockRetriever{results: []domain.SearchResult{
		result("a", "x.pdf", big, 0.9),
		result("b", "y.pdf", big, 0.8),
		result("c", "z.pdf", big, 0.7),
	}}
	s := New(&mockEmbedder{}, ret, Config{ContextCharBudget: 110}, zap.NewNop())

	rc, err := s.Retrieve(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	// 50 + 2 + 50 = 102 fits; adding the third would need 154.
	if len(rc.Results) != 2 {
		t.Fatalf("got %d results, want 2 (lowest rank dropped)", len(rc.Results))
	}
	if len(rc.Context) > 110 {
		t.Fatalf("context %d chars exceeds budget", len(rc.Context))
	}
	if strings.Contains(rc.Context, big[:25]+"\n") && len(rc.Context) != 102 {
		t.Fatalf("chunk truncated mid-text: %q", rc.Context)
	}
	if len(rc.Sources) != 2 {
		t.Fatalf("sources %v must only cite included chunks", rc.Sources)
	}
}

func TestRetrieveEmbedTimeout(t *testing.T) {
	emb := &mockEmbedder{slow: time.Second}
	s := New(emb, &mockRetriever{}, Config{EmbedTimeout: 10 * time.Millisecond}, zap.NewNop())

	_, err := s.Retrieve(context.Background(), "q", nil)
	if !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestRetrieveEmbedFailureDegrades(t *testing.T) {
	emb := &mockEmbedder{err: domain.ErrEmbeddingQuotaExceeded}
	ret := &mockRetriever{degraded: true}
	s := New(emb, ret, Config{}, zap.NewNop())

	rc, err := s.Retrieve(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if ret.gotVector != nil {
		t.Fatal("retriever must receive a nil vector when embedding fails")
	}
	if !rc.Degraded {
		t.Fatal("expected degraded flag")
	}
}

func TestRetrieveEmbedExhaustionPropagates(t *testing.T) {
	for _, sentinel := range []error{domain.ErrEmbeddingUnavailable, domain.ErrDimensionMismatch} {
		emb := &mockEmbedder{err: sentinel}
		ret := &mockRetriever{results: []domain.SearchResult{
			result("a", "x.pdf", "leftover chunk", 0.9),
		}}
		s := New(emb, ret, Config{}, zap.NewNop())

		rc, err := s.Retrieve(context.Background(), "q", nil)
		if !errors.Is(err, sentinel) {
			t.Fatalf("expected %v to propagate, got %v", sentinel, err)
		}
		if len(rc.Results) != 0 {
			t.Fatalf("failed query must not carry results: %+v", rc.Results)
		}
	}
}

func TestRetrieveSearchTimeout(t *testing.T) {
	ret := &mockRetriever{err: context.DeadlineExceeded}
	s := New(&mockEmbedder{}, ret, Config{}, zap.NewNop())

	_, err := s.Retrieve(context.Background(), "q", nil)
	if !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestRetrieveEmptyCollection(t *testing.T) {
	s := New(&mockEmbedder{}, &mockRetriever{}, Config{}, zap.NewNop())

	rc, err := s.Retrieve(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(rc.Results) != 0 || rc.Context != "" || rc.Degraded {
		t.Fatalf("unexpected result %+v", rc)
	}
}
