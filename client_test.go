package ragdex

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
)

// keywordEmbedder maps texts onto fixed axes by keyword, so semantic
// similarity in tests is fully deterministic.
type keywordEmbedder struct {
	calls int
}

func (e *keywordEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	e.calls++
	vec := []float32{0, 0, 0, 1}
	switch {
	case strings.Contains(strings.ToLower(text), "vacation"):
		vec = []float32{1, 0, 0, 0}
	case strings.Contains(strings.ToLower(text), "expense"):
		vec = []float32{0, 1, 0, 0}
	}
	return EmbeddingResult{Embedding: vec, TotalTokens: 3}, nil
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := New(
		WithSQLite(filepath.Join(t.TempDir(), "ragdex.db")),
		WithEmbedder(&keywordEmbedder{}, 4),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestNew_RequiresEmbedder(t *testing.T) {
	_, err := New(WithSQLite(filepath.Join(t.TempDir(), "ragdex.db")))
	if err == nil {
		t.Fatal("expected error without embedder")
	}
}

func TestNew_RequiresStorage(t *testing.T) {
	_, err := New(WithEmbedder(&keywordEmbedder{}, 4))
	if err == nil {
		t.Fatal("expected error without storage")
	}
}

func TestIngestAndQuery(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	res, err := c.Ingest(ctx, Document{
		SourceName: "handbook.txt",
		Text:       "Full-time employees receive twenty five paid vacation days per calendar year, accrued monthly.",
		Format:     FormatText,
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.ChunksIndexed == 0 {
		t.Fatal("no chunks indexed")
	}
	if res.DocumentID == "" {
		t.Error("document id not assigned")
	}

	answer, err := c.Query(ctx, "how many vacation days do I get?", nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(answer.Results) == 0 {
		t.Fatal("no results")
	}
	if !strings.Contains(answer.Context, "vacation") {
		t.Errorf("context %q does not mention vacation", answer.Context)
	}
	if answer.Sources[0] != "handbook.txt" {
		t.Errorf("source = %q, want handbook.txt", answer.Sources[0])
	}
	if answer.Degraded {
		t.Error("query unexpectedly degraded")
	}
}

func TestQuery_TopKOverride(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.Ingest(ctx, Document{
		SourceName: "handbook.txt",
		Text:       "Vacation policy: employees receive paid vacation days every year, accrued monthly from the start date.",
		Format:     FormatText,
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	answer, err := c.Query(ctx, "vacation?", &QueryOptions{TopK: 5})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if answer.TopK != 5 {
		t.Errorf("TopK = %d, want 5", answer.TopK)
	}
}

func TestStatsAndReset(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.Ingest(ctx, Document{
		SourceName: "expenses.txt",
		Text:       "Expense reports must be submitted within thirty days of the purchase with the original receipts attached.",
		Format:     FormatText,
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	stats := c.Stats(ctx)
	if stats.TotalEntries == 0 || stats.DistinctSources != 1 {
		t.Fatalf("stats = %+v, want entries > 0 and one source", stats)
	}

	if err := c.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if got := c.Stats(ctx); got.TotalEntries != 0 {
		t.Errorf("entries after reset = %d, want 0", got.TotalEntries)
	}
}

func TestBackupRestore(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.Ingest(ctx, Document{
		SourceName: "handbook.txt",
		Text:       "Vacation days accrue monthly and unused days can be carried over into the first quarter of the next year.",
		Format:     FormatText,
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	before := c.Stats(ctx)

	snapshot := filepath.Join(t.TempDir(), "snap.json")
	if err := c.Backup(ctx, snapshot); err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if err := c.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if err := c.Restore(ctx, snapshot); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	if got := c.Stats(ctx); got.TotalEntries != before.TotalEntries {
		t.Errorf("entries after restore = %d, want %d", got.TotalEntries, before.TotalEntries)
	}
}
