package ragdex

import (
	"context"
	"time"

	"github.com/kailas-cloud/ragdex/internal/domain"
	ingestuc "github.com/kailas-cloud/ragdex/internal/usecase/ingest"
)

// Format identifies how a document's text was produced.
type Format string

// Supported document formats.
const (
	FormatPDF  Format = Format(domain.FormatPDF)
	FormatText Format = Format(domain.FormatText)
)

// Document is raw text to ingest. ID is optional; SourceName is required.
type Document struct {
	ID         string
	SourceName string
	Text       string
	Format     Format
}

// EmbeddingResult carries a vector and the token usage that produced it.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Embedder turns text into a fixed-width vector. Implementations are
// supplied by the caller (an API client, a local model, a test stub).
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// IngestResult reports what one Ingest call produced.
type IngestResult struct {
	DocumentID    string
	ChunksCreated int
	ChunksIndexed int
	TokensUsed    int
}

// QueryOptions tunes a single query. The zero value means "decide from the
// question": result count is estimated from question complexity.
type QueryOptions struct {
	TopK int
}

// SearchResult is one retrieved chunk with its blended score.
type SearchResult struct {
	ID       string
	Text     string
	Source   string
	Document string
	Page     int
	AddedAt  time.Time
	Score    float64
	Pass     string // semantic, metadata, expansion
	Rank     int
}

// Answer is the assembled retrieval output for one question.
type Answer struct {
	Results  []SearchResult
	Context  string
	Sources  []string
	Degraded bool
	TopK     int
}

// Stats summarizes index contents.
type Stats struct {
	TotalEntries    int
	DistinctSources int
}

func toIngestResult(r ingestuc.Result) IngestResult {
	return IngestResult{
		DocumentID:    r.DocumentID,
		ChunksCreated: r.ChunksCreated,
		ChunksIndexed: r.ChunksIndexed,
		TokensUsed:    r.TokensUsed,
	}
}

func toAnswer(rc domain.RetrievalContext) Answer {
	results := make([]SearchResult, len(rc.Results))
	for i, r := range rc.Results {
		results[i] = SearchResult{
			ID:       r.ID,
			Text:     r.Text,
			Source:   r.Metadata.Source,
			Document: r.Metadata.Document,
			Page:     r.Metadata.Page,
			AddedAt:  r.Metadata.AddedAt,
			Score:    r.Similarity,
			Pass:     string(r.SearchType),
			Rank:     r.Rank,
		}
	}
	return Answer{
		Results:  results,
		Context:  rc.Context,
		Sources:  rc.Sources,
		Degraded: rc.Degraded,
		TopK:     rc.TopK,
	}
}
