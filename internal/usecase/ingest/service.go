// Package ingest turns documents into indexed chunks: split, embed, persist.
package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// Result summarizes one ingestion.
type Result struct {
	DocumentID    string `json:"document_id"`
	ChunksCreated int    `json:"chunks_created"`
	ChunksIndexed int    `json:"chunks_indexed"`
	TokensUsed    int    `json:"tokens_used,omitempty"`
}

// Service handles document ingestion.
type Service struct {
	chunker Chunker
	emb     Embedder
	index   VectorIndex
	lexical LexicalIndex
	logger  *zap.Logger
}

// New creates an ingestion service. lexical can be nil (expansion search
// disabled).
func New(chunker Chunker, emb Embedder, index VectorIndex, lexical LexicalIndex, logger *zap.Logger) *Service {
	return &Service{
		chunker: chunker,
		emb:     emb,
		index:   index,
		lexical: lexical,
		logger:  logger,
	}
}

// Ingest splits the document, embeds every chunk, and inserts the batch into
// the vector index. All embeddings are computed before anything is inserted,
// so a provider failure leaves the index untouched.
func (s *Service) Ingest(ctx context.Context, doc domain.Document) (Result, error) {
	start := time.Now()

	chunks := s.chunker.Split(doc)
	if len(chunks) == 0 {
		s.logger.Info("Document produced no chunks",
			zap.String("document_id", doc.ID),
			zap.String("source", doc.SourceName),
		)
		return Result{DocumentID: doc.ID}, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	embRes, err := s.emb.EmbedBatch(ctx, texts)
	if err != nil {
		return Result{}, fmt.Errorf("embed chunks: %w", err)
	}
	if len(embRes.Embeddings) != len(chunks) {
		return Result{}, fmt.Errorf("got %d embeddings for %d chunks: %w",
			len(embRes.Embeddings), len(chunks), domain.ErrEmbeddingProviderError)
	}

	now := time.Now().UTC()
	entries := make([]domain.IndexEntry, len(chunks))
	for i, c := range chunks {
		entries[i] = domain.IndexEntry{
			ID:     c.ID,
			Text:   c.Text,
			Vector: embRes.Embeddings[i],
			Metadata: domain.Metadata{
				Source:   doc.SourceName,
				Document: doc.ID,
				ChunkID:  c.ID,
				Page:     c.Page,
				AddedAt:  now,
			},
		}
	}

	inserted, err := s.index.Insert(ctx, entries)
	if err != nil {
		return Result{}, fmt.Errorf("index chunks: %w", err)
	}

	// Lexical indexing is best effort. Losing it degrades the expansion
	// pass, not ingestion.
	if s.lexical != nil {
		if err := s.lexical.IndexEntries(ctx, entries); err != nil {
			s.logger.Warn("Lexical indexing failed",
				zap.String("document_id", doc.ID),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("Document ingested",
		zap.String("document_id", doc.ID),
		zap.String("source", doc.SourceName),
		zap.Int("chunks", inserted),
		zap.Int("tokens", embRes.TotalTokens),
		zap.Duration("duration", time.Since(start)),
	)

	return Result{
		DocumentID:    doc.ID,
		ChunksCreated: len(chunks),
		ChunksIndexed: inserted,
		TokensUsed:    embRes.TotalTokens,
	}, nil
}
