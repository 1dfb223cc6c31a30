// Package pipeline answers questions end to end: estimate depth, embed,
// search, and assemble a bounded context string.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/query"
	"github.com/kailas-cloud/ragdex/internal/metrics"
)

// Defaults for the pipeline's operational limits.
const (
	DefaultContextCharBudget = 6000
	DefaultEmbedTimeout      = 10 * time.Second
	DefaultSearchTimeout     = 5 * time.Second

	chunkSeparator = "\n\n"
)

// Config holds the pipeline settings.
type Config struct {
	ContextCharBudget int
	EmbedTimeout      time.Duration
	SearchTimeout     time.Duration
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.ContextCharBudget == 0 {
		c.ContextCharBudget = DefaultContextCharBudget
	}
	if c.EmbedTimeout == 0 {
		c.EmbedTimeout = DefaultEmbedTimeout
	}
	if c.SearchTimeout == 0 {
		c.SearchTimeout = DefaultSearchTimeout
	}
}

// Service is the retrieval pipeline.
type Service struct {
	emb       Embedder
	retriever Retriever
	cfg       Config
	logger    *zap.Logger
}

// New creates the pipeline.
func New(emb Embedder, retriever Retriever, cfg Config, logger *zap.Logger) *Service {
	cfg.ApplyDefaults()
	return &Service{
		emb:       emb,
		retriever: retriever,
		cfg:       cfg,
		logger:    logger,
	}
}

// Retrieve answers a question with ranked chunks and an assembled context.
// topK overrides the complexity estimate when non-nil; it is clamped to the
// estimator's range either way.
func (s *Service) Retrieve(ctx context.Context, question string, topK *int) (domain.RetrievalContext, error) {
	start := time.Now()

	k := query.EstimateTopK(question)
	if topK != nil {
		k = clamp(*topK, query.MinTopK, query.MaxTopK)
	}

	vector, err := s.embedQuestion(ctx, question)
	if err != nil {
		return domain.RetrievalContext{}, err
	}

	searchCtx, cancel := context.WithTimeout(ctx, s.cfg.SearchTimeout)
	defer cancel()

	results, degraded, err := s.retriever.Search(searchCtx, question, vector, k)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.RetrievalContext{}, fmt.Errorf("search: %w", domain.ErrTimeout)
		}
		return domain.RetrievalContext{}, fmt.Errorf("search: %w", err)
	}

	rc := s.assemble(results, degraded, k)

	metrics.RetrievalDuration.Observe(time.Since(start).Seconds())
	s.logger.Info("Retrieval completed",
		zap.Int("top_k", k),
		zap.Int("results", len(rc.Results)),
		zap.Int("context_chars", len(rc.Context)),
		zap.Int("sources", len(rc.Sources)),
		zap.Bool("degraded", rc.Degraded),
		zap.Duration("duration", time.Since(start)),
	)

	return rc, nil
}

// embedQuestion vectorizes the question under the embed timeout. Timeouts,
// exhausted providers, and dimension mismatches fail the query closed; only
// failures with a safe degraded behavior return a nil vector so the
// retriever can fall back to its non-semantic passes.
func (s *Service) embedQuestion(ctx context.Context, question string) ([]float32, error) {
	embedCtx, cancel := context.WithTimeout(ctx, s.cfg.EmbedTimeout)
	defer cancel()

	res, err := s.emb.Embed(embedCtx, question)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return nil, fmt.Errorf("embed question: %w", domain.ErrTimeout)
		case errors.Is(err, domain.ErrEmbeddingUnavailable),
			errors.Is(err, domain.ErrDimensionMismatch):
			return nil, fmt.Errorf("embed question: %w", err)
		}
		s.logger.Warn("Question embedding failed, degrading retrieval", zap.Error(err))
		return nil, nil
	}
	return res.Embedding, nil
}

// assemble builds the context string under the character budget. Results are
// taken in rank order; the first chunk that does not fit ends assembly, so
// the lowest-ranked chunks are dropped first and no chunk is ever cut
// mid-text. Sources are recorded distinct, in rank order of first citation.
func (s *Service) assemble(results []domain.SearchResult, degraded bool, topK int) domain.RetrievalContext {
	var sb strings.Builder
	var included []domain.SearchResult
	var sources []string
	seenSources := make(map[string]struct{})

	for _, res := range results {
		need := len(res.Text)
		if sb.Len() > 0 {
			need += len(chunkSeparator)
		}
		if sb.Len()+need > s.cfg.ContextCharBudget {
			break
		}

		if sb.Len() > 0 {
			sb.WriteString(chunkSeparator)
		}
		sb.WriteString(res.Text)
		included = append(included, res)

		if _, ok := seenSources[res.Metadata.Source]; !ok {
			seenSources[res.Metadata.Source] = struct{}{}
			sources = append(sources, res.Metadata.Source)
		}
	}

	return domain.RetrievalContext{
		Results:  included,
		Context:  sb.String(),
		Sources:  sources,
		Degraded: degraded,
		TopK:     topK,
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
