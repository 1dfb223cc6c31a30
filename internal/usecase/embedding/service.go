// Package embedding turns text into normalized vectors through a decorator
// chain over the configured providers.
package embedding

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// DefaultBatchSize — размер sub-batch при последовательном кодировании.
const DefaultBatchSize = 4

// DefaultMaxInputChars caps the text sent to a provider. Longer inputs are
// truncated, not rejected.
const DefaultMaxInputChars = 8192

// Service is the embedding facade used by ingestion and retrieval. It owns
// input truncation and sub-batching; everything else (cache, retries,
// fallback, normalization, budget) lives in the decorator chain it wraps.
type Service struct {
	embedder      domain.Embedder
	dim           int
	batchSize     int
	maxInputChars int
	logger        *zap.Logger
}

// ServiceConfig holds the facade settings.
type ServiceConfig struct {
	Embedder      domain.Embedder
	Dimension     int
	BatchSize     int
	MaxInputChars int
	Logger        *zap.Logger
}

// NewService creates the embedding facade.
func NewService(cfg *ServiceConfig) *Service {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	maxInput := cfg.MaxInputChars
	if maxInput <= 0 {
		maxInput = DefaultMaxInputChars
	}

	return &Service{
		embedder:      cfg.Embedder,
		dim:           cfg.Dimension,
		batchSize:     batchSize,
		maxInputChars: maxInput,
		logger:        cfg.Logger,
	}
}

// Dimension returns the vector width all providers agreed on.
func (s *Service) Dimension() int { return s.dim }

// Embed encodes one text into a unit-length vector.
func (s *Service) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := s.embedder.Embed(ctx, s.truncate(text))
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return res, nil
}

// EmbedBatch encodes texts in fixed-size sub-batches, sequentially. Order of
// results matches the input order.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	truncated := make([]string, len(texts))
	for i, t := range texts {
		truncated[i] = s.truncate(t)
	}

	var out domain.BatchEmbeddingResult
	for offset := 0; offset < len(truncated); offset += s.batchSize {
		end := offset + s.batchSize
		if end > len(truncated) {
			end = len(truncated)
		}

		res, err := embedInner(ctx, s.embedder, truncated[offset:end])
		if err != nil {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("embed batch at %d: %w", offset, err)
		}
		if len(res.Embeddings) != end-offset {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("got %d embeddings for %d texts: %w",
				len(res.Embeddings), end-offset, domain.ErrEmbeddingProviderError)
		}

		out.Embeddings = append(out.Embeddings, res.Embeddings...)
		out.PromptTokens += res.PromptTokens
		out.TotalTokens += res.TotalTokens
	}

	return out, nil
}

// Similarity computes cosine similarity between two vectors.
func (s *Service) Similarity(a, b []float32) (float64, error) {
	return domain.Cosine(a, b)
}

// truncate caps input length at maxInputChars, cutting on a rune boundary.
func (s *Service) truncate(text string) string {
	if len(text) <= s.maxInputChars {
		return text
	}
	cut := s.maxInputChars
	for cut > 0 && !isRuneStart(text[cut]) {
		cut--
	}
	s.logger.Debug("Input truncated before embedding",
		zap.Int("original_chars", len(text)),
		zap.Int("truncated_chars", cut),
	)
	return strings.TrimSpace(text[:cut])
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
