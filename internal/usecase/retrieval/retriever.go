// Package retrieval merges semantic, metadata, and lexical expansion search
// into one ranked, source-diversified result list.
package retrieval

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/metrics"
)

// Default blend parameters. All of them are tunable through Config.
const (
	DefaultThreshold          = 0.25
	DefaultSemanticWeight     = 0.6
	DefaultLexicalWeight      = 0.4
	DefaultMetadataConfidence = 0.95
	DefaultPerSourceCap       = 3

	// candidateFactor widens each pass beyond topK so diversification has
	// material to work with.
	candidateFactor = 3
)

// Config holds the retriever's blend and diversification parameters.
type Config struct {
	Threshold          float64
	SemanticWeight     float64
	LexicalWeight      float64
	MetadataConfidence float64
	PerSourceCap       int
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Threshold == 0 {
		c.Threshold = DefaultThreshold
	}
	if c.SemanticWeight == 0 {
		c.SemanticWeight = DefaultSemanticWeight
	}
	if c.LexicalWeight == 0 {
		c.LexicalWeight = DefaultLexicalWeight
	}
	if c.MetadataConfidence == 0 {
		c.MetadataConfidence = DefaultMetadataConfidence
	}
	if c.PerSourceCap == 0 {
		c.PerSourceCap = DefaultPerSourceCap
	}
}

// Retriever runs the three retrieval passes and blends their results.
type Retriever struct {
	index   VectorIndex
	lexical LexicalIndex
	cfg     Config
	logger  *zap.Logger
}

// New creates a hybrid retriever. lexical can be nil (expansion pass off).
func New(index VectorIndex, lexical LexicalIndex, cfg Config, logger *zap.Logger) *Retriever {
	cfg.ApplyDefaults()
	return &Retriever{
		index:   index,
		lexical: lexical,
		cfg:     cfg,
		logger:  logger,
	}
}

// Search runs the semantic, metadata, and expansion passes for the query and
// returns the top results after merging and per-source diversification.
// queryVector may be nil when the question could not be embedded; the
// retriever then runs the non-semantic passes only and reports degraded.
// An index failure in the semantic pass likewise degrades, but a context
// expiry fails the query so partial merges never pass as complete results.
func (r *Retriever) Search(
	ctx context.Context, queryText string, queryVector []float32, topK int,
) ([]domain.SearchResult, bool, error) {
	limit := topK * candidateFactor
	tokens := tokenize(queryText)

	merged := make(map[string]domain.SearchResult)
	order := make([]string, 0, limit)

	degraded, err := r.semanticPass(ctx, queryVector, limit, merged, &order)
	if err != nil {
		return nil, false, err
	}
	r.metadataPass(ctx, tokens, limit, merged, &order)
	r.expansionPass(ctx, tokens, limit, merged, &order)

	results := make([]domain.SearchResult, 0, len(order))
	for _, id := range order {
		results = append(results, merged[id])
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	results = r.diversify(results, topK)
	for i := range results {
		results[i].Rank = i + 1
		results[i].Distance = 1 - results[i].Similarity
	}

	if degraded {
		metrics.RetrievalDegradedTotal.Inc()
	}
	r.logger.Debug("Hybrid search completed",
		zap.Int("top_k", topK),
		zap.Int("results", len(results)),
		zap.Bool("degraded", degraded),
	)

	return results, degraded, nil
}

// semanticPass queries the vector index. Returns degraded=true when the
// index could not serve the pass; a search cut short by the context deadline
// is an error, not a degradation.
func (r *Retriever) semanticPass(
	ctx context.Context, vector []float32, limit int,
	merged map[string]domain.SearchResult, order *[]string,
) (bool, error) {
	if vector == nil {
		return true, nil
	}

	hits, err := r.index.Search(ctx, vector, limit, r.cfg.Threshold)
	if err != nil {
		if ctx.Err() != nil {
			return false, fmt.Errorf("semantic search: %w", err)
		}
		r.logger.Warn("Semantic pass failed, degrading to metadata and expansion",
			zap.Error(err),
		)
		return true, nil
	}

	metrics.RetrievalPassResults.WithLabelValues(string(domain.SearchSemantic)).
		Observe(float64(len(hits)))

	for _, h := range hits {
		h.Similarity *= r.cfg.SemanticWeight
		h.SearchType = domain.SearchSemantic
		mergeResult(merged, order, h)
	}
	return false, nil
}

// metadataPass matches query tokens against source and document names.
// Filename mentions are strong signals, so hits get a fixed confidence.
func (r *Retriever) metadataPass(
	ctx context.Context, tokens []string, limit int,
	merged map[string]domain.SearchResult, order *[]string,
) {
	if len(tokens) == 0 {
		return
	}

	entries := r.index.EntriesBySource(ctx, tokens, limit)
	metrics.RetrievalPassResults.WithLabelValues(string(domain.SearchMetadata)).
		Observe(float64(len(entries)))

	for _, e := range entries {
		mergeResult(merged, order, domain.SearchResult{
			ID:         e.ID,
			Text:       e.Text,
			Metadata:   e.Metadata,
			Similarity: r.cfg.MetadataConfidence,
			SearchType: domain.SearchMetadata,
		})
	}
}

// expansionPass expands tokens through the synonym table and matches them
// lexically against chunk text. Scores are normalized by the best hit before
// weighting, so the pass is comparable across queries.
func (r *Retriever) expansionPass(
	ctx context.Context, tokens []string, limit int,
	merged map[string]domain.SearchResult, order *[]string,
) {
	if r.lexical == nil || len(tokens) == 0 {
		return
	}

	terms := expand(tokens)
	hits, err := r.lexical.Search(ctx, terms, limit)
	if err != nil {
		r.logger.Warn("Expansion pass failed", zap.Error(err))
		return
	}
	if len(hits) == 0 {
		return
	}

	metrics.RetrievalPassResults.WithLabelValues(string(domain.SearchExpansion)).
		Observe(float64(len(hits)))

	maxScore := hits[0].Score
	for _, h := range hits {
		if h.Score > maxScore {
			maxScore = h.Score
		}
	}
	if maxScore <= 0 {
		return
	}

	for _, h := range hits {
		entry, ok := r.index.Get(ctx, h.ID)
		if !ok {
			continue
		}
		mergeResult(merged, order, domain.SearchResult{
			ID:         entry.ID,
			Text:       entry.Text,
			Metadata:   entry.Metadata,
			Similarity: h.Score / maxScore * r.cfg.LexicalWeight,
			SearchType: domain.SearchExpansion,
		})
	}
}

// mergeResult keeps the highest-scoring occurrence of each entry, with its
// pass tag.
func mergeResult(merged map[string]domain.SearchResult, order *[]string, res domain.SearchResult) {
	existing, ok := merged[res.ID]
	if !ok {
		merged[res.ID] = res
		*order = append(*order, res.ID)
		return
	}
	if res.Similarity > existing.Similarity {
		merged[res.ID] = res
	}
}

// diversify applies the per-source cap in rank order and truncates to topK.
func (r *Retriever) diversify(results []domain.SearchResult, topK int) []domain.SearchResult {
	perSource := make(map[string]int)
	out := make([]domain.SearchResult, 0, topK)

	for _, res := range results {
		if len(out) == topK {
			break
		}
		if perSource[res.Metadata.Source] >= r.cfg.PerSourceCap {
			continue
		}
		perSource[res.Metadata.Source]++
		out = append(out, res)
	}
	return out
}
