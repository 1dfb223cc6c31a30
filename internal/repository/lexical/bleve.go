// Package lexical maintains a Bleve full-text index over chunk text,
// powering the term-expansion retrieval pass.
package lexical

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// Hit is a lexical match: entry id plus Bleve's relevance score.
// Scores are unbounded; callers normalize before blending with other passes.
type Hit struct {
	ID    string
	Score float64
}

// indexedChunk is the document shape fed to Bleve.
type indexedChunk struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

// Index wraps a Bleve index. path == "" builds an in-memory index (tests);
// otherwise the index lives on disk and survives restarts.
type Index struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	logger *zap.Logger
}

// New opens or creates the lexical index at path.
// The standard analyzer (lowercase + tokenize, no stemming) keeps expanded
// query terms matching exact words in chunk text.
func New(path string, logger *zap.Logger) (*Index, error) {
	idx, err := open(path)
	if err != nil {
		return nil, err
	}
	return &Index{index: idx, path: path, logger: logger}, nil
}

func open(path string) (bleve.Index, error) {
	if path == "" {
		idx, err := bleve.NewMemOnly(indexMapping())
		if err != nil {
			return nil, fmt.Errorf("create in-memory lexical index: %w", err)
		}
		return idx, nil
	}

	if _, err := os.Stat(path); err == nil {
		idx, err := bleve.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open lexical index: %w", err)
		}
		return idx, nil
	}

	idx, err := bleve.New(path, indexMapping())
	if err != nil {
		return nil, fmt.Errorf("create lexical index: %w", err)
	}
	return idx, nil
}

func indexMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("text", textField)
	sourceField := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("source", sourceField)

	im.DefaultMapping = docMapping
	return im
}

// IndexEntries adds (or re-adds) entries in one Bleve batch.
func (x *Index) IndexEntries(_ context.Context, entries []domain.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	batch := x.index.NewBatch()
	for _, e := range entries {
		doc := indexedChunk{Text: e.Text, Source: e.Metadata.Source}
		if err := batch.Index(e.ID, doc); err != nil {
			return fmt.Errorf("batch index %s: %w", e.ID, err)
		}
	}
	if err := x.index.Batch(batch); err != nil {
		return fmt.Errorf("lexical batch: %w", err)
	}
	return nil
}

// Search runs a match query of the given terms against chunk text and
// returns up to limit hits.
func (x *Index) Search(_ context.Context, terms []string, limit int) ([]Hit, error) {
	if len(terms) == 0 || limit <= 0 {
		return nil, nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		if term == "" {
			continue
		}
		q := bleve.NewMatchQuery(term)
		q.SetField("text")
		queries = append(queries, q)
	}
	if len(queries) == 0 {
		return nil, nil
	}

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(queries...))
	req.Size = limit

	res, err := x.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	hits := make([]Hit, len(res.Hits))
	for i, h := range res.Hits {
		hits[i] = Hit{ID: h.ID, Score: h.Score}
	}
	return hits, nil
}

// Reset drops all indexed content by recreating the index.
func (x *Index) Reset(_ context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.index.Close(); err != nil {
		return fmt.Errorf("close lexical index: %w", err)
	}
	if x.path != "" {
		if err := os.RemoveAll(x.path); err != nil {
			return fmt.Errorf("remove lexical index: %w", err)
		}
	}

	idx, err := open(x.path)
	if err != nil {
		return err
	}
	x.index = idx
	x.logger.Warn("Lexical index reset")
	return nil
}

// Close releases the underlying Bleve index.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.index.Close(); err != nil {
		return fmt.Errorf("close lexical index: %w", err)
	}
	return nil
}
