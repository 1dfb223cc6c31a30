package ragdex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/chunker"
	"github.com/kailas-cloud/ragdex/internal/db"
	dbRedis "github.com/kailas-cloud/ragdex/internal/db/redis"
	dbSqlite "github.com/kailas-cloud/ragdex/internal/db/sqlite"
	"github.com/kailas-cloud/ragdex/internal/domain"
	indexrepo "github.com/kailas-cloud/ragdex/internal/repository/index"
	"github.com/kailas-cloud/ragdex/internal/repository/lexical"
	adminuc "github.com/kailas-cloud/ragdex/internal/usecase/admin"
	embeddinguc "github.com/kailas-cloud/ragdex/internal/usecase/embedding"
	ingestuc "github.com/kailas-cloud/ragdex/internal/usecase/ingest"
	pipelineuc "github.com/kailas-cloud/ragdex/internal/usecase/pipeline"
	retrievaluc "github.com/kailas-cloud/ragdex/internal/usecase/retrieval"
)

const defaultReadinessTimeout = 10 * time.Second

// Client is the embedded ragdex entry point.
type Client struct {
	store    db.Store
	lex      *lexical.Index
	ingest   *ingestuc.Service
	pipeline *pipelineuc.Service
	admin    *adminuc.Service
}

// New creates a Client, connects to storage, and loads the index into memory.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		minChunkSize: chunker.DefaultMinChunkSize,
		logger:       zap.NewNop(),
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.embedder == nil {
		return nil, errors.New("ragdex: embedder required (use WithEmbedder)")
	}
	if cfg.dimensions <= 0 {
		return nil, errors.New("ragdex: embedder dimensions must be positive")
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("ragdex: storage not ready: %w", err)
	}

	return wireClient(ctx, store, cfg)
}

func createStore(cfg *clientConfig) (db.Store, error) {
	switch cfg.driver {
	case "sqlite":
		s, err := dbSqlite.NewStore(dbSqlite.Config{Path: cfg.path})
		if err != nil {
			return nil, fmt.Errorf("ragdex: create sqlite store: %w", err)
		}
		return s, nil
	case "redis":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("ragdex: create redis store: %w", err)
		}
		return s, nil
	default:
		return nil, errors.New("ragdex: storage required (use WithSQLite or WithRedis)")
	}
}

func wireClient(ctx context.Context, store db.Store, cfg *clientConfig) (*Client, error) {
	logger := cfg.logger

	index := indexrepo.New(store, cfg.dimensions, logger)
	if err := index.Load(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("ragdex: load index: %w", err)
	}

	lex, err := lexical.New(cfg.lexicalPath, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("ragdex: open lexical index: %w", err)
	}

	// Caller-supplied embedder, guarded the same way server providers are.
	var emb domain.Embedder = &embedderAdapter{inner: cfg.embedder}
	emb = embeddinguc.NewNormalizeEmbedder(
		embeddinguc.NewVerifyDimensionEmbedder(emb, cfg.dimensions),
	)
	embSvc := embeddinguc.NewService(&embeddinguc.ServiceConfig{
		Embedder:  emb,
		Dimension: cfg.dimensions,
		Logger:    logger,
	})

	splitter := chunker.New(chunker.DefaultProfiles(), cfg.minChunkSize, logger)
	retriever := retrievaluc.New(index, lex, retrievaluc.Config{}, logger)

	return &Client{
		store:    store,
		lex:      lex,
		ingest:   ingestuc.New(splitter, embSvc, index, lex, logger),
		pipeline: pipelineuc.New(embSvc, retriever, pipelineuc.Config{}, logger),
		admin:    adminuc.New(index, lex, logger),
	}, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.lex != nil {
		_ = c.lex.Close()
	}
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks storage connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Ingest chunks, embeds, and indexes one document.
func (c *Client) Ingest(ctx context.Context, doc Document) (IngestResult, error) {
	res, err := c.ingest.Ingest(ctx, domain.Document{
		ID:         doc.ID,
		SourceName: doc.SourceName,
		RawText:    doc.Text,
		Format:     domain.Format(doc.Format),
	})
	if err != nil {
		return IngestResult{}, fmt.Errorf("ingest: %w", err)
	}
	return toIngestResult(res), nil
}

// Query runs the full retrieval pipeline for one question.
func (c *Client) Query(ctx context.Context, question string, opts *QueryOptions) (Answer, error) {
	var topK *int
	if opts != nil && opts.TopK > 0 {
		topK = &opts.TopK
	}
	rc, err := c.pipeline.Retrieve(ctx, question, topK)
	if err != nil {
		return Answer{}, fmt.Errorf("query: %w", err)
	}
	return toAnswer(rc), nil
}

// Stats reports index contents.
func (c *Client) Stats(ctx context.Context) Stats {
	s := c.admin.Stats(ctx)
	return Stats{TotalEntries: s.TotalEntries, DistinctSources: s.DistinctSources}
}

// Reset removes every indexed entry. The operation is irreversible.
func (c *Client) Reset(ctx context.Context) error {
	if err := c.admin.Reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return nil
}

// Backup writes a snapshot of the index to the given file.
func (c *Client) Backup(ctx context.Context, path string) error {
	if err := c.admin.Backup(ctx, path); err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	return nil
}

// Restore replaces the index contents with a previously written snapshot.
func (c *Client) Restore(ctx context.Context, path string) error {
	if err := c.admin.Restore(ctx, path); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	return nil
}

// embedderAdapter wraps the public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}
