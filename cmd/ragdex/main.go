package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/chunker"
	"github.com/kailas-cloud/ragdex/internal/config"
	"github.com/kailas-cloud/ragdex/internal/db"
	dbRedis "github.com/kailas-cloud/ragdex/internal/db/redis"
	dbSqlite "github.com/kailas-cloud/ragdex/internal/db/sqlite"
	"github.com/kailas-cloud/ragdex/internal/domain"
	logpkg "github.com/kailas-cloud/ragdex/internal/logger"
	"github.com/kailas-cloud/ragdex/internal/metrics"
	budgetrepo "github.com/kailas-cloud/ragdex/internal/repository/budget"
	"github.com/kailas-cloud/ragdex/internal/repository/embcache"
	indexrepo "github.com/kailas-cloud/ragdex/internal/repository/index"
	"github.com/kailas-cloud/ragdex/internal/repository/lexical"
	chiTransport "github.com/kailas-cloud/ragdex/internal/transport/chi"
	ollamaEmb "github.com/kailas-cloud/ragdex/internal/transport/ollama"
	openaiEmb "github.com/kailas-cloud/ragdex/internal/transport/openai"
	adminuc "github.com/kailas-cloud/ragdex/internal/usecase/admin"
	embeddinguc "github.com/kailas-cloud/ragdex/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/ragdex/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/ragdex/internal/usecase/ingest"
	pipelineuc "github.com/kailas-cloud/ragdex/internal/usecase/pipeline"
	retrievaluc "github.com/kailas-cloud/ragdex/internal/usecase/retrieval"
	usageuc "github.com/kailas-cloud/ragdex/internal/usecase/usage"
	"github.com/kailas-cloud/ragdex/internal/version"
)

func main() {
	// .env is optional; real deployments set env vars directly.
	_ = godotenv.Load()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting ragdex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
	)

	// Create database store based on driver
	var store db.Store
	switch cfg.Database.Driver {
	case "redis":
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
	case "sqlite", "":
		store, err = dbSqlite.NewStore(dbSqlite.Config{
			Path: cfg.Database.Path,
		})
	default:
		logger.Fatal("Unknown database driver", zap.String("driver", cfg.Database.Driver))
	}
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterRetrievalMetrics()

	// Build embedder chain — composition root.
	// Provider -> verify dimension -> normalize -> retry/fallback -> cache -> budget.
	primaryName := cfg.Embedding.Primary
	primaryCfg, ok := cfg.Embedding.Providers[primaryName]
	if !ok {
		logger.Fatal("Primary embedding provider not configured", zap.String("provider", primaryName))
	}
	dim := cfg.Embedding.Dimensions

	// Single BudgetTracker shared between the embedder chain and the usage endpoint.
	var budget *embeddinguc.BudgetTracker
	budgetCfg := primaryCfg.Budget
	if budgetCfg.DailyTokenLimit > 0 || budgetCfg.MonthlyTokenLimit > 0 {
		action := embeddinguc.BudgetActionWarn
		if budgetCfg.Action == "reject" {
			action = embeddinguc.BudgetActionReject
		}
		budget = embeddinguc.NewBudgetTracker(
			primaryName, budgetCfg.DailyTokenLimit, budgetCfg.MonthlyTokenLimit, action, logger,
		)
		budgetStore := budgetrepo.New(store, 48*time.Hour, 62*24*time.Hour)
		budget.WithStore(ctx, budgetStore)
	}

	// Pass nil interface (not typed nil pointer!) if budget is not configured.
	// Go gotcha: (*BudgetTracker)(nil) wrapped in BudgetChecker != nil.
	var budgetChecker embeddinguc.BudgetChecker
	if budget != nil {
		budgetChecker = budget
	}

	primary := buildProvider(primaryName, primaryCfg, dim, logger)
	primaryGuarded := guardProvider(primary, dim)

	var fallback domain.Embedder
	fallbackName := cfg.Embedding.Fallback
	if fallbackName != "" {
		fbCfg, ok := cfg.Embedding.Providers[fallbackName]
		if !ok {
			logger.Fatal("Fallback embedding provider not configured", zap.String("provider", fallbackName))
		}
		fallback = guardProvider(buildProvider(fallbackName, fbCfg, dim, logger), dim)
	}

	var embedder domain.Embedder = embeddinguc.NewFallbackEmbedder(&embeddinguc.FallbackConfig{
		Primary:      primaryGuarded,
		Fallback:     fallback,
		PrimaryName:  primaryName,
		FallbackName: fallbackName,
		MaxRetries:   cfg.Embedding.MaxRetries,
		Backoff:      time.Duration(cfg.Embedding.RetryBackoff) * time.Millisecond,
		Logger:       logger,
	})

	cached := embcache.New(embedder, store, metrics.EmbeddingCacheTotal, logger)
	if cfg.Embedding.CacheTTLSec > 0 {
		cached.WithTTL(time.Duration(cfg.Embedding.CacheTTLSec) * time.Second)
	}
	embedder = cached

	embedder = embeddinguc.NewInstrumentedEmbedder(
		embedder, primaryName, primaryCfg.Model, budgetChecker, logger,
	)

	embSvc := embeddinguc.NewService(&embeddinguc.ServiceConfig{
		Embedder:      embedder,
		Dimension:     dim,
		BatchSize:     cfg.Embedding.BatchSize,
		MaxInputChars: cfg.Embedding.MaxInputChars,
		Logger:        logger,
	})
	logger.Info("Embedder chain created",
		zap.String("primary", primaryName),
		zap.String("fallback", fallbackName),
		zap.String("model", primaryCfg.Model),
		zap.Int("dimensions", dim),
	)

	// Repositories
	index := indexrepo.New(store, dim, logger)
	if err := index.Load(ctx); err != nil {
		logger.Fatal("Failed to load vector index", zap.Error(err))
	}

	lex, err := lexical.New(cfg.Lexical.Path, logger)
	if err != nil {
		logger.Fatal("Failed to open lexical index", zap.Error(err))
	}
	defer lex.Close()

	// Use case services
	splitter := chunker.New(chunkProfiles(cfg.Chunking), cfg.Chunking.MinChunkSize, logger)
	ingestSvc := ingestuc.New(splitter, embSvc, index, lex, logger)

	retriever := retrievaluc.New(index, lex, retrievaluc.Config{
		Threshold:          cfg.Retrieval.Threshold,
		SemanticWeight:     cfg.Retrieval.SemanticWeight,
		LexicalWeight:      cfg.Retrieval.LexicalWeight,
		MetadataConfidence: cfg.Retrieval.MetadataConfidence,
		PerSourceCap:       cfg.Retrieval.PerSourceCap,
	}, logger)

	pipelineSvc := pipelineuc.New(embSvc, retriever, pipelineuc.Config{
		ContextCharBudget: cfg.Retrieval.ContextCharBudget,
		EmbedTimeout:      time.Duration(cfg.Retrieval.EmbedTimeoutSec) * time.Second,
		SearchTimeout:     time.Duration(cfg.Retrieval.SearchTimeoutSec) * time.Second,
	}, logger)

	adminSvc := adminuc.New(index, lex, logger)

	var budgetReader usageuc.BudgetReader
	if budget != nil {
		budgetReader = budget
	}
	usageSvc := usageuc.New(budgetReader)

	healthSvc := healthuc.New(store, newEmbeddingHealthChecker(primary), index)

	// HTTP server
	server := chiTransport.NewServer(
		pipelineSvc, ingestSvc, adminSvc, usageSvc, healthSvc, cfg.Backup.Dir, logger,
	)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Router(cfg.Auth.APIKeys),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildProvider creates the base embedding provider for one configured backend.
func buildProvider(name string, cfg config.ProviderConfig, dim int, logger *zap.Logger) domain.Embedder {
	switch cfg.Kind {
	case "openai":
		return openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: dim,
			Provider:   name,
			Logger:     logger,
		})
	default: // "ollama"
		return ollamaEmb.NewEmbedder(&ollamaEmb.Config{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: dim,
			Logger:     logger,
		})
	}
}

// guardProvider wraps a provider so every vector leaving it has the agreed
// dimension and unit length. Applied per provider, before retry/fallback,
// so a misconfigured fallback fails loudly instead of poisoning the index.
func guardProvider(e domain.Embedder, dim int) domain.Embedder {
	return embeddinguc.NewNormalizeEmbedder(embeddinguc.NewVerifyDimensionEmbedder(e, dim))
}

// chunkProfiles maps config profiles onto domain formats. Formats not named
// in the config keep their built-in defaults.
func chunkProfiles(cfg config.ChunkingConfig) map[domain.Format]chunker.Profile {
	profiles := chunker.DefaultProfiles()
	for key, p := range cfg.Profiles {
		profiles[domain.Format(key)] = chunker.Profile{
			ChunkSize:    p.ChunkSize,
			ChunkOverlap: p.ChunkOverlap,
		}
	}
	return profiles
}

// embeddingHealthChecker adapts domain.Embedder to health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}
