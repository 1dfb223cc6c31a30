package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/metrics"
)

// attemptState names the stages of a provider attempt cycle.
type attemptState string

const (
	stateAttempting  attemptState = "attempting"
	stateRetrying    attemptState = "retrying"
	stateFallingBack attemptState = "falling_back"
	stateFailed      attemptState = "failed"
)

// DefaultMaxRetries is the number of attempts per provider before moving on.
const DefaultMaxRetries = 3

// DefaultRetryBackoff is the base delay between attempts; it doubles per retry.
const DefaultRetryBackoff = 200 * time.Millisecond

// FallbackEmbedder runs a primary provider with bounded retries and switches
// to an optional fallback provider once the primary is exhausted. Only
// retryable errors (rate limits, provider errors) trigger another attempt;
// anything else surfaces immediately.
type FallbackEmbedder struct {
	primary      domain.Embedder
	fallback     domain.Embedder
	primaryName  string
	fallbackName string
	maxRetries   int
	backoff      time.Duration
	logger       *zap.Logger
}

// FallbackConfig holds retry and fallback settings.
type FallbackConfig struct {
	Primary      domain.Embedder
	Fallback     domain.Embedder // nil disables fallback
	PrimaryName  string
	FallbackName string
	MaxRetries   int
	Backoff      time.Duration
	Logger       *zap.Logger
}

// NewFallbackEmbedder builds the retry/fallback layer.
func NewFallbackEmbedder(cfg *FallbackConfig) *FallbackEmbedder {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = DefaultRetryBackoff
	}

	return &FallbackEmbedder{
		primary:      cfg.Primary,
		fallback:     cfg.Fallback,
		primaryName:  cfg.PrimaryName,
		fallbackName: cfg.FallbackName,
		maxRetries:   maxRetries,
		backoff:      backoff,
		logger:       cfg.Logger,
	}
}

// Embed implements domain.Embedder with the full retry/fallback cycle.
func (f *FallbackEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	var res domain.EmbeddingResult
	err := f.run(ctx, func(ctx context.Context, inner domain.Embedder) error {
		var innerErr error
		res, innerErr = inner.Embed(ctx, text)
		return innerErr
	})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return res, nil
}

// BatchEmbed implements domain.BatchEmbedder with the same cycle. A batch is
// retried as a unit so partial results never leak.
func (f *FallbackEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	var res domain.BatchEmbeddingResult
	err := f.run(ctx, func(ctx context.Context, inner domain.Embedder) error {
		var innerErr error
		res, innerErr = embedInner(ctx, inner, texts)
		return innerErr
	})
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}
	return res, nil
}

// run drives the state machine: attempting -> retrying (with backoff) until
// the provider's attempts are exhausted, then falling_back to the secondary
// provider, then failed.
func (f *FallbackEmbedder) run(ctx context.Context, do func(context.Context, domain.Embedder) error) error {
	primaryErr := f.attempt(ctx, f.primary, f.primaryName, do)
	if primaryErr == nil {
		return nil
	}
	if !domain.IsRetryable(primaryErr) {
		return primaryErr
	}

	if f.fallback == nil {
		f.transition(stateFailed, f.primaryName, 0, primaryErr)
		return fmt.Errorf("provider %s exhausted: %v: %w", f.primaryName, primaryErr, domain.ErrEmbeddingUnavailable)
	}

	f.transition(stateFallingBack, f.fallbackName, 0, primaryErr)
	metrics.EmbeddingFallbacksTotal.WithLabelValues(f.primaryName, f.fallbackName).Inc()

	fallbackErr := f.attempt(ctx, f.fallback, f.fallbackName, do)
	if fallbackErr == nil {
		return nil
	}
	if !domain.IsRetryable(fallbackErr) {
		return fallbackErr
	}

	f.transition(stateFailed, f.fallbackName, 0, fallbackErr)
	return fmt.Errorf("all providers exhausted (%s, %s): %v: %w",
		f.primaryName, f.fallbackName, fallbackErr, domain.ErrEmbeddingUnavailable)
}

// attempt runs up to maxRetries tries against one provider with exponential
// backoff between retryable failures.
func (f *FallbackEmbedder) attempt(ctx context.Context, inner domain.Embedder, name string,
	do func(context.Context, domain.Embedder) error,
) error {
	var lastErr error

	for try := 1; try <= f.maxRetries; try++ {
		f.transition(stateAttempting, name, try, nil)

		lastErr = do(ctx, inner)
		if lastErr == nil {
			return nil
		}
		if !domain.IsRetryable(lastErr) {
			return lastErr
		}
		if try == f.maxRetries {
			break
		}

		delay := f.backoff * time.Duration(1<<(try-1))
		f.transition(stateRetrying, name, try, lastErr)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastErr
}

func (f *FallbackEmbedder) transition(state attemptState, provider string, try int, err error) {
	fields := []zap.Field{
		zap.String("state", string(state)),
		zap.String("provider", provider),
	}
	if try > 0 {
		fields = append(fields, zap.Int("attempt", try))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}

	switch state {
	case stateAttempting:
		f.logger.Debug("Embedding attempt", fields...)
	case stateRetrying:
		f.logger.Warn("Embedding retry", fields...)
	case stateFallingBack:
		f.logger.Warn("Switching to fallback provider", fields...)
	case stateFailed:
		f.logger.Error("Embedding providers exhausted", fields...)
	}
}
