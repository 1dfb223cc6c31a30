package domain

import "errors"

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrEmbeddingUnavailable signals that no embedding provider could serve the request.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrEmbeddingQuotaExceeded signals an exhausted embedding token budget.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
	// ErrRateLimited signals a rate limit hit at a remote provider.
	ErrRateLimited = errors.New("rate limited")
	// ErrDimensionMismatch signals a vector dimension mismatch.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrIndexUnavailable signals that the vector index cannot be reached.
	ErrIndexUnavailable = errors.New("vector index unavailable")
	// ErrTimeout signals that a step exceeded its time budget.
	ErrTimeout = errors.New("operation timed out")
)

// IsRetryable reports whether an embedding error is worth retrying on the
// same provider. Dimension mismatches and quota rejections are permanent.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrEmbeddingProviderError)
}
