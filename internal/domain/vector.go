package domain

import (
	"fmt"
	"math"
)

// NormEpsilon is the allowed deviation of a unit vector's L2 norm.
const NormEpsilon = 1e-6

// Norm returns the L2 norm of a vector.
func Norm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

// Normalize scales a vector to unit L2 norm in place.
// A zero vector is left untouched (normalizing it is undefined).
func Normalize(v []float32) {
	n := Norm(v)
	if n == 0 {
		return
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / n)
	}
}

// IsNormalized reports whether ||v|| is within NormEpsilon of 1.
func IsNormalized(v []float32) bool {
	return math.Abs(Norm(v)-1) <= NormEpsilon
}

// Cosine returns the cosine similarity of two vectors in [-1, 1].
// Both vectors must have the same width; mismatch is a caller bug surfaced
// as ErrDimensionMismatch, never silently truncated.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("cosine: %d vs %d: %w", len(a), len(b), ErrDimensionMismatch)
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}

// Dot returns the dot product of two equal-width vectors. For unit vectors
// this equals cosine similarity and skips the norm computation in a scan.
func Dot(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("dot: %d vs %d: %w", len(a), len(b), ErrDimensionMismatch)
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot, nil
}
