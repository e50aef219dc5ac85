package index

import (
	"math"

	"github.com/cloo-solutions/ragkit/internal/domain"
)

// ScoreFunc scores a stored vector against a query vector of the same length.
type ScoreFunc func(a, b []float32) float64

// ScoreFuncFor returns the scoring function for s.
func ScoreFuncFor(s domain.Similarity) (ScoreFunc, error) {
	switch s {
	case domain.SimilarityCosine, "":
		return Cosine, nil
	case domain.SimilarityDot:
		return Dot, nil
	default:
		return nil, domain.NewConfigurationError("unknown similarity %q", s)
	}
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector.
func Cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Dot returns the inner product of a and b.
func Dot(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}
