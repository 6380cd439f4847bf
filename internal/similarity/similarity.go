// Package similarity provides the pure numeric operations behind event
// clustering: cosine similarity between embedding vectors, centroid-of-set
// computation, and the incremental running-mean centroid update.
//
// All functions are side-effect free and never mutate their inputs.
package similarity

import (
	"errors"
	"fmt"
	"math"
)

// ErrEmptyInput is returned by Centroid when given no vectors.
var ErrEmptyInput = errors.New("similarity: empty input set")

// ErrDimensionMismatch is returned when two vectors (or members of a set)
// do not share the same dimension. This signals a data-integrity bug
// upstream and is never retryable.
var ErrDimensionMismatch = errors.New("similarity: vector dimension mismatch")

// CosineSimilarity returns the cosine of the angle between a and b,
// in [-1, 1]. If either vector has zero norm it returns 0 — a degenerate
// guard, not a true cosine value.
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// Centroid returns the element-wise arithmetic mean of the given vectors.
// All vectors must share the same dimension. Reserved for explicit
// re-clustering/repair; the normal per-article flow uses UpdateCentroid.
func Centroid(vectors [][]float64) ([]float64, error) {
	if len(vectors) == 0 {
		return nil, ErrEmptyInput
	}

	dim := len(vectors[0])
	sum := make([]float64, dim)

	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, expected %d",
				ErrDimensionMismatch, i, len(v), dim)
		}
		for j, x := range v {
			sum[j] += x
		}
	}

	n := float64(len(vectors))
	for j := range sum {
		sum[j] /= n
	}

	return sum, nil
}

// UpdateCentroid folds newVec into a centroid currently averaging
// currentCount members, returning the mean over currentCount+1 members:
//
//	updated[i] = current[i] + (newVec[i] - current[i]) / (currentCount + 1)
//
// Mathematically equivalent to recomputing the mean from scratch but O(D)
// instead of O(D * count). This is the only legal way to add a member to an
// event's centroid in the normal flow.
func UpdateCentroid(current, newVec []float64, currentCount int) ([]float64, error) {
	if len(current) != len(newVec) {
		return nil, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(current), len(newVec))
	}
	if currentCount < 1 {
		return nil, fmt.Errorf("similarity: current count must be >= 1, got %d", currentCount)
	}

	n := float64(currentCount + 1)
	updated := make([]float64, len(current))
	for i := range current {
		updated[i] = current[i] + (newVec[i]-current[i])/n
	}

	return updated, nil
}
