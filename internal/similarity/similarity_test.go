package similarity_test

import (
	"errors"
	"math"
	"testing"

	"github.com/newslens/newslens/internal/similarity"
)

const tolerance = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < tolerance
}

// TestCosineSimilaritySelf verifies that any non-zero vector has cosine
// similarity 1.0 with itself and -1.0 with its negation.
func TestCosineSimilaritySelf(t *testing.T) {
	cases := []struct {
		name string
		v    []float64
	}{
		{"unit_x", []float64{1, 0, 0}},
		{"mixed", []float64{0.3, -1.2, 4.5, 0.01}},
		{"large", []float64{1e6, 2e6, -3e6}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := similarity.CosineSimilarity(tc.v, tc.v)
			if err != nil {
				t.Fatalf("CosineSimilarity(v, v) returned error: %v", err)
			}
			if !almostEqual(got, 1.0) {
				t.Errorf("CosineSimilarity(v, v) = %f, want 1.0", got)
			}

			neg := make([]float64, len(tc.v))
			for i, x := range tc.v {
				neg[i] = -x
			}
			got, err = similarity.CosineSimilarity(tc.v, neg)
			if err != nil {
				t.Fatalf("CosineSimilarity(v, -v) returned error: %v", err)
			}
			if !almostEqual(got, -1.0) {
				t.Errorf("CosineSimilarity(v, -v) = %f, want -1.0", got)
			}
		})
	}
}

// TestCosineSimilaritySymmetric verifies sim(a, b) == sim(b, a).
func TestCosineSimilaritySymmetric(t *testing.T) {
	a := []float64{0.5, 1.5, -2.0, 0.25}
	b := []float64{-1.0, 0.75, 3.0, 1.0}

	ab, err := similarity.CosineSimilarity(a, b)
	if err != nil {
		t.Fatalf("CosineSimilarity(a, b) returned error: %v", err)
	}
	ba, err := similarity.CosineSimilarity(b, a)
	if err != nil {
		t.Fatalf("CosineSimilarity(b, a) returned error: %v", err)
	}

	if !almostEqual(ab, ba) {
		t.Errorf("similarity is not symmetric: %f vs %f", ab, ba)
	}
}

// TestCosineSimilarityZeroNorm verifies the degenerate zero-vector guard.
func TestCosineSimilarityZeroNorm(t *testing.T) {
	zero := []float64{0, 0, 0}
	v := []float64{1, 2, 3}

	got, err := similarity.CosineSimilarity(zero, v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0 {
		t.Errorf("CosineSimilarity(zero, v) = %f, want 0", got)
	}
}

// TestCosineSimilarityDimensionMismatch verifies the fail-fast error.
func TestCosineSimilarityDimensionMismatch(t *testing.T) {
	_, err := similarity.CosineSimilarity([]float64{1, 2}, []float64{1, 2, 3})
	if !errors.Is(err, similarity.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

// TestCentroidMean verifies that Centroid is the element-wise mean.
func TestCentroidMean(t *testing.T) {
	vectors := [][]float64{
		{1, 2, 3},
		{3, 4, 5},
		{5, 6, 10},
	}
	want := []float64{3, 4, 6}

	got, err := similarity.Centroid(vectors)
	if err != nil {
		t.Fatalf("Centroid returned error: %v", err)
	}

	for i := range want {
		if !almostEqual(got[i], want[i]) {
			t.Errorf("Centroid[%d] = %f, want %f", i, got[i], want[i])
		}
	}
}

// TestCentroidEmptyInput verifies the fail-fast error on empty sets.
func TestCentroidEmptyInput(t *testing.T) {
	_, err := similarity.Centroid(nil)
	if !errors.Is(err, similarity.ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}
}

// TestCentroidDimensionMismatch verifies mixed-dimension sets are rejected.
func TestCentroidDimensionMismatch(t *testing.T) {
	_, err := similarity.Centroid([][]float64{{1, 2}, {1, 2, 3}})
	if !errors.Is(err, similarity.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

// TestUpdateCentroidSingleStep verifies the running-mean step: folding E
// into a one-member centroid C gives C + (E - C) / 2.
func TestUpdateCentroidSingleStep(t *testing.T) {
	current := []float64{1, 1, 1}
	newVec := []float64{3, 5, 7}

	got, err := similarity.UpdateCentroid(current, newVec, 1)
	if err != nil {
		t.Fatalf("UpdateCentroid returned error: %v", err)
	}

	want := []float64{2, 3, 4}
	for i := range want {
		if !almostEqual(got[i], want[i]) {
			t.Errorf("UpdateCentroid[%d] = %f, want %f", i, got[i], want[i])
		}
	}
}

// TestUpdateCentroidConvergesToMean verifies that applying UpdateCentroid
// once per element (seeded from the first element, count=1) converges to the
// same result as Centroid over the full set, within floating-point tolerance.
func TestUpdateCentroidConvergesToMean(t *testing.T) {
	vectors := [][]float64{
		{0.1, 0.9, -0.4},
		{1.2, -0.3, 0.8},
		{-0.7, 0.5, 2.1},
		{0.0, 1.0, 0.0},
		{3.3, -2.2, 1.1},
	}

	want, err := similarity.Centroid(vectors)
	if err != nil {
		t.Fatalf("Centroid returned error: %v", err)
	}

	running := append([]float64(nil), vectors[0]...)
	for i := 1; i < len(vectors); i++ {
		running, err = similarity.UpdateCentroid(running, vectors[i], i)
		if err != nil {
			t.Fatalf("UpdateCentroid step %d returned error: %v", i, err)
		}
	}

	for i := range want {
		if math.Abs(running[i]-want[i]) > 1e-9 {
			t.Errorf("running mean diverged at [%d]: %f vs %f", i, running[i], want[i])
		}
	}
}

// TestUpdateCentroidDoesNotMutateInputs verifies inputs are left untouched.
func TestUpdateCentroidDoesNotMutateInputs(t *testing.T) {
	current := []float64{1, 2, 3}
	newVec := []float64{4, 5, 6}

	if _, err := similarity.UpdateCentroid(current, newVec, 2); err != nil {
		t.Fatalf("UpdateCentroid returned error: %v", err)
	}

	if current[0] != 1 || current[1] != 2 || current[2] != 3 {
		t.Errorf("current was mutated: %v", current)
	}
	if newVec[0] != 4 || newVec[1] != 5 || newVec[2] != 6 {
		t.Errorf("newVec was mutated: %v", newVec)
	}
}

// TestUpdateCentroidInvalidCount verifies counts below 1 are rejected.
func TestUpdateCentroidInvalidCount(t *testing.T) {
	if _, err := similarity.UpdateCentroid([]float64{1}, []float64{2}, 0); err == nil {
		t.Error("expected error for count 0, got nil")
	}
}
