package distance

import (
	"math"
	"slices"
)

// SquaredL2 calculates the squared L2 (Euclidean) distance between two
// vectors, accumulating in float64.
//
// SAFETY: This function assumes len(a) == len(b).
// Callers MUST ensure lengths match; use the store layer's dimension checks.
func SquaredL2(a, b []float32) float64 {
	var d float64
	for i := range a {
		diff := float64(a[i]) - float64(b[i])
		d += diff * diff
	}

	return d
}

// L2 calculates the L2 (Euclidean) distance between two vectors.
//
// SAFETY: This function assumes len(a) == len(b).
func L2(a, b []float32) float64 {
	return math.Sqrt(SquaredL2(a, b))
}

// Dot calculates the dot product of two vectors.
//
// SAFETY: This function assumes len(a) == len(b).
func Dot(a, b []float32) float64 {
	var d float64
	for i := range a {
		d += float64(a[i]) * float64(b[i])
	}

	return d
}

// NormalizeL2InPlace L2-normalizes v in place.
// Returns false if v is empty or has zero L2 norm.
func NormalizeL2InPlace(v []float32) bool {
	if len(v) == 0 {
		return false
	}

	norm2 := Dot(v, v)
	if norm2 == 0 {
		return false
	}

	inv := 1 / math.Sqrt(norm2)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}

	return true
}

// NormalizeL2Copy returns a normalized copy of src.
// Returns false if src is empty or has zero L2 norm.
func NormalizeL2Copy(src []float32) ([]float32, bool) {
	dst := slices.Clone(src)
	if !NormalizeL2InPlace(dst) {
		return nil, false
	}

	return dst, true
}
