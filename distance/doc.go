// Package distance provides the vector distance calculations used by the
// similarity engine: squared and true L2 (Euclidean) distance plus L2
// normalization helpers for histogram vectors.
//
// All functions are portable scalar implementations. Accumulation happens in
// float64 so that distance cutoffs compare deterministically across
// platforms.
package distance
