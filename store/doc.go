// Package store defines the vector store contract: per-image records holding
// named feature vectors, point lookup, the atomic "all vectors of one
// extraction pass" update, and nearest-neighbor queries per vector field.
//
// # Exactness contract
//
// Nearest returns candidates ordered by ascending L2 distance with ties
// broken by ascending record id. An implementation reports via Exact
// whether its results are an exact top-K or a high-recall approximation
// (e.g. when backed by a clustered/inverted-file index). Callers of an
// approximate store must tolerate near-exact result sets; the in-memory and
// SQLite implementations shipped with this module are exact scans.
package store
