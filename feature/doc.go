// Package feature derives fixed-length numeric descriptors ("histograms")
// from decoded images. Four independent extractors are provided, selected by
// an enumerated Kind:
//
//	Kind       | Length | When to use
//	-----------+--------+------------------------------------------------------
//	Color      |    512 | Comparing images by dominant colors (landscapes, art).
//	Shape      |   1764 | Analyzing shapes and structures (people, objects).
//	Texture    |     48 | Identifying texture patterns (fabrics, wood).
//	Intensity  |    256 | Near-grayscale imagery; cheapest descriptor.
//
// Every extractor is a pure function: deterministic for identical input
// pixels, never mutating its input and never returning a partial vector.
// Invalid pixel grids (empty, zero-sized, inconsistent layout) are rejected
// with *ExtractionError.
package feature
