package store

import (
	"bytes"
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/imagesim/feature"
)

// DefaultLimit is the result-count limit applied when NearestOptions.Limit
// is not positive.
const DefaultLimit = 10

var (
	// ErrNotFound is returned when a record id is unknown.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateID is returned when Create is called with an id that
	// already exists.
	ErrDuplicateID = errors.New("record id already exists")
)

// ErrDimensionMismatch indicates a vector whose length does not match the
// fixed length of its feature kind.
type ErrDimensionMismatch struct {
	Kind     feature.Kind
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch for %s: expected %d, got %d", e.Kind, e.Expected, e.Actual)
}

// ErrIncompleteVectors indicates a SetVectors call that does not carry every
// configured feature kind. Partial writes would break the atomic-visibility
// invariant, so they are rejected outright.
type ErrIncompleteVectors struct {
	Missing feature.Kind
}

func (e *ErrIncompleteVectors) Error() string {
	return fmt.Sprintf("incomplete vector set: missing %s", e.Missing)
}

// Record is the stored state of one image.
type Record struct {
	// ID is the opaque 128-bit image identifier.
	ID uuid.UUID

	// Path is the storage handle owned by the blob collaborator. The store
	// treats it as opaque.
	Path string

	// Vectors holds the named feature vectors. A kind is absent until the
	// extraction pass that computes it has committed.
	Vectors map[feature.Kind][]float32

	CreatedAt time.Time

	// ProcessedAt is set if and only if all vectors were written, in the
	// same store operation that wrote them.
	ProcessedAt *time.Time
}

// Vector returns the named vector, or nil when not yet computed.
func (r Record) Vector(k feature.Kind) []float32 {
	return r.Vectors[k]
}

// Processed reports whether the extraction pass for this record completed.
func (r Record) Processed() bool {
	return r.ProcessedAt != nil
}

// Neighbor is one ranked similarity candidate.
type Neighbor struct {
	ID       uuid.UUID
	Distance float64
}

// NearestOptions controls a nearest-neighbor query.
type NearestOptions struct {
	// Limit caps the number of results. Non-positive means DefaultLimit.
	Limit int

	// MaxDistance, when non-nil, discards candidates whose distance exceeds
	// it. The boundary is inclusive: distance == *MaxDistance is kept.
	MaxDistance *float64

	// Exclude removes the given record (normally the querying record) from
	// candidacy.
	Exclude uuid.UUID
}

// Store is the shared vector store used by the job scheduler (writes) and
// the similarity query engine (reads). Implementations must allow
// concurrent readers during writes and must never expose a record with some
// but not all vectors of an extraction pass.
type Store interface {
	// Create inserts a new record, normally without vectors. It fails with
	// ErrDuplicateID when the id exists.
	Create(ctx context.Context, rec Record) error

	// Get returns the record or ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (Record, error)

	// SetVectors writes every feature vector plus the completion timestamp
	// as one atomic update, overwriting any previous vectors. Re-running an
	// extraction pass is therefore idempotent. It fails with ErrNotFound
	// for unknown ids and ErrIncompleteVectors/ErrDimensionMismatch for
	// malformed vector sets.
	SetVectors(ctx context.Context, id uuid.UUID, vectors map[feature.Kind][]float32, completedAt time.Time) error

	// Nearest returns up to opts.Limit records ranked by ascending L2
	// distance of their k-vector from query. Records lacking the k-vector
	// are excluded from candidacy, not scored as infinite distance.
	Nearest(ctx context.Context, k feature.Kind, query []float32, opts NearestOptions) ([]Neighbor, error)

	// Exact reports whether Nearest results are exact or approximate for
	// this implementation.
	Exact() bool

	Close() error
}

// ValidateVectors checks that vectors carries every feature kind at its
// fixed length. Shared by Store implementations.
func ValidateVectors(vectors map[feature.Kind][]float32) error {
	for _, k := range feature.Kinds() {
		v, ok := vectors[k]
		if !ok {
			return &ErrIncompleteVectors{Missing: k}
		}
		if len(v) != k.Length() {
			return &ErrDimensionMismatch{Kind: k, Expected: k.Length(), Actual: len(v)}
		}
	}
	return nil
}

// less orders neighbors by ascending distance, ties broken by ascending id
// bytes so that rankings are stable and deterministic.
func less(a, b Neighbor) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return bytes.Compare(a.ID[:], b.ID[:]) < 0
}

// TopK collects the k best neighbors from a candidate stream using a
// bounded max-heap, so exact scans stay O(n log k).
type TopK struct {
	k     int
	items neighborHeap
}

// NewTopK creates a collector for the k nearest candidates.
func NewTopK(k int) *TopK {
	return &TopK{k: k}
}

// Add offers a candidate to the collector.
func (t *TopK) Add(n Neighbor) {
	if t.k <= 0 {
		return
	}
	if t.items.Len() < t.k {
		heap.Push(&t.items, n)
		return
	}
	if less(n, t.items[0]) {
		t.items[0] = n
		heap.Fix(&t.items, 0)
	}
}

// Results returns the collected neighbors in ascending order.
func (t *TopK) Results() []Neighbor {
	out := make([]Neighbor, len(t.items))
	copy(out, t.items)
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// neighborHeap is a max-heap: the worst retained candidate sits at the root.
type neighborHeap []Neighbor

func (h neighborHeap) Len() int           { return len(h) }
func (h neighborHeap) Less(i, j int) bool { return less(h[j], h[i]) }
func (h neighborHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *neighborHeap) Push(x any) {
	*h = append(*h, x.(Neighbor))
}

func (h *neighborHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
