package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/google/uuid"

	"github.com/hupe1980/imagesim/distance"
	"github.com/hupe1980/imagesim/feature"
)

// Compile-time check to ensure Memory satisfies the Store interface.
var _ Store = (*Memory)(nil)

// Memory is an exact, in-memory Store. A roaring bitmap per feature kind
// tracks which rows have that vector populated, so candidacy filtering in
// Nearest never touches records lacking the requested field.
type Memory struct {
	mu        sync.RWMutex
	rows      []uuid.UUID // dense row index -> id
	rowOf     map[uuid.UUID]uint32
	recs      map[uuid.UUID]Record
	populated map[feature.Kind]*roaring.Bitmap
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	populated := make(map[feature.Kind]*roaring.Bitmap, len(feature.Kinds()))
	for _, k := range feature.Kinds() {
		populated[k] = roaring.New()
	}

	return &Memory{
		rowOf:     make(map[uuid.UUID]uint32),
		recs:      make(map[uuid.UUID]Record),
		populated: populated,
	}
}

func (s *Memory) Create(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rowOf[rec.ID]; ok {
		return ErrDuplicateID
	}

	row := uint32(len(s.rows))
	s.rows = append(s.rows, rec.ID)
	s.rowOf[rec.ID] = row

	stored := cloneRecord(rec)
	s.recs[rec.ID] = stored

	for k := range stored.Vectors {
		s.populated[k].Add(row)
	}

	return nil
}

func (s *Memory) Get(_ context.Context, id uuid.UUID) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.recs[id]
	if !ok {
		return Record{}, ErrNotFound
	}

	return cloneRecord(rec), nil
}

// SetVectors installs the full vector set and the completion timestamp in
// one locked update, so readers observe either none of the pass or all of
// it.
func (s *Memory) SetVectors(_ context.Context, id uuid.UUID, vectors map[feature.Kind][]float32, completedAt time.Time) error {
	if err := ValidateVectors(vectors); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.recs[id]
	if !ok {
		return ErrNotFound
	}

	rec.Vectors = cloneVectors(vectors)
	ts := completedAt
	rec.ProcessedAt = &ts
	s.recs[id] = rec

	row := s.rowOf[id]
	for k := range rec.Vectors {
		s.populated[k].Add(row)
	}

	return nil
}

func (s *Memory) Nearest(_ context.Context, k feature.Kind, query []float32, opts NearestOptions) ([]Neighbor, error) {
	if len(query) != k.Length() {
		return nil, &ErrDimensionMismatch{Kind: k, Expected: k.Length(), Actual: len(query)}
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	top := NewTopK(limit)

	it := s.populated[k].Iterator()
	for it.HasNext() {
		row := it.Next()
		id := s.rows[row]
		if id == opts.Exclude {
			continue
		}

		d := distance.L2(query, s.recs[id].Vectors[k])
		if opts.MaxDistance != nil && d > *opts.MaxDistance {
			continue
		}

		top.Add(Neighbor{ID: id, Distance: d})
	}

	return top.Results(), nil
}

// Exact reports that Memory performs exhaustive scans.
func (s *Memory) Exact() bool { return true }

func (s *Memory) Close() error { return nil }

// Len returns the number of stored records.
func (s *Memory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.rows)
}

func cloneRecord(rec Record) Record {
	out := rec
	out.Vectors = cloneVectors(rec.Vectors)
	if rec.ProcessedAt != nil {
		ts := *rec.ProcessedAt
		out.ProcessedAt = &ts
	}
	return out
}

func cloneVectors(vectors map[feature.Kind][]float32) map[feature.Kind][]float32 {
	if vectors == nil {
		return nil
	}
	out := make(map[feature.Kind][]float32, len(vectors))
	for k, v := range vectors {
		out[k] = slices.Clone(v)
	}
	return out
}
