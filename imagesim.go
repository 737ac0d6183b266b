package imagesim

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/imagesim/feature"
	"github.com/hupe1980/imagesim/queue"
	"github.com/hupe1980/imagesim/store"
)

// Status is the outcome class of a similarity query.
type Status string

const (
	// StatusReady means the reference vector exists and neighbors were
	// ranked.
	StatusReady Status = "ok"

	// StatusProcessing means background extraction has not yet populated
	// the requested vector. This is a normal outcome of the race between
	// ingestion and extraction, not a fault.
	StatusProcessing Status = "processing"
)

// SimilarImage is one ranked neighbor.
type SimilarImage struct {
	ID       uuid.UUID
	URL      string
	Distance float64
}

// SimilarResult is the answer to a similarity query.
type SimilarResult struct {
	Status Status

	// ImageURL is the locator-resolved URL of the reference image.
	ImageURL string

	// Exact reports whether the backing store ranked candidates exactly or
	// approximately (see the store package's exactness contract).
	Exact bool

	// Similar is ordered by ascending distance; empty when Status is
	// StatusProcessing.
	Similar []SimilarImage
}

// Service ties ingestion and similarity retrieval together over a shared
// vector store and job queue. All dependencies are injected at
// construction; Service holds no global state and is safe for concurrent
// use.
type Service struct {
	store   store.Store
	queue   queue.Queue
	backoff queue.Backoff
	locator Locator
	logger  *Logger
}

// New creates a Service on the given store and queue.
func New(s store.Store, q queue.Queue, optFns ...Option) *Service {
	opts := options{
		backoff: queue.DefaultBackoff,
		locator: PathLocator(),
		logger:  NoopLogger(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Service{
		store:   s,
		queue:   q,
		backoff: opts.backoff,
		locator: opts.locator,
		logger:  opts.logger,
	}
}

// Backoff returns the retry configuration attached to enqueued jobs, so
// the worker pool can be configured consistently.
func (s *Service) Backoff() queue.Backoff {
	return s.backoff
}

// Ingest registers an already-stored image under a fresh id and enqueues
// its extraction job. The path is the storage collaborator's handle for the
// image bytes and stays opaque to the pipeline.
func (s *Service) Ingest(ctx context.Context, path string) (uuid.UUID, error) {
	id := uuid.New()
	if err := s.IngestWithID(ctx, id, path); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// IngestWithID is Ingest with a caller-supplied id.
func (s *Service) IngestWithID(ctx context.Context, id uuid.UUID, path string) error {
	now := time.Now().UTC()

	err := s.store.Create(ctx, store.Record{
		ID:        id,
		Path:      path,
		CreatedAt: now,
	})
	if err != nil {
		s.logger.LogIngest(ctx, id, err)
		return fmt.Errorf("create record: %w", err)
	}

	if err := s.queue.Enqueue(ctx, queue.Job{ImageID: id, EnqueuedAt: now}); err != nil {
		s.logger.LogIngest(ctx, id, err)
		return fmt.Errorf("enqueue extraction job: %w", err)
	}

	s.logger.LogIngest(ctx, id, nil)
	return nil
}

// Similar returns images ranked by ascending L2 distance of their k-vector
// from the reference image's k-vector.
//
// An unknown reference id yields ErrNotFound. A reference whose vector has
// not been extracted yet yields StatusProcessing with no neighbors, which
// is a well-formed response, never an error.
func (s *Service) Similar(ctx context.Context, id uuid.UUID, k feature.Kind, optFns ...QueryOption) (*SimilarResult, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidKind, int(k))
	}

	opts := queryOptions{limit: store.DefaultLimit}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.limit <= 0 {
		return nil, ErrInvalidLimit
	}

	rec, err := s.store.Get(ctx, id)
	if err != nil {
		s.logger.LogSimilar(ctx, id, k, "", 0, err)
		return nil, err
	}

	imageURL, err := s.locator.URL(rec)
	if err != nil {
		return nil, fmt.Errorf("resolve reference url: %w", err)
	}

	refVec := rec.Vector(k)
	if refVec == nil {
		s.logger.LogSimilar(ctx, id, k, StatusProcessing, 0, nil)
		return &SimilarResult{
			Status:   StatusProcessing,
			ImageURL: imageURL,
			Exact:    s.store.Exact(),
			Similar:  []SimilarImage{},
		}, nil
	}

	neighbors, err := s.store.Nearest(ctx, k, refVec, store.NearestOptions{
		Limit:       opts.limit,
		MaxDistance: opts.maxDistance,
		Exclude:     id,
	})
	if err != nil {
		s.logger.LogSimilar(ctx, id, k, "", 0, err)
		return nil, fmt.Errorf("nearest-neighbor query: %w", err)
	}

	similar := make([]SimilarImage, 0, len(neighbors))
	for _, n := range neighbors {
		nRec, err := s.store.Get(ctx, n.ID)
		if err != nil {
			return nil, fmt.Errorf("load neighbor %s: %w", n.ID, err)
		}
		nURL, err := s.locator.URL(nRec)
		if err != nil {
			return nil, fmt.Errorf("resolve neighbor url: %w", err)
		}

		similar = append(similar, SimilarImage{
			ID:       n.ID,
			URL:      nURL,
			Distance: n.Distance,
		})
	}

	s.logger.LogSimilar(ctx, id, k, StatusReady, len(similar), nil)
	return &SimilarResult{
		Status:   StatusReady,
		ImageURL: imageURL,
		Exact:    s.store.Exact(),
		Similar:  similar,
	}, nil
}
