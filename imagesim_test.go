package imagesim_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/imagesim"
	"github.com/hupe1980/imagesim/feature"
	"github.com/hupe1980/imagesim/queue"
	"github.com/hupe1980/imagesim/scheduler"
	"github.com/hupe1980/imagesim/store"
)

func fullVectors(pos float32) map[feature.Kind][]float32 {
	out := make(map[feature.Kind][]float32, len(feature.Kinds()))
	for _, k := range feature.Kinds() {
		v := make([]float32, k.Length())
		v[0] = pos
		out[k] = v
	}
	return out
}

func seedProcessed(t *testing.T, s store.Store, path string, pos float32) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	id := uuid.New()
	require.NoError(t, s.Create(ctx, store.Record{ID: id, Path: path, CreatedAt: time.Now()}))
	require.NoError(t, s.SetVectors(ctx, id, fullVectors(pos), time.Now()))

	return id
}

func TestIngest(t *testing.T) {
	ctx := context.Background()

	t.Run("CreatesRecordAndEnqueuesJob", func(t *testing.T) {
		s := store.NewMemory()
		q := queue.NewMemory()
		defer q.Close()

		svc := imagesim.New(s, q)

		id, err := svc.Ingest(ctx, "uploaded_images/ab/cd/abcd.png")
		require.NoError(t, err)

		rec, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "uploaded_images/ab/cd/abcd.png", rec.Path)
		assert.False(t, rec.Processed())

		d, err := q.Dequeue(ctx)
		require.NoError(t, err)
		assert.Equal(t, id, d.Job.ImageID)
	})

	t.Run("DuplicateID", func(t *testing.T) {
		s := store.NewMemory()
		q := queue.NewMemory()
		defer q.Close()

		svc := imagesim.New(s, q)

		id := uuid.New()
		require.NoError(t, svc.IngestWithID(ctx, id, "a"))
		assert.ErrorIs(t, svc.IngestWithID(ctx, id, "a"), store.ErrDuplicateID)
	})
}

func TestSimilar(t *testing.T) {
	ctx := context.Background()

	s := store.NewMemory()
	q := queue.NewMemory()
	defer q.Close()

	svc := imagesim.New(s, q)

	ref := seedProcessed(t, s, "imgs/ref.png", 0)
	near := seedProcessed(t, s, "imgs/near.png", 1)
	far := seedProcessed(t, s, "imgs/far.png", 3)

	t.Run("Ready", func(t *testing.T) {
		res, err := svc.Similar(ctx, ref, feature.KindColor)
		require.NoError(t, err)

		assert.Equal(t, imagesim.StatusReady, res.Status)
		assert.Equal(t, "imgs/ref.png", res.ImageURL)
		assert.True(t, res.Exact)
		require.Len(t, res.Similar, 2)
		assert.Equal(t, near, res.Similar[0].ID)
		assert.Equal(t, "imgs/near.png", res.Similar[0].URL)
		assert.Equal(t, far, res.Similar[1].ID)
		assert.LessOrEqual(t, res.Similar[0].Distance, res.Similar[1].Distance)
	})

	t.Run("ProcessingRace", func(t *testing.T) {
		// Ingested but not yet extracted: a valid, non-error outcome.
		pending, err := svc.Ingest(ctx, "imgs/pending.png")
		require.NoError(t, err)

		res, err := svc.Similar(ctx, pending, feature.KindColor)
		require.NoError(t, err)

		assert.Equal(t, imagesim.StatusProcessing, res.Status)
		assert.Equal(t, "imgs/pending.png", res.ImageURL)
		assert.Empty(t, res.Similar)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := svc.Similar(ctx, uuid.New(), feature.KindColor)
		assert.ErrorIs(t, err, imagesim.ErrNotFound)
	})

	t.Run("MaxDistanceIsPrefixOfUnfiltered", func(t *testing.T) {
		unfiltered, err := svc.Similar(ctx, ref, feature.KindColor)
		require.NoError(t, err)

		cutoff := 1.0
		filtered, err := svc.Similar(ctx, ref, feature.KindColor, imagesim.WithMaxDistance(cutoff))
		require.NoError(t, err)

		var wantLen int
		for _, n := range unfiltered.Similar {
			if n.Distance <= cutoff {
				wantLen++
			}
		}
		require.Len(t, filtered.Similar, wantLen)
		for i := range filtered.Similar {
			assert.Equal(t, unfiltered.Similar[i].ID, filtered.Similar[i].ID)
		}

		// The boundary is inclusive: near sits at exactly distance 1.
		require.NotEmpty(t, filtered.Similar)
		assert.Equal(t, near, filtered.Similar[len(filtered.Similar)-1].ID)
	})

	t.Run("Limit", func(t *testing.T) {
		res, err := svc.Similar(ctx, ref, feature.KindColor, imagesim.WithLimit(1))
		require.NoError(t, err)
		require.Len(t, res.Similar, 1)
		assert.Equal(t, near, res.Similar[0].ID)
	})

	t.Run("InvalidLimit", func(t *testing.T) {
		_, err := svc.Similar(ctx, ref, feature.KindColor, imagesim.WithLimit(-1))
		assert.ErrorIs(t, err, imagesim.ErrInvalidLimit)
	})

	t.Run("InvalidKind", func(t *testing.T) {
		_, err := svc.Similar(ctx, ref, feature.Kind(42))
		assert.ErrorIs(t, err, imagesim.ErrInvalidKind)
	})
}

func TestBaseURLLocator(t *testing.T) {
	ctx := context.Background()

	s := store.NewMemory()
	q := queue.NewMemory()
	defer q.Close()

	locator, err := imagesim.BaseURLLocator("https://img.example.com/")
	require.NoError(t, err)

	svc := imagesim.New(s, q, imagesim.WithLocator(locator))

	ref := seedProcessed(t, s, "uploaded_images/ab/cd/abcd.png", 0)
	seedProcessed(t, s, "uploaded_images/ef/01/ef01.png", 1)

	res, err := svc.Similar(ctx, ref, feature.KindIntensity)
	require.NoError(t, err)

	assert.Equal(t, "https://img.example.com/uploaded_images/ab/cd/abcd.png", res.ImageURL)
	require.Len(t, res.Similar, 1)
	assert.Equal(t, "https://img.example.com/uploaded_images/ef/01/ef01.png", res.Similar[0].URL)
}

// TestClusterRetrieval runs the full pipeline over three clusters of
// near-duplicate images and checks that color similarity ranks same-cluster
// members first, and that a distance cutoff below the nearest cross-cluster
// distance strictly shrinks the result set.
func TestClusterRetrieval(t *testing.T) {
	ctx := context.Background()

	s := store.NewMemory()
	q := queue.NewMemory()
	defer q.Close()
	dead := queue.NewMemoryDeadLetters()

	var mu sync.Mutex
	images := make(map[uuid.UUID]*feature.Image)
	pixels := scheduler.PixelSourceFunc(func(_ context.Context, rec store.Record) (*feature.Image, error) {
		mu.Lock()
		defer mu.Unlock()
		return images[rec.ID], nil
	})

	succeeded := make(chan struct{}, 16)
	pool := scheduler.New(s, q, pixels, dead, func(o *scheduler.Options) {
		o.Workers = 2
		o.Hook = func(tr scheduler.Transition) {
			if tr.State == scheduler.StateSucceeded {
				succeeded <- struct{}{}
			}
		}
	})

	poolCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	poolDone := make(chan error, 1)
	go func() { poolDone <- pool.Run(poolCtx) }()

	svc := imagesim.New(s, q)

	// Near-duplicate shades stay inside one 32-value histogram bin, so
	// cluster members are close while cross-cluster distances are large.
	solid := func(b, g, r uint8) *feature.Image {
		pix := make([]uint8, 16*16*3)
		for i := 0; i < len(pix); i += 3 {
			pix[i], pix[i+1], pix[i+2] = b, g, r
		}
		return &feature.Image{W: 16, H: 16, Channels: 3, Pix: pix}
	}

	ingest := func(img *feature.Image) uuid.UUID {
		id := uuid.New()
		mu.Lock()
		images[id] = img
		mu.Unlock()
		require.NoError(t, svc.IngestWithID(ctx, id, "imgs/"+id.String()+".png"))
		return id
	}

	groupA := []uuid.UUID{ingest(solid(0, 0, 200)), ingest(solid(1, 2, 203)), ingest(solid(3, 1, 207))}
	groupB := []uuid.UUID{ingest(solid(0, 200, 0)), ingest(solid(2, 204, 1)), ingest(solid(1, 206, 3))}
	groupC := []uuid.UUID{ingest(solid(200, 0, 0)), ingest(solid(203, 2, 1)), ingest(solid(206, 1, 2))}

	for i := 0; i < 9; i++ {
		select {
		case <-succeeded:
		case <-time.After(10 * time.Second):
			t.Fatalf("extraction pipeline stalled after %d/9 images", i)
		}
	}

	inGroup := func(id uuid.UUID, group []uuid.UUID) bool {
		for _, g := range group {
			if g == id {
				return true
			}
		}
		return false
	}

	res, err := svc.Similar(ctx, groupC[0], feature.KindColor)
	require.NoError(t, err)
	require.Equal(t, imagesim.StatusReady, res.Status)
	require.GreaterOrEqual(t, len(res.Similar), 4)

	// Other C members rank ahead of every A/B member.
	assert.True(t, inGroup(res.Similar[0].ID, groupC))
	assert.True(t, inGroup(res.Similar[1].ID, groupC))
	for _, n := range res.Similar[2:] {
		assert.False(t, inGroup(n.ID, groupC))
	}

	// Cutoff below the nearest cross-cluster distance strictly reduces the
	// result count.
	crossDistance := res.Similar[2].Distance
	restricted, err := svc.Similar(ctx, groupC[0], feature.KindColor, imagesim.WithMaxDistance(crossDistance/2))
	require.NoError(t, err)
	assert.Less(t, len(restricted.Similar), len(res.Similar))
	assert.Len(t, restricted.Similar, 2)

	// Sanity: the same holds when querying from the other clusters.
	for _, probe := range []uuid.UUID{groupA[1], groupB[2]} {
		res, err := svc.Similar(ctx, probe, feature.KindColor, imagesim.WithLimit(2))
		require.NoError(t, err)
		require.Len(t, res.Similar, 2)
		for _, n := range res.Similar {
			if inGroup(probe, groupA) {
				assert.True(t, inGroup(n.ID, groupA))
			} else {
				assert.True(t, inGroup(n.ID, groupB))
			}
		}
	}

	cancel()
	require.NoError(t, <-poolDone)
}
