package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/imagesim/feature"
	"github.com/hupe1980/imagesim/store"
)

func openTestStore(t *testing.T) *SQLite {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "images.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func fullVectors(pos float32) map[feature.Kind][]float32 {
	out := make(map[feature.Kind][]float32, len(feature.Kinds()))
	for _, k := range feature.Kinds() {
		v := make([]float32, k.Length())
		v[0] = pos
		out[k] = v
	}
	return out
}

func addProcessed(t *testing.T, s store.Store, pos float32) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	id := uuid.New()
	require.NoError(t, s.Create(ctx, store.Record{ID: id, Path: "p/" + id.String(), CreatedAt: time.Now()}))
	require.NoError(t, s.SetVectors(ctx, id, fullVectors(pos), time.Now()))

	return id
}

func TestSQLiteCreateGet(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	t.Run("RoundTrip", func(t *testing.T) {
		id := uuid.New()
		created := time.Now().UTC().Truncate(time.Microsecond)
		require.NoError(t, s.Create(ctx, store.Record{ID: id, Path: "x/y", CreatedAt: created}))

		rec, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "x/y", rec.Path)
		assert.Equal(t, created, rec.CreatedAt)
		assert.False(t, rec.Processed())
		assert.Nil(t, rec.Vector(feature.KindShape))
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := s.Get(ctx, uuid.New())
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("DuplicateID", func(t *testing.T) {
		id := uuid.New()
		require.NoError(t, s.Create(ctx, store.Record{ID: id}))
		assert.ErrorIs(t, s.Create(ctx, store.Record{ID: id}), store.ErrDuplicateID)
	})
}

func TestSQLiteSetVectors(t *testing.T) {
	ctx := context.Background()

	t.Run("AtomicUpsert", func(t *testing.T) {
		s := openTestStore(t)
		id := uuid.New()
		require.NoError(t, s.Create(ctx, store.Record{ID: id, CreatedAt: time.Now()}))

		done := time.Now().UTC().Truncate(time.Microsecond)
		require.NoError(t, s.SetVectors(ctx, id, fullVectors(3), done))

		rec, err := s.Get(ctx, id)
		require.NoError(t, err)
		require.True(t, rec.Processed())
		assert.Equal(t, done, *rec.ProcessedAt)
		for _, k := range feature.Kinds() {
			require.Len(t, rec.Vector(k), k.Length())
		}
		assert.Equal(t, float32(3), rec.Vector(feature.KindColor)[0])
	})

	t.Run("Overwrite", func(t *testing.T) {
		s := openTestStore(t)
		id := uuid.New()
		require.NoError(t, s.Create(ctx, store.Record{ID: id, CreatedAt: time.Now()}))

		require.NoError(t, s.SetVectors(ctx, id, fullVectors(1), time.Now()))
		require.NoError(t, s.SetVectors(ctx, id, fullVectors(9), time.Now()))

		rec, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, float32(9), rec.Vector(feature.KindColor)[0])
	})

	t.Run("UnknownID", func(t *testing.T) {
		s := openTestStore(t)
		err := s.SetVectors(ctx, uuid.New(), fullVectors(1), time.Now())
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("Incomplete", func(t *testing.T) {
		s := openTestStore(t)
		id := uuid.New()
		require.NoError(t, s.Create(ctx, store.Record{ID: id, CreatedAt: time.Now()}))

		vectors := fullVectors(1)
		delete(vectors, feature.KindShape)

		var incomplete *store.ErrIncompleteVectors
		assert.ErrorAs(t, s.SetVectors(ctx, id, vectors, time.Now()), &incomplete)
	})
}

func TestSQLiteNearest(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	ref := addProcessed(t, s, 0)
	near := addProcessed(t, s, 1)
	far := addProcessed(t, s, 4)

	pending := uuid.New()
	require.NoError(t, s.Create(ctx, store.Record{ID: pending, CreatedAt: time.Now()}))

	query := make([]float32, feature.KindColor.Length())

	t.Run("RankingMatchesMemoryStore", func(t *testing.T) {
		got, err := s.Nearest(ctx, feature.KindColor, query, store.NearestOptions{Exclude: ref})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, near, got[0].ID)
		assert.Equal(t, far, got[1].ID)
		assert.InDelta(t, 1.0, got[0].Distance, 1e-6)
		assert.InDelta(t, 4.0, got[1].Distance, 1e-6)
	})

	t.Run("ExcludesUnprocessed", func(t *testing.T) {
		got, err := s.Nearest(ctx, feature.KindColor, query, store.NearestOptions{})
		require.NoError(t, err)
		for _, n := range got {
			assert.NotEqual(t, pending, n.ID)
		}
	})

	t.Run("MaxDistanceInclusive", func(t *testing.T) {
		cutoff := 1.0
		got, err := s.Nearest(ctx, feature.KindColor, query, store.NearestOptions{Exclude: ref, MaxDistance: &cutoff})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, near, got[0].ID)
	})

	t.Run("Limit", func(t *testing.T) {
		got, err := s.Nearest(ctx, feature.KindColor, query, store.NearestOptions{Exclude: ref, Limit: 1})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, near, got[0].ID)
	})

	t.Run("DimensionMismatch", func(t *testing.T) {
		var dim *store.ErrDimensionMismatch
		_, err := s.Nearest(ctx, feature.KindColor, []float32{1}, store.NearestOptions{})
		assert.ErrorAs(t, err, &dim)
	})

	t.Run("Exact", func(t *testing.T) {
		assert.True(t, s.Exact())
	})
}

func TestEncoding(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		in := []float32{0, 1.5, -2.25, 3e-7}
		out, err := decodeVector(encodeVector(in))
		require.NoError(t, err)
		assert.Equal(t, in, out)
	})

	t.Run("Empty", func(t *testing.T) {
		assert.Nil(t, encodeVector(nil))
		out, err := decodeVector(nil)
		require.NoError(t, err)
		assert.Nil(t, out)
	})

	t.Run("Truncated", func(t *testing.T) {
		_, err := decodeVector([]byte{1, 2, 3})
		assert.Error(t, err)
	})
}
