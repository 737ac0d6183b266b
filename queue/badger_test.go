package queue

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBadger(t *testing.T, optFns ...func(*BadgerOptions)) *Badger {
	t.Helper()

	fns := append([]func(*BadgerOptions){func(o *BadgerOptions) {
		o.InMemory = true
		o.PollInterval = 20 * time.Millisecond
	}}, optFns...)

	q, err := NewBadger(fns...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })

	return q
}

func TestBadgerQueue(t *testing.T) {
	ctx := context.Background()

	t.Run("EnqueueDequeueAck", func(t *testing.T) {
		q := newTestBadger(t)

		id := uuid.New()
		require.NoError(t, q.Enqueue(ctx, Job{ImageID: id}))

		d, err := q.Dequeue(ctx)
		require.NoError(t, err)
		assert.Equal(t, id, d.Job.ImageID)
		require.NoError(t, d.Ack(ctx))

		// Acked jobs are gone for good.
		shortCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()
		_, err = q.Dequeue(shortCtx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("NackSchedulesRetry", func(t *testing.T) {
		q := newTestBadger(t)

		id := uuid.New()
		require.NoError(t, q.Enqueue(ctx, Job{ImageID: id}))

		d, err := q.Dequeue(ctx)
		require.NoError(t, err)
		require.NoError(t, d.Nack(ctx, 50*time.Millisecond))

		start := time.Now()
		redelivered, err := q.Dequeue(ctx)
		require.NoError(t, err)
		assert.Equal(t, id, redelivered.Job.ImageID)
		assert.Equal(t, 1, redelivered.Job.Attempt)
		assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
		require.NoError(t, redelivered.Ack(ctx))
	})

	t.Run("VisibilityDeadlineRedelivers", func(t *testing.T) {
		// A worker that dequeues and crashes without acking: the job must
		// reappear after the visibility deadline. This is what makes
		// delivery at-least-once.
		q := newTestBadger(t, func(o *BadgerOptions) {
			o.Visibility = 60 * time.Millisecond
		})

		id := uuid.New()
		require.NoError(t, q.Enqueue(ctx, Job{ImageID: id}))

		_, err := q.Dequeue(ctx)
		require.NoError(t, err) // never acked

		redelivered, err := q.Dequeue(ctx)
		require.NoError(t, err)
		assert.Equal(t, id, redelivered.Job.ImageID)
		require.NoError(t, redelivered.Ack(ctx))
	})

	t.Run("FIFOForReadyJobs", func(t *testing.T) {
		q := newTestBadger(t)

		first, second := uuid.New(), uuid.New()
		require.NoError(t, q.Enqueue(ctx, Job{ImageID: first}))
		time.Sleep(time.Millisecond)
		require.NoError(t, q.Enqueue(ctx, Job{ImageID: second}))

		d1, err := q.Dequeue(ctx)
		require.NoError(t, err)
		d2, err := q.Dequeue(ctx)
		require.NoError(t, err)

		assert.Equal(t, first, d1.Job.ImageID)
		assert.Equal(t, second, d2.Job.ImageID)
	})

	t.Run("Closed", func(t *testing.T) {
		q, err := NewBadger(func(o *BadgerOptions) { o.InMemory = true })
		require.NoError(t, err)
		require.NoError(t, q.Close())

		assert.ErrorIs(t, q.Enqueue(ctx, Job{ImageID: uuid.New()}), ErrClosed)
	})

	t.Run("DirRequired", func(t *testing.T) {
		_, err := NewBadger()
		assert.Error(t, err)
	})
}

func TestBadgerDeadLetters(t *testing.T) {
	ctx := context.Background()
	q := newTestBadger(t)
	s := q.DeadLetters()

	older := DeadLetter{
		Job:      Job{ImageID: uuid.New(), Attempt: 10},
		Reason:   "attempts exhausted",
		FailedAt: time.Now().Add(-time.Hour),
	}
	newer := DeadLetter{
		Job:      Job{ImageID: uuid.New()},
		Reason:   "record not found",
		FailedAt: time.Now(),
	}
	require.NoError(t, s.Append(ctx, newer))
	require.NoError(t, s.Append(ctx, older))

	got, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Listed in failure-time order.
	assert.Equal(t, older.Job.ImageID, got[0].Job.ImageID)
	assert.Equal(t, newer.Job.ImageID, got[1].Job.ImageID)
	assert.Equal(t, "attempts exhausted", got[0].Reason)
}
