package queue

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// Compile-time checks.
var (
	_ Queue           = (*Memory)(nil)
	_ DeadLetterStore = (*MemoryDeadLetters)(nil)
)

// Memory is a process-local Queue. Delayed jobs are held in a ready-time
// ordered heap; Dequeue blocks until the earliest job is due. It provides
// at-least-once semantics within the process (Nack redelivers) but no crash
// durability; use Badger for that.
type Memory struct {
	mu      sync.Mutex
	pending pendingHeap
	notify  chan struct{}
	closed  bool
}

// NewMemory creates an empty in-memory queue.
func NewMemory() *Memory {
	return &Memory{notify: make(chan struct{})}
}

func (q *Memory) Enqueue(_ context.Context, job Job) error {
	return q.enqueueAt(job, time.Now())
}

func (q *Memory) enqueueAt(job Job, readyAt time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}

	heap.Push(&q.pending, pendingJob{job: job, readyAt: readyAt})

	// Wake all waiting consumers; they recompute their own deadline.
	close(q.notify)
	q.notify = make(chan struct{})

	return nil
}

func (q *Memory) Dequeue(ctx context.Context) (*Delivery, error) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, ErrClosed
		}

		now := time.Now()
		if len(q.pending) > 0 && !q.pending[0].readyAt.After(now) {
			item := heap.Pop(&q.pending).(pendingJob)
			q.mu.Unlock()

			return &Delivery{
				Job: item.job,
				ack: func(context.Context) error { return nil },
				nack: func(_ context.Context, delay time.Duration) error {
					job := item.job
					job.Attempt++
					return q.enqueueAt(job, time.Now().Add(delay))
				},
			}, nil
		}

		wait := time.Hour
		if len(q.pending) > 0 {
			wait = q.pending[0].readyAt.Sub(now)
		}
		notify := q.notify
		q.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-notify:
			timer.Stop()
		case <-timer.C:
		}
	}
}

func (q *Memory) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.notify)
	}

	return nil
}

// Len returns the number of pending (including delayed) jobs.
func (q *Memory) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.pending)
}

type pendingJob struct {
	job     Job
	readyAt time.Time
}

type pendingHeap []pendingJob

func (h pendingHeap) Len() int           { return len(h) }
func (h pendingHeap) Less(i, j int) bool { return h[i].readyAt.Before(h[j].readyAt) }
func (h pendingHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *pendingHeap) Push(x any)        { *h = append(*h, x.(pendingJob)) }

func (h *pendingHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// MemoryDeadLetters is an in-memory DeadLetterStore.
type MemoryDeadLetters struct {
	mu      sync.Mutex
	letters []DeadLetter
}

// NewMemoryDeadLetters creates an empty in-memory dead-letter store.
func NewMemoryDeadLetters() *MemoryDeadLetters {
	return &MemoryDeadLetters{}
}

func (s *MemoryDeadLetters) Append(_ context.Context, dl DeadLetter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.letters = append(s.letters, dl)
	return nil
}

func (s *MemoryDeadLetters) List(_ context.Context) ([]DeadLetter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]DeadLetter, len(s.letters))
	copy(out, s.letters)
	return out, nil
}
