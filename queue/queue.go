package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrClosed is returned by operations on a closed queue.
var ErrClosed = errors.New("queue is closed")

// Job is an extraction job. The payload is solely the image id: re-running a
// job recomputes and overwrites, so duplicate delivery is safe.
type Job struct {
	ImageID uuid.UUID `msgpack:"image_id"`

	// Attempt counts completed (failed) executions. A freshly enqueued job
	// has Attempt 0; after its first failed run it is redelivered with
	// Attempt 1, and so on.
	Attempt int `msgpack:"attempt"`

	EnqueuedAt time.Time `msgpack:"enqueued_at"`
}

// Delivery is one dequeued job. Exactly one of Ack or Nack must be called;
// a durable queue redelivers the job if neither arrives before the
// visibility deadline.
type Delivery struct {
	Job Job

	ack  func(ctx context.Context) error
	nack func(ctx context.Context, delay time.Duration) error
}

// NewDelivery builds a Delivery from its callbacks. It exists so Queue
// implementations outside this package (and decorators around existing
// ones) can hand out deliveries.
func NewDelivery(job Job, ack func(ctx context.Context) error, nack func(ctx context.Context, delay time.Duration) error) *Delivery {
	return &Delivery{Job: job, ack: ack, nack: nack}
}

// Ack acknowledges terminal handling (success or terminal failure); the job
// is discarded.
func (d *Delivery) Ack(ctx context.Context) error {
	return d.ack(ctx)
}

// Nack schedules redelivery after delay with the attempt counter advanced.
func (d *Delivery) Nack(ctx context.Context, delay time.Duration) error {
	return d.nack(ctx, delay)
}

// Queue is an at-least-once delivery queue for extraction jobs.
type Queue interface {
	// Enqueue adds a job, deliverable immediately.
	Enqueue(ctx context.Context, job Job) error

	// Dequeue blocks until a job is deliverable or ctx is done.
	Dequeue(ctx context.Context) (*Delivery, error)

	Close() error
}

// DeadLetter records a job that reached a terminal failure: attempt
// exhaustion or a non-retryable condition. Dead letters are the observable
// escalation path for failed extractions; dropping them silently is a
// defect.
type DeadLetter struct {
	Job      Job       `msgpack:"job"`
	Reason   string    `msgpack:"reason"`
	FailedAt time.Time `msgpack:"failed_at"`
}

// DeadLetterStore persists and lists dead letters.
type DeadLetterStore interface {
	Append(ctx context.Context, dl DeadLetter) error
	List(ctx context.Context) ([]DeadLetter, error)
}
