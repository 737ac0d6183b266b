package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hupe1980/imagesim/feature"
	"github.com/hupe1980/imagesim/queue"
	"github.com/hupe1980/imagesim/store"
)

// State is the lifecycle state of a job execution.
type State int

const (
	StatePending State = iota
	StateRunning
	StateSucceeded
	StateRetrying
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateRetrying:
		return "retrying"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// ErrAttemptsExhausted indicates a job that exceeded its retry budget.
//
// The last extraction error can be accessed via errors.Unwrap.
type ErrAttemptsExhausted struct {
	ImageID  uuid.UUID
	Attempts int
	cause    error
}

func (e *ErrAttemptsExhausted) Error() string {
	return fmt.Sprintf("extraction of %s failed after %d attempts", e.ImageID, e.Attempts)
}

func (e *ErrAttemptsExhausted) Unwrap() error { return e.cause }

// PixelSource hands the pipeline a decoded pixel grid for an image record.
// The scheduler itself never reads or writes files. Decode failures should
// be returned as *feature.ExtractionError so they take the retryable path
// (the cause may be transient upstream I/O).
type PixelSource interface {
	Load(ctx context.Context, rec store.Record) (*feature.Image, error)
}

// PixelSourceFunc adapts a function to the PixelSource interface.
type PixelSourceFunc func(ctx context.Context, rec store.Record) (*feature.Image, error)

func (f PixelSourceFunc) Load(ctx context.Context, rec store.Record) (*feature.Image, error) {
	return f(ctx, rec)
}

// Transition describes one observed job state change. The zero Err is only
// present for Retrying and Failed transitions.
type Transition struct {
	Job   queue.Job
	State State
	Err   error
}

// Hook observes job transitions, e.g. for metrics or operator alerts on
// terminal failures. It is called synchronously from worker goroutines and
// must be safe for concurrent use.
type Hook func(Transition)

// Options configures the worker pool.
type Options struct {
	// Workers is the number of concurrent workers. Defaults to 1.
	Workers int

	// Backoff is the retry schedule. Defaults to queue.DefaultBackoff.
	Backoff queue.Backoff

	// JobsPerSecond, when positive, rate-limits job starts across all
	// workers.
	JobsPerSecond float64

	// Hook, when non-nil, observes every state transition.
	Hook Hook

	// Logger receives structured per-transition logs. Defaults to a
	// discarding logger.
	Logger *slog.Logger
}

// Pool executes extraction jobs from a queue against a store.
type Pool struct {
	store   store.Store
	queue   queue.Queue
	pixels  PixelSource
	dead    queue.DeadLetterStore
	limiter *rate.Limiter
	opts    Options
}

// New creates a worker pool. The dead-letter store receives every terminal
// failure and must not be nil.
func New(s store.Store, q queue.Queue, pixels PixelSource, dead queue.DeadLetterStore, optFns ...func(*Options)) *Pool {
	opts := Options{
		Workers: 1,
		Backoff: queue.DefaultBackoff,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var limiter *rate.Limiter
	if opts.JobsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.JobsPerSecond), 1)
	}

	return &Pool{
		store:   s,
		queue:   q,
		pixels:  pixels,
		dead:    dead,
		limiter: limiter,
		opts:    opts,
	}
}

// Run blocks processing jobs until ctx is canceled. It returns nil on
// cancellation and the first unexpected queue error otherwise.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < p.opts.Workers; i++ {
		g.Go(func() error {
			return p.worker(ctx)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func (p *Pool) worker(ctx context.Context) error {
	for {
		delivery, err := p.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrClosed) {
				return nil
			}
			return err
		}

		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		p.process(ctx, delivery)
	}
}

// process drives one delivery through the state machine. Queue-level
// ack/nack failures are logged and left to redelivery; the handler is
// idempotent, so redelivery is safe.
func (p *Pool) process(ctx context.Context, delivery *queue.Delivery) {
	job := delivery.Job
	log := p.opts.Logger.With("image_id", job.ImageID, "attempt", job.Attempt+1)

	p.transition(Transition{Job: job, State: StateRunning})
	log.DebugContext(ctx, "job running")

	rec, err := p.store.Get(ctx, job.ImageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// A missing record is an ingestion bug, not a transient
			// condition: terminal, no retry.
			p.terminalFailure(ctx, delivery, err, log)
			return
		}
		p.retryOrFail(ctx, delivery, err, log)
		return
	}

	vectors, err := p.extract(ctx, rec)
	if err != nil {
		p.retryOrFail(ctx, delivery, err, log)
		return
	}

	if err := p.store.SetVectors(ctx, job.ImageID, vectors, time.Now().UTC()); err != nil {
		p.retryOrFail(ctx, delivery, err, log)
		return
	}

	if err := delivery.Ack(ctx); err != nil {
		log.WarnContext(ctx, "ack failed; job will be redelivered", "error", err)
	}

	p.transition(Transition{Job: job, State: StateSucceeded})
	log.InfoContext(ctx, "job succeeded")
}

func (p *Pool) extract(ctx context.Context, rec store.Record) (map[feature.Kind][]float32, error) {
	img, err := p.pixels.Load(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("load pixels: %w", err)
	}

	vectors, err := feature.ExtractAll(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("extract features: %w", err)
	}

	return vectors, nil
}

// retryOrFail schedules a retry on the backoff schedule, or escalates to a
// terminal failure when the attempt budget is spent.
func (p *Pool) retryOrFail(ctx context.Context, delivery *queue.Delivery, cause error, log *slog.Logger) {
	job := delivery.Job
	completed := job.Attempt + 1

	if p.opts.Backoff.Exhausted(completed) {
		p.terminalFailure(ctx, delivery, &ErrAttemptsExhausted{
			ImageID:  job.ImageID,
			Attempts: completed,
			cause:    cause,
		}, log)
		return
	}

	delay := p.opts.Backoff.Delay(job.Attempt)
	if err := delivery.Nack(ctx, delay); err != nil {
		log.ErrorContext(ctx, "nack failed; job will be redelivered", "error", err)
		return
	}

	p.transition(Transition{Job: job, State: StateRetrying, Err: cause})
	log.WarnContext(ctx, "job retrying", "delay", delay, "error", cause)
}

// terminalFailure records a dead letter and discards the job. Terminal
// failures must stay observable, so a dead-letter write error keeps the job
// un-acked for redelivery rather than dropping it.
func (p *Pool) terminalFailure(ctx context.Context, delivery *queue.Delivery, cause error, log *slog.Logger) {
	job := delivery.Job

	dl := queue.DeadLetter{
		Job:      job,
		Reason:   cause.Error(),
		FailedAt: time.Now().UTC(),
	}
	if err := p.dead.Append(ctx, dl); err != nil {
		log.ErrorContext(ctx, "dead-letter write failed; job stays queued", "error", err)
		return
	}

	if err := delivery.Ack(ctx); err != nil {
		log.WarnContext(ctx, "ack failed after dead-letter write", "error", err)
	}

	p.transition(Transition{Job: job, State: StateFailed, Err: cause})
	log.ErrorContext(ctx, "job failed terminally", "error", cause)
}

func (p *Pool) transition(t Transition) {
	if p.opts.Hook != nil {
		p.opts.Hook(t)
	}
}
