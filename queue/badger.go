package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// Compile-time checks.
var (
	_ Queue           = (*Badger)(nil)
	_ DeadLetterStore = (*BadgerDeadLetters)(nil)
)

// Keyspaces. Pending and in-flight keys embed a nanosecond timestamp so a
// prefix iteration visits jobs in ready/deadline order.
const (
	prefixPending  = "p/"
	prefixInflight = "i/"
	prefixDead     = "d/"
)

// BadgerOptions configures the durable queue.
type BadgerOptions struct {
	// Dir is the BadgerDB data directory. Ignored when InMemory is set.
	Dir string

	// InMemory runs BadgerDB without disk persistence. Useful for tests
	// with a real badger engine.
	InMemory bool

	// Visibility is how long a dequeued job stays invisible before it is
	// considered abandoned and swept back to pending.
	Visibility time.Duration

	// PollInterval bounds how long Dequeue sleeps between scans when no
	// local Enqueue wakes it (another process may have added work).
	PollInterval time.Duration
}

// Badger is a durable at-least-once Queue on BadgerDB. Jobs move between
// three keyspaces: pending (ready-time ordered), in-flight (deadline
// ordered) and dead letters. A job dequeued by a worker that crashes before
// Ack reappears in pending once its visibility deadline passes.
type Badger struct {
	db   *badger.DB
	opts BadgerOptions

	mu     sync.Mutex
	notify chan struct{}
	closed bool
}

// NewBadger opens (and if necessary creates) a durable queue.
func NewBadger(optFns ...func(*BadgerOptions)) (*Badger, error) {
	opts := BadgerOptions{
		Visibility:   time.Minute,
		PollInterval: 250 * time.Millisecond,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("queue: BadgerOptions.Dir is required for on-disk mode")
	}

	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(nil)
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true).WithDir("").WithValueDir("")
	}

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	return &Badger{db: db, opts: opts, notify: make(chan struct{})}, nil
}

func (q *Badger) Enqueue(_ context.Context, job Job) error {
	if q.isClosed() {
		return ErrClosed
	}

	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now()
	}

	if err := q.putPending(job, time.Now()); err != nil {
		return err
	}

	q.wake()
	return nil
}

func (q *Badger) putPending(job Job, readyAt time.Time) error {
	val, err := msgpack.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}

	return q.update(func(txn *badger.Txn) error {
		return txn.Set(timeKey(prefixPending, readyAt, job.ImageID), val)
	})
}

func (q *Badger) Dequeue(ctx context.Context) (*Delivery, error) {
	for {
		if q.isClosed() {
			return nil, ErrClosed
		}

		if err := q.sweepExpired(); err != nil {
			return nil, err
		}

		delivery, nextReady, err := q.claim()
		if err != nil {
			return nil, err
		}
		if delivery != nil {
			return delivery, nil
		}

		wait := q.opts.PollInterval
		if !nextReady.IsZero() {
			if until := time.Until(nextReady); until < wait {
				wait = until
			}
		}
		if wait < 0 {
			continue
		}

		q.mu.Lock()
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

// claim atomically moves the earliest ready pending job to the in-flight
// keyspace. It returns the next future ready time when nothing is claimable.
func (q *Badger) claim() (*Delivery, time.Time, error) {
	var (
		claimed   *Job
		inflight  []byte
		nextReady time.Time
	)

	err := q.update(func(txn *badger.Txn) error {
		claimed, inflight, nextReady = nil, nil, time.Time{}

		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(prefixPending), PrefetchValues: true, PrefetchSize: 1})
		defer it.Close()

		now := time.Now()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			readyAt, err := keyTime(item.Key())
			if err != nil {
				return err
			}
			if readyAt.After(now) {
				nextReady = readyAt
				return nil
			}

			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			var job Job
			if err := msgpack.Unmarshal(val, &job); err != nil {
				return fmt.Errorf("decode job: %w", err)
			}

			if err := txn.Delete(item.KeyCopy(nil)); err != nil {
				return err
			}
			deadline := now.Add(q.opts.Visibility)
			inflightKey := timeKey(prefixInflight, deadline, job.ImageID)
			if err := txn.Set(inflightKey, val); err != nil {
				return err
			}

			claimed, inflight = &job, inflightKey
			return nil
		}

		return nil
	})
	if err != nil {
		return nil, time.Time{}, err
	}
	if claimed == nil {
		return nil, nextReady, nil
	}

	inflightKey := inflight
	job := *claimed

	return &Delivery{
		Job: job,
		ack: func(context.Context) error {
			return q.update(func(txn *badger.Txn) error {
				return txn.Delete(inflightKey)
			})
		},
		nack: func(_ context.Context, delay time.Duration) error {
			retried := job
			retried.Attempt++

			val, err := msgpack.Marshal(retried)
			if err != nil {
				return fmt.Errorf("encode job: %w", err)
			}

			err = q.update(func(txn *badger.Txn) error {
				if err := txn.Delete(inflightKey); err != nil {
					return err
				}
				return txn.Set(timeKey(prefixPending, time.Now().Add(delay), retried.ImageID), val)
			})
			if err != nil {
				return err
			}

			q.wake()
			return nil
		},
	}, time.Time{}, nil
}

// sweepExpired returns abandoned in-flight jobs to the pending keyspace.
func (q *Badger) sweepExpired() error {
	return q.update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(prefixInflight), PrefetchValues: true, PrefetchSize: 16})
		defer it.Close()

		now := time.Now()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			deadline, err := keyTime(item.Key())
			if err != nil {
				return err
			}
			if deadline.After(now) {
				// Keys are deadline-ordered; the rest are still live.
				return nil
			}

			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			var job Job
			if err := msgpack.Unmarshal(val, &job); err != nil {
				return fmt.Errorf("decode job: %w", err)
			}

			if err := txn.Delete(item.KeyCopy(nil)); err != nil {
				return err
			}
			if err := txn.Set(timeKey(prefixPending, now, job.ImageID), val); err != nil {
				return err
			}
		}

		return nil
	})
}

// update runs fn in a read-write transaction, retrying on commit conflicts
// between concurrent workers.
func (q *Badger) update(fn func(txn *badger.Txn) error) error {
	for {
		err := q.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
}

func (q *Badger) wake() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	close(q.notify)
	q.notify = make(chan struct{})
}

func (q *Badger) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.closed
}

func (q *Badger) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.notify)
	q.mu.Unlock()

	return q.db.Close()
}

// DeadLetters returns the dead-letter store sharing this queue's database.
func (q *Badger) DeadLetters() *BadgerDeadLetters {
	return &BadgerDeadLetters{q: q}
}

// BadgerDeadLetters persists dead letters in the queue database under their
// own keyspace, ordered by failure time.
type BadgerDeadLetters struct {
	q *Badger
}

func (s *BadgerDeadLetters) Append(_ context.Context, dl DeadLetter) error {
	val, err := msgpack.Marshal(dl)
	if err != nil {
		return fmt.Errorf("encode dead letter: %w", err)
	}

	return s.q.update(func(txn *badger.Txn) error {
		return txn.Set(timeKey(prefixDead, dl.FailedAt, dl.Job.ImageID), val)
	})
}

func (s *BadgerDeadLetters) List(_ context.Context) ([]DeadLetter, error) {
	var out []DeadLetter

	err := s.q.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(prefixDead), PrefetchValues: true, PrefetchSize: 64})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var dl DeadLetter
			if err := msgpack.Unmarshal(val, &dl); err != nil {
				return fmt.Errorf("decode dead letter: %w", err)
			}
			out = append(out, dl)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// timeKey builds "<prefix><nanos as 16-hex>/<id>". Hex-encoded nanoseconds
// sort lexicographically in time order.
func timeKey(prefix string, ts time.Time, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("%s%016x/%s", prefix, uint64(ts.UnixNano()), id))
}

// keyTime extracts the timestamp from a timeKey.
func keyTime(key []byte) (time.Time, error) {
	if len(key) < len(prefixPending)+16 {
		return time.Time{}, fmt.Errorf("malformed queue key %q", key)
	}
	nanos, err := strconv.ParseUint(string(key[len(prefixPending):len(prefixPending)+16]), 16, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed queue key %q: %w", key, err)
	}
	return time.Unix(0, int64(nanos)), nil
}
