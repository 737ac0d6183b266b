package imagesim

import (
	"github.com/hupe1980/imagesim/queue"
)

type options struct {
	backoff queue.Backoff
	locator Locator
	logger  *Logger
}

// Option configures Service construction.
type Option func(*options)

// WithBackoff sets the retry/backoff configuration attached to enqueued
// extraction jobs. Defaults to queue.DefaultBackoff.
func WithBackoff(b queue.Backoff) Option {
	return func(o *options) {
		o.backoff = b
	}
}

// WithLocator sets the locator used to resolve public URLs in query
// responses. Defaults to PathLocator.
func WithLocator(l Locator) Option {
	return func(o *options) {
		if l != nil {
			o.locator = l
		}
	}
}

// WithLogger sets the service logger. Defaults to a discarding logger.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

type queryOptions struct {
	limit       int
	maxDistance *float64
}

// QueryOption configures a similarity query.
type QueryOption func(*queryOptions)

// WithLimit caps the number of returned neighbors. Defaults to
// store.DefaultLimit.
func WithLimit(limit int) QueryOption {
	return func(o *queryOptions) {
		o.limit = limit
	}
}

// WithMaxDistance discards neighbors farther than d. The boundary is
// inclusive: a neighbor at exactly d is kept.
func WithMaxDistance(d float64) QueryOption {
	return func(o *queryOptions) {
		o.maxDistance = &d
	}
}
