package queue

import (
	"math"
	"time"
)

// Backoff is a bounded exponential retry schedule. The delay before retry
// n (0-based) is Base * Factor^n; MaxAttempts caps the total number of
// executions, after which a job is terminally failed.
type Backoff struct {
	Base        time.Duration
	Factor      float64
	MaxAttempts int
}

// DefaultBackoff is the reference configuration: 5s base doubling over 10
// attempts, so the final inter-retry delay is 2560s.
var DefaultBackoff = Backoff{
	Base:        5 * time.Second,
	Factor:      2,
	MaxAttempts: 10,
}

// Delays returns the precomputed ordered delay sequence, one entry per
// possible retry.
func (b Backoff) Delays() []time.Duration {
	out := make([]time.Duration, b.MaxAttempts)
	for i := range out {
		out[i] = b.Delay(i)
	}
	return out
}

// Delay returns the delay before retrying after `attempt` completed
// failures. Attempts beyond the schedule reuse the last (largest) delay.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= b.MaxAttempts && b.MaxAttempts > 0 {
		attempt = b.MaxAttempts - 1
	}
	return time.Duration(float64(b.Base) * math.Pow(b.Factor, float64(attempt)))
}

// Exhausted reports whether a job that has completed `attempts` executions
// has used up its budget.
func (b Backoff) Exhausted(attempts int) bool {
	return attempts >= b.MaxAttempts
}
