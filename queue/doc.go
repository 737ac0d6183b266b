// Package queue provides the extraction job queue: at-least-once delivery
// with delayed redelivery, a precomputed bounded exponential backoff
// schedule, and dead-letter records for jobs that exhaust their attempt
// budget.
//
// Two implementations are provided. Memory is a process-local queue for
// tests and single-process deployments. Badger is a durable queue on
// BadgerDB: dequeued jobs become invisible for a deadline and are swept back
// to pending when a worker dies without acknowledging, which is what makes
// delivery at-least-once across crashes. Handlers must therefore be
// idempotent.
package queue
