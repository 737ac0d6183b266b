// Package scheduler runs the asynchronous extraction pipeline: a pool of
// workers pulls jobs from a shared queue, loads the image's pixels, runs
// every feature extractor and commits all vectors plus the completion
// timestamp as one atomic store update.
//
// Per job the state machine is
//
//	Pending -> Running -> {Succeeded, Retrying, Failed}
//
// A missing image record fails the job immediately (a caller bug, not a
// transient condition). Extraction and I/O failures retry on the configured
// bounded exponential backoff schedule; exhausting the attempt budget is a
// terminal failure that is recorded as a dead letter, never dropped
// silently. Because extraction is deterministic and the final write is a
// full overwrite, duplicate delivery of a job cannot corrupt state.
package scheduler
