// Package imagesim provides image similarity retrieval: clients submit
// images, a background pipeline derives fixed-length feature vectors
// (color, shape, texture and intensity histograms) per image, and
// nearest-neighbor queries rank other images by Euclidean distance over a
// chosen vector field.
//
// # Quick Start
//
//	s := store.NewMemory()
//	q := queue.NewMemory()
//	svc := imagesim.New(s, q)
//
//	// Ingestion creates the record and enqueues the extraction job.
//	id, _ := svc.Ingest(ctx, "uploaded_images/ab/cd/abcd.jpg")
//
//	// A worker pool processes jobs in the background.
//	pool := scheduler.New(s, q, pixels, queue.NewMemoryDeadLetters())
//	go pool.Run(ctx)
//
//	// Queries may race ahead of extraction; that is a normal outcome.
//	res, _ := svc.Similar(ctx, id, feature.KindColor, imagesim.WithLimit(5))
//	switch res.Status {
//	case imagesim.StatusProcessing: // extraction not finished yet
//	case imagesim.StatusReady:      // res.Similar ranked by ascending distance
//	}
//
// # Consistency model
//
// Extraction is asynchronous and at-least-once: a query issued immediately
// after ingestion is expected to observe StatusProcessing. Once a record's
// completion timestamp is visible, all of its vectors are visible too,
// because the store writes an extraction pass atomically. Jobs that keep failing retry
// on a bounded exponential backoff schedule and finish as observable
// dead-letter records, never as silent drops.
package imagesim
