// Package minio implements blobstore.Store on top of MinIO and other
// S3-compatible object storage.
//
// Blobs are keyed by blobstore.ObjectName under an optional root prefix, so
// a bucket can be shared with other data. Saves stream straight to the
// object endpoint without buffering the upload in memory.
package minio
