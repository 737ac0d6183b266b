// Package blobstore stores uploaded image files.
//
// Image bytes live outside the metadata store. An ingested image is written
// once under a sharded object name derived from its id, and the name is
// recorded on the image row. Pipeline workers and similarity responses refer
// back to the blob by that name.
//
// Three implementations are provided:
//
//   - Local: files on the local file system, written atomically.
//   - Memory: an in-process map, for tests.
//   - minio.Store: S3-compatible object storage (subpackage minio).
package blobstore
