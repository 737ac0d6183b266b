package blobstore

import (
	"context"
	"io"
	"os"
	"path"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`. The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// Store is an abstraction for storing and retrieving uploaded image blobs.
//
// Names are slash-separated keys as produced by ObjectName. A Save for an
// existing name overwrites the previous content.
type Store interface {
	// Save writes the full content of r under the sharded name for id and
	// returns that name.
	Save(ctx context.Context, id uuid.UUID, ext string, r io.Reader) (string, error)

	// Open opens a previously saved blob for reading.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
}

// ObjectName returns the canonical sharded key for an image blob,
// e.g. "uploaded_images/d2/f1/d2f1...-....png". The two shard levels keep
// directory fan-out bounded on file system backends.
func ObjectName(id uuid.UUID, ext string) string {
	s := id.String()
	return path.Join("uploaded_images", s[0:2], s[2:4], s+ext)
}
