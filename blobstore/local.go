package blobstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Compile time check to ensure Local satisfies the Store interface.
var _ Store = (*Local)(nil)

// Local implements Store using the local file system.
type Local struct {
	root string
}

// NewLocal creates a new Local store rooted at the given directory.
func NewLocal(root string) *Local {
	return &Local{root: root}
}

// Save writes the blob atomically via a temp file and rename.
func (s *Local) Save(ctx context.Context, id uuid.UUID, ext string, r io.Reader) (string, error) {
	name := ObjectName(id, ext)
	dst := filepath.Join(s.root, filepath.FromSlash(name))

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create shard dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+id.String()+".*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write blob: %w", err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), dst); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("rename blob: %w", err)
	}

	return name, nil
}

// Open opens a previously saved blob for reading.
func (s *Local) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.root, filepath.FromSlash(name)))
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Delete removes a blob. Deleting a missing blob is not an error.
func (s *Local) Delete(ctx context.Context, name string) error {
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(name)))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
