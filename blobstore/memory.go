package blobstore

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/google/uuid"
)

// Compile time check to ensure Memory satisfies the Store interface.
var _ Store = (*Memory)(nil)

// Memory is an in-process Store backed by a map. It is intended for tests.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemory creates a new empty Memory store.
func NewMemory() *Memory {
	return &Memory{blobs: make(map[string][]byte)}
}

// Save stores the full content of r under the sharded name for id.
func (s *Memory) Save(ctx context.Context, id uuid.UUID, ext string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}

	name := ObjectName(id, ext)

	s.mu.Lock()
	s.blobs[name] = data
	s.mu.Unlock()

	return name, nil
}

// Open opens a previously saved blob for reading.
func (s *Memory) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	s.mu.RLock()
	data, ok := s.blobs[name]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete removes a blob.
func (s *Memory) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	delete(s.blobs, name)
	s.mu.Unlock()

	return nil
}

// Len returns the number of stored blobs.
func (s *Memory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.blobs)
}
