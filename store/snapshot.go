package store

import (
	"context"
	"encoding/gob"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
)

// snapshotV1 is the on-disk snapshot payload. Records are stored in row
// order so candidacy bitmaps can be rebuilt deterministically on restore.
type snapshotV1 struct {
	Records []Record
}

// Snapshot writes the full store contents to w as an lz4-framed gob stream.
// It holds the read lock for the duration, so concurrent queries proceed
// and writers wait.
func (s *Memory) Snapshot(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := make([]Record, 0, len(s.rows))
	for _, id := range s.rows {
		recs = append(recs, s.recs[id])
	}

	zw := lz4.NewWriter(w)
	if err := gob.NewEncoder(zw).Encode(snapshotV1{Records: recs}); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	return zw.Close()
}

// Restore replaces the store contents with a snapshot previously written by
// Snapshot.
func (s *Memory) Restore(r io.Reader) error {
	var snap snapshotV1
	if err := gob.NewDecoder(lz4.NewReader(r)).Decode(&snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	fresh := NewMemory()
	for _, rec := range snap.Records {
		if err := fresh.Create(context.Background(), rec); err != nil {
			return fmt.Errorf("restore record %s: %w", rec.ID, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.rows = fresh.rows
	s.rowOf = fresh.rowOf
	s.recs = fresh.recs
	s.populated = fresh.populated

	return nil
}
