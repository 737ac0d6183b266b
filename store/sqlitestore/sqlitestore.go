package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/hupe1980/imagesim/distance"
	"github.com/hupe1980/imagesim/feature"
	"github.com/hupe1980/imagesim/store"
)

// Compile-time check to ensure SQLite satisfies the store interface.
var _ store.Store = (*SQLite)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS images (
    id TEXT PRIMARY KEY,
    path TEXT NOT NULL DEFAULT '',
    color BLOB,
    shape BLOB,
    texture BLOB,
    intensity BLOB,
    created_at INTEGER NOT NULL,
    processed_at INTEGER
);
`

// vectorColumns maps each feature kind to its fixed column name. Selection
// is table-driven, never built from caller input.
var vectorColumns = map[feature.Kind]string{
	feature.KindColor:     "color",
	feature.KindShape:     "shape",
	feature.KindTexture:   "texture",
	feature.KindIntensity: "intensity",
}

// SQLite is a durable, exact store.Store backed by a SQLite database file.
type SQLite struct {
	db *sql.DB
}

// Open opens (and if necessary creates) the database at path. ":memory:" is
// accepted for tests. WAL journaling is enabled so queries proceed while an
// extraction pass commits.
func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// The modernc driver serializes access per connection; a single
	// connection avoids table-lock races between writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Create(ctx context.Context, rec store.Record) error {
	var processedAt any
	if rec.ProcessedAt != nil {
		processedAt = rec.ProcessedAt.UnixNano()
	}

	blobs := make(map[feature.Kind][]byte, len(rec.Vectors))
	for k, v := range rec.Vectors {
		blobs[k] = encodeVector(v)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO images (id, path, color, shape, texture, intensity, created_at, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.Path,
		blobs[feature.KindColor], blobs[feature.KindShape],
		blobs[feature.KindTexture], blobs[feature.KindIntensity],
		rec.CreatedAt.UnixNano(), processedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicateID
		}
		return fmt.Errorf("insert record: %w", err)
	}

	return nil
}

func (s *SQLite) Get(ctx context.Context, id uuid.UUID) (store.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT path, color, shape, texture, intensity, created_at, processed_at
		FROM images WHERE id = ?`, id.String())

	var (
		path        string
		blobs       [4][]byte
		createdAt   int64
		processedAt sql.NullInt64
	)
	if err := row.Scan(&path, &blobs[0], &blobs[1], &blobs[2], &blobs[3], &createdAt, &processedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Record{}, store.ErrNotFound
		}
		return store.Record{}, fmt.Errorf("select record: %w", err)
	}

	rec := store.Record{
		ID:        id,
		Path:      path,
		CreatedAt: time.Unix(0, createdAt).UTC(),
	}
	if processedAt.Valid {
		ts := time.Unix(0, processedAt.Int64).UTC()
		rec.ProcessedAt = &ts
	}

	for i, k := range feature.Kinds() {
		if blobs[i] == nil {
			continue
		}
		vec, err := decodeVector(blobs[i])
		if err != nil {
			return store.Record{}, fmt.Errorf("decode %s vector: %w", k, err)
		}
		if rec.Vectors == nil {
			rec.Vectors = make(map[feature.Kind][]float32, len(feature.Kinds()))
		}
		rec.Vectors[k] = vec
	}

	return rec, nil
}

// SetVectors writes every vector column plus processed_at in one
// transaction, overwriting previous values.
func (s *SQLite) SetVectors(ctx context.Context, id uuid.UUID, vectors map[feature.Kind][]float32, completedAt time.Time) error {
	if err := store.ValidateVectors(vectors); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE images SET color = ?, shape = ?, texture = ?, intensity = ?, processed_at = ?
		WHERE id = ?`,
		encodeVector(vectors[feature.KindColor]),
		encodeVector(vectors[feature.KindShape]),
		encodeVector(vectors[feature.KindTexture]),
		encodeVector(vectors[feature.KindIntensity]),
		completedAt.UnixNano(), id.String(),
	)
	if err != nil {
		return fmt.Errorf("update vectors: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}

	return nil
}

func (s *SQLite) Nearest(ctx context.Context, k feature.Kind, query []float32, opts store.NearestOptions) ([]store.Neighbor, error) {
	if len(query) != k.Length() {
		return nil, &store.ErrDimensionMismatch{Kind: k, Expected: k.Length(), Actual: len(query)}
	}

	col, ok := vectorColumns[k]
	if !ok {
		return nil, fmt.Errorf("unknown feature kind %d", int(k))
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = store.DefaultLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, `+col+` FROM images WHERE `+col+` IS NOT NULL AND id != ?`,
		opts.Exclude.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("scan candidates: %w", err)
	}
	defer rows.Close()

	top := store.NewTopK(limit)
	for rows.Next() {
		var (
			idStr string
			blob  []byte
		)
		if err := rows.Scan(&idStr, &blob); err != nil {
			return nil, fmt.Errorf("scan candidate row: %w", err)
		}

		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("parse candidate id %q: %w", idStr, err)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("decode candidate vector: %w", err)
		}
		if len(vec) != len(query) {
			return nil, &store.ErrDimensionMismatch{Kind: k, Expected: len(query), Actual: len(vec)}
		}

		d := distance.L2(query, vec)
		if opts.MaxDistance != nil && d > *opts.MaxDistance {
			continue
		}

		top.Add(store.Neighbor{ID: id, Distance: d})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}

	return top.Results(), nil
}

// Exact reports that SQLite performs exhaustive scans.
func (s *SQLite) Exact() bool { return true }

func (s *SQLite) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	// modernc.org/sqlite reports constraint violations in the error text;
	// the driver does not export a typed error for them.
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}
