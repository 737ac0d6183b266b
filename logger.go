package imagesim

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/hupe1980/imagesim/feature"
)

// Logger wraps slog.Logger with imagesim-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithImageID adds an image id field to the logger.
func (l *Logger) WithImageID(id uuid.UUID) *Logger {
	return &Logger{
		Logger: l.Logger.With("image_id", id),
	}
}

// WithKind adds a feature-kind field to the logger.
func (l *Logger) WithKind(k feature.Kind) *Logger {
	return &Logger{
		Logger: l.Logger.With("kind", k.String()),
	}
}

// LogIngest logs an ingestion operation.
func (l *Logger) LogIngest(ctx context.Context, id uuid.UUID, err error) {
	if err != nil {
		l.ErrorContext(ctx, "ingest failed",
			"image_id", id,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "ingest completed",
			"image_id", id,
		)
	}
}

// LogSimilar logs a similarity query.
func (l *Logger) LogSimilar(ctx context.Context, id uuid.UUID, k feature.Kind, status Status, results int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "similarity query failed",
			"image_id", id,
			"kind", k.String(),
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "similarity query completed",
			"image_id", id,
			"kind", k.String(),
			"status", string(status),
			"results", results,
		)
	}
}
