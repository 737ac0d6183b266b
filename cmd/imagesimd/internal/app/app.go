// Package app wires the configured backends into a runnable daemon.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/imagesim"
	"github.com/hupe1980/imagesim/blobstore"
	miniostore "github.com/hupe1980/imagesim/blobstore/minio"
	"github.com/hupe1980/imagesim/config"
	"github.com/hupe1980/imagesim/queue"
	"github.com/hupe1980/imagesim/scheduler"
	"github.com/hupe1980/imagesim/store"
	"github.com/hupe1980/imagesim/store/sqlitestore"
)

// App bundles the backends selected by the configuration.
type App struct {
	Config      *config.Config
	Store       store.Store
	Queue       queue.Queue
	DeadLetters queue.DeadLetterStore
	Blobs       blobstore.Store
	Service     *imagesim.Service
	Logger      *slog.Logger

	memory *store.Memory
}

// Open builds an App from the configuration. Close releases everything it
// opened.
func Open(cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	a.Logger = newSlog(cfg.Log)

	if err := a.openStore(); err != nil {
		return nil, err
	}

	if err := a.openQueue(); err != nil {
		_ = a.Store.Close()
		return nil, err
	}

	if err := a.openBlobs(); err != nil {
		_ = a.Queue.Close()
		_ = a.Store.Close()
		return nil, err
	}

	locator, err := a.locator()
	if err != nil {
		_ = a.Queue.Close()
		_ = a.Store.Close()
		return nil, err
	}

	a.Service = imagesim.New(a.Store, a.Queue,
		imagesim.WithBackoff(cfg.Backoff()),
		imagesim.WithLocator(locator),
		imagesim.WithLogger(imagesim.NewLogger(a.Logger.Handler())),
	)

	return a, nil
}

// RunPipeline runs the extraction workers until ctx is canceled.
func (a *App) RunPipeline(ctx context.Context) error {
	pool := scheduler.New(a.Store, a.Queue, NewBlobPixelSource(a.Blobs), a.DeadLetters, func(o *scheduler.Options) {
		o.Workers = a.Config.Pipeline.Workers
		o.Backoff = a.Config.Backoff()
		o.JobsPerSecond = a.Config.Pipeline.JobsPerSecond
		o.Logger = a.Logger
	})

	return pool.Run(ctx)
}

// Close persists the memory snapshot if configured and releases the backends.
func (a *App) Close() error {
	var errs []error

	if a.memory != nil && a.Config.Store.SnapshotPath != "" {
		if err := a.writeSnapshot(); err != nil {
			errs = append(errs, fmt.Errorf("write snapshot: %w", err))
		}
	}

	if err := a.Queue.Close(); err != nil {
		errs = append(errs, err)
	}

	if err := a.Store.Close(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (a *App) openStore() error {
	switch a.Config.Store.Backend {
	case config.BackendSQLite:
		s, err := sqlitestore.Open(a.Config.Store.Path)
		if err != nil {
			return fmt.Errorf("open sqlite store: %w", err)
		}
		a.Store = s
	default:
		m := store.NewMemory()
		if path := a.Config.Store.SnapshotPath; path != "" {
			f, err := os.Open(path)
			if err == nil {
				defer f.Close()
				if err := m.Restore(f); err != nil {
					return fmt.Errorf("restore snapshot %s: %w", path, err)
				}
			} else if !os.IsNotExist(err) {
				return fmt.Errorf("open snapshot %s: %w", path, err)
			}
		}
		a.memory = m
		a.Store = m
	}

	return nil
}

func (a *App) openQueue() error {
	switch a.Config.Queue.Backend {
	case config.BackendBadger:
		q, err := queue.NewBadger(func(o *queue.BadgerOptions) {
			o.Dir = a.Config.Queue.Dir
			if a.Config.Queue.Visibility > 0 {
				o.Visibility = a.Config.Queue.Visibility
			}
		})
		if err != nil {
			return fmt.Errorf("open badger queue: %w", err)
		}
		a.Queue = q
		a.DeadLetters = q.DeadLetters()
	default:
		a.Queue = queue.NewMemory()
		a.DeadLetters = queue.NewMemoryDeadLetters()
	}

	return nil
}

func (a *App) openBlobs() error {
	if a.Config.Blobs.Endpoint == "" {
		a.Blobs = blobstore.NewLocal(a.Config.Blobs.Root)
		return nil
	}

	client, err := minio.New(a.Config.Blobs.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(a.Config.Blobs.AccessKey, a.Config.Blobs.SecretKey, ""),
		Secure: a.Config.Blobs.UseSSL,
	})
	if err != nil {
		return fmt.Errorf("connect object storage: %w", err)
	}

	a.Blobs = miniostore.NewStore(client, a.Config.Blobs.Bucket, "")

	return nil
}

func (a *App) locator() (imagesim.Locator, error) {
	if base := a.Config.Pipeline.PublicBaseURL; base != "" {
		return imagesim.BaseURLLocator(base)
	}
	return imagesim.PathLocator(), nil
}

func (a *App) writeSnapshot() error {
	path := a.Config.Store.SnapshotPath

	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return err
	}

	if err := a.memory.Snapshot(tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}

	return os.Rename(tmp.Name(), path)
}

func newSlog(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
