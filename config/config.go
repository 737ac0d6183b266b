package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/hupe1980/imagesim/queue"
)

// Backend names accepted by the store and queue sections.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// Config is the daemon configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store"`
	Queue    QueueConfig    `yaml:"queue"`
	Blobs    BlobConfig     `yaml:"blobs"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Log      LogConfig      `yaml:"log"`
}

// StoreConfig selects the metadata and vector store backend.
type StoreConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `yaml:"backend"`
	// Path is the SQLite database file. Ignored for the memory backend.
	Path string `yaml:"path"`
	// SnapshotPath, if set, is loaded at startup and written at shutdown by
	// the memory backend.
	SnapshotPath string `yaml:"snapshot_path"`
}

// QueueConfig selects the job queue backend.
type QueueConfig struct {
	// Backend is "memory" or "badger".
	Backend string `yaml:"backend"`
	// Dir is the Badger data directory. Ignored for the memory backend.
	Dir string `yaml:"dir"`
	// Visibility is how long a dequeued job stays invisible before it is
	// considered abandoned and redelivered. Badger backend only.
	Visibility time.Duration `yaml:"visibility"`
}

// BlobConfig selects where uploaded image bytes live.
type BlobConfig struct {
	// Root is the local directory for image blobs.
	Root string `yaml:"root"`
	// Endpoint, if set, switches to S3-compatible object storage.
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// PipelineConfig tunes the extraction workers.
type PipelineConfig struct {
	Workers       int           `yaml:"workers"`
	JobsPerSecond float64       `yaml:"jobs_per_second"`
	BackoffBase   time.Duration `yaml:"backoff_base"`
	BackoffFactor float64       `yaml:"backoff_factor"`
	MaxAttempts   int           `yaml:"max_attempts"`
	PublicBaseURL string        `yaml:"public_base_url"`
}

// LogConfig tunes daemon logging.
type LogConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `yaml:"level"`
	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given: everything
// in memory, four workers, the standard backoff schedule.
func Default() *Config {
	return &Config{
		Store: StoreConfig{Backend: BackendMemory},
		Queue: QueueConfig{Backend: BackendMemory, Visibility: time.Minute},
		Blobs: BlobConfig{Root: "uploaded_images_root"},
		Pipeline: PipelineConfig{
			Workers:       4,
			BackoffBase:   queue.DefaultBackoff.Base,
			BackoffFactor: queue.DefaultBackoff.Factor,
			MaxAttempts:   queue.DefaultBackoff.MaxAttempts,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads a YAML configuration file and fills unset fields with defaults.
// Load("") returns Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// Validate rejects values the daemon cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("store: sqlite backend requires a path")
		}
	default:
		return fmt.Errorf("store: unknown backend %q", c.Store.Backend)
	}

	switch c.Queue.Backend {
	case BackendMemory:
	case BackendBadger:
		if c.Queue.Dir == "" {
			return fmt.Errorf("queue: badger backend requires a dir")
		}
	default:
		return fmt.Errorf("queue: unknown backend %q", c.Queue.Backend)
	}

	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline: workers must be >= 1, got %d", c.Pipeline.Workers)
	}

	if c.Pipeline.MaxAttempts < 1 {
		return fmt.Errorf("pipeline: max_attempts must be >= 1, got %d", c.Pipeline.MaxAttempts)
	}

	if c.Pipeline.BackoffBase < 0 {
		return fmt.Errorf("pipeline: backoff_base must not be negative")
	}

	return nil
}

// Backoff returns the retry policy described by the pipeline section.
func (c *Config) Backoff() queue.Backoff {
	return queue.Backoff{
		Base:        c.Pipeline.BackoffBase,
		Factor:      c.Pipeline.BackoffFactor,
		MaxAttempts: c.Pipeline.MaxAttempts,
	}
}
