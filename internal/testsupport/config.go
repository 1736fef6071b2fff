package testsupport

import (
	"path/filepath"
	"testing"

	"neuroflow/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.SessionDir = filepath.Join(base, "sessions")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Batch.MinFreeSpaceMiB = 1

	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithEventBufferSize overrides the worker hub capacity on the test config.
func WithEventBufferSize(size int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Worker.EventBufferSize = size
	}
}
