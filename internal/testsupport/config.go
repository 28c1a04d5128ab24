package testsupport

import (
	"path/filepath"
	"testing"

	"loom/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.WorkspaceDir = filepath.Join(base, "workspace")
	cfg.LogDir = filepath.Join(base, "logs")
	cfg.MaxConcurrency = 2

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.Normalize(); err != nil {
		t.Fatalf("normalize test config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate test config: %v", err)
	}
	return &cfg
}

// WithMaxConcurrency overrides the worker count on the test config.
func WithMaxConcurrency(workers int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.MaxConcurrency = workers
	}
}

// WithLockWaitTimeout overrides the lock-wait timeout on the test config.
func WithLockWaitTimeout(ms int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.LockWaitTimeoutMS = ms
	}
}
