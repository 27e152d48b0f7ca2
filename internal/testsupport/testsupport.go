// Package testsupport provides shared helpers for package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"bookspool/internal/catalog"
	"bookspool/internal/config"
	"bookspool/internal/position"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithDrive points the test config at a drive endpoint.
func WithDrive(baseURL, token string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Drive.BaseURL = baseURL
		cfg.Drive.Token = token
	}
}

// MustOpenCatalog opens a catalog store in a per-test temp directory and
// closes it when the test finishes.
func MustOpenCatalog(t testing.TB) *catalog.Store {
	t.Helper()
	store, err := catalog.OpenPath(filepath.Join(t.TempDir(), "library.db"))
	if err != nil {
		t.Fatalf("open catalog store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// MustOpenPositions opens a position store in a per-test temp directory and
// closes it when the test finishes.
func MustOpenPositions(t testing.TB) *position.Store {
	t.Helper()
	store, err := position.OpenPath(filepath.Join(t.TempDir(), "playback.db"))
	if err != nil {
		t.Fatalf("open position store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}
