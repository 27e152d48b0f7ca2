package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"bookspool/internal/config"
)

func TestLoadDefaultConfigExpandsPathsAndAppliesDefaults(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantStaging := filepath.Join(tempHome, ".local", "share", "bookspool", "staging")
	if cfg.Paths.StagingDir != wantStaging {
		t.Fatalf("unexpected staging dir: got %q want %q", cfg.Paths.StagingDir, wantStaging)
	}
	if cfg.Planner.MaxSegmentMiB != 150 {
		t.Fatalf("unexpected max segment size: %d", cfg.Planner.MaxSegmentMiB)
	}
	if cfg.Planner.MinSegmentMinutes != 60 || cfg.Planner.MaxSegmentMinutes != 120 {
		t.Fatalf("unexpected segment duration bounds: %d-%d",
			cfg.Planner.MinSegmentMinutes, cfg.Planner.MaxSegmentMinutes)
	}
	if cfg.Playback.PersistIntervalSeconds != 5 {
		t.Fatalf("unexpected persist interval: %d", cfg.Playback.PersistIntervalSeconds)
	}
	if cfg.Drive.RootFolder != "audiobooks" {
		t.Fatalf("unexpected drive root folder: %q", cfg.Drive.RootFolder)
	}
}

func TestLoadReadsTOMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[planner]
max_segment_mib = 100
min_segment_minutes = 30
max_segment_minutes = 90

[drive]
base_url = "https://store.example/"
token = "tok"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be found")
	}
	if cfg.Planner.MaxSegmentMiB != 100 {
		t.Fatalf("unexpected max segment size: %d", cfg.Planner.MaxSegmentMiB)
	}
	if got := cfg.MaxSegmentBytes(); got != 100*1024*1024 {
		t.Fatalf("unexpected MaxSegmentBytes: %d", got)
	}
	if cfg.Drive.BaseURL != "https://store.example" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Drive.BaseURL)
	}
}

func TestLoadRejectsInvalidBounds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[planner]
min_segment_minutes = 90
max_segment_minutes = 60
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected validation error for inverted duration bounds")
	}
}

func TestDriveTokenFromEnv(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("BOOKSPOOL_DRIVE_TOKEN", "env-token")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Drive.Token != "env-token" {
		t.Fatalf("expected drive token from env, got %q", cfg.Drive.Token)
	}
}

func TestCreateSampleRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	if err := config.CreateSample(path); err == nil {
		t.Fatal("expected error when sample already exists")
	}
}
