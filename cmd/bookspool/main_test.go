package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"bookspool/internal/catalog"
	"bookspool/internal/config"
	"bookspool/internal/testsupport"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeTestConfig(t *testing.T) string {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCLI(t, "config", "init", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("expected output to mention %s, got %q", target, out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	if _, err := runCLI(t, "config", "init", target); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := runCLI(t, "config", "init", target); err == nil {
		t.Fatal("expected second init without --force to fail")
	}
	if _, err := runCLI(t, "config", "init", "--force", target); err != nil {
		t.Fatalf("config init --force: %v", err)
	}
}

func TestConfigShowPrintsResolvedConfig(t *testing.T) {
	path := writeTestConfig(t)

	out, err := runCLI(t, "--config", path, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, path) {
		t.Fatalf("expected output to mention %s, got %q", path, out)
	}
	if !strings.Contains(out, "[planner]") {
		t.Fatalf("expected TOML sections in output, got %q", out)
	}
}

func TestLibraryRemoveDeletesCatalogEntry(t *testing.T) {
	path := writeTestConfig(t)
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	book := &catalog.Book{
		ID:          "the_martian",
		DisplayName: "The Martian",
		Segments: []catalog.Segment{
			{FileID: "f1", DisplayName: "The Martian 01", Index: 0, SizeBytes: 10, DurationSeconds: 60},
		},
	}
	if err := store.SaveBook(context.Background(), book); err != nil {
		t.Fatalf("seed book: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close catalog: %v", err)
	}

	out, err := runCLI(t, "--config", path, "library", "remove", "the_martian")
	if err != nil {
		t.Fatalf("library remove: %v", err)
	}
	if !strings.Contains(out, "removed the_martian") {
		t.Fatalf("unexpected output %q", out)
	}

	store, err = catalog.Open(cfg)
	if err != nil {
		t.Fatalf("reopen catalog: %v", err)
	}
	defer store.Close()
	if _, err := store.GetBook(context.Background(), "the_martian"); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected book gone, got %v", err)
	}
}

func TestLibraryRemoveUnknownBookFails(t *testing.T) {
	path := writeTestConfig(t)

	if _, err := runCLI(t, "--config", path, "library", "remove", "nope"); err == nil {
		t.Fatal("expected remove of unknown book to fail")
	}
}

func TestUnknownCommandFails(t *testing.T) {
	if _, err := runCLI(t, "no-such-command"); err == nil {
		t.Fatal("expected unknown command to fail")
	}
}
