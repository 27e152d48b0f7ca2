package fetch_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"bookspool/internal/fetch"
	"bookspool/internal/logging"
	"bookspool/internal/services"
	"bookspool/internal/testsupport"
)

func newSourceServer(t *testing.T, files map[string][]byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", fmt.Sprint(len(body)))
			return
		}
		_, _ = w.Write(body)
	}))
}

func fastClient(t *testing.T, baseURL string) *fetch.Client {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Source.BaseURL = baseURL
	client := fetch.NewClient(cfg, logging.NewNop())
	return client.WithBackoff(services.Backoff{Initial: time.Millisecond, Max: time.Millisecond})
}

func TestDiscoverStopsAtFirstGap(t *testing.T) {
	server := newSourceServer(t, map[string][]byte{
		"/book/01.mp3": []byte("one"),
		"/book/02.mp3": []byte("two"),
		"/book/04.mp3": []byte("four"),
	})
	defer server.Close()

	client := fastClient(t, server.URL+"/book")
	urls, err := client.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if len(urls) != 2 {
		t.Fatalf("expected discovery to stop at the gap, got %d urls", len(urls))
	}
}

func TestDiscoverEmptySourceFails(t *testing.T) {
	server := newSourceServer(t, nil)
	defer server.Close()

	client := fastClient(t, server.URL+"/book")
	if _, err := client.Discover(context.Background()); !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected ErrInput for empty source, got %v", err)
	}
}

func TestDownloadAllWritesFilesAndEstimatesDuration(t *testing.T) {
	payload := make([]byte, 16000) // 16 KB at 128 kbps ~= 1 second
	server := newSourceServer(t, map[string][]byte{
		"/book/01.mp3": payload,
	})
	defer server.Close()

	client := fastClient(t, server.URL+"/book")
	downloads, err := client.DownloadAll(context.Background(),
		[]string{server.URL + "/book/01.mp3"}, t.TempDir())
	if err != nil {
		t.Fatalf("DownloadAll failed: %v", err)
	}
	if len(downloads) != 1 {
		t.Fatalf("expected one download, got %d", len(downloads))
	}
	dl := downloads[0]
	if dl.SizeBytes != int64(len(payload)) {
		t.Fatalf("unexpected size: %d", dl.SizeBytes)
	}
	if dl.DurationSeconds < 0.9 || dl.DurationSeconds > 1.1 {
		t.Fatalf("unexpected duration estimate: %v", dl.DurationSeconds)
	}
}

func TestDownloadRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("audio"))
	}))
	defer server.Close()

	client := fastClient(t, server.URL)
	downloads, err := client.DownloadAll(context.Background(), []string{server.URL + "/01.mp3"}, t.TempDir())
	if err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	if downloads[0].SizeBytes != 5 {
		t.Fatalf("unexpected size after retry: %d", downloads[0].SizeBytes)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestDownloadSurfacesNetworkErrorAfterRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := fastClient(t, server.URL)
	_, err := client.DownloadAll(context.Background(), []string{server.URL + "/01.mp3"}, t.TempDir())
	if !errors.Is(err, services.ErrNetwork) {
		t.Fatalf("expected ErrNetwork after exhausted retries, got %v", err)
	}
}

func TestBookTitleFromURL(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Source.BaseURL = "https://example.test/books/Well%20Of%20Ascension"
	client := fetch.NewClient(cfg, logging.NewNop())
	if got := client.BookTitle(); got != "Well Of Ascension" {
		t.Fatalf("unexpected book title: %q", got)
	}
}

func TestSourceFilesConversionPreservesOrder(t *testing.T) {
	downloads := []fetch.Download{
		{Index: 1, SizeBytes: 10, DurationSeconds: 1},
		{Index: 2, SizeBytes: 20, DurationSeconds: 2},
	}
	files := fetch.SourceFiles(downloads)
	if len(files) != 2 || files[0].Index != 1 || files[1].Index != 2 {
		t.Fatalf("unexpected conversion: %#v", files)
	}
}
