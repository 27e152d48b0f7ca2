package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bookspool/internal/config"
	"bookspool/internal/notifications"
)

type recorded struct {
	title    string
	message  string
	tags     string
	priority string
}

func recordingServer(t *testing.T, sink *[]recorded) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		*sink = append(*sink, recorded{
			title:    r.Header.Get("Title"),
			message:  string(body),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestService(t *testing.T, topic string) notifications.Service {
	t.Helper()
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = topic
	cfg.Notifications.Fetch = true
	cfg.Notifications.Upload = true
	cfg.Notifications.Playback = true
	cfg.Notifications.Errors = true
	return notifications.NewService(&cfg, nil)
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg, nil)
	if err := svc.FetchComplete(context.Background(), "Example", 3); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNoticesCarryTitleTagsAndPriority(t *testing.T) {
	var got []recorded
	server := recordingServer(t, &got)
	svc := newTestService(t, server.URL)
	ctx := context.Background()

	if err := svc.FetchComplete(ctx, "The Martian", 12); err != nil {
		t.Fatalf("FetchComplete() error = %v", err)
	}
	if err := svc.UploadComplete(ctx, "The Martian", 7); err != nil {
		t.Fatalf("UploadComplete() error = %v", err)
	}
	svc.PlaybackSkip(ctx, "The Martian", 3)
	svc.PlaybackFailed(ctx, "The Martian", 6, errors.New("stream stalled"))
	if err := svc.Error(ctx, errors.New("disk full"), "upload"); err != nil {
		t.Fatalf("Error() error = %v", err)
	}

	if len(got) != 5 {
		t.Fatalf("notices sent = %d, want 5", len(got))
	}
	if got[0].title != "Bookspool - Fetch Complete" || !strings.Contains(got[0].message, "12 segments") {
		t.Errorf("fetch notice = %+v", got[0])
	}
	if got[1].priority != "high" {
		t.Errorf("upload notice priority = %q, want high", got[1].priority)
	}
	if !strings.Contains(got[2].message, "skipping to next segment") {
		t.Errorf("skip notice = %+v", got[2])
	}
	if got[3].priority != "high" || !strings.Contains(got[3].message, "stream stalled") {
		t.Errorf("failure notice = %+v", got[3])
	}
	if !strings.Contains(got[4].message, "Error with upload: disk full") {
		t.Errorf("error notice = %+v", got[4])
	}
}

func TestDisabledCategoriesSendNothing(t *testing.T) {
	var got []recorded
	server := recordingServer(t, &got)

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Fetch = false
	cfg.Notifications.Playback = false
	svc := notifications.NewService(&cfg, nil)
	ctx := context.Background()

	if err := svc.FetchComplete(ctx, "Book", 1); err != nil {
		t.Fatalf("FetchComplete() error = %v", err)
	}
	svc.PlaybackSkip(ctx, "Book", 1)

	if len(got) != 0 {
		t.Fatalf("notices sent = %d, want 0", len(got))
	}
}

func TestServerErrorSurfaced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic quota exceeded", http.StatusTooManyRequests)
	}))
	t.Cleanup(server.Close)

	svc := newTestService(t, server.URL)
	err := svc.Error(context.Background(), errors.New("boom"), "pipeline")
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("error = %v, want ntfy status surfaced", err)
	}
}
