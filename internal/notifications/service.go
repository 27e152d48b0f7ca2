package notifications

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"bookspool/internal/config"
	"bookspool/internal/logging"
)

const userAgent = "Bookspool-Go/0.1.0"

// Service defines the notification surface exposed to the pipeline and the
// playback session.
type Service interface {
	FetchComplete(ctx context.Context, bookTitle string, segments int) error
	UploadComplete(ctx context.Context, bookTitle string, files int) error
	PlaybackSkip(ctx context.Context, bookTitle string, segmentIndex int)
	PlaybackFailed(ctx context.Context, bookTitle string, segmentIndex int, err error)
	Error(ctx context.Context, err error, contextLabel string) error
	Test(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config, logger *slog.Logger) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		logger:   logging.NewComponentLogger(logger, "notifications"),
		fetch:    cfg.Notifications.Fetch,
		upload:   cfg.Notifications.Upload,
		playback: cfg.Notifications.Playback,
		errors:   cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
	fetch    bool
	upload   bool
	playback bool
	errors   bool
}

func (n *ntfyService) FetchComplete(ctx context.Context, bookTitle string, segments int) error {
	if !n.fetch {
		return nil
	}
	data := payload{
		title:   "Bookspool - Fetch Complete",
		message: fmt.Sprintf("Fetched %s: %d segments staged", strings.TrimSpace(bookTitle), segments),
		tags:    []string{"bookspool", "fetch", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) UploadComplete(ctx context.Context, bookTitle string, files int) error {
	if !n.upload {
		return nil
	}
	data := payload{
		title:    "Bookspool - Upload Complete",
		message:  fmt.Sprintf("Ready to listen: %s (%d files)", strings.TrimSpace(bookTitle), files),
		tags:     []string{"bookspool", "upload", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) PlaybackSkip(ctx context.Context, bookTitle string, segmentIndex int) {
	if !n.playback {
		return
	}
	data := payload{
		title:   "Bookspool - Skipping Segment",
		message: fmt.Sprintf("%s: skipping to next segment (%d)", strings.TrimSpace(bookTitle), segmentIndex+1),
		tags:    []string{"bookspool", "playback", "skip"},
	}
	if err := n.send(ctx, data); err != nil {
		n.logger.Warn("playback notice failed", logging.Args(logging.Error(err))...)
	}
}

func (n *ntfyService) PlaybackFailed(ctx context.Context, bookTitle string, segmentIndex int, cause error) {
	if !n.playback {
		return
	}
	message := fmt.Sprintf("%s: playback failed on segment %d", strings.TrimSpace(bookTitle), segmentIndex+1)
	if cause != nil {
		message += ": " + strings.TrimSpace(cause.Error())
	}
	data := payload{
		title:    "Bookspool - Playback Failed",
		message:  message,
		tags:     []string{"bookspool", "playback", "alert"},
		priority: "high",
	}
	if err := n.send(ctx, data); err != nil {
		n.logger.Warn("playback notice failed", logging.Args(logging.Error(err))...)
	}
}

func (n *ntfyService) Error(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Bookspool - Error",
		message:  builder.String(),
		tags:     []string{"bookspool", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) Test(ctx context.Context) error {
	data := payload{
		title:    "Bookspool - Test",
		message:  "Notification system test",
		tags:     []string{"bookspool", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) FetchComplete(context.Context, string, int) error    { return nil }
func (noopService) UploadComplete(context.Context, string, int) error   { return nil }
func (noopService) PlaybackSkip(context.Context, string, int)           {}
func (noopService) PlaybackFailed(context.Context, string, int, error)  {}
func (noopService) Error(context.Context, error, string) error          { return nil }
func (noopService) Test(context.Context) error                          { return nil }
