// Package fetch downloads sequentially numbered audio files from the
// configured web source into the staging directory.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"bookspool/internal/config"
	"bookspool/internal/logging"
	"bookspool/internal/planner"
	"bookspool/internal/services"
)

// HTTPDoer describes the HTTP client used by the source client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Download records one fetched source file on disk.
type Download struct {
	Index           int
	URL             string
	Path            string
	SizeBytes       int64
	DurationSeconds float64
}

// Client fetches audiobook files from a web source that serves them as
// sequentially numbered audio files (01.mp3, 02.mp3, ...).
type Client struct {
	baseURL     string
	client      HTTPDoer
	maxRetries  int
	bitrateKbps int
	logger      *slog.Logger
	probeLimit  int
	backoff     services.Backoff
}

// NewClient constructs a source client from configuration.
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	return &Client{
		baseURL:     cfg.Source.BaseURL,
		client:      &http.Client{Timeout: timeoutSeconds(cfg.Source.DownloadTimeout)},
		maxRetries:  cfg.Source.MaxRetries,
		bitrateKbps: cfg.Source.EstimatedBitrateKbps,
		logger:      logging.NewComponentLogger(logger, "fetch"),
		probeLimit:  maxSourceFiles,
		backoff:     services.DefaultBackoff(),
	}
}

// WithHTTPClient overrides the HTTP client (used in tests).
func (c *Client) WithHTTPClient(client HTTPDoer) *Client {
	c.client = client
	return c
}

// WithBackoff overrides the retry schedule (used in tests).
func (c *Client) WithBackoff(b services.Backoff) *Client {
	c.backoff = b
	return c
}

// maxSourceFiles bounds sequential probing so a misconfigured source cannot
// loop forever.
const maxSourceFiles = 500

// BookTitle derives the book title from the source URL's last path element.
func (c *Client) BookTitle() string {
	parsed, err := url.Parse(c.baseURL)
	if err != nil {
		return ""
	}
	title, err := url.PathUnescape(path.Base(parsed.Path))
	if err != nil {
		title = path.Base(parsed.Path)
	}
	return strings.TrimSpace(title)
}

// Discover probes sequentially numbered file names under the base URL and
// returns the ordered list of file URLs that exist. The first missing index
// ends the sequence.
func (c *Client) Discover(ctx context.Context) ([]string, error) {
	if c.baseURL == "" {
		return nil, services.Wrap(services.ErrInput, "fetch", "discover", "source.base_url is not configured", nil)
	}

	var urls []string
	for i := 1; i <= c.probeLimit; i++ {
		fileURL := fmt.Sprintf("%s/%02d.mp3", c.baseURL, i)
		exists, err := c.probe(ctx, fileURL)
		if err != nil {
			return nil, err
		}
		if !exists {
			break
		}
		urls = append(urls, fileURL)
	}
	if len(urls) == 0 {
		return nil, services.Wrap(services.ErrInput, "fetch", "discover", "no audio files found at source", nil)
	}
	c.logger.Info("discovered source files",
		logging.Int("count", len(urls)),
		logging.String(logging.FieldEventType, "source_discovered"),
	)
	return urls, nil
}

func (c *Client) probe(ctx context.Context, fileURL string) (bool, error) {
	var exists bool
	backoff := c.backoff
	err := services.Retry(ctx, c.maxRetries, &backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, fileURL, nil)
		if err != nil {
			return services.Wrap(services.ErrInput, "fetch", "probe", fileURL, err)
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return services.Wrap(services.ErrNetwork, "fetch", "probe", fileURL, err)
		}
		defer resp.Body.Close()
		switch {
		case resp.StatusCode == http.StatusOK:
			exists = true
			return nil
		case resp.StatusCode == http.StatusNotFound:
			exists = false
			return nil
		case resp.StatusCode >= http.StatusInternalServerError:
			return services.Wrap(services.ErrNetwork, "fetch", "probe",
				fmt.Sprintf("%s returned %d", fileURL, resp.StatusCode), nil)
		default:
			exists = false
			return nil
		}
	})
	return exists, err
}

// DownloadAll fetches every discovered file into destDir, named by ordinal.
// A file that still fails after the retry schedule aborts the whole run; the
// planner never sees a partial source set.
func (c *Client) DownloadAll(ctx context.Context, urls []string, destDir string) ([]Download, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}

	downloads := make([]Download, 0, len(urls))
	for i, fileURL := range urls {
		dest := filepath.Join(destDir, fmt.Sprintf("audio_%02d.mp3", i+1))
		dl, err := c.download(ctx, i+1, fileURL, dest)
		if err != nil {
			return nil, err
		}
		downloads = append(downloads, dl)
		c.logger.Info("downloaded source file",
			logging.Int("index", dl.Index),
			logging.Int64("size_bytes", dl.SizeBytes),
			logging.String(logging.FieldEventType, "source_file_downloaded"),
		)
	}
	return downloads, nil
}

func (c *Client) download(ctx context.Context, index int, fileURL, dest string) (Download, error) {
	var out Download
	backoff := c.backoff
	err := services.Retry(ctx, c.maxRetries, &backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
		if err != nil {
			return services.Wrap(services.ErrInput, "fetch", "download", fileURL, err)
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return services.Wrap(services.ErrNetwork, "fetch", "download", fileURL, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return services.Wrap(services.ErrNetwork, "fetch", "download",
				fmt.Sprintf("%s returned %d", fileURL, resp.StatusCode), nil)
		}

		file, err := os.Create(dest)
		if err != nil {
			return fmt.Errorf("create %s: %w", dest, err)
		}
		written, err := io.Copy(file, resp.Body)
		if closeErr := file.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			_ = os.Remove(dest)
			return services.Wrap(services.ErrNetwork, "fetch", "download", fileURL, err)
		}

		out = Download{
			Index:           index,
			URL:             fileURL,
			Path:            dest,
			SizeBytes:       written,
			DurationSeconds: c.estimateDuration(written),
		}
		return nil
	})
	if err != nil {
		return Download{}, err
	}
	return out, nil
}

// estimateDuration derives an approximate duration from file size at the
// configured bitrate. Used when no probe of the actual stream is available.
func (c *Client) estimateDuration(sizeBytes int64) float64 {
	kbps := c.bitrateKbps
	if kbps <= 0 {
		kbps = 128
	}
	return float64(sizeBytes*8) / float64(kbps*1000)
}

// SourceFiles converts downloads into the planner's input form.
func SourceFiles(downloads []Download) []planner.SourceFile {
	files := make([]planner.SourceFile, 0, len(downloads))
	for _, dl := range downloads {
		files = append(files, planner.SourceFile{
			Index:           dl.Index,
			SizeBytes:       dl.SizeBytes,
			DurationSeconds: dl.DurationSeconds,
		})
	}
	return files
}

func timeoutSeconds(seconds int) time.Duration {
	if seconds <= 0 {
		seconds = 60
	}
	return time.Duration(seconds) * time.Second
}
