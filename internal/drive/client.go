// Package drive talks to the cloud file store that holds uploaded books:
// folder and file CRUD at ingestion time, catalog listing and playable URL
// resolution at playback time. Authentication is a bearer credential per
// request; an expired credential is refreshed once and the request retried
// before the failure is surfaced.
package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"bookspool/internal/config"
	"bookspool/internal/services"
)

// HTTPDoer describes the HTTP client used by the store client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Folder is a container in the file store.
type Folder struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// File is an uploaded object in the file store.
type File struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SizeBytes int64  `json:"size"`
}

// Client is an HTTP client for the file store API.
type Client struct {
	baseURL string
	client  HTTPDoer
	tokens  TokenSource
}

// NewClient constructs a store client from configuration.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL: cfg.Drive.BaseURL,
		client:  &http.Client{Timeout: time.Duration(cfg.Drive.RequestTimeout) * time.Second},
		tokens:  NewStaticTokenSource(cfg.Drive.Token),
	}
}

// WithHTTPClient overrides the HTTP client (used in tests).
func (c *Client) WithHTTPClient(client HTTPDoer) *Client {
	c.client = client
	return c
}

// WithTokenSource overrides the credential source.
func (c *Client) WithTokenSource(tokens TokenSource) *Client {
	c.tokens = tokens
	return c
}

// EnsureFolder finds a folder by name under parent, creating it when absent.
// parent may be empty for the store root.
func (c *Client) EnsureFolder(ctx context.Context, name, parent string) (Folder, error) {
	query := url.Values{"name": {name}}
	if parent != "" {
		query.Set("parent", parent)
	}
	var listing struct {
		Folders []Folder `json:"folders"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/folders?"+query.Encode(), nil, &listing); err != nil {
		return Folder{}, err
	}
	if len(listing.Folders) > 0 {
		return listing.Folders[0], nil
	}

	body, err := json.Marshal(map[string]string{"name": name, "parent": parent})
	if err != nil {
		return Folder{}, fmt.Errorf("marshal folder request: %w", err)
	}
	var created Folder
	if err := c.doJSON(ctx, http.MethodPost, "/folders", bytes.NewReader(body), &created); err != nil {
		return Folder{}, err
	}
	return created, nil
}

// ListFolders returns the folders under parent.
func (c *Client) ListFolders(ctx context.Context, parent string) ([]Folder, error) {
	query := url.Values{}
	if parent != "" {
		query.Set("parent", parent)
	}
	var listing struct {
		Folders []Folder `json:"folders"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/folders?"+query.Encode(), nil, &listing); err != nil {
		return nil, err
	}
	return listing.Folders, nil
}

// ListFiles returns the files under a folder, in name order.
func (c *Client) ListFiles(ctx context.Context, folderID string) ([]File, error) {
	var listing struct {
		Files []File `json:"files"`
	}
	path := "/files?" + url.Values{"parent": {folderID}}.Encode()
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &listing); err != nil {
		return nil, err
	}
	return listing.Files, nil
}

// UploadFile streams a local file into the folder under the given name.
func (c *Client) UploadFile(ctx context.Context, folderID, name, localPath string) (File, error) {
	open := func() (io.ReadCloser, error) {
		return os.Open(localPath)
	}
	path := "/files?" + url.Values{"parent": {folderID}, "name": {name}}.Encode()

	var uploaded File
	err := c.withAuthRetry(ctx, func(ctx context.Context, token string) error {
		body, err := open()
		if err != nil {
			return fmt.Errorf("open %s: %w", localPath, err)
		}
		defer body.Close()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
		if err != nil {
			return fmt.Errorf("build upload request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/octet-stream")

		resp, err := c.client.Do(req)
		if err != nil {
			return services.Wrap(services.ErrNetwork, "drive", "upload", name, err)
		}
		defer resp.Body.Close()
		if err := classifyStatus(resp.StatusCode, "upload", name); err != nil {
			return err
		}
		if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
			return fmt.Errorf("decode upload response: %w", err)
		}
		return nil
	})
	if err != nil {
		return File{}, err
	}
	return uploaded, nil
}

// UploadBytes uploads an in-memory payload, used for TOC records.
func (c *Client) UploadBytes(ctx context.Context, folderID, name string, payload []byte) (File, error) {
	path := "/files?" + url.Values{"parent": {folderID}, "name": {name}}.Encode()

	var uploaded File
	err := c.withAuthRetry(ctx, func(ctx context.Context, token string) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("build upload request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return services.Wrap(services.ErrNetwork, "drive", "upload", name, err)
		}
		defer resp.Body.Close()
		if err := classifyStatus(resp.StatusCode, "upload", name); err != nil {
			return err
		}
		if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
			return fmt.Errorf("decode upload response: %w", err)
		}
		return nil
	})
	if err != nil {
		return File{}, err
	}
	return uploaded, nil
}

// ResolvePlayableURL returns a streamable URL for a stored file.
func (c *Client) ResolvePlayableURL(ctx context.Context, fileID string) (string, error) {
	var resolved struct {
		URL string `json:"url"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/files/"+url.PathEscape(fileID)+"/url", nil, &resolved); err != nil {
		return "", err
	}
	if resolved.URL == "" {
		return "", services.Wrap(services.ErrNetwork, "drive", "resolve_url", "store returned empty url for "+fileID, nil)
	}
	return resolved.URL, nil
}

// doJSON performs a JSON request with the auth-retry policy applied. The
// body is buffered so the request can be replayed after a token refresh.
func (c *Client) doJSON(ctx context.Context, method, path string, body io.Reader, out any) error {
	var payload []byte
	if body != nil {
		data, err := io.ReadAll(body)
		if err != nil {
			return fmt.Errorf("read request body: %w", err)
		}
		payload = data
	}

	return c.withAuthRetry(ctx, func(ctx context.Context, token string) error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return services.Wrap(services.ErrNetwork, "drive", method+" "+path, "", err)
		}
		defer resp.Body.Close()
		if err := classifyStatus(resp.StatusCode, method, path); err != nil {
			return err
		}
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	})
}

// withAuthRetry runs fn with the current credential. When the store reports
// the credential expired, the token source is refreshed once and fn retried;
// a second auth failure is surfaced.
func (c *Client) withAuthRetry(ctx context.Context, fn func(ctx context.Context, token string) error) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}
	err = fn(ctx, token)
	if err == nil || services.Kind(err) != "auth" {
		return err
	}

	refreshed, refreshErr := c.tokens.Refresh(ctx)
	if refreshErr != nil {
		return refreshErr
	}
	return fn(ctx, refreshed)
}

func classifyStatus(status int, operation, subject string) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return services.Wrap(services.ErrAuth, "drive", operation,
			fmt.Sprintf("%s: credential rejected (%d)", subject, status), nil)
	default:
		return services.Wrap(services.ErrNetwork, "drive", operation,
			fmt.Sprintf("%s: store returned %d", subject, status), nil)
	}
}
