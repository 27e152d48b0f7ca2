package drive

import (
	"context"
	"strings"
	"sync"

	"bookspool/internal/services"
)

// TokenSource supplies the bearer credential for store requests and can
// produce a fresh one when the store reports the current one expired.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// StaticTokenSource returns a fixed credential. Refresh re-issues the same
// value, so an expiry with a static token surfaces as an auth error on the
// retried request.
type StaticTokenSource struct {
	mu    sync.Mutex
	token string
}

// NewStaticTokenSource builds a source around a configured token string.
func NewStaticTokenSource(token string) *StaticTokenSource {
	return &StaticTokenSource{token: strings.TrimSpace(token)}
}

func (s *StaticTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return "", services.Wrap(services.ErrAuth, "drive", "token", "no credential configured", nil)
	}
	return s.token, nil
}

func (s *StaticTokenSource) Refresh(ctx context.Context) (string, error) {
	return s.Token(ctx)
}
