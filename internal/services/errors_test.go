package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"bookspool/internal/services"
)

func TestWrapPreservesMarker(t *testing.T) {
	cause := errors.New("connection reset")
	err := services.Wrap(services.ErrNetwork, "fetch", "download", "file 03", cause)
	if !errors.Is(err, services.ErrNetwork) {
		t.Fatalf("expected wrapped error to match ErrNetwork, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped error to retain cause, got %v", err)
	}
}

func TestKindClassification(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		expect string
	}{
		{"input", services.Wrap(services.ErrInput, "planner", "plan", "no source files", nil), "input"},
		{"capacity", services.Wrap(services.ErrCapacity, "planner", "plan", "file too large", nil), "capacity"},
		{"auth", services.Wrap(services.ErrAuth, "drive", "upload", "token expired", nil), "auth"},
		{"playback", services.Wrap(services.ErrPlayback, "session", "load", "decoder failure", nil), "playback"},
		{"plain", errors.New("mystery"), "unknown"},
		{"nil", nil, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.Kind(tc.err); got != tc.expect {
				t.Fatalf("Kind(%v) = %q, want %q", tc.err, got, tc.expect)
			}
		})
	}
}

func TestRetryableExcludesFatalKinds(t *testing.T) {
	if services.Retryable(services.Wrap(services.ErrInput, "planner", "plan", "", nil)) {
		t.Fatal("input errors must not be retryable")
	}
	if services.Retryable(services.Wrap(services.ErrState, "session", "play", "", nil)) {
		t.Fatal("state errors must not be retryable")
	}
	if !services.Retryable(services.Wrap(services.ErrNetwork, "fetch", "download", "", nil)) {
		t.Fatal("network errors must be retryable")
	}
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	b := services.Backoff{Initial: time.Second, Max: 4 * time.Second}
	delays := []time.Duration{b.Next(), b.Next(), b.Next(), b.Next()}
	expect := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 4 * time.Second}
	for i := range expect {
		if delays[i] != expect[i] {
			t.Fatalf("delay %d = %v, want %v", i, delays[i], expect[i])
		}
	}
	b.Reset()
	if b.Attempts() != 0 {
		t.Fatalf("expected reset to clear attempts, got %d", b.Attempts())
	}
}

func TestRetryStopsOnFatalError(t *testing.T) {
	calls := 0
	backoff := services.Backoff{Initial: time.Millisecond, Max: time.Millisecond}
	err := services.Retry(context.Background(), 5, &backoff, func(context.Context) error {
		calls++
		return services.Wrap(services.ErrCapacity, "planner", "plan", "oversize", nil)
	})
	if calls != 1 {
		t.Fatalf("expected a single attempt for fatal error, got %d", calls)
	}
	if !errors.Is(err, services.ErrCapacity) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRetryEventuallySucceeds(t *testing.T) {
	calls := 0
	backoff := services.Backoff{Initial: time.Millisecond, Max: time.Millisecond}
	err := services.Retry(context.Background(), 5, &backoff, func(context.Context) error {
		calls++
		if calls < 3 {
			return services.Wrap(services.ErrNetwork, "fetch", "download", "", nil)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if backoff.Attempts() != 0 {
		t.Fatalf("expected backoff reset after success, got %d attempts", backoff.Attempts())
	}
}
