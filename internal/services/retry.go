package services

import (
	"context"
	"time"
)

// Backoff tracks per-operation retry state. Each logical operation owns its
// own Backoff so unrelated operations never inherit stale attempt counts.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration

	attempts int
}

// DefaultBackoff returns the backoff schedule used for network operations.
func DefaultBackoff() Backoff {
	return Backoff{Initial: 2 * time.Second, Max: 30 * time.Second}
}

// Next returns the delay before the next attempt and records the attempt.
// Delays double per attempt and are capped at Max.
func (b *Backoff) Next() time.Duration {
	initial := b.Initial
	if initial <= 0 {
		initial = time.Second
	}
	delay := initial << b.attempts
	if max := b.Max; max > 0 && (delay > max || delay <= 0) {
		delay = max
	}
	b.attempts++
	return delay
}

// Attempts reports how many attempts have been recorded since the last reset.
func (b *Backoff) Attempts() int { return b.attempts }

// Reset clears the attempt count after a success.
func (b *Backoff) Reset() { b.attempts = 0 }

// Retry invokes fn up to maxAttempts times, sleeping the backoff schedule
// between attempts. It stops early on context cancellation or when the error
// is not retryable. The backoff is reset on success.
func Retry(ctx context.Context, maxAttempts int, backoff *Backoff, fn func(context.Context) error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			backoff.Reset()
			return nil
		}
		if !Retryable(lastErr) || attempt == maxAttempts-1 {
			return lastErr
		}
		timer := time.NewTimer(backoff.Next())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}
