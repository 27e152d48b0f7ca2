package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors classifying every failure the toolchain can surface.
var (
	// ErrInput marks an empty or invalid source set. Fatal to a planning
	// run, surfaced to the caller, never retried.
	ErrInput = errors.New("input error")
	// ErrCapacity marks a single file that exceeds the segment size ceiling
	// on its own. Requires external re-encoding, never retried.
	ErrCapacity = errors.New("capacity error")
	// ErrAuth marks an expired or invalid credential. Retried once after
	// re-authentication, then surfaced.
	ErrAuth = errors.New("auth error")
	// ErrNetwork marks a transient fetch failure. Retried with bounded
	// backoff, then surfaced.
	ErrNetwork = errors.New("network error")
	// ErrPlayback marks an external player failure. Handled by the
	// session's skip-forward policy and always produces a user notice.
	ErrPlayback = errors.New("playback error")
	// ErrState marks an operation invoked in an invalid state. Surfaced
	// immediately, never retried.
	ErrState = errors.New("state error")
)

// Wrap tags err with the provided sentinel marker and component/operation
// context so callers can classify it with errors.Is later.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrNetwork
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether an error is worth another attempt at all.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrInput), errors.Is(err, ErrCapacity), errors.Is(err, ErrState):
		return false
	case errors.Is(err, ErrAuth), errors.Is(err, ErrNetwork), errors.Is(err, ErrPlayback):
		return true
	default:
		return false
	}
}

// Kind returns a short stable label for the error's classification, used in
// log fields and user-facing messages.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInput):
		return "input"
	case errors.Is(err, ErrCapacity):
		return "capacity"
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrPlayback):
		return "playback"
	case errors.Is(err, ErrState):
		return "state"
	default:
		return "unknown"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
