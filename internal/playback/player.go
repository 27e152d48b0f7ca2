package playback

import "context"

// EventType identifies a signal from the external player.
type EventType int

const (
	// EventReady means the prepared segment is buffered and seekable.
	EventReady EventType = iota
	// EventEnded means the current segment played to its end.
	EventEnded
	// EventError means the player failed to load or play the segment.
	EventError
)

func (t EventType) String() string {
	switch t {
	case EventReady:
		return "ready"
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is an asynchronous signal emitted by the external player. Err is set
// only for EventError.
type Event struct {
	Type EventType
	Err  error
}

// Player is the external streaming player driven by a session. Prepare kicks
// off asynchronous buffering of a URL; the player reports readiness, natural
// end of playback, and failures on the Events channel. All other calls act
// on the most recently prepared media.
type Player interface {
	Prepare(ctx context.Context, url string) error
	Play() error
	Pause() error
	// SeekTo positions playback at an absolute offset. The player may reject
	// an out-of-range offset with an error.
	SeekTo(offsetMillis int64) error
	// Position reports the current playback offset in milliseconds.
	Position() int64
	SetRate(rate float64) error
	Events() <-chan Event
	Close() error
}

// Resolver turns a stored file handle into a streamable URL.
type Resolver interface {
	ResolvePlayableURL(ctx context.Context, fileID string) (string, error)
}
