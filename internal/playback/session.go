// Package playback drives the external streaming player through one book at
// a time. A session owns a single control goroutine: user commands and player
// events are both funneled through it, so segment index, offset, and state
// are never mutated from two goroutines. The saved position is the only
// cross-run state the session writes.
package playback

import (
	"context"
	"log/slog"
	"time"

	"bookspool/internal/catalog"
	"bookspool/internal/config"
	"bookspool/internal/logging"
	"bookspool/internal/position"
	"bookspool/internal/services"
)

// State is the session's lifecycle phase.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StatePlaying
	StatePaused
	StateFinished
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateFinished:
		return "finished"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Direction selects the neighboring segment for Advance.
type Direction int

const (
	Next Direction = iota
	Previous
)

// Boundary reports why an Advance did not move.
type Boundary int

const (
	BoundaryNone Boundary = iota
	AtStart
	AtEnd
)

// ErrNoBookSelected is returned by operations that require a current book.
var ErrNoBookSelected = services.Wrap(services.ErrState, "playback", "command", "no book selected", nil)

// PositionStore persists the session's resume point.
type PositionStore interface {
	Save(ctx context.Context, pos position.Position) error
}

// Notifier receives user-visible playback notices. Implementations must be
// safe to call from the session goroutine; a nil Notifier disables notices.
type Notifier interface {
	PlaybackSkip(ctx context.Context, bookTitle string, segmentIndex int)
	PlaybackFailed(ctx context.Context, bookTitle string, segmentIndex int, err error)
}

// Snapshot is a point-in-time copy of session state for display.
type Snapshot struct {
	State        State
	BookID       string
	BookTitle    string
	SegmentIndex int
	SegmentCount int
	OffsetMillis int64
	Speed        float64
}

type loadResult struct {
	generation uint64
	url        string
	err        error
}

// Session is the single-book playback state machine. Construct with
// NewSession, start the control loop with Run, and drive it through the
// exported methods; every method is safe to call from any goroutine.
type Session struct {
	player    Player
	resolver  Resolver
	positions PositionStore
	notifier  Notifier
	logger    *slog.Logger

	persistInterval time.Duration
	errorSkipDelay  time.Duration

	cmds  chan func()
	loads chan loadResult
	done  chan struct{}

	// runCtx is the Run loop's context; loop-owned helpers use it so that a
	// caller's per-command deadline cannot cancel an accepted load.
	runCtx context.Context

	// Everything below is owned by the control goroutine.
	state        State
	book         *catalog.Book
	segmentIndex int
	speed        float64
	pendingSeek  int64
	autoPlay     bool
	generation   uint64
	lastErr      error

	ticker *time.Ticker
	ticks  <-chan time.Time
}

// NewSession wires a session over an external player, a URL resolver, and a
// position store.
func NewSession(cfg *config.Config, player Player, resolver Resolver, positions PositionStore, notifier Notifier, logger *slog.Logger) *Session {
	return &Session{
		player:          player,
		resolver:        resolver,
		positions:       positions,
		notifier:        notifier,
		logger:          logging.NewComponentLogger(logger, "playback"),
		persistInterval: time.Duration(cfg.Playback.PersistIntervalSeconds) * time.Second,
		errorSkipDelay:  time.Duration(cfg.Playback.ErrorSkipDelaySeconds) * time.Second,
		cmds:            make(chan func()),
		loads:           make(chan loadResult),
		done:            make(chan struct{}),
		state:           StateIdle,
		speed:           1.0,
	}
}

// WithIntervals overrides the persist cadence and error-skip delay (used in
// tests).
func (s *Session) WithIntervals(persist, skipDelay time.Duration) *Session {
	s.persistInterval = persist
	s.errorSkipDelay = skipDelay
	return s
}

// Done is closed when the control loop has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Run executes the control loop until ctx is cancelled. On shutdown the
// current position is persisted and the player closed.
func (s *Session) Run(ctx context.Context) {
	s.runCtx = ctx
	defer close(s.done)
	defer s.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-s.cmds:
			cmd()
		case result := <-s.loads:
			s.onLoadResolved(result)
		case event, ok := <-s.player.Events():
			if !ok {
				return
			}
			s.onPlayerEvent(event)
		case <-s.ticks:
			s.persist()
		}
	}
}

// SelectBook makes book current and loads its first segment without playing.
func (s *Session) SelectBook(ctx context.Context, book *catalog.Book) error {
	if book == nil || len(book.Segments) == 0 {
		return services.Wrap(services.ErrInput, "playback", "select_book", "book has no segments", nil)
	}
	return s.do(ctx, func() error {
		s.book = book
		s.segmentIndex = 0
		s.pendingSeek = 0
		s.startLoad(false)
		return nil
	})
}

// ResumeFromSaved restores a persisted position against the given catalog.
// An unknown book is a no-op; a segment index past the end of a shrunk book
// is clamped.
func (s *Session) ResumeFromSaved(ctx context.Context, pos position.Position, books []*catalog.Book) error {
	var book *catalog.Book
	for _, b := range books {
		if b.ID == pos.BookID {
			book = b
			break
		}
	}
	if book == nil || len(book.Segments) == 0 {
		return nil
	}
	pos = pos.Normalize().ClampToSegments(len(book.Segments))
	return s.do(ctx, func() error {
		s.book = book
		s.segmentIndex = pos.SegmentIndex
		s.pendingSeek = pos.OffsetMillis
		s.speed = pos.Speed
		s.startLoad(false)
		return nil
	})
}

// PlayPause toggles between playing and paused. With a book but no loaded
// segment it reloads the current segment and plays; with no book it fails.
func (s *Session) PlayPause(ctx context.Context) error {
	return s.do(ctx, func() error {
		if s.book == nil {
			return ErrNoBookSelected
		}
		switch s.state {
		case StatePlaying:
			if err := s.player.Pause(); err != nil {
				return err
			}
			s.stopTicker()
			s.state = StatePaused
			s.persist()
		case StateReady, StatePaused:
			if err := s.player.Play(); err != nil {
				return err
			}
			s.state = StatePlaying
			s.startTicker()
		case StateLoading:
			s.autoPlay = !s.autoPlay
		case StateFinished, StateError:
			s.startLoad(true)
		}
		return nil
	})
}

// Advance moves one segment forward or back. Out-of-bounds moves are not
// errors: the returned Boundary says which edge of the book was hit.
func (s *Session) Advance(ctx context.Context, dir Direction) (Boundary, error) {
	boundary := BoundaryNone
	err := s.do(ctx, func() error {
		if s.book == nil {
			return ErrNoBookSelected
		}
		switch dir {
		case Next:
			if s.segmentIndex >= len(s.book.Segments)-1 {
				boundary = AtEnd
				return nil
			}
			s.segmentIndex++
		case Previous:
			if s.segmentIndex <= 0 {
				boundary = AtStart
				return nil
			}
			s.segmentIndex--
		}
		s.pendingSeek = 0
		s.startLoad(false)
		s.persistAt(0)
		return nil
	})
	return boundary, err
}

// SkipBy seeks relative to the current offset. The target is clamped to zero
// on the low side; the player handles the high side natively.
func (s *Session) SkipBy(ctx context.Context, deltaMillis int64) error {
	return s.do(ctx, func() error {
		if s.book == nil {
			return ErrNoBookSelected
		}
		if s.state != StateReady && s.state != StatePlaying && s.state != StatePaused {
			return services.Wrap(services.ErrState, "playback", "skip", "no segment loaded", nil)
		}
		target := s.player.Position() + deltaMillis
		if target < 0 {
			target = 0
		}
		return s.player.SeekTo(target)
	})
}

// SetSpeed clamps value into the supported range, applies it to the player,
// and persists it.
func (s *Session) SetSpeed(ctx context.Context, value float64) error {
	return s.do(ctx, func() error {
		s.speed = position.ClampSpeed(value)
		if s.state == StateReady || s.state == StatePlaying || s.state == StatePaused {
			if err := s.player.SetRate(s.speed); err != nil {
				return err
			}
			s.persist()
		}
		return nil
	})
}

// Snapshot returns a copy of the current session state.
func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.do(ctx, func() error {
		snap = Snapshot{
			State:        s.state,
			SegmentIndex: s.segmentIndex,
			Speed:        s.speed,
		}
		if s.book != nil {
			snap.BookID = s.book.ID
			snap.BookTitle = s.book.DisplayName
			snap.SegmentCount = len(s.book.Segments)
		}
		if s.state == StateReady || s.state == StatePlaying || s.state == StatePaused {
			snap.OffsetMillis = s.player.Position()
		}
		return nil
	})
	return snap, err
}

// Err returns the error that put the session into StateError.
func (s *Session) Err(ctx context.Context) (error, error) {
	var lastErr error
	err := s.do(ctx, func() error {
		lastErr = s.lastErr
		return nil
	})
	return lastErr, err
}

// do runs fn on the control goroutine and waits for its result.
func (s *Session) do(ctx context.Context, fn func() error) error {
	errCh := make(chan error, 1)
	select {
	case s.cmds <- func() { errCh <- fn() }:
	case <-s.done:
		return services.Wrap(services.ErrState, "playback", "command", "session stopped", nil)
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// startLoad begins loading the current segment. The generation counter makes
// late resolutions for an abandoned selection harmless.
func (s *Session) startLoad(autoPlay bool) {
	s.stopTicker()
	s.state = StateLoading
	s.autoPlay = autoPlay
	s.lastErr = nil
	s.generation++
	gen := s.generation
	fileID := s.book.Segments[s.segmentIndex].FileID

	ctx := s.runCtx
	go func() {
		url, err := s.resolver.ResolvePlayableURL(ctx, fileID)
		select {
		case s.loads <- loadResult{generation: gen, url: url, err: err}:
		case <-s.done:
		case <-ctx.Done():
		}
	}()
}

func (s *Session) onLoadResolved(result loadResult) {
	if result.generation != s.generation || s.state != StateLoading {
		return
	}
	if result.err != nil {
		s.handlePlaybackError(result.err)
		return
	}
	if err := s.player.Prepare(s.runCtx, result.url); err != nil {
		s.handlePlaybackError(err)
	}
}

func (s *Session) onPlayerEvent(event Event) {
	switch event.Type {
	case EventReady:
		if s.state != StateLoading {
			return
		}
		s.onReady()
	case EventEnded:
		if s.state != StatePlaying && s.state != StateReady && s.state != StatePaused {
			return
		}
		s.onSegmentEnded()
	case EventError:
		if s.state != StateLoading && s.state != StatePlaying {
			return
		}
		s.handlePlaybackError(event.Err)
	}
}

func (s *Session) onReady() {
	if s.pendingSeek > 0 {
		// A stale offset from a changed segment may be out of range; fall
		// back to the segment start rather than failing the resume.
		if err := s.player.SeekTo(s.pendingSeek); err != nil {
			if seekErr := s.player.SeekTo(0); seekErr != nil {
				s.handlePlaybackError(seekErr)
				return
			}
		}
		s.pendingSeek = 0
	}
	if err := s.player.SetRate(s.speed); err != nil {
		s.logger.Warn("set rate failed", logging.Args(logging.Error(err))...)
	}

	if s.autoPlay {
		if err := s.player.Play(); err != nil {
			s.handlePlaybackError(err)
			return
		}
		s.state = StatePlaying
		s.startTicker()
	} else {
		s.state = StateReady
	}
	s.persist()
}

func (s *Session) onSegmentEnded() {
	if s.segmentIndex >= len(s.book.Segments)-1 {
		s.stopTicker()
		s.state = StateFinished
		s.persistAt(0)
		s.logger.Info("book finished", logging.Args(logging.String(logging.FieldBookID, s.book.ID))...)
		return
	}
	s.segmentIndex++
	s.pendingSeek = 0
	s.startLoad(true)
	s.persistAt(0)
}

// handlePlaybackError applies the skip-forward policy: after a short delay
// move to the next segment, or surface a terminal error when the failing
// segment is the last one. At most one skip happens per failing segment.
func (s *Session) handlePlaybackError(cause error) {
	s.stopTicker()
	s.state = StateError
	s.lastErr = services.Wrap(services.ErrPlayback, "playback", "play",
		s.book.Segments[s.segmentIndex].DisplayName, cause)
	s.logger.Warn("playback error",
		logging.Args(
			logging.String(logging.FieldBookID, s.book.ID),
			logging.Int(logging.FieldSegment, s.segmentIndex),
			logging.Error(cause))...)

	if s.segmentIndex >= len(s.book.Segments)-1 {
		if s.notifier != nil {
			s.notifier.PlaybackFailed(s.runCtx, s.book.DisplayName, s.segmentIndex, cause)
		}
		return
	}

	failedGen := s.generation
	time.AfterFunc(s.errorSkipDelay, func() {
		skip := func() {
			if s.generation != failedGen || s.state != StateError {
				return
			}
			s.segmentIndex++
			s.pendingSeek = 0
			if s.notifier != nil {
				s.notifier.PlaybackSkip(s.runCtx, s.book.DisplayName, s.segmentIndex)
			}
			s.startLoad(true)
		}
		select {
		case s.cmds <- skip:
		case <-s.done:
		}
	})
}

// persist writes the current resume point. Nothing is written while a
// segment is still loading, so a failed load never records a position.
func (s *Session) persist() {
	if s.state != StateReady && s.state != StatePlaying && s.state != StatePaused {
		return
	}
	s.persistAt(s.player.Position())
}

func (s *Session) persistAt(offsetMillis int64) {
	if s.positions == nil || s.book == nil {
		return
	}
	pos := position.Position{
		BookID:       s.book.ID,
		SegmentIndex: s.segmentIndex,
		OffsetMillis: offsetMillis,
		Speed:        s.speed,
		UpdatedAt:    time.Now(),
	}
	ctx := s.runCtx
	if ctx == nil || ctx.Err() != nil {
		// Shutdown path: the loop context is gone, give the final write its
		// own brief deadline.
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}
	if err := s.positions.Save(ctx, pos); err != nil {
		s.logger.Warn("persist position failed", logging.Args(logging.Error(err))...)
	}
}

func (s *Session) startTicker() {
	s.stopTicker()
	s.ticker = time.NewTicker(s.persistInterval)
	s.ticks = s.ticker.C
}

func (s *Session) stopTicker() {
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
		s.ticks = nil
	}
}

func (s *Session) shutdown() {
	s.stopTicker()
	s.persist()
	if err := s.player.Close(); err != nil {
		s.logger.Warn("close player", logging.Args(logging.Error(err))...)
	}
}
