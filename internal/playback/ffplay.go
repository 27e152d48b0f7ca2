package playback

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"bookspool/internal/config"
	"bookspool/internal/logging"
)

// FFPlay drives the ffplay binary as the external player. ffplay has no
// control protocol, so pause and resume map to SIGSTOP/SIGCONT, seeks and
// rate changes restart the process at the target offset, and the playback
// offset is accounted from the wall clock while audio is running.
type FFPlay struct {
	binary string
	logger *slog.Logger
	events chan Event

	mu        sync.Mutex
	url       string
	rate      float64
	base      int64 // offset at process start, milliseconds
	startedAt time.Time
	playing   bool
	paused    bool
	cmd       *exec.Cmd
	gen       int
}

// NewFFPlay builds a player around the ffplay binary next to the configured
// ffmpeg.
func NewFFPlay(cfg *config.Config, logger *slog.Logger) *FFPlay {
	binary := "ffplay"
	if dir := filepath.Dir(cfg.Combine.FFmpegBinary); dir != "." {
		binary = filepath.Join(dir, "ffplay")
	}
	return &FFPlay{
		binary: binary,
		logger: logging.NewComponentLogger(logger, "ffplay"),
		events: make(chan Event, 8),
		rate:   1.0,
	}
}

// WithBinary overrides the player binary (used in tests).
func (p *FFPlay) WithBinary(binary string) *FFPlay {
	p.binary = binary
	return p
}

// Prepare points the player at a new URL. Streaming URLs need no local
// buffering, so readiness is reported immediately.
func (p *FFPlay) Prepare(ctx context.Context, url string) error {
	p.mu.Lock()
	p.stopLocked()
	p.url = url
	p.base = 0
	p.paused = false
	p.mu.Unlock()

	p.emit(Event{Type: EventReady})
	return nil
}

func (p *FFPlay) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd != nil && p.paused {
		if err := p.cmd.Process.Signal(syscall.SIGCONT); err != nil {
			return fmt.Errorf("resume ffplay: %w", err)
		}
		p.paused = false
		p.playing = true
		p.startedAt = time.Now()
		return nil
	}
	return p.startLocked()
}

func (p *FFPlay) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil || !p.playing {
		return nil
	}
	if err := p.cmd.Process.Signal(syscall.SIGSTOP); err != nil {
		return fmt.Errorf("pause ffplay: %w", err)
	}
	p.base = p.positionLocked()
	p.paused = true
	p.playing = false
	return nil
}

// SeekTo restarts playback at the absolute offset; ffplay cannot seek a
// running process.
func (p *FFPlay) SeekTo(offsetMillis int64) error {
	if offsetMillis < 0 {
		offsetMillis = 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	wasPlaying := p.playing
	p.stopLocked()
	p.base = offsetMillis
	if wasPlaying {
		return p.startLocked()
	}
	return nil
}

func (p *FFPlay) Position() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positionLocked()
}

// SetRate changes the playback tempo. A running process is restarted at the
// current offset with the new filter chain.
func (p *FFPlay) SetRate(rate float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.base = p.positionLocked()
	p.rate = rate
	if p.playing {
		p.stopLocked()
		return p.startLocked()
	}
	return nil
}

func (p *FFPlay) Events() <-chan Event { return p.events }

func (p *FFPlay) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	return nil
}

// positionLocked derives the current offset from the process start time.
func (p *FFPlay) positionLocked() int64 {
	if !p.playing {
		return p.base
	}
	elapsed := time.Since(p.startedAt)
	return p.base + int64(float64(elapsed.Milliseconds())*p.rate)
}

// startLocked launches ffplay at p.base and watches for its exit. The
// generation counter silences watchers of deliberately stopped processes.
func (p *FFPlay) startLocked() error {
	if p.url == "" {
		return fmt.Errorf("no media prepared")
	}
	p.stopLocked()

	cmd := exec.Command(p.binary, ffplayArgs(p.url, p.base, p.rate)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffplay: %w", err)
	}
	p.cmd = cmd
	p.playing = true
	p.paused = false
	p.startedAt = time.Now()
	gen := p.gen

	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		if gen != p.gen {
			p.mu.Unlock()
			return
		}
		p.base = p.positionLocked()
		p.playing = false
		p.cmd = nil
		p.mu.Unlock()

		if err != nil {
			p.emit(Event{Type: EventError, Err: fmt.Errorf("ffplay exited: %w", err)})
			return
		}
		p.emit(Event{Type: EventEnded})
	}()
	return nil
}

// stopLocked kills any running process and detaches its watcher.
func (p *FFPlay) stopLocked() {
	p.gen++
	if p.cmd != nil && p.cmd.Process != nil {
		_ = p.cmd.Process.Signal(syscall.SIGCONT)
		_ = p.cmd.Process.Kill()
	}
	if p.playing {
		p.base = p.positionLocked()
	}
	p.cmd = nil
	p.playing = false
}

func (p *FFPlay) emit(event Event) {
	select {
	case p.events <- event:
	default:
		p.logger.Warn("event dropped", logging.Args(logging.String("event", event.Type.String()))...)
	}
}

// ffplayArgs builds the ffplay invocation for a URL at an offset. The atempo
// filter is only attached for non-unity rates.
func ffplayArgs(url string, offsetMillis int64, rate float64) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-nodisp", "-autoexit"}
	if offsetMillis > 0 {
		args = append(args, "-ss", strconv.FormatFloat(float64(offsetMillis)/1000, 'f', 3, 64))
	}
	if rate != 1.0 {
		args = append(args, "-af", fmt.Sprintf("atempo=%.2f", rate))
	}
	return append(args, url)
}
