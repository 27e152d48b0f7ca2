// Package combine shells out to ffmpeg to merge source files into one
// playback segment. The command runner is an interface so tests never
// execute the real binary.
package combine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"bookspool/internal/config"
	"bookspool/internal/logging"
)

// Runner executes an external command.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs commands via os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(string(output))
		if len(detail) > 400 {
			detail = detail[len(detail)-400:]
		}
		return fmt.Errorf("%s: %w: %s", name, err, detail)
	}
	return nil
}

// FFmpeg combines audio files using the concat demuxer.
type FFmpeg struct {
	binary  string
	bitrate string
	timeout time.Duration
	runner  Runner
	logger  *slog.Logger
}

// NewFFmpeg constructs a combiner from configuration.
func NewFFmpeg(cfg *config.Config, logger *slog.Logger) *FFmpeg {
	return &FFmpeg{
		binary:  cfg.Combine.FFmpegBinary,
		bitrate: cfg.Combine.Bitrate,
		timeout: time.Duration(cfg.Combine.Timeout) * time.Second,
		runner:  ExecRunner{},
		logger:  logging.NewComponentLogger(logger, "combine"),
	}
}

// WithRunner overrides the command runner (used in tests).
func (f *FFmpeg) WithRunner(runner Runner) *FFmpeg {
	f.runner = runner
	return f
}

// Combine merges the ordered input files into output. The concat list file
// is written next to the output and removed afterwards.
func (f *FFmpeg) Combine(ctx context.Context, inputs []string, output string) error {
	if len(inputs) == 0 {
		return fmt.Errorf("combine requires at least one input")
	}

	listPath := output + ".files.txt"
	var list strings.Builder
	for _, input := range inputs {
		abs, err := filepath.Abs(input)
		if err != nil {
			return fmt.Errorf("resolve input %s: %w", input, err)
		}
		fmt.Fprintf(&list, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}
	if err := os.WriteFile(listPath, []byte(list.String()), 0o644); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}
	defer os.Remove(listPath)

	runCtx := ctx
	if f.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	args := []string{
		"-hide_banner", "-y",
		"-f", "concat", "-safe", "0",
		"-i", listPath,
		"-b:a", f.bitrate,
		output,
	}
	f.logger.Info("combining source files",
		logging.Int("inputs", len(inputs)),
		logging.String("output", filepath.Base(output)),
		logging.String(logging.FieldEventType, "combine_started"),
	)
	if err := f.runner.Run(runCtx, f.binary, args...); err != nil {
		return fmt.Errorf("combine %s: %w", filepath.Base(output), err)
	}
	return nil
}
