package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"bookspool/internal/notifications"
	"bookspool/internal/playback"
	"bookspool/internal/position"
)

func newPlayCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "play [BOOK_ID]",
		Short: "Play a book interactively, resuming the saved position when no book is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			books, err := ctx.openCatalog()
			if err != nil {
				return err
			}
			defer books.Close()
			positions, err := ctx.openPositions()
			if err != nil {
				return err
			}
			defer positions.Close()

			svc, err := ctx.libraryService(books)
			if err != nil {
				return err
			}
			client, err := ctx.driveClient()
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			player := playback.NewFFPlay(cfg, logger)
			notifier := notifications.NewService(cfg, logger)
			session := playback.NewSession(cfg, player, client, positions, notifier, logger)

			sessionCtx, cancel := context.WithCancel(runCtx)
			defer cancel()
			go session.Run(sessionCtx)

			listing, err := svc.Books(runCtx)
			if err != nil {
				return err
			}

			if len(args) == 1 {
				book, getErr := svc.Get(runCtx, args[0])
				if getErr != nil {
					return getErr
				}
				if selectErr := session.SelectBook(runCtx, book); selectErr != nil {
					return selectErr
				}
			} else {
				saved, loadErr := positions.Load(runCtx)
				if loadErr != nil {
					if errors.Is(loadErr, position.ErrNoPosition) {
						return errors.New("no saved position; pass a book id (see `bookspool library list`)")
					}
					return loadErr
				}
				if resumeErr := session.ResumeFromSaved(runCtx, saved, listing); resumeErr != nil {
					return resumeErr
				}
				snap, snapErr := session.Snapshot(runCtx)
				if snapErr != nil {
					return snapErr
				}
				if snap.State == playback.StateIdle {
					return fmt.Errorf("saved book %s is no longer in the library", saved.BookID)
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "commands: p play/pause, n next, b previous, +SEC/-SEC skip, s RATE speed, i info, q quit")
			runInteractive(runCtx, session, cmd.InOrStdin(), out)

			cancel()
			<-session.Done()
			return nil
		},
	}
}

// runInteractive consumes stdin commands until quit, EOF, or cancellation.
func runInteractive(ctx context.Context, session *playback.Session, in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := dispatch(ctx, session, line, out); err != nil {
			if errors.Is(err, errQuit) {
				return
			}
			fmt.Fprintln(out, "error:", err)
		}
	}
}

var errQuit = errors.New("quit")

func dispatch(ctx context.Context, session *playback.Session, line string, out io.Writer) error {
	fields := strings.Fields(line)
	switch fields[0] {
	case "q", "quit":
		return errQuit
	case "p", "play", "pause":
		return session.PlayPause(ctx)
	case "n", "next":
		boundary, err := session.Advance(ctx, playback.Next)
		if err != nil {
			return err
		}
		if boundary == playback.AtEnd {
			fmt.Fprintln(out, "already at the last segment")
		}
		return nil
	case "b", "back":
		boundary, err := session.Advance(ctx, playback.Previous)
		if err != nil {
			return err
		}
		if boundary == playback.AtStart {
			fmt.Fprintln(out, "already at the first segment")
		}
		return nil
	case "s", "speed":
		if len(fields) != 2 {
			return errors.New("usage: s RATE")
		}
		rate, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return fmt.Errorf("bad rate %q", fields[1])
		}
		return session.SetSpeed(ctx, rate)
	case "i", "info":
		snap, err := session.Snapshot(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s [%s] segment %d/%d at %s, speed %.2fx\n",
			snap.BookTitle, snap.State,
			snap.SegmentIndex+1, snap.SegmentCount,
			formatSegmentDuration(float64(snap.OffsetMillis)/1000),
			snap.Speed)
		return nil
	default:
		seconds, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil || seconds == 0 {
			return fmt.Errorf("unknown command %q", fields[0])
		}
		return session.SkipBy(ctx, seconds*1000)
	}
}
