package main

import (
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"bookspool/internal/combine"
	"bookspool/internal/fetch"
	"bookspool/internal/notifications"
	"bookspool/internal/pipeline"
)

func newFetchCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "fetch URL",
		Short: "Download a book from the web source, plan its segments, and upload it",
		Args:  cobra.ExactArgs(1),
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

			cfg.Source.BaseURL = args[0]
			fetcher := fetch.NewClient(cfg, logger)
			combiner := combine.NewFFmpeg(cfg, logger)
			store, err := ctx.driveClient()
			if err != nil {
				return err
			}
			notifier := notifications.NewService(cfg, logger)

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			job := pipeline.New(cfg, fetcher, combiner, store, books, notifier, logger)
			result, err := job.Run(runCtx, dryRun)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case result.DryRun:
				fmt.Fprintf(out, "%s: %d source files found\n", result.DisplayTitle, len(result.SourceURLs))
				for _, url := range result.SourceURLs {
					fmt.Fprintln(out, " ", url)
				}
			case result.Skipped:
				fmt.Fprintf(out, "%s: remote segments already match the plan, nothing to do\n", result.DisplayTitle)
			default:
				fmt.Fprintf(out, "%s: %d segments uploaded\n", result.DisplayTitle, result.Uploaded)
				fmt.Fprintln(out, renderPlanTable(result.Plan))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Discover source files without downloading")
	return cmd
}

func formatSegmentDuration(seconds float64) string {
	total := int(seconds + 0.5)
	return fmt.Sprintf("%d:%02d:%02d", total/3600, (total/60)%60, total%60)
}

func formatMiB(bytes int64) string {
	return strconv.FormatFloat(float64(bytes)/(1024*1024), 'f', 1, 64) + " MiB"
}
