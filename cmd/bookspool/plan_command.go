package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"bookspool/internal/planner"
)

func newPlanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "plan DIR",
		Short: "Preview the segment plan for a directory of downloaded audio files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			files, err := scanSourceDir(args[0], cfg.Source.EstimatedBitrateKbps)
			if err != nil {
				return err
			}

			bounds := planner.Bounds{
				MaxSegmentBytes:   cfg.MaxSegmentBytes(),
				MinSegmentSeconds: cfg.MinSegmentSeconds(),
				MaxSegmentSeconds: cfg.MaxSegmentSeconds(),
			}
			plan, err := planner.Compute(files, bounds)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderPlanTable(plan))
			fmt.Fprintf(out, "%d source files, %s total, combine required: %s\n",
				plan.Stats.FileCount,
				formatSegmentDuration(plan.Stats.TotalSeconds),
				yesNo(plan.Stats.CombineRequired))
			return nil
		},
	}
}

// scanSourceDir lists the audio files in dir in name order, estimating each
// duration from its size at the configured bitrate.
func scanSourceDir(dir string, bitrateKbps int) ([]planner.SourceFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read source dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".mp3") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	files := make([]planner.SourceFile, 0, len(names))
	for i, name := range names {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", name, err)
		}
		files = append(files, planner.SourceFile{
			Index:           i,
			SizeBytes:       info.Size(),
			DurationSeconds: float64(info.Size()*8) / float64(bitrateKbps*1000),
		})
	}
	return files, nil
}

func renderPlanTable(plan planner.Plan) string {
	rows := make([][]string, 0, len(plan.Entries))
	for i, entry := range plan.Entries {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			entry.Kind.String(),
			strconv.Itoa(len(entry.Files)),
			formatSegmentDuration(entry.DurationSeconds()),
			formatMiB(entry.SizeBytes()),
		})
	}
	return renderTable(
		[]string{"#", "KIND", "FILES", "DURATION", "SIZE"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignRight},
	)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
