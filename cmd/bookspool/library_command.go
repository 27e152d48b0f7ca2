package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"bookspool/internal/catalog"
)

func newLibraryCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "library",
		Short: "Browse the books available in the remote store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newLibraryListCommand(ctx))
	cmd.AddCommand(newLibraryRemoveCommand(ctx))
	return cmd
}

func newLibraryListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List books with their segment counts and durations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openCatalog()
			if err != nil {
				return err
			}
			defer store.Close()

			svc, err := ctx.libraryService(store)
			if err != nil {
				return err
			}
			books, err := svc.Books(cmd.Context())
			if err != nil {
				return err
			}
			if len(books) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no books in the library")
				return nil
			}

			rows := make([][]string, 0, len(books))
			for _, book := range books {
				duration := "-"
				if total := book.TotalDurationSeconds(); total > 0 {
					duration = formatSegmentDuration(total)
				}
				rows = append(rows, []string{
					book.ID,
					book.DisplayName,
					strconv.Itoa(book.SegmentCount()),
					duration,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "TITLE", "SEGMENTS", "DURATION"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
			))
			return nil
		},
	}
}

func newLibraryRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove BOOK_ID",
		Short: "Remove a book from the local catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openCatalog()
			if err != nil {
				return err
			}
			defer store.Close()

			runCtx := cmd.Context()
			if err := store.DeleteBook(runCtx, args[0]); err != nil {
				if errors.Is(err, catalog.ErrNotFound) {
					return fmt.Errorf("no book %q in the local catalog", args[0])
				}
				return err
			}

			positions, err := ctx.openPositions()
			if err != nil {
				return err
			}
			defer positions.Close()
			if saved, loadErr := positions.Load(runCtx); loadErr == nil && saved.BookID == args[0] {
				if clearErr := positions.Clear(runCtx); clearErr != nil {
					return clearErr
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			return nil
		},
	}
}
