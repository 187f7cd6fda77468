package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iBuildiPawn/RustTaTor/internal/history"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded exit nodes",
		Long: `History reads the exit-node records written by "rustator run --history"
and prints them, newest first.

Examples:
  # Last 20 exits
  rustator history

  # Last 100 exits as JSON
  rustator history --limit 100 --json

  # How often each exit address was seen
  rustator history --counts`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", 20,
		"Maximum number of records to show")
	cmd.Flags().Bool("counts", false,
		"Show per-address usage counts instead of individual records")
	cmd.Flags().String("history-dir", "",
		"Directory of the history database (default: XDG data directory)")
	addFormatFlags(cmd)

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	dir, err := cmd.Flags().GetString("history-dir")
	if err != nil {
		return err
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	counts, err := cmd.Flags().GetBool("counts")
	if err != nil {
		return err
	}
	writer, err := newReportWriter(cmd, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	path := historyPath(dir)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("no history database at %s (record one with 'rustator run --history')", path)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := history.Open(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer store.Close()

	if counts {
		return writeCounts(ctx, cmd, store)
	}

	records, err := store.RecentExits(ctx, limit)
	if err != nil {
		return err
	}
	_, err = writer.WriteHistory(records)
	return err
}

// writeCounts prints the per-address usage summary.
func writeCounts(ctx context.Context, cmd *cobra.Command, store *history.Store) error {
	addressCounts, err := store.ExitCounts(ctx)
	if err != nil {
		return err
	}
	rotations, err := store.RotationCount(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Rotations recorded: %d\n", rotations)
	if len(addressCounts) == 0 {
		fmt.Fprintln(out, "No exit records.")
		return nil
	}
	fmt.Fprintf(out, "Exit addresses (%d distinct):\n", len(addressCounts))
	for _, ac := range addressCounts {
		fmt.Fprintf(out, "  %5d  %s\n", ac.Count, ac.Address)
	}
	return nil
}
