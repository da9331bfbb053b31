package main

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/jonathan/sheet-transcriber/internal/db"
	"github.com/jonathan/sheet-transcriber/internal/observability"
)

var (
	historyLimit  int
	historyPretty bool
)

var historyCmd = &cobra.Command{
	Use:   "history [job-id]",
	Short: "Print recorded lifecycle events",
	Long:  "Prints lifecycle events from the event history as JSON lines. With a job id, prints that job's events oldest first; otherwise the most recent events across all jobs, also oldest first. Requires DATABASE_URL.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", db.DefaultEventLimit, "Maximum number of recent events to print")
	historyCmd.Flags().BoolVar(&historyPretty, "pretty", false, "Print a boxed summary instead of JSON lines")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is required")
	}

	ctx := cmd.Context()
	history, err := db.Connect(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer history.Close()

	var events []db.Event
	if len(args) == 1 {
		events, err = history.ListEvents(ctx, args[0])
	} else {
		events, err = history.ListRecentEvents(ctx, historyLimit)
		slices.Reverse(events)
	}
	if err != nil {
		return err
	}

	if historyPretty {
		observability.NewPrinter(cmd.OutOrStdout()).PrintEvents(events)
		return nil
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, e := range events {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
	if len(events) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "no events recorded")
	}
	return nil
}
