package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/sheet-transcriber/internal/artifacts"
	"github.com/jonathan/sheet-transcriber/internal/config"
)

var sweepMaxAge time.Duration

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove expired uploads and generated files",
	Long:  "Runs a single retention sweep over the upload and output directories, removing files older than --max-age (defaults to RETENTION).",
	RunE:  runSweep,
}

func init() {
	sweepCmd.Flags().DurationVar(&sweepMaxAge, "max-age", 0, "Remove files older than this (overrides RETENTION)")
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	maxAge := cfg.Retention
	if cmd.Flags().Changed("max-age") {
		if sweepMaxAge <= 0 {
			return fmt.Errorf("--max-age must be positive, got %s", sweepMaxAge)
		}
		maxAge = sweepMaxAge
	}

	store := artifacts.NewStore(cfg.UploadDir, cfg.OutputDir, artifacts.WithLogger(cfg.NewLogger(os.Stderr)))
	removed := store.PurgeOlderThan(maxAge)
	fmt.Fprintf(cmd.OutOrStdout(), "removed %d file(s) older than %s\n", removed, maxAge)
	return nil
}
