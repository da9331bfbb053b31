package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jonathan/sheet-transcriber/internal/config"
	"github.com/jonathan/sheet-transcriber/internal/observability"
	"github.com/jonathan/sheet-transcriber/internal/registry"
	"github.com/jonathan/sheet-transcriber/internal/schemas"
	embedded "github.com/jonathan/sheet-transcriber/schemas"
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <audio-file>",
	Short: "Transcribe a local audio file",
	Long:  "Submits a local audio file, runs the conversion synchronously and prints the resulting snapshot as JSON. Generated files are left in OUTPUT_DIR.",
	Args:  cobra.ExactArgs(1),
	RunE:  runTranscribe,
}

var transcribeVerbose bool

func init() {
	transcribeCmd.Flags().BoolVarP(&transcribeVerbose, "verbose", "v", false, "Print a readable summary to stderr")
	rootCmd.AddCommand(transcribeCmd)
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	content, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read audio file %s: %w", args[0], err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	snap, err := a.service.Submit(ctx, filepath.Base(args[0]), content)
	if err != nil {
		return err
	}
	snap, procErr := a.service.Process(ctx, snap.ID)
	if procErr != nil && snap.ID == "" {
		return procErr
	}

	out, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := schemas.Validate(embedded.JobSnapshot, out); err != nil {
		return fmt.Errorf("snapshot failed validation: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	if transcribeVerbose {
		observability.NewPrinter(cmd.ErrOrStderr()).PrintSnapshot(&snap)
	}

	if procErr != nil {
		return procErr
	}
	if snap.Status != registry.StatusCompleted {
		return fmt.Errorf("transcription ended in status %s", snap.Status)
	}
	return nil
}
