// Package transcribe runs the external audio-to-MIDI transcription model.
package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/jonathan/sheet-transcriber/internal/notes"
)

const (
	// DefaultBinary is the basic-pitch command line entry point.
	DefaultBinary = "basic-pitch"

	// maxLogOutput caps how much tool output is kept on a ToolError.
	maxLogOutput = 4096
)

// BasicPitch invokes the basic-pitch CLI, which writes
// <outdir>/<stem>_basic_pitch.mid for an input audio file.
type BasicPitch struct {
	Binary    string
	ExtraArgs []string
	Logger    *slog.Logger
}

// NewBasicPitch returns a transcriber using binary, or DefaultBinary if empty.
func NewBasicPitch(binary string, logger *slog.Logger) *BasicPitch {
	if binary == "" {
		binary = DefaultBinary
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BasicPitch{Binary: binary, Logger: logger}
}

// Available reports whether the binary can be found in PATH.
func (b *BasicPitch) Available() error {
	if _, err := exec.LookPath(b.Binary); err != nil {
		return &ToolError{
			Tool:    b.Binary,
			Message: "not found in PATH, install it with `pip install basic-pitch`",
			Cause:   err,
		}
	}
	return nil
}

// Transcribe converts sourcePath to a MIDI file at midiPath and returns the
// number of detected notes.
func (b *BasicPitch) Transcribe(ctx context.Context, sourcePath, midiPath string) (int, error) {
	if err := b.Available(); err != nil {
		return 0, err
	}

	// basic-pitch names its output after the input, so run it in a private
	// directory next to the destination and move the result into place.
	workDir, err := os.MkdirTemp(filepath.Dir(midiPath), ".basic-pitch-*")
	if err != nil {
		return 0, &ToolError{Tool: b.Binary, Message: "failed to create working directory", Cause: err}
	}
	defer os.RemoveAll(workDir)

	args := make([]string, 0, len(b.ExtraArgs)+2)
	args = append(args, b.ExtraArgs...)
	args = append(args, workDir, sourcePath)

	cmd := exec.CommandContext(ctx, b.Binary, args...)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	logOutput := tail(stdout.String()+stderr.String(), maxLogOutput)
	if runErr != nil {
		if ctx.Err() != nil {
			runErr = ctx.Err()
		}
		return 0, &ToolError{Tool: b.Binary, Message: "transcription command failed", LogOutput: logOutput, Cause: runErr}
	}

	produced, err := findMIDI(workDir)
	if err != nil {
		return 0, &ToolError{Tool: b.Binary, Message: err.Error(), LogOutput: logOutput}
	}
	if err := os.Rename(produced, midiPath); err != nil {
		return 0, &ToolError{Tool: b.Binary, Message: "failed to move midi output", Cause: err}
	}

	count, err := notes.CountFile(midiPath)
	if err != nil {
		return 0, err
	}
	b.Logger.Debug("basic-pitch finished", "midi", midiPath, "notes", count)
	return count, nil
}

func findMIDI(dir string) (string, error) {
	for _, pattern := range []string{"*.mid", "*.midi"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return "", err
		}
		if len(matches) > 0 {
			return matches[0], nil
		}
	}
	return "", fmt.Errorf("no midi file was generated")
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
