package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	embedded "github.com/jonathan/sheet-transcriber/schemas"
)

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func setDirs(t *testing.T) (string, string) {
	t.Helper()
	root := t.TempDir()
	uploads := filepath.Join(root, "uploads")
	outputs := filepath.Join(root, "temp")
	require.NoError(t, os.MkdirAll(uploads, 0o755))
	require.NoError(t, os.MkdirAll(outputs, 0o755))
	t.Setenv("UPLOAD_DIR", uploads)
	t.Setenv("OUTPUT_DIR", outputs)
	t.Setenv("DATABASE_URL", "")
	return uploads, outputs
}

func TestSweepCommand(t *testing.T) {
	uploads, outputs := setDirs(t)

	old := filepath.Join(uploads, "old.wav")
	fresh := filepath.Join(outputs, "fresh.mid")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0o644))
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	out, _, err := execute(t, "sweep", "--max-age", "1h")
	require.NoError(t, err)
	assert.Contains(t, out, "removed 1 file(s)")

	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
}

func TestSweepCommand_RejectsNonPositiveAge(t *testing.T) {
	setDirs(t)
	_, _, err := execute(t, "sweep", "--max-age", "0s")
	assert.Error(t, err)
}

func TestTranscribeCommand_MissingFile(t *testing.T) {
	setDirs(t)
	_, _, err := execute(t, "transcribe", filepath.Join(t.TempDir(), "missing.wav"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read audio file")
}

func TestHistoryCommand_RequiresDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, _, err := execute(t, "history")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	valid := filepath.Join(dir, "upload.json")
	invalid := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(valid, []byte(`{
		"transcription_id": "0192b5a4-3c1e-7d2a-9f00-1a2b3c4d5e6f",
		"status": "uploaded",
		"message": "File uploaded successfully. Use /api/transcribe to process.",
		"created_at": "2026-10-14T10:00:00Z"
	}`), 0o644))
	require.NoError(t, os.WriteFile(invalid, []byte(`{"status": "uploaded"}`), 0o644))

	out, _, err := execute(t, "validate", "--schema", embedded.UploadResponse, "--json", valid)
	require.NoError(t, err)
	assert.Contains(t, out, "Validation passed")

	_, errOut, err := execute(t, "validate", "--schema", embedded.UploadResponse, "--json", invalid)
	assert.Error(t, err)
	assert.Contains(t, errOut, "Validation failed")
}
