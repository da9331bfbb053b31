package transcribe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/sheet-transcriber/internal/notes"
)

// writeScript creates an executable shell script standing in for basic-pitch.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixtures require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "fake-basic-pitch")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestBasicPitch_Transcribe(t *testing.T) {
	fixture := filepath.Join(t.TempDir(), "fixture.mid")
	require.NoError(t, notes.WriteFile(fixture, &notes.Sequence{
		Notes: []notes.Note{
			{Key: 60, Velocity: 100, Start: 0, End: 480},
			{Key: 62, Velocity: 100, Start: 480, End: 960},
		},
	}))
	t.Setenv("FIXTURE_MID", fixture)

	bin := writeScript(t, `cp "$FIXTURE_MID" "$1/$(basename "$2" .wav)_basic_pitch.mid"`+"\n")
	outDir := t.TempDir()
	midiPath := filepath.Join(outDir, "job-1.mid")

	bp := NewBasicPitch(bin, nil)
	n, err := bp.Transcribe(context.Background(), "/uploads/job-1.wav", midiPath)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.FileExists(t, midiPath)

	// The private working directory is cleaned up.
	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestBasicPitch_CommandFails(t *testing.T) {
	bin := writeScript(t, "echo 'could not decode audio' >&2\nexit 3\n")

	bp := NewBasicPitch(bin, nil)
	_, err := bp.Transcribe(context.Background(), "/uploads/x.wav", filepath.Join(t.TempDir(), "x.mid"))
	require.Error(t, err)

	var terr *ToolError
	require.True(t, errors.As(err, &terr))
	assert.Contains(t, terr.LogOutput, "could not decode audio")
	assert.Equal(t, "transcription command failed", terr.Message)
}

func TestBasicPitch_NoOutput(t *testing.T) {
	bin := writeScript(t, "exit 0\n")

	bp := NewBasicPitch(bin, nil)
	_, err := bp.Transcribe(context.Background(), "/uploads/x.wav", filepath.Join(t.TempDir(), "x.mid"))
	var terr *ToolError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "no midi file was generated", terr.Message)
}

func TestBasicPitch_MissingBinary(t *testing.T) {
	bp := NewBasicPitch(filepath.Join(t.TempDir(), "does-not-exist"), nil)
	assert.Error(t, bp.Available())

	_, err := bp.Transcribe(context.Background(), "/uploads/x.wav", filepath.Join(t.TempDir(), "x.mid"))
	var terr *ToolError
	assert.True(t, errors.As(err, &terr))
}

func TestTail(t *testing.T) {
	assert.Equal(t, "abc", tail("abc", 5))
	assert.Equal(t, "cde", tail("abcde", 3))
}
