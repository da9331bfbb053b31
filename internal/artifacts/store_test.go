package artifacts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	root := t.TempDir()
	s := NewStore(filepath.Join(root, "uploads"), filepath.Join(root, "temp"), opts...)
	require.NoError(t, s.EnsureDirs())
	return s
}

func listFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestAccept_PersistsFile(t *testing.T) {
	s := newTestStore(t)

	up, err := s.Accept("Song.WAV", []byte("RIFFdata"))
	require.NoError(t, err)
	assert.NotEmpty(t, up.ID)
	assert.Equal(t, "Song.WAV", up.OriginalName)
	assert.Equal(t, s.SourcePath(up.ID, ".wav"), up.Path)
	assert.Equal(t, int64(8), up.Size)

	data, err := os.ReadFile(up.Path)
	require.NoError(t, err)
	assert.Equal(t, "RIFFdata", string(data))

	// No temp files left behind.
	assert.Equal(t, []string{filepath.Base(up.Path)}, listFiles(t, s.UploadDir()))
}

func TestAccept_AllowedExtensions(t *testing.T) {
	s := newTestStore(t)
	for _, name := range []string{"a.wav", "b.MP3", "c.ogg", "d.Flac", "e.m4a"} {
		_, err := s.Accept(name, []byte("x"))
		assert.NoError(t, err, name)
	}
}

func TestAccept_RejectsUnsupportedFormat(t *testing.T) {
	s := newTestStore(t)

	for _, name := range []string{"notes.txt", "noext", "track.wav.exe"} {
		_, err := s.Accept(name, []byte("x"))
		require.Error(t, err)

		var verr *ValidationError
		require.True(t, errors.As(err, &verr), name)
		assert.Equal(t, UnsupportedFormat, verr.Kind)
	}
	assert.Empty(t, listFiles(t, s.UploadDir()))
}

func TestAccept_RejectsOversizedPayload(t *testing.T) {
	s := newTestStore(t, WithMaxBytes(16))

	_, err := s.Accept("big.wav", make([]byte, 17))
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, PayloadTooLarge, verr.Kind)
	assert.Empty(t, listFiles(t, s.UploadDir()))

	// Exactly at the cap is accepted.
	_, err = s.Accept("edge.wav", make([]byte, 16))
	assert.NoError(t, err)
}

func TestAccept_UniqueIDs(t *testing.T) {
	s := newTestStore(t)

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			up, err := s.Accept("x.wav", []byte("x"))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			assert.False(t, seen[up.ID], "duplicate id %s", up.ID)
			seen[up.ID] = true
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 50)
}

func TestPathFor(t *testing.T) {
	s := NewStore("/data/uploads", "/data/temp")
	assert.Equal(t, "/data/temp/abc.mid", s.PathFor("abc", RolePrimary))
	assert.Equal(t, "/data/temp/abc.musicxml", s.PathFor("abc", RoleSecondary))
	assert.Equal(t, "/data/uploads/abc.flac", s.SourcePath("abc", ".FLAC"))
}

func TestRemove_Idempotent(t *testing.T) {
	s := newTestStore(t)
	up, err := s.Accept("x.wav", []byte("x"))
	require.NoError(t, err)

	require.NoError(t, s.Remove(up.Path))
	assert.False(t, s.Exists(up.Path))
	assert.NoError(t, s.Remove(up.Path))
	assert.NoError(t, s.Remove(""))
}

func TestOpen_Missing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Open(filepath.Join(s.OutputDir(), "missing.mid"))
	assert.ErrorIs(t, err, ErrArtifactNotFound)
}

func TestPurgeOlderThan(t *testing.T) {
	s := newTestStore(t)

	oldUpload := filepath.Join(s.UploadDir(), "old.wav")
	newUpload := filepath.Join(s.UploadDir(), "new.wav")
	oldOutput := filepath.Join(s.OutputDir(), "old.mid")
	newOutput := filepath.Join(s.OutputDir(), "new.mid")
	for _, p := range []string{oldUpload, newUpload, oldOutput, newOutput} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}

	past := time.Now().Add(-25 * time.Hour)
	require.NoError(t, os.Chtimes(oldUpload, past, past))
	require.NoError(t, os.Chtimes(oldOutput, past, past))

	// Subdirectories are never touched.
	require.NoError(t, os.Mkdir(filepath.Join(s.OutputDir(), "nested"), 0o755))

	removed := s.PurgeOlderThan(24 * time.Hour)
	assert.Equal(t, 2, removed)

	assert.Equal(t, []string{"new.wav"}, listFiles(t, s.UploadDir()))
	assert.ElementsMatch(t, []string{"new.mid", "nested"}, listFiles(t, s.OutputDir()))
}

func TestPurgeOlderThan_MissingDirs(t *testing.T) {
	root := t.TempDir()
	s := NewStore(filepath.Join(root, "nope"), filepath.Join(root, "nada"))
	assert.Equal(t, 0, s.PurgeOlderThan(time.Hour))
}

func TestRunSweeper_Kick(t *testing.T) {
	s := newTestStore(t)

	old := filepath.Join(s.UploadDir(), "old.wav")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0o644))
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.RunSweeper(ctx, time.Hour, 24*time.Hour)
	}()

	s.Kick()
	assert.Eventually(t, func() bool { return !s.Exists(old) }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}
