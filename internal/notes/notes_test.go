package notes

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteThenRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "melody.mid")
	in := &Sequence{
		Resolution: 480,
		Tempo:      90,
		Notes: []Note{
			{Key: 60, Velocity: 100, Start: 0, End: 480},
			{Key: 64, Velocity: 90, Start: 0, End: 480},
			{Key: 67, Velocity: 80, Start: 480, End: 1440},
			// Same key re-struck right after it ends.
			{Key: 67, Velocity: 80, Start: 1440, End: 1920},
		},
	}
	require.NoError(t, WriteFile(path, in))

	out, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, uint16(480), out.Resolution)
	assert.InDelta(t, 90.0, out.Tempo, 0.01)
	require.Len(t, out.Notes, 4)

	assert.Equal(t, uint8(60), out.Notes[0].Key)
	assert.Equal(t, uint8(64), out.Notes[1].Key)
	assert.Equal(t, uint64(480), out.Notes[2].Start)
	assert.Equal(t, uint64(960), out.Notes[2].Duration())
	assert.Equal(t, uint64(1440), out.Notes[3].Start)
	assert.Equal(t, uint64(1920), out.Notes[3].End)

	n, err := CountFile(path)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestWriteFile_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "silence.mid")
	require.NoError(t, WriteFile(path, &Sequence{}))

	n, err := CountFile(path)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestReadFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.mid")
	require.NoError(t, os.WriteFile(path, []byte("not midi"), 0o644))

	_, err := ReadFile(path)
	assert.Error(t, err)
}
