package notation

import (
	"context"
	"encoding/xml"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/sheet-transcriber/internal/notes"
)

func renderSequence(t *testing.T, seq *notes.Sequence) *scorePartwise {
	t.Helper()
	dir := t.TempDir()
	midiPath := filepath.Join(dir, "job-1.mid")
	outPath := filepath.Join(dir, "job-1.musicxml")
	require.NoError(t, notes.WriteFile(midiPath, seq))

	require.NoError(t, NewRenderer().Render(context.Background(), midiPath, outPath))

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), xml.Header))
	assert.Contains(t, string(data), "<!DOCTYPE score-partwise")

	var score scorePartwise
	require.NoError(t, xml.Unmarshal(data, &score))
	return &score
}

func measureDuration(m measure) int {
	total := 0
	for _, n := range m.Notes {
		if n.Chord == nil {
			total += n.Duration
		}
	}
	return total
}

func TestRender_SimpleMelody(t *testing.T) {
	q := uint64(notes.DefaultResolution)
	score := renderSequence(t, &notes.Sequence{
		Notes: []notes.Note{
			{Key: 60, Velocity: 90, Start: 0, End: q},
			{Key: 62, Velocity: 90, Start: q, End: 2 * q},
			{Key: 64, Velocity: 90, Start: 2 * q, End: 4 * q},
		},
	})

	assert.Equal(t, "4.0", score.Version)
	require.NotNil(t, score.Work)
	assert.Equal(t, "job-1", score.Work.Title)
	require.Len(t, score.Parts, 1)
	measures := score.Parts[0].Measures
	require.Len(t, measures, 1)

	m := measures[0]
	require.NotNil(t, m.Attributes)
	assert.Equal(t, 4, m.Attributes.Divisions)
	assert.Equal(t, "G", m.Attributes.Clef.Sign)
	require.NotNil(t, m.Direction)
	assert.Equal(t, 120, m.Direction.Sound.Tempo)

	require.Len(t, m.Notes, 3)
	assert.Equal(t, "C", m.Notes[0].Pitch.Step)
	assert.Equal(t, 4, m.Notes[0].Pitch.Octave)
	assert.Equal(t, "quarter", m.Notes[0].Type)
	assert.Equal(t, "D", m.Notes[1].Pitch.Step)
	assert.Equal(t, "E", m.Notes[2].Pitch.Step)
	assert.Equal(t, "half", m.Notes[2].Type)
	assert.Equal(t, 16, measureDuration(m))
}

func TestRender_ChordRestAndAccidental(t *testing.T) {
	q := uint64(notes.DefaultResolution)
	score := renderSequence(t, &notes.Sequence{
		Notes: []notes.Note{
			{Key: 61, Velocity: 90, Start: q, End: 2 * q},
			{Key: 65, Velocity: 90, Start: q, End: 2 * q},
		},
	})

	m := score.Parts[0].Measures[0]
	require.GreaterOrEqual(t, len(m.Notes), 3)
	assert.NotNil(t, m.Notes[0].Rest, "leading gap is a rest")
	assert.Equal(t, 4, m.Notes[0].Duration)

	assert.Equal(t, "C", m.Notes[1].Pitch.Step)
	assert.Equal(t, 1, m.Notes[1].Pitch.Alter)
	assert.Nil(t, m.Notes[1].Chord)
	assert.Equal(t, "F", m.Notes[2].Pitch.Step)
	assert.NotNil(t, m.Notes[2].Chord)

	assert.Equal(t, 16, measureDuration(m), "final measure is padded with rests")
}

func TestRender_TiesAcrossBarline(t *testing.T) {
	q := uint64(notes.DefaultResolution)
	score := renderSequence(t, &notes.Sequence{
		Notes: []notes.Note{
			{Key: 72, Velocity: 90, Start: 3 * q, End: 5 * q},
		},
	})

	measures := score.Parts[0].Measures
	require.Len(t, measures, 2)
	for _, m := range measures {
		assert.Equal(t, 16, measureDuration(m))
	}

	last := measures[0].Notes[len(measures[0].Notes)-1]
	require.NotNil(t, last.Pitch)
	require.Len(t, last.Ties, 1)
	assert.Equal(t, "start", last.Ties[0].Type)

	first := measures[1].Notes[0]
	require.NotNil(t, first.Pitch)
	require.Len(t, first.Ties, 1)
	assert.Equal(t, "stop", first.Ties[0].Type)
}

func TestRender_LowRegisterUsesBassClef(t *testing.T) {
	q := uint64(notes.DefaultResolution)
	score := renderSequence(t, &notes.Sequence{
		Notes: []notes.Note{
			{Key: 40, Velocity: 90, Start: 0, End: q},
			{Key: 43, Velocity: 90, Start: q, End: 2 * q},
		},
	})
	m := score.Parts[0].Measures[0]
	assert.Equal(t, "F", m.Attributes.Clef.Sign)
	assert.Equal(t, 4, m.Attributes.Clef.Line)
}

func TestRender_OverlapIsTruncated(t *testing.T) {
	q := uint64(notes.DefaultResolution)
	onsets := quantize(&notes.Sequence{
		Resolution: notes.DefaultResolution,
		Notes: []notes.Note{
			{Key: 60, Start: 0, End: 4 * q},
			{Key: 64, Start: q, End: 2 * q},
		},
	})
	require.Len(t, onsets, 2)
	assert.Equal(t, 4, onsets[0].duration)
	assert.Equal(t, 4, onsets[1].duration)
}

func TestRender_NoNotes(t *testing.T) {
	dir := t.TempDir()
	midiPath := filepath.Join(dir, "empty.mid")
	require.NoError(t, notes.WriteFile(midiPath, &notes.Sequence{}))

	err := NewRenderer().Render(context.Background(), midiPath, filepath.Join(dir, "out.musicxml"))
	assert.True(t, errors.Is(err, ErrNoNotes))
	assert.NoFileExists(t, filepath.Join(dir, "out.musicxml"))
}

func TestRender_MissingInput(t *testing.T) {
	err := NewRenderer().Render(context.Background(), filepath.Join(t.TempDir(), "nope.mid"), filepath.Join(t.TempDir(), "out.musicxml"))
	assert.Error(t, err)
}
