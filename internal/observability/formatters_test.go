package observability

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/sheet-transcriber/internal/db"
	"github.com/jonathan/sheet-transcriber/internal/jobs"
	"github.com/jonathan/sheet-transcriber/internal/registry"
)

func TestPrintSnapshot_Completed(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	n := 42
	created := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	p.PrintSnapshot(&jobs.Snapshot{
		ID:              "0192b5a4-3c1e-7d2a-9f00-1a2b3c4d5e6f",
		Status:          registry.StatusCompleted,
		CreatedAt:       created,
		UpdatedAt:       created.Add(1500 * time.Millisecond),
		OriginalName:    "melody.wav",
		MidiFile:        "0192b5a4-3c1e-7d2a-9f00-1a2b3c4d5e6f.mid",
		MusicXMLFile:    "0192b5a4-3c1e-7d2a-9f00-1a2b3c4d5e6f.musicxml",
		NotesDetected:   &n,
		SecondaryStatus: registry.SecondarySucceeded,
	})
	output := buf.String()

	assert.Contains(t, output, "TRANSCRIPTION")
	assert.Contains(t, output, "✓ completed")
	assert.Contains(t, output, "melody.wav")
	assert.Contains(t, output, "Notes:    42")
	assert.Contains(t, output, "1.5s")
	assert.Contains(t, output, ".musicxml")
}

func TestPrintSnapshot_SecondaryMissing(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintSnapshot(&jobs.Snapshot{
		ID:              "abc",
		Status:          registry.StatusCompleted,
		MidiFile:        "abc.mid",
		SecondaryStatus: registry.SecondaryFailed,
		SecondaryError:  "no notes to render",
	})
	output := buf.String()

	assert.Contains(t, output, "MusicXML: "+string(registry.SecondaryFailed))
	assert.Contains(t, output, "no notes to render")
}

func TestPrintSnapshot_Failed(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintSnapshot(&jobs.Snapshot{ID: "abc", Status: registry.StatusFailed, Error: "basic-pitch exited with status 1"})
	output := buf.String()

	assert.Contains(t, output, "✗ failed")
	assert.Contains(t, output, "basic-pitch exited")
	assert.NotContains(t, output, "MIDI:")
}

func TestPrintSnapshot_Nil(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintSnapshot(nil)
	assert.Empty(t, buf.String())
}

func TestPrintEvents(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	at := time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)
	var events []db.Event
	for i, kind := range []string{db.EventSubmitted, db.EventProcessing, db.EventCompleted} {
		events = append(events, db.Event{
			ID:         int64(i + 1),
			JobID:      "0192b5a4-3c1e-7d2a-9f00-1a2b3c4d5e6f",
			Kind:       kind,
			RecordedAt: at.Add(time.Duration(i) * time.Second),
		})
	}
	events[2].Detail = "ready"

	p.PrintEvents(events)
	output := buf.String()

	assert.Contains(t, output, "LIFECYCLE EVENTS")
	assert.Contains(t, output, "3 events")
	assert.Contains(t, output, "09:30:02")
	assert.Contains(t, output, "0192b5a4")
	assert.NotContains(t, output, "1a2b3c4d5e6f")
	assert.Contains(t, output, "ready")
}

func TestPrintEvents_Truncates(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	var events []db.Event
	for i := 0; i < maxItemsToShow+3; i++ {
		events = append(events, db.Event{JobID: fmt.Sprintf("job%d", i), Kind: db.EventSubmitted})
	}
	p.PrintEvents(events)
	output := buf.String()

	assert.Contains(t, output, "... 3 earlier events")
	assert.NotContains(t, output, "job0")
	assert.Contains(t, output, fmt.Sprintf("job%d", maxItemsToShow+2))
}

func TestPrintEvents_Empty(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintEvents(nil)
	assert.Contains(t, buf.String(), "NO EVENTS RECORDED")
}

func TestPrintBox_TruncatesLongLines(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.printBox("TITLE", strings.Repeat("x", boxWidth*2))
	output := buf.String()

	assert.Contains(t, output, "...")
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		assert.LessOrEqual(t, len([]rune(line)), boxWidth)
	}
}
