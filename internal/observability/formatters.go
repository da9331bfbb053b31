// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jonathan/sheet-transcriber/internal/db"
	"github.com/jonathan/sheet-transcriber/internal/jobs"
	"github.com/jonathan/sheet-transcriber/internal/registry"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintSnapshot outputs a human-readable summary of a transcription job.
func (p *Printer) PrintSnapshot(snap *jobs.Snapshot) {
	if snap == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("ID:       %s\n", snap.ID))
	sb.WriteString(fmt.Sprintf("Source:   %s\n", snap.OriginalName))
	sb.WriteString(fmt.Sprintf("Status:   %s\n", statusLabel(snap.Status)))
	if !snap.CreatedAt.IsZero() && !snap.UpdatedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("Elapsed:  %s\n", snap.UpdatedAt.Sub(snap.CreatedAt).Round(time.Millisecond)))
	}

	switch snap.Status {
	case registry.StatusCompleted:
		sb.WriteString("\n")
		if snap.NotesDetected != nil {
			sb.WriteString(fmt.Sprintf("Notes:    %d\n", *snap.NotesDetected))
		}
		sb.WriteString(fmt.Sprintf("MIDI:     %s\n", snap.MidiFile))
		if snap.MusicXMLFile != "" {
			sb.WriteString(fmt.Sprintf("MusicXML: %s\n", snap.MusicXMLFile))
		} else {
			sb.WriteString(fmt.Sprintf("MusicXML: %s\n", snap.SecondaryStatus))
			if snap.SecondaryError != "" {
				sb.WriteString(fmt.Sprintf("  %s\n", snap.SecondaryError))
			}
		}
	case registry.StatusFailed:
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("Error:    %s\n", snap.Error))
	}

	p.printBox("TRANSCRIPTION", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintEvents outputs the most recent lifecycle events, newest last.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintEvents(events []db.Event) {
	if len(events) == 0 {
		fmt.Fprintf(p.out, "┌%s┐\n", strings.Repeat("─", boxWidth-2))
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, "NO EVENTS RECORDED")
		fmt.Fprintf(p.out, "└%s┘\n", strings.Repeat("─", boxWidth-2))
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d events:\n\n", len(events)))

	shown := events
	if len(shown) > maxItemsToShow {
		shown = shown[len(shown)-maxItemsToShow:]
		sb.WriteString(fmt.Sprintf("... %d earlier events\n", len(events)-maxItemsToShow))
	}
	for _, e := range shown {
		sb.WriteString(fmt.Sprintf("%s  %-10s %s\n", e.RecordedAt.UTC().Format("15:04:05"), e.Kind, shortID(e.JobID)))
		if e.Detail != "" {
			sb.WriteString(fmt.Sprintf("  %s\n", e.Detail))
		}
	}

	p.printBox("LIFECYCLE EVENTS", strings.TrimSuffix(sb.String(), "\n"))
}

func statusLabel(s registry.Status) string {
	switch s {
	case registry.StatusCompleted:
		return "✓ " + string(s)
	case registry.StatusFailed:
		return "✗ " + string(s)
	default:
		return string(s)
	}
}

// shortID keeps the leading segment of a UUID.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
