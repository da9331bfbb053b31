package jobs

import (
	"path/filepath"
	"time"

	"github.com/jonathan/sheet-transcriber/internal/registry"
)

// Snapshot is the externally visible view of a job.
type Snapshot struct {
	ID              string                   `json:"id"`
	Status          registry.Status          `json:"status"`
	CreatedAt       time.Time                `json:"created_at"`
	UpdatedAt       time.Time                `json:"updated_at"`
	OriginalName    string                   `json:"original_name"`
	MidiFile        string                   `json:"midi_file,omitempty"`
	MusicXMLFile    string                   `json:"musicxml_file,omitempty"`
	NotesDetected   *int                     `json:"notes_detected,omitempty"`
	SecondaryStatus registry.SecondaryStatus `json:"secondary_status"`
	SecondaryError  string                   `json:"secondary_error,omitempty"`
	Error           string                   `json:"error,omitempty"`
}

// NewSnapshot builds a snapshot from a registry job. Artifact paths are
// reduced to file names so server directories are not exposed.
func NewSnapshot(j registry.Job) Snapshot {
	s := Snapshot{
		ID:              j.ID,
		Status:          j.Status,
		CreatedAt:       j.CreatedAt,
		UpdatedAt:       j.UpdatedAt,
		OriginalName:    j.OriginalName,
		NotesDetected:   j.NoteCount,
		SecondaryStatus: j.SecondaryStatus,
		SecondaryError:  j.SecondaryError,
		Error:           j.ErrorDetail,
	}
	if j.PrimaryPath != "" {
		s.MidiFile = filepath.Base(j.PrimaryPath)
	}
	if j.SecondaryPath != "" {
		s.MusicXMLFile = filepath.Base(j.SecondaryPath)
	}
	return s
}
