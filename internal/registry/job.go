// Package registry holds transcription jobs in memory and enforces their
// state transitions.
package registry

import "time"

// Status is the lifecycle state of a job.
type Status string

const (
	StatusUploaded   Status = "uploaded"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// SecondaryStatus records what happened to the best-effort notation step.
type SecondaryStatus string

const (
	SecondaryNotAttempted SecondaryStatus = "not_attempted"
	SecondarySucceeded    SecondaryStatus = "succeeded"
	SecondaryFailed       SecondaryStatus = "failed"
)

// Job is one submitted unit of work. Values returned by the Registry are
// copies; mutating them has no effect on the stored record.
type Job struct {
	ID              string
	Status          Status
	OriginalName    string
	SourcePath      string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	PrimaryPath     string
	SecondaryPath   string
	NoteCount       *int
	SecondaryStatus SecondaryStatus
	SecondaryError  string
	ErrorDetail     string
}

// Paths returns every non-empty file path the job references.
func (j Job) Paths() []string {
	paths := make([]string, 0, 3)
	for _, p := range []string{j.SourcePath, j.PrimaryPath, j.SecondaryPath} {
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

func (j *Job) clone() Job {
	c := *j
	if j.NoteCount != nil {
		n := *j.NoteCount
		c.NoteCount = &n
	}
	return c
}

// Completion carries the outputs of a successful conversion.
type Completion struct {
	PrimaryPath     string
	SecondaryPath   string
	NoteCount       int
	SecondaryStatus SecondaryStatus
	SecondaryError  string
}
