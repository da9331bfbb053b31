package jobs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the job or the requested artifact does not exist.
	ErrNotFound = errors.New("transcription not found")
	// ErrConflict is returned when a conversion for the job is already running.
	ErrConflict = errors.New("transcription is already processing")
	// ErrNotReady is returned when artifacts are requested before completion.
	ErrNotReady = errors.New("transcription not completed")
)

func notFound(id string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}
