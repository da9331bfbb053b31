package artifacts

import (
	"errors"
	"fmt"
)

// ErrArtifactNotFound is returned when an artifact file is absent from disk.
var ErrArtifactNotFound = errors.New("artifact not found")

// ValidationKind identifies why an upload was rejected.
type ValidationKind string

const (
	UnsupportedFormat ValidationKind = "unsupported_format"
	PayloadTooLarge   ValidationKind = "payload_too_large"
)

// ValidationError is returned by Accept before anything is written to disk.
type ValidationError struct {
	Kind    ValidationKind
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Kind, e.Message)
}

// StoreError wraps an I/O failure while persisting or reading an artifact.
type StoreError struct {
	Message string
	Cause   error
}

func (e *StoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("artifact store: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("artifact store: %s", e.Message)
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}
