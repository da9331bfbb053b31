package gateway

import (
	"errors"
	"fmt"
)

// ErrGatewayClosed is returned by Convert after Shutdown.
var ErrGatewayClosed = errors.New("conversion gateway is shut down")

// ConversionError reports a failure of the primary conversion step.
type ConversionError struct {
	JobID  string
	Detail string
	Cause  error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("transcription failed: %s", e.Detail)
}

func (e *ConversionError) Unwrap() error {
	return e.Cause
}
