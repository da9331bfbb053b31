package server

import (
	"errors"
	"net/http"

	"github.com/jonathan/sheet-transcriber/internal/artifacts"
	"github.com/jonathan/sheet-transcriber/internal/gateway"
	"github.com/jonathan/sheet-transcriber/internal/jobs"
)

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var verr *artifacts.ValidationError
	var cerr *gateway.ConversionError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &verr):
		if verr.Kind == artifacts.PayloadTooLarge {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusBadRequest
	case errors.Is(err, jobs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, jobs.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, jobs.ErrNotReady):
		return http.StatusBadRequest
	case errors.Is(err, gateway.ErrGatewayClosed):
		return http.StatusServiceUnavailable
	case errors.As(err, &cerr):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage is the client-facing text for err. Unclassified errors are
// not echoed since they may carry server paths.
func errorMessage(err error) string {
	var verr *artifacts.ValidationError
	var cerr *gateway.ConversionError
	switch {
	case errors.As(err, &verr):
		return verr.Message
	case errors.Is(err, jobs.ErrNotFound):
		return "Transcription not found"
	case errors.Is(err, jobs.ErrConflict):
		return "Transcription is already processing"
	case errors.Is(err, jobs.ErrNotReady):
		return "Transcription not completed"
	case errors.Is(err, gateway.ErrGatewayClosed):
		return "Service is shutting down"
	case errors.As(err, &cerr):
		return cerr.Error()
	default:
		return "Internal server error"
	}
}
