package server

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jonathan/sheet-transcriber/internal/artifacts"
	"github.com/jonathan/sheet-transcriber/internal/jobs"
	"github.com/jonathan/sheet-transcriber/internal/registry"
)

// multipartOverhead is allowed on top of the upload cap for form framing.
const multipartOverhead = 1 << 20

// UploadResponse represents the response for /api/upload
type UploadResponse struct {
	TranscriptionID string `json:"transcription_id"`
	Status          string `json:"status"`
	Message         string `json:"message"`
	CreatedAt       string `json:"created_at"`
}

// TranscribeResponse represents the response for /api/transcribe/{id}
type TranscribeResponse struct {
	jobs.Snapshot
	Message string `json:"message"`
}

// downloadRequest holds the validated path parameters of a download.
type downloadRequest struct {
	ID       string `validate:"required,uuid"`
	FileType string `validate:"required,oneof=midi musicxml"`
}

var validate = validator.New()

// handleUpload accepts a multipart audio upload and registers a job
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			s.errorResponse(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("File too large. Maximum size: %dMB", s.maxUploadBytes/(1024*1024)))
			return
		}
		s.errorResponse(w, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, s.maxUploadBytes+1))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Failed to read upload: "+err.Error())
		return
	}

	snap, err := s.jobs.Submit(r.Context(), header.Filename, content)
	if err != nil {
		s.failure(w, r, "upload rejected", err)
		return
	}

	s.jsonResponse(w, http.StatusOK, UploadResponse{
		TranscriptionID: snap.ID,
		Status:          string(snap.Status),
		Message:         "File uploaded successfully. Use /api/transcribe to process.",
		CreatedAt:       snap.CreatedAt.Format(time.RFC3339Nano),
	})
}

// handleTranscribe runs the conversion and blocks until it finishes
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	id, ok := s.jobID(w, r)
	if !ok {
		return
	}

	message := "Transcription completed successfully"
	if before, err := s.jobs.Inspect(r.Context(), id); err == nil && before.Status == registry.StatusCompleted {
		message = "Already transcribed"
	}

	snap, err := s.jobs.Process(r.Context(), id)
	if err != nil {
		s.failure(w, r, "transcription request failed", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, TranscribeResponse{Snapshot: snap, Message: message})
}

// handleStatus returns the snapshot of a job
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := s.jobID(w, r)
	if !ok {
		return
	}

	snap, err := s.jobs.Inspect(r.Context(), id)
	if err != nil {
		s.failure(w, r, "status lookup failed", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, snap)
}

// handleDownload streams a generated artifact
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	req := downloadRequest{ID: r.PathValue("id"), FileType: r.PathValue("file_type")}
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Field() == "ID" {
			s.errorResponse(w, http.StatusNotFound, "Transcription not found")
			return
		}
		s.errorResponse(w, http.StatusBadRequest, "Invalid file type. Use 'midi' or 'musicxml'")
		return
	}

	art, err := s.jobs.RetrieveArtifact(r.Context(), req.ID, artifacts.Role(req.FileType))
	if err != nil {
		s.failure(w, r, "download failed", err)
		return
	}
	defer art.File.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": art.Name}))
	http.ServeContent(w, r, art.Name, time.Time{}, art.File)
}

// handleDelete disposes of a job and its files
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := s.jobID(w, r)
	if !ok {
		return
	}

	if err := s.jobs.Dispose(r.Context(), id); err != nil {
		s.failure(w, r, "delete failed", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"message": "Transcription deleted successfully"})
}

// jobID reads the {id} path value. Identifiers are UUIDs, so anything else
// cannot name a job.
func (s *Server) jobID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		s.errorResponse(w, http.StatusNotFound, "Transcription not found")
		return "", false
	}
	return id, true
}

// failure maps err to a status and logs server-side failures.
func (s *Server) failure(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, "path", r.URL.Path, "error", err)
	} else {
		s.logger.Debug(msg, "path", r.URL.Path, "error", err)
	}
	s.errorResponse(w, status, errorMessage(err))
}
