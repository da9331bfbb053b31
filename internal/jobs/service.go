// Package jobs drives transcription jobs through their lifecycle: submission,
// conversion, inspection, artifact download and disposal.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jonathan/sheet-transcriber/internal/artifacts"
	"github.com/jonathan/sheet-transcriber/internal/gateway"
	"github.com/jonathan/sheet-transcriber/internal/registry"
)

// Converter runs the expensive conversion for one job.
type Converter interface {
	Convert(ctx context.Context, sourcePath, jobID, outputDir string) (gateway.Result, error)
}

// Service coordinates the artifact store, the registry and the conversion
// gateway.
type Service struct {
	store     *artifacts.Store
	registry  *registry.Registry
	converter Converter
	recorder  Recorder
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRecorder attaches a lifecycle event sink.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// NewService wires the lifecycle operations together.
func NewService(store *artifacts.Store, reg *registry.Registry, conv Converter, opts ...Option) *Service {
	s := &Service{
		store:     store,
		registry:  reg,
		converter: conv,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Submit validates and persists an upload and registers it as a new job.
// Nothing is written or registered when validation fails.
func (s *Service) Submit(ctx context.Context, name string, content []byte) (Snapshot, error) {
	up, err := s.store.Accept(name, content)
	if err != nil {
		return Snapshot{}, err
	}

	job, err := s.registry.Create(up.ID, up.Path, up.OriginalName)
	if err != nil {
		_ = s.store.Remove(up.Path)
		return Snapshot{}, fmt.Errorf("failed to register job: %w", err)
	}

	s.store.Kick()
	s.logger.Info("job submitted", "job_id", job.ID, "original_name", name, "bytes", up.Size)
	s.record(ctx, job.ID, EventSubmitted, name)
	return NewSnapshot(job), nil
}

// Process runs the conversion for an uploaded job and waits for it. A
// completed job is returned as is; a failed job is returned with its
// recorded ConversionError. Once started, a conversion is not cancelled by
// ctx, so a departing caller never leaves the job stuck in processing.
func (s *Service) Process(ctx context.Context, id string) (Snapshot, error) {
	job, started, err := s.registry.BeginProcessing(id)
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return Snapshot{}, notFound(id)
	case errors.Is(err, registry.ErrAlreadyProcessing):
		return NewSnapshot(job), fmt.Errorf("%w: %s", ErrConflict, id)
	case err != nil:
		return Snapshot{}, err
	}

	if !started {
		if job.Status == registry.StatusFailed {
			return NewSnapshot(job), &gateway.ConversionError{JobID: id, Detail: job.ErrorDetail}
		}
		return NewSnapshot(job), nil
	}

	log := s.logger.With("job_id", id)
	log.Info("job processing")
	s.record(ctx, id, EventProcessing, "")

	res, convErr := s.converter.Convert(context.WithoutCancel(ctx), job.SourcePath, id, s.store.OutputDir())
	if convErr != nil {
		return s.fail(ctx, log, id, convErr)
	}

	done, err := s.registry.Complete(id, registry.Completion{
		PrimaryPath:     res.PrimaryPath,
		SecondaryPath:   res.Secondary.Path,
		NoteCount:       res.NoteCount,
		SecondaryStatus: registry.SecondaryStatus(res.Secondary.State),
		SecondaryError:  res.Secondary.Err,
	})
	if errors.Is(err, registry.ErrNotFound) {
		s.discard(ctx, log, id, res.PrimaryPath, res.Secondary.Path)
		return Snapshot{}, notFound(id)
	}
	if err != nil {
		return Snapshot{}, err
	}

	log.Info("job completed", "notes_detected", res.NoteCount, "secondary", string(res.Secondary.State))
	s.record(ctx, id, EventCompleted, string(res.Secondary.State))
	return NewSnapshot(done), nil
}

func (s *Service) fail(ctx context.Context, log *slog.Logger, id string, convErr error) (Snapshot, error) {
	var ce *gateway.ConversionError
	if !errors.As(convErr, &ce) {
		ce = &gateway.ConversionError{JobID: id, Detail: convErr.Error(), Cause: convErr}
	}

	failed, err := s.registry.Fail(id, ce.Detail)
	if errors.Is(err, registry.ErrNotFound) {
		s.discard(ctx, log, id)
		return Snapshot{}, notFound(id)
	}
	if err != nil {
		return Snapshot{}, err
	}

	log.Error("job failed", "error", ce.Detail)
	s.record(ctx, id, EventFailed, ce.Detail)
	return NewSnapshot(failed), ce
}

// discard removes outputs of a conversion whose job was disposed while it ran.
func (s *Service) discard(ctx context.Context, log *slog.Logger, id string, paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := s.store.Remove(p); err != nil {
			log.Warn("failed to remove discarded artifact", "path", p, "error", err)
		}
	}
	log.Info("job disposed during conversion, result discarded")
	s.record(ctx, id, EventDiscarded, "")
}

// Inspect returns the current snapshot of a job.
func (s *Service) Inspect(_ context.Context, id string) (Snapshot, error) {
	job, err := s.registry.Get(id)
	if err != nil {
		return Snapshot{}, notFound(id)
	}
	return NewSnapshot(job), nil
}

// List returns snapshots of every live job, oldest first.
func (s *Service) List() []Snapshot {
	jobs := s.registry.List()
	out := make([]Snapshot, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, NewSnapshot(j))
	}
	return out
}

// Dispose removes the job and every file it references. The job is gone from
// the registry before any file is deleted.
func (s *Service) Dispose(ctx context.Context, id string) error {
	job, err := s.registry.Delete(id)
	if err != nil {
		return notFound(id)
	}

	log := s.logger.With("job_id", id)
	for _, p := range job.Paths() {
		if err := s.store.Remove(p); err != nil {
			log.Warn("failed to remove artifact", "path", p, "error", err)
		}
	}
	// An in-flight conversion may still write outputs under the derived
	// names; they are cleaned up when it reports back.
	log.Info("job disposed", "status", string(job.Status))
	s.record(ctx, id, EventDisposed, string(job.Status))
	return nil
}

// Artifact is an open artifact ready for download. The caller closes File.
type Artifact struct {
	File *os.File
	Name string
	Size int64
}

// RetrieveArtifact opens the primary or secondary artifact of a completed job.
func (s *Service) RetrieveArtifact(_ context.Context, id string, role artifacts.Role) (*Artifact, error) {
	job, err := s.registry.Get(id)
	if err != nil {
		return nil, notFound(id)
	}
	if job.Status != registry.StatusCompleted {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotReady, id, job.Status)
	}

	var path string
	switch role {
	case artifacts.RolePrimary:
		path = job.PrimaryPath
	case artifacts.RoleSecondary:
		path = job.SecondaryPath
	default:
		return nil, fmt.Errorf("unsupported artifact role %q", role)
	}
	if path == "" {
		return nil, fmt.Errorf("%w: %s has no %s file", ErrNotFound, id, role)
	}

	f, err := s.store.Open(path)
	if errors.Is(err, artifacts.ErrArtifactNotFound) {
		return nil, fmt.Errorf("%w: %s %s file", ErrNotFound, id, role)
	}
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat artifact: %w", err)
	}
	return &Artifact{File: f, Name: filepath.Base(path), Size: info.Size()}, nil
}

// Stats summarises live jobs and conversion pool activity.
type Stats struct {
	Jobs    int            `json:"jobs"`
	Gateway *gateway.Stats `json:"gateway,omitempty"`
}

type statsProvider interface {
	Stats() gateway.Stats
}

// Stats returns a point-in-time summary for health reporting.
func (s *Service) Stats() Stats {
	st := Stats{Jobs: s.registry.Len()}
	if p, ok := s.converter.(statsProvider); ok {
		gs := p.Stats()
		st.Gateway = &gs
	}
	return st
}
