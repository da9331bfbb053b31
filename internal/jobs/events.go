package jobs

import (
	"context"
	"time"
)

// EventKind names a lifecycle event.
type EventKind string

const (
	EventSubmitted  EventKind = "submitted"
	EventProcessing EventKind = "processing"
	EventCompleted  EventKind = "completed"
	EventFailed     EventKind = "failed"
	EventDisposed   EventKind = "disposed"
	EventDiscarded  EventKind = "discarded"
)

// Recorder receives lifecycle events. Recording is best effort: errors are
// logged and never change the outcome of an operation.
type Recorder interface {
	RecordEvent(ctx context.Context, jobID, kind, detail string) error
}

const recordTimeout = 5 * time.Second

func (s *Service) record(ctx context.Context, jobID string, kind EventKind, detail string) {
	if s.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := s.recorder.RecordEvent(ctx, jobID, string(kind), detail); err != nil {
		s.logger.Warn("failed to record job event", "job_id", jobID, "event", string(kind), "error", err)
	}
}
