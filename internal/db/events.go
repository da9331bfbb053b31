package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Event kinds written by the lifecycle orchestrator.
const (
	EventSubmitted  = "submitted"
	EventProcessing = "processing"
	EventCompleted  = "completed"
	EventFailed     = "failed"
	EventDisposed   = "disposed"
	EventDiscarded  = "discarded"
)

// DefaultEventLimit bounds list queries when no limit is given.
const DefaultEventLimit = 100

// maxDetailLen caps the stored detail text.
const maxDetailLen = 2000

var knownKinds = map[string]bool{
	EventSubmitted:  true,
	EventProcessing: true,
	EventCompleted:  true,
	EventFailed:     true,
	EventDisposed:   true,
	EventDiscarded:  true,
}

// Event is one recorded lifecycle transition.
type Event struct {
	ID         int64     `json:"id"`
	JobID      string    `json:"job_id"`
	Kind       string    `json:"kind"`
	Detail     string    `json:"detail,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// RecordEvent appends an event to the history.
func (db *DB) RecordEvent(ctx context.Context, jobID, kind, detail string) error {
	if jobID == "" {
		return fmt.Errorf("failed to record event: job id is empty")
	}
	if !knownKinds[kind] {
		return fmt.Errorf("failed to record event: unknown kind %q", kind)
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO job_events (job_id, kind, detail) VALUES ($1, $2, $3)`,
		jobID, kind, truncate(detail, maxDetailLen),
	)
	if err != nil {
		return fmt.Errorf("failed to record %s event for %s: %w", kind, jobID, err)
	}
	return nil
}

// ListEvents returns the events of one job in the order they were recorded.
func (db *DB) ListEvents(ctx context.Context, jobID string) ([]Event, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, job_id, kind, detail, recorded_at
		 FROM job_events
		 WHERE job_id = $1
		 ORDER BY id`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list events for %s: %w", jobID, err)
	}
	return collectEvents(rows)
}

// ListRecentEvents returns the newest events across all jobs, newest first.
func (db *DB) ListRecentEvents(ctx context.Context, limit int) ([]Event, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, job_id, kind, detail, recorded_at
		 FROM job_events
		 ORDER BY id DESC
		 LIMIT $1`,
		clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent events: %w", err)
	}
	return collectEvents(rows)
}

func collectEvents(rows pgx.Rows) ([]Event, error) {
	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Event, error) {
		var e Event
		err := row.Scan(&e.ID, &e.JobID, &e.Kind, &e.Detail, &e.RecordedAt)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan events: %w", err)
	}
	return events, nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 10*DefaultEventLimit {
		return DefaultEventLimit
	}
	return limit
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
