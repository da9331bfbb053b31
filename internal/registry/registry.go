package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned when no job has the requested identifier.
	ErrNotFound = errors.New("job not found")
	// ErrAlreadyProcessing is returned when a conversion is already running for the job.
	ErrAlreadyProcessing = errors.New("job is already processing")
	// ErrDuplicateID is returned when Create is called with an identifier in use.
	ErrDuplicateID = errors.New("job id already exists")
)

// TransitionError is returned when a completion or failure is reported for a
// job that is not processing.
type TransitionError struct {
	JobID string
	From  Status
	To    Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition for job %s: %s -> %s", e.JobID, e.From, e.To)
}

// Registry is a concurrency-safe map of jobs. A single lock serialises every
// transition, so operations on one identifier are totally ordered.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	now  func() time.Time
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		jobs: make(map[string]*Job),
		now:  time.Now,
	}
}

// Create inserts a job in the uploaded state.
func (r *Registry) Create(id, sourcePath, originalName string) (Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[id]; exists {
		return Job{}, ErrDuplicateID
	}

	now := r.now()
	job := &Job{
		ID:              id,
		Status:          StatusUploaded,
		OriginalName:    originalName,
		SourcePath:      sourcePath,
		CreatedAt:       now,
		UpdatedAt:       now,
		SecondaryStatus: SecondaryNotAttempted,
	}
	r.jobs[id] = job
	return job.clone(), nil
}

// Get returns a copy of the job.
func (r *Registry) Get(id string) (Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return job.clone(), nil
}

// BeginProcessing claims an uploaded job for conversion. started is true only
// when this call moved the job to processing; terminal jobs are returned
// unchanged with started false.
func (r *Registry) BeginProcessing(id string) (job Job, started bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok {
		return Job{}, false, ErrNotFound
	}

	switch j.Status {
	case StatusUploaded:
		j.Status = StatusProcessing
		j.UpdatedAt = r.now()
		return j.clone(), true, nil
	case StatusProcessing:
		return j.clone(), false, ErrAlreadyProcessing
	default:
		return j.clone(), false, nil
	}
}

// Complete records a successful conversion.
func (r *Registry) Complete(id string, c Completion) (Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	if j.Status != StatusProcessing {
		return j.clone(), &TransitionError{JobID: id, From: j.Status, To: StatusCompleted}
	}

	n := c.NoteCount
	j.Status = StatusCompleted
	j.PrimaryPath = c.PrimaryPath
	j.SecondaryPath = c.SecondaryPath
	j.NoteCount = &n
	j.SecondaryStatus = c.SecondaryStatus
	if j.SecondaryStatus == "" {
		j.SecondaryStatus = SecondaryNotAttempted
	}
	j.SecondaryError = c.SecondaryError
	j.UpdatedAt = r.now()
	return j.clone(), nil
}

// Fail records a failed conversion.
func (r *Registry) Fail(id, detail string) (Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	if j.Status != StatusProcessing {
		return j.clone(), &TransitionError{JobID: id, From: j.Status, To: StatusFailed}
	}

	j.Status = StatusFailed
	j.ErrorDetail = detail
	j.UpdatedAt = r.now()
	return j.clone(), nil
}

// Delete removes the job and returns its final state.
func (r *Registry) Delete(id string) (Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	delete(r.jobs, id)
	return j.clone(), nil
}

// List returns copies of all jobs, oldest first.
func (r *Registry) List() []Job {
	r.mu.RLock()
	out := make([]Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j.clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, k int) bool {
		if out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].ID < out[k].ID
		}
		return out[i].CreatedAt.Before(out[k].CreatedAt)
	})
	return out
}

// Len returns the number of live jobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}
