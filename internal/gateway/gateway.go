// Package gateway runs the expensive audio transcription on a fixed-size pool
// of workers so request handling never executes it directly.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonathan/sheet-transcriber/internal/artifacts"
)

// DefaultWorkers is the number of conversions allowed to run at once.
const DefaultWorkers = 2

// Transcriber is the primary, blocking conversion: audio in, MIDI out.
type Transcriber interface {
	Transcribe(ctx context.Context, sourcePath, midiPath string) (noteCount int, err error)
}

// Renderer is the best-effort secondary conversion: MIDI in, notation out.
type Renderer interface {
	Render(ctx context.Context, midiPath, outputPath string) error
}

// SecondaryState distinguishes a skipped notation step from a failed one.
type SecondaryState string

const (
	SecondaryNotAttempted SecondaryState = "not_attempted"
	SecondarySucceeded    SecondaryState = "succeeded"
	SecondaryFailed       SecondaryState = "failed"
)

// SecondaryOutcome is the result of the notation step.
type SecondaryOutcome struct {
	State SecondaryState
	Path  string
	Err   string
}

// Result is what a successful conversion produced.
type Result struct {
	PrimaryPath string
	NoteCount   int
	Secondary   SecondaryOutcome
	Duration    time.Duration
}

// Stats is a point-in-time view of pool activity.
type Stats struct {
	Workers   int   `json:"workers"`
	Queued    int64 `json:"queued"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

type request struct {
	jobID      string
	sourcePath string
	outputDir  string
	done       chan outcome
}

type outcome struct {
	result Result
	err    error
}

// Gateway admits conversion requests in FIFO order onto a bounded worker pool.
type Gateway struct {
	transcriber Transcriber
	renderer    Renderer
	logger      *slog.Logger
	workers     int
	queueSize   int
	timeout     time.Duration

	ch   chan *request
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.RWMutex
	closed bool

	queued    atomic.Int64
	active    atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithWorkers sets the pool size.
func WithWorkers(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.workers = n
		}
	}
}

// WithQueueSize sets how many admitted requests may wait for a free worker
// before Convert itself starts blocking.
func WithQueueSize(n int) Option {
	return func(g *Gateway) {
		if n >= 0 {
			g.queueSize = n
		}
	}
}

// WithTimeout bounds each conversion. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithRenderer enables the secondary notation step.
func WithRenderer(r Renderer) Option {
	return func(g *Gateway) { g.renderer = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// New starts a gateway with its worker pool running.
func New(t Transcriber, opts ...Option) *Gateway {
	g := &Gateway{
		transcriber: t,
		logger:      slog.Default(),
		workers:     DefaultWorkers,
		queueSize:   64,
	}
	for _, o := range opts {
		o(g)
	}
	g.ch = make(chan *request, g.queueSize)
	g.start()
	return g
}

func (g *Gateway) start() {
	g.once.Do(func() {
		for i := 0; i < g.workers; i++ {
			g.wg.Add(1)
			go func(workerID int) {
				defer g.wg.Done()
				g.logger.Debug("conversion worker started", "worker_id", workerID)

				for req := range g.ch {
					g.queued.Add(-1)
					g.active.Add(1)
					res, err := g.execute(workerID, req)
					g.active.Add(-1)
					if err != nil {
						g.failed.Add(1)
					} else {
						g.completed.Add(1)
					}
					req.done <- outcome{result: res, err: err}
				}

				g.logger.Debug("conversion worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// Convert transcribes sourcePath into outputDir and blocks until a worker has
// finished with it. Waiting for admission respects ctx; once admitted, the
// conversion runs to completion even if the caller stops waiting.
func (g *Gateway) Convert(ctx context.Context, sourcePath, jobID, outputDir string) (Result, error) {
	req := &request{
		jobID:      jobID,
		sourcePath: sourcePath,
		outputDir:  outputDir,
		done:       make(chan outcome, 1),
	}

	g.mu.RLock()
	if g.closed {
		g.mu.RUnlock()
		return Result{}, ErrGatewayClosed
	}
	g.queued.Add(1)
	select {
	case g.ch <- req:
		g.mu.RUnlock()
	case <-ctx.Done():
		g.queued.Add(-1)
		g.mu.RUnlock()
		return Result{}, ctx.Err()
	}
	g.logger.Info("conversion queued", "job_id", jobID, "queued", g.queued.Load())

	select {
	case out := <-req.done:
		return out.result, out.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (g *Gateway) execute(workerID int, req *request) (res Result, err error) {
	ctx := context.Background()
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	primary := filepath.Join(req.outputDir, req.jobID+artifacts.RolePrimary.Extension())
	log := g.logger.With("worker_id", workerID, "job_id", req.jobID)
	log.Info("transcription started", "source", req.sourcePath)

	noteCount, err := g.transcribe(ctx, req.sourcePath, primary)
	if err != nil {
		_ = os.Remove(primary)
		log.Error("transcription failed", "error", err, "duration", time.Since(start).String())
		return Result{}, &ConversionError{JobID: req.jobID, Detail: err.Error(), Cause: err}
	}

	res = Result{
		PrimaryPath: primary,
		NoteCount:   noteCount,
		Secondary:   g.renderSecondary(ctx, log, req, primary),
	}
	res.Duration = time.Since(start)
	log.Info("transcription completed",
		"notes_detected", noteCount,
		"secondary", string(res.Secondary.State),
		"duration", res.Duration.String())
	return res, nil
}

// transcribe converts a panic in the external step into an error.
func (g *Gateway) transcribe(ctx context.Context, source, primary string) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transcriber panicked: %v", r)
		}
	}()
	return g.transcriber.Transcribe(ctx, source, primary)
}

func (g *Gateway) renderSecondary(ctx context.Context, log *slog.Logger, req *request, primary string) (out SecondaryOutcome) {
	if g.renderer == nil {
		return SecondaryOutcome{State: SecondaryNotAttempted}
	}

	path := filepath.Join(req.outputDir, req.jobID+artifacts.RoleSecondary.Extension())
	defer func() {
		if r := recover(); r != nil {
			_ = os.Remove(path)
			log.Warn("musicxml generation panicked", "panic", r)
			out = SecondaryOutcome{State: SecondaryFailed, Err: fmt.Sprintf("renderer panicked: %v", r)}
		}
	}()

	if err := g.renderer.Render(ctx, primary, path); err != nil {
		_ = os.Remove(path)
		log.Warn("musicxml generation failed", "error", err)
		return SecondaryOutcome{State: SecondaryFailed, Err: err.Error()}
	}
	return SecondaryOutcome{State: SecondarySucceeded, Path: path}
}

// Stats returns current pool counters.
func (g *Gateway) Stats() Stats {
	return Stats{
		Workers:   g.workers,
		Queued:    g.queued.Load(),
		Active:    g.active.Load(),
		Completed: g.completed.Load(),
		Failed:    g.failed.Load(),
	}
}

// Shutdown stops admitting work and waits for queued conversions to finish.
func (g *Gateway) Shutdown(ctx context.Context) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	close(g.ch)
	g.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); g.wg.Wait() }()

	select {
	case <-ctx.Done():
		g.logger.Warn("gateway shutdown interrupted by context")
	case <-done:
		g.logger.Info("gateway drained, shutdown complete")
	}
}
