// Package jobs runs long label operations on a background worker that
// callers poll for status and may cancel.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status describes the lifecycle stage of a job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCanceled
}

// DefaultQueueSize bounds pending jobs when no size is configured.
const DefaultQueueSize = 32

// ErrQueueFull is returned by Submit when the queue cannot take another job.
var ErrQueueFull = errors.New("job queue full")

// ErrStopped is returned by Submit after Stop.
var ErrStopped = errors.New("job worker stopped")

// Job is a snapshot of a submitted unit of work.
type Job struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	Status      Status     `json:"status"`
	Progress    float64    `json:"progress"`
	Result      any        `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Func is the work of a job. report accepts a completion fraction in [0,1].
// Func must return promptly once ctx is done.
type Func func(ctx context.Context, report func(fraction float64)) (any, error)

// Logger receives job lifecycle messages.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Observer is told about every finished job.
type Observer interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Option configures a Worker.
type Option func(*Worker)

// WithQueueSize sets the number of jobs that may wait to run.
func WithQueueSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.size = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option { return func(w *Worker) { w.logger = l } }

// WithObserver reports job outcomes, keyed by job kind.
func WithObserver(o Observer) Option { return func(w *Worker) { w.observer = o } }

// Worker executes jobs one at a time in submission order.
type Worker struct {
	size     int
	logger   Logger
	observer Observer

	queue chan string
	mu    sync.RWMutex
	jobs  map[string]*record

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type record struct {
	job    Job
	fn     Func
	cancel context.CancelFunc
}

// NewWorker constructs a worker. Call Start to begin processing.
func NewWorker(opts ...Option) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		size:   DefaultQueueSize,
		jobs:   make(map[string]*record),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.queue = make(chan string, w.size)
	return w
}

// Start begins processing jobs.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop cancels running work, stops the loop and waits for it to finish.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			w.drain()
			return
		case id := <-w.queue:
			w.process(id)
		}
	}
}

// Submit queues fn under kind and returns the queued snapshot.
func (w *Worker) Submit(kind string, fn Func) (Job, error) {
	if fn == nil {
		return Job{}, fmt.Errorf("job %s: nil func", kind)
	}
	if w.ctx.Err() != nil {
		return Job{}, ErrStopped
	}
	now := time.Now().UTC()
	rec := &record{
		job: Job{ID: uuid.NewString(), Kind: kind, Status: StatusQueued, CreatedAt: now, UpdatedAt: now},
		fn:  fn,
	}

	w.mu.Lock()
	w.jobs[rec.job.ID] = rec
	snapshot := rec.job
	w.mu.Unlock()

	select {
	case w.queue <- snapshot.ID:
	default:
		w.mu.Lock()
		delete(w.jobs, snapshot.ID)
		w.mu.Unlock()
		return Job{}, ErrQueueFull
	}
	return snapshot, nil
}

// Status returns a snapshot of job id.
func (w *Worker) Status(id string) (Job, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	rec, ok := w.jobs[id]
	if !ok {
		return Job{}, false
	}
	return rec.job, true
}

// List returns snapshots of all known jobs, oldest first.
func (w *Worker) List() []Job {
	w.mu.RLock()
	out := make([]Job, 0, len(w.jobs))
	for _, rec := range w.jobs {
		out = append(out, rec.job)
	}
	w.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Cancel stops job id. A queued job is canceled immediately; a running job
// is canceled through its context and settles once its Func returns.
// Finished jobs are left unchanged.
func (w *Worker) Cancel(id string) (Job, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	rec, ok := w.jobs[id]
	if !ok {
		return Job{}, false
	}
	switch rec.job.Status {
	case StatusQueued:
		w.settleLocked(rec, StatusCanceled, nil, context.Canceled.Error())
	case StatusRunning:
		if rec.cancel != nil {
			rec.cancel()
		}
	}
	return rec.job, true
}

// Forget drops finished jobs completed before cutoff and returns how many were removed.
func (w *Worker) Forget(cutoff time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for id, rec := range w.jobs {
		if rec.job.CompletedAt != nil && rec.job.CompletedAt.Before(cutoff) {
			delete(w.jobs, id)
			n++
		}
	}
	return n
}

func (w *Worker) process(id string) {
	ctx, cancel := context.WithCancel(w.ctx)
	defer cancel()

	w.mu.Lock()
	rec, ok := w.jobs[id]
	if !ok || rec.job.Status != StatusQueued {
		w.mu.Unlock()
		return
	}
	rec.cancel = cancel
	rec.job.Status = StatusRunning
	rec.job.UpdatedAt = time.Now().UTC()
	fn, kind := rec.fn, rec.job.Kind
	w.mu.Unlock()

	start := time.Now()
	result, err := w.run(ctx, fn, func(f float64) { w.progress(id, f) })
	success := err == nil

	w.mu.Lock()
	switch {
	case err == nil:
		w.settleLocked(rec, StatusSucceeded, result, "")
		rec.job.Progress = 1
	case ctx.Err() != nil:
		w.settleLocked(rec, StatusCanceled, result, err.Error())
	default:
		w.settleLocked(rec, StatusFailed, result, err.Error())
	}
	status := rec.job.Status
	w.mu.Unlock()

	if w.observer != nil {
		w.observer.Observe(w.ctx, kind, success, time.Since(start))
	}
	if w.logger != nil {
		if success {
			w.logger.Info("job finished", "id", id, "kind", kind, "status", string(status))
		} else {
			w.logger.Error("job finished", "id", id, "kind", kind, "status", string(status), "error", err)
		}
	}
}

func (w *Worker) run(ctx context.Context, fn Func, report func(float64)) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return fn(ctx, report)
}

func (w *Worker) progress(id string, f float64) {
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	w.mu.Lock()
	if rec, ok := w.jobs[id]; ok && rec.job.Status == StatusRunning {
		rec.job.Progress = f
		rec.job.UpdatedAt = time.Now().UTC()
	}
	w.mu.Unlock()
}

func (w *Worker) settleLocked(rec *record, status Status, result any, message string) {
	now := time.Now().UTC()
	rec.job.Status = status
	rec.job.Result = result
	rec.job.Error = message
	rec.job.UpdatedAt = now
	rec.job.CompletedAt = &now
	rec.fn = nil
	rec.cancel = nil
}

// drain cancels jobs still waiting when the worker stops.
func (w *Worker) drain() {
	for {
		select {
		case id := <-w.queue:
			w.mu.Lock()
			if rec, ok := w.jobs[id]; ok && rec.job.Status == StatusQueued {
				w.settleLocked(rec, StatusCanceled, nil, ErrStopped.Error())
			}
			w.mu.Unlock()
		default:
			return
		}
	}
}
