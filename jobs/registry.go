package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
)

// DefaultMaxJobs is the number of workloads allowed to run at once.
const DefaultMaxJobs = 8

// Registry creates jobs, runs their workloads and answers status queries.
// It is safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*job

	pool    *ants.Pool
	slots   chan struct{}
	maxJobs int
	logDir  string
	newID   func() string
	logger  *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry) error

// WithMaxJobs sets how many workloads may run concurrently.
// Default is DefaultMaxJobs.
func WithMaxJobs(n int) Option {
	return func(r *Registry) error {
		if n < 1 {
			return fmt.Errorf("max jobs must be at least 1, got %d", n)
		}
		r.maxJobs = n
		return nil
	}
}

// WithLogDir enables per-job JSON log files in dir.
func WithLogDir(dir string) Option {
	return func(r *Registry) error {
		r.logDir = dir
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger.With("component", "job-registry")
		return nil
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) (*Registry, error) {
	r := &Registry{
		jobs:    make(map[string]*job),
		maxJobs: DefaultMaxJobs,
		newID:   uuid.NewString,
		logger:  slog.Default().With("component", "job-registry"),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	// A slot is held from Start until the workload returns. The pool only
	// runs goroutines; it may briefly block Submit while a finished worker
	// is handed back.
	pool, err := ants.NewPool(r.maxJobs)
	if err != nil {
		return nil, err
	}
	r.pool = pool
	r.slots = make(chan struct{}, r.maxJobs)
	return r, nil
}

// Release stops accepting new jobs. Running workloads are not interrupted.
func (r *Registry) Release() {
	r.pool.Release()
}

// Start registers a job and runs w in the background.
// It returns as soon as the workload has been scheduled.
func (r *Registry) Start(kind Kind, w Workload) (string, error) {
	if w == nil {
		return "", ErrNilWorkload
	}

	select {
	case r.slots <- struct{}{}:
	default:
		return "", fmt.Errorf("%w: limit is %d", ErrTooManyJobs, r.maxJobs)
	}

	j := newJob(r.newID(), kind)
	r.mu.Lock()
	r.jobs[j.id] = j
	r.mu.Unlock()

	if err := r.pool.Submit(func() { r.run(j, w) }); err != nil {
		r.mu.Lock()
		delete(r.jobs, j.id)
		r.mu.Unlock()
		<-r.slots
		return "", fmt.Errorf("schedule job: %w", err)
	}

	r.logger.Info("job started", "job_id", j.id, "kind", kind)
	return j.id, nil
}

// Status returns a snapshot of the job.
func (r *Registry) Status(id string) (*Status, error) {
	j, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	return j.snapshot(), nil
}

// Cancel raises the job's cancel signal and marks it stopped with
// ExitCancelled. A job that already stopped keeps its exit code.
func (r *Registry) Cancel(id string) error {
	j, err := r.lookup(id)
	if err != nil {
		return err
	}
	j.token.Cancel()
	if j.finish(ExitCancelled) {
		r.logger.Info("job cancelled", "job_id", id, "kind", j.kind)
	}
	return nil
}

// Wait blocks until the job's workload has returned or ctx is done.
// A cancelled job may still be running its workload until the next
// checkpoint, so Wait can outlast the running flag.
func (r *Registry) Wait(ctx context.Context, id string) (*Status, error) {
	j, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	select {
	case <-j.done:
		return j.snapshot(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// List returns snapshots of every known job, oldest first.
func (r *Registry) List() []*Status {
	r.mu.RLock()
	all := make([]*Status, 0, len(r.jobs))
	for _, j := range r.jobs {
		all = append(all, j.snapshot())
	}
	r.mu.RUnlock()

	slices.SortFunc(all, func(a, b *Status) int {
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return all
}

func (r *Registry) lookup(id string) (*job, error) {
	r.mu.RLock()
	j, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return j, nil
}

// run executes a workload on a pool goroutine and records its outcome.
// The job's slot is released before done is closed, so a caller returning
// from Wait can start another job at once.
func (r *Registry) run(j *job, w Workload) {
	defer close(j.done)
	defer func() { <-r.slots }()
	logger := r.logger.With("job_id", j.id, "kind", j.kind)

	var sink *logSink
	if r.logDir != "" {
		var err error
		if sink, err = openLogSink(r.logDir, j.id); err != nil {
			logger.Warn("job log unavailable", "err", err)
		} else {
			defer func() {
				if err := sink.close(); err != nil {
					logger.Warn("closing job log", "err", err)
				}
			}()
		}
	}

	emit := func(ev Event) {
		ev = ev.sanitized()
		j.apply(ev)
		if sink == nil {
			return
		}
		if err := sink.write(ev); err != nil {
			logger.Warn("writing job log", "err", err)
		}
	}

	if err := invoke(context.Background(), w, emit, j.token); err != nil {
		logger.Error("job failed", "err", err)
		emit(Event{Stage: StageFailed, Error: err.Error()})
		j.finish(ExitFailure)
		return
	}
	if j.finish(ExitSuccess) {
		logger.Info("job finished")
	} else {
		logger.Info("job stopped after cancellation")
	}
}

func invoke(ctx context.Context, w Workload, emit EmitFunc, token *CancelToken) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrWorkloadPanic, p)
		}
	}()
	return w(ctx, emit, token)
}
