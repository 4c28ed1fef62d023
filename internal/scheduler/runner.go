package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrJobNotFound is returned by RunNow for an unknown job name.
var ErrJobNotFound = errors.New("job not found")

// specParser accepts standard 5-field expressions plus @every/@daily descriptors.
var specParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

type entry struct {
	job     Job
	id      cron.EntryID
	runMu   sync.Mutex
	status  JobStatus
	running bool
}

// Runner drives housekeeping jobs with robfig/cron. A job never overlaps
// itself: a tick that fires while the previous run is still going is skipped.
type Runner struct {
	logger  *log.Logger
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	running atomic.Bool

	mu   sync.RWMutex
	jobs map[string]*entry
}

// NewRunner creates a stopped runner.
func NewRunner(logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		logger: logger,
		cron: cron.New(
			cron.WithParser(specParser),
			cron.WithChain(cron.Recover(cron.PrintfLogger(logger))),
		),
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(map[string]*entry),
	}
}

// AddJob registers a job. Names must be unique.
func (r *Runner) AddJob(job Job) error {
	if job.Name == "" || job.Run == nil {
		return fmt.Errorf("job requires a name and a run function")
	}
	schedule, err := specParser.Parse(job.Spec)
	if err != nil {
		return fmt.Errorf("invalid cron expression for %s: %w", job.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.Name]; exists {
		return fmt.Errorf("job %s already registered", job.Name)
	}
	e := &entry{job: job, status: JobStatus{Name: job.Name, Spec: job.Spec}}
	e.id = r.cron.Schedule(schedule, cron.FuncJob(func() {
		if err := r.run(r.ctx, e, true); err != nil {
			r.logger.Printf("Job %s failed: %v", job.Name, err)
		}
	}))
	r.jobs[job.Name] = e
	return nil
}

// RunNow runs a job synchronously outside its schedule.
func (r *Runner) RunNow(ctx context.Context, name string) error {
	r.mu.RLock()
	e, ok := r.jobs[name]
	r.mu.RUnlock()
	if !ok {
		return ErrJobNotFound
	}
	return r.run(ctx, e, false)
}

// Start begins firing scheduled jobs.
func (r *Runner) Start() {
	r.logger.Printf("Scheduler starting with %d job(s)", len(r.Status()))
	r.cron.Start()
	r.running.Store(true)
}

// IsRunning reports whether Start was called and Stop was not.
func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

// Stop cancels running jobs and waits for them to return.
func (r *Runner) Stop() {
	r.logger.Println("Scheduler stopping...")
	r.running.Store(false)
	done := r.cron.Stop()
	r.cancel()
	<-done.Done()
	r.logger.Println("Scheduler stopped")
}

// Status returns every job's status sorted by name.
func (r *Runner) Status() []JobStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]JobStatus, 0, len(r.jobs))
	for _, e := range r.jobs {
		e.runMu.Lock()
		status := e.status
		e.runMu.Unlock()
		status.NextRunAt = r.cron.Entry(e.id).Next
		out = append(out, status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Runner) run(ctx context.Context, e *entry, scheduled bool) error {
	e.runMu.Lock()
	if e.running {
		e.runMu.Unlock()
		if scheduled {
			r.logger.Printf("Job %s still running, skipping tick", e.job.Name)
			return nil
		}
		return fmt.Errorf("job %s already running", e.job.Name)
	}
	e.running = true
	e.runMu.Unlock()

	err := e.job.Run(ctx)

	e.runMu.Lock()
	e.running = false
	e.status.Runs++
	e.status.LastRunAt = time.Now().UTC()
	e.status.LastError = ""
	if err != nil {
		e.status.Failures++
		e.status.LastError = err.Error()
	}
	e.runMu.Unlock()
	return err
}
