package jobs

import (
	"context"
	"sync"
	"time"

	"fleetwatch/pkg/lock"
	"fleetwatch/pkg/logger"
)

// Job represents a periodic background task.
type Job interface {
	Name() string
	Interval() time.Duration
	Run(ctx context.Context) error
}

// DelayedJob skips the immediate first run and waits one interval instead.
type DelayedJob interface {
	Job
	SkipInitialRun() bool
}

// Manager orchestrates the lifecycle of background jobs.
type Manager struct {
	ctx     context.Context
	cancel  context.CancelFunc
	jobs    []Job
	started bool

	mu sync.Mutex
	wg sync.WaitGroup
}

// NewManager creates a job manager bound to the provided context.
func NewManager(parent context.Context) *Manager {
	ctx, cancel := context.WithCancel(parent)
	return &Manager{
		ctx:    ctx,
		cancel: cancel,
		jobs:   make([]Job, 0),
	}
}

// Register adds a job to the manager.
func (m *Manager) Register(job Job) {
	if job == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, job)
}

// Jobs returns the registered job names in registration order.
func (m *Manager) Jobs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(m.jobs))
	for i, job := range m.jobs {
		names[i] = job.Name()
	}
	return names
}

// Start launches all registered jobs.
func (m *Manager) Start() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	jobs := append([]Job(nil), m.jobs...)
	m.mu.Unlock()

	for _, job := range jobs {
		m.wg.Add(1)
		go m.runJob(job)
	}
}

// Stop signals all jobs to stop.
func (m *Manager) Stop() {
	m.cancel()
}

// Wait blocks until all jobs exit.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) runJob(job Job) {
	defer m.wg.Done()

	interval := job.Interval()
	if interval <= 0 {
		interval = time.Minute
	}

	delayed, ok := job.(DelayedJob)
	if !ok || !delayed.SkipInitialRun() {
		m.executeJob(job)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.executeJob(job)
		}
	}
}

func (m *Manager) executeJob(job Job) {
	ctx := logger.WithTraceID(m.ctx, "job:"+job.Name())
	if err := job.Run(ctx); err != nil {
		logger.WarnCtx(ctx, "background job %s failed: %v", job.Name(), err)
	}
}

// lockedJob runs the wrapped job only on the instance holding its lock.
type lockedJob struct {
	Job
	lock lock.DistributedLock
}

// WithLock wraps job so that concurrent server instances do not run it at the same time.
func WithLock(job Job, l lock.DistributedLock) Job {
	if l == nil {
		return job
	}
	return &lockedJob{Job: job, lock: l}
}

func (j *lockedJob) Run(ctx context.Context) error {
	skipped, err := lock.WithLock(ctx, j.lock, j.Job.Run)
	if skipped {
		logger.DebugCtx(ctx, "job %s skipped, lock held elsewhere", j.Name())
	}
	return err
}

func (j *lockedJob) SkipInitialRun() bool {
	if d, ok := j.Job.(DelayedJob); ok {
		return d.SkipInitialRun()
	}
	return false
}
