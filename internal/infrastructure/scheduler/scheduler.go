// Package scheduler runs the worker's periodic jobs on gocron.
package scheduler

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
)

var (
	ErrNilJob              = errors.New("scheduler: job cannot be nil")
	ErrInvalidInterval     = errors.New("scheduler: interval must be positive")
	ErrJobAlreadyExists    = errors.New("scheduler: job already exists")
	ErrJobNotFound         = errors.New("scheduler: job not found")
	ErrSchedulerRunning    = errors.New("scheduler: already running")
	ErrSchedulerNotRunning = errors.New("scheduler: not running")
)

// Job is one periodic task. Run gets a context cancelled on Stop.
type Job interface {
	Name() string
	Description() string
	Run(ctx context.Context) error
}

type JobResult struct {
	JobName     string
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Success     bool
	Error       error
}

type JobInfo struct {
	Name        string
	Description string
	Interval    time.Duration
	LastRun     time.Time
	NextRun     time.Time
	RunCount    int64
	FailCount   int64
}

type SchedulerConfig struct {
	Logger *slog.Logger

	// Timezone defaults to UTC.
	Timezone *time.Location

	// RunOnStart fires every job once when Start is called instead of
	// waiting a full interval.
	RunOnStart bool

	MaxHistorySize int
}

func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Logger:         slog.Default(),
		Timezone:       time.UTC,
		RunOnStart:     true,
		MaxHistorySize: 100,
	}
}

// entry is a registered job with its run statistics.
type entry struct {
	job      Job
	every    time.Duration
	handle   *gocron.Job
	lastRun  time.Time
	runs     int64
	failures int64
}

func (e *entry) info() JobInfo {
	info := JobInfo{
		Name:        e.job.Name(),
		Description: e.job.Description(),
		Interval:    e.every,
		LastRun:     e.lastRun,
		RunCount:    e.runs,
		FailCount:   e.failures,
	}
	if e.handle != nil {
		info.NextRun = e.handle.NextRun()
	}
	return info
}

// Scheduler wraps gocron in singleton mode: a job whose previous run has
// not finished skips its turn.
type Scheduler struct {
	cron       *gocron.Scheduler
	log        *slog.Logger
	runOnStart bool
	keep       int

	mu      sync.RWMutex
	entries map[string]*entry
	history []JobResult
	running bool

	ctx    context.Context
	cancel context.CancelFunc
	active sync.WaitGroup
}

func NewScheduler(cfg SchedulerConfig) *Scheduler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Timezone == nil {
		cfg.Timezone = time.UTC
	}
	if cfg.MaxHistorySize <= 0 {
		cfg.MaxHistorySize = 100
	}

	cron := gocron.NewScheduler(cfg.Timezone)
	cron.SingletonModeAll()

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:       cron,
		log:        cfg.Logger.With("component", "scheduler"),
		runOnStart: cfg.RunOnStart,
		keep:       cfg.MaxHistorySize,
		entries:    make(map[string]*entry),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Register adds job with a fixed interval. Names must be unique.
func (s *Scheduler) Register(job Job, every time.Duration) error {
	switch {
	case job == nil:
		return ErrNilJob
	case every <= 0:
		return fmt.Errorf("%w: %s", ErrInvalidInterval, every)
	}
	name := job.Name()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.entries[name]; dup {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}

	e := &entry{job: job, every: every}
	sched := s.cron.Every(every).Tag(name)
	if !s.runOnStart {
		sched = sched.WaitForSchedule()
	}
	handle, err := sched.Do(func() { s.run(s.ctx, e) })
	if err != nil {
		return fmt.Errorf("scheduler: schedule %s: %w", name, err)
	}
	e.handle = handle
	s.entries[name] = e

	s.log.Info("job registered", "job", name, "description", job.Description(), "interval", every.String())
	return nil
}

func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrSchedulerRunning
	}
	s.running = true
	s.cron.StartAsync()
	s.log.Info("scheduler started", "jobs", len(s.entries))
	return nil
}

// Stop cancels in-flight runs and waits for them to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	s.cron.Stop()
	s.active.Wait()
	s.log.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// RunNow runs a registered job immediately, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) (JobResult, error) {
	s.mu.RLock()
	e, ok := s.entries[name]
	s.mu.RUnlock()
	if !ok {
		return JobResult{}, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return s.run(ctx, e), nil
}

func (s *Scheduler) run(ctx context.Context, e *entry) JobResult {
	s.active.Add(1)
	defer s.active.Done()

	log := s.log.With("job", e.job.Name())
	log.Info("job started")

	res := JobResult{JobName: e.job.Name(), StartedAt: time.Now()}
	res.Error = e.job.Run(ctx)
	res.CompletedAt = time.Now()
	res.Duration = res.CompletedAt.Sub(res.StartedAt)
	res.Success = res.Error == nil

	s.record(e, res)

	if res.Error != nil {
		log.Error("job failed", "duration", res.Duration.String(), "error", res.Error)
	} else {
		log.Info("job completed", "duration", res.Duration.String())
	}
	return res
}

func (s *Scheduler) record(e *entry, res JobResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.lastRun = res.StartedAt
	e.runs++
	if !res.Success {
		e.failures++
	}

	s.history = append(s.history, res)
	if over := len(s.history) - s.keep; over > 0 {
		s.history = slices.Delete(s.history, 0, over)
	}
}

// ListJobs returns the registered jobs sorted by name.
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobInfo, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.info())
	}
	slices.SortFunc(out, func(a, b JobInfo) int { return cmp.Compare(a.Name, b.Name) })
	return out
}

// GetHistory returns the last limit results, oldest first. A limit of zero
// or less returns all kept results.
func (s *Scheduler) GetHistory(limit int) []JobResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h := s.history
	if limit > 0 && len(h) > limit {
		h = h[len(h)-limit:]
	}
	return slices.Clone(h)
}
