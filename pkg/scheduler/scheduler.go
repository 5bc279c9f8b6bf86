package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dosetrack/dosetrack/pkg/core"
	"github.com/dosetrack/dosetrack/pkg/timezone"
)

// ErrTaskBusy is returned by RunNow when the task is already executing.
var ErrTaskBusy = errors.New("scheduler: task is already running")

// TaskContext carries the per-invocation dependencies a task needs, instead
// of the task closing over globals. Now is the clock reading the trigger
// fired on.
type TaskContext struct {
	Now    time.Time
	Logger *slog.Logger
}

// TaskFunc is a task body. Errors are logged and counted per task; they
// never stop the scheduler.
type TaskFunc func(ctx context.Context, tc TaskContext) error

// TaskStatus is one task's status surface.
type TaskStatus struct {
	Name         string
	Trigger      string
	LastRun      time.Time
	Running      bool
	ErrorCount   int
	SkippedCount int
	LastError    string
}

type task struct {
	name    string
	trigger Trigger
	fn      TaskFunc

	running atomic.Bool

	mu       sync.Mutex
	lastRun  time.Time
	errCount int
	skips    int
	lastErr  string
}

func (t *task) getLastRun() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastRun
}

func (t *task) setLastRun(at time.Time) {
	t.mu.Lock()
	t.lastRun = at
	t.mu.Unlock()
}

func (t *task) recordError(err error) {
	t.mu.Lock()
	t.errCount++
	t.lastErr = err.Error()
	t.mu.Unlock()
}

func (t *task) recordSkip() {
	t.mu.Lock()
	t.skips++
	t.mu.Unlock()
}

func (t *task) status() TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return TaskStatus{
		Name:         t.name,
		Trigger:      t.trigger.String(),
		LastRun:      t.lastRun,
		Running:      t.running.Load(),
		ErrorCount:   t.errCount,
		SkippedCount: t.skips,
		LastError:    t.lastErr,
	}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithPollInterval overrides the 1s poll resolution. Intended for tests.
func WithPollInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.pollInterval = d }
}

// WithClock injects the time source.
func WithClock(clock core.Clock) Option {
	return func(s *Scheduler) { s.clock = clock }
}

// WithLogger injects the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// WithLocation injects the provider of the zone wall-clock triggers are
// evaluated in. Defaults to UTC.
func WithLocation(provider timezone.Provider) Option {
	return func(s *Scheduler) { s.tz = provider }
}

// Scheduler runs registered tasks from a single poll goroutine. Task bodies
// execute synchronously on that goroutine, so a long run delays subsequent
// trigger checks; it never overlaps another run of the same task.
type Scheduler struct {
	mu     sync.Mutex
	tasks  map[string]*task
	order  []string
	stopCh chan struct{}
	doneCh chan struct{}

	pollInterval time.Duration
	clock        core.Clock
	tz           timezone.Provider
	logger       *slog.Logger
}

// New builds a Scheduler with a 1 second poll resolution.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		tasks:        make(map[string]*task),
		pollInterval: time.Second,
		clock:        core.SystemClock{},
		tz:           timezone.Fixed(time.UTC),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a named task. Registering a duplicate name is an error.
func (s *Scheduler) Register(name string, trigger Trigger, fn TaskFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[name]; exists {
		return fmt.Errorf("scheduler: task %q already registered", name)
	}
	s.tasks[name] = &task{name: name, trigger: trigger, fn: fn}
	s.order = append(s.order, name)
	return nil
}

// Start launches the poll loop. It returns immediately; the loop runs until
// Stop is called or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		return errors.New("scheduler: already started")
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.loop(ctx, s.stopCh, s.doneCh)
	s.logger.Info("scheduler started",
		"tasks", len(s.tasks), "poll", s.pollInterval.String())
	return nil
}

// Stop signals the loop and waits for it to exit, bounded by ctx. An
// in-flight task run finishes naturally; it is not interrupted.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	stopCh, doneCh := s.stopCh, s.doneCh
	s.stopCh, s.doneCh = nil, nil
	s.mu.Unlock()

	if stopCh == nil {
		return nil
	}
	close(stopCh)

	select {
	case <-doneCh:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out waiting for poll loop")
		return ctx.Err()
	}
}

// RunNow triggers a task outside its schedule, subject to the same
// skip-if-busy rule: if the task is already running it is not started again
// and ErrTaskBusy is returned.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	t, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("scheduler: unknown task %q", name)
	}

	now := s.clock.Now()
	if !t.running.CompareAndSwap(false, true) {
		t.recordSkip()
		s.logger.Warn("manual trigger skipped, task already running", "task", name)
		return ErrTaskBusy
	}
	t.setLastRun(now)
	s.execute(ctx, t, now)
	return nil
}

// Snapshot returns the status surface for every registered task, in
// registration order.
func (s *Scheduler) Snapshot() []TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TaskStatus, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.tasks[name].status())
	}
	return out
}

func (s *Scheduler) loop(ctx context.Context, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

func (s *Scheduler) poll(ctx context.Context) {
	now := s.clock.Now()
	loc := s.tz.Location()

	s.mu.Lock()
	names := make([]string, len(s.order))
	copy(names, s.order)
	s.mu.Unlock()

	for _, name := range names {
		s.mu.Lock()
		t := s.tasks[name]
		s.mu.Unlock()

		if !t.trigger.Due(now, t.getLastRun(), loc) {
			continue
		}
		if !t.running.CompareAndSwap(false, true) {
			t.recordSkip()
			s.logger.Warn("trigger skipped, task still running", "task", name)
			continue
		}
		t.setLastRun(now)
		s.execute(ctx, t, now)
	}
}

// execute runs the task body synchronously. The caller must have won the
// Idle -> Running transition; execute releases it.
func (s *Scheduler) execute(ctx context.Context, t *task, now time.Time) {
	defer t.running.Store(false)
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			t.recordError(err)
			s.logger.Error("task panicked", "task", t.name, "error", err)
		}
	}()

	tc := TaskContext{
		Now:    now,
		Logger: s.logger.With("task", t.name),
	}
	start := time.Now()
	if err := t.fn(ctx, tc); err != nil {
		t.recordError(err)
		s.logger.Error("task failed",
			"task", t.name, "duration", time.Since(start), "error", err)
		return
	}
	s.logger.Debug("task completed",
		"task", t.name, "duration", time.Since(start))
}
