// Package dosetrack tracks medication inventory and automatically deducts
// doses according to per-medication dosing schedules.
//
// This is the main package users should import. It re-exports the public
// types from the pkg/ packages and wires them into an Engine.
//
// Basic usage:
//
//	db, _ := gorm.Open(sqlite.Open("dosetrack.db"), &gorm.Config{})
//	store := dosetrack.NewGormStorage(db)
//	store.Migrate(context.Background())
//
//	engine := dosetrack.New(store)
//	engine.Start(ctx)        // periodic deduction sweeps
//	defer engine.Stop(ctx)
//
//	// or drive a sweep manually (operator endpoint, backfill):
//	result, err := engine.RunDeductionSweep(ctx, nil)
package dosetrack

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/dosetrack/dosetrack/pkg/core"
	"github.com/dosetrack/dosetrack/pkg/deduct"
	"github.com/dosetrack/dosetrack/pkg/reconcile"
	"github.com/dosetrack/dosetrack/pkg/recurrence"
	"github.com/dosetrack/dosetrack/pkg/scheduler"
	"github.com/dosetrack/dosetrack/pkg/storage"
	"github.com/dosetrack/dosetrack/pkg/timezone"
)

// Type aliases re-exported for a clean API surface.
type (
	// Medication owns an inventory ledger.
	Medication = core.Medication

	// Adjustment is one row of the append-only inventory log.
	Adjustment = core.Adjustment

	// DoseSchedule is a recurring dosing rule.
	DoseSchedule = core.DoseSchedule

	// ScheduleKind selects the recurrence rule.
	ScheduleKind = core.ScheduleKind

	// TimeOfDay is a typed (hour, minute) pair.
	TimeOfDay = core.TimeOfDay

	// TimeOfDayList is an ordered list of times of day.
	TimeOfDayList = core.TimeOfDayList

	// WeekdaySet is a bitmask of weekdays.
	WeekdaySet = core.WeekdaySet

	// Storage defines the persistence layer the engine runs against.
	Storage = core.Storage

	// Clock abstracts the time source.
	Clock = core.Clock

	// GormStorage implements Storage using GORM.
	GormStorage = storage.GormStorage

	// SweepResult aggregates one deduction sweep.
	SweepResult = deduct.Result

	// TaskStatus is the per-task scheduler status surface.
	TaskStatus = scheduler.TaskStatus

	// InvalidTimeError indicates a malformed time-of-day value.
	InvalidTimeError = core.InvalidTimeError

	// InsufficientStockError indicates a dose was skipped for lack of stock.
	InsufficientStockError = core.InsufficientStockError
)

// Schedule kind constants.
const (
	KindDaily    = core.KindDaily
	KindInterval = core.KindInterval
	KindWeekdays = core.KindWeekdays
)

// DedupWindow is the tolerance within which two nominally distinct trigger
// times count as the same dose.
const DedupWindow = recurrence.DedupWindow

// SweepTaskName is the registered name of the periodic deduction sweep.
const SweepTaskName = "deduction-sweep"

// DefaultSweepCadence keeps sweeps at under half the dedup window so a
// missed dose can never be double-applied between adjacent sweeps.
const DefaultSweepCadence = 2 * time.Minute

// NewGormStorage creates a new GORM-backed storage.
func NewGormStorage(db *gorm.DB) *GormStorage {
	return storage.NewGormStorage(db)
}

// ParseTimeOfDay parses "HH:MM" into a TimeOfDay.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	return core.ParseTimeOfDay(s)
}

// Weekdays builds a WeekdaySet from the given days.
func Weekdays(days ...time.Weekday) WeekdaySet {
	return core.Weekdays(days...)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger injects the logger used by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithClock injects the time source for sweeps and scheduler polls.
func WithClock(clock Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithSweepCadence overrides how often the deduction sweep runs. Cadences
// above half the dedup window reintroduce duplication risk and are clamped.
func WithSweepCadence(d time.Duration) Option {
	return func(e *Engine) {
		if d > DedupWindow/2 {
			d = DedupWindow / 2
		}
		e.sweepCadence = d
	}
}

// WithPollInterval overrides the scheduler's 1s poll resolution (tests).
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) { e.pollInterval = d }
}

// Engine wires the timezone provider, evaluator, reconciler, applier and
// periodic scheduler over one Storage. A single Engine instance must be the
// only writer of schedule checkpoints and ledger state; see pkg/deduct.
type Engine struct {
	store   core.Storage
	tz      *timezone.SettingProvider
	sweeper *deduct.Sweeper
	sched   *scheduler.Scheduler

	logger       *slog.Logger
	clock        Clock
	sweepCadence time.Duration
	pollInterval time.Duration
}

// New creates an Engine over the given storage backend.
func New(store Storage, opts ...Option) *Engine {
	e := &Engine{
		store:        store,
		logger:       slog.Default(),
		clock:        core.SystemClock{},
		sweepCadence: DefaultSweepCadence,
		pollInterval: time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.tz = timezone.NewSettingProvider(store, e.logger)
	conv := timezone.NewConverter(e.tz, e.logger)
	eval := recurrence.NewEvaluator(conv, e.logger)
	rec := reconcile.NewReconciler(eval, e.logger)
	applier := deduct.NewApplier(e.logger)
	e.sweeper = deduct.NewSweeper(store, rec, applier, e.tz, e.clock, e.logger)

	e.sched = scheduler.New(
		scheduler.WithClock(e.clock),
		scheduler.WithLogger(e.logger),
		scheduler.WithLocation(e.tz),
		scheduler.WithPollInterval(e.pollInterval),
	)
	_ = e.sched.Register(SweepTaskName, scheduler.Every(e.sweepCadence),
		func(ctx context.Context, tc scheduler.TaskContext) error {
			at := tc.Now
			_, err := e.sweeper.Run(ctx, &at)
			return err
		})

	return e
}

// Start loads the timezone setting and launches the periodic scheduler.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.tz.Refresh(ctx); err != nil {
		return err
	}
	return e.sched.Start(ctx)
}

// Stop shuts the scheduler down, waiting for the poll loop bounded by ctx.
func (e *Engine) Stop(ctx context.Context) error {
	return e.sched.Stop(ctx)
}

// RunDeductionSweep executes one sweep. A nil at sweeps at the current
// time; a non-nil at overrides "now" for testing or backfill simulation.
// Callable by operators concurrently with the scheduler: both paths go
// through the same sweeper, and sweeps themselves are idempotent.
func (e *Engine) RunDeductionSweep(ctx context.Context, at *time.Time) (SweepResult, error) {
	return e.sweeper.Run(ctx, at)
}

// RefreshTimezone re-reads the configured zone. The settings-update
// collaborator calls this after writing a new zone name.
func (e *Engine) RefreshTimezone(ctx context.Context) error {
	return e.tz.Refresh(ctx)
}

// SchedulerStatus returns the per-task status surface (last run, running
// flag, error and skip counts).
func (e *Engine) SchedulerStatus() []TaskStatus {
	return e.sched.Snapshot()
}
