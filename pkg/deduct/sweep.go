package deduct

import (
	"context"
	"log/slog"
	"time"

	"github.com/dosetrack/dosetrack/pkg/core"
	"github.com/dosetrack/dosetrack/pkg/reconcile"
	"github.com/dosetrack/dosetrack/pkg/timezone"
)

// Result aggregates one sweep across all eligible schedules.
type Result struct {
	// SchedulesAffected counts schedules with at least one successful
	// deduction.
	SchedulesAffected int
	// DeductionsApplied counts individual deduction actions.
	DeductionsApplied int
}

// Sweeper drives one deduction sweep: load every auto-deduct schedule,
// reconcile its backlog, apply it, and record the sweep marker, all in a
// single storage transaction.
//
// The sweeper assumes a single writer. Two processes sweeping the same
// storage could both read the same checkpoint and apply the same backlog;
// a multi-process deployment needs an external leader lock first.
type Sweeper struct {
	store   core.Storage
	rec     *reconcile.Reconciler
	applier *Applier
	tz      *timezone.SettingProvider
	clock   core.Clock
	logger  *slog.Logger
}

// NewSweeper builds a Sweeper. tz may be nil when the timezone is fixed for
// the process lifetime.
func NewSweeper(store core.Storage, rec *reconcile.Reconciler, applier *Applier, tz *timezone.SettingProvider, clock core.Clock, logger *slog.Logger) *Sweeper {
	if clock == nil {
		clock = core.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{store: store, rec: rec, applier: applier, tz: tz, clock: clock, logger: logger}
}

// Run executes one sweep. A nil at uses the sweeper's clock; a non-nil at
// overrides the notion of "now" for operator-driven backfill or tests.
//
// Per-schedule failures (malformed times, unknown kinds) skip that schedule
// and continue. A storage failure aborts and rolls back the entire sweep;
// the next scheduled sweep retries from the unchanged checkpoints.
func (s *Sweeper) Run(ctx context.Context, at *time.Time) (Result, error) {
	now := s.clock.Now().UTC()
	if at != nil {
		now = at.UTC()
	}

	if s.tz != nil {
		if err := s.tz.Refresh(ctx); err != nil {
			return Result{}, err
		}
	}

	var result Result
	err := s.store.Transaction(ctx, func(tx core.Storage) error {
		schedules, err := tx.ListAutoDeductSchedules(ctx)
		if err != nil {
			return err
		}

		for i := range schedules {
			sched := &schedules[i]
			if err := sched.Validate(); err != nil {
				s.logger.Warn("skipping invalid schedule",
					"schedule", sched.ID, "error", err)
				continue
			}

			backlog, err := s.rec.Backlog(sched, now)
			if err != nil {
				s.logger.Warn("skipping schedule, backlog computation failed",
					"schedule", sched.ID, "error", err)
				continue
			}
			if len(backlog) == 0 {
				continue
			}

			applied, err := s.applier.ApplySchedule(ctx, tx, sched, backlog, now)
			if err != nil {
				// Storage-level failure: abort the sweep.
				return err
			}
			if applied > 0 {
				result.SchedulesAffected++
				result.DeductionsApplied += applied
			}
		}

		// The marker records that a sweep ran, whether or not any
		// schedule produced deductions.
		return tx.SetLastSweepAt(ctx, now)
	})
	if err != nil {
		s.logger.Error("deduction sweep failed, rolled back", "error", err)
		return Result{}, err
	}

	if result.DeductionsApplied > 0 {
		s.logger.Info("deduction sweep completed",
			"schedules_affected", result.SchedulesAffected,
			"deductions", result.DeductionsApplied)
	} else {
		s.logger.Debug("deduction sweep completed, nothing due")
	}
	return result, nil
}
