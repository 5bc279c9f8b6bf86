package deduct

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dosetrack/dosetrack/pkg/core"
	"github.com/dosetrack/dosetrack/pkg/recurrence"
)

// Applier consumes a schedule's backlog against the inventory ledger.
type Applier struct {
	logger *slog.Logger
}

// NewApplier builds an Applier.
func NewApplier(logger *slog.Logger) *Applier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Applier{logger: logger}
}

// ApplySchedule walks the backlog in order. For each instant it subtracts
// UnitsPerDose from the medication's count, appends a ledger row tagged with
// the instant, and advances the schedule's checkpoint. An instant the stock
// cannot cover is skipped with a warning and the checkpoint does not move
// past it; later instants are still attempted against the unchanged stock.
//
// The backlog must be chronologically sorted; out-of-order instants would
// be dropped by the monotonic checkpoint guard. Returns the number of
// deductions applied.
func (a *Applier) ApplySchedule(ctx context.Context, store core.Storage, sched *core.DoseSchedule, backlog []time.Time, now time.Time) (int, error) {
	if sched.UnitsPerDose <= 0 {
		return 0, nil
	}

	applied := 0
	for _, instant := range backlog {
		// The checkpoint only ever moves forward.
		if sched.LastDeduction != nil && !instant.After(*sched.LastDeduction) {
			continue
		}

		retroactive := now.Sub(instant) > recurrence.DedupWindow
		due := instant
		adj := &core.Adjustment{
			MedicationID: sched.MedicationID,
			Delta:        -sched.UnitsPerDose,
			Reason:       deductionReason(retroactive),
			ScheduleID:   sched.ID,
			ScheduledFor: &due,
			Retroactive:  retroactive,
		}

		err := store.ApplyAdjustment(ctx, adj)
		var insufficient *core.InsufficientStockError
		if errors.As(err, &insufficient) {
			a.logger.Warn("skipping dose, insufficient stock",
				"schedule", sched.ID,
				"medication", sched.MedicationID,
				"due", instant,
				"needed", insufficient.Needed,
				"available", insufficient.Available)
			continue
		}
		if err != nil {
			return applied, fmt.Errorf("apply deduction for schedule %s: %w", sched.ID, err)
		}

		if err := store.SetLastDeduction(ctx, sched.ID, instant); err != nil {
			return applied, fmt.Errorf("advance checkpoint for schedule %s: %w", sched.ID, err)
		}
		checkpoint := instant
		sched.LastDeduction = &checkpoint
		applied++

		a.logger.Info("dose deducted",
			"schedule", sched.ID,
			"medication", sched.MedicationID,
			"due", instant,
			"units", sched.UnitsPerDose,
			"retroactive", retroactive,
			"remaining", adj.NewCount)
	}
	return applied, nil
}

func deductionReason(retroactive bool) string {
	if retroactive {
		return "auto deduction (catch-up)"
	}
	return "auto deduction"
}
