package core

import (
	"context"
	"time"
)

// Storage defines the persistence layer the engine runs against.
//
// The engine mutates LastDeduction and ledger state exclusively through
// SetLastDeduction and ApplyAdjustment; manual inventory corrections made by
// external collaborators must route through the same ApplyAdjustment
// primitive so the adjustment log stays consistent with the head count.
type Storage interface {
	// Migrate creates or updates the backing tables.
	Migrate(ctx context.Context) error

	// CreateMedication inserts a medication, assigning an ID if empty.
	CreateMedication(ctx context.Context, med *Medication) error
	// GetMedication returns the medication, or nil if it does not exist.
	GetMedication(ctx context.Context, id string) (*Medication, error)

	// CreateSchedule inserts a dose schedule, assigning an ID if empty.
	CreateSchedule(ctx context.Context, sched *DoseSchedule) error
	// GetSchedule returns the schedule, or nil if it does not exist.
	GetSchedule(ctx context.Context, id string) (*DoseSchedule, error)
	// ListAutoDeductSchedules returns every schedule with auto-deduction
	// enabled.
	ListAutoDeductSchedules(ctx context.Context) ([]DoseSchedule, error)
	// SetLastDeduction advances a schedule's checkpoint. Implementations
	// must never move the checkpoint backwards.
	SetLastDeduction(ctx context.Context, scheduleID string, at time.Time) error

	// ApplyAdjustment atomically applies adj.Delta to the medication's
	// current count and appends the log row, filling PreviousCount and
	// NewCount. It returns an InsufficientStockError if the result would
	// be negative.
	ApplyAdjustment(ctx context.Context, adj *Adjustment) error
	// ListAdjustments returns a medication's log rows, oldest first.
	ListAdjustments(ctx context.Context, medicationID string) ([]Adjustment, error)

	// TimezoneName returns the configured IANA zone name, or "" if unset.
	TimezoneName(ctx context.Context) (string, error)
	// SetTimezoneName updates the configured zone.
	SetTimezoneName(ctx context.Context, name string) error

	// LastSweepAt returns when a deduction sweep last completed, or nil.
	LastSweepAt(ctx context.Context) (*time.Time, error)
	// SetLastSweepAt records the sweep marker.
	SetLastSweepAt(ctx context.Context, at time.Time) error

	// Transaction runs fn against a transaction-scoped Storage. fn
	// returning an error rolls back everything written through it;
	// otherwise the transaction commits.
	Transaction(ctx context.Context, fn func(tx Storage) error) error
}
