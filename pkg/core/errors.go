package core

import (
	"fmt"
)

// InvalidTimeError indicates a malformed or out-of-range time-of-day value.
// Schedules carrying one are skipped by the sweep; other schedules continue
// unaffected.
type InvalidTimeError struct {
	Value string
}

func (e *InvalidTimeError) Error() string {
	return fmt.Sprintf("invalid time of day %q, expected HH:MM in 00:00..23:59", e.Value)
}

// InsufficientStockError indicates a deduction was skipped because the
// ledger count would have gone negative. It is never escalated to a
// sweep-wide failure.
type InsufficientStockError struct {
	MedicationID string
	Needed       int
	Available    int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for medication %s: need %d, have %d",
		e.MedicationID, e.Needed, e.Available)
}

// UnknownScheduleKindError indicates a schedule row with a kind the engine
// does not understand. The evaluator and reconciler switch exhaustively over
// ScheduleKind; anything else surfaces as this error instead of being
// silently ignored.
type UnknownScheduleKindError struct {
	Kind ScheduleKind
}

func (e *UnknownScheduleKindError) Error() string {
	return fmt.Sprintf("unknown schedule kind %q", string(e.Kind))
}
