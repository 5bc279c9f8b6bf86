package core

import (
	"fmt"
	"time"
)

// ScheduleKind selects the recurrence rule of a DoseSchedule.
type ScheduleKind string

const (
	// KindDaily fires on every calendar date.
	KindDaily ScheduleKind = "daily"
	// KindInterval fires every IntervalDays days, anchored on the last
	// deduction (or the creation date before the first deduction).
	KindInterval ScheduleKind = "interval"
	// KindWeekdays fires only on the weekdays in the Weekdays set.
	KindWeekdays ScheduleKind = "weekdays"
)

// Medication is the owner of an inventory ledger. CurrentCount is the ledger
// head; every change to it goes through Storage.ApplyAdjustment so the
// append-only Adjustment log stays consistent with the count.
type Medication struct {
	ID           string `gorm:"primaryKey;size:36"`
	Name         string `gorm:"size:255;not null"`
	Unit         string `gorm:"size:64"`
	CurrentCount int    `gorm:"not null;default:0"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Adjustment is one row of a medication's append-only inventory log.
type Adjustment struct {
	ID            string     `gorm:"primaryKey;size:36"`
	MedicationID  string     `gorm:"index;size:36;not null"`
	PreviousCount int        `gorm:"not null"`
	Delta         int        `gorm:"not null"`
	NewCount      int        `gorm:"not null"`
	Reason        string     `gorm:"size:255"`
	ScheduleID    string     `gorm:"index;size:36"` // empty for manual adjustments
	ScheduledFor  *time.Time // the instant the dose was due
	Retroactive   bool       `gorm:"default:false"` // applied by catch-up rather than live
	CreatedAt     time.Time  `gorm:"autoCreateTime"`
}

// DoseSchedule is a recurring dosing rule for one medication.
//
// LastDeduction is the checkpoint of the reconciliation algorithm: the most
// recent scheduled instant that has actually been applied to the ledger. It
// is monotonically non-decreasing over the schedule's lifetime.
type DoseSchedule struct {
	ID            string        `gorm:"primaryKey;size:36"`
	MedicationID  string        `gorm:"index;size:36;not null"`
	Kind          ScheduleKind  `gorm:"size:20;not null"`
	IntervalDays  int           `gorm:"default:1"`
	Weekdays      WeekdaySet    `gorm:"default:0"`
	Times         TimeOfDayList `gorm:"size:255;not null"`
	UnitsPerDose  int           `gorm:"not null"`
	AutoDeduct    bool          `gorm:"index;default:true"`
	LastDeduction *time.Time
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

// Validate checks that the schedule is well formed enough to evaluate.
// A schedule failing validation is skipped by the sweep; it never aborts the
// sweep for other schedules.
func (s *DoseSchedule) Validate() error {
	switch s.Kind {
	case KindDaily, KindInterval, KindWeekdays:
	default:
		return &UnknownScheduleKindError{Kind: s.Kind}
	}
	if len(s.Times) == 0 {
		return fmt.Errorf("schedule %s: no times of day configured", s.ID)
	}
	for _, tod := range s.Times {
		if err := tod.Validate(); err != nil {
			return err
		}
	}
	if s.UnitsPerDose <= 0 {
		return fmt.Errorf("schedule %s: units per dose must be positive, got %d", s.ID, s.UnitsPerDose)
	}
	if s.Kind == KindWeekdays && s.Weekdays.Empty() {
		return fmt.Errorf("schedule %s: weekday schedule with empty weekday set", s.ID)
	}
	return nil
}

// EffectiveInterval returns the interval in days, treating non-positive
// values as 1.
func (s *DoseSchedule) EffectiveInterval() int {
	if s.IntervalDays <= 0 {
		return 1
	}
	return s.IntervalDays
}
