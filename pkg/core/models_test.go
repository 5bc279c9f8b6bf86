package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validSchedule() *DoseSchedule {
	return &DoseSchedule{
		ID:           "sched-1",
		MedicationID: "med-1",
		Kind:         KindDaily,
		Times:        TimeOfDayList{{Hour: 8, Minute: 0}},
		UnitsPerDose: 1,
	}
}

func TestDoseSchedule_ValidateAcceptsWellFormed(t *testing.T) {
	assert.NoError(t, validSchedule().Validate())
}

func TestDoseSchedule_ValidateRejectsUnknownKind(t *testing.T) {
	sched := validSchedule()
	sched.Kind = "fortnightly"

	err := sched.Validate()

	var unknown *UnknownScheduleKindError
	assert.ErrorAs(t, err, &unknown)
}

func TestDoseSchedule_ValidateRejectsEmptyTimes(t *testing.T) {
	sched := validSchedule()
	sched.Times = nil
	assert.Error(t, sched.Validate())
}

func TestDoseSchedule_ValidateRejectsOutOfRangeTime(t *testing.T) {
	sched := validSchedule()
	sched.Times = TimeOfDayList{{Hour: 24, Minute: 0}}

	err := sched.Validate()

	var invalid *InvalidTimeError
	assert.ErrorAs(t, err, &invalid)
}

func TestDoseSchedule_ValidateRejectsNonPositiveDose(t *testing.T) {
	sched := validSchedule()
	sched.UnitsPerDose = 0
	assert.Error(t, sched.Validate())
}

func TestDoseSchedule_ValidateRejectsEmptyWeekdaySet(t *testing.T) {
	sched := validSchedule()
	sched.Kind = KindWeekdays
	sched.Weekdays = 0
	assert.Error(t, sched.Validate())
}

func TestDoseSchedule_EffectiveIntervalClampsToOne(t *testing.T) {
	sched := validSchedule()
	sched.Kind = KindInterval

	sched.IntervalDays = 0
	assert.Equal(t, 1, sched.EffectiveInterval())

	sched.IntervalDays = -3
	assert.Equal(t, 1, sched.EffectiveInterval())

	sched.IntervalDays = 5
	assert.Equal(t, 5, sched.EffectiveInterval())
}

func TestFixedClock_ReturnsConfiguredInstant(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, at, FixedClock{At: at}.Now())
}
