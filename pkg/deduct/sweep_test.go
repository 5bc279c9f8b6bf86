package deduct

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/dosetrack/dosetrack/pkg/core"
	"github.com/dosetrack/dosetrack/pkg/reconcile"
	"github.com/dosetrack/dosetrack/pkg/recurrence"
	"github.com/dosetrack/dosetrack/pkg/storage"
	"github.com/dosetrack/dosetrack/pkg/timezone"
)

func openStore(t *testing.T) *storage.GormStorage {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "deduct_test.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err, "open sqlite test db")

	store := storage.NewGormStorage(db)
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func newSweeper(store core.Storage, now time.Time) *Sweeper {
	conv := timezone.NewConverter(timezone.Fixed(time.UTC), nil)
	eval := recurrence.NewEvaluator(conv, nil)
	rec := reconcile.NewReconciler(eval, nil)
	return NewSweeper(store, rec, NewApplier(nil), nil, core.FixedClock{At: now}, nil)
}

func seedMedication(t *testing.T, store core.Storage, count int) *core.Medication {
	t.Helper()
	med := &core.Medication{Name: "Metformin", Unit: "tablets", CurrentCount: count}
	require.NoError(t, store.CreateMedication(context.Background(), med))
	return med
}

func seedDailySchedule(t *testing.T, store core.Storage, med *core.Medication, last time.Time, units int) *core.DoseSchedule {
	t.Helper()
	sched := &core.DoseSchedule{
		MedicationID:  med.ID,
		Kind:          core.KindDaily,
		Times:         core.TimeOfDayList{{Hour: 8}},
		UnitsPerDose:  units,
		AutoDeduct:    true,
		LastDeduction: &last,
	}
	require.NoError(t, store.CreateSchedule(context.Background(), sched))
	return sched
}

func TestSweep_NoDoseLoss(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	med := seedMedication(t, store, 10)
	now := time.Date(2025, 6, 13, 9, 0, 0, 0, time.UTC)
	sched := seedDailySchedule(t, store, med,
		time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC), 2)

	sweeper := newSweeper(store, now)
	result, err := sweeper.Run(ctx, nil)
	require.NoError(t, err)

	// Three missed days, two units each.
	assert.Equal(t, 1, result.SchedulesAffected)
	assert.Equal(t, 3, result.DeductionsApplied)

	got, err := store.GetMedication(ctx, med.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.CurrentCount)

	adjustments, err := store.ListAdjustments(ctx, med.ID)
	require.NoError(t, err)
	require.Len(t, adjustments, 3)
	total := 0
	for _, adj := range adjustments {
		total += -adj.Delta
	}
	assert.Equal(t, 6, total)

	reloaded, err := store.GetSchedule(ctx, sched.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.LastDeduction)
	assert.True(t, reloaded.LastDeduction.Equal(time.Date(2025, 6, 13, 8, 0, 0, 0, time.UTC)))
}

func TestSweep_SecondRunAtSameInstantIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	med := seedMedication(t, store, 10)
	now := time.Date(2025, 6, 13, 9, 0, 0, 0, time.UTC)
	seedDailySchedule(t, store, med,
		time.Date(2025, 6, 11, 8, 0, 0, 0, time.UTC), 1)

	sweeper := newSweeper(store, now)

	first, err := sweeper.Run(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, first.DeductionsApplied)

	second, err := sweeper.Run(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, second.DeductionsApplied)
	assert.Zero(t, second.SchedulesAffected)

	got, err := store.GetMedication(ctx, med.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, got.CurrentCount)
}

func TestSweep_InsufficientStockStopsCheckpointNotSweep(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	// Enough for one dose of three missed.
	med := seedMedication(t, store, 1)
	now := time.Date(2025, 6, 13, 9, 0, 0, 0, time.UTC)
	sched := seedDailySchedule(t, store, med,
		time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC), 1)

	sweeper := newSweeper(store, now)
	result, err := sweeper.Run(ctx, nil)
	require.NoError(t, err, "insufficient stock must not fail the sweep")

	assert.Equal(t, 1, result.DeductionsApplied)

	got, err := store.GetMedication(ctx, med.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.CurrentCount, "count never goes negative")

	reloaded, err := store.GetSchedule(ctx, sched.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.LastDeduction)
	// Checkpoint stops at the last instant that succeeded (June 11).
	assert.True(t, reloaded.LastDeduction.Equal(time.Date(2025, 6, 11, 8, 0, 0, 0, time.UTC)))
}

func TestSweep_StockRestockedLaterReplaysFromCheckpoint(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	med := seedMedication(t, store, 0)
	now := time.Date(2025, 6, 13, 9, 0, 0, 0, time.UTC)
	sched := seedDailySchedule(t, store, med,
		time.Date(2025, 6, 12, 8, 0, 0, 0, time.UTC), 1)

	sweeper := newSweeper(store, now)
	result, err := sweeper.Run(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, result.DeductionsApplied)

	// Manual restock through the same ledger primitive.
	require.NoError(t, store.ApplyAdjustment(ctx, &core.Adjustment{
		MedicationID: med.ID,
		Delta:        5,
		Reason:       "refill",
	}))

	result, err = sweeper.Run(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.DeductionsApplied)

	reloaded, err := store.GetSchedule(ctx, sched.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.LastDeduction.Equal(time.Date(2025, 6, 13, 8, 0, 0, 0, time.UTC)))
}

func TestSweep_MarksRetroactiveDeductions(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	med := seedMedication(t, store, 10)
	// One instant far in the past, one within the dedup window of now.
	now := time.Date(2025, 6, 13, 8, 2, 0, 0, time.UTC)
	seedDailySchedule(t, store, med,
		time.Date(2025, 6, 11, 8, 0, 0, 0, time.UTC), 1)

	sweeper := newSweeper(store, now)
	_, err := sweeper.Run(ctx, nil)
	require.NoError(t, err)

	adjustments, err := store.ListAdjustments(ctx, med.ID)
	require.NoError(t, err)
	require.Len(t, adjustments, 2)

	assert.True(t, adjustments[0].Retroactive, "June 12 dose applied retroactively")
	assert.False(t, adjustments[1].Retroactive, "June 13 dose applied live")
	require.NotNil(t, adjustments[0].ScheduledFor)
	assert.True(t, adjustments[0].ScheduledFor.Equal(time.Date(2025, 6, 12, 8, 0, 0, 0, time.UTC)))
}

func TestSweep_InvalidScheduleIsSkippedOthersContinue(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	med := seedMedication(t, store, 10)
	now := time.Date(2025, 6, 13, 9, 0, 0, 0, time.UTC)

	// A schedule with no times: skipped, never aborts the sweep.
	broken := &core.DoseSchedule{
		MedicationID: med.ID,
		Kind:         core.KindDaily,
		Times:        nil,
		UnitsPerDose: 1,
		AutoDeduct:   true,
	}
	require.NoError(t, store.CreateSchedule(ctx, broken))
	seedDailySchedule(t, store, med,
		time.Date(2025, 6, 12, 8, 0, 0, 0, time.UTC), 1)

	sweeper := newSweeper(store, now)
	result, err := sweeper.Run(ctx, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, result.SchedulesAffected)
	assert.Equal(t, 1, result.DeductionsApplied)
}

func TestSweep_RecordsSweepMarkerEvenWhenNothingDue(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	now := time.Date(2025, 6, 13, 9, 0, 0, 0, time.UTC)

	sweeper := newSweeper(store, now)
	_, err := sweeper.Run(ctx, nil)
	require.NoError(t, err)

	marker, err := store.LastSweepAt(ctx)
	require.NoError(t, err)
	require.NotNil(t, marker)
	assert.True(t, marker.Equal(now))
}

func TestSweep_TimeOverrideWins(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	med := seedMedication(t, store, 10)
	clockNow := time.Date(2025, 6, 13, 9, 0, 0, 0, time.UTC)
	seedDailySchedule(t, store, med,
		time.Date(2025, 6, 12, 8, 0, 0, 0, time.UTC), 1)

	sweeper := newSweeper(store, clockNow)

	// Override to a point before anything new is due.
	at := time.Date(2025, 6, 12, 9, 0, 0, 0, time.UTC)
	result, err := sweeper.Run(ctx, &at)
	require.NoError(t, err)
	assert.Zero(t, result.DeductionsApplied)

	marker, err := store.LastSweepAt(ctx)
	require.NoError(t, err)
	assert.True(t, marker.Equal(at))
}
