package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dosetrack/dosetrack/pkg/core"
)

// Setting is a key/value configuration row (timezone, sweep marker).
type Setting struct {
	Key       string    `gorm:"primaryKey;size:64"`
	Value     string    `gorm:"type:text"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

const (
	settingTimezone    = "timezone"
	settingLastSweepAt = "last_sweep_at"
)

// GormStorage implements core.Storage using GORM.
type GormStorage struct {
	db *gorm.DB
}

// NewGormStorage creates a new GORM-backed storage.
func NewGormStorage(db *gorm.DB) *GormStorage {
	return &GormStorage{db: db}
}

// Migrate creates the necessary tables.
func (s *GormStorage) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(
		&core.Medication{},
		&core.DoseSchedule{},
		&core.Adjustment{},
		&Setting{},
	)
}

// CreateMedication inserts a medication, assigning an ID if empty.
func (s *GormStorage) CreateMedication(ctx context.Context, med *core.Medication) error {
	if med.ID == "" {
		med.ID = uuid.New().String()
	}
	return s.db.WithContext(ctx).Create(med).Error
}

// GetMedication returns the medication, or nil if it does not exist.
func (s *GormStorage) GetMedication(ctx context.Context, id string) (*core.Medication, error) {
	var med core.Medication
	err := s.db.WithContext(ctx).First(&med, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &med, nil
}

// CreateSchedule inserts a dose schedule, assigning an ID if empty.
func (s *GormStorage) CreateSchedule(ctx context.Context, sched *core.DoseSchedule) error {
	if sched.ID == "" {
		sched.ID = uuid.New().String()
	}
	return s.db.WithContext(ctx).Create(sched).Error
}

// GetSchedule returns the schedule, or nil if it does not exist.
func (s *GormStorage) GetSchedule(ctx context.Context, id string) (*core.DoseSchedule, error) {
	var sched core.DoseSchedule
	err := s.db.WithContext(ctx).First(&sched, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sched, nil
}

// ListAutoDeductSchedules returns every schedule with auto-deduction
// enabled, oldest first.
func (s *GormStorage) ListAutoDeductSchedules(ctx context.Context) ([]core.DoseSchedule, error) {
	var schedules []core.DoseSchedule
	err := s.db.WithContext(ctx).
		Where("auto_deduct = ?", true).
		Order("created_at ASC").
		Find(&schedules).Error
	return schedules, err
}

// SetLastDeduction advances the checkpoint. The WHERE clause enforces the
// monotonic invariant: an attempt to move the checkpoint backwards matches
// no rows and is a no-op.
func (s *GormStorage) SetLastDeduction(ctx context.Context, scheduleID string, at time.Time) error {
	return s.db.WithContext(ctx).
		Model(&core.DoseSchedule{}).
		Where("id = ?", scheduleID).
		Where("last_deduction IS NULL OR last_deduction <= ?", at).
		Update("last_deduction", at).Error
}

// ApplyAdjustment atomically applies the delta to the medication's count and
// appends the log row. This is the single ledger-update primitive; manual
// corrections from external collaborators use it too.
func (s *GormStorage) ApplyAdjustment(ctx context.Context, adj *core.Adjustment) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var med core.Medication
		if err := tx.First(&med, "id = ?", adj.MedicationID).Error; err != nil {
			return err
		}

		newCount := med.CurrentCount + adj.Delta
		if newCount < 0 {
			return &core.InsufficientStockError{
				MedicationID: med.ID,
				Needed:       -adj.Delta,
				Available:    med.CurrentCount,
			}
		}

		adj.PreviousCount = med.CurrentCount
		adj.NewCount = newCount
		if adj.ID == "" {
			adj.ID = uuid.New().String()
		}
		if err := tx.Create(adj).Error; err != nil {
			return err
		}

		return tx.Model(&core.Medication{}).
			Where("id = ?", med.ID).
			Update("current_count", newCount).Error
	})
}

// ListAdjustments returns a medication's log rows, oldest first.
func (s *GormStorage) ListAdjustments(ctx context.Context, medicationID string) ([]core.Adjustment, error) {
	var adjustments []core.Adjustment
	err := s.db.WithContext(ctx).
		Where("medication_id = ?", medicationID).
		Order("created_at ASC").
		Find(&adjustments).Error
	return adjustments, err
}

// TimezoneName returns the configured IANA zone name, or "" if unset.
func (s *GormStorage) TimezoneName(ctx context.Context) (string, error) {
	return s.getSetting(ctx, settingTimezone)
}

// SetTimezoneName updates the configured zone.
func (s *GormStorage) SetTimezoneName(ctx context.Context, name string) error {
	return s.putSetting(ctx, settingTimezone, name)
}

// LastSweepAt returns when a deduction sweep last completed, or nil.
func (s *GormStorage) LastSweepAt(ctx context.Context) (*time.Time, error) {
	raw, err := s.getSetting(ctx, settingLastSweepAt)
	if err != nil || raw == "" {
		return nil, err
	}
	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, err
	}
	return &at, nil
}

// SetLastSweepAt records the sweep marker.
func (s *GormStorage) SetLastSweepAt(ctx context.Context, at time.Time) error {
	return s.putSetting(ctx, settingLastSweepAt, at.UTC().Format(time.RFC3339Nano))
}

// Transaction runs fn against a transaction-scoped storage.
func (s *GormStorage) Transaction(ctx context.Context, fn func(tx core.Storage) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStorage{db: tx})
	})
}

func (s *GormStorage) getSetting(ctx context.Context, key string) (string, error) {
	var setting Setting
	err := s.db.WithContext(ctx).First(&setting, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return setting.Value, nil
}

func (s *GormStorage) putSetting(ctx context.Context, key, value string) error {
	setting := Setting{Key: key, Value: value}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&setting).Error
}
