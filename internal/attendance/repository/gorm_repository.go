package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"attendance-bridge/internal/attendance/domain"

	"gorm.io/gorm"
)

// watermarkRow is one row of attendance_watermarks.
type watermarkRow struct {
	SubjectID   string `gorm:"primaryKey;size:64"`
	WorkDate    string `gorm:"primaryKey;size:10;index"`
	FirstInTime *time.Time
	LastOutTime *time.Time
	UpdatedAt   time.Time
}

func (watermarkRow) TableName() string { return "attendance_watermarks" }

// pollStateRow is the single row of attendance_poll_states.
type pollStateRow struct {
	ID             uint `gorm:"primaryKey"`
	Cursor         *time.Time
	DailyDate      string `gorm:"size:10"`
	InNotified     int
	OutNotified    int
	ActiveSubjects int
	LastNotifiedAt *time.Time
	UpdatedAt      time.Time
}

func (pollStateRow) TableName() string { return "attendance_poll_states" }

const pollStateID = 1

// gormStateRepository implements StateRepository using GORM
type gormStateRepository struct {
	db *gorm.DB
}

// NewGormStateRepository creates a GORM-based StateRepository and migrates
// its tables.
func NewGormStateRepository(db *gorm.DB) (StateRepository, error) {
	if err := db.AutoMigrate(&watermarkRow{}, &pollStateRow{}); err != nil {
		return nil, fmt.Errorf("migrate state tables: %w", err)
	}
	return &gormStateRepository{db: db}, nil
}

func (r *gormStateRepository) Load(ctx context.Context) (*domain.State, error) {
	state := domain.NewState()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ps pollStateRow
		err := tx.Where("id = ?", pollStateID).First(&ps).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
		case err != nil:
			return err
		default:
			if ps.Cursor != nil {
				state.Cursor = *ps.Cursor
			}
			state.Daily = domain.DailyCounter{
				Date:           ps.DailyDate,
				InNotified:     ps.InNotified,
				OutNotified:    ps.OutNotified,
				ActiveSubjects: ps.ActiveSubjects,
				LastNotifiedAt: ps.LastNotifiedAt,
			}
		}

		var rows []watermarkRow
		if err := tx.Find(&rows).Error; err != nil {
			return err
		}
		for _, row := range rows {
			if row.SubjectID == "" {
				return &domain.CorruptStateError{Source: watermarkRow{}.TableName(), Err: errors.New("empty subject id")}
			}
			w := &domain.Watermark{
				SubjectID:   row.SubjectID,
				WorkDate:    row.WorkDate,
				FirstInTime: row.FirstInTime,
				LastOutTime: row.LastOutTime,
				UpdatedAt:   row.UpdatedAt,
			}
			state.Watermarks[w.Key()] = w
		}
		return nil
	})
	if err != nil {
		var ce *domain.CorruptStateError
		if errors.As(err, &ce) {
			return nil, err
		}
		return nil, fmt.Errorf("load state: %w", err)
	}
	return state, nil
}

func (r *gormStateRepository) Save(ctx context.Context, state *domain.State) error {
	rows := make([]watermarkRow, 0, len(state.Watermarks))
	for _, w := range state.Watermarks {
		rows = append(rows, watermarkRow{
			SubjectID:   w.SubjectID,
			WorkDate:    w.WorkDate,
			FirstInTime: w.FirstInTime,
			LastOutTime: w.LastOutTime,
			UpdatedAt:   w.UpdatedAt,
		})
	}

	ps := pollStateRow{
		ID:             pollStateID,
		DailyDate:      state.Daily.Date,
		InNotified:     state.Daily.InNotified,
		OutNotified:    state.Daily.OutNotified,
		ActiveSubjects: state.Daily.ActiveSubjects,
		LastNotifiedAt: state.Daily.LastNotifiedAt,
		UpdatedAt:      time.Now(),
	}
	if !state.Cursor.IsZero() {
		// Postgres rounds to the nearest microsecond; rounding up could lift a
		// held-back cursor onto the event it was held below.
		cursor := state.Cursor.Truncate(time.Microsecond)
		ps.Cursor = &cursor
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&watermarkRow{}).Error; err != nil {
			return err
		}
		if len(rows) > 0 {
			if err := tx.CreateInBatches(rows, 200).Error; err != nil {
				return err
			}
		}
		return tx.Save(&ps).Error
	})
}
