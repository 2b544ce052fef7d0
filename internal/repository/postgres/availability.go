package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/scheduler-api/internal/model"
	"github.com/jwalitptl/scheduler-api/internal/repository"
)

const windowColumns = `id, clinician_id, visit_date, start_time, end_time,
	enabled, created_at, updated_at`

type availabilityRepository struct {
	BaseRepository
}

func NewAvailabilityRepository(base BaseRepository) repository.AvailabilityRepository {
	return &availabilityRepository{base}
}

// ReplaceForDate implements replace-all-for-date semantics: delete then
// insert inside one transaction so readers never observe a partial set.
func (r *availabilityRepository) ReplaceForDate(ctx context.Context, clinicianID uuid.UUID, date model.Date, windows []*model.AvailabilityWindow) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			DELETE FROM availability_windows
			WHERE clinician_id = $1 AND visit_date = $2
		`, clinicianID, date)
		if err != nil {
			return fmt.Errorf("failed to clear windows: %w", err)
		}

		for _, w := range windows {
			w.ID = uuid.New()
			w.ClinicianID = clinicianID
			w.Date = date
			w.CreatedAt = time.Now()
			w.UpdatedAt = time.Now()

			_, err := tx.ExecContext(ctx, `
				INSERT INTO availability_windows (
					id, clinician_id, visit_date, start_time, end_time,
					enabled, created_at, updated_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`,
				w.ID,
				w.ClinicianID,
				w.Date,
				w.StartTime,
				w.EndTime,
				w.Enabled,
				w.CreatedAt,
				w.UpdatedAt,
			)
			if err != nil {
				return fmt.Errorf("failed to insert window: %w", err)
			}
		}
		return nil
	})
}

func (r *availabilityRepository) ListForDate(ctx context.Context, clinicianID uuid.UUID, date model.Date) ([]*model.AvailabilityWindow, error) {
	query := `
		SELECT ` + windowColumns + `
		FROM availability_windows
		WHERE clinician_id = $1 AND visit_date = $2
		ORDER BY start_time ASC
	`
	var windows []*model.AvailabilityWindow
	if err := r.db.SelectContext(ctx, &windows, query, clinicianID, date); err != nil {
		return nil, fmt.Errorf("failed to list windows: %w", err)
	}
	return windows, nil
}

func (r *availabilityRepository) ListForRange(ctx context.Context, clinicianID uuid.UUID, from, to model.Date) ([]*model.AvailabilityWindow, error) {
	query := `
		SELECT ` + windowColumns + `
		FROM availability_windows
		WHERE clinician_id = $1 AND visit_date >= $2 AND visit_date <= $3
		ORDER BY visit_date ASC, start_time ASC
	`
	var windows []*model.AvailabilityWindow
	if err := r.db.SelectContext(ctx, &windows, query, clinicianID, from, to); err != nil {
		return nil, fmt.Errorf("failed to list windows: %w", err)
	}
	return windows, nil
}
