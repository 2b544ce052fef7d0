package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/scheduler-api/internal/model"
	"github.com/jwalitptl/scheduler-api/internal/repository"
)

type outcomeRepository struct {
	BaseRepository
}

func NewOutcomeRepository(base BaseRepository) repository.OutcomeRepository {
	return &outcomeRepository{base}
}

func (r *outcomeRepository) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.Outcome, error) {
	query := `
		SELECT id, appointment_id, diagnosis, prescription, notes,
			   follow_up_date, created_at, updated_at
		FROM outcomes
		WHERE appointment_id = $1
	`
	var outcome model.Outcome
	err := r.db.GetContext(ctx, &outcome, query, appointmentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get outcome: %w", err)
	}
	return &outcome, nil
}
