package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/scheduler-api/internal/model"
	"github.com/jwalitptl/scheduler-api/internal/repository"
)

// Postgres error code for unique_violation.
const pqUniqueViolation = "23505"

const appointmentColumns = `id, patient_id, clinician_id, visit_date, visit_time,
	status, reason, cancel_reason, created_at, updated_at`

type appointmentRepository struct {
	BaseRepository
}

func NewAppointmentRepository(base BaseRepository) repository.AppointmentRepository {
	return &appointmentRepository{base}
}

// ClaimSlot relies on the partial unique index over
// (clinician_id, visit_date, visit_time) WHERE status = 'booked'; the
// insert attempt itself is the arbitration point between concurrent
// bookers. First commit wins, everyone else gets ErrSlotTaken.
func (r *appointmentRepository) ClaimSlot(ctx context.Context, apt *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, patient_id, clinician_id, visit_date, visit_time,
			status, reason, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	apt.ID = uuid.New()
	apt.Status = model.AppointmentStatusBooked
	apt.CreatedAt = time.Now()
	apt.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		apt.ID,
		apt.PatientID,
		apt.ClinicianID,
		apt.Date,
		apt.Time,
		apt.Status,
		apt.Reason,
		apt.CreatedAt,
		apt.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return repository.ErrSlotTaken
		}
		return fmt.Errorf("failed to claim slot: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	var apt model.Appointment
	err := r.db.GetContext(ctx, &apt, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &apt, nil
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE 1=1`
	args := []interface{}{}
	argCount := 1

	if filters.ClinicianID != uuid.Nil {
		query += fmt.Sprintf(" AND clinician_id = $%d", argCount)
		args = append(args, filters.ClinicianID)
		argCount++
	}
	if filters.PatientID != uuid.Nil {
		query += fmt.Sprintf(" AND patient_id = $%d", argCount)
		args = append(args, filters.PatientID)
		argCount++
	}
	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, filters.Status)
		argCount++
	}
	if filters.From != nil {
		query += fmt.Sprintf(" AND visit_date >= $%d", argCount)
		args = append(args, *filters.From)
		argCount++
	}
	if filters.To != nil {
		query += fmt.Sprintf(" AND visit_date <= $%d", argCount)
		args = append(args, *filters.To)
		argCount++
	}

	query += " ORDER BY visit_date ASC, visit_time ASC"

	var appointments []*model.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) ListBookedForDate(ctx context.Context, clinicianID uuid.UUID, date model.Date) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE clinician_id = $1 AND visit_date = $2 AND status = $3
		ORDER BY visit_time ASC
	`
	var appointments []*model.Appointment
	err := r.db.SelectContext(ctx, &appointments, query, clinicianID, date, model.AppointmentStatusBooked)
	if err != nil {
		return nil, fmt.Errorf("failed to list booked appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) ListAllBookedForDate(ctx context.Context, date model.Date) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE visit_date = $1 AND status = $2
		ORDER BY visit_time ASC
	`
	var appointments []*model.Appointment
	err := r.db.SelectContext(ctx, &appointments, query, date, model.AppointmentStatusBooked)
	if err != nil {
		return nil, fmt.Errorf("failed to list booked appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE patient_id = $1
		ORDER BY visit_date DESC, visit_time DESC
	`
	var appointments []*model.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, patientID); err != nil {
		return nil, fmt.Errorf("failed to list patient appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) ListForClinicianRange(ctx context.Context, clinicianID uuid.UUID, from, to model.Date) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE clinician_id = $1 AND visit_date >= $2 AND visit_date <= $3
		ORDER BY visit_date ASC, visit_time ASC
	`
	var appointments []*model.Appointment
	err := r.db.SelectContext(ctx, &appointments, query, clinicianID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list clinician appointments: %w", err)
	}
	return appointments, nil
}

// CancelIfBooked is a compare-and-set: the WHERE clause guards against a
// concurrent transition, so a terminal appointment never flips back.
func (r *appointmentRepository) CancelIfBooked(ctx context.Context, id uuid.UUID, reason *string) error {
	query := `
		UPDATE appointments
		SET status = $1, cancel_reason = $2, updated_at = $3
		WHERE id = $4 AND status = $5
	`
	result, err := r.db.ExecContext(ctx, query,
		model.AppointmentStatusCancelled,
		reason,
		time.Now(),
		id,
		model.AppointmentStatusBooked,
	)
	if err != nil {
		return fmt.Errorf("failed to cancel appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrStaleStatus
	}
	return nil
}

func (r *appointmentRepository) CompleteWithOutcome(ctx context.Context, id uuid.UUID, outcome *model.Outcome) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE appointments
			SET status = $1, updated_at = $2
			WHERE id = $3 AND status = $4
		`, model.AppointmentStatusCompleted, time.Now(), id, model.AppointmentStatusBooked)
		if err != nil {
			return fmt.Errorf("failed to complete appointment: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			return repository.ErrStaleStatus
		}

		outcome.ID = uuid.New()
		outcome.AppointmentID = id
		outcome.CreatedAt = time.Now()
		outcome.UpdatedAt = time.Now()

		_, err = tx.ExecContext(ctx, `
			INSERT INTO outcomes (
				id, appointment_id, diagnosis, prescription, notes,
				follow_up_date, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`,
			outcome.ID,
			outcome.AppointmentID,
			outcome.Diagnosis,
			outcome.Prescription,
			outcome.Notes,
			outcome.FollowUpDate,
			outcome.CreatedAt,
			outcome.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create outcome: %w", err)
		}
		return nil
	})
}
