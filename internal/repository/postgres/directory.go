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

// Read-only projections over the identity service's tables. Writes go
// through that service, never through here.

type clinicianRepository struct {
	BaseRepository
}

func NewClinicianRepository(base BaseRepository) repository.ClinicianRepository {
	return &clinicianRepository{base}
}

func (r *clinicianRepository) Get(ctx context.Context, id uuid.UUID) (*model.Clinician, error) {
	var c model.Clinician
	err := r.db.GetContext(ctx, &c, `
		SELECT id, name, email, department FROM clinicians WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get clinician: %w", err)
	}
	return &c, nil
}

func (r *clinicianRepository) List(ctx context.Context) ([]*model.Clinician, error) {
	var clinicians []*model.Clinician
	err := r.db.SelectContext(ctx, &clinicians, `
		SELECT id, name, email, department FROM clinicians ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list clinicians: %w", err)
	}
	return clinicians, nil
}

type patientRepository struct {
	BaseRepository
}

func NewPatientRepository(base BaseRepository) repository.PatientRepository {
	return &patientRepository{base}
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	var p model.Patient
	err := r.db.GetContext(ctx, &p, `
		SELECT id, name, email, webhook_url FROM patients WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return &p, nil
}
