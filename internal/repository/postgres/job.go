package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/scheduler-api/internal/model"
	"github.com/jwalitptl/scheduler-api/internal/repository"
)

const jobColumns = `id, job_type, payload, status, result, error_message,
	enqueued_at, started_at, completed_at`

type jobRepository struct {
	BaseRepository
}

func NewJobRepository(base BaseRepository) repository.JobRepository {
	return &jobRepository{base}
}

func (r *jobRepository) Enqueue(ctx context.Context, jobType model.JobType, payload interface{}) (*model.Job, error) {
	if !jobType.Valid() {
		return nil, fmt.Errorf("unknown job type %q", jobType)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	job := &model.Job{
		ID:         uuid.New(),
		Type:       jobType,
		Payload:    raw,
		Status:     model.JobStatusPending,
		EnqueuedAt: time.Now(),
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO jobs (id, job_type, payload, status, enqueued_at)
		VALUES ($1, $2, $3, $4, $5)
	`, job.ID, job.Type, job.Payload, job.Status, job.EnqueuedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}
	return job, nil
}

func (r *jobRepository) Get(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`

	var job model.Job
	err := r.db.GetContext(ctx, &job, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// ClaimPending marks a batch of pending jobs as started and returns them
// in one statement. FOR UPDATE SKIP LOCKED keeps concurrent dispatcher
// instances from claiming the same job.
func (r *jobRepository) ClaimPending(ctx context.Context, limit int) ([]*model.Job, error) {
	query := `
		UPDATE jobs
		SET status = $1, started_at = NOW()
		WHERE id IN (
			SELECT id FROM jobs
			WHERE status = $2
			ORDER BY enqueued_at ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobColumns

	var jobs []*model.Job
	err := r.db.SelectContext(ctx, &jobs, query,
		model.JobStatusStarted, model.JobStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim pending jobs: %w", err)
	}
	return jobs, nil
}

func (r *jobRepository) MarkSuccess(ctx context.Context, id uuid.UUID, result string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = $1, result = $2, completed_at = NOW()
		WHERE id = $3
	`, model.JobStatusSuccess, result, id)
	if err != nil {
		return fmt.Errorf("failed to mark job success: %w", err)
	}
	return nil
}

func (r *jobRepository) MarkFailure(ctx context.Context, id uuid.UUID, errMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = $1, error_message = $2, completed_at = NOW()
		WHERE id = $3
	`, model.JobStatusFailure, errMsg, id)
	if err != nil {
		return fmt.Errorf("failed to mark job failure: %w", err)
	}
	return nil
}

func (r *jobRepository) CountPending(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM jobs WHERE status = $1`, model.JobStatusPending)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending jobs: %w", err)
	}
	return count, nil
}
