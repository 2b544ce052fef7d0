package appointment

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/scheduler-api/internal/model"
	"github.com/jwalitptl/scheduler-api/internal/repository"
	"github.com/jwalitptl/scheduler-api/pkg/errors"
	"github.com/jwalitptl/scheduler-api/pkg/logger"
)

// SlotCacheInvalidator mirrors the booking service's dependency; a
// cancellation frees a slot, so the cached open-slots page is stale.
type SlotCacheInvalidator interface {
	InvalidateOpenSlots(clinicianID uuid.UUID, date model.Date)
}

// Service owns the appointment lifecycle after the grant:
// booked -> cancelled and booked -> completed. Both terminal states are
// final; re-cancelling or re-completing fails with a Conflict.
type Service struct {
	repo        repository.AppointmentRepository
	outcomeRepo repository.OutcomeRepository
	jobs        repository.JobRepository
	slotCache   SlotCacheInvalidator
	logger      *logger.Logger
}

func NewService(
	repo repository.AppointmentRepository,
	outcomeRepo repository.OutcomeRepository,
	jobs repository.JobRepository,
	slotCache SlotCacheInvalidator,
	logger *logger.Logger,
) *Service {
	return &Service{
		repo:        repo,
		outcomeRepo: outcomeRepo,
		jobs:        jobs,
		slotCache:   slotCache,
		logger:      logger,
	}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.repo.Get(ctx, id)
	if stderrors.Is(err, repository.ErrNotFound) {
		return nil, errors.NotFound("appointment", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return apt, nil
}

func (s *Service) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	appointments, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

// Cancel transitions booked -> cancelled on behalf of the owning
// patient, the assigned clinician, or an admin. The status guard lives
// in the UPDATE itself, so two racing cancels cannot both succeed.
func (s *Service) Cancel(ctx context.Context, actor *model.Actor, id uuid.UUID, reason string) (*model.Appointment, error) {
	apt, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !actor.CanCancel(apt) {
		return nil, errors.Forbidden("not allowed to cancel this appointment", nil)
	}
	if apt.Status.Terminal() {
		return nil, errors.Conflict(
			fmt.Sprintf("appointment is already %s", apt.Status), nil)
	}

	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}
	if err := s.repo.CancelIfBooked(ctx, id, reasonPtr); err != nil {
		if stderrors.Is(err, repository.ErrStaleStatus) {
			return nil, errors.Conflict("appointment is no longer booked", err)
		}
		return nil, fmt.Errorf("failed to cancel appointment: %w", err)
	}

	apt.Status = model.AppointmentStatusCancelled
	apt.CancelReason = reasonPtr
	apt.UpdatedAt = time.Now()

	s.slotCache.InvalidateOpenSlots(apt.ClinicianID, apt.Date)

	if _, err := s.jobs.Enqueue(ctx, model.JobTypeNotifyCancelled, model.NotifyCancelledPayload{
		AppointmentID: apt.ID,
		Reason:        reason,
	}); err != nil {
		s.logger.Error(err, "cancellation committed but notify_cancelled enqueue failed",
			"appointment_id", apt.ID.String())
	}

	return apt, nil
}

// Complete transitions booked -> completed and attaches the outcome
// record in the same unit of work. Only the assigned clinician may
// complete.
func (s *Service) Complete(ctx context.Context, actor *model.Actor, id uuid.UUID, req *model.CompleteAppointmentRequest) (*model.Outcome, error) {
	apt, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !actor.CanComplete(apt) {
		return nil, errors.Forbidden("only the assigned clinician can complete an appointment", nil)
	}
	if apt.Status.Terminal() {
		return nil, errors.Conflict(
			fmt.Sprintf("appointment is already %s", apt.Status), nil)
	}

	outcome := &model.Outcome{
		Diagnosis:    req.Diagnosis,
		Prescription: req.Prescription,
		Notes:        req.Notes,
		FollowUpDate: req.FollowUpDate,
	}

	if err := s.repo.CompleteWithOutcome(ctx, id, outcome); err != nil {
		if stderrors.Is(err, repository.ErrStaleStatus) {
			return nil, errors.Conflict("appointment is no longer booked", err)
		}
		return nil, fmt.Errorf("failed to complete appointment: %w", err)
	}

	return outcome, nil
}

// Outcome returns the result record for a completed appointment.
func (s *Service) Outcome(ctx context.Context, id uuid.UUID) (*model.Outcome, error) {
	outcome, err := s.outcomeRepo.GetByAppointment(ctx, id)
	if stderrors.Is(err, repository.ErrNotFound) {
		return nil, errors.NotFound("outcome", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get outcome: %w", err)
	}
	return outcome, nil
}
