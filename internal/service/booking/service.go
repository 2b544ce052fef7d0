package booking

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
	"github.com/jwalitptl/scheduler-api/pkg/metrics"
)

// SlotCacheInvalidator is satisfied by the availability service; the
// resolver invalidates the open-slots read model after each grant.
type SlotCacheInvalidator interface {
	InvalidateOpenSlots(clinicianID uuid.UUID, date model.Date)
}

// Service is the booking conflict resolver. It owns the single write
// path that can create a booked appointment.
type Service struct {
	aptRepo   repository.AppointmentRepository
	availRepo repository.AvailabilityRepository
	jobs      repository.JobRepository
	slotCache SlotCacheInvalidator
	metrics   *metrics.Metrics
	logger    *logger.Logger
	now       func() time.Time
}

func NewService(
	aptRepo repository.AppointmentRepository,
	availRepo repository.AvailabilityRepository,
	jobs repository.JobRepository,
	slotCache SlotCacheInvalidator,
	m *metrics.Metrics,
	logger *logger.Logger,
) *Service {
	return &Service{
		aptRepo:   aptRepo,
		availRepo: availRepo,
		jobs:      jobs,
		slotCache: slotCache,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// Book validates the request, then claims the slot in a single atomic
// insert. Validation failures never reach the store; losing arbitration
// surfaces as a Conflict, distinct from validation, so clients know to
// pick another time rather than fix their input.
func (s *Service) Book(ctx context.Context, patientID uuid.UUID, req *model.BookAppointmentRequest) (*model.Appointment, error) {
	s.metrics.BookingAttempts.Inc()

	if err := s.validateSlotTime(req.Date, req.Time); err != nil {
		return nil, err
	}

	inWindow, err := s.slotInsideEnabledWindow(ctx, req.ClinicianID, req.Date, req.Time)
	if err != nil {
		return nil, fmt.Errorf("failed to check availability: %w", err)
	}
	if !inWindow {
		return nil, errors.Validation("requested time is outside the clinician's availability", nil)
	}

	apt := &model.Appointment{
		PatientID:   patientID,
		ClinicianID: req.ClinicianID,
		Date:        req.Date,
		Time:        req.Time,
		Reason:      req.Reason,
	}

	if err := s.aptRepo.ClaimSlot(ctx, apt); err != nil {
		if stderrors.Is(err, repository.ErrSlotTaken) {
			s.metrics.BookingConflicts.Inc()
			return nil, errors.Conflict("slot already booked", err)
		}
		return nil, fmt.Errorf("failed to book appointment: %w", err)
	}

	s.slotCache.InvalidateOpenSlots(req.ClinicianID, req.Date)

	// The booking is committed; a failed enqueue must not undo it.
	// Notification delivery is repairable, a lost booking is not.
	if _, err := s.jobs.Enqueue(ctx, model.JobTypeNotifyGranted, model.NotifyGrantedPayload{
		AppointmentID: apt.ID,
	}); err != nil {
		s.logger.Error(err, "booking committed but notify_granted enqueue failed",
			"appointment_id", apt.ID.String())
	}

	return apt, nil
}

func (s *Service) validateSlotTime(date model.Date, t model.ClockTime) error {
	now := s.now()
	today := model.Today(now.Location())

	if date.Before(today) {
		return errors.Validation("appointment date cannot be in the past", nil)
	}
	if date.Equal(today) {
		current := model.NewClockTime(now.Hour(), now.Minute())
		if !current.Before(t) {
			return errors.Validation("appointment time must be after the current time", nil)
		}
	}
	return nil
}

func (s *Service) slotInsideEnabledWindow(ctx context.Context, clinicianID uuid.UUID, date model.Date, t model.ClockTime) (bool, error) {
	windows, err := s.availRepo.ListForDate(ctx, clinicianID, date)
	if err != nil {
		return false, err
	}
	for _, w := range windows {
		if !w.Enabled {
			continue
		}
		if !t.Before(w.StartTime) && t.Before(w.EndTime) {
			return true, nil
		}
	}
	return false, nil
}
