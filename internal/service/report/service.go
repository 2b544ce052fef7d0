package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/scheduler-api/internal/model"
	"github.com/jwalitptl/scheduler-api/internal/repository"
)

// Service builds the derived read models consumed by background jobs:
// the patient history export, the monthly clinician summary, and the
// daily reminder scan.
type Service struct {
	aptRepo     repository.AppointmentRepository
	outcomeRepo repository.OutcomeRepository
	patientRepo repository.PatientRepository
	clinRepo    repository.ClinicianRepository
}

func NewService(
	aptRepo repository.AppointmentRepository,
	outcomeRepo repository.OutcomeRepository,
	patientRepo repository.PatientRepository,
	clinRepo repository.ClinicianRepository,
) *Service {
	return &Service{
		aptRepo:     aptRepo,
		outcomeRepo: outcomeRepo,
		patientRepo: patientRepo,
		clinRepo:    clinRepo,
	}
}

// MonthlySummary aggregates one clinician's appointments for the month
// starting at monthStart.
type MonthlySummary struct {
	ClinicianID    uuid.UUID  `json:"clinician_id"`
	ClinicianName  string     `json:"clinician_name"`
	Month          model.Date `json:"month"`
	Total          int        `json:"total"`
	Booked         int        `json:"booked"`
	Completed      int        `json:"completed"`
	Cancelled      int        `json:"cancelled"`
	CompletionRate float64    `json:"completion_rate"`
}

// BuildMonthlySummary counts a clinician's appointments by status over
// one calendar month. monthStart must be the first day of the month.
func (s *Service) BuildMonthlySummary(ctx context.Context, clinicianID uuid.UUID, monthStart model.Date) (*MonthlySummary, error) {
	clinician, err := s.clinRepo.Get(ctx, clinicianID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve clinician: %w", err)
	}

	from := monthStart
	lastDay := monthStart.AddDate(0, 1, -1)
	to := model.NewDate(lastDay.Year(), lastDay.Month(), lastDay.Day())

	appointments, err := s.aptRepo.ListForClinicianRange(ctx, clinicianID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}

	summary := &MonthlySummary{
		ClinicianID:   clinicianID,
		ClinicianName: clinician.Name,
		Month:         monthStart,
		Total:         len(appointments),
	}
	for _, apt := range appointments {
		switch apt.Status {
		case model.AppointmentStatusBooked:
			summary.Booked++
		case model.AppointmentStatusCompleted:
			summary.Completed++
		case model.AppointmentStatusCancelled:
			summary.Cancelled++
		}
	}
	decided := summary.Completed + summary.Cancelled
	if decided > 0 {
		summary.CompletionRate = float64(summary.Completed) / float64(decided)
	}
	return summary, nil
}

// HistoryExport is a patient's full appointment history rendered as CSV,
// ready to be attached to an email.
type HistoryExport struct {
	Patient *model.Patient
	CSV     []byte
	Rows    int
}

// BuildHistoryExport renders every appointment the patient ever had,
// one row each, newest first as the repository returns them.
func (s *Service) BuildHistoryExport(ctx context.Context, patientID uuid.UUID) (*HistoryExport, error) {
	patient, err := s.patientRepo.Get(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve patient: %w", err)
	}

	appointments, err := s.aptRepo.ListForPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointment history: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{"date", "time", "clinician_id", "status", "reason", "cancel_reason"}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, apt := range appointments {
		cancelReason := ""
		if apt.CancelReason != nil {
			cancelReason = *apt.CancelReason
		}
		row := []string{
			apt.Date.String(),
			apt.Time.String(),
			apt.ClinicianID.String(),
			string(apt.Status),
			apt.Reason,
			cancelReason,
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}

	return &HistoryExport{
		Patient: patient,
		CSV:     buf.Bytes(),
		Rows:    len(appointments),
	}, nil
}

// Reminder pairs a booked appointment with the patient it should reach.
type Reminder struct {
	Appointment *model.Appointment
	Patient     *model.Patient
}

// RemindersForDate returns one reminder per appointment still booked on
// the given date. A patient the directory cannot resolve is skipped
// rather than failing the whole scan.
func (s *Service) RemindersForDate(ctx context.Context, date model.Date) ([]*Reminder, []error) {
	appointments, err := s.aptRepo.ListAllBookedForDate(ctx, date)
	if err != nil {
		return nil, []error{fmt.Errorf("failed to list bookings for %s: %w", date, err)}
	}

	var (
		reminders []*Reminder
		errs      []error
	)
	for _, apt := range appointments {
		patient, err := s.patientRepo.Get(ctx, apt.PatientID)
		if err != nil {
			errs = append(errs, fmt.Errorf("patient %s unresolvable for appointment %s: %w",
				apt.PatientID, apt.ID, err))
			continue
		}
		reminders = append(reminders, &Reminder{Appointment: apt, Patient: patient})
	}
	return reminders, errs
}

// PreviousMonthStart returns the first day of the month before ref.
// The monthly report job runs early in a month and reports on the one
// that just closed.
func PreviousMonthStart(ref time.Time) model.Date {
	firstOfThis := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC)
	prev := firstOfThis.AddDate(0, -1, 0)
	return model.NewDate(prev.Year(), prev.Month(), prev.Day())
}
