package worker

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/scheduler-api/internal/email"
	"github.com/jwalitptl/scheduler-api/internal/model"
	"github.com/jwalitptl/scheduler-api/internal/repository"
	"github.com/jwalitptl/scheduler-api/internal/service/report"
	"github.com/jwalitptl/scheduler-api/pkg/errors"
	"github.com/jwalitptl/scheduler-api/pkg/logger"
	"github.com/jwalitptl/scheduler-api/pkg/metrics"
)

// Handler executes one claimed job. The returned string is recorded as
// the job result; a non-nil error marks the job failed with the error
// message recorded.
type Handler func(ctx context.Context, job *model.Job) (string, error)

// Handlers holds the dependencies shared by all job handlers. Payloads
// carry ids only; every handler re-resolves current state here.
type Handlers struct {
	aptRepo     repository.AppointmentRepository
	outcomeRepo repository.OutcomeRepository
	clinRepo    repository.ClinicianRepository
	patientRepo repository.PatientRepository
	reports     *report.Service
	email       email.Service
	webhook     *WebhookNotifier
	metrics     *metrics.Metrics
	logger      *logger.Logger
}

func NewHandlers(
	aptRepo repository.AppointmentRepository,
	outcomeRepo repository.OutcomeRepository,
	clinRepo repository.ClinicianRepository,
	patientRepo repository.PatientRepository,
	reports *report.Service,
	emailSvc email.Service,
	webhook *WebhookNotifier,
	m *metrics.Metrics,
	logger *logger.Logger,
) *Handlers {
	return &Handlers{
		aptRepo:     aptRepo,
		outcomeRepo: outcomeRepo,
		clinRepo:    clinRepo,
		patientRepo: patientRepo,
		reports:     reports,
		email:       emailSvc,
		webhook:     webhook,
		metrics:     m,
		logger:      logger,
	}
}

// Registry maps every known job type to its handler. Built once at
// startup; the dispatcher fails jobs whose type it cannot find here.
func (h *Handlers) Registry() map[model.JobType]Handler {
	return map[model.JobType]Handler{
		model.JobTypeNotifyGranted:    h.NotifyGranted,
		model.JobTypeNotifyCancelled:  h.NotifyCancelled,
		model.JobTypeExportHistory:    h.ExportHistory,
		model.JobTypeRenderRecord:     h.RenderRecord,
		model.JobTypePeriodicReminder: h.PeriodicReminder,
		model.JobTypePeriodicReport:   h.PeriodicReport,
	}
}

func (h *Handlers) NotifyGranted(ctx context.Context, job *model.Job) (string, error) {
	var payload model.NotifyGrantedPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return "", fmt.Errorf("invalid payload: %w", err)
	}

	apt, patient, clinician, err := h.resolveAppointment(ctx, payload.AppointmentID)
	if err != nil {
		return "", err
	}

	body := fmt.Sprintf(
		"Hello %s,\n\nYour appointment is CONFIRMED with %s on %s at %s.\n\n"+
			"Please arrive 10 minutes early.\n\nRegards,\nClinic Scheduling",
		patient.Name, clinician.Name, apt.Date, apt.Time)

	if err := h.deliver(ctx, patient, "Appointment Confirmed", body); err != nil {
		return "", err
	}
	return fmt.Sprintf("confirmation sent for appointment %s", apt.ID), nil
}

func (h *Handlers) NotifyCancelled(ctx context.Context, job *model.Job) (string, error) {
	var payload model.NotifyCancelledPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return "", fmt.Errorf("invalid payload: %w", err)
	}

	apt, patient, clinician, err := h.resolveAppointment(ctx, payload.AppointmentID)
	if err != nil {
		return "", err
	}

	reasonText := ""
	if payload.Reason != "" {
		reasonText = "\nReason: " + payload.Reason
	}
	body := fmt.Sprintf(
		"Hello %s,\n\nYour appointment with %s on %s at %s has been CANCELLED.%s\n\n"+
			"Regards,\nClinic Scheduling",
		patient.Name, clinician.Name, apt.Date, apt.Time, reasonText)

	if err := h.deliver(ctx, patient, "Appointment Cancelled", body); err != nil {
		return "", err
	}
	return fmt.Sprintf("cancellation notice sent for appointment %s", apt.ID), nil
}

func (h *Handlers) ExportHistory(ctx context.Context, job *model.Job) (string, error) {
	var payload model.ExportHistoryPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return "", fmt.Errorf("invalid payload: %w", err)
	}

	export, err := h.reports.BuildHistoryExport(ctx, payload.PatientID)
	if err != nil {
		return "", err
	}
	if export.Patient.Email == "" {
		return "", fmt.Errorf("patient %s has no email address", payload.PatientID)
	}

	body := fmt.Sprintf(
		"Dear %s,\n\nPlease find attached your complete appointment history.\n\n"+
			"Regards,\nClinic Scheduling",
		export.Patient.Name)

	err = h.email.SendWithAttachment(ctx, export.Patient.Email,
		"Your Appointment History Export", body,
		email.Attachment{
			Filename:    fmt.Sprintf("history_%s.csv", payload.PatientID),
			ContentType: "text/csv",
			Data:        export.CSV,
		})
	if err != nil {
		h.metrics.DeliveryAttempts.WithLabelValues("email", "failure").Inc()
		return "", errors.Delivery("export built but email failed", err)
	}
	h.metrics.DeliveryAttempts.WithLabelValues("email", "success").Inc()
	return fmt.Sprintf("exported %d appointments to %s", export.Rows, export.Patient.Email), nil
}

func (h *Handlers) RenderRecord(ctx context.Context, job *model.Job) (string, error) {
	var payload model.RenderRecordPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return "", fmt.Errorf("invalid payload: %w", err)
	}

	apt, patient, clinician, err := h.resolveAppointment(ctx, payload.AppointmentID)
	if err != nil {
		return "", err
	}

	// An appointment that never completed has no outcome; the record is
	// rendered without the treatment section.
	outcome, err := h.outcomeRepo.GetByAppointment(ctx, apt.ID)
	if err != nil && !stderrors.Is(err, repository.ErrNotFound) {
		return "", fmt.Errorf("failed to load outcome: %w", err)
	}

	var buf bytes.Buffer
	err = recordTemplate.Execute(&buf, map[string]interface{}{
		"Appointment": apt,
		"Patient":     patient,
		"Clinician":   clinician,
		"Outcome":     outcome,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render record: %w", err)
	}

	if patient.Email == "" {
		return "", fmt.Errorf("patient %s has no email address", patient.ID)
	}
	if err := h.email.SendHTML(ctx, patient.Email, "Your Visit Record", buf.String()); err != nil {
		h.metrics.DeliveryAttempts.WithLabelValues("email", "failure").Inc()
		return "", errors.Delivery("record rendered but email failed", err)
	}
	h.metrics.DeliveryAttempts.WithLabelValues("email", "success").Inc()
	return fmt.Sprintf("rendered %d bytes to %s", buf.Len(), patient.Email), nil
}

// PeriodicReminder notifies every patient still booked for the payload
// date. One unreachable patient never blocks the rest of the scan.
func (h *Handlers) PeriodicReminder(ctx context.Context, job *model.Job) (string, error) {
	var payload model.PeriodicReminderPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return "", fmt.Errorf("invalid payload: %w", err)
	}

	reminders, errs := h.reports.RemindersForDate(ctx, payload.Date)
	for _, err := range errs {
		h.logger.Error(err, "reminder target skipped")
	}
	if reminders == nil && len(errs) > 0 {
		return "", errs[0]
	}

	sent := 0
	for _, r := range reminders {
		clinician, err := h.clinRepo.Get(ctx, r.Appointment.ClinicianID)
		if err != nil {
			h.logger.Error(err, "clinician unresolvable, reminder skipped",
				"appointment_id", r.Appointment.ID.String())
			continue
		}
		body := fmt.Sprintf(
			"Hello %s,\n\nReminder: you have an appointment today with %s at %s in %s.\n\n"+
				"Regards,\nClinic Scheduling",
			r.Patient.Name, clinician.Name, r.Appointment.Time, clinician.Department)

		if err := h.deliver(ctx, r.Patient, "Appointment Reminder - Today", body); err != nil {
			h.logger.Error(err, "reminder delivery failed",
				"appointment_id", r.Appointment.ID.String())
			continue
		}
		sent++
	}
	return fmt.Sprintf("sent %d/%d reminders for %s", sent, len(reminders), payload.Date), nil
}

func (h *Handlers) PeriodicReport(ctx context.Context, job *model.Job) (string, error) {
	var payload model.PeriodicReportPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return "", fmt.Errorf("invalid payload: %w", err)
	}

	summary, err := h.reports.BuildMonthlySummary(ctx, payload.ClinicianID, payload.Month)
	if err != nil {
		return "", err
	}

	rows, err := h.reportRows(ctx, payload)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	err = reportTemplate.Execute(&buf, map[string]interface{}{
		"Summary":       summary,
		"CompletionPct": summary.CompletionRate * 100,
		"Rows":          rows,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}

	clinician, err := h.clinRepo.Get(ctx, payload.ClinicianID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve clinician: %w", err)
	}
	if clinician.Email == "" {
		return "", fmt.Errorf("clinician %s has no email address", clinician.ID)
	}

	subject := fmt.Sprintf("Monthly Activity Report - %s", payload.Month.Format("January 2006"))
	if err := h.email.SendHTML(ctx, clinician.Email, subject, buf.String()); err != nil {
		h.metrics.DeliveryAttempts.WithLabelValues("email", "failure").Inc()
		return "", errors.Delivery("report built but email failed", err)
	}
	h.metrics.DeliveryAttempts.WithLabelValues("email", "success").Inc()
	return fmt.Sprintf("report with %d appointments sent to %s", summary.Total, clinician.Email), nil
}

type reportRow struct {
	Date        model.Date
	Time        model.ClockTime
	PatientName string
	Status      model.AppointmentStatus
	Diagnosis   string
}

func (h *Handlers) reportRows(ctx context.Context, payload model.PeriodicReportPayload) ([]reportRow, error) {
	lastDay := payload.Month.AddDate(0, 1, -1)
	to := model.NewDate(lastDay.Year(), lastDay.Month(), lastDay.Day())

	appointments, err := h.aptRepo.ListForClinicianRange(ctx, payload.ClinicianID, payload.Month, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}

	rows := make([]reportRow, 0, len(appointments))
	for _, apt := range appointments {
		row := reportRow{
			Date:        apt.Date,
			Time:        apt.Time,
			PatientName: "N/A",
			Status:      apt.Status,
			Diagnosis:   "N/A",
		}
		if patient, err := h.patientRepo.Get(ctx, apt.PatientID); err == nil {
			row.PatientName = patient.Name
		}
		if apt.Status == model.AppointmentStatusCompleted {
			if outcome, err := h.outcomeRepo.GetByAppointment(ctx, apt.ID); err == nil {
				row.Diagnosis = outcome.Diagnosis
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (h *Handlers) resolveAppointment(ctx context.Context, id uuid.UUID) (*model.Appointment, *model.Patient, *model.Clinician, error) {
	apt, err := h.aptRepo.Get(ctx, id)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("appointment %s not found: %w", id, err)
	}
	patient, err := h.patientRepo.Get(ctx, apt.PatientID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("patient %s not found: %w", apt.PatientID, err)
	}
	clinician, err := h.clinRepo.Get(ctx, apt.ClinicianID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("clinician %s not found: %w", apt.ClinicianID, err)
	}
	return apt, patient, clinician, nil
}

// deliver sends the primary email and, when the patient has one, the
// webhook copy. The webhook is best effort; email failure fails the job.
func (h *Handlers) deliver(ctx context.Context, patient *model.Patient, subject, body string) error {
	if patient.Email == "" {
		return fmt.Errorf("patient %s has no email address", patient.ID)
	}
	if err := h.email.Send(ctx, patient.Email, subject, body); err != nil {
		h.metrics.DeliveryAttempts.WithLabelValues("email", "failure").Inc()
		return errors.Delivery("email delivery failed", err)
	}
	h.metrics.DeliveryAttempts.WithLabelValues("email", "success").Inc()

	if patient.WebhookURL != nil && *patient.WebhookURL != "" {
		if err := h.webhook.Notify(ctx, *patient.WebhookURL, body); err != nil {
			h.logger.Error(err, "webhook delivery failed",
				"patient_id", patient.ID.String())
		}
	}
	return nil
}
