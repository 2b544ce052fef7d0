package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type JobType string

// Closed set of job types. Each carries a strongly typed payload;
// dispatch goes through a static registry built at startup.
const (
	JobTypeNotifyGranted    JobType = "notify_granted"
	JobTypeNotifyCancelled  JobType = "notify_cancelled"
	JobTypeExportHistory    JobType = "export_history"
	JobTypeRenderRecord     JobType = "render_record"
	JobTypePeriodicReminder JobType = "periodic_reminder"
	JobTypePeriodicReport   JobType = "periodic_report"
)

func (t JobType) Valid() bool {
	switch t {
	case JobTypeNotifyGranted, JobTypeNotifyCancelled, JobTypeExportHistory,
		JobTypeRenderRecord, JobTypePeriodicReminder, JobTypePeriodicReport:
		return true
	}
	return false
}

type JobStatus string

const (
	JobStatusPending JobStatus = "pending"
	JobStatusStarted JobStatus = "started"
	JobStatusSuccess JobStatus = "success"
	JobStatusFailure JobStatus = "failure"
)

// Job is a unit of asynchronous work with an independently observable
// lifecycle. Payloads carry identifiers only; handlers re-resolve
// current state from the store at execution time.
type Job struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	Type        JobType         `db:"job_type" json:"type"`
	Payload     json.RawMessage `db:"payload" json:"payload"`
	Status      JobStatus       `db:"status" json:"status"`
	Result      *string         `db:"result" json:"result,omitempty"`
	Error       *string         `db:"error_message" json:"error,omitempty"`
	EnqueuedAt  time.Time       `db:"enqueued_at" json:"enqueued_at"`
	StartedAt   *time.Time      `db:"started_at" json:"started_at,omitempty"`
	CompletedAt *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
}

// Payload contracts per job type.

type NotifyGrantedPayload struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
}

type NotifyCancelledPayload struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	Reason        string    `json:"reason,omitempty"`
}

type ExportHistoryPayload struct {
	PatientID uuid.UUID `json:"patient_id"`
}

type RenderRecordPayload struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
}

type PeriodicReminderPayload struct {
	Date Date `json:"date"`
}

type PeriodicReportPayload struct {
	ClinicianID uuid.UUID `json:"clinician_id"`
	// Month is the first day of the month being reported on.
	Month Date `json:"month"`
}

// JobStatusResponse is the polling read model for GET /jobs/:id.
type JobStatusResponse struct {
	ID          uuid.UUID  `json:"id"`
	Type        JobType    `json:"type"`
	Status      JobStatus  `json:"status"`
	Result      *string    `json:"result,omitempty"`
	Error       *string    `json:"error,omitempty"`
	EnqueuedAt  time.Time  `json:"enqueued_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (j *Job) StatusResponse() *JobStatusResponse {
	return &JobStatusResponse{
		ID:          j.ID,
		Type:        j.Type,
		Status:      j.Status,
		Result:      j.Result,
		Error:       j.Error,
		EnqueuedAt:  j.EnqueuedAt,
		CompletedAt: j.CompletedAt,
	}
}
