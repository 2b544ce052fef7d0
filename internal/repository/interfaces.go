package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/scheduler-api/internal/model"
)

// Sentinel errors surfaced by implementations. Services translate these
// into the AppError taxonomy at the domain boundary.
var (
	// ErrSlotTaken is returned when an insert loses slot arbitration to
	// a concurrent booking. Implementations must map their storage
	// uniqueness violation to this error and to nothing else.
	ErrSlotTaken = errors.New("slot already booked")

	// ErrStaleStatus is returned by compare-and-set status updates when
	// the appointment was no longer in the expected state.
	ErrStaleStatus = errors.New("appointment status changed concurrently")

	ErrNotFound = errors.New("record not found")
)

// All repository interfaces in one file
type (
	AvailabilityRepository interface {
		// ReplaceForDate deletes all windows for (clinicianID, date) and
		// inserts the given set in one transaction.
		ReplaceForDate(ctx context.Context, clinicianID uuid.UUID, date model.Date, windows []*model.AvailabilityWindow) error
		ListForDate(ctx context.Context, clinicianID uuid.UUID, date model.Date) ([]*model.AvailabilityWindow, error)
		ListForRange(ctx context.Context, clinicianID uuid.UUID, from, to model.Date) ([]*model.AvailabilityWindow, error)
	}

	AppointmentRepository interface {
		// ClaimSlot inserts a booked appointment; the storage-level
		// uniqueness constraint over (clinician, date, time, booked) is
		// the arbitration point. Returns ErrSlotTaken on violation.
		ClaimSlot(ctx context.Context, apt *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)
		ListBookedForDate(ctx context.Context, clinicianID uuid.UUID, date model.Date) ([]*model.Appointment, error)
		ListAllBookedForDate(ctx context.Context, date model.Date) ([]*model.Appointment, error)
		ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error)
		ListForClinicianRange(ctx context.Context, clinicianID uuid.UUID, from, to model.Date) ([]*model.Appointment, error)
		// CancelIfBooked flips booked -> cancelled with a compare-and-set
		// update. Returns ErrStaleStatus if the row left the booked state.
		CancelIfBooked(ctx context.Context, id uuid.UUID, reason *string) error
		// CompleteWithOutcome flips booked -> completed and inserts the
		// outcome record in the same transaction.
		CompleteWithOutcome(ctx context.Context, id uuid.UUID, outcome *model.Outcome) error
	}

	OutcomeRepository interface {
		GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.Outcome, error)
	}

	JobRepository interface {
		Enqueue(ctx context.Context, jobType model.JobType, payload interface{}) (*model.Job, error)
		Get(ctx context.Context, id uuid.UUID) (*model.Job, error)
		// ClaimPending atomically marks up to limit pending jobs as
		// started and returns them; concurrent dispatchers never claim
		// the same job twice.
		ClaimPending(ctx context.Context, limit int) ([]*model.Job, error)
		MarkSuccess(ctx context.Context, id uuid.UUID, result string) error
		MarkFailure(ctx context.Context, id uuid.UUID, errMsg string) error
		CountPending(ctx context.Context) (int, error)
	}

	ClinicianRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Clinician, error)
		List(ctx context.Context) ([]*model.Clinician, error)
	}

	PatientRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
	}
)

// TxRunner is implemented by the postgres base repository; services use
// it when a unit of work spans repositories.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error
}
