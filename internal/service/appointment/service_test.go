package appointment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/scheduler-api/internal/model"
	"github.com/jwalitptl/scheduler-api/internal/repository"
	"github.com/jwalitptl/scheduler-api/pkg/errors"
	"github.com/jwalitptl/scheduler-api/pkg/logger"
)

type fakeAppointmentRepo struct {
	repository.AppointmentRepository

	mu   sync.Mutex
	rows map[uuid.UUID]*model.Appointment
}

func newFakeAppointmentRepo(appointments ...*model.Appointment) *fakeAppointmentRepo {
	rows := make(map[uuid.UUID]*model.Appointment)
	for _, apt := range appointments {
		rows[apt.ID] = apt
	}
	return &fakeAppointmentRepo{rows: rows}
}

func (f *fakeAppointmentRepo) Get(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	apt, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *apt
	return &copied, nil
}

func (f *fakeAppointmentRepo) CancelIfBooked(_ context.Context, id uuid.UUID, reason *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	apt, ok := f.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	if apt.Status != model.AppointmentStatusBooked {
		return repository.ErrStaleStatus
	}
	apt.Status = model.AppointmentStatusCancelled
	apt.CancelReason = reason
	return nil
}

func (f *fakeAppointmentRepo) CompleteWithOutcome(_ context.Context, id uuid.UUID, outcome *model.Outcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	apt, ok := f.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	if apt.Status != model.AppointmentStatusBooked {
		return repository.ErrStaleStatus
	}
	apt.Status = model.AppointmentStatusCompleted
	outcome.ID = uuid.New()
	outcome.AppointmentID = id
	return nil
}

type fakeOutcomeRepo struct {
	repository.OutcomeRepository
}

type fakeJobRepo struct {
	repository.JobRepository

	mu       sync.Mutex
	enqueued []model.JobType
}

func (f *fakeJobRepo) Enqueue(_ context.Context, jobType model.JobType, _ interface{}) (*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enqueued = append(f.enqueued, jobType)
	return &model.Job{ID: uuid.New(), Type: jobType, Status: model.JobStatusPending}, nil
}

type fakeInvalidator struct{ calls int }

func (f *fakeInvalidator) InvalidateOpenSlots(uuid.UUID, model.Date) { f.calls++ }

func bookedAppointment() *model.Appointment {
	apt := &model.Appointment{
		PatientID:   uuid.New(),
		ClinicianID: uuid.New(),
		Date:        model.NewDate(2026, time.September, 10),
		Time:        model.NewClockTime(10, 0),
		Status:      model.AppointmentStatusBooked,
	}
	apt.ID = uuid.New()
	return apt
}

func newTestService(repo *fakeAppointmentRepo, jobs *fakeJobRepo) (*Service, *fakeInvalidator) {
	inv := &fakeInvalidator{}
	return NewService(repo, &fakeOutcomeRepo{}, jobs, inv, logger.NewLogger(nil)), inv
}

func TestCancelByOwningPatient(t *testing.T) {
	apt := bookedAppointment()
	jobs := &fakeJobRepo{}
	svc, inv := newTestService(newFakeAppointmentRepo(apt), jobs)
	actor := &model.Actor{PatientID: &apt.PatientID}

	cancelled, err := svc.Cancel(context.Background(), actor, apt.ID, "feeling better")
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelReason)
	assert.Equal(t, "feeling better", *cancelled.CancelReason)
	assert.Equal(t, []model.JobType{model.JobTypeNotifyCancelled}, jobs.enqueued)
	assert.Equal(t, 1, inv.calls)
}

func TestCancelByAssignedClinicianAndAdmin(t *testing.T) {
	apt := bookedAppointment()
	svc, _ := newTestService(newFakeAppointmentRepo(apt), &fakeJobRepo{})
	clinician := &model.Actor{ClinicianID: &apt.ClinicianID}
	_, err := svc.Cancel(context.Background(), clinician, apt.ID, "")
	assert.NoError(t, err)

	apt = bookedAppointment()
	svc, _ = newTestService(newFakeAppointmentRepo(apt), &fakeJobRepo{})
	_, err = svc.Cancel(context.Background(), &model.Actor{IsAdmin: true}, apt.ID, "")
	assert.NoError(t, err)
}

func TestCancelByStrangerForbidden(t *testing.T) {
	apt := bookedAppointment()
	jobs := &fakeJobRepo{}
	svc, _ := newTestService(newFakeAppointmentRepo(apt), jobs)
	otherPatient := uuid.New()
	actor := &model.Actor{PatientID: &otherPatient}

	_, err := svc.Cancel(context.Background(), actor, apt.ID, "")
	assert.True(t, errors.Is(err, errors.ErrForbidden))
	assert.Empty(t, jobs.enqueued)
}

func TestCancelTerminalAppointmentConflicts(t *testing.T) {
	apt := bookedAppointment()
	apt.Status = model.AppointmentStatusCompleted
	svc, _ := newTestService(newFakeAppointmentRepo(apt), &fakeJobRepo{})

	_, err := svc.Cancel(context.Background(), &model.Actor{IsAdmin: true}, apt.ID, "")
	assert.True(t, errors.Is(err, errors.ErrConflict))
}

func TestCancelTwiceSecondConflicts(t *testing.T) {
	apt := bookedAppointment()
	svc, _ := newTestService(newFakeAppointmentRepo(apt), &fakeJobRepo{})
	admin := &model.Actor{IsAdmin: true}

	_, err := svc.Cancel(context.Background(), admin, apt.ID, "")
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), admin, apt.ID, "")
	assert.True(t, errors.Is(err, errors.ErrConflict))
}

func TestCancelMissingAppointment(t *testing.T) {
	svc, _ := newTestService(newFakeAppointmentRepo(), &fakeJobRepo{})

	_, err := svc.Cancel(context.Background(), &model.Actor{IsAdmin: true}, uuid.New(), "")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestCompleteByAssignedClinician(t *testing.T) {
	apt := bookedAppointment()
	repo := newFakeAppointmentRepo(apt)
	svc, _ := newTestService(repo, &fakeJobRepo{})
	actor := &model.Actor{ClinicianID: &apt.ClinicianID}

	outcome, err := svc.Complete(context.Background(), actor, apt.ID, &model.CompleteAppointmentRequest{
		Diagnosis:    "seasonal flu",
		Prescription: "rest and fluids",
	})
	require.NoError(t, err)
	assert.Equal(t, apt.ID, outcome.AppointmentID)

	stored, err := repo.Get(context.Background(), apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCompleted, stored.Status)
}

func TestCompleteForbiddenForPatientAndAdmin(t *testing.T) {
	apt := bookedAppointment()
	svc, _ := newTestService(newFakeAppointmentRepo(apt), &fakeJobRepo{})
	req := &model.CompleteAppointmentRequest{Diagnosis: "x", Prescription: "y"}

	_, err := svc.Complete(context.Background(), &model.Actor{PatientID: &apt.PatientID}, apt.ID, req)
	assert.True(t, errors.Is(err, errors.ErrForbidden))

	_, err = svc.Complete(context.Background(), &model.Actor{IsAdmin: true}, apt.ID, req)
	assert.True(t, errors.Is(err, errors.ErrForbidden))
}

func TestCompleteCancelledAppointmentConflicts(t *testing.T) {
	apt := bookedAppointment()
	apt.Status = model.AppointmentStatusCancelled
	svc, _ := newTestService(newFakeAppointmentRepo(apt), &fakeJobRepo{})
	actor := &model.Actor{ClinicianID: &apt.ClinicianID}

	_, err := svc.Complete(context.Background(), actor, apt.ID, &model.CompleteAppointmentRequest{
		Diagnosis:    "x",
		Prescription: "y",
	})
	assert.True(t, errors.Is(err, errors.ErrConflict))
}
