package report

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/scheduler-api/internal/model"
	"github.com/jwalitptl/scheduler-api/internal/repository"
)

type fakeAppointmentRepo struct {
	repository.AppointmentRepository

	appointments []*model.Appointment
	rangeFrom    model.Date
	rangeTo      model.Date
}

func (f *fakeAppointmentRepo) ListForClinicianRange(_ context.Context, _ uuid.UUID, from, to model.Date) ([]*model.Appointment, error) {
	f.rangeFrom, f.rangeTo = from, to
	return f.appointments, nil
}

func (f *fakeAppointmentRepo) ListForPatient(_ context.Context, _ uuid.UUID) ([]*model.Appointment, error) {
	return f.appointments, nil
}

func (f *fakeAppointmentRepo) ListAllBookedForDate(_ context.Context, _ model.Date) ([]*model.Appointment, error) {
	return f.appointments, nil
}

type fakeClinicianRepo struct {
	repository.ClinicianRepository
}

func (f *fakeClinicianRepo) Get(_ context.Context, id uuid.UUID) (*model.Clinician, error) {
	return &model.Clinician{ID: id, Name: "Dr. Adams", Email: "adams@clinic.test"}, nil
}

type fakePatientRepo struct {
	repository.PatientRepository

	missing map[uuid.UUID]bool
}

func (f *fakePatientRepo) Get(_ context.Context, id uuid.UUID) (*model.Patient, error) {
	if f.missing[id] {
		return nil, repository.ErrNotFound
	}
	return &model.Patient{ID: id, Name: "Pat", Email: "pat@example.test"}, nil
}

func appointmentWithStatus(status model.AppointmentStatus) *model.Appointment {
	apt := &model.Appointment{
		PatientID:   uuid.New(),
		ClinicianID: uuid.New(),
		Date:        model.NewDate(2026, time.August, 12),
		Time:        model.NewClockTime(9, 30),
		Status:      status,
		Reason:      "checkup",
	}
	apt.ID = uuid.New()
	return apt
}

func newTestService(aptRepo *fakeAppointmentRepo, patients *fakePatientRepo) *Service {
	if patients == nil {
		patients = &fakePatientRepo{}
	}
	return NewService(aptRepo, nil, patients, &fakeClinicianRepo{})
}

func TestBuildMonthlySummaryCountsAndRange(t *testing.T) {
	aptRepo := &fakeAppointmentRepo{appointments: []*model.Appointment{
		appointmentWithStatus(model.AppointmentStatusCompleted),
		appointmentWithStatus(model.AppointmentStatusCompleted),
		appointmentWithStatus(model.AppointmentStatusCompleted),
		appointmentWithStatus(model.AppointmentStatusCancelled),
		appointmentWithStatus(model.AppointmentStatusBooked),
	}}
	svc := newTestService(aptRepo, nil)

	summary, err := svc.BuildMonthlySummary(context.Background(), uuid.New(),
		model.NewDate(2026, time.August, 1))
	require.NoError(t, err)

	assert.Equal(t, 5, summary.Total)
	assert.Equal(t, 3, summary.Completed)
	assert.Equal(t, 1, summary.Cancelled)
	assert.Equal(t, 1, summary.Booked)
	assert.InDelta(t, 0.75, summary.CompletionRate, 1e-9)
	assert.Equal(t, "Dr. Adams", summary.ClinicianName)

	// the queried window is the whole calendar month
	assert.Equal(t, "2026-08-01", aptRepo.rangeFrom.String())
	assert.Equal(t, "2026-08-31", aptRepo.rangeTo.String())
}

func TestBuildMonthlySummaryEmptyMonth(t *testing.T) {
	svc := newTestService(&fakeAppointmentRepo{}, nil)

	summary, err := svc.BuildMonthlySummary(context.Background(), uuid.New(),
		model.NewDate(2026, time.February, 1))
	require.NoError(t, err)
	assert.Zero(t, summary.Total)
	assert.Zero(t, summary.CompletionRate)
}

func TestBuildHistoryExportCSV(t *testing.T) {
	cancelled := appointmentWithStatus(model.AppointmentStatusCancelled)
	reason := "patient request"
	cancelled.CancelReason = &reason

	aptRepo := &fakeAppointmentRepo{appointments: []*model.Appointment{
		appointmentWithStatus(model.AppointmentStatusCompleted),
		cancelled,
	}}
	svc := newTestService(aptRepo, nil)

	export, err := svc.BuildHistoryExport(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 2, export.Rows)

	lines := strings.Split(strings.TrimSpace(string(export.CSV)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "date,time,clinician_id,status,reason,cancel_reason", lines[0])
	assert.Contains(t, lines[1], "completed")
	assert.Contains(t, lines[2], "patient request")
}

func TestRemindersForDateSkipsUnresolvablePatients(t *testing.T) {
	good := appointmentWithStatus(model.AppointmentStatusBooked)
	orphan := appointmentWithStatus(model.AppointmentStatusBooked)

	patients := &fakePatientRepo{missing: map[uuid.UUID]bool{orphan.PatientID: true}}
	svc := newTestService(&fakeAppointmentRepo{appointments: []*model.Appointment{good, orphan}}, patients)

	reminders, errs := svc.RemindersForDate(context.Background(), model.NewDate(2026, time.September, 1))
	require.Len(t, reminders, 1)
	assert.Equal(t, good.ID, reminders[0].Appointment.ID)
	assert.Len(t, errs, 1)
}

func TestPreviousMonthStart(t *testing.T) {
	assert.Equal(t, "2026-08-01",
		PreviousMonthStart(time.Date(2026, time.September, 1, 9, 0, 0, 0, time.UTC)).String())
	assert.Equal(t, "2025-12-01",
		PreviousMonthStart(time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC)).String())
}
