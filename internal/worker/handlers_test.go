package worker

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/scheduler-api/internal/email"
	"github.com/jwalitptl/scheduler-api/internal/model"
	"github.com/jwalitptl/scheduler-api/internal/repository"
	"github.com/jwalitptl/scheduler-api/internal/service/report"
	"github.com/jwalitptl/scheduler-api/pkg/logger"
)

type sentMail struct {
	to      string
	subject string
	body    string
	att     *email.Attachment
}

type fakeEmail struct {
	mu   sync.Mutex
	sent []sentMail
	fail bool
}

func (f *fakeEmail) Send(_ context.Context, to, subject, body string) error {
	return f.record(sentMail{to: to, subject: subject, body: body})
}

func (f *fakeEmail) SendHTML(_ context.Context, to, subject, html string) error {
	return f.record(sentMail{to: to, subject: subject, body: html})
}

func (f *fakeEmail) SendWithAttachment(_ context.Context, to, subject, body string, att email.Attachment) error {
	return f.record(sentMail{to: to, subject: subject, body: body, att: &att})
}

func (f *fakeEmail) record(m sentMail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return stderrors.New("smtp refused")
	}
	f.sent = append(f.sent, m)
	return nil
}

type fakeAppointmentRepo struct {
	repository.AppointmentRepository

	rows map[uuid.UUID]*model.Appointment
}

func (f *fakeAppointmentRepo) Get(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	apt, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return apt, nil
}

func (f *fakeAppointmentRepo) ListForPatient(_ context.Context, _ uuid.UUID) ([]*model.Appointment, error) {
	return f.all(), nil
}

func (f *fakeAppointmentRepo) ListForClinicianRange(_ context.Context, _ uuid.UUID, _, _ model.Date) ([]*model.Appointment, error) {
	return f.all(), nil
}

func (f *fakeAppointmentRepo) ListAllBookedForDate(_ context.Context, _ model.Date) ([]*model.Appointment, error) {
	var booked []*model.Appointment
	for _, apt := range f.rows {
		if apt.Status == model.AppointmentStatusBooked {
			booked = append(booked, apt)
		}
	}
	return booked, nil
}

func (f *fakeAppointmentRepo) all() []*model.Appointment {
	var all []*model.Appointment
	for _, apt := range f.rows {
		all = append(all, apt)
	}
	return all
}

type fakeOutcomeRepo struct {
	repository.OutcomeRepository

	byAppointment map[uuid.UUID]*model.Outcome
}

func (f *fakeOutcomeRepo) GetByAppointment(_ context.Context, id uuid.UUID) (*model.Outcome, error) {
	outcome, ok := f.byAppointment[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return outcome, nil
}

type fakeDirClinicianRepo struct {
	repository.ClinicianRepository

	clinician *model.Clinician
}

func (f *fakeDirClinicianRepo) Get(context.Context, uuid.UUID) (*model.Clinician, error) {
	return f.clinician, nil
}

type fakeDirPatientRepo struct {
	repository.PatientRepository

	patient *model.Patient
}

func (f *fakeDirPatientRepo) Get(context.Context, uuid.UUID) (*model.Patient, error) {
	return f.patient, nil
}

type handlerFixture struct {
	handlers *Handlers
	email    *fakeEmail
	apt      *model.Appointment
	patient  *model.Patient
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	apt := &model.Appointment{
		PatientID:   uuid.New(),
		ClinicianID: uuid.New(),
		Date:        model.NewDate(2026, time.September, 10),
		Time:        model.NewClockTime(10, 0),
		Status:      model.AppointmentStatusBooked,
	}
	apt.ID = uuid.New()

	patient := &model.Patient{ID: apt.PatientID, Name: "Pat", Email: "pat@example.test"}
	clinician := &model.Clinician{ID: apt.ClinicianID, Name: "Dr. Adams", Email: "adams@clinic.test", Department: "Cardiology"}

	aptRepo := &fakeAppointmentRepo{rows: map[uuid.UUID]*model.Appointment{apt.ID: apt}}
	outcomeRepo := &fakeOutcomeRepo{byAppointment: map[uuid.UUID]*model.Outcome{}}
	clinRepo := &fakeDirClinicianRepo{clinician: clinician}
	patientRepo := &fakeDirPatientRepo{patient: patient}
	reports := report.NewService(aptRepo, outcomeRepo, patientRepo, clinRepo)
	mail := &fakeEmail{}

	handlers := NewHandlers(aptRepo, outcomeRepo, clinRepo, patientRepo, reports,
		mail, NewWebhookNotifier(testMetrics), testMetrics, logger.NewLogger(nil))

	return &handlerFixture{handlers: handlers, email: mail, apt: apt, patient: patient}
}

func claimed(jobType model.JobType, payload interface{}) *model.Job {
	repo := newFakeJobRepo()
	job, err := repo.Enqueue(context.Background(), jobType, payload)
	if err != nil {
		panic(err)
	}
	job.Status = model.JobStatusStarted
	return job
}

func TestNotifyGrantedSendsEmail(t *testing.T) {
	fx := newHandlerFixture(t)
	job := claimed(model.JobTypeNotifyGranted, model.NotifyGrantedPayload{AppointmentID: fx.apt.ID})

	result, err := fx.handlers.NotifyGranted(context.Background(), job)
	require.NoError(t, err)
	assert.Contains(t, result, fx.apt.ID.String())

	require.Len(t, fx.email.sent, 1)
	sent := fx.email.sent[0]
	assert.Equal(t, "pat@example.test", sent.to)
	assert.Equal(t, "Appointment Confirmed", sent.subject)
	assert.Contains(t, sent.body, "Dr. Adams")
	assert.Contains(t, sent.body, "2026-09-10")
	assert.Contains(t, sent.body, "10:00")
}

func TestNotifyCancelledIncludesReason(t *testing.T) {
	fx := newHandlerFixture(t)
	job := claimed(model.JobTypeNotifyCancelled, model.NotifyCancelledPayload{
		AppointmentID: fx.apt.ID,
		Reason:        "clinician unavailable",
	})

	_, err := fx.handlers.NotifyCancelled(context.Background(), job)
	require.NoError(t, err)

	require.Len(t, fx.email.sent, 1)
	assert.Equal(t, "Appointment Cancelled", fx.email.sent[0].subject)
	assert.Contains(t, fx.email.sent[0].body, "clinician unavailable")
}

func TestNotifyFailsWhenEmailFails(t *testing.T) {
	fx := newHandlerFixture(t)
	fx.email.fail = true
	job := claimed(model.JobTypeNotifyGranted, model.NotifyGrantedPayload{AppointmentID: fx.apt.ID})

	_, err := fx.handlers.NotifyGranted(context.Background(), job)
	assert.Error(t, err)
}

func TestNotifyUnknownAppointmentFails(t *testing.T) {
	fx := newHandlerFixture(t)
	job := claimed(model.JobTypeNotifyGranted, model.NotifyGrantedPayload{AppointmentID: uuid.New()})

	_, err := fx.handlers.NotifyGranted(context.Background(), job)
	assert.Error(t, err)
}

func TestExportHistoryAttachesCSV(t *testing.T) {
	fx := newHandlerFixture(t)
	job := claimed(model.JobTypeExportHistory, model.ExportHistoryPayload{PatientID: fx.patient.ID})

	result, err := fx.handlers.ExportHistory(context.Background(), job)
	require.NoError(t, err)
	assert.Contains(t, result, "exported 1 appointments")

	require.Len(t, fx.email.sent, 1)
	att := fx.email.sent[0].att
	require.NotNil(t, att)
	assert.Equal(t, "text/csv", att.ContentType)
	assert.True(t, strings.HasPrefix(string(att.Data), "date,time,clinician_id"))
}

func TestRenderRecordWithoutOutcome(t *testing.T) {
	fx := newHandlerFixture(t)
	job := claimed(model.JobTypeRenderRecord, model.RenderRecordPayload{AppointmentID: fx.apt.ID})

	_, err := fx.handlers.RenderRecord(context.Background(), job)
	require.NoError(t, err)

	require.Len(t, fx.email.sent, 1)
	body := fx.email.sent[0].body
	assert.Contains(t, body, "Visit Record")
	assert.Contains(t, body, "Dr. Adams")
	assert.NotContains(t, body, "Diagnosis")
}

func TestRenderRecordWithOutcome(t *testing.T) {
	fx := newHandlerFixture(t)
	outcomeRepo := fx.handlers.outcomeRepo.(*fakeOutcomeRepo)
	outcomeRepo.byAppointment[fx.apt.ID] = &model.Outcome{
		AppointmentID: fx.apt.ID,
		Diagnosis:     "seasonal flu",
		Prescription:  "rest",
	}
	job := claimed(model.JobTypeRenderRecord, model.RenderRecordPayload{AppointmentID: fx.apt.ID})

	_, err := fx.handlers.RenderRecord(context.Background(), job)
	require.NoError(t, err)
	assert.Contains(t, fx.email.sent[0].body, "seasonal flu")
}

func TestPeriodicReminderCountsSent(t *testing.T) {
	fx := newHandlerFixture(t)
	job := claimed(model.JobTypePeriodicReminder, model.PeriodicReminderPayload{
		Date: model.NewDate(2026, time.September, 10),
	})

	result, err := fx.handlers.PeriodicReminder(context.Background(), job)
	require.NoError(t, err)
	assert.Contains(t, result, "sent 1/1")

	require.Len(t, fx.email.sent, 1)
	assert.Contains(t, fx.email.sent[0].body, "Cardiology")
}

func TestPeriodicReportEmailsClinician(t *testing.T) {
	fx := newHandlerFixture(t)
	fx.apt.Date = model.NewDate(2026, time.August, 12)
	job := claimed(model.JobTypePeriodicReport, model.PeriodicReportPayload{
		ClinicianID: fx.apt.ClinicianID,
		Month:       model.NewDate(2026, time.August, 1),
	})

	_, err := fx.handlers.PeriodicReport(context.Background(), job)
	require.NoError(t, err)

	require.Len(t, fx.email.sent, 1)
	sent := fx.email.sent[0]
	assert.Equal(t, "adams@clinic.test", sent.to)
	assert.Contains(t, sent.subject, "August 2026")
	assert.Contains(t, sent.body, "Monthly Activity Report")
}

func TestRegistryCoversAllJobTypes(t *testing.T) {
	fx := newHandlerFixture(t)
	registry := fx.handlers.Registry()

	for _, jobType := range []model.JobType{
		model.JobTypeNotifyGranted,
		model.JobTypeNotifyCancelled,
		model.JobTypeExportHistory,
		model.JobTypeRenderRecord,
		model.JobTypePeriodicReminder,
		model.JobTypePeriodicReport,
	} {
		assert.Contains(t, registry, jobType)
	}
}
