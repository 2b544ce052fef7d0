package worker

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/scheduler-api/internal/model"
	"github.com/jwalitptl/scheduler-api/internal/repository"
	"github.com/jwalitptl/scheduler-api/pkg/logger"
	"github.com/jwalitptl/scheduler-api/pkg/metrics"
)

// promauto registers into the global registry; one set per test binary.
var testMetrics = metrics.New("dispatcher_test")

type fakeJobRepo struct {
	repository.JobRepository

	mu   sync.Mutex
	rows map[uuid.UUID]*model.Job
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{rows: make(map[uuid.UUID]*model.Job)}
}

func (f *fakeJobRepo) Enqueue(_ context.Context, jobType model.JobType, payload interface{}) (*model.Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	job := &model.Job{
		ID:         uuid.New(),
		Type:       jobType,
		Payload:    raw,
		Status:     model.JobStatusPending,
		EnqueuedAt: time.Now(),
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[job.ID] = job
	return job, nil
}

func (f *fakeJobRepo) ClaimPending(_ context.Context, limit int) ([]*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var claimed []*model.Job
	for _, job := range f.rows {
		if len(claimed) == limit {
			break
		}
		if job.Status == model.JobStatusPending {
			job.Status = model.JobStatusStarted
			claimed = append(claimed, job)
		}
	}
	return claimed, nil
}

func (f *fakeJobRepo) MarkSuccess(_ context.Context, id uuid.UUID, result string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job := f.rows[id]
	job.Status = model.JobStatusSuccess
	job.Result = &result
	return nil
}

func (f *fakeJobRepo) MarkFailure(_ context.Context, id uuid.UUID, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job := f.rows[id]
	job.Status = model.JobStatusFailure
	job.Error = &errMsg
	return nil
}

func (f *fakeJobRepo) CountPending(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, job := range f.rows {
		if job.Status == model.JobStatusPending {
			count++
		}
	}
	return count, nil
}

func (f *fakeJobRepo) get(id uuid.UUID) *model.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id]
}

type fakeBroker struct {
	mu        sync.Mutex
	published []string
}

func (f *fakeBroker) Publish(_ context.Context, channel string, _ interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, channel)
	return nil
}

func (f *fakeBroker) Subscribe(context.Context, string) (<-chan []byte, error) { return nil, nil }
func (f *fakeBroker) Close() error                                            { return nil }

func newTestDispatcher(jobs *fakeJobRepo, registry map[model.JobType]Handler) (*Dispatcher, *fakeBroker) {
	broker := &fakeBroker{}
	d := NewDispatcher(jobs, registry, broker, testMetrics, logger.NewLogger(nil), DispatcherConfig{
		JobTimeout: time.Second,
	})
	return d, broker
}

func TestProcessMarksSuccess(t *testing.T) {
	jobs := newFakeJobRepo()
	registry := map[model.JobType]Handler{
		model.JobTypeNotifyGranted: func(context.Context, *model.Job) (string, error) {
			return "sent", nil
		},
	}
	d, broker := newTestDispatcher(jobs, registry)

	job, err := jobs.Enqueue(context.Background(), model.JobTypeNotifyGranted, map[string]string{})
	require.NoError(t, err)
	claimed, err := jobs.ClaimPending(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	d.Process(context.Background(), claimed[0])

	stored := jobs.get(job.ID)
	assert.Equal(t, model.JobStatusSuccess, stored.Status)
	require.NotNil(t, stored.Result)
	assert.Equal(t, "sent", *stored.Result)
	assert.Equal(t, []string{"jobs"}, broker.published)
}

func TestProcessMarksFailureWithError(t *testing.T) {
	jobs := newFakeJobRepo()
	registry := map[model.JobType]Handler{
		model.JobTypeExportHistory: func(context.Context, *model.Job) (string, error) {
			return "", stderrors.New("smtp unreachable")
		},
	}
	d, _ := newTestDispatcher(jobs, registry)

	job, _ := jobs.Enqueue(context.Background(), model.JobTypeExportHistory, map[string]string{})
	claimed, _ := jobs.ClaimPending(context.Background(), 1)
	d.Process(context.Background(), claimed[0])

	stored := jobs.get(job.ID)
	assert.Equal(t, model.JobStatusFailure, stored.Status)
	require.NotNil(t, stored.Error)
	assert.Contains(t, *stored.Error, "smtp unreachable")
}

func TestProcessRecoversFromPanic(t *testing.T) {
	jobs := newFakeJobRepo()
	registry := map[model.JobType]Handler{
		model.JobTypeRenderRecord: func(context.Context, *model.Job) (string, error) {
			panic("template blew up")
		},
	}
	d, _ := newTestDispatcher(jobs, registry)

	job, _ := jobs.Enqueue(context.Background(), model.JobTypeRenderRecord, map[string]string{})
	claimed, _ := jobs.ClaimPending(context.Background(), 1)

	assert.NotPanics(t, func() {
		d.Process(context.Background(), claimed[0])
	})

	stored := jobs.get(job.ID)
	assert.Equal(t, model.JobStatusFailure, stored.Status)
	require.NotNil(t, stored.Error)
	assert.Contains(t, *stored.Error, "template blew up")
}

func TestProcessUnknownTypeFails(t *testing.T) {
	jobs := newFakeJobRepo()
	d, _ := newTestDispatcher(jobs, map[model.JobType]Handler{})

	job, _ := jobs.Enqueue(context.Background(), model.JobTypePeriodicReminder, map[string]string{})
	claimed, _ := jobs.ClaimPending(context.Background(), 1)
	d.Process(context.Background(), claimed[0])

	stored := jobs.get(job.ID)
	assert.Equal(t, model.JobStatusFailure, stored.Status)
	require.NotNil(t, stored.Error)
	assert.Contains(t, *stored.Error, "no handler registered")
}

func TestPollDrainsBatch(t *testing.T) {
	jobs := newFakeJobRepo()
	var processed sync.Map
	registry := map[model.JobType]Handler{
		model.JobTypeNotifyGranted: func(_ context.Context, job *model.Job) (string, error) {
			processed.Store(job.ID, true)
			return "ok", nil
		},
	}
	d, _ := newTestDispatcher(jobs, registry)

	const n = 10
	for i := 0; i < n; i++ {
		_, err := jobs.Enqueue(context.Background(), model.JobTypeNotifyGranted, map[string]string{})
		require.NoError(t, err)
	}

	require.NoError(t, d.poll(context.Background()))

	count := 0
	processed.Range(func(_, _ interface{}) bool { count++; return true })
	assert.Equal(t, n, count)

	pending, err := jobs.CountPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, pending)
}
