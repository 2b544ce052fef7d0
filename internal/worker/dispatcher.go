package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jwalitptl/scheduler-api/internal/model"
	"github.com/jwalitptl/scheduler-api/internal/repository"
	"github.com/jwalitptl/scheduler-api/pkg/logger"
	"github.com/jwalitptl/scheduler-api/pkg/messaging"
	"github.com/jwalitptl/scheduler-api/pkg/metrics"
)

const jobsChannel = "jobs"

type DispatcherConfig struct {
	PollInterval time.Duration
	BatchSize    int
	Concurrency  int
	JobTimeout   time.Duration
}

func (c *DispatcherConfig) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 60 * time.Second
	}
}

// Dispatcher drains the job queue. Each poll claims a batch, fans it out
// over a bounded goroutine pool, and writes every job to a terminal
// state. A handler error or panic fails that one job only; failure is
// terminal, operators re-enqueue by hand if the cause is fixed.
type Dispatcher struct {
	jobs     repository.JobRepository
	registry map[model.JobType]Handler
	broker   messaging.Broker
	metrics  *metrics.Metrics
	logger   *logger.Logger
	cfg      DispatcherConfig
}

func NewDispatcher(
	jobs repository.JobRepository,
	registry map[model.JobType]Handler,
	broker messaging.Broker,
	m *metrics.Metrics,
	logger *logger.Logger,
	cfg DispatcherConfig,
) *Dispatcher {
	cfg.applyDefaults()
	return &Dispatcher{
		jobs:     jobs,
		registry: registry,
		broker:   broker,
		metrics:  m,
		logger:   logger,
		cfg:      cfg,
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	d.logger.Info("dispatcher started",
		"poll_interval", d.cfg.PollInterval.String(),
		"concurrency", d.cfg.Concurrency)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher shutting down")
			return
		case <-ticker.C:
			if err := d.poll(ctx); err != nil {
				d.logger.Error(err, "dispatcher poll failed")
			}
		}
	}
}

func (d *Dispatcher) poll(ctx context.Context) error {
	if pending, err := d.jobs.CountPending(ctx); err == nil {
		d.metrics.JobQueueDepth.Set(float64(pending))
	}

	jobs, err := d.jobs.ClaimPending(ctx, d.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to claim jobs: %w", err)
	}
	if len(jobs) == 0 {
		return nil
	}

	sem := make(chan struct{}, d.cfg.Concurrency)
	var wg sync.WaitGroup
	for _, job := range jobs {
		sem <- struct{}{}
		wg.Add(1)
		go func(job *model.Job) {
			defer wg.Done()
			defer func() { <-sem }()
			d.process(ctx, job)
		}(job)
	}
	wg.Wait()
	return nil
}

// Process runs one claimed job to a terminal state. Exported for the
// scheduler-free single-shot path and for tests.
func (d *Dispatcher) Process(ctx context.Context, job *model.Job) {
	d.process(ctx, job)
}

func (d *Dispatcher) process(ctx context.Context, job *model.Job) {
	handler, ok := d.registry[job.Type]
	if !ok {
		d.fail(ctx, job, fmt.Sprintf("no handler registered for job type %q", job.Type))
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, d.cfg.JobTimeout)
	defer cancel()

	start := time.Now()
	result, err := d.run(jobCtx, handler, job)
	d.metrics.JobDuration.WithLabelValues(string(job.Type)).Observe(time.Since(start).Seconds())

	if err != nil {
		d.fail(ctx, job, err.Error())
		return
	}
	d.succeed(ctx, job, result)
}

// run isolates handler panics; a panicking handler fails its job and
// nothing else.
func (d *Dispatcher) run(ctx context.Context, handler Handler, job *model.Job) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler(ctx, job)
}

func (d *Dispatcher) succeed(ctx context.Context, job *model.Job, result string) {
	if err := d.jobs.MarkSuccess(ctx, job.ID, result); err != nil {
		d.logger.Error(err, "failed to mark job success", "job_id", job.ID.String())
		return
	}
	d.metrics.JobsProcessed.WithLabelValues(string(job.Type)).Inc()
	d.publishLifecycle(ctx, job, model.JobStatusSuccess)
	d.logger.Info("job succeeded",
		"job_id", job.ID.String(), "type", string(job.Type), "result", result)
}

func (d *Dispatcher) fail(ctx context.Context, job *model.Job, errMsg string) {
	if err := d.jobs.MarkFailure(ctx, job.ID, errMsg); err != nil {
		d.logger.Error(err, "failed to mark job failure", "job_id", job.ID.String())
		return
	}
	d.metrics.JobsFailed.WithLabelValues(string(job.Type)).Inc()
	d.publishLifecycle(ctx, job, model.JobStatusFailure)
	d.logger.Error(nil, "job failed",
		"job_id", job.ID.String(), "type", string(job.Type), "error", errMsg)
}

func (d *Dispatcher) publishLifecycle(ctx context.Context, job *model.Job, status model.JobStatus) {
	err := d.broker.Publish(ctx, jobsChannel, map[string]interface{}{
		"job_id": job.ID.String(),
		"type":   string(job.Type),
		"status": string(status),
	})
	if err != nil {
		d.logger.Error(err, "failed to publish job lifecycle event",
			"job_id", job.ID.String())
	}
}
