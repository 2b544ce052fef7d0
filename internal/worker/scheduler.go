package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jwalitptl/scheduler-api/internal/model"
	"github.com/jwalitptl/scheduler-api/internal/repository"
	"github.com/jwalitptl/scheduler-api/internal/service/report"
	"github.com/jwalitptl/scheduler-api/pkg/logger"
	"github.com/jwalitptl/scheduler-api/pkg/metrics"
)

const (
	dailyReminderSpec = "0 8 * * *"
	monthlyReportSpec = "0 9 1 * *"

	triggerDailyReminder = "daily_reminder"
	triggerMonthlyReport = "monthly_report"
)

// Scheduler owns the periodic triggers. Triggers only enqueue; the
// dispatcher does the actual work, so an overlapping run drains
// naturally instead of doubling effort.
type Scheduler struct {
	jobs     repository.JobRepository
	clinRepo repository.ClinicianRepository
	cron     *cron.Cron
	metrics  *metrics.Metrics
	logger   *logger.Logger
	now      func() time.Time
}

func NewScheduler(
	jobs repository.JobRepository,
	clinRepo repository.ClinicianRepository,
	loc *time.Location,
	m *metrics.Metrics,
	logger *logger.Logger,
) *Scheduler {
	return &Scheduler{
		jobs:     jobs,
		clinRepo: clinRepo,
		cron:     cron.New(cron.WithLocation(loc)),
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(dailyReminderSpec, func() {
		if err := s.EnqueueDailyReminder(ctx); err != nil {
			s.logger.Error(err, "daily reminder trigger failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to register daily reminder trigger: %w", err)
	}

	_, err = s.cron.AddFunc(monthlyReportSpec, func() {
		if err := s.EnqueueMonthlyReports(ctx); err != nil {
			s.logger.Error(err, "monthly report trigger failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to register monthly report trigger: %w", err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started",
		"daily_reminder", dailyReminderSpec, "monthly_report", monthlyReportSpec)

	go func() {
		<-ctx.Done()
		s.cron.Stop()
		s.logger.Info("scheduler stopped")
	}()
	return nil
}

// EnqueueDailyReminder queues one reminder scan for the current date.
func (s *Scheduler) EnqueueDailyReminder(ctx context.Context) error {
	s.metrics.SchedulerRuns.WithLabelValues(triggerDailyReminder).Inc()

	today := model.Today(s.now().Location())
	job, err := s.jobs.Enqueue(ctx, model.JobTypePeriodicReminder,
		model.PeriodicReminderPayload{Date: today})
	if err != nil {
		s.metrics.SchedulerFailures.WithLabelValues(triggerDailyReminder).Inc()
		return fmt.Errorf("failed to enqueue reminder scan: %w", err)
	}
	s.metrics.JobsEnqueued.WithLabelValues(string(model.JobTypePeriodicReminder)).Inc()
	s.logger.Info("reminder scan enqueued",
		"job_id", job.ID.String(), "date", today.String())
	return nil
}

// EnqueueMonthlyReports queues one previous-month report job per
// clinician. A failed enqueue for one clinician never blocks the rest.
func (s *Scheduler) EnqueueMonthlyReports(ctx context.Context) error {
	s.metrics.SchedulerRuns.WithLabelValues(triggerMonthlyReport).Inc()

	clinicians, err := s.clinRepo.List(ctx)
	if err != nil {
		s.metrics.SchedulerFailures.WithLabelValues(triggerMonthlyReport).Inc()
		return fmt.Errorf("failed to list clinicians: %w", err)
	}

	month := report.PreviousMonthStart(s.now())
	enqueued := 0
	for _, clinician := range clinicians {
		_, err := s.jobs.Enqueue(ctx, model.JobTypePeriodicReport,
			model.PeriodicReportPayload{ClinicianID: clinician.ID, Month: month})
		if err != nil {
			s.metrics.SchedulerFailures.WithLabelValues(triggerMonthlyReport).Inc()
			s.logger.Error(err, "failed to enqueue monthly report",
				"clinician_id", clinician.ID.String())
			continue
		}
		s.metrics.JobsEnqueued.WithLabelValues(string(model.JobTypePeriodicReport)).Inc()
		enqueued++
	}

	s.logger.Info("monthly reports enqueued",
		"month", month.String(), "enqueued", enqueued, "clinicians", len(clinicians))
	return nil
}
