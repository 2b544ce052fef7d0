package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Job pipeline metrics
	JobsEnqueued       *prometheus.CounterVec
	JobsProcessed      *prometheus.CounterVec
	JobsFailed         *prometheus.CounterVec
	JobDuration        *prometheus.HistogramVec
	JobQueueDepth      prometheus.Gauge
	SchedulerRuns      *prometheus.CounterVec
	SchedulerFailures  *prometheus.CounterVec
	DeliveryAttempts   *prometheus.CounterVec

	// Booking metrics
	BookingAttempts  prometheus.Counter
	BookingConflicts prometheus.Counter
}

// New creates and registers all application metrics under the given namespace.
func New(namespace string) *Metrics {
	return &Metrics{
		JobsEnqueued: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_enqueued_total",
			Help:      "Total number of jobs enqueued",
		}, []string{"type"}),
		JobsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_processed_total",
			Help:      "Total number of jobs that reached the success state",
		}, []string{"type"}),
		JobsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_failed_total",
			Help:      "Total number of jobs that reached the failure state",
		}, []string{"type"}),
		JobDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Time spent executing job handlers",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"type"}),
		JobQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "job_queue_depth",
			Help:      "Number of pending jobs at the last dispatcher poll",
		}),
		SchedulerRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_runs_total",
			Help:      "Total number of periodic trigger firings",
		}, []string{"trigger"}),
		SchedulerFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_enqueue_failures_total",
			Help:      "Total number of per-target enqueue failures inside periodic triggers",
		}, []string{"trigger"}),
		DeliveryAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_attempts_total",
			Help:      "Total number of outbound delivery attempts",
		}, []string{"channel", "status"}),
		BookingAttempts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_attempts_total",
			Help:      "Total number of booking attempts reaching the resolver",
		}),
		BookingConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_conflicts_total",
			Help:      "Total number of booking attempts that lost slot arbitration",
		}),
	}
}
