package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/scheduler-api/internal/config"
	"github.com/jwalitptl/scheduler-api/internal/email"
	"github.com/jwalitptl/scheduler-api/internal/repository/postgres"
	"github.com/jwalitptl/scheduler-api/internal/service/report"
	"github.com/jwalitptl/scheduler-api/internal/worker"
	"github.com/jwalitptl/scheduler-api/pkg/logger"
	"github.com/jwalitptl/scheduler-api/pkg/messaging/redis"
	"github.com/jwalitptl/scheduler-api/pkg/metrics"
)

func setupHealthCheck(appLogger *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		if err := http.ListenAndServe(":8081", mux); err != nil {
			appLogger.Fatal(err, "health check server failed")
		}
	}()
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	appLogger := logger.FromZerolog(log.Logger)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	broker, err := redis.NewRedisBroker(cfg.Redis.ToBrokerConfig(), &log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	smtpCfg, err := email.LoadSMTPConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load SMTP configuration")
	}
	emailSvc := email.NewSMTPService(smtpCfg)

	baseRepo := postgres.NewBaseRepository(db)
	appointmentRepo := postgres.NewAppointmentRepository(baseRepo)
	outcomeRepo := postgres.NewOutcomeRepository(baseRepo)
	jobRepo := postgres.NewJobRepository(baseRepo)
	clinicianRepo := postgres.NewClinicianRepository(baseRepo)
	patientRepo := postgres.NewPatientRepository(baseRepo)

	reportSvc := report.NewService(appointmentRepo, outcomeRepo, patientRepo, clinicianRepo)

	m := metrics.New("scheduler_worker")
	webhook := worker.NewWebhookNotifier(m)
	handlers := worker.NewHandlers(
		appointmentRepo,
		outcomeRepo,
		clinicianRepo,
		patientRepo,
		reportSvc,
		emailSvc,
		webhook,
		m,
		appLogger,
	)

	dispatcher := worker.NewDispatcher(
		jobRepo,
		handlers.Registry(),
		broker,
		m,
		appLogger,
		worker.DispatcherConfig{
			PollInterval: cfg.Worker.PollInterval,
			BatchSize:    cfg.Worker.BatchSize,
			Concurrency:  cfg.Worker.Concurrency,
			JobTimeout:   cfg.Worker.JobTimeout,
		},
	)

	scheduler := worker.NewScheduler(jobRepo, clinicianRepo, cfg.Scheduler.Location(), m, appLogger)

	setupHealthCheck(appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("shutting down...")
		cancel()
	}()

	if err := scheduler.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}

	dispatcher.Start(ctx)
}
