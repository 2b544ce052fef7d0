package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/scheduler-api/internal/config"
	appointmentHandler "github.com/jwalitptl/scheduler-api/internal/handler/appointment"
	availabilityHandler "github.com/jwalitptl/scheduler-api/internal/handler/availability"
	healthHandler "github.com/jwalitptl/scheduler-api/internal/handler/health"
	jobHandler "github.com/jwalitptl/scheduler-api/internal/handler/job"
	"github.com/jwalitptl/scheduler-api/internal/middleware"
	"github.com/jwalitptl/scheduler-api/internal/repository/postgres"
	"github.com/jwalitptl/scheduler-api/internal/router"
	appointmentService "github.com/jwalitptl/scheduler-api/internal/service/appointment"
	availabilityService "github.com/jwalitptl/scheduler-api/internal/service/availability"
	bookingService "github.com/jwalitptl/scheduler-api/internal/service/booking"
	"github.com/jwalitptl/scheduler-api/pkg/logger"
	"github.com/jwalitptl/scheduler-api/pkg/metrics"
)

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

	baseRepo := postgres.NewBaseRepository(db)
	availabilityRepo := postgres.NewAvailabilityRepository(baseRepo)
	appointmentRepo := postgres.NewAppointmentRepository(baseRepo)
	outcomeRepo := postgres.NewOutcomeRepository(baseRepo)
	jobRepo := postgres.NewJobRepository(baseRepo)

	availabilitySvc := availabilityService.NewService(availabilityRepo, appointmentRepo)
	m := metrics.New("scheduler_api")
	bookingSvc := bookingService.NewService(appointmentRepo, availabilityRepo, jobRepo, availabilitySvc, m, appLogger)
	appointmentSvc := appointmentService.NewService(appointmentRepo, outcomeRepo, jobRepo, availabilitySvc, appLogger)

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)

	r := router.NewRouter(
		authMiddleware,
		healthHandler.NewHandler(db),
		availabilityHandler.NewHandler(availabilitySvc),
		appointmentHandler.NewHandler(bookingSvc, appointmentSvc, jobRepo),
		jobHandler.NewHandler(jobRepo),
		router.Config{
			RateLimit:  rate.Limit(cfg.RateLimit.RequestsPerSecond),
			RateBurst:  cfg.RateLimit.Burst,
			CORSConfig: middleware.DefaultCORSConfig(),
			Timeout:    cfg.Server.RequestTimeout,
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Server.Port).Msg("server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
