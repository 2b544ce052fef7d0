package router

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/scheduler-api/internal/handler/appointment"
	"github.com/jwalitptl/scheduler-api/internal/handler/availability"
	"github.com/jwalitptl/scheduler-api/internal/handler/health"
	"github.com/jwalitptl/scheduler-api/internal/handler/job"
	"github.com/jwalitptl/scheduler-api/internal/middleware"
	"github.com/jwalitptl/scheduler-api/internal/model"
)

type Config struct {
	RateLimit  rate.Limit
	RateBurst  int
	CORSConfig middleware.CORSConfig
	Timeout    time.Duration
}

type Router struct {
	engine        *gin.Engine
	auth          *middleware.AuthMiddleware
	healthH       *health.Handler
	availabilityH *availability.Handler
	appointmentH  *appointment.Handler
	jobH          *job.Handler
	metrics       *routerMetrics
}

type routerMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	healthH *health.Handler,
	availabilityH *availability.Handler,
	appointmentH *appointment.Handler,
	jobH *job.Handler,
	cfg Config,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	registerValidations()
	engine := gin.New()

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	r := &Router{
		engine:        engine,
		auth:          auth,
		healthH:       healthH,
		availabilityH: availabilityH,
		appointmentH:  appointmentH,
		jobH:          jobH,
		metrics:       newRouterMetrics(),
	}

	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.ErrorHandler(),
		r.metricsMiddleware(),
		middleware.Timeout(middleware.TimeoutConfig{Duration: cfg.Timeout}),
		middleware.CORS(cfg.CORSConfig),
	)

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:  cfg.RateLimit,
		Burst: cfg.RateBurst,
	})
	engine.Use(rateLimiter.RateLimit())

	return r
}

func (r *Router) Setup() {
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.engine.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	healthGroup := api.Group("/health")
	{
		healthGroup.GET("/live", r.healthH.LivenessCheck)
		healthGroup.GET("/ready", r.healthH.ReadinessCheck)
	}

	protected := api.Group("")
	protected.Use(r.auth.Authenticate())

	clinicians := protected.Group("/clinicians")
	{
		clinicians.PUT("/:id/schedule", r.availabilityH.ReplaceSchedule)
		clinicians.GET("/:id/schedule", r.availabilityH.GetSchedule)
		clinicians.GET("/:id/open-slots", r.availabilityH.OpenSlots)
	}

	appointments := protected.Group("/appointments")
	{
		appointments.POST("", r.appointmentH.Book)
		appointments.GET("", r.appointmentH.List)
		appointments.GET("/:id", r.appointmentH.Get)
		appointments.DELETE("/:id", r.appointmentH.Cancel)
		appointments.POST("/:id/complete", r.appointmentH.Complete)
		appointments.POST("/:id/record", r.appointmentH.RequestRecord)
	}

	protected.POST("/patients/:id/export", r.jobH.StartExport)
	protected.GET("/jobs/:id", r.jobH.Get)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// registerValidations hooks struct-level checks into gin's binding
// validator so malformed windows are rejected before the service layer.
func registerValidations() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterStructValidation(windowOrdering, model.WindowInput{})
	}
}

func windowOrdering(sl validator.StructLevel) {
	w := sl.Current().Interface().(model.WindowInput)
	if !w.StartTime.Before(w.EndTime) {
		sl.ReportError(w.EndTime, "EndTime", "end_time", "gtfield", "StartTime")
	}
}

func newRouterMetrics() *routerMetrics {
	return &routerMetrics{
		requestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "http_request_duration_seconds",
				Help: "Duration of HTTP requests in seconds",
			},
			[]string{"method", "path", "status"},
		),
		requestTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
	}
}

func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()

		c.Next()

		status := fmt.Sprintf("%d", c.Writer.Status())
		duration := time.Since(start).Seconds()

		r.metrics.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		r.metrics.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}
