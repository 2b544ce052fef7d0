package appointment

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/scheduler-api/internal/middleware"
	"github.com/jwalitptl/scheduler-api/internal/model"
	"github.com/jwalitptl/scheduler-api/internal/repository"
	"github.com/jwalitptl/scheduler-api/internal/service/appointment"
	"github.com/jwalitptl/scheduler-api/internal/service/booking"
	"github.com/jwalitptl/scheduler-api/pkg/errors"
)

type Handler struct {
	booking *booking.Service
	service *appointment.Service
	jobs    repository.JobRepository
}

func NewHandler(bookingSvc *booking.Service, service *appointment.Service, jobs repository.JobRepository) *Handler {
	return &Handler{
		booking: bookingSvc,
		service: service,
		jobs:    jobs,
	}
}

// Book grants or rejects a slot. The patient identity comes from the
// token, never from the request body.
func (h *Handler) Book(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok || actor.PatientID == nil {
		c.JSON(http.StatusForbidden, gin.H{"status": "error", "message": "only patients can book appointments"})
		return
	}

	var req model.BookAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	apt, err := h.booking.Book(c.Request.Context(), *actor.PatientID, &req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "success", "data": apt})
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid appointment ID"})
		return
	}

	apt, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	actor, ok := middleware.GetActor(c)
	if !ok || !actor.CanView(apt) {
		c.JSON(http.StatusForbidden, gin.H{"status": "error", "message": "not allowed to view this appointment"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": apt})
}

func (h *Handler) List(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "authentication required"})
		return
	}

	filters := &model.AppointmentFilters{}

	if raw := c.Query("clinician_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid clinician ID"})
			return
		}
		filters.ClinicianID = id
	}
	if raw := c.Query("patient_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid patient ID"})
			return
		}
		filters.PatientID = id
	}
	if raw := c.Query("status"); raw != "" {
		filters.Status = model.AppointmentStatus(raw)
	}
	if raw := c.Query("from"); raw != "" {
		from, err := model.ParseDate(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
			return
		}
		filters.From = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := model.ParseDate(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
			return
		}
		filters.To = &to
	}

	// Non-admins only ever see their own appointments regardless of the
	// filters they ask for.
	if !actor.IsAdmin {
		switch {
		case actor.PatientID != nil:
			filters.PatientID = *actor.PatientID
		case actor.ClinicianID != nil:
			filters.ClinicianID = *actor.ClinicianID
		}
	}

	appointments, err := h.service.List(c.Request.Context(), filters)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": appointments})
}

func (h *Handler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid appointment ID"})
		return
	}

	actor, ok := middleware.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "authentication required"})
		return
	}

	var req model.CancelAppointmentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
			return
		}
	}

	apt, err := h.service.Cancel(c.Request.Context(), actor, id, req.Reason)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": apt})
}

func (h *Handler) Complete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid appointment ID"})
		return
	}

	actor, ok := middleware.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "authentication required"})
		return
	}

	var req model.CompleteAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	outcome, err := h.service.Complete(c.Request.Context(), actor, id, &req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": outcome})
}

// RequestRecord queues a render of the visit record. The caller polls
// the returned job id.
func (h *Handler) RequestRecord(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid appointment ID"})
		return
	}

	apt, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	actor, ok := middleware.GetActor(c)
	if !ok || !actor.CanView(apt) {
		c.JSON(http.StatusForbidden, gin.H{"status": "error", "message": "not allowed to request this record"})
		return
	}

	job, err := h.jobs.Enqueue(c.Request.Context(), model.JobTypeRenderRecord,
		model.RenderRecordPayload{AppointmentID: apt.ID})
	if err != nil {
		_ = c.Error(errors.Internal(err))
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "success", "data": gin.H{"job_id": job.ID}})
}
