package availability

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/scheduler-api/internal/middleware"
	"github.com/jwalitptl/scheduler-api/internal/model"
	"github.com/jwalitptl/scheduler-api/internal/service/availability"
)

type Handler struct {
	service *availability.Service
}

func NewHandler(service *availability.Service) *Handler {
	return &Handler{service: service}
}

// ReplaceSchedule swaps the whole window set for one date. Only the
// clinician itself or an admin may write a schedule.
func (h *Handler) ReplaceSchedule(c *gin.Context) {
	clinicianID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid clinician ID"})
		return
	}

	actor, ok := middleware.GetActor(c)
	if !ok || (!actor.IsAdmin && !actor.IsClinician(clinicianID)) {
		c.JSON(http.StatusForbidden, gin.H{"status": "error", "message": "not allowed to modify this schedule"})
		return
	}

	var req model.ReplaceScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	windows, err := h.service.ReplaceSchedule(c.Request.Context(), clinicianID, &req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": windows})
}

func (h *Handler) GetSchedule(c *gin.Context) {
	clinicianID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid clinician ID"})
		return
	}

	from, err := model.ParseDate(c.DefaultQuery("from", model.Today(time.Local).String()))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}
	to := from
	if raw := c.Query("to"); raw != "" {
		if to, err = model.ParseDate(raw); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
			return
		}
	}

	windows, err := h.service.GetSchedule(c.Request.Context(), clinicianID, from, to)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": windows})
}

func (h *Handler) OpenSlots(c *gin.Context) {
	clinicianID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid clinician ID"})
		return
	}

	date, err := model.ParseDate(c.DefaultQuery("date", model.Today(time.Local).String()))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	slots, err := h.service.OpenSlots(c.Request.Context(), clinicianID, date)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": slots})
}
