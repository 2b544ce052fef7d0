package job

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/scheduler-api/internal/middleware"
	"github.com/jwalitptl/scheduler-api/internal/model"
	"github.com/jwalitptl/scheduler-api/internal/repository"
	"github.com/jwalitptl/scheduler-api/pkg/errors"
)

type Handler struct {
	jobs repository.JobRepository
}

func NewHandler(jobs repository.JobRepository) *Handler {
	return &Handler{jobs: jobs}
}

// Get is the polling endpoint: the caller trades a job id for the job's
// current lifecycle state plus its result or error once terminal.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid job ID"})
		return
	}

	job, err := h.jobs.Get(c.Request.Context(), id)
	if stderrors.Is(err, repository.ErrNotFound) {
		_ = c.Error(errors.NotFound("job", err))
		return
	}
	if err != nil {
		_ = c.Error(errors.Internal(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": job.StatusResponse()})
}

// StartExport queues a CSV export of the patient's full history. Only
// the patient itself or an admin may ask for it.
func (h *Handler) StartExport(c *gin.Context) {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid patient ID"})
		return
	}

	actor, ok := middleware.GetActor(c)
	if !ok || (!actor.IsAdmin && !actor.IsPatient(patientID)) {
		c.JSON(http.StatusForbidden, gin.H{"status": "error", "message": "not allowed to export this history"})
		return
	}

	job, err := h.jobs.Enqueue(c.Request.Context(), model.JobTypeExportHistory,
		model.ExportHistoryPayload{PatientID: patientID})
	if err != nil {
		_ = c.Error(errors.Internal(err))
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "success", "data": gin.H{"job_id": job.ID}})
}
