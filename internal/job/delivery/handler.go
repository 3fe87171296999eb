package delivery

import (
	"errors"
	"net/http"
	"strconv"

	"jobtrack-backend/internal/job/dto"
	"jobtrack-backend/internal/job/repository"
	"jobtrack-backend/internal/job/usecase"

	"github.com/gin-gonic/gin"
)

// JobHandler handles job application HTTP requests
type JobHandler struct {
	jobUsecase usecase.JobUsecase
}

func NewJobHandler(jobUsecase usecase.JobUsecase) *JobHandler {
	return &JobHandler{
		jobUsecase: jobUsecase,
	}
}

// GetJobs returns the authenticated user's applications
// GET /api/jobs?status=Interview&limit=50&offset=0
func (h *JobHandler) GetJobs(c *gin.Context) {
	userID := c.GetString("userID")

	status := c.Query("status")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	var statusPtr *string
	if status != "" {
		statusPtr = &status
	}

	jobs, total, err := h.jobUsecase.GetUserJobs(c.Request.Context(), userID, statusPtr, limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"total": total,
	})
}

// GetJobByID returns a specific application
// GET /api/jobs/:id
func (h *JobHandler) GetJobByID(c *gin.Context) {
	userID := c.GetString("userID")

	job, err := h.jobUsecase.GetJobByID(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

// SearchJobs ranks applications by fuzzy match on company and role
// GET /api/jobs/search?q=strpe&limit=20
func (h *JobHandler) SearchJobs(c *gin.Context) {
	userID := c.GetString("userID")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	jobs, err := h.jobUsecase.SearchJobs(c.Request.Context(), userID, c.Query("q"), limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

// CreateJob records an application entered by hand
// POST /api/jobs
func (h *JobHandler) CreateJob(c *gin.Context) {
	userID := c.GetString("userID")

	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := h.jobUsecase.CreateJob(c.Request.Context(), userID, req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, job)
}

// UpdateStatus changes an application's status
// PATCH /api/jobs/:id/status
func (h *JobHandler) UpdateStatus(c *gin.Context) {
	userID := c.GetString("userID")

	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := h.jobUsecase.UpdateStatus(c.Request.Context(), userID, c.Param("id"), req.Status)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usecase.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, usecase.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrDuplicateJob):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, usecase.ErrInvalidStatus),
		errors.Is(err, usecase.ErrInvalidDate),
		errors.Is(err, usecase.ErrMissingFields):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
