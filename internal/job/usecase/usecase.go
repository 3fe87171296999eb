package usecase

import (
	"context"
	"errors"

	"jobtrack-backend/internal/job/domain"
	"jobtrack-backend/internal/job/dto"
)

var (
	ErrJobNotFound   = errors.New("job not found")
	ErrForbidden     = errors.New("unauthorized")
	ErrInvalidStatus = errors.New("invalid status")
	ErrInvalidDate   = errors.New("invalid applied_date, expected YYYY-MM-DD")
	ErrMissingFields = errors.New("company and role are required")
)

// JobUsecase defines the interface for job application business logic
type JobUsecase interface {
	// CreateJob records a manual entry; repository.ErrDuplicateJob on conflict
	CreateJob(ctx context.Context, userID string, req dto.CreateJobRequest) (*domain.JobApplication, error)

	// GetJobByID retrieves a job by ID (with ownership check)
	GetJobByID(ctx context.Context, userID, jobID string) (*domain.JobApplication, error)

	GetUserJobs(ctx context.Context, userID string, status *string, limit, offset int) ([]*domain.JobApplication, int64, error)

	// SearchJobs ranks the user's applications by fuzzy match on company and role
	SearchJobs(ctx context.Context, userID, query string, limit int) ([]*domain.JobApplication, error)

	// UpdateStatus lets the user move an application through its lifecycle
	UpdateStatus(ctx context.Context, userID, jobID, status string) (*domain.JobApplication, error)
}
