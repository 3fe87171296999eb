package repository

import (
	"context"
	"errors"

	"jobtrack-backend/internal/job/domain"
)

// ErrDuplicateJob is returned by Create when the (company, role, applied
// date) key already exists for the user.
var ErrDuplicateJob = errors.New("job application already exists")

// JobRepository defines the interface for job application data access
type JobRepository interface {
	// InsertIfAbsent inserts unless the dedup key exists; the first write wins.
	InsertIfAbsent(ctx context.Context, job *domain.JobApplication) (inserted bool, err error)

	// Create inserts a manual entry and reports ErrDuplicateJob on conflict
	Create(ctx context.Context, job *domain.JobApplication) error

	FindByID(ctx context.Context, id string) (*domain.JobApplication, error)

	// FindByUserID lists a user's applications, newest applied first
	FindByUserID(ctx context.Context, userID string, status *domain.Status, limit, offset int) ([]*domain.JobApplication, int64, error)

	UpdateStatus(ctx context.Context, id string, status domain.Status) error
}
