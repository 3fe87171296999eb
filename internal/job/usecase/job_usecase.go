package usecase

import (
	"context"
	"strings"
	"time"

	"jobtrack-backend/internal/job/domain"
	"jobtrack-backend/internal/job/dto"
	"jobtrack-backend/internal/job/repository"
	"jobtrack-backend/pkg/extract"
	"jobtrack-backend/pkg/fuzzy"
)

// jobUsecase implements JobUsecase interface
type jobUsecase struct {
	jobRepo repository.JobRepository
	now     func() time.Time
}

func NewJobUsecase(jobRepo repository.JobRepository) JobUsecase {
	return &jobUsecase{
		jobRepo: jobRepo,
		now:     time.Now,
	}
}

func (u *jobUsecase) CreateJob(ctx context.Context, userID string, req dto.CreateJobRequest) (*domain.JobApplication, error) {
	company := extract.CleanCompany(req.Company)
	role := extract.CleanRole(req.Role)
	if extract.IsUnknownCompany(company) || extract.IsUnknownRole(role) {
		return nil, ErrMissingFields
	}

	applied := u.now()
	if req.AppliedDate != "" {
		t, err := time.Parse("2006-01-02", req.AppliedDate)
		if err != nil {
			return nil, ErrInvalidDate
		}
		applied = t
	}

	status := domain.StatusApplied
	if req.Status != "" {
		s, ok := domain.ParseStatus(req.Status)
		if !ok {
			return nil, ErrInvalidStatus
		}
		status = s
	}

	job := &domain.JobApplication{
		UserID:      userID,
		Company:     company,
		Role:        role,
		AppliedDate: applied,
		Status:      status,
		Source:      domain.SourceManual,
		Notes:       strings.TrimSpace(req.Notes),
	}
	if err := u.jobRepo.Create(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (u *jobUsecase) GetJobByID(ctx context.Context, userID, jobID string) (*domain.JobApplication, error) {
	job, err := u.jobRepo.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	if job.UserID != userID {
		return nil, ErrForbidden
	}
	return job, nil
}

func (u *jobUsecase) GetUserJobs(ctx context.Context, userID string, status *string, limit, offset int) ([]*domain.JobApplication, int64, error) {
	var statusFilter *domain.Status
	if status != nil && *status != "" {
		s, ok := domain.ParseStatus(*status)
		if !ok {
			return nil, 0, ErrInvalidStatus
		}
		statusFilter = &s
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return u.jobRepo.FindByUserID(ctx, userID, statusFilter, limit, offset)
}

// searchScanLimit bounds how many applications a search loads
const searchScanLimit = 1000

func (u *jobUsecase) SearchJobs(ctx context.Context, userID, query string, limit int) ([]*domain.JobApplication, error) {
	if strings.TrimSpace(query) == "" {
		return []*domain.JobApplication{}, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	jobs, _, err := u.jobRepo.FindByUserID(ctx, userID, nil, searchScanLimit, 0)
	if err != nil {
		return nil, err
	}

	ranked := fuzzy.Rank(query, len(jobs), func(i int) []fuzzy.Field {
		return []fuzzy.Field{
			{Text: jobs[i].Company, Weight: 2},
			{Text: jobs[i].Role, Weight: 1},
			{Text: jobs[i].Notes, Weight: 0.5},
		}
	})
	out := make([]*domain.JobApplication, 0, min(limit, len(ranked)))
	for _, r := range ranked {
		if len(out) == limit {
			break
		}
		out = append(out, jobs[r.Index])
	}
	return out, nil
}

func (u *jobUsecase) UpdateStatus(ctx context.Context, userID, jobID, status string) (*domain.JobApplication, error) {
	s, ok := domain.ParseStatus(status)
	if !ok {
		return nil, ErrInvalidStatus
	}
	job, err := u.GetJobByID(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status == s {
		return job, nil
	}
	if err := u.jobRepo.UpdateStatus(ctx, job.ID, s); err != nil {
		return nil, err
	}
	job.Status = s
	job.UpdatedAt = u.now()
	return job, nil
}
