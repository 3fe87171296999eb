package repository

import (
	"context"
	"errors"
	"time"

	"jobtrack-backend/internal/job/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const pgUniqueViolation = "23505"

// gormJobRepository implements JobRepository using GORM
type gormJobRepository struct {
	db *gorm.DB
}

func NewGormJobRepository(db *gorm.DB) JobRepository {
	return &gormJobRepository{db: db}
}

func (r *gormJobRepository) prepare(job *domain.JobApplication) {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = domain.StatusApplied
	}
	job.AppliedDate = domain.AppliedDay(job.AppliedDate)
	now := time.Now()
	job.CreatedAt = now
	job.UpdatedAt = now
}

func (r *gormJobRepository) InsertIfAbsent(ctx context.Context, job *domain.JobApplication) (bool, error) {
	r.prepare(job)
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"}, {Name: "company"}, {Name: "role"}, {Name: "applied_date"},
		},
		DoNothing: true,
	}).Create(job)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *gormJobRepository) Create(ctx context.Context, job *domain.JobApplication) error {
	r.prepare(job)
	err := r.db.WithContext(ctx).Create(job).Error
	if isUniqueViolation(err) {
		return ErrDuplicateJob
	}
	return err
}

func (r *gormJobRepository) FindByID(ctx context.Context, id string) (*domain.JobApplication, error) {
	var job domain.JobApplication
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

func (r *gormJobRepository) FindByUserID(ctx context.Context, userID string, status *domain.Status, limit, offset int) ([]*domain.JobApplication, int64, error) {
	var jobs []*domain.JobApplication
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.JobApplication{}).Where("user_id = ?", userID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("applied_date DESC, created_at DESC").
		Limit(limit).Offset(offset).Find(&jobs).Error
	return jobs, total, err
}

func (r *gormJobRepository) UpdateStatus(ctx context.Context, id string, status domain.Status) error {
	return r.db.WithContext(ctx).Model(&domain.JobApplication{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     string(status),
			"updated_at": time.Now(),
		}).Error
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
