package repository

import (
	"context"
	"fmt"
	"time"

	"jobtrack-backend/internal/mail/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type syncRunRepository struct {
	db *gorm.DB
}

func NewSyncRunRepository(db *gorm.DB) SyncRunRepository {
	return &syncRunRepository{db: db}
}

func (r *syncRunRepository) Create(ctx context.Context, run *domain.SyncRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *syncRunRepository) Complete(ctx context.Context, runID string, finishedAt time.Time, added, skipped int) error {
	return r.finish(ctx, runID, map[string]interface{}{
		"finished_at": finishedAt,
		"added":       added,
		"skipped":     skipped,
	})
}

func (r *syncRunRepository) Fail(ctx context.Context, runID string, finishedAt time.Time, added, skipped int, errMsg string) error {
	return r.finish(ctx, runID, map[string]interface{}{
		"finished_at": finishedAt,
		"added":       added,
		"skipped":     skipped,
		"error":       errMsg,
	})
}

// finish only touches runs that are still open, so a run is closed once.
func (r *syncRunRepository) finish(ctx context.Context, runID string, cols map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&domain.SyncRun{}).
		Where("id = ? AND finished_at IS NULL", runID).
		Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("sync run %s not found or already finished", runID)
	}
	return nil
}

func (r *syncRunRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []*domain.SyncRun
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}
