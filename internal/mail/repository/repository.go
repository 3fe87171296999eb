package repository

import (
	"context"
	"time"

	"jobtrack-backend/internal/mail/domain"
)

// SyncRunRepository records sync run lifecycles
type SyncRunRepository interface {
	// Create inserts a started run and fills run.ID
	Create(ctx context.Context, run *domain.SyncRun) error
	Complete(ctx context.Context, runID string, finishedAt time.Time, added, skipped int) error
	Fail(ctx context.Context, runID string, finishedAt time.Time, added, skipped int, errMsg string) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*domain.SyncRun, error)
}

// IngestedMessageRepository is the per-message audit trail
type IngestedMessageRepository interface {
	// InsertIfAbsent returns inserted=false when (user_id, provider_message_id)
	// already exists. Existing rows are never modified.
	InsertIfAbsent(ctx context.Context, msg *domain.IngestedMessage) (inserted bool, err error)
	Annotate(ctx context.Context, userID, providerMessageID string, a domain.MessageAnnotation) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*domain.IngestedMessage, error)
}
