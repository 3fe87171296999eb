package repository

import (
	"context"
	"time"

	"jobtrack-backend/internal/mail/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ingestedMessageRepository struct {
	db *gorm.DB
}

func NewIngestedMessageRepository(db *gorm.DB) IngestedMessageRepository {
	return &ingestedMessageRepository{db: db}
}

func (r *ingestedMessageRepository) InsertIfAbsent(ctx context.Context, msg *domain.IngestedMessage) (bool, error) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	now := time.Now()
	msg.CreatedAt = now
	msg.UpdatedAt = now

	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "provider_message_id"}},
		DoNothing: true,
	}).Create(msg)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *ingestedMessageRepository) Annotate(ctx context.Context, userID, providerMessageID string, a domain.MessageAnnotation) error {
	cols := a.Columns()
	if len(cols) == 0 {
		return nil
	}
	cols["updated_at"] = time.Now()
	return r.db.WithContext(ctx).Model(&domain.IngestedMessage{}).
		Where("user_id = ? AND provider_message_id = ?", userID, providerMessageID).
		Updates(cols).Error
}

func (r *ingestedMessageRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.IngestedMessage, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var msgs []*domain.IngestedMessage
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("received_at DESC").
		Limit(limit).
		Find(&msgs).Error
	return msgs, err
}
