package notification

import (
	"context"
	"fmt"

	authdomain "jobtrack-backend/internal/auth/domain"
	"jobtrack-backend/internal/mail/domain"
	"jobtrack-backend/pkg/fcm"

	"go.uber.org/zap"
)

// Sender delivers a push to devices and returns rejected tokens
type Sender interface {
	SendToDevices(ctx context.Context, tokens []string, n fcm.NotificationData) ([]string, error)
}

type TokenStore interface {
	GetTokensByUserID(userID string) ([]authdomain.FCMToken, error)
	DeleteToken(token string) error
}

// RunNotifier pushes a notice to the user's devices when a sync adds jobs
type RunNotifier struct {
	sender Sender
	tokens TokenStore
	logger *zap.Logger
}

func NewRunNotifier(sender Sender, tokens TokenStore, logger *zap.Logger) *RunNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunNotifier{sender: sender, tokens: tokens, logger: logger.Named("notifier")}
}

func (n *RunNotifier) OnRunCompleted(ctx context.Context, userID string, result *domain.SyncResult) {
	if result == nil || result.Added == 0 {
		return
	}
	log := n.logger.With(zap.String("user_id", userID), zap.String("run_id", result.RunID))

	tokens, err := n.tokens.GetTokensByUserID(userID)
	if err != nil {
		log.Warn("failed to load device tokens", zap.Error(err))
		return
	}
	if len(tokens) == 0 {
		return
	}
	tokenStrings := make([]string, 0, len(tokens))
	for _, t := range tokens {
		tokenStrings = append(tokenStrings, t.Token)
	}

	title := "1 new job application"
	if result.Added > 1 {
		title = fmt.Sprintf("%d new job applications", result.Added)
	}
	failed, err := n.sender.SendToDevices(ctx, tokenStrings, fcm.NotificationData{
		Title: title,
		Body:  "Your tracker was updated from your inbox",
		Data: map[string]string{
			"type":         "sync_completed",
			"run_id":       result.RunID,
			"added":        fmt.Sprintf("%d", result.Added),
			"click_action": "/jobs",
		},
	})
	if err != nil {
		log.Warn("run notice failed", zap.Error(err))
		return
	}

	for _, token := range failed {
		if err := n.tokens.DeleteToken(token); err != nil {
			log.Warn("failed to delete rejected token", zap.Error(err))
		}
	}
	log.Debug("run notice sent", zap.Int("devices", len(tokenStrings)-len(failed)))
}
