package notification

import (
	"context"

	authdomain "jobtrack-backend/internal/auth/domain"
	"jobtrack-backend/pkg/gmail"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Watcher registers Gmail push watches
type Watcher interface {
	Watch(ctx context.Context, refreshToken, topicName string, onTokenRefresh gmail.TokenUpdateFunc) (uint64, error)
}

type WatchUserStore interface {
	ListSyncable(ctx context.Context) ([]*authdomain.User, error)
	UpdateRefreshToken(userID, refreshToken string) error
}

// RegisterWatches (re)registers a push watch for every Google user with a
// stored refresh token. Gmail expires watches after 7 days. It returns the
// number of watches registered.
func RegisterWatches(ctx context.Context, users WatchUserStore, watcher Watcher, topicPath string, logger *zap.Logger) int {
	log := logger.Named("watch")
	list, err := users.ListSyncable(ctx)
	if err != nil {
		log.Error("failed to list users for watch", zap.Error(err))
		return 0
	}

	registered := 0
	for _, user := range list {
		if user.Provider == authdomain.ProviderIMAP || user.GoogleRefreshToken == "" {
			continue
		}
		userID, current := user.ID, string(user.GoogleRefreshToken)
		onRefresh := func(tok *oauth2.Token) error {
			if tok.RefreshToken == "" || tok.RefreshToken == current {
				return nil
			}
			return users.UpdateRefreshToken(userID, tok.RefreshToken)
		}

		historyID, err := watcher.Watch(ctx, current, topicPath, onRefresh)
		if err != nil {
			log.Warn("gmail watch failed", zap.String("user_id", user.ID), zap.Error(err))
			continue
		}
		registered++
		log.Debug("gmail watch registered", zap.String("user_id", user.ID), zap.Uint64("history_id", historyID))
	}
	log.Info("gmail watches registered", zap.Int("count", registered))
	return registered
}
