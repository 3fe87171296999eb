package repository

import (
	"context"
	"time"

	authdomain "jobtrack-backend/internal/auth/domain"
)

// UserRepository defines the interface for user and sync-lock data access
type UserRepository interface {
	Create(user *authdomain.User) error
	FindByID(id string) (*authdomain.User, error)
	FindByEmail(email string) (*authdomain.User, error)
	Update(user *authdomain.User) error

	// ListSyncable returns users that have a stored mail credential
	ListSyncable(ctx context.Context) ([]*authdomain.User, error)

	// UpdateRefreshToken stores a rotated Google refresh token
	UpdateRefreshToken(userID, refreshToken string) error

	// AcquireSyncLock flips is_syncing false -> true. acquired is false when
	// another run holds the lock or the user does not exist.
	AcquireSyncLock(ctx context.Context, userID string) (acquired bool, err error)
	ReleaseSyncLock(ctx context.Context, userID string) error
	TouchLastSync(ctx context.Context, userID string, at time.Time) error
}

// FCMTokenRepository defines the interface for FCM token operations
type FCMTokenRepository interface {
	SaveToken(userID, token, deviceInfo string) error
	GetTokensByUserID(userID string) ([]authdomain.FCMToken, error)
	DeleteToken(token string) error
	DeleteUserToken(userID, token string) error
}
