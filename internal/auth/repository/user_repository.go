package repository

import (
	"context"
	"errors"
	"time"

	authdomain "jobtrack-backend/internal/auth/domain"
	"jobtrack-backend/pkg/secret"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// userRepository implements UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new instance of userRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{
		db: db,
	}
}

func (r *userRepository) Create(user *authdomain.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.Provider == "" {
		user.Provider = authdomain.ProviderGoogle
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()
	return r.db.Create(user).Error
}

func (r *userRepository) FindByEmail(email string) (*authdomain.User, error) {
	var user authdomain.User
	err := r.db.Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByID(id string) (*authdomain.User, error) {
	var user authdomain.User
	err := r.db.Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// Update saves profile and credential fields. The sync lock columns are
// left alone so a profile save can never clear a held lock.
func (r *userRepository) Update(user *authdomain.User) error {
	user.UpdatedAt = time.Now()
	return r.db.Model(user).
		Select("email", "name", "avatar_url", "provider", "google_refresh_token",
			"imap_host", "imap_port", "imap_username", "imap_password", "imap_use_tls", "updated_at").
		Updates(user).Error
}

func (r *userRepository) ListSyncable(ctx context.Context) ([]*authdomain.User, error) {
	var users []*authdomain.User
	err := r.db.WithContext(ctx).
		Where("(provider = ? AND google_refresh_token IS NOT NULL) OR (provider = ? AND imap_host <> '' AND imap_password IS NOT NULL)",
			authdomain.ProviderGoogle, authdomain.ProviderIMAP).
		Order("created_at ASC").
		Find(&users).Error
	return users, err
}

func (r *userRepository) UpdateRefreshToken(userID, refreshToken string) error {
	return r.db.Model(&authdomain.User{}).Where("id = ?", userID).
		Updates(map[string]interface{}{
			"google_refresh_token": secret.String(refreshToken),
			"updated_at":           time.Now(),
		}).Error
}

func (r *userRepository) AcquireSyncLock(ctx context.Context, userID string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&authdomain.User{}).
		Where("id = ? AND is_syncing = ?", userID, false).
		Update("is_syncing", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *userRepository) ReleaseSyncLock(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Model(&authdomain.User{}).
		Where("id = ?", userID).
		Update("is_syncing", false).Error
}

func (r *userRepository) TouchLastSync(ctx context.Context, userID string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&authdomain.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"last_sync_at": at,
			"updated_at":   time.Now(),
		}).Error
}
