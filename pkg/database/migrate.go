package database

import (
	"fmt"

	authdomain "jobtrack-backend/internal/auth/domain"
	jobdomain "jobtrack-backend/internal/job/domain"
	maildomain "jobtrack-backend/internal/mail/domain"

	"gorm.io/gorm"
)

// Models lists every table the service owns, in creation order.
func Models() []interface{} {
	return []interface{}{
		&authdomain.User{},
		&authdomain.FCMToken{},
		&maildomain.SyncRun{},
		&maildomain.IngestedMessage{},
		&jobdomain.JobApplication{},
	}
}

// Migrate creates or updates the schema, including the unique keys that
// make message and job inserts idempotent.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}
