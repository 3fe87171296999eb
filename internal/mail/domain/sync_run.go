package domain

import "time"

// SyncRun records one orchestrator invocation for one user. It is written
// once at start and once at completion.
type SyncRun struct {
	ID         string     `json:"id" gorm:"primaryKey"`
	UserID     string     `json:"user_id" gorm:"index:idx_sync_runs_user_started,priority:1;not null"`
	Provider   string     `json:"provider" gorm:"not null"`
	StartedAt  time.Time  `json:"started_at" gorm:"index:idx_sync_runs_user_started,priority:2,sort:desc;not null"`
	FinishedAt *time.Time `json:"finished_at"`
	Added      int        `json:"added" gorm:"not null;default:0"`
	Skipped    int        `json:"skipped" gorm:"not null;default:0"`
	Error      *string    `json:"error"`
}

func (SyncRun) TableName() string {
	return "sync_runs"
}
