package usecase

import (
	"context"
	"time"

	authdomain "jobtrack-backend/internal/auth/domain"
	jobdomain "jobtrack-backend/internal/job/domain"
	"jobtrack-backend/internal/mail/domain"
)

// SyncUsecase runs and reports mailbox syncs
type SyncUsecase interface {
	// RunSync executes one sync run for the user. It fails fast with
	// domain.ErrSyncInProgress when another run holds the user's lock.
	RunSync(ctx context.Context, userID string) (*domain.SyncResult, error)

	ListRuns(ctx context.Context, userID string, limit int) ([]*domain.SyncRun, error)
	ListMessages(ctx context.Context, userID string, limit int) ([]*domain.IngestedMessage, error)
}

// MailSource is an open session on one user's mailbox
type MailSource interface {
	Provider() string
	Search(ctx context.Context, q domain.SearchQuery) ([]domain.MessageRef, error)
	Fetch(ctx context.Context, id string) (*domain.MailMessage, error)
	Close() error
}

// SourceProvider resolves a mail source from the user's stored credential.
// It returns domain.ErrCredentialMissing when the user never connected mail.
type SourceProvider interface {
	SourceFor(ctx context.Context, user *authdomain.User) (MailSource, error)
}

// RunObserver is notified after a run completes successfully
type RunObserver interface {
	OnRunCompleted(ctx context.Context, userID string, result *domain.SyncResult)
}

// UserStore is the part of the user repository a sync needs
type UserStore interface {
	FindByID(id string) (*authdomain.User, error)
	AcquireSyncLock(ctx context.Context, userID string) (bool, error)
	ReleaseSyncLock(ctx context.Context, userID string) error
	TouchLastSync(ctx context.Context, userID string, at time.Time) error
}

type JobStore interface {
	InsertIfAbsent(ctx context.Context, job *jobdomain.JobApplication) (bool, error)
}

// Settings are read on every message so runtime toggles apply to the next
// message without a restart.
type Settings struct {
	ClassifierEnabled func() bool
	LLMEnabled        func() bool
	LLMThreshold      func() float64
	LLMModel          func() string

	DefaultModelVersion string
	LLMTimeout          time.Duration

	FullWindow  time.Duration
	FullCap     int
	LightWindow time.Duration
	LightCap    int
}

func DefaultSettings() Settings {
	return Settings{
		ClassifierEnabled: func() bool { return true },
		LLMEnabled:        func() bool { return false },
		LLMThreshold:      func() float64 { return 0.75 },
		LLMModel:          func() string { return "" },
		LLMTimeout:        60 * time.Second,
		FullWindow:        50 * 24 * time.Hour,
		FullCap:           1000,
		LightWindow:       7 * 24 * time.Hour,
		LightCap:          30,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.ClassifierEnabled == nil {
		s.ClassifierEnabled = d.ClassifierEnabled
	}
	if s.LLMEnabled == nil {
		s.LLMEnabled = d.LLMEnabled
	}
	if s.LLMThreshold == nil {
		s.LLMThreshold = d.LLMThreshold
	}
	if s.LLMModel == nil {
		s.LLMModel = d.LLMModel
	}
	if s.FullWindow <= 0 {
		s.FullWindow = d.FullWindow
	}
	if s.FullCap <= 0 {
		s.FullCap = d.FullCap
	}
	if s.LightWindow <= 0 {
		s.LightWindow = d.LightWindow
	}
	if s.LightCap <= 0 {
		s.LightCap = d.LightCap
	}
	return s
}
