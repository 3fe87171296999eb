package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	authdomain "jobtrack-backend/internal/auth/domain"
	"jobtrack-backend/internal/mail/domain"
	"jobtrack-backend/internal/mail/usecase"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// UserLister returns the users the scheduler should sync
type UserLister interface {
	ListSyncable(ctx context.Context) ([]*authdomain.User, error)
}

// SyncScheduler periodically syncs every user with a stored mail credential
type SyncScheduler struct {
	users    UserLister
	sync     usecase.SyncUsecase
	interval time.Duration
	cron     *cron.Cron
	logger   *zap.Logger
	running  atomic.Bool
	cancel   context.CancelFunc
}

// NewSyncScheduler creates a new scheduler
func NewSyncScheduler(users UserLister, sync usecase.SyncUsecase, interval time.Duration, logger *zap.Logger) *SyncScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("scheduler")
	cl := cronLogger{logger.Sugar()}
	return &SyncScheduler{
		users:    users,
		sync:     sync,
		interval: interval,
		logger:   logger,
		cron:     cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl))),
	}
}

// Start registers the autosync entry and starts the cron loop
func (s *SyncScheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("invalid sync interval %s", s.interval)
	}
	ctx, s.cancel = context.WithCancel(ctx)

	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}
	s.cron.Start()
	s.logger.Info("autosync scheduler started", zap.Duration("interval", s.interval))
	return nil
}

// Stop halts the cron loop and waits for a running tick up to ctx's deadline
func (s *SyncScheduler) Stop(ctx context.Context) {
	if s.cancel != nil {
		s.cancel()
	}
	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("autosync scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn("autosync scheduler stop timed out")
	}
}

// RunOnce syncs all syncable users one after another. It returns false
// without doing anything when a previous tick is still in progress.
func (s *SyncScheduler) RunOnce(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Info("previous autosync tick still running, skipping")
		return false
	}
	defer s.running.Store(false)

	users, err := s.users.ListSyncable(ctx)
	if err != nil {
		s.logger.Error("failed to list syncable users", zap.Error(err))
		return true
	}
	if len(users) == 0 {
		return true
	}

	var added, failed int
	for _, user := range users {
		if ctx.Err() != nil {
			s.logger.Info("autosync tick cancelled")
			break
		}
		result, err := s.sync.RunSync(ctx, user.ID)
		switch {
		case err == nil:
			added += result.Added
		case errors.Is(err, domain.ErrSyncInProgress):
			s.logger.Debug("user already syncing", zap.String("user_id", user.ID))
		default:
			failed++
			s.logger.Warn("autosync failed for user",
				zap.String("user_id", user.ID),
				zap.String("kind", string(domain.Classify(err))),
				zap.Error(err))
		}
	}

	s.logger.Info("autosync tick finished",
		zap.Int("users", len(users)),
		zap.Int("added", added),
		zap.Int("failed", failed))
	return true
}

// cronLogger routes cron's internal logging to zap
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
