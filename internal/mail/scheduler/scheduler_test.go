package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	authdomain "jobtrack-backend/internal/auth/domain"
	"jobtrack-backend/internal/mail/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	users []*authdomain.User
	err   error
}

func (f *fakeLister) ListSyncable(context.Context) ([]*authdomain.User, error) {
	return f.users, f.err
}

type fakeSync struct {
	mu      sync.Mutex
	calls   []string
	errs    map[string]error
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeSync) RunSync(_ context.Context, userID string) (*domain.SyncResult, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, userID)
	if err := f.errs[userID]; err != nil {
		return nil, err
	}
	return &domain.SyncResult{Added: 1}, nil
}

func (f *fakeSync) ListRuns(context.Context, string, int) ([]*domain.SyncRun, error) {
	return nil, nil
}

func (f *fakeSync) ListMessages(context.Context, string, int) ([]*domain.IngestedMessage, error) {
	return nil, nil
}

func users(ids ...string) []*authdomain.User {
	out := make([]*authdomain.User, 0, len(ids))
	for _, id := range ids {
		out = append(out, &authdomain.User{ID: id})
	}
	return out
}

func TestRunOnce_ContinuesPastFailures(t *testing.T) {
	fs := &fakeSync{errs: map[string]error{
		"u1": domain.ErrSyncInProgress,
		"u2": &domain.MailSourceError{Op: "list", Err: errors.New("quota")},
	}}
	s := NewSyncScheduler(&fakeLister{users: users("u1", "u2", "u3")}, fs, time.Minute, nil)

	assert.True(t, s.RunOnce(context.Background()))
	assert.Equal(t, []string{"u1", "u2", "u3"}, fs.calls)
}

func TestRunOnce_ListError(t *testing.T) {
	fs := &fakeSync{}
	s := NewSyncScheduler(&fakeLister{err: errors.New("db down")}, fs, time.Minute, nil)

	assert.True(t, s.RunOnce(context.Background()))
	assert.Empty(t, fs.calls)
}

func TestRunOnce_SkipsOverlappingTick(t *testing.T) {
	fs := &fakeSync{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	s := NewSyncScheduler(&fakeLister{users: users("u1")}, fs, time.Minute, nil)

	done := make(chan bool)
	go func() { done <- s.RunOnce(context.Background()) }()
	<-fs.entered

	assert.False(t, s.RunOnce(context.Background()))

	close(fs.block)
	assert.True(t, <-done)
	assert.Equal(t, []string{"u1"}, fs.calls)
}

func TestRunOnce_StopsOnCancel(t *testing.T) {
	fs := &fakeSync{}
	s := NewSyncScheduler(&fakeLister{users: users("u1", "u2")}, fs, time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.RunOnce(ctx)
	assert.Empty(t, fs.calls)
}

func TestStartStop(t *testing.T) {
	s := NewSyncScheduler(&fakeLister{}, &fakeSync{}, time.Hour, nil)
	require.NoError(t, s.Start(context.Background()))
	assert.Len(t, s.cron.Entries(), 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}

func TestStart_InvalidInterval(t *testing.T) {
	s := NewSyncScheduler(&fakeLister{}, &fakeSync{}, 0, nil)
	assert.Error(t, s.Start(context.Background()))
}
