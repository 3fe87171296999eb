package notification

import (
	"context"
	"errors"
	"sync"
	"testing"

	authdomain "jobtrack-backend/internal/auth/domain"
	"jobtrack-backend/internal/mail/domain"
	"jobtrack-backend/pkg/fcm"
	"jobtrack-backend/pkg/gmail"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

type fakeUsers struct {
	byEmail  map[string]*authdomain.User
	syncable []*authdomain.User
	rotated  map[string]string
}

func (f *fakeUsers) FindByEmail(email string) (*authdomain.User, error) {
	return f.byEmail[email], nil
}

func (f *fakeUsers) ListSyncable(context.Context) ([]*authdomain.User, error) {
	return f.syncable, nil
}

func (f *fakeUsers) UpdateRefreshToken(userID, token string) error {
	if f.rotated == nil {
		f.rotated = map[string]string{}
	}
	f.rotated[userID] = token
	return nil
}

type fakeSync struct {
	mu    sync.Mutex
	calls int
	err   error
	errs  []error // consumed one per call before err
}

func (f *fakeSync) RunSync(context.Context, string) (*domain.SyncResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	} else if f.err != nil {
		return nil, f.err
	}
	return &domain.SyncResult{Added: 1}, nil
}

func (f *fakeSync) ListRuns(context.Context, string, int) ([]*domain.SyncRun, error) {
	return nil, nil
}

func (f *fakeSync) ListMessages(context.Context, string, int) ([]*domain.IngestedMessage, error) {
	return nil, nil
}

func newPushService(fs *fakeSync) *Service {
	users := &fakeUsers{byEmail: map[string]*authdomain.User{
		"me@example.com": {ID: "u1", Email: "me@example.com"},
	}}
	return NewService(nil, "gmail-updates", users, fs, zap.NewNop())
}

func TestHandleNotification_DedupesHistoryIDs(t *testing.T) {
	fs := &fakeSync{}
	s := newPushService(fs)
	ctx := context.Background()

	require.NoError(t, s.HandleNotification(ctx, []byte(`{"emailAddress":"me@example.com","historyId":100}`)))
	require.NoError(t, s.HandleNotification(ctx, []byte(`{"emailAddress":"me@example.com","historyId":100}`)))
	require.NoError(t, s.HandleNotification(ctx, []byte(`{"emailAddress":"me@example.com","historyId":99}`)))
	require.NoError(t, s.HandleNotification(ctx, []byte(`{"emailAddress":"me@example.com","historyId":101}`)))

	assert.Equal(t, 2, fs.calls)
}

func TestHandleNotification_RetriesHistoryIDAfterMissedRun(t *testing.T) {
	fs := &fakeSync{errs: []error{
		domain.ErrSyncInProgress,
		&domain.MailSourceError{Op: "list", Err: errors.New("quota")},
		nil,
	}}
	s := newPushService(fs)
	ctx := context.Background()
	note := []byte(`{"emailAddress":"me@example.com","historyId":200}`)

	require.NoError(t, s.HandleNotification(ctx, note), "lock held by another run")
	require.Error(t, s.HandleNotification(ctx, note), "run failed")
	require.NoError(t, s.HandleNotification(ctx, note))
	require.NoError(t, s.HandleNotification(ctx, note), "covered by the successful run")

	assert.Equal(t, 3, fs.calls)
}

func TestHandleNotification_UnknownMailbox(t *testing.T) {
	fs := &fakeSync{}
	s := newPushService(fs)

	require.NoError(t, s.HandleNotification(context.Background(), []byte(`{"emailAddress":"other@example.com","historyId":1}`)))
	assert.Zero(t, fs.calls)
}

func TestHandleNotification_Errors(t *testing.T) {
	s := newPushService(&fakeSync{err: domain.ErrSyncInProgress})
	assert.NoError(t, s.HandleNotification(context.Background(), []byte(`{"emailAddress":"me@example.com","historyId":1}`)))

	s = newPushService(&fakeSync{err: &domain.MailSourceError{Op: "list", Err: errors.New("quota")}})
	assert.Error(t, s.HandleNotification(context.Background(), []byte(`{"emailAddress":"me@example.com","historyId":1}`)))

	assert.Error(t, s.HandleNotification(context.Background(), []byte(`not json`)))
}

type fakeWatcher struct {
	tokens []string
	rotate string
}

func (w *fakeWatcher) Watch(_ context.Context, refreshToken, _ string, cb gmail.TokenUpdateFunc) (uint64, error) {
	if refreshToken == "broken" {
		return 0, errors.New("invalid_grant")
	}
	w.tokens = append(w.tokens, refreshToken)
	if w.rotate != "" {
		if err := cb(&oauth2.Token{RefreshToken: w.rotate}); err != nil {
			return 0, err
		}
	}
	return 42, nil
}

func TestRegisterWatches(t *testing.T) {
	users := &fakeUsers{syncable: []*authdomain.User{
		{ID: "g1", Provider: authdomain.ProviderGoogle, GoogleRefreshToken: "rt-1"},
		{ID: "g2", Provider: authdomain.ProviderGoogle, GoogleRefreshToken: "broken"},
		{ID: "i1", Provider: authdomain.ProviderIMAP, IMAPHost: "imap.example.com"},
	}}
	w := &fakeWatcher{rotate: "rt-new"}

	n := RegisterWatches(context.Background(), users, w, "projects/p/topics/t", zap.NewNop())

	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"rt-1"}, w.tokens)
	assert.Equal(t, map[string]string{"g1": "rt-new"}, users.rotated)
}

type fakeSender struct {
	sent   []fcm.NotificationData
	reject []string
}

func (f *fakeSender) SendToDevices(_ context.Context, _ []string, n fcm.NotificationData) ([]string, error) {
	f.sent = append(f.sent, n)
	return f.reject, nil
}

type fakeTokens struct {
	tokens  []authdomain.FCMToken
	deleted []string
}

func (f *fakeTokens) GetTokensByUserID(string) ([]authdomain.FCMToken, error) {
	return f.tokens, nil
}

func (f *fakeTokens) DeleteToken(token string) error {
	f.deleted = append(f.deleted, token)
	return nil
}

func TestRunNotifier(t *testing.T) {
	sender := &fakeSender{reject: []string{"stale"}}
	tokens := &fakeTokens{tokens: []authdomain.FCMToken{{Token: "good"}, {Token: "stale"}}}
	n := NewRunNotifier(sender, tokens, nil)

	n.OnRunCompleted(context.Background(), "u1", &domain.SyncResult{RunID: "r1", Added: 0})
	assert.Empty(t, sender.sent)

	n.OnRunCompleted(context.Background(), "u1", &domain.SyncResult{RunID: "r1", Added: 3})
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "3 new job applications", sender.sent[0].Title)
	assert.Equal(t, "r1", sender.sent[0].Data["run_id"])
	assert.Equal(t, []string{"stale"}, tokens.deleted)
}
