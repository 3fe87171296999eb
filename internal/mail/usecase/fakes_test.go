package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	authdomain "jobtrack-backend/internal/auth/domain"
	jobdomain "jobtrack-backend/internal/job/domain"
	"jobtrack-backend/internal/mail/domain"
	"jobtrack-backend/pkg/ai"
	"jobtrack-backend/pkg/mlclient"
)

type fakeUsers struct {
	mu       sync.Mutex
	users    map[string]*authdomain.User
	releases int
	failFind error
}

func newFakeUsers(users ...*authdomain.User) *fakeUsers {
	f := &fakeUsers{users: map[string]*authdomain.User{}}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) FindByID(id string) (*authdomain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFind != nil {
		return nil, f.failFind
	}
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) AcquireSyncLock(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok || u.IsSyncing {
		return false, nil
	}
	u.IsSyncing = true
	return true, nil
}

func (f *fakeUsers) ReleaseSyncLock(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases++
	if u, ok := f.users[id]; ok {
		u.IsSyncing = false
	}
	return nil
}

func (f *fakeUsers) TouchLastSync(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		u.LastSyncAt = &at
	}
	return nil
}

func (f *fakeUsers) syncing(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[id].IsSyncing
}

type fakeRuns struct {
	mu   sync.Mutex
	runs map[string]*domain.SyncRun
	seq  int
}

func newFakeRuns() *fakeRuns { return &fakeRuns{runs: map[string]*domain.SyncRun{}} }

func (f *fakeRuns) Create(_ context.Context, run *domain.SyncRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	run.ID = fmt.Sprintf("run-%d", f.seq)
	cp := *run
	f.runs[run.ID] = &cp
	return nil
}

func (f *fakeRuns) finish(id string, at time.Time, added, skipped int, errMsg *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.runs[id]
	if !ok || r.FinishedAt != nil {
		return errors.New("run not open")
	}
	r.FinishedAt = &at
	r.Added = added
	r.Skipped = skipped
	r.Error = errMsg
	return nil
}

func (f *fakeRuns) Complete(_ context.Context, id string, at time.Time, added, skipped int) error {
	return f.finish(id, at, added, skipped, nil)
}

func (f *fakeRuns) Fail(_ context.Context, id string, at time.Time, added, skipped int, errMsg string) error {
	return f.finish(id, at, added, skipped, &errMsg)
}

func (f *fakeRuns) ListByUser(_ context.Context, userID string, _ int) ([]*domain.SyncRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.SyncRun
	for _, r := range f.runs {
		if r.UserID == userID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeRuns) get(id string) *domain.SyncRun {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *f.runs[id]
	return &cp
}

func (f *fakeRuns) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.runs)
}

type fakeMessages struct {
	mu         sync.Mutex
	rows       map[string]*domain.IngestedMessage
	failInsert error
}

func newFakeMessages() *fakeMessages {
	return &fakeMessages{rows: map[string]*domain.IngestedMessage{}}
}

func (f *fakeMessages) InsertIfAbsent(_ context.Context, msg *domain.IngestedMessage) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInsert != nil {
		return false, f.failInsert
	}
	key := msg.UserID + "/" + msg.ProviderMessageID
	if _, ok := f.rows[key]; ok {
		return false, nil
	}
	cp := *msg
	f.rows[key] = &cp
	return true, nil
}

func (f *fakeMessages) Annotate(_ context.Context, userID, id string, a domain.MessageAnnotation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[userID+"/"+id]
	if !ok {
		return nil
	}
	if a.HeuristicPassed != nil {
		row.HeuristicPassed = a.HeuristicPassed
	}
	if a.HeuristicScore != nil {
		row.HeuristicScore = a.HeuristicScore
	}
	if a.MLEventType != nil {
		row.MLEventType = a.MLEventType
	}
	if a.MLConfidence != nil {
		row.MLConfidence = a.MLConfidence
	}
	if a.MLReason != nil {
		row.MLReason = a.MLReason
	}
	if a.MLModelVersion != nil {
		row.MLModelVersion = a.MLModelVersion
	}
	if a.LLMUsed != nil {
		row.LLMUsed = *a.LLMUsed
	}
	if len(a.LLMExtracted) > 0 {
		row.LLMExtracted = a.LLMExtracted
	}
	if a.LLMModel != nil {
		row.LLMModel = a.LLMModel
	}
	if a.LLMConfidence != nil {
		row.LLMConfidence = a.LLMConfidence
	}
	if a.LLMError != nil {
		row.LLMError = a.LLMError
	}
	if a.Outcome != nil {
		row.Outcome = a.Outcome
	}
	return nil
}

func (f *fakeMessages) ListByUser(_ context.Context, userID string, _ int) ([]*domain.IngestedMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.IngestedMessage
	for _, r := range f.rows {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeMessages) get(userID, id string) *domain.IngestedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[userID+"/"+id]
}

type fakeJobs struct {
	mu   sync.Mutex
	jobs map[string]*jobdomain.JobApplication
}

func newFakeJobs() *fakeJobs { return &fakeJobs{jobs: map[string]*jobdomain.JobApplication{}} }

func (f *fakeJobs) InsertIfAbsent(_ context.Context, job *jobdomain.JobApplication) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := fmt.Sprintf("%s|%s|%s|%s", job.UserID, job.Company, job.Role, job.AppliedDate.Format("2006-01-02"))
	if _, ok := f.jobs[key]; ok {
		return false, nil
	}
	cp := *job
	f.jobs[key] = &cp
	return true, nil
}

func (f *fakeJobs) all() []*jobdomain.JobApplication {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*jobdomain.JobApplication, 0, len(f.jobs))
	for _, j := range f.jobs {
		out = append(out, j)
	}
	return out
}

type fakeSource struct {
	messages  []*domain.MailMessage
	searchErr error
	fetchErr  map[string]error
	searchFn  func() // runs inside Search
	lastQuery domain.SearchQuery
	closed    bool
}

func (s *fakeSource) Provider() string { return "google" }

func (s *fakeSource) Search(_ context.Context, q domain.SearchQuery) ([]domain.MessageRef, error) {
	s.lastQuery = q
	if s.searchFn != nil {
		s.searchFn()
	}
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	refs := make([]domain.MessageRef, 0, len(s.messages))
	for _, m := range s.messages {
		refs = append(refs, domain.MessageRef{ID: m.ID, ThreadID: m.ThreadID})
	}
	return refs, nil
}

func (s *fakeSource) Fetch(_ context.Context, id string) (*domain.MailMessage, error) {
	if err := s.fetchErr[id]; err != nil {
		return nil, &domain.MailSourceError{Op: "fetch", Err: err}
	}
	for _, m := range s.messages {
		if m.ID == id {
			cp := *m
			return &cp, nil
		}
	}
	return nil, &domain.MailSourceError{Op: "fetch", Err: errors.New("not found")}
}

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

type fakeSources struct {
	source *fakeSource
	err    error
}

func (f *fakeSources) SourceFor(_ context.Context, _ *authdomain.User) (MailSource, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.source, nil
}

type fakeClassifier struct {
	mu        sync.Mutex
	bySubject map[string]*mlclient.Classification
	err       error
	calls     int
	result    *mlclient.Classification
	onCall    func() // runs before the verdict is returned
	ctxErrs   []error
}

func (f *fakeClassifier) Classify(ctx context.Context, in mlclient.Input) (*mlclient.Classification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.onCall != nil {
		f.onCall()
	}
	if err := ctx.Err(); err != nil {
		f.ctxErrs = append(f.ctxErrs, err)
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	if c, ok := f.bySubject[in.Subject]; ok {
		return c, nil
	}
	return f.result, nil
}

type fakeLLM struct {
	res    *ai.JobExtraction
	err    error
	calls  int
	lastIn ai.Input
}

func (f *fakeLLM) ExtractJobFields(ctx context.Context, in ai.Input) (*ai.JobExtraction, error) {
	f.calls++
	f.lastIn = in
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.res, nil
}

type recordingObserver struct {
	results []*domain.SyncResult
}

func (o *recordingObserver) OnRunCompleted(_ context.Context, _ string, r *domain.SyncResult) {
	o.results = append(o.results, r)
}
