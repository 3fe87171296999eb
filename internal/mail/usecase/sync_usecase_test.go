package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	authdomain "jobtrack-backend/internal/auth/domain"
	jobdomain "jobtrack-backend/internal/job/domain"
	"jobtrack-backend/internal/mail/domain"
	"jobtrack-backend/pkg/ai"
	"jobtrack-backend/pkg/mlclient"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUserID = "user-1"

var received = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

type harness struct {
	users      *fakeUsers
	runs       *fakeRuns
	messages   *fakeMessages
	jobs       *fakeJobs
	source     *fakeSource
	sources    *fakeSources
	classifier *fakeClassifier
	llm        *fakeLLM
	observer   *recordingObserver
	settings   Settings
}

func newHarness(msgs ...*domain.MailMessage) *harness {
	source := &fakeSource{messages: msgs}
	return &harness{
		users:      newFakeUsers(&authdomain.User{ID: testUserID, Email: "me@example.com", Provider: "google", GoogleRefreshToken: "rt"}),
		runs:       newFakeRuns(),
		messages:   newFakeMessages(),
		jobs:       newFakeJobs(),
		source:     source,
		sources:    &fakeSources{source: source},
		classifier: &fakeClassifier{result: &mlclient.Classification{IsJobRelated: true, EventType: "applied", Confidence: 0.9, ModelVersion: "logreg-v1"}},
		llm:        &fakeLLM{},
		observer:   &recordingObserver{},
		settings:   DefaultSettings(),
	}
}

func (h *harness) usecase() *syncUsecase {
	return newSyncUsecase(SyncDeps{
		Users:      h.users,
		Runs:       h.runs,
		Messages:   h.messages,
		Jobs:       h.jobs,
		Sources:    h.sources,
		Classifier: h.classifier,
		LLM:        h.llm,
		Settings:   h.settings,
		Observers:  []RunObserver{h.observer},
	})
}

func interviewMessage() *domain.MailMessage {
	return &domain.MailMessage{
		ID:         "m-interview",
		ThreadID:   "t1",
		Subject:    "Interview Invitation — Acme Corp",
		From:       "Acme Talent <talent@acme.com>",
		ReceivedAt: received,
		Body:       "Hi, we'd like to invite you to interview for the Backend Engineer role at Acme Corp.",
	}
}

func shippingMessage() *domain.MailMessage {
	return &domain.MailMessage{
		ID:         "m-shipping",
		Subject:    "Your order has shipped",
		From:       "noreply@shop.com",
		ReceivedAt: received,
		Body:       "Track your package below.",
	}
}

func applyMessage(id string) *domain.MailMessage {
	return &domain.MailMessage{
		ID:         id,
		Subject:    "Thank you for applying to Globex",
		From:       "jobs@globex.com",
		ReceivedAt: received,
		Body:       "Thank you for applying to Globex. We received your application for the Data Analyst position.",
	}
}

func TestRunSync_InterviewScenario(t *testing.T) {
	h := newHarness(interviewMessage())
	h.classifier.result = &mlclient.Classification{IsJobRelated: true, EventType: "interview", Confidence: 0.9, ModelVersion: "logreg-v1"}

	res, err := h.usecase().RunSync(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 0, res.Skipped)

	jobs := h.jobs.all()
	require.Len(t, jobs, 1)
	assert.Equal(t, "Acme Corp", jobs[0].Company)
	assert.Equal(t, "Backend Engineer", jobs[0].Role)
	assert.Equal(t, jobdomain.StatusInterview, jobs[0].Status)
	assert.Equal(t, jobdomain.SourceML, jobs[0].Source)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), jobs[0].AppliedDate)

	row := h.messages.get(testUserID, "m-interview")
	require.NotNil(t, row)
	assert.True(t, *row.HeuristicPassed)
	assert.Equal(t, "interview", *row.MLEventType)
	assert.Equal(t, domain.OutcomeAdded, *row.Outcome)
	assert.False(t, row.LLMUsed)

	run := h.runs.get(res.RunID)
	require.NotNil(t, run.FinishedAt)
	assert.Nil(t, run.Error)
	assert.Equal(t, 1, run.Added)
	assert.False(t, h.users.syncing(testUserID))
	assert.True(t, h.source.closed)
	require.Len(t, h.observer.results, 1)
	assert.Equal(t, 1, h.observer.results[0].Added)
}

func TestRunSync_HeuristicRejectsWithoutClassifierCall(t *testing.T) {
	h := newHarness(shippingMessage())

	res, err := h.usecase().RunSync(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Added)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 0, h.classifier.calls)
	assert.Empty(t, h.jobs.all())

	row := h.messages.get(testUserID, "m-shipping")
	assert.False(t, *row.HeuristicPassed)
	assert.Equal(t, domain.OutcomeHeuristicRejected, *row.Outcome)
}

func TestRunSync_ClassifierErrorIsPerMessage(t *testing.T) {
	h := newHarness(interviewMessage(), applyMessage("m-apply"))
	h.settings.DefaultModelVersion = "logreg-v1"
	failing := interviewMessage().Subject
	h.classifier.bySubject = map[string]*mlclient.Classification{}
	h.classifier.result = &mlclient.Classification{IsJobRelated: true, EventType: "applied", Confidence: 0.95}

	uc := h.usecase()
	uc.classifier = &subjectFailingClassifier{next: h.classifier, subject: failing, err: errors.New("dial tcp: connection refused")}

	res, err := uc.RunSync(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 1, res.Skipped)

	row := h.messages.get(testUserID, "m-interview")
	require.NotNil(t, row.MLReason)
	assert.Equal(t, "ML_ERROR: dial tcp: connection refused", *row.MLReason)
	assert.Equal(t, "logreg-v1", *row.MLModelVersion)
	assert.Equal(t, domain.OutcomeClassifierError, *row.Outcome)

	run := h.runs.get(res.RunID)
	assert.Nil(t, run.Error, "per-message failures leave the run successful")
}

type subjectFailingClassifier struct {
	next    mlclient.Classifier
	subject string
	err     error
}

func (c *subjectFailingClassifier) Classify(ctx context.Context, in mlclient.Input) (*mlclient.Classification, error) {
	if in.Subject == c.subject {
		return nil, c.err
	}
	return c.next.Classify(ctx, in)
}

func TestRunSync_NotJobRelated(t *testing.T) {
	h := newHarness(applyMessage("m1"))
	h.classifier.result = &mlclient.Classification{IsJobRelated: false, EventType: "other", Confidence: 0.8}

	res, err := h.usecase().RunSync(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, domain.OutcomeNotJobRelated, *h.messages.get(testUserID, "m1").Outcome)
	assert.Empty(t, h.jobs.all())
}

func TestRunSync_IdempotentRerun(t *testing.T) {
	h := newHarness(interviewMessage(), applyMessage("m-apply"), shippingMessage())
	uc := h.usecase()

	first, err := uc.RunSync(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Added)

	second, err := uc.RunSync(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Added)
	assert.Equal(t, 3, second.Skipped)
	assert.Len(t, h.jobs.all(), 2)
	assert.Equal(t, 2, h.runs.count())
}

func TestRunSync_SameJobUnderDifferentMessageIDs(t *testing.T) {
	h := newHarness(applyMessage("m-a"), applyMessage("m-b"))

	res, err := h.usecase().RunSync(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Added)
	require.Len(t, h.jobs.all(), 1)
	assert.Equal(t, "m-a", *h.jobs.all()[0].ProviderMessageID, "first write wins")
}

func TestRunSync_ConcurrentRunsForSameUser(t *testing.T) {
	h := newHarness(applyMessage("m1"))
	started := make(chan struct{})
	proceed := make(chan struct{})
	var once sync.Once
	h.source.searchFn = func() {
		once.Do(func() { close(started) })
		<-proceed
	}
	uc := h.usecase()

	var (
		firstRes *domain.SyncResult
		firstErr error
		wg       sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		firstRes, firstErr = uc.RunSync(context.Background(), testUserID)
	}()

	<-started
	_, err := uc.RunSync(context.Background(), testUserID)
	assert.ErrorIs(t, err, domain.ErrSyncInProgress)
	assert.Equal(t, domain.ResultAlreadySyncing, domain.Classify(err))
	assert.Equal(t, 1, h.runs.count(), "rejected run creates no row")

	close(proceed)
	wg.Wait()
	require.NoError(t, firstErr)
	assert.Equal(t, 1, firstRes.Added)
	assert.False(t, h.users.syncing(testUserID))
}

func TestRunSync_UnknownUser(t *testing.T) {
	h := newHarness()
	_, err := h.usecase().RunSync(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	assert.Equal(t, 0, h.runs.count())
}

func TestRunSync_CredentialMissingRecordedOnRun(t *testing.T) {
	h := newHarness(applyMessage("m1"))
	h.users.users[testUserID].GoogleRefreshToken = ""

	res, err := h.usecase().RunSync(context.Background(), testUserID)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCredentialMissing)
	assert.Equal(t, domain.ResultNoCredential, domain.Classify(err))

	run := h.runs.get(res.RunID)
	require.NotNil(t, run.Error)
	assert.NotNil(t, run.FinishedAt)
	assert.False(t, h.users.syncing(testUserID))
	assert.Empty(t, h.observer.results)
}

func TestRunSync_SearchFailureIsRunFatal(t *testing.T) {
	h := newHarness(applyMessage("m1"))
	h.source.searchErr = &domain.MailSourceError{Op: "list", Err: errors.New("quota exceeded")}

	res, err := h.usecase().RunSync(context.Background(), testUserID)
	var mse *domain.MailSourceError
	require.True(t, errors.As(err, &mse))
	assert.Equal(t, domain.ResultInternal, domain.Classify(err))

	run := h.runs.get(res.RunID)
	require.NotNil(t, run.Error)
	assert.Contains(t, *run.Error, "quota exceeded")
	assert.False(t, h.users.syncing(testUserID))
	assert.Nil(t, h.users.users[testUserID].LastSyncAt)
}

func TestRunSync_FetchFailureSkipsMessage(t *testing.T) {
	h := newHarness(applyMessage("m-broken"), applyMessage("m-ok"))
	h.source.fetchErr = map[string]error{"m-broken": errors.New("500")}

	res, err := h.usecase().RunSync(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 1, res.Skipped)
	assert.Nil(t, h.messages.get(testUserID, "m-broken"))
}

func TestRunSync_StoreErrorAbortsRunAndReleasesLock(t *testing.T) {
	h := newHarness(applyMessage("m1"))
	h.messages.failInsert = errors.New("connection reset")

	res, err := h.usecase().RunSync(context.Background(), testUserID)
	var se *domain.StoreError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "insert message", se.Op)

	run := h.runs.get(res.RunID)
	require.NotNil(t, run.Error)
	assert.Contains(t, *run.Error, "connection reset")
	assert.False(t, h.users.syncing(testUserID))
	assert.Equal(t, 1, h.users.releases)
}

func TestRunSync_PanicIsRecordedAndLockReleased(t *testing.T) {
	h := newHarness(applyMessage("m1"))
	uc := h.usecase()
	uc.stages = append([]stage{func(context.Context, *messageState) (bool, error) {
		panic("boom")
	}}, uc.stages...)

	res, err := uc.RunSync(context.Background(), testUserID)
	require.Error(t, err)
	assert.Contains(t, *h.runs.get(res.RunID).Error, "boom")
	assert.False(t, h.users.syncing(testUserID))
}

func TestRunSync_LightweightPathWithoutClassifier(t *testing.T) {
	h := newHarness(applyMessage("m1"))
	h.settings.ClassifierEnabled = func() bool { return false }

	res, err := h.usecase().RunSync(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 0, h.classifier.calls)

	q := h.source.lastQuery
	assert.Equal(t, 7*24*time.Hour, q.Window)
	assert.Equal(t, 30, q.Cap)
	assert.Equal(t, domain.LightSearchTerms, q.Terms)

	jobs := h.jobs.all()
	require.Len(t, jobs, 1)
	assert.Equal(t, "Globex", jobs[0].Company)
	assert.Equal(t, jobdomain.StatusApplied, jobs[0].Status)
	assert.Equal(t, jobdomain.SourceHeuristic, jobs[0].Source)
	assert.Nil(t, jobs[0].Confidence)
}

func TestRunSync_FullPathQuery(t *testing.T) {
	h := newHarness()
	_, err := h.usecase().RunSync(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Equal(t, 50*24*time.Hour, h.source.lastQuery.Window)
	assert.Equal(t, 1000, h.source.lastQuery.Cap)
	assert.Equal(t, domain.FullSearchTerms, h.source.lastQuery.Terms)
}

func TestRunSync_UnknownGuard(t *testing.T) {
	h := newHarness(&domain.MailMessage{
		ID:         "m-vague",
		Subject:    "Application update",
		From:       "no-reply@greenhouse.io",
		ReceivedAt: received,
		Body:       "Hello, there is news about your candidate profile.",
	})

	res, err := h.usecase().RunSync(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Empty(t, h.jobs.all())
	assert.Equal(t, domain.OutcomeUnknownFields, *h.messages.get(testUserID, "m-vague").Outcome)
}

func TestRunSync_LLMOverridesUncertainClassification(t *testing.T) {
	h := newHarness(applyMessage("m1"))
	h.settings.LLMEnabled = func() bool { return true }
	h.settings.LLMModel = func() string { return "llama3.1:8b" }
	h.classifier.result = &mlclient.Classification{IsJobRelated: true, EventType: "applied", Confidence: 0.4}
	company, role, status := "Globex Corporation", "Senior Data Analyst", "offer"
	h.llm.res = &ai.JobExtraction{IsJobRelated: true, Company: &company, Role: &role, Status: &status, Confidence: 0.85}

	res, err := h.usecase().RunSync(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 1, h.llm.calls)

	jobs := h.jobs.all()
	require.Len(t, jobs, 1)
	assert.Equal(t, "Globex Corporation", jobs[0].Company)
	assert.Equal(t, "Senior Data Analyst", jobs[0].Role)
	assert.Equal(t, jobdomain.StatusOffer, jobs[0].Status)
	assert.Equal(t, jobdomain.SourceLLM, jobs[0].Source)
	assert.InDelta(t, 0.85, *jobs[0].Confidence, 1e-9)

	row := h.messages.get(testUserID, "m1")
	assert.True(t, row.LLMUsed)
	assert.Equal(t, "llama3.1:8b", *row.LLMModel)
	assert.Contains(t, string(row.LLMExtracted), "Globex Corporation")
	assert.Nil(t, row.LLMError)
}

func TestRunSync_LLMNotJobRelatedKeepsDeterministicFields(t *testing.T) {
	h := newHarness(applyMessage("m1"))
	h.settings.LLMEnabled = func() bool { return true }
	h.classifier.result = &mlclient.Classification{IsJobRelated: true, EventType: "interview", Confidence: 0.5}
	other := "Someone Else"
	h.llm.res = &ai.JobExtraction{IsJobRelated: false, Company: &other}

	_, err := h.usecase().RunSync(context.Background(), testUserID)
	require.NoError(t, err)
	jobs := h.jobs.all()
	require.Len(t, jobs, 1)
	assert.Equal(t, "Globex", jobs[0].Company)
	assert.Equal(t, jobdomain.SourceML, jobs[0].Source)
	assert.Equal(t, jobdomain.StatusInterview, jobs[0].Status)
}

func TestRunSync_LLMErrorKeepsPreLLMFields(t *testing.T) {
	h := newHarness(applyMessage("m1"))
	h.settings.LLMEnabled = func() bool { return true }
	h.classifier.result = &mlclient.Classification{IsJobRelated: true, EventType: "applied", Confidence: 0.3}
	h.llm.err = errors.New("ollama: context deadline exceeded")

	res, err := h.usecase().RunSync(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)

	jobs := h.jobs.all()
	require.Len(t, jobs, 1)
	assert.Equal(t, "Globex", jobs[0].Company)
	assert.Equal(t, jobdomain.SourceML, jobs[0].Source)

	row := h.messages.get(testUserID, "m1")
	assert.True(t, row.LLMUsed)
	require.NotNil(t, row.LLMError)
	assert.Contains(t, *row.LLMError, "deadline exceeded")
}

func TestRunSync_RecordsProviderOnMessages(t *testing.T) {
	h := newHarness(applyMessage("m1"))

	_, err := h.usecase().RunSync(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Equal(t, "google", h.messages.get(testUserID, "m1").Provider)
}

func TestRunSync_PassesFullBodyToClients(t *testing.T) {
	msg := applyMessage("m1")
	msg.Body += strings.Repeat("x", 5000)
	h := newHarness(msg)
	h.settings.LLMEnabled = func() bool { return true }
	h.classifier.result = &mlclient.Classification{IsJobRelated: true, Confidence: 0.1}
	h.llm.res = &ai.JobExtraction{}

	_, err := h.usecase().RunSync(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Equal(t, msg.Body, h.llm.lastIn.Body, "clients bound the excerpt themselves")
}

func TestShouldUseLLM(t *testing.T) {
	tests := []struct {
		name       string
		enabled    bool
		confidence float64
		company    string
		role       string
		want       bool
	}{
		{"disabled short-circuits everything", false, 0.1, "Unknown", "Unknown Role", false},
		{"confident and complete", true, 0.9, "Acme", "Engineer", false},
		{"confidence at threshold", true, 0.75, "Acme", "Engineer", false},
		{"low confidence", true, 0.5, "Acme", "Engineer", true},
		{"unknown company", true, 0.9, "Unknown", "Engineer", true},
		{"unknown role", true, 0.9, "Acme", "Unknown Role", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			enabled := tt.enabled
			h.settings.LLMEnabled = func() bool { return enabled }
			uc := h.usecase()
			st := &messageState{
				classification: &mlclient.Classification{Confidence: tt.confidence},
				company:        tt.company,
				role:           tt.role,
			}
			assert.Equal(t, tt.want, uc.shouldUseLLM(st))
		})
	}
}

func TestShouldUseLLM_NoExtractorConfigured(t *testing.T) {
	h := newHarness()
	h.settings.LLMEnabled = func() bool { return true }
	uc := h.usecase()
	uc.llm = nil
	assert.False(t, uc.shouldUseLLM(&messageState{company: "Unknown", role: "Unknown Role"}))
}

func TestRunSync_CancelledContextStillReleasesLock(t *testing.T) {
	h := newHarness(applyMessage("m1"), applyMessage("m2"))
	ctx, cancel := context.WithCancel(context.Background())
	h.source.searchFn = cancel

	res, err := h.usecase().RunSync(ctx, testUserID)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotNil(t, h.runs.get(res.RunID).Error)
	assert.False(t, h.users.syncing(testUserID))
}

func TestRunSync_CancelDuringClassifierFinishesMessage(t *testing.T) {
	h := newHarness(applyMessage("m1"), interviewMessage())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.classifier.onCall = cancel
	uc := h.usecase()

	res, err := uc.RunSync(ctx, testUserID)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.classifier.ctxErrs, "in-flight classification must not see the cancellation")
	assert.Equal(t, 1, res.Added)

	row := h.messages.get(testUserID, "m1")
	require.NotNil(t, row.Outcome)
	assert.Equal(t, domain.OutcomeAdded, *row.Outcome)
	assert.Nil(t, row.MLReason)
	assert.Nil(t, h.messages.get(testUserID, "m-interview"), "next message is left for a later run")
	assert.NotNil(t, h.runs.get(res.RunID).Error)
	assert.False(t, h.users.syncing(testUserID))

	h.classifier.onCall = nil
	again, err := uc.RunSync(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Added)
	assert.Equal(t, 1, again.Skipped)
	assert.Len(t, h.jobs.all(), 2)
}

func TestRunSync_CancelDuringLLMKeepsAuditClean(t *testing.T) {
	h := newHarness(applyMessage("m1"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.settings.LLMEnabled = func() bool { return true }
	h.classifier.result = &mlclient.Classification{IsJobRelated: true, EventType: "applied", Confidence: 0.2}
	h.classifier.onCall = cancel
	company := "Globex"
	h.llm.res = &ai.JobExtraction{IsJobRelated: true, Company: &company, Confidence: 0.9}

	res, err := h.usecase().RunSync(ctx, testUserID)
	require.NoError(t, err, "cancellation after the last message started does not fail the run")
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 1, h.llm.calls)

	row := h.messages.get(testUserID, "m1")
	assert.True(t, row.LLMUsed)
	assert.Nil(t, row.LLMError)
}
