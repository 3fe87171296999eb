package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	authdomain "jobtrack-backend/internal/auth/domain"
	"jobtrack-backend/internal/mail/domain"
	"jobtrack-backend/internal/mail/repository"
	"jobtrack-backend/pkg/ai"
	"jobtrack-backend/pkg/extract"
	"jobtrack-backend/pkg/heuristic"
	"jobtrack-backend/pkg/metrics"
	"jobtrack-backend/pkg/mlclient"

	"go.uber.org/zap"
)

// finalizeTimeout bounds lock release and run close, which use a context
// detached from the caller.
const finalizeTimeout = 10 * time.Second

// SyncDeps wires the orchestrator. Classifier and LLM may be nil; the
// corresponding stages are then skipped regardless of settings.
type SyncDeps struct {
	Users      UserStore
	Runs       repository.SyncRunRepository
	Messages   repository.IngestedMessageRepository
	Jobs       JobStore
	Sources    SourceProvider
	Filter     *heuristic.Filter
	Extractor  *extract.Extractor
	Classifier mlclient.Classifier
	LLM        ai.JobExtractor
	Settings   Settings
	Observers  []RunObserver
	Logger     *zap.Logger
}

type syncUsecase struct {
	users      UserStore
	runs       repository.SyncRunRepository
	messages   repository.IngestedMessageRepository
	jobs       JobStore
	sources    SourceProvider
	filter     *heuristic.Filter
	extractor  *extract.Extractor
	classifier mlclient.Classifier
	llm        ai.JobExtractor
	settings   Settings
	observers  []RunObserver
	logger     *zap.Logger
	now        func() time.Time
	stages     []stage
}

func NewSyncUsecase(deps SyncDeps) SyncUsecase {
	return newSyncUsecase(deps)
}

func newSyncUsecase(deps SyncDeps) *syncUsecase {
	u := &syncUsecase{
		users:      deps.Users,
		runs:       deps.Runs,
		messages:   deps.Messages,
		jobs:       deps.Jobs,
		sources:    deps.Sources,
		filter:     deps.Filter,
		extractor:  deps.Extractor,
		classifier: deps.Classifier,
		llm:        deps.LLM,
		settings:   deps.Settings.withDefaults(),
		observers:  deps.Observers,
		logger:     deps.Logger,
		now:        time.Now,
	}
	if u.filter == nil {
		u.filter = heuristic.NewFilter(heuristic.DefaultRules())
	}
	if u.extractor == nil {
		u.extractor = extract.New(nil)
	}
	if u.logger == nil {
		u.logger = zap.NewNop()
	}
	u.logger = u.logger.Named("sync")
	u.stages = []stage{
		u.insertStage,
		u.heuristicStage,
		u.classifierStage,
		u.extractStage,
		u.llmStage,
		u.unknownGuardStage,
		u.jobStage,
	}
	return u
}

func (u *syncUsecase) RunSync(ctx context.Context, userID string) (result *domain.SyncResult, err error) {
	log := u.logger.With(zap.String("user_id", userID))
	start := u.now()
	defer func() {
		metrics.RecordSyncRun(string(domain.Classify(err)))
	}()

	acquired, err := u.users.AcquireSyncLock(ctx, userID)
	if err != nil {
		return nil, &domain.StoreError{Op: "acquire sync lock", Err: err}
	}
	if !acquired {
		user, ferr := u.users.FindByID(userID)
		if ferr == nil && user == nil {
			return nil, domain.ErrUserNotFound
		}
		log.Info("sync already running, rejecting")
		return nil, domain.ErrSyncInProgress
	}
	defer func() {
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
		defer cancel()
		if rerr := u.users.ReleaseSyncLock(relCtx, userID); rerr != nil {
			log.Error("failed to release sync lock", zap.Error(rerr))
		}
	}()

	user, err := u.users.FindByID(userID)
	if err != nil {
		return nil, &domain.StoreError{Op: "find user", Err: err}
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}

	provider := user.Provider
	if provider == "" {
		provider = authdomain.ProviderGoogle
	}
	run := &domain.SyncRun{UserID: userID, Provider: provider, StartedAt: start}
	if err := u.runs.Create(ctx, run); err != nil {
		return nil, &domain.StoreError{Op: "create sync run", Err: err}
	}
	result = &domain.SyncResult{RunID: run.ID, Provider: provider}
	log = log.With(zap.String("run_id", run.ID))
	log.Info("sync started", zap.Bool("classifier", u.classifierOn()))

	runErr := u.execute(ctx, user, result, log)

	finCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()
	finished := u.now()
	metrics.RecordSyncDuration(provider, finished.Sub(start))

	if runErr != nil {
		if ferr := u.runs.Fail(finCtx, run.ID, finished, result.Added, result.Skipped, runErr.Error()); ferr != nil {
			log.Error("failed to record run failure", zap.Error(ferr))
		}
		log.Warn("sync failed",
			zap.Error(runErr),
			zap.Int("added", result.Added),
			zap.Int("skipped", result.Skipped))
		return result, runErr
	}

	if err := u.runs.Complete(finCtx, run.ID, finished, result.Added, result.Skipped); err != nil {
		return result, &domain.StoreError{Op: "complete sync run", Err: err}
	}
	if err := u.users.TouchLastSync(finCtx, userID, finished); err != nil {
		return result, &domain.StoreError{Op: "touch last sync", Err: err}
	}

	log.Info("sync completed",
		zap.Int("added", result.Added),
		zap.Int("skipped", result.Skipped),
		zap.Duration("took", finished.Sub(start)))

	for _, o := range u.observers {
		o.OnRunCompleted(finCtx, userID, result)
	}
	return result, nil
}

// execute is the part of a run whose failure is recorded on the run row.
func (u *syncUsecase) execute(ctx context.Context, user *authdomain.User, result *domain.SyncResult, log *zap.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("sync panicked", zap.Any("panic", r), zap.Stack("stack"))
			err = fmt.Errorf("internal error: %v", r)
		}
	}()

	if !user.HasMailCredential() {
		return domain.ErrCredentialMissing
	}
	source, err := u.sources.SourceFor(ctx, user)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := source.Close(); cerr != nil {
			log.Debug("mail source close failed", zap.Error(cerr))
		}
	}()

	query := u.searchQuery()
	searchStart := time.Now()
	refs, err := source.Search(ctx, query)
	metrics.RecordExternalCall("mail_search", err, time.Since(searchStart))
	if err != nil {
		var mse *domain.MailSourceError
		if !errors.As(err, &mse) {
			err = &domain.MailSourceError{Op: "list", Err: err}
		}
		return err
	}
	log.Info("candidate messages listed", zap.Int("count", len(refs)), zap.Int("cap", query.Cap))

	// A message in flight runs to its terminal state on a detached context,
	// bounded by the client timeouts. Cancellation stops the run between
	// messages so no row is left with a cancellation recorded as its outcome.
	msgCtx := context.WithoutCancel(ctx)
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return err
		}
		outcome, err := u.processMessage(msgCtx, user.ID, source, ref, log)
		if err != nil {
			return err
		}
		metrics.RecordMessageOutcome(outcome)
		if outcome == domain.OutcomeAdded {
			result.Added++
		} else {
			result.Skipped++
		}
	}
	return nil
}

func (u *syncUsecase) classifierOn() bool {
	return u.classifier != nil && u.settings.ClassifierEnabled()
}

func (u *syncUsecase) llmOn() bool {
	return u.llm != nil && u.settings.LLMEnabled()
}

// searchQuery picks the full or lightweight candidate query. Without the
// classifier the pipeline only trusts explicit application confirmations.
func (u *syncUsecase) searchQuery() domain.SearchQuery {
	if u.classifierOn() {
		return domain.SearchQuery{
			Terms:  domain.FullSearchTerms,
			Window: u.settings.FullWindow,
			Cap:    u.settings.FullCap,
		}
	}
	return domain.SearchQuery{
		Terms:  domain.LightSearchTerms,
		Window: u.settings.LightWindow,
		Cap:    u.settings.LightCap,
	}
}

func (u *syncUsecase) ListRuns(ctx context.Context, userID string, limit int) ([]*domain.SyncRun, error) {
	return u.runs.ListByUser(ctx, userID, limit)
}

func (u *syncUsecase) ListMessages(ctx context.Context, userID string, limit int) ([]*domain.IngestedMessage, error) {
	return u.messages.ListByUser(ctx, userID, limit)
}
