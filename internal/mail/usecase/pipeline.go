package usecase

import (
	"context"
	"encoding/json"
	"time"

	jobdomain "jobtrack-backend/internal/job/domain"
	"jobtrack-backend/internal/mail/domain"
	"jobtrack-backend/pkg/ai"
	"jobtrack-backend/pkg/extract"
	"jobtrack-backend/pkg/metrics"
	"jobtrack-backend/pkg/mlclient"

	"go.uber.org/zap"
)

// stage advances a message through one step of the cascade. done=true ends
// the message with st.outcome; a non-nil error aborts the whole run.
type stage func(ctx context.Context, st *messageState) (done bool, err error)

type messageState struct {
	userID   string
	provider string
	msg      *domain.MailMessage
	log      *zap.Logger

	verdictScore   int
	classification *mlclient.Classification

	company    string
	role       string
	status     jobdomain.Status
	source     jobdomain.Source
	confidence *float64

	outcome string
}

func (u *syncUsecase) processMessage(ctx context.Context, userID string, source MailSource, ref domain.MessageRef, log *zap.Logger) (string, error) {
	log = log.With(zap.String("message_id", ref.ID))

	fetchStart := time.Now()
	msg, err := source.Fetch(ctx, ref.ID)
	metrics.RecordExternalCall("mail_fetch", err, time.Since(fetchStart))
	if err != nil {
		log.Warn("message fetch failed, skipping", zap.Error(err))
		return domain.OutcomeFailed, nil
	}
	if msg.ThreadID == "" {
		msg.ThreadID = ref.ThreadID
	}

	st := &messageState{userID: userID, provider: source.Provider(), msg: msg, log: log}
	for _, run := range u.stages {
		done, err := run(ctx, st)
		if err != nil {
			return "", err
		}
		if done {
			break
		}
	}

	if st.outcome != domain.OutcomeDuplicate {
		if err := u.annotate(ctx, st, domain.MessageAnnotation{Outcome: strPtr(st.outcome)}); err != nil {
			return "", err
		}
	}
	log.Debug("message processed", zap.String("outcome", st.outcome))
	return st.outcome, nil
}

func (u *syncUsecase) annotate(ctx context.Context, st *messageState, a domain.MessageAnnotation) error {
	if err := u.messages.Annotate(ctx, st.userID, st.msg.ID, a); err != nil {
		return &domain.StoreError{Op: "annotate message", Err: err}
	}
	return nil
}

func (u *syncUsecase) insertStage(ctx context.Context, st *messageState) (bool, error) {
	m := st.msg
	row := &domain.IngestedMessage{
		UserID:            st.userID,
		ProviderMessageID: m.ID,
		Provider:          st.provider,
		ThreadID:          nonEmpty(m.ThreadID),
		Subject:           nonEmpty(m.Subject),
		FromEmail:         nonEmpty(m.From),
		ReceivedAt:        m.ReceivedAt,
	}
	inserted, err := u.messages.InsertIfAbsent(ctx, row)
	if err != nil {
		return true, &domain.StoreError{Op: "insert message", Err: err}
	}
	if !inserted {
		st.outcome = domain.OutcomeDuplicate
		return true, nil
	}
	return false, nil
}

func (u *syncUsecase) heuristicStage(ctx context.Context, st *messageState) (bool, error) {
	v := u.filter.Score(st.msg.Subject, st.msg.From, st.msg.Body)
	st.verdictScore = v.Score
	if err := u.annotate(ctx, st, domain.MessageAnnotation{
		HeuristicPassed: &v.Passed,
		HeuristicScore:  &v.Score,
	}); err != nil {
		return true, err
	}
	if !v.Passed {
		st.outcome = domain.OutcomeHeuristicRejected
		return true, nil
	}
	return false, nil
}

func (u *syncUsecase) classifierStage(ctx context.Context, st *messageState) (bool, error) {
	if !u.classifierOn() {
		return false, nil
	}

	start := time.Now()
	c, err := u.classifier.Classify(ctx, mlclient.Input{
		Subject: st.msg.Subject,
		From:    st.msg.From,
		Body:    st.msg.Body,
	})
	metrics.RecordExternalCall("classifier", err, time.Since(start))
	if err != nil {
		cerr := &domain.ClassifierError{Err: err}
		st.log.Warn("classifier failed, skipping message", zap.Error(err))
		if aerr := u.annotate(ctx, st, domain.MessageAnnotation{
			MLReason:       strPtr(cerr.Error()),
			MLModelVersion: nonEmpty(u.settings.DefaultModelVersion),
		}); aerr != nil {
			return true, aerr
		}
		st.outcome = domain.OutcomeClassifierError
		return true, nil
	}

	st.classification = c
	if err := u.annotate(ctx, st, domain.MessageAnnotation{
		MLEventType:    nonEmpty(c.EventType),
		MLConfidence:   &c.Confidence,
		MLReason:       nonEmpty(c.Reason),
		MLModelVersion: nonEmpty(c.ModelVersion),
	}); err != nil {
		return true, err
	}
	if !c.IsJobRelated {
		st.outcome = domain.OutcomeNotJobRelated
		return true, nil
	}
	return false, nil
}

func (u *syncUsecase) extractStage(_ context.Context, st *messageState) (bool, error) {
	st.company = u.extractor.Company(st.msg.Subject, st.msg.From, st.msg.Body)
	st.role = u.extractor.Role(st.msg.Subject, st.msg.Body)

	if c := st.classification; c != nil {
		st.status = jobdomain.StatusFromEventType(c.EventType)
		st.source = jobdomain.SourceML
		conf := c.Confidence
		st.confidence = &conf
	} else {
		st.status = jobdomain.StatusApplied
		st.source = jobdomain.SourceHeuristic
	}
	return false, nil
}

// shouldUseLLM reports whether the LLM fallback runs for this message.
// Without a classifier verdict the confidence counts as zero.
func (u *syncUsecase) shouldUseLLM(st *messageState) bool {
	if !u.llmOn() {
		return false
	}
	confidence := 0.0
	if st.classification != nil {
		confidence = st.classification.Confidence
	}
	return confidence < u.settings.LLMThreshold() ||
		extract.IsUnknownCompany(st.company) ||
		extract.IsUnknownRole(st.role)
}

func (u *syncUsecase) llmStage(ctx context.Context, st *messageState) (bool, error) {
	if !u.shouldUseLLM(st) {
		return false, nil
	}

	callCtx := ctx
	if u.settings.LLMTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, u.settings.LLMTimeout)
		defer cancel()
	}

	used := true
	start := time.Now()
	res, err := u.llm.ExtractJobFields(callCtx, ai.Input{
		Subject: st.msg.Subject,
		From:    st.msg.From,
		Body:    st.msg.Body,
	})
	metrics.RecordExternalCall("llm", err, time.Since(start))
	if err != nil {
		lerr := &domain.LLMError{Err: err}
		st.log.Warn("llm extraction failed, keeping deterministic fields", zap.Error(err))
		return false, u.annotate(ctx, st, domain.MessageAnnotation{
			LLMUsed:  &used,
			LLMError: strPtr(lerr.Error()),
		})
	}

	model := res.Model
	if model == "" {
		model = u.settings.LLMModel()
	}
	raw, _ := json.Marshal(res)
	if err := u.annotate(ctx, st, domain.MessageAnnotation{
		LLMUsed:       &used,
		LLMExtracted:  domain.RawJSON(raw),
		LLMModel:      nonEmpty(model),
		LLMConfidence: &res.Confidence,
	}); err != nil {
		return true, err
	}

	if !res.IsJobRelated {
		return false, nil
	}
	if res.Company != nil {
		if c := extract.CleanCompany(*res.Company); !extract.IsUnknownCompany(c) {
			st.company = c
		}
	}
	if res.Role != nil {
		if r := extract.CleanRole(*res.Role); !extract.IsUnknownRole(r) {
			st.role = r
		}
	}
	if res.Status != nil {
		if s, ok := jobdomain.ParseStatus(*res.Status); ok {
			st.status = s
		}
	}
	st.source = jobdomain.SourceLLM
	conf := res.Confidence
	st.confidence = &conf
	return false, nil
}

// unknownGuardStage never lets a job through with neither company nor role.
func (u *syncUsecase) unknownGuardStage(_ context.Context, st *messageState) (bool, error) {
	if extract.IsUnknownCompany(st.company) && extract.IsUnknownRole(st.role) {
		st.outcome = domain.OutcomeUnknownFields
		return true, nil
	}
	return false, nil
}

func (u *syncUsecase) jobStage(ctx context.Context, st *messageState) (bool, error) {
	msgID := st.msg.ID
	inserted, err := u.jobs.InsertIfAbsent(ctx, &jobdomain.JobApplication{
		UserID:            st.userID,
		Company:           st.company,
		Role:              st.role,
		AppliedDate:       jobdomain.AppliedDay(st.msg.ReceivedAt),
		Status:            st.status,
		Source:            st.source,
		Confidence:        st.confidence,
		ProviderMessageID: &msgID,
	})
	if err != nil {
		return true, &domain.StoreError{Op: "insert job", Err: err}
	}
	if !inserted {
		st.log.Debug("job already recorded for this day",
			zap.String("company", st.company),
			zap.String("role", st.role))
	}
	st.outcome = domain.OutcomeAdded
	return true, nil
}

func strPtr(s string) *string { return &s }

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
