package cli

import (
	"context"
	"time"

	api "jobtrack-backend/cmd/api"
	authRepo "jobtrack-backend/internal/auth/repository"
	jobRepo "jobtrack-backend/internal/job/repository"
	mailRepo "jobtrack-backend/internal/mail/repository"
	mailUsecase "jobtrack-backend/internal/mail/usecase"
	"jobtrack-backend/internal/notification"
	"jobtrack-backend/pkg/ai"
	"jobtrack-backend/pkg/config"
	"jobtrack-backend/pkg/database"
	"jobtrack-backend/pkg/extract"
	"jobtrack-backend/pkg/fcm"
	"jobtrack-backend/pkg/gmail"
	"jobtrack-backend/pkg/heuristic"
	"jobtrack-backend/pkg/mlclient"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// app holds the wired services shared by serve and sync
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	db       *gorm.DB
	redis    *redis.Client
	users    authRepo.UserRepository
	tokens   authRepo.FCMTokenRepository
	jobs     jobRepo.JobRepository
	gmail    *gmail.Service
	settings *api.RuntimeSettings
	sync     mailUsecase.SyncUsecase
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
		db:     db,
		users:  authRepo.NewUserRepository(db),
		tokens: authRepo.NewFCMTokenRepository(db),
		jobs:   jobRepo.NewGormJobRepository(db),
		gmail:  gmail.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GmailRateLimit, cfg.GmailTimeout),
		settings: api.NewRuntimeSettings(api.RuntimeConfig{
			EnableClassifier: cfg.EnableClassifier,
			EnableLLM:        cfg.EnableLLM,
			LLMThreshold:     cfg.LLMConfidenceThreshold,
			OllamaBaseURL:    cfg.OllamaBaseURL,
			OllamaModel:      cfg.OllamaModel,
		}),
	}

	rules := heuristic.DefaultRules()
	if cfg.HeuristicRulesPath != "" {
		if rules, err = heuristic.LoadRules(cfg.HeuristicRulesPath); err != nil {
			return nil, err
		}
		logger.Info("heuristic rules loaded", zap.String("path", cfg.HeuristicRulesPath))
	}

	var classifier mlclient.Classifier = mlclient.NewClient(cfg.MLServiceURL, cfg.MLModelVersion, cfg.MLTimeout)
	if cfg.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, classifier cache will fail open", zap.Error(err))
		}
		classifier = mlclient.NewCachedClassifier(classifier, a.redis, mlclient.DefaultCacheTTL, logger.Named("classifier-cache"))
	}

	llm, err := ai.NewJobExtractor(ctx, ai.Config{
		Provider:         ai.ProviderType(cfg.AIProvider),
		GeminiAPIKey:     cfg.GeminiAPIKey,
		GeminiModel:      cfg.GeminiModel,
		GetOllamaBaseURL: a.settings.OllamaBaseURL,
		GetOllamaModel:   a.settings.OllamaModel,
	}, logger.Named("llm"))
	if err != nil {
		logger.Warn("LLM extractor unavailable, fallback stage disabled", zap.Error(err))
		llm = nil
	}

	var observers []mailUsecase.RunObserver
	if cfg.FirebaseCredentials != "" {
		client, err := fcm.NewClient(ctx, cfg.FirebaseCredentials, logger)
		if err != nil {
			logger.Warn("FCM unavailable, run notices disabled", zap.Error(err))
		} else {
			observers = append(observers, notification.NewRunNotifier(client, a.tokens, logger))
		}
	}

	settings := mailUsecase.DefaultSettings()
	settings.ClassifierEnabled = a.settings.ClassifierEnabled
	settings.LLMEnabled = a.settings.LLMEnabled
	settings.LLMThreshold = a.settings.LLMThreshold
	settings.LLMModel = a.settings.OllamaModel
	settings.DefaultModelVersion = cfg.MLModelVersion
	settings.LLMTimeout = cfg.LLMTimeout
	settings.FullWindow = days(cfg.SyncWindowDays)
	settings.FullCap = cfg.SyncMaxResults
	settings.LightWindow = days(cfg.LightSyncWindowDays)
	settings.LightCap = cfg.LightSyncMaxResults

	a.sync = mailUsecase.NewSyncUsecase(mailUsecase.SyncDeps{
		Users:      a.users,
		Runs:       mailRepo.NewSyncRunRepository(db),
		Messages:   mailRepo.NewIngestedMessageRepository(db),
		Jobs:       a.jobs,
		Sources:    mailUsecase.NewSourceProvider(a.gmail, a.users, logger),
		Filter:     heuristic.NewFilter(rules),
		Extractor:  extract.New(rules.ATSDomains),
		Classifier: classifier,
		LLM:        llm,
		Settings:   settings,
		Observers:  observers,
		Logger:     logger,
	})
	return a, nil
}

func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("redis close failed", zap.Error(err))
		}
	}
	if sqlDB, err := a.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			a.logger.Warn("database close failed", zap.Error(err))
		}
	}
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}
