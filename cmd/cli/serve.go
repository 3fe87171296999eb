package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	api "jobtrack-backend/cmd/api"
	authDelivery "jobtrack-backend/internal/auth/delivery"
	authUsecase "jobtrack-backend/internal/auth/usecase"
	jobDelivery "jobtrack-backend/internal/job/delivery"
	jobUsecase "jobtrack-backend/internal/job/usecase"
	mailDelivery "jobtrack-backend/internal/mail/delivery"
	"jobtrack-backend/internal/mail/scheduler"
	"jobtrack-backend/internal/notification"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the autosync scheduler and the Gmail push listener",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}
	cmd.Flags().String("port", "8080", "HTTP listen port")
	cmd.Flags().Bool("no-scheduler", false, "disable periodic autosync")
	_ = opts.v.BindPFlag("PORT", cmd.Flags().Lookup("port"))
	_ = opts.v.BindPFlag("NO_SCHEDULER", cmd.Flags().Lookup("no-scheduler"))
	return cmd
}

func runServe(ctx context.Context, opts *rootOptions) error {
	cfg, logger := opts.cfg, opts.logger

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if !opts.v.GetBool("NO_SCHEDULER") {
		sched := scheduler.NewSyncScheduler(a.users, a.sync, cfg.SyncInterval, logger)
		if err := sched.Start(ctx); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			sched.Stop(stopCtx)
		}()
	}

	if cfg.GoogleProjectID != "" {
		startPushListener(ctx, a)
	} else {
		logger.Warn("GOOGLE_PROJECT_ID not configured, gmail push sync disabled")
	}

	authUc := authUsecase.NewAuthUsecase(a.users, a.tokens, cfg.JWTSecret, authUsecase.DialIMAP)
	handler := api.NewHandler(api.Routes{
		AuthUsecase: authUc,
		Auth:        authDelivery.NewAuthHandler(authUc),
		Sync:        mailDelivery.NewSyncHandler(a.sync),
		Jobs:        jobDelivery.NewJobHandler(jobUsecase.NewJobUsecase(a.jobs)),
		Settings:    a.settings,
	}, logger)

	return handler.Start(ctx, ":"+cfg.Port)
}

func startPushListener(ctx context.Context, a *app) {
	logger := a.logger
	client, err := notification.NewPubSubClient(ctx, a.cfg.GoogleProjectID, a.cfg.GoogleCredentials)
	if err != nil {
		logger.Error("gmail push sync disabled", zap.Error(err))
		return
	}

	go func() {
		notification.RegisterWatches(ctx, a.users, a.gmail, a.cfg.PubSubTopicPath(), logger)
	}()

	svc := notification.NewService(client, a.cfg.PubSubTopicName(), a.users, a.sync, logger)
	go func() {
		defer client.Close()
		if err := svc.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Error("gmail push listener stopped", zap.Error(err))
		}
	}()
}
