package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"jobtrack-backend/internal/mail/dto"
	"jobtrack-backend/internal/mail/scheduler"

	"github.com/spf13/cobra"
)

func newSyncCmd(opts *rootOptions) *cobra.Command {
	var userID string
	var all bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync for a user, or for every user with --all",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" && !all {
				return errors.New("either --user or --all is required")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, opts.cfg, opts.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if all {
				scheduler.NewSyncScheduler(a.users, a.sync, opts.cfg.SyncInterval, opts.logger).RunOnce(ctx)
				return nil
			}

			result, runErr := a.sync.RunSync(ctx, userID)
			out, err := json.MarshalIndent(dto.NewSyncResponse(result, runErr), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return runErr
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id to sync")
	cmd.Flags().BoolVar(&all, "all", false, "sync every user with a stored credential")
	return cmd
}
