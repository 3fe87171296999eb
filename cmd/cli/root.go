// Package cli wires the jobtrack services behind cobra commands.
package cli

import (
	"jobtrack-backend/pkg/config"
	"jobtrack-backend/pkg/logger"
	"jobtrack-backend/pkg/secret"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Version is set at build time.
var Version = "dev"

type rootOptions struct {
	v      *viper.Viper
	cfg    *config.Config
	logger *zap.Logger
}

// NewRootCmd builds the command tree. Flags override environment values.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:           "jobtrack",
		Short:         "Job application tracker fed from your mailbox",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			cfg, err := config.Load(opts.v)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			opts.logger = logger.NewLogger(cfg.LogLevel)
			secret.SetKey(cfg.CredentialsKey)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("database-url", "", "postgres connection string")
	_ = opts.v.BindPFlag("LOG_LEVEL", flags.Lookup("log-level"))
	_ = opts.v.BindPFlag("DATABASE_URL", flags.Lookup("database-url"))

	rootCmd.AddCommand(
		newServeCmd(opts),
		newSyncCmd(opts),
		newMigrateCmd(opts),
	)
	return rootCmd
}
