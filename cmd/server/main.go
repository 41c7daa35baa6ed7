package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/barscout/barscout-server/internal/app"
	"github.com/barscout/barscout-server/internal/config"
	"github.com/barscout/barscout-server/internal/log"
	"github.com/barscout/barscout-server/internal/store"
	"github.com/barscout/barscout-server/internal/store/sqlite"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		overrides  config.Config
	)

	cmd := &cobra.Command{
		Use:           "barscout-server",
		Short:         "Bar popularity and presence server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bootLogger := log.New(overrides.LogLevel)

			cfg, resolvedPath, err := config.Load(bootLogger, configPath)
			if err != nil {
				bootLogger.Error().Err(err).Str("config_path", resolvedPath).Msg("failed to load config")
				return err
			}
			cfg.UpdateFrom(overrides)

			logger := log.New(cfg.LogLevel)
			logger.Info().Str("config_path", resolvedPath).Msg("configuration loaded")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(&cfg, logger)
			if err != nil {
				logger.Error().Err(err).Msg("failed to initialize application")
				return err
			}

			if err := application.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("server exited with error")
				return err
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default $BARSCOUT_CONFIG_DEFAULT_PATH or ./config.yaml)")
	cmd.AddCommand(newRoleCmd(&configPath))

	flags := cmd.Flags()
	flags.StringVar(&overrides.Addr, "addr", "", "HTTP listen address")
	flags.StringVar(&overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&overrides.DatabasePath, "db", "", "SQLite database path")
	flags.DurationVar(&overrides.ReadHeaderTimeout, "read-header-timeout", 0, "HTTP read header timeout")
	flags.DurationVar(&overrides.ShutdownTimeout, "shutdown-timeout", 0, "graceful shutdown timeout")
	flags.BoolVar(&overrides.JWTRequired, "jwt-required", false, "reject realtime sessions without a token")
	flags.BoolVar(&overrides.VerifyProximity, "verify-proximity", false, "check reported venues against reported positions")

	return cmd
}

// newRoleCmd changes a user's role directly in the database.
func newRoleCmd(configPath *string) *cobra.Command {
	var demote bool

	cmd := &cobra.Command{
		Use:          "promote <username>",
		Short:        "Grant a user the admin role (or remove it with --demote)",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := log.New("info")

			cfg, _, err := config.Load(logger, *configPath)
			if err != nil {
				return err
			}
			st, err := sqlite.New(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer st.Close()

			role := store.RoleAdmin
			if demote {
				role = store.RoleUser
			}
			if err := st.SetUserRole(cmd.Context(), args[0], role); err != nil {
				return err
			}
			logger.Info().Str("username", args[0]).Str("role", string(role)).Msg("role updated, takes effect on next login")
			return nil
		},
	}
	cmd.Flags().BoolVar(&demote, "demote", false, "set the role back to user")
	return cmd
}
