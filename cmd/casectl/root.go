package main

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"casedesk/internal/app"
	"casedesk/internal/platform/config"
	"casedesk/internal/platform/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "casectl",
		Short: "Operate the casedesk maintenance case service",
		Long:  "casectl runs schema migrations, retention purges and diagnostics\nagainst the backends configured through the casedesk environment.",
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		SilenceUsage: true,
		Version:      version,
	}
	root.AddCommand(
		newMigrateCmd(),
		newPurgeCmd(),
		newNextNumberCmd(),
		newAuditTopicCmd(),
	)
	return root
}

// env loads configuration and a logger writing to the command's stderr.
func env(cmd *cobra.Command) (config.Server, *slog.Logger, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return config.Server{}, nil, err
	}
	return cfg, logger.NewWithWriter(cmd.ErrOrStderr(), cfg.LogLevel, "text"), nil
}

// openBackends connects with a private registry so repeated invocations in
// one process do not collide on metric registration.
func openBackends(ctx context.Context, cfg config.Server, log *slog.Logger) (*app.Backends, error) {
	return app.Open(ctx, cfg, log, prometheus.NewRegistry())
}
