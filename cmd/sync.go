package main

import (
	"filtersync/internal/config"
	"filtersync/pkg/logger"
	"filtersync/pkg/metrics"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func syncCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Runs one reconciliation against the configured provider",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			r, err := newRunner(cfg, metrics.Noop())
			if err != nil {
				return err
			}

			report, err := r.Run(ctx)
			logger.Info(ctx, "sync finished",
				zap.Int("listsRemoved", report.ListsRemoved),
				zap.Int("listsCreated", report.ListsCreated),
				zap.Int("rulesRemoved", report.RulesRemoved),
				zap.Int("rulesCreated", report.RulesCreated),
				zap.Int("deniesCreated", report.DeniesCreated),
				zap.Int("deniesRemoved", report.DeniesRemoved),
				zap.Int("rewritesCreated", report.RewritesCreated),
				zap.Int("rewritesRemoved", report.RewritesRemoved),
				zap.Int("failures", report.Failures),
			)

			return err
		},
	}
}

