package main

import (
	"context"
	"errors"
	"filtersync/internal/api"
	"filtersync/internal/config"
	"filtersync/internal/runner"
	"filtersync/pkg/logger"
	"filtersync/pkg/metrics"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func setupServer(ctx context.Context, cfg *config.Config, status api.StatusSource) func(ctx context.Context) {
	server := api.NewServer(ctx, api.Deps{Status: status}, api.NewOptions(cfg))

	go func() {
		logger.Info(ctx, "starting webserver...", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				logger.Error(ctx, "could not start webserver", zap.Error(err))
			}
		}
	}()

	return func(ctx context.Context) {
		logger.Info(ctx, "stopping webserver...")
		if err := server.Shutdown(ctx); err != nil {
			logger.Error(ctx, "could not stop webserver", zap.Error(err))
		}
	}
}

func serveCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Reconciles periodically and serves status and metrics over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := cfg.ValidateSchedule(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			mp, err := metrics.NewProvider(prometheus.DefaultRegisterer)
			if err != nil {
				return err
			}
			defer func() {
				if err := mp.Shutdown(context.Background()); err != nil {
					logger.Warn(ctx, "could not stop meter provider", zap.Error(err))
				}
			}()
			m, err := metrics.New(mp)
			if err != nil {
				return fmt.Errorf("could not create metrics: %w", err)
			}

			r, err := newRunner(cfg, m)
			if err != nil {
				return err
			}

			stopWebserver := setupServer(ctx, cfg, r)

			err = r.Serve(ctx, runner.Schedule{
				Interval:   cfg.Sync.Interval,
				MinBackoff: cfg.Sync.MinBackoff,
				MaxBackoff: cfg.Sync.MaxBackoff,
			})

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GracefulShutdownTimeout)
			defer cancel()
			stopWebserver(shutdownCtx)

			return err
		},
	}
}
