// Package api configures and exposes the status HTTP server of the serve
// command: run status, health, Prometheus metrics and pprof.
package api

import (
	"context"
	"filtersync/internal/config"
	"filtersync/internal/runner"
	"filtersync/pkg/controller"
	"filtersync/pkg/logger"
	"filtersync/pkg/serrors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// HealthPath answers 200 while the process is up.
	HealthPath = "/healthz"
	// StatusPath returns the outcome of the last run.
	StatusPath = "/status"
)

// Options holds configuration for the HTTP server. Zero durations fall back to
// the net/http defaults.
type Options struct {
	// Addr is the TCP address the server listens on, e.g. ":8080".
	Addr string
	// ReadTimeout is the maximum duration for reading the entire request, including the body.
	ReadTimeout time.Duration
	// ReadHeaderTimeout is the amount of time allowed to read request headers.
	ReadHeaderTimeout time.Duration
	// WriteTimeout is the maximum duration before timing out writes of the response.
	WriteTimeout time.Duration
	// IdleTimeout is the maximum amount of time to wait for the next request when keep-alives are enabled.
	IdleTimeout time.Duration
	// MaxHeaderBytes limits the size of the request header.
	MaxHeaderBytes int
	// MetricsPath is the HTTP path at which Prometheus metrics are served.
	MetricsPath string
}

// NewOptions maps the HTTP settings of cfg to Options.
func NewOptions(cfg *config.Config) Options {
	return Options{
		Addr:              cfg.HTTP.Addr,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
		MaxHeaderBytes:    cfg.HTTP.MaxHeaderBytes,
		MetricsPath:       cfg.HTTP.MetricsPath,
	}
}

// StatusSource reports the last finished run. *runner.Runner implements it.
type StatusSource interface {
	LastStatus() (runner.Status, bool)
}

// Deps are the collaborators of the server.
type Deps struct {
	Status StatusSource
	// Gatherer backs the metrics endpoint; nil uses the default registry.
	Gatherer prometheus.Gatherer
}

// NewServer returns a configured *http.Server. The server logs through the
// logger stored in ctx.
func NewServer(ctx context.Context, deps Deps, opts Options) *http.Server {
	mux := http.NewServeMux()

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	metricsPath := opts.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	mux.Handle(metricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	mux.HandleFunc(HealthPath, func(w http.ResponseWriter, _ *http.Request) {
		controller.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc(StatusPath, statusHandler(deps.Status))

	mux.Handle(controller.PprofPrefix, http.StripPrefix(
		controller.PprofPrefix[:len(controller.PprofPrefix)-1],
		controller.PprofMux(),
	))

	return &http.Server{
		Addr:              opts.Addr,
		Handler:           controller.WithLogger(mux, metricsPath, HealthPath),
		ReadTimeout:       opts.ReadTimeout,
		ReadHeaderTimeout: opts.ReadHeaderTimeout,
		WriteTimeout:      opts.WriteTimeout,
		IdleTimeout:       opts.IdleTimeout,
		MaxHeaderBytes:    opts.MaxHeaderBytes,
		ErrorLog:          slog.NewLogLogger(logger.Slog(ctx).Handler(), slog.LevelError),
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}
}

func statusHandler(src StatusSource) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		status, ok := src.LastStatus()
		if !ok {
			controller.WriteError(w, serrors.With(serrors.ErrNotFound, "no run finished yet"))

			return
		}

		code := http.StatusOK
		if status.Status != runner.StatusSuccess {
			code = http.StatusServiceUnavailable
		}
		controller.WriteJSON(w, code, status)
	}
}
