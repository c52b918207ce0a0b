// Package main provides the CLI entrypoint of filtersync. It wires the
// subcommands (sync, serve, plan), loads configuration and initializes logging.
package main

import (
	"context"
	"flag"
	"filtersync/internal/config"
	"filtersync/internal/processor"
	"filtersync/internal/reconciler"
	"filtersync/internal/runner"
	"filtersync/internal/source"
	"filtersync/pkg/gateway/cloudflare"
	"filtersync/pkg/logger"
	"filtersync/pkg/metrics"
	"filtersync/pkg/profile/nextdns"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newSources maps the configured source values.
func newSources(cfg *config.Config) source.Sources {
	return source.Sources{
		Block:    cfg.BlockURLs(),
		Override: cfg.RedirectURLs(),
		Exclude:  cfg.ExcludedDomains(),
	}
}

// newLoader creates the source loader with its own HTTP client.
func newLoader(cfg *config.Config) *source.Loader {
	return source.NewLoader(source.NewHTTPFetcher(
		&http.Client{Timeout: cfg.Sources.FetchTimeout},
		cfg.Sources.UserAgent,
	))
}

// newReconciler builds the reconciler of the configured provider.
func newReconciler(cfg *config.Config, m *metrics.Metrics) (reconciler.Reconciler, error) {
	httpClient := &http.Client{Timeout: cfg.Provider.RequestTimeout}

	switch cfg.ProviderName() {
	case config.ProviderCloudflare:
		client := cloudflare.New(httpClient, cfg.Provider.ClientID, cfg.Provider.AuthSecret)
		if cfg.Provider.BaseURL != "" {
			client = cloudflare.NewWithBaseURL(httpClient, cfg.Provider.BaseURL, cfg.Provider.ClientID, cfg.Provider.AuthSecret)
		}

		return reconciler.NewGateway(client, reconciler.GatewayOptions{
			BlockListPrefix:    cfg.Gateway.BlockListPrefix,
			OverrideListPrefix: cfg.Gateway.OverrideListPrefix,
			RulePrefix:         cfg.Gateway.RulePrefix,
			ListCap:            cfg.Gateway.ListCap,
			Metrics:            m,
		}), nil
	case config.ProviderNextDNS:
		client := nextdns.New(httpClient, cfg.Provider.ClientID, cfg.Provider.AuthSecret)
		if cfg.Provider.BaseURL != "" {
			client = nextdns.NewWithBaseURL(httpClient, cfg.Provider.BaseURL, cfg.Provider.ClientID, cfg.Provider.AuthSecret)
		}
		proc := processor.New(processor.Options{
			Cooldown:          cfg.RateLimit.Backoff,
			RequestsPerSecond: cfg.RateLimit.MaxRequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
			RequestsPerMinute: cfg.RateLimit.MaxRequestsPerMinute,
			Metrics:           m,
		})

		return reconciler.NewProfile(client, proc, m), nil
	default:
		return nil, fmt.Errorf("unsupported DNS provider %q", cfg.Provider.Name)
	}
}

// newRunner validates cfg and wires a runner for the configured provider.
func newRunner(cfg *config.Config, m *metrics.Metrics) (*runner.Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	rec, err := newReconciler(cfg, m)
	if err != nil {
		return nil, err
	}

	return runner.New(cfg.ProviderName(), newLoader(cfg), rec, newSources(cfg), m), nil
}

// main sets up the root Cobra command, loads configuration and logging, and
// registers subcommands before executing the CLI.
func main() {
	rootCmd := &cobra.Command{
		Use:           "filtersync",
		Short:         "Synchronizes DNS filtering providers with public domain lists",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// there is no way to access flags before command execution in cobra.
	// configPath here is parsed using the standard flags package.
	// following line is just added to prevent errors when Cobra is parsing the flags.
	rootCmd.PersistentFlags().StringP("config", "c", "config.yml", "Config File Path")

	var configPath string
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.StringVar(&configPath, "c", "config.yml", "The config file path")
	fs.StringVar(&configPath, "config", "config.yml", "The config file path")
	_ = fs.Parse(configArgs(os.Args[1:]))

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal("could not load config: ", err)
	}

	if err := logger.Setup(cfg.Environment, cfg.LogLevel); err != nil {
		log.Fatal("could not setup logger: ", err)
	}

	ctx := context.Background()

	defer func() {
		if p := recover(); p != nil {
			logger.Error(ctx, "captured panic, exiting...", zap.Any("panic", p))
			_ = logger.Get(ctx).Sync()

			panic(p)
		}
	}()

	rootCmd.AddCommand(
		syncCommand(cfg),
		serveCommand(cfg),
		planCommand(cfg),
	)

	err = rootCmd.Execute()
	if err != nil {
		logger.Error(ctx, "command failed", zap.Error(err))
	}
	_ = logger.Get(ctx).Sync()
	if err != nil {
		os.Exit(1) //nolint: gocritic
	}
}

// configArgs keeps only the config flag and its value so the standard flag
// package does not stop at subcommand names or flags it does not know.
func configArgs(args []string) []string {
	var out []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		name, _, hasValue := strings.Cut(strings.TrimLeft(a, "-"), "=")
		if !strings.HasPrefix(a, "-") || (name != "c" && name != "config") {
			continue
		}
		out = append(out, a)
		if !hasValue && i+1 < len(args) {
			out = append(out, args[i+1])
			i++
		}
	}

	return out
}
