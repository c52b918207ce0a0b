// Package config loads the application configuration from an optional yaml
// file and the environment.
package config

import (
	"errors"
	"filtersync/pkg/serrors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Supported providers.
const (
	ProviderCloudflare = "cloudflare"
	ProviderNextDNS    = "nextdns"
)

// Config represents the application configuration structure.
// It contains the provider credentials, the list sources, request pacing,
// the periodic sync schedule and the status HTTP server settings.
type Config struct {
	// Environment specifies the current running environment (development, production, etc.)
	Environment string `env:"ENVIRONMENT" env-default:"development" yaml:"environment"`
	// LogLevel overrides the level implied by Environment when set
	LogLevel string `env:"LOG_LEVEL" yaml:"logLevel"`

	// Provider contains the DNS filtering provider settings
	Provider struct {
		// Name selects the provider: cloudflare or nextdns (case-insensitive)
		Name string `env:"DNS" yaml:"name"`
		// ClientID is the Cloudflare account ID or the NextDNS profile ID
		ClientID string `env:"CLIENT_ID" yaml:"clientId"`
		// AuthSecret is the Cloudflare API token or the NextDNS API key
		AuthSecret string `env:"AUTH_SECRET" yaml:"authSecret"`
		// BaseURL overrides the provider API root
		BaseURL string `env:"PROVIDER_BASE_URL" yaml:"baseUrl"`
		// RequestTimeout bounds a single provider API call
		RequestTimeout time.Duration `env:"PROVIDER_REQUEST_TIMEOUT" env-default:"30s" yaml:"requestTimeout"`
	} `yaml:"provider"`

	// Gateway contains settings used by gateway providers only
	Gateway struct {
		// ListCap is the maximum number of domains per list
		ListCap int `env:"GATEWAY_LIST_CAP" env-default:"1000" yaml:"listCap"`
		// BlockListPrefix names the managed block lists
		BlockListPrefix string `env:"GATEWAY_BLOCK_LIST_PREFIX" env-default:"Blocked websites by script" yaml:"blockListPrefix"` //nolint: lll
		// OverrideListPrefix names the managed override lists
		OverrideListPrefix string `env:"GATEWAY_OVERRIDE_LIST_PREFIX" env-default:"Override websites by script" yaml:"overrideListPrefix"` //nolint: lll
		// RulePrefix names the managed rules
		RulePrefix string `env:"GATEWAY_RULE_PREFIX" env-default:"Rules set by script" yaml:"rulePrefix"`
	} `yaml:"gateway"`

	// Sources contains the list sources, each a comma-separated list of values.
	// An empty value means the kind is not configured.
	Sources struct {
		// Block holds hosts-file URLs of domains to block
		Block string `env:"BLOCK" yaml:"block"`
		// Redirect holds URLs of "ip hostname" override lists
		Redirect string `env:"REDIRECT" yaml:"redirect"`
		// Exclude holds domains that must never be blocked
		Exclude string `env:"EXCLUDE" yaml:"exclude"`
		// FetchTimeout bounds a single source download
		FetchTimeout time.Duration `env:"SOURCE_FETCH_TIMEOUT" env-default:"1m" yaml:"fetchTimeout"`
		// UserAgent is sent with source requests
		UserAgent string `env:"SOURCE_USER_AGENT" env-default:"filtersync/1.0" yaml:"userAgent"`
	} `yaml:"sources"`

	// RateLimit contains the request pacing of profile providers
	RateLimit struct {
		// MaxRequestsPerSecond paces requests on the client side, 0 disables pacing
		MaxRequestsPerSecond float64 `env:"MAX_REQUESTS_PER_SECOND" env-default:"0" yaml:"maxRequestsPerSecond"`
		// Burst is the number of requests allowed back to back when pacing
		Burst int `env:"RATE_LIMIT_BURST" env-default:"1" yaml:"burst"`
		// MaxRequestsPerMinute caps requests in any minute, 0 disables the cap
		MaxRequestsPerMinute int `env:"RATE_LIMIT_PER_MINUTE" env-default:"0" yaml:"maxRequestsPerMinute"`
		// Backoff is the cool-down after the provider throttles
		Backoff time.Duration `env:"RATE_LIMIT_BACKOFF" env-default:"60s" yaml:"backoff"`
	} `yaml:"rateLimit"`

	// Sync contains the schedule of the serve command
	Sync struct {
		// Interval is the delay between the end of a successful run and the start of the next
		Interval time.Duration `env:"SYNC_INTERVAL" env-default:"6h" yaml:"interval"`
		// MinBackoff is the delay after the first failed run
		MinBackoff time.Duration `env:"SYNC_MIN_BACKOFF" env-default:"1m" yaml:"minBackoff"`
		// MaxBackoff caps the delay after repeated failures
		MaxBackoff time.Duration `env:"SYNC_MAX_BACKOFF" env-default:"1h" yaml:"maxBackoff"`
	} `yaml:"sync"`

	// HTTP contains the status server configuration of the serve command
	HTTP struct {
		// Addr is the address and port the HTTP server will listen on
		Addr string `env:"HTTP_ADDR" env-default:":8080" yaml:"addr"`
		// ReadTimeout is the maximum duration for reading the entire request, including the body
		ReadTimeout time.Duration `env:"HTTP_READ_TIMEOUT" env-default:"1m" yaml:"readTimeout"`
		// ReadHeaderTimeout is the amount of time allowed to read request headers
		ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" env-default:"10s" yaml:"readHeaderTimeout"`
		// WriteTimeout is the maximum duration before timing out writes of the response
		WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" env-default:"2m" yaml:"writeTimeout"`
		// IdleTimeout is the maximum amount of time to wait for the next request when keep-alives are enabled
		IdleTimeout time.Duration `env:"HTTP_IDLE_TIMEOUT" env-default:"2m" yaml:"idleTimeout"`
		// MaxHeaderBytes controls the maximum number of bytes the server will read parsing the request header
		MaxHeaderBytes int `env:"HTTP_MAX_HEADER_BYTES" env-default:"0" yaml:"maxHeaderBytes"`
		// MetricsPath defines the URL path where metrics are exposed
		MetricsPath string `env:"HTTP_METRICS_PATH" env-default:"/metrics" yaml:"metricsPath"`
	} `yaml:"http"`

	// GracefulShutdownTimeout is the maximum duration to wait for ongoing requests to complete during shutdown
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_TIMEOUT" env-default:"10s" yaml:"gracefulShutdownTimeout"` //nolint: lll
}

// Load reads the yaml file at configPath when it exists and then applies the
// environment. Without a file the configuration comes from the environment
// alone.
func Load(configPath string) (*Config, error) {
	var cfg Config

	if configPath != "" {
		_, err := os.Stat(configPath)
		switch {
		case err == nil:
			if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
				return nil, fmt.Errorf("could not read config: %w", err)
			}

			return &cfg, nil
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("could not stat config: %w", err)
		}
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("could not read environment: %w", err)
	}

	return &cfg, nil
}

// ProviderName returns the normalized provider name.
func (c *Config) ProviderName() string {
	return strings.ToLower(strings.TrimSpace(c.Provider.Name))
}

// BlockURLs returns the configured block sources in priority order.
func (c *Config) BlockURLs() []string { return ParseList(c.Sources.Block) }

// RedirectURLs returns the configured override sources in priority order.
func (c *Config) RedirectURLs() []string { return ParseList(c.Sources.Redirect) }

// ExcludedDomains returns the raw exclusion values.
func (c *Config) ExcludedDomains() []string { return ParseList(c.Sources.Exclude) }

// Validate checks the settings every provider run needs.
func (c *Config) Validate() error {
	switch c.ProviderName() {
	case ProviderCloudflare, ProviderNextDNS:
	case "":
		return serrors.With(serrors.ErrBadRequest, "DNS is not set, use %q or %q", ProviderCloudflare, ProviderNextDNS)
	default:
		return serrors.With(serrors.ErrBadRequest, "unsupported DNS provider %q", c.Provider.Name)
	}
	if strings.TrimSpace(c.Provider.ClientID) == "" {
		return serrors.With(serrors.ErrBadRequest, "CLIENT_ID is not set")
	}
	if strings.TrimSpace(c.Provider.AuthSecret) == "" {
		return serrors.With(serrors.ErrBadRequest, "AUTH_SECRET is not set")
	}
	if c.RateLimit.MaxRequestsPerSecond < 0 {
		return serrors.With(serrors.ErrBadRequest, "MAX_REQUESTS_PER_SECOND must not be negative")
	}
	if c.RateLimit.MaxRequestsPerMinute < 0 {
		return serrors.With(serrors.ErrBadRequest, "RATE_LIMIT_PER_MINUTE must not be negative")
	}

	return nil
}

// ValidateSchedule checks the settings of the periodic sync loop.
func (c *Config) ValidateSchedule() error {
	switch {
	case c.Sync.Interval <= 0:
		return serrors.With(serrors.ErrBadRequest, "SYNC_INTERVAL must be positive, got %s", c.Sync.Interval)
	case c.Sync.MinBackoff <= 0:
		return serrors.With(serrors.ErrBadRequest, "SYNC_MIN_BACKOFF must be positive, got %s", c.Sync.MinBackoff)
	case c.Sync.MaxBackoff < c.Sync.MinBackoff:
		return serrors.With(serrors.ErrBadRequest, "SYNC_MAX_BACKOFF (%s) must not be below SYNC_MIN_BACKOFF (%s)",
			c.Sync.MaxBackoff, c.Sync.MinBackoff)
	}

	return nil
}

// ParseList splits a comma-separated value, trimming entries and dropping
// empty ones.
func ParseList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}

	return out
}
