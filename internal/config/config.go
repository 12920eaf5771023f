package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config holds all environment backed configuration for the sync pipeline.
type Config struct {
	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info" validate:"required"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console" validate:"oneof=console json"`

	// Providers
	ProviderConfigFile string `env:"PROVIDER_CONFIGS_FILE" envDefault:"config/providers.yml"`

	// Sources
	EnabledSources []string `env:"ENABLED_SOURCES" envSeparator:"," envDefault:"civitai,archive-feed"`
	CivitaiBaseURL string   `env:"CIVITAI_BASE_URL" envDefault:"https://civitai.com" validate:"url"`
	ArchiveFeedURL string   `env:"ARCHIVE_FEED_URL" validate:"omitempty,url"`
	ProxyBaseURL   string   `env:"PROXY_BASE_URL" validate:"omitempty,url"`

	// Content safety
	ContentFilterEnabled  bool `env:"CONTENT_FILTER_ENABLED" envDefault:"true"`
	ContentFilterAssisted bool `env:"CONTENT_FILTER_ASSISTED" envDefault:"false"`

	// Translation
	TranslationEnabled bool `env:"TRANSLATION_ENABLED" envDefault:"true"`

	// Sync
	SyncIntervalMinutes int           `env:"SYNC_INTERVAL_MINUTES" envDefault:"0" validate:"gte=0"`
	HTTPTimeout         time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s" validate:"gt=0"`
	RateLimitTier       string        `env:"RATE_LIMIT_TIER" envDefault:"throughput" validate:"oneof=conservative balanced throughput"`
}

// Load parses environment variables into Config and performs minimal validation.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	cfg.RateLimitTier = strings.ToLower(strings.TrimSpace(cfg.RateLimitTier))

	sources := make([]string, 0, len(cfg.EnabledSources))
	for _, s := range cfg.EnabledSources {
		if s = strings.TrimSpace(strings.ToLower(s)); s != "" {
			sources = append(sources, s)
		}
	}
	cfg.EnabledSources = sources

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// SourceEnabled reports whether the named source is in the enabled set.
func (c *Config) SourceEnabled(name string) bool {
	for _, s := range c.EnabledSources {
		if s == strings.ToLower(name) {
			return true
		}
	}
	return false
}

var Version = "dev"
