package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/camarohq/hunter/internal/relevance"
)

// Config holds the full application configuration.
type Config struct {
	Target  relevance.Target `yaml:"target" mapstructure:"target"`
	Catalog CatalogConfig    `yaml:"catalog" mapstructure:"catalog"`
	State   StateConfig      `yaml:"state" mapstructure:"state"`
	Fetch   FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Engine  EngineConfig     `yaml:"engine" mapstructure:"engine"`
	Retry   RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Sources SourcesConfig    `yaml:"sources" mapstructure:"sources"`
	Notify  NotifyConfig     `yaml:"notify" mapstructure:"notify"`
	Server  ServerConfig     `yaml:"server" mapstructure:"server"`
	Log     LogConfig        `yaml:"log" mapstructure:"log"`
}

// CatalogConfig bounds and orders the persisted catalog.
type CatalogConfig struct {
	Capacity int    `yaml:"capacity" mapstructure:"capacity"`
	Order    string `yaml:"order" mapstructure:"order"`
}

// StateConfig selects where the ledger and catalog live.
type StateConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Dir         string `yaml:"dir" mapstructure:"dir"`
	CatalogFile string `yaml:"catalog_file" mapstructure:"catalog_file"`
	SeenFile    string `yaml:"seen_file" mapstructure:"seen_file"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	LockTTLSecs int    `yaml:"lock_ttl_secs" mapstructure:"lock_ttl_secs"`
}

// FetchConfig configures the HTTP transport used by source adapters.
type FetchConfig struct {
	TimeoutSecs      int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries       int      `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgents       []string `yaml:"user_agents" mapstructure:"user_agents"`
	RatePerHost      float64  `yaml:"rate_per_host" mapstructure:"rate_per_host"`
	Burst            int      `yaml:"burst" mapstructure:"burst"`
	BreakerThreshold int      `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int      `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// EngineConfig configures adapter fan-out.
type EngineConfig struct {
	Concurrency        int `yaml:"concurrency" mapstructure:"concurrency"`
	AdapterTimeoutSecs int `yaml:"adapter_timeout_secs" mapstructure:"adapter_timeout_secs"`
	RunTimeoutSecs     int `yaml:"run_timeout_secs" mapstructure:"run_timeout_secs"`
}

// RetryConfig is the retry policy wrapped around each adapter call.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// SourcesConfig points at the source catalog and optionally narrows it.
type SourcesConfig struct {
	File    string   `yaml:"file" mapstructure:"file"`
	Enabled []string `yaml:"enabled" mapstructure:"enabled"`
}

// NotifyConfig holds delivery settings for every notifier.
type NotifyConfig struct {
	DashboardURL string        `yaml:"dashboard_url" mapstructure:"dashboard_url"`
	Email        EmailConfig   `yaml:"email" mapstructure:"email"`
	Webhook      WebhookConfig `yaml:"webhook" mapstructure:"webhook"`
	Notion       NotionConfig  `yaml:"notion" mapstructure:"notion"`
}

// EmailConfig holds SMTP credentials.
type EmailConfig struct {
	From     string `yaml:"from" mapstructure:"from"`
	To       string `yaml:"to" mapstructure:"to"`
	Password string `yaml:"password" mapstructure:"password"`
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
}

// WebhookConfig holds the digest webhook target.
type WebhookConfig struct {
	URL string `yaml:"url" mapstructure:"url"`
}

// NotionConfig holds Notion API credentials and the listings database ID.
type NotionConfig struct {
	Token      string `yaml:"token" mapstructure:"token"`
	DatabaseID string `yaml:"database_id" mapstructure:"database_id"`
}

// ServerConfig configures the read-only API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("HUNTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("target.model", "Camaro")
	v.SetDefault("target.year", 1969)
	v.SetDefault("target.min_year", 1960)
	v.SetDefault("target.max_year", 1979)
	v.SetDefault("catalog.capacity", 1000)
	v.SetDefault("catalog.order", "newest")
	v.SetDefault("state.driver", "file")
	v.SetDefault("state.dir", "docs")
	v.SetDefault("state.catalog_file", "listings.json")
	v.SetDefault("state.seen_file", "seen_ids.json")
	v.SetDefault("state.database_url", "")
	v.SetDefault("state.lock_ttl_secs", 3600)
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.user_agents", []string{})
	v.SetDefault("fetch.rate_per_host", 0.5)
	v.SetDefault("fetch.burst", 1)
	v.SetDefault("fetch.breaker_threshold", 5)
	v.SetDefault("fetch.breaker_reset_secs", 300)
	v.SetDefault("engine.concurrency", 4)
	v.SetDefault("engine.adapter_timeout_secs", 600)
	v.SetDefault("engine.run_timeout_secs", 1800)
	v.SetDefault("retry.max_attempts", 2)
	v.SetDefault("retry.initial_backoff_ms", 5000)
	v.SetDefault("retry.max_backoff_ms", 10000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.5)
	v.SetDefault("sources.file", "")
	v.SetDefault("sources.enabled", []string{})
	v.SetDefault("notify.dashboard_url", "")
	v.SetDefault("notify.email.from", "")
	v.SetDefault("notify.email.to", "")
	v.SetDefault("notify.email.password", "")
	v.SetDefault("notify.email.host", "smtp.gmail.com")
	v.SetDefault("notify.email.port", 465)
	v.SetDefault("notify.webhook.url", "")
	v.SetDefault("notify.notion.token", "")
	v.SetDefault("notify.notion.database_id", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if cfg.Notify.Email.To == "" {
		cfg.Notify.Email.To = cfg.Notify.Email.From
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "run":
		if c.Catalog.Capacity < 1 {
			errs = append(errs, "catalog.capacity must be > 0")
		}
		if c.Catalog.Order != "newest" && c.Catalog.Order != "oldest" {
			errs = append(errs, "catalog.order must be newest or oldest")
		}
		if c.Engine.Concurrency < 1 || c.Engine.Concurrency > 16 {
			errs = append(errs, "engine.concurrency must be between 1 and 16")
		}
		if _, err := relevance.New(c.Target); err != nil {
			errs = append(errs, err.Error())
		}
		errs = append(errs, c.validateState()...)
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		errs = append(errs, c.validateState()...)
	case "export":
		errs = append(errs, c.validateState()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: invalid for %s: %s", mode, strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateState() []string {
	switch c.State.Driver {
	case "file", "sqlite", "memory":
		return nil
	case "postgres":
		if c.State.DatabaseURL == "" {
			return []string{"state.database_url is required for the postgres driver"}
		}
		return nil
	default:
		return []string{"state.driver must be one of file, sqlite, postgres, memory"}
	}
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
