// Package config loads the application configuration from screener.yaml
// and SCREENER_* environment variables, with env taking precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Match      MatchConfig      `yaml:"match" mapstructure:"match"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Terms      TermsConfig      `yaml:"terms" mapstructure:"terms"`
	Serve      ServeConfig      `yaml:"serve" mapstructure:"serve"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// StoreConfig configures the reference dataset backend.
type StoreConfig struct {
	Driver   string `yaml:"driver" mapstructure:"driver"`
	DSN      string `yaml:"dsn" mapstructure:"dsn"`
	MaxConns int    `yaml:"max_conns" mapstructure:"max_conns"`
}

// MatchConfig configures the matching engine.
type MatchConfig struct {
	MinConfidence   float64       `yaml:"min_confidence" mapstructure:"min_confidence"`
	MaxResults      int           `yaml:"max_results" mapstructure:"max_results"`
	FuzzyThreshold  float64       `yaml:"fuzzy_threshold" mapstructure:"fuzzy_threshold"`
	CandidateLimit  int           `yaml:"candidate_limit" mapstructure:"candidate_limit"`
	Concurrency     int           `yaml:"concurrency" mapstructure:"concurrency"`
	Timeout         time.Duration `yaml:"timeout" mapstructure:"timeout"`
	AffiliatedBoost float64       `yaml:"affiliated_boost" mapstructure:"affiliated_boost"`
}

// CacheConfig configures the result cache.
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled" mapstructure:"enabled"`
	TTL           time.Duration `yaml:"ttl" mapstructure:"ttl"`
	MaxEntries    int           `yaml:"max_entries" mapstructure:"max_entries"`
	SweepInterval time.Duration `yaml:"sweep_interval" mapstructure:"sweep_interval"`
	WarmupRate    float64       `yaml:"warmup_rate" mapstructure:"warmup_rate"`
}

// TermsConfig points at an optional YAML patch for the built-in
// generic/geographic/journal term tables.
type TermsConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

// ServeConfig configures the HTTP API.
type ServeConfig struct {
	Addr           string        `yaml:"addr" mapstructure:"addr"`
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
	CORSOrigins    []string      `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// FetchConfig configures remote dataset downloads.
type FetchConfig struct {
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent string        `yaml:"user_agent" mapstructure:"user_agent"`
	Retries   int           `yaml:"retries" mapstructure:"retries"`
}

// MonitoringConfig configures the background health checker and its
// webhook alerts. An empty webhook URL disables delivery but not
// evaluation.
type MonitoringConfig struct {
	WebhookURL         string        `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckInterval      time.Duration `yaml:"check_interval" mapstructure:"check_interval"`
	Lookback           time.Duration `yaml:"lookback" mapstructure:"lookback"`
	ErrorRateThreshold float64       `yaml:"error_rate_threshold" mapstructure:"error_rate_threshold"`
	MaxDatasetAge      time.Duration `yaml:"max_dataset_age" mapstructure:"max_dataset_age"`
}

// Load reads configuration from file and environment. With file empty the
// usual spots are searched (screener.yaml in the working directory,
// ~/.screener, /etc/screener) and a missing file is fine; an explicit file
// must exist.
func Load(file string) (*Config, error) {
	v := viper.New()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("screener")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.screener")
		v.AddConfigPath("/etc/screener")
	}

	// Environment
	v.SetEnvPrefix("SCREENER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "screener.db")
	v.SetDefault("store.max_conns", 8)
	v.SetDefault("match.min_confidence", 0.25)
	v.SetDefault("match.max_results", 10)
	v.SetDefault("match.fuzzy_threshold", 0.85)
	v.SetDefault("match.candidate_limit", 200)
	v.SetDefault("match.concurrency", 8)
	v.SetDefault("match.timeout", "10s")
	v.SetDefault("match.affiliated_boost", 0.0)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", "5m")
	v.SetDefault("cache.max_entries", 4096)
	v.SetDefault("cache.sweep_interval", "1m")
	v.SetDefault("cache.warmup_rate", 50)
	v.SetDefault("terms.file", "")
	v.SetDefault("serve.addr", ":8077")
	v.SetDefault("serve.request_timeout", "15s")
	v.SetDefault("serve.cors_origins", []string{"*"})
	v.SetDefault("fetch.timeout", "30s")
	v.SetDefault("fetch.user_agent", "screener/1.0")
	v.SetDefault("fetch.retries", 3)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.check_interval", "5m")
	v.SetDefault("monitoring.lookback", "24h")
	v.SetDefault("monitoring.error_rate_threshold", 0.5)
	v.SetDefault("monitoring.max_dataset_age", "168h")

	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound || file != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks value ranges the engine cannot fix up on its own.
// Every violation is reported, not just the first.
func (c *Config) Validate() error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}
	if c.Match.MinConfidence < 0.05 || c.Match.MinConfidence > 0.95 {
		errs = append(errs, "match.min_confidence must be between 0.05 and 0.95")
	}
	if c.Match.MaxResults < 1 || c.Match.MaxResults > 50 {
		errs = append(errs, "match.max_results must be between 1 and 50")
	}
	if c.Match.FuzzyThreshold < 0.5 || c.Match.FuzzyThreshold > 1 {
		errs = append(errs, "match.fuzzy_threshold must be between 0.5 and 1")
	}
	if c.Match.Concurrency < 1 || c.Match.Concurrency > 32 {
		errs = append(errs, "match.concurrency must be between 1 and 32")
	}
	if c.Match.AffiliatedBoost < 0 {
		errs = append(errs, "match.affiliated_boost must be >= 0")
	}
	if c.Cache.MaxEntries < 0 {
		errs = append(errs, "cache.max_entries must be >= 0")
	}
	if c.Serve.Addr == "" {
		errs = append(errs, "serve.addr is required")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
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
