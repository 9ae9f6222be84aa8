// Package config provides SDK configuration using Viper. It supports
// configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultCollectorTimeout     = 10 * time.Second
	defaultBeaconFlushInterval  = 10 * time.Second
	defaultBeaconBatchSize      = 300
	defaultPositionPollInterval = 150 * time.Millisecond
	defaultRetryAttempts        = 3
	defaultRetryDelay           = 1 * time.Second
)

// Config holds all configuration for the SDK.
type Config struct {
	Collector CollectorConfig `mapstructure:"collector"`
	Beacon    BeaconConfig    `mapstructure:"beacon"`
	Polling   PollingConfig   `mapstructure:"polling"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// CollectorConfig describes the remote collector endpoint.
type CollectorConfig struct {
	// URL is the collector ingest endpoint.
	URL string `mapstructure:"url"`
	// EnvKey is the environment key authorizing beacons. It is treated
	// as a secret and redacted from logs.
	EnvKey string `mapstructure:"env_key"`
	// Timeout is the per-request timeout.
	Timeout time.Duration `mapstructure:"timeout"`
	// RetryAttempts is the number of delivery retries per batch.
	RetryAttempts int `mapstructure:"retry_attempts"`
	// RetryDelay is the initial backoff delay between retries.
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// BeaconConfig controls event batching and delivery.
type BeaconConfig struct {
	// FlushInterval is how often buffered events are flushed.
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	// BatchSize is the watermark that forces an early flush.
	BatchSize int `mapstructure:"batch_size"`
	// Compression selects the payload encoding: "br" or "none".
	Compression string `mapstructure:"compression"`
}

// PollingConfig controls the playback position poller.
type PollingConfig struct {
	// PositionInterval is the position sampling period.
	PositionInterval time.Duration `mapstructure:"position_interval"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
	// Redact lists secret values that must never appear in log output.
	Redact []string `mapstructure:"redact"`
}

// Load reads configuration from an optional file path, environment
// variables (LITIX_*), and defaults, in ascending precedence.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("litix")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.litix")
	}

	v.SetEnvPrefix("LITIX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// No config file is fine; defaults and env vars apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	// The environment key must never reach log output.
	if cfg.Collector.EnvKey != "" {
		cfg.Logging.Redact = append(cfg.Logging.Redact, cfg.Collector.EnvKey)
	}

	return &cfg, nil
}

// SetDefaults sets default values on a viper instance.
func SetDefaults(v *viper.Viper) {
	// Empty defaults register the keys so environment overrides
	// survive Unmarshal.
	v.SetDefault("collector.url", "")
	v.SetDefault("collector.env_key", "")
	v.SetDefault("collector.timeout", defaultCollectorTimeout)
	v.SetDefault("collector.retry_attempts", defaultRetryAttempts)
	v.SetDefault("collector.retry_delay", defaultRetryDelay)

	v.SetDefault("beacon.flush_interval", defaultBeaconFlushInterval)
	v.SetDefault("beacon.batch_size", defaultBeaconBatchSize)
	v.SetDefault("beacon.compression", "br")

	v.SetDefault("polling.position_interval", defaultPositionPollInterval)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", "")
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	if c.Collector.URL != "" {
		u, err := url.Parse(c.Collector.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("collector.url %q is not a valid URL", c.Collector.URL)
		}
	}
	if c.Beacon.FlushInterval <= 0 {
		return errors.New("beacon.flush_interval must be positive")
	}
	if c.Beacon.BatchSize <= 0 {
		return errors.New("beacon.batch_size must be positive")
	}
	switch c.Beacon.Compression {
	case "br", "none":
	default:
		return fmt.Errorf("beacon.compression %q is not supported (want br or none)", c.Beacon.Compression)
	}
	if c.Polling.PositionInterval <= 0 {
		return errors.New("polling.position_interval must be positive")
	}
	return nil
}
