// Package config loads and validates depot's TOML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// LoggingConfig controls the process-wide logger.
type LoggingConfig struct {
	Output string `toml:"output"` // "stderr", "stdout", or a file path
	Format string `toml:"format"` // "json" or "console"
	Level  string `toml:"level"`  // "debug", "info", "warn", "error"
}

// S3Config holds the remote object store connection settings.
type S3Config struct {
	Endpoint   string `toml:"endpoint"`
	DisableTLS bool   `toml:"disable_tls"`
	AccessKey  string `toml:"access_key"`
	SecretKey  string `toml:"secret_key"`
	Bucket     string `toml:"bucket"`
	Debug      bool   `toml:"debug"` // Enable detailed request/response tracing
}

// ResilienceConfig tunes the optional caller-side retry wrapper.
// The storage adapter itself never retries.
type ResilienceConfig struct {
	MaxRetries      int    `toml:"max_retries"`
	InitialInterval string `toml:"initial_interval"`
	MaxInterval     string `toml:"max_interval"`
}

// InitialIntervalDuration parses InitialInterval, falling back to the default.
func (r *ResilienceConfig) InitialIntervalDuration() time.Duration {
	return parseDurationOr(r.InitialInterval, time.Second)
}

// MaxIntervalDuration parses MaxInterval, falling back to the default.
func (r *ResilienceConfig) MaxIntervalDuration() time.Duration {
	return parseDurationOr(r.MaxInterval, 30*time.Second)
}

func parseDurationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// Config is the top-level configuration.
type Config struct {
	Logging    LoggingConfig    `toml:"logging"`
	S3         S3Config         `toml:"s3"`
	Resilience ResilienceConfig `toml:"resilience"`
}

// NewDefaultConfig creates a Config struct with default values.
func NewDefaultConfig() Config {
	return Config{
		Logging: LoggingConfig{
			Output: "stderr",
			Format: "console",
			Level:  "info",
		},
		Resilience: ResilienceConfig{
			MaxRetries:      3,
			InitialInterval: "1s",
			MaxInterval:     "30s",
		},
	}
}

// Load reads a TOML configuration file over the defaults.
func Load(path string) (Config, error) {
	cfg := NewDefaultConfig()
	if _, err := os.Stat(path); err != nil {
		return cfg, fmt.Errorf("config file %s: %w", path, err)
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks that required settings are present and consistent.
func (c *Config) Validate() error {
	if c.S3.Endpoint == "" {
		return fmt.Errorf("s3.endpoint is required")
	}
	if c.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required")
	}
	if c.S3.AccessKey == "" || c.S3.SecretKey == "" {
		return fmt.Errorf("s3.access_key and s3.secret_key are required")
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("logging.format must be \"json\" or \"console\", got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown logging.level %q", c.Logging.Level)
	}
	if c.Resilience.MaxRetries < 0 {
		return fmt.Errorf("resilience.max_retries must not be negative")
	}
	return nil
}
