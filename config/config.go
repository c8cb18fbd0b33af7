// Package config loads and validates the application configuration from a
// YAML file, with environment overrides for credentials.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/br-g/fastf1-livetiming/errors"
)

// TokenEnvVar overrides the configured auth token when set, keeping
// credentials out of config files.
const TokenEnvVar = "F1_TOKEN"

// FeedConfig describes the upstream feed and subscription.
type FeedConfig struct {
	// BaseURL is the feed's SignalR base endpoint.
	BaseURL string `yaml:"base_url"`
	// Hub is the streaming hub name.
	Hub string `yaml:"hub"`
	// Topics is the list of data topics to subscribe to.
	Topics []string `yaml:"topics"`
	// AuthScheme selects credential presentation: "none", "bearer" or
	// "session".
	AuthScheme string `yaml:"auth_scheme"`
	// Token is the credential; prefer the F1_TOKEN environment variable.
	Token string `yaml:"token"`
}

// RetryConfig shapes the reconnection behavior.
type RetryConfig struct {
	// MaxAttempts bounds consecutive failed connection attempts.
	MaxAttempts int `yaml:"max_attempts"`
	// InitialDelay is the backoff before the first reconnect.
	InitialDelay time.Duration `yaml:"initial_delay"`
	// MaxDelay caps the backoff growth.
	MaxDelay time.Duration `yaml:"max_delay"`
}

// SessionConfig tunes per-connection timeouts.
type SessionConfig struct {
	// SubscribeTimeout bounds the wait for the subscription to take
	// effect.
	SubscribeTimeout time.Duration `yaml:"subscribe_timeout"`
	// IdleTimeout declares a connection dead when nothing arrives for
	// this long.
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// OutputConfig selects and configures the record sinks.
type OutputConfig struct {
	// File is the JSONL output path; empty disables the file sink.
	File string `yaml:"file"`
	// NATS enables the JetStream sink when URL is set.
	NATS NATSOutputConfig `yaml:"nats"`
}

// NATSOutputConfig configures the JetStream sink.
type NATSOutputConfig struct {
	URL           string `yaml:"url"`
	Stream        string `yaml:"stream"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Config is the complete application configuration.
type Config struct {
	Feed    FeedConfig    `yaml:"feed"`
	Retry   RetryConfig   `yaml:"retry"`
	Session SessionConfig `yaml:"session"`
	Output  OutputConfig  `yaml:"output"`
	Metrics MetricsConfig `yaml:"metrics"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when no file is given. The feed
// URL and topic set match the public live timing endpoint.
func Default() *Config {
	return &Config{
		Feed: FeedConfig{
			BaseURL:    "https://livetiming.formula1.com/signalr",
			Hub:        "Streaming",
			AuthScheme: "none",
			Topics: []string{
				"Heartbeat", "DriverList", "SessionInfo", "TrackStatus",
				"TimingData", "TimingAppData", "TimingStats", "WeatherData",
				"RaceControlMessages", "SessionData", "CarData.z", "Position.z",
			},
		},
		Retry: RetryConfig{
			MaxAttempts:  5,
			InitialDelay: time.Second,
			MaxDelay:     30 * time.Second,
		},
		Session: SessionConfig{
			SubscribeTimeout: 15 * time.Second,
			IdleTimeout:      60 * time.Second,
		},
		Output: OutputConfig{
			File: "livetiming.jsonl",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
		LogLevel: "info",
	}
}

// Load reads the YAML file at path over the defaults and applies
// environment overrides. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Config", "Load", "read config file")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err),
				"Config", "Load", "parse config file")
		}
	}

	if token := os.Getenv(TokenEnvVar); token != "" {
		cfg.Feed.Token = token
		if cfg.Feed.AuthScheme == "" || cfg.Feed.AuthScheme == "none" {
			cfg.Feed.AuthScheme = "bearer"
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Feed.BaseURL == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig,
			"Config", "Validate", "feed base_url is required")
	}
	if len(c.Feed.Topics) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig,
			"Config", "Validate", "at least one topic is required")
	}

	switch c.Feed.AuthScheme {
	case "", "none", "bearer", "session":
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig,
			"Config", "Validate", "auth_scheme must be one of: none, bearer, session")
	}
	if (c.Feed.AuthScheme == "bearer" || c.Feed.AuthScheme == "session") && c.Feed.Token == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig,
			"Config", "Validate", "auth_scheme requires a token")
	}

	if c.Retry.MaxAttempts <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig,
			"Config", "Validate", "retry max_attempts must be positive")
	}
	if c.Retry.InitialDelay < 0 || c.Retry.MaxDelay < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig,
			"Config", "Validate", "retry delays cannot be negative")
	}

	if c.Output.File == "" && c.Output.NATS.URL == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig,
			"Config", "Validate", "at least one output is required")
	}

	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return errors.WrapInvalid(errors.ErrInvalidConfig,
			"Config", "Validate", "metrics port must be a valid TCP port")
	}

	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig,
			"Config", "Validate", "log_level must be one of: debug, info, warn, error")
	}

	return nil
}
