package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/br-g/fastf1-livetiming/errors"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Feed.BaseURL, cfg.Feed.BaseURL)
	assert.Contains(t, cfg.Feed.Topics, "TimingData")
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
feed:
  base_url: http://localhost:8080
  topics: [DriverList]
retry:
  max_attempts: 2
  initial_delay: 100ms
output:
  file: /tmp/out.jsonl
log_level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.Feed.BaseURL)
	assert.Equal(t, []string{"DriverList"}, cfg.Feed.Topics)
	assert.Equal(t, 2, cfg.Retry.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.Retry.InitialDelay)
	assert.Equal(t, "debug", cfg.LogLevel)
	// Untouched sections keep defaults.
	assert.Equal(t, 60*time.Second, cfg.Session.IdleTimeout)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("feed: [not a map"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestTokenEnvOverride(t *testing.T) {
	t.Setenv(TokenEnvVar, "env-secret")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env-secret", cfg.Feed.Token)
	assert.Equal(t, "bearer", cfg.Feed.AuthScheme)
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing base URL", func(c *Config) { c.Feed.BaseURL = "" }},
		{"no topics", func(c *Config) { c.Feed.Topics = nil }},
		{"unknown auth scheme", func(c *Config) { c.Feed.AuthScheme = "kerberos" }},
		{"bearer without token", func(c *Config) { c.Feed.AuthScheme = "bearer"; c.Feed.Token = "" }},
		{"zero retry budget", func(c *Config) { c.Retry.MaxAttempts = 0 }},
		{"no outputs", func(c *Config) { c.Output.File = ""; c.Output.NATS.URL = "" }},
		{"bad metrics port", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Port = 70000 }},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}
