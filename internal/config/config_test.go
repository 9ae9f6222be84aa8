package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, defaultBeaconFlushInterval, cfg.Beacon.FlushInterval)
	assert.Equal(t, defaultBeaconBatchSize, cfg.Beacon.BatchSize)
	assert.Equal(t, "br", cfg.Beacon.Compression)
	assert.Equal(t, defaultPositionPollInterval, cfg.Polling.PositionInterval)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "litix.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
collector:
  url: https://collector.example.com/ingest
  env_key: secret-key
beacon:
  flush_interval: 5s
  batch_size: 50
  compression: none
logging:
  level: debug
`), 0o600))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "https://collector.example.com/ingest", cfg.Collector.URL)
	assert.Equal(t, 5*time.Second, cfg.Beacon.FlushInterval)
	assert.Equal(t, 50, cfg.Beacon.BatchSize)
	assert.Equal(t, "none", cfg.Beacon.Compression)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_EnvKeyIsRedacted(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "litix.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
collector:
  env_key: super-secret
`), 0o600))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Contains(t, cfg.Logging.Redact, "super-secret")
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("LITIX_COLLECTOR_URL", "https://env.example.com/ingest")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com/ingest", cfg.Collector.URL)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Beacon: BeaconConfig{
				FlushInterval: time.Second,
				BatchSize:     10,
				Compression:   "br",
			},
			Polling: PollingConfig{PositionInterval: 150 * time.Millisecond},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad url", func(c *Config) { c.Collector.URL = "://nope" }, "collector.url"},
		{"relative url", func(c *Config) { c.Collector.URL = "nope" }, "collector.url"},
		{"zero flush interval", func(c *Config) { c.Beacon.FlushInterval = 0 }, "flush_interval"},
		{"zero batch size", func(c *Config) { c.Beacon.BatchSize = 0 }, "batch_size"},
		{"bad compression", func(c *Config) { c.Beacon.Compression = "zstd" }, "compression"},
		{"zero poll interval", func(c *Config) { c.Polling.PositionInterval = 0 }, "position_interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()

			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
