package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the user config dir at a temp dir so a developer's real
// config file cannot leak into the test.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", cfg.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 90*time.Second, cfg.StreamIdleTimeout)
	assert.Equal(t, time.Duration(0), cfg.SettleDelay)
	assert.True(t, cfg.FailSoftLoad)
	assert.NotEmpty(t, cfg.TokenPath)
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("PARLEY_BASE_URL", "https://api.example.com/")
	t.Setenv("PARLEY_REQUEST_TIMEOUT", "10s")
	t.Setenv("PARLEY_STREAM_IDLE_TIMEOUT", "2m")
	t.Setenv("PARLEY_SETTLE_DELAY", "250ms")
	t.Setenv("PARLEY_FAIL_SOFT_LOAD", "false")

	cfg, err := Load()
	require.NoError(t, err)
	// Trailing slash is normalized away
	assert.Equal(t, "https://api.example.com", cfg.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 2*time.Minute, cfg.StreamIdleTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.SettleDelay)
	assert.False(t, cfg.FailSoftLoad)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := isolate(t)
	confDir := filepath.Join(dir, "parley")
	require.NoError(t, os.MkdirAll(confDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(confDir, "config.yaml"),
		[]byte("base-url: https://file.example.com\nrequest-timeout: 45s\n"), 0o644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://file.example.com", cfg.BaseURL)
	assert.Equal(t, 45*time.Second, cfg.RequestTimeout)
}

func TestLoad_EnvBeatsConfigFile(t *testing.T) {
	dir := isolate(t)
	confDir := filepath.Join(dir, "parley")
	require.NoError(t, os.MkdirAll(confDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(confDir, "config.yaml"),
		[]byte("base-url: https://file.example.com\n"), 0o644))
	t.Setenv("PARLEY_BASE_URL", "https://env.example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com", cfg.BaseURL)
}

func TestLoad_InvalidScheme(t *testing.T) {
	isolate(t)
	t.Setenv("PARLEY_BASE_URL", "ftp://example.com")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Config{
		BaseURL:           "http://localhost:8000",
		RequestTimeout:    time.Second,
		StreamIdleTimeout: time.Second,
		TokenPath:         "/tmp/token",
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty base URL", func(c *Config) { c.BaseURL = "" }},
		{"bad scheme", func(c *Config) { c.BaseURL = "localhost:8000" }},
		{"zero request timeout", func(c *Config) { c.RequestTimeout = 0 }},
		{"zero idle timeout", func(c *Config) { c.StreamIdleTimeout = 0 }},
		{"negative settle delay", func(c *Config) { c.SettleDelay = -time.Second }},
		{"empty token path", func(c *Config) { c.TokenPath = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
