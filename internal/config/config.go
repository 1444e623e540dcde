// Package config loads parley client configuration from config files,
// environment variables, and .env files. Precedence: explicit setters >
// environment (PARLEY_*) > config file > defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"parley/internal/logger"
)

// Config holds all client-side settings for a conversation session.
type Config struct {
	// BaseURL is the root of the backend REST API, e.g. "https://api.example.com".
	BaseURL string

	// RequestTimeout bounds every individual REST call.
	RequestTimeout time.Duration

	// StreamIdleTimeout aborts a generation when no fragment arrives for
	// this long. Guards against a silently dead connection leaving the
	// session stuck in a generating state.
	StreamIdleTimeout time.Duration

	// SettleDelay is an optional pause between stream completion and
	// finalizing the assistant reply. Zero by default.
	SettleDelay time.Duration

	// TokenPath is the file where the bearer token is persisted.
	TokenPath string

	// FailSoftLoad controls message history loading: when true, a failed
	// fetch for one index is reported but does not abort the rest.
	FailSoftLoad bool
}

// Load reads configuration from the environment and an optional config file
// under the user config dir (~/.config/parley/config.yaml by default).
func Load() (*Config, error) {
	// .env is optional; absence is not an error
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("PARLEY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	confDir, err := defaultConfigDir()
	if err != nil {
		return nil, err
	}

	v.SetDefault("base-url", "http://localhost:8000")
	v.SetDefault("request-timeout", "30s")
	v.SetDefault("stream-idle-timeout", "90s")
	v.SetDefault("settle-delay", "0s")
	v.SetDefault("token-path", filepath.Join(confDir, "token"))
	v.SetDefault("fail-soft-load", true)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(confDir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		logger.Debug("Config file loaded", "path", v.ConfigFileUsed())
	}

	cfg := &Config{
		BaseURL:           strings.TrimRight(v.GetString("base-url"), "/"),
		RequestTimeout:    v.GetDuration("request-timeout"),
		StreamIdleTimeout: v.GetDuration("stream-idle-timeout"),
		SettleDelay:       v.GetDuration("settle-delay"),
		TokenPath:         v.GetString("token-path"),
		FailSoftLoad:      v.GetBool("fail-soft-load"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL is required")
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("base URL must use http or https scheme, got %q", c.BaseURL)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	if c.StreamIdleTimeout <= 0 {
		return fmt.Errorf("stream idle timeout must be positive")
	}
	if c.SettleDelay < 0 {
		return fmt.Errorf("settle delay cannot be negative")
	}
	if c.TokenPath == "" {
		return fmt.Errorf("token path is required")
	}
	return nil
}

func defaultConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine user config dir: %w", err)
	}
	return filepath.Join(base, "parley"), nil
}
