// Copyright 2026 The Flightlog Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the flightlog
// service.
//
// Configuration is loaded from a single YAML file specified by:
//   - FLIGHTLOG_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. Environment variables
// do not override config values; the one exception is the summarizer
// API key, which names an environment variable rather than embedding
// the secret in the file.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the master configuration for the flightlog service.
type Config struct {
	// Listen is the host:port the HTTP server binds.
	Listen string `yaml:"listen"`

	// Database configures the event store.
	Database DatabaseConfig `yaml:"database"`

	// Summarizer configures LLM summary generation and the nightly
	// schedule.
	Summarizer SummarizerConfig `yaml:"summarizer"`
}

// DatabaseConfig configures the SQLite event store.
type DatabaseConfig struct {
	// Path is the SQLite database file. Required.
	Path string `yaml:"path"`

	// PoolSize is the number of pooled connections.
	// Default: 4
	PoolSize int `yaml:"pool_size"`
}

// SummarizerConfig configures summary generation.
type SummarizerConfig struct {
	// Enabled turns LLM-backed summaries on. When false the service
	// still serves summaries, generated entirely from local counts.
	Enabled bool `yaml:"enabled"`

	// Model is the model identifier sent to the provider.
	Model string `yaml:"model"`

	// Endpoint overrides the provider's production API URL. Empty
	// means the provider default.
	Endpoint string `yaml:"endpoint"`

	// APIKeyEnv names the environment variable holding the API key.
	// Default: ANTHROPIC_API_KEY
	APIKeyEnv string `yaml:"api_key_env"`

	// MaxTokens caps the generated summary length.
	// Default: 1024
	MaxTokens int `yaml:"max_tokens"`

	// TimeoutSeconds bounds each provider request.
	// Default: 60
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// Schedule is the cron expression for the nightly summary run,
	// evaluated in UTC.
	// Default: "10 0 * * *"
	Schedule string `yaml:"schedule"`
}

// Default returns the configuration defaults applied before the file
// is read.
func Default() *Config {
	return &Config{
		Listen: "127.0.0.1:8080",
		Database: DatabaseConfig{
			PoolSize: 4,
		},
		Summarizer: SummarizerConfig{
			Model:          "claude-haiku-4-5",
			APIKeyEnv:      "ANTHROPIC_API_KEY",
			MaxTokens:      1024,
			TimeoutSeconds: 60,
			Schedule:       "10 0 * * *",
		},
	}
}

// Load loads configuration from the FLIGHTLOG_CONFIG environment
// variable. Fails when the variable is not set.
func Load() (*Config, error) {
	configPath := os.Getenv("FLIGHTLOG_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("FLIGHTLOG_CONFIG environment variable not set; " +
			"set it to the path of your flightlog.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. The file is
// merged over [Default] and validated.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Listen == "" {
		errs = append(errs, fmt.Errorf("listen is required"))
	}
	if c.Database.Path == "" {
		errs = append(errs, fmt.Errorf("database.path is required"))
	}
	if c.Database.PoolSize < 0 {
		errs = append(errs, fmt.Errorf("database.pool_size must not be negative"))
	}
	if c.Summarizer.Enabled {
		if c.Summarizer.Model == "" {
			errs = append(errs, fmt.Errorf("summarizer.model is required when the summarizer is enabled"))
		}
		if c.Summarizer.APIKeyEnv == "" {
			errs = append(errs, fmt.Errorf("summarizer.api_key_env is required when the summarizer is enabled"))
		}
	}
	if c.Summarizer.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("summarizer.max_tokens must be positive"))
	}
	if c.Summarizer.TimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("summarizer.timeout_seconds must be positive"))
	}
	if c.Summarizer.Schedule == "" {
		errs = append(errs, fmt.Errorf("summarizer.schedule is required"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// APIKey resolves the summarizer API key from the configured
// environment variable. Returns empty when unset.
func (c *Config) APIKey() string {
	return os.Getenv(c.Summarizer.APIKeyEnv)
}
