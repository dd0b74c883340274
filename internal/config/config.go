// ABOUTME: Configuration loading and parsing for blockgate
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete blockgate configuration
type Config struct {
	Transport  TransportConfig `yaml:"transport"`
	Store      StoreConfig     `yaml:"store"`
	Audit      AuditConfig     `yaml:"audit"`
	Superusers []string        `yaml:"superusers"`
	Confirm    ConfirmConfig   `yaml:"confirm"`
	Logging    LoggingConfig   `yaml:"logging"`
}

// TransportConfig holds the OneBot WebSocket endpoint configuration
type TransportConfig struct {
	URL         string `yaml:"url"`
	AccessToken string `yaml:"access_token"`

	ReconnectInterval time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	ReconnectIntervalRaw string `yaml:"reconnect_interval"`
}

// StoreConfig holds the block-list document location
type StoreConfig struct {
	Path string `yaml:"path"`
}

// AuditConfig holds the audit ledger location
type AuditConfig struct {
	Path string `yaml:"path"`
}

// ConfirmConfig holds the reset confirmation timeout
type ConfirmConfig struct {
	Timeout time.Duration `yaml:"-"`

	TimeoutRaw string `yaml:"timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills unset fields with their defaults.
func (c *Config) applyDefaults() {
	if c.Store.Path == "" {
		c.Store.Path = "data/blacklist/blacklist.json"
	}
	if c.Audit.Path == "" {
		c.Audit.Path = "data/blacklist/audit.db"
	}
	if c.Confirm.Timeout == 0 {
		c.Confirm.Timeout = time.Minute
	}
	if c.Transport.ReconnectInterval == 0 {
		c.Transport.ReconnectInterval = 5 * time.Second
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Transport.URL == "" {
		return fmt.Errorf("transport.url is required")
	}
	if c.Confirm.Timeout < 0 {
		return fmt.Errorf("confirm.timeout must be positive")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Transport.ReconnectIntervalRaw != "" {
		cfg.Transport.ReconnectInterval, err = time.ParseDuration(cfg.Transport.ReconnectIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing reconnect_interval %q: %w", cfg.Transport.ReconnectIntervalRaw, err)
		}
	}

	if cfg.Confirm.TimeoutRaw != "" {
		cfg.Confirm.Timeout, err = time.ParseDuration(cfg.Confirm.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing confirm timeout %q: %w", cfg.Confirm.TimeoutRaw, err)
		}
	}

	return nil
}
