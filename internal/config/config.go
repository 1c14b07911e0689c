// Package config loads foreman configuration from the planning directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// HistoryConfig controls the cross-run execution history store.
type HistoryConfig struct {
	// Enabled turns the SQLite history store on
	Enabled bool `yaml:"enabled"`

	// DBPath is the path to the history database, relative to the target dir
	DBPath string `yaml:"db_path"`
}

// Config holds foreman configuration options.
type Config struct {
	// CoverageThreshold is the minimum spec-coverage ratio the coverage gate accepts
	CoverageThreshold float64 `yaml:"coverage_threshold"`

	// LogLevel sets logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// OrphanTimeout is how long a checkpointed task may run without a result
	// before recovery reports it as orphaned
	OrphanTimeout time.Duration `yaml:"orphan_timeout"`

	// History contains the execution history store configuration
	History HistoryConfig `yaml:"history"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		CoverageThreshold: 0.9,
		LogLevel:          "info",
		OrphanTimeout:     30 * time.Minute,
		History: HistoryConfig{
			Enabled: true,
			DBPath:  ".foreman/history.db",
		},
	}
}

// Load reads configuration from path, merging file values over defaults.
// A missing file returns defaults without error; a malformed file is an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	type yamlConfig struct {
		CoverageThreshold *float64 `yaml:"coverage_threshold"`
		LogLevel          string   `yaml:"log_level"`
		OrphanTimeout     string   `yaml:"orphan_timeout"`
		History           *struct {
			Enabled *bool  `yaml:"enabled"`
			DBPath  string `yaml:"db_path"`
		} `yaml:"history"`
	}

	var fileCfg yamlConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if fileCfg.CoverageThreshold != nil {
		cfg.CoverageThreshold = *fileCfg.CoverageThreshold
	}
	if fileCfg.LogLevel != "" {
		cfg.LogLevel = fileCfg.LogLevel
	}
	if fileCfg.OrphanTimeout != "" {
		timeout, err := time.ParseDuration(fileCfg.OrphanTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid orphan_timeout %q: %w", fileCfg.OrphanTimeout, err)
		}
		cfg.OrphanTimeout = timeout
	}
	if fileCfg.History != nil {
		if fileCfg.History.Enabled != nil {
			cfg.History.Enabled = *fileCfg.History.Enabled
		}
		if fileCfg.History.DBPath != "" {
			cfg.History.DBPath = fileCfg.History.DBPath
		}
	}

	return cfg, nil
}

// LoadFromDir reads .foreman/config.yaml under dir.
func LoadFromDir(dir string) (*Config, error) {
	return Load(filepath.Join(dir, ".foreman", "config.yaml"))
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if c.CoverageThreshold < 0 || c.CoverageThreshold > 1 {
		return fmt.Errorf("coverage_threshold must be in [0, 1], got %g", c.CoverageThreshold)
	}

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	if c.OrphanTimeout < 0 {
		return fmt.Errorf("orphan_timeout must be >= 0, got %v", c.OrphanTimeout)
	}

	if c.History.Enabled && c.History.DBPath == "" {
		return fmt.Errorf("history.db_path cannot be empty when history is enabled")
	}

	return nil
}
