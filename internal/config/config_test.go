package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.CoverageThreshold != 0.9 {
		t.Errorf("expected coverage threshold 0.9, got %g", cfg.CoverageThreshold)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected log level info, got %s", cfg.LogLevel)
	}
	if !cfg.History.Enabled {
		t.Error("expected history enabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.CoverageThreshold != 0.9 {
		t.Errorf("expected defaults, got threshold %g", cfg.CoverageThreshold)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `coverage_threshold: 0.75
log_level: debug
orphan_timeout: 10m
history:
  enabled: false
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.CoverageThreshold != 0.75 {
		t.Errorf("expected threshold 0.75, got %g", cfg.CoverageThreshold)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.LogLevel)
	}
	if cfg.OrphanTimeout != 10*time.Minute {
		t.Errorf("expected 10m orphan timeout, got %v", cfg.OrphanTimeout)
	}
	if cfg.History.Enabled {
		t.Error("expected history disabled")
	}
	if cfg.History.DBPath != ".foreman/history.db" {
		t.Errorf("expected default db path to survive partial history section, got %s", cfg.History.DBPath)
	}
}

func TestLoadPartialFileKeepsOtherDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("log_level: warn\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("expected log level warn, got %s", cfg.LogLevel)
	}
	if cfg.CoverageThreshold != 0.9 {
		t.Errorf("expected default threshold, got %g", cfg.CoverageThreshold)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(":\n  - not yaml"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestLoadInvalidOrphanTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("orphan_timeout: soon\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for unparseable duration")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"threshold above one", func(c *Config) { c.CoverageThreshold = 1.5 }},
		{"negative threshold", func(c *Config) { c.CoverageThreshold = -0.1 }},
		{"unknown log level", func(c *Config) { c.LogLevel = "loud" }},
		{"negative orphan timeout", func(c *Config) { c.OrphanTimeout = -time.Minute }},
		{"history enabled without path", func(c *Config) { c.History.DBPath = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
