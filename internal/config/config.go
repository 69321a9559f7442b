// Package config provides configuration for the encounterlab CLI.
//
// Values are layered: defaults, then an optional YAML file, then
// ENCOUNTERLAB_* environment variables. Command-line flags are applied by
// the cli package on top of the result.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/roach88/encounterlab/internal/analysis"
)

// Config holds the encounterlab configuration.
type Config struct {
	// DataDir is the base directory for the database when DB is unset
	DataDir string `yaml:"data_dir" env:"ENCOUNTERLAB_DATA_DIR"`

	// DB is the SQLite database path
	DB string `yaml:"db" env:"ENCOUNTERLAB_DB"`

	// RulesDir is the directory holding the CUE rule sets
	RulesDir string `yaml:"rules_dir" env:"ENCOUNTERLAB_RULES_DIR"`

	Analysis AnalysisConfig `yaml:"analysis"`
	Log      LogConfig      `yaml:"log"`
}

// AnalysisConfig tunes the analysis run.
type AnalysisConfig struct {
	// BatchSize is the number of perspectives replayed together
	BatchSize int `yaml:"batch_size" env:"ENCOUNTERLAB_BATCH_SIZE"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level" env:"ENCOUNTERLAB_LOG_LEVEL"`

	// Format is text or json
	Format string `yaml:"format" env:"ENCOUNTERLAB_LOG_FORMAT"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		DataDir:  "./data/encounterlab",
		RulesDir: "./rules",
		Analysis: AnalysisConfig{
			BatchSize: analysis.DefaultBatchSize,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is non-empty) and the environment. The result is resolved but not
// validated; flags may still change it.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	if err := LoadFromEnv(cfg); err != nil {
		return nil, err
	}
	cfg.Resolve()
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file over the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return cfg, nil
}

// LoadFromEnv overrides cfg with ENCOUNTERLAB_* environment variables.
// Unset variables leave the current value in place.
func LoadFromEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Resolve fills paths derived from DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/encounterlab"
	}
	if c.DB == "" {
		c.DB = filepath.Join(c.DataDir, "encounterlab.db")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DB == "" {
		return fmt.Errorf("db is required")
	}
	if c.Analysis.BatchSize < 1 {
		return fmt.Errorf("analysis.batch_size must be at least 1, got %d", c.Analysis.BatchSize)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Log.Format)
	}
	return nil
}

// EnsureDirectories creates the directory holding the database.
func (c *Config) EnsureDirectories() error {
	dir := filepath.Dir(c.DB)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// ParseLevel maps a level name to its slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("invalid log level: %s (must be debug, info, warn or error)", name)
}
