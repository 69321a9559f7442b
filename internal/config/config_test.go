package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resolve()

	assert.Equal(t, 24, cfg.Analysis.BatchSize)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, filepath.Join("data", "encounterlab", "encounterlab.db"), filepath.Clean(cfg.DB))
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, "encounterlab.yaml", `
db: /tmp/lab.db
rules_dir: ./my-rules
analysis:
  batch_size: 8
log:
  level: debug
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/lab.db", cfg.DB)
	assert.Equal(t, "./my-rules", cfg.RulesDir)
	assert.Equal(t, 8, cfg.Analysis.BatchSize)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format, "unset keys keep their defaults")
}

func TestLoadFromFile_Errors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadFromFile(writeConfig(t, "config.toml", "db = 'x'"))
	assert.ErrorContains(t, err, "unsupported config file format")

	_, err = LoadFromFile(writeConfig(t, "bad.yaml", "analysis: [1, 2"))
	assert.ErrorContains(t, err, "failed to parse YAML config")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "encounterlab.yml", `
db: /tmp/from-file.db
analysis:
  batch_size: 8
`)
	t.Setenv("ENCOUNTERLAB_DB", "/tmp/from-env.db")
	t.Setenv("ENCOUNTERLAB_BATCH_SIZE", "3")
	t.Setenv("ENCOUNTERLAB_LOG_FORMAT", "json")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/from-env.db", cfg.DB)
	assert.Equal(t, 3, cfg.Analysis.BatchSize)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_DataDirDerivesDB(t *testing.T) {
	t.Setenv("ENCOUNTERLAB_DATA_DIR", "/var/lib/lab")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/lab/encounterlab.db", cfg.DB)
}

func TestLoad_BadEnv(t *testing.T) {
	t.Setenv("ENCOUNTERLAB_BATCH_SIZE", "lots")

	_, err := Load("")
	assert.ErrorContains(t, err, "parse env")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero batch", func(c *Config) { c.Analysis.BatchSize = 0 }, "batch_size"},
		{"negative batch", func(c *Config) { c.Analysis.BatchSize = -4 }, "batch_size"},
		{"unknown level", func(c *Config) { c.Log.Level = "chatty" }, "invalid log level"},
		{"unknown format", func(c *Config) { c.Log.Format = "xml" }, "invalid log format"},
		{"no db", func(c *Config) { c.DB = "" }, "db is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Resolve()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestParseLevel(t *testing.T) {
	for name, want := range map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	} {
		got, err := ParseLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
}

func TestEnsureDirectories(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DB = filepath.Join(t.TempDir(), "nested", "dir", "lab.db")

	require.NoError(t, cfg.EnsureDirectories())
	info, err := os.Stat(filepath.Dir(cfg.DB))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
