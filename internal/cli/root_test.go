package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/encounterlab/internal/config"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "encounterlab", cmd.Use)
	assert.Contains(t, cmd.Long, "perspective")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"import"},
		{"analyze"},
		{"verify"},
		{"rules", "validate"},
		{"rules", "list"},
		{"encounters"},
		{"reports", "list"},
		{"reports", "show"},
	}

	for _, path := range commands {
		t.Run(path[len(path)-1], func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, path[len(path)-1], subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
}

func TestAnalyzeCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	analyzeCmd, _, err := cmd.Find([]string{"analyze"})
	require.NoError(t, err)

	for _, name := range []string{"db", "rules", "batch-size", "out", "dry-run"} {
		assert.NotNil(t, analyzeCmd.Flags().Lookup(name), name)
	}
	assert.Equal(t, "o", analyzeCmd.Flags().Lookup("out").Shorthand)
}

func TestInvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"encounters", "--format", "xml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestNewLogger(t *testing.T) {
	buf := &bytes.Buffer{}

	logger, err := newLogger(buf, config.LogConfig{Level: "warn", Format: "json"}, false)
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown", "actor", "10FF0001")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"actor":"10FF0001"`)

	buf.Reset()
	logger, err = newLogger(buf, config.LogConfig{Level: "error", Format: "text"}, true)
	require.NoError(t, err)
	logger.Debug("verbose forces debug")
	assert.Contains(t, buf.String(), "verbose forces debug")

	_, err = newLogger(buf, config.LogConfig{Level: "chatty"}, false)
	assert.Error(t, err)
	_, err = newLogger(buf, config.LogConfig{Level: "info", Format: "xml"}, false)
	assert.Error(t, err)
}

func TestResolveConfig_FlagsOverride(t *testing.T) {
	t.Setenv("ENCOUNTERLAB_DB", "/tmp/env.db")
	t.Setenv("ENCOUNTERLAB_BATCH_SIZE", "5")

	cfg, err := resolveConfig(&RootOptions{}, commandFlags{})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/env.db", cfg.DB)
	assert.Equal(t, 5, cfg.Analysis.BatchSize)

	cfg, err = resolveConfig(&RootOptions{}, commandFlags{Database: "/tmp/flag.db", BatchSize: 2, RulesDir: "r"})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/flag.db", cfg.DB)
	assert.Equal(t, 2, cfg.Analysis.BatchSize)
	assert.Equal(t, "r", cfg.RulesDir)

	_, err = resolveConfig(&RootOptions{}, commandFlags{BatchSize: -1})
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
