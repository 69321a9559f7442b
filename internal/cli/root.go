package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/encounterlab/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the encounterlab CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "encounterlab",
		Short: "encounterlab - encounter trigger replay",
		Long: `Replay recorded combat encounters against trigger rule sets from the
perspective of every party member, and report what fired and when.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load config", err)
			}
			logger, err := newLogger(cmd.ErrOrStderr(), cfg.Log, opts.Verbose)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid log config", err)
			}
			slog.SetDefault(logger)
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML config file")

	// Add subcommands
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewAnalyzeCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewRulesCommand(opts))
	cmd.AddCommand(NewEncountersCommand(opts))
	cmd.AddCommand(NewReportsCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// newLogger builds the process logger. Verbose forces debug level.
func newLogger(w io.Writer, lc config.LogConfig, verbose bool) (*slog.Logger, error) {
	level, err := config.ParseLevel(lc.Level)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	switch lc.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, handlerOpts)), nil
	}
	return nil, fmt.Errorf("invalid log format: %s", lc.Format)
}

// commandFlags are the per-command overrides of the loaded config.
// Zero values leave the config untouched.
type commandFlags struct {
	Database  string
	RulesDir  string
	BatchSize int
}

// resolveConfig loads the config file and environment, then applies flags.
func resolveConfig(opts *RootOptions, flags commandFlags) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if flags.Database != "" {
		cfg.DB = flags.Database
	}
	if flags.RulesDir != "" {
		cfg.RulesDir = flags.RulesDir
	}
	if flags.BatchSize != 0 {
		cfg.Analysis.BatchSize = flags.BatchSize
	}
	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}
	return cfg, nil
}

// newFormatter builds the output formatter for a command.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}
