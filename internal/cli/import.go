package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/encounterlab/internal/logline"
	"github.com/roach88/encounterlab/internal/store"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Database string
	ID       string
}

// ImportResult describes one imported capture.
type ImportResult struct {
	EncounterID string `json:"encounter_id"`
	Inserted    bool   `json:"inserted"`
	Zone        string `json:"zone"`
	Lines       int    `json:"lines"`
	Skipped     int    `json:"skipped"`
	Actors      int    `json:"actors"`
	Party       int    `json:"party"`
}

func (r ImportResult) renderText(w io.Writer) {
	if !r.Inserted {
		fmt.Fprintf(w, "Already imported as %s\n", r.EncounterID)
		return
	}
	fmt.Fprintf(w, "Imported %s\n", r.EncounterID)
	fmt.Fprintf(w, "  Zone:    %s\n", r.Zone)
	fmt.Fprintf(w, "  Lines:   %d (%d skipped)\n", r.Lines, r.Skipped)
	fmt.Fprintf(w, "  Actors:  %d\n", r.Actors)
	fmt.Fprintf(w, "  Party:   %d\n", r.Party)
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <capture-file>",
		Short: "Import a network log capture as an encounter",
		Long: `Parse a pipe-delimited network log capture and store it as an encounter.

Combatant state, the party list and the zone are extracted from the capture.
Importing the same capture twice is a no-op that reports the first id.

Examples:
  encounterlab import ./Network_26801_20260912.log
  encounterlab import ./pull.log --id windward-p1 --db ./lab.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().StringVar(&opts.ID, "id", "", "encounter id (default: generated UUIDv7)")

	return cmd
}

func runImport(opts *ImportOptions, path string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := resolveConfig(opts.RootOptions, commandFlags{Database: opts.Database})
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("cannot open capture %s", path), err)
	}
	defer f.Close()

	id := opts.ID
	if id == "" {
		u, err := uuid.NewV7()
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to generate encounter id", err)
		}
		id = u.String()
	}

	enc, stats, err := logline.Import(ctx, f, logline.Options{ID: id})
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeImportFailed, "failed to import capture", err)
	}
	formatter.VerboseLog("Parsed %d line(s), skipped %d", stats.Lines, stats.Skipped)

	if err := cfg.EnsureDirectories(); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "failed to create data directory", err)
	}
	st, err := store.Open(cfg.DB)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to open database", err)
	}
	defer st.Close()

	storedID, inserted, err := st.WriteEncounter(ctx, enc)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "failed to store encounter", err)
	}

	return formatter.Success(ImportResult{
		EncounterID: storedID,
		Inserted:    inserted,
		Zone:        enc.ZoneName(),
		Lines:       stats.Lines,
		Skipped:     stats.Skipped,
		Actors:      stats.Actors,
		Party:       len(enc.PartyMembers()),
	})
}
