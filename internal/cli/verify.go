package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/encounterlab/internal/analysis"
	"github.com/roach88/encounterlab/internal/ir"
	"github.com/roach88/encounterlab/internal/store"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Database  string
	RulesDir  string
	BatchSize int
}

// StoredCheck compares one stored report against the fresh digest.
type StoredCheck struct {
	RunID   string `json:"run_id"`
	Digest  string `json:"digest"`
	Matches bool   `json:"matches"`
}

// VerifyResult holds the determinism verdict for one encounter.
type VerifyResult struct {
	EncounterID   string        `json:"encounter_id"`
	RuleSetDigest string        `json:"rule_set_digest"`
	FirstDigest   string        `json:"first_digest"`
	SecondDigest  string        `json:"second_digest"`
	Deterministic bool          `json:"deterministic"`
	Stored        []StoredCheck `json:"stored"`
	Skipped       int           `json:"skipped"` // stored reports from other rules or engine versions
}

// Passed reports whether every comparison matched.
func (r VerifyResult) Passed() bool {
	if !r.Deterministic {
		return false
	}
	for _, s := range r.Stored {
		if !s.Matches {
			return false
		}
	}
	return true
}

func (r VerifyResult) renderText(w io.Writer) {
	mark := func(ok bool) string {
		if ok {
			return "✓"
		}
		return "✗"
	}
	fmt.Fprintf(w, "%s Encounter %s\n", mark(r.Passed()), r.EncounterID)
	fmt.Fprintf(w, "  %s Replay digest stable: %s\n", mark(r.Deterministic), r.FirstDigest)
	if !r.Deterministic {
		fmt.Fprintf(w, "      second run:         %s\n", r.SecondDigest)
	}
	for _, s := range r.Stored {
		fmt.Fprintf(w, "  %s Stored run %s\n", mark(s.Matches), s.RunID)
		if !s.Matches {
			fmt.Fprintf(w, "      stored digest:      %s\n", s.Digest)
		}
	}
	if r.Skipped > 0 {
		fmt.Fprintf(w, "  %d stored run(s) skipped (different rules or engine)\n", r.Skipped)
	}
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify <encounter-id>",
		Short: "Verify that analysis of an encounter is deterministic",
		Long: `Analyze a stored encounter twice and compare the report digests.

The second run replays one perspective per batch, so batch size is
checked as well. Stored reports produced with the same rule set and
engine version must share the fresh digest.

Exit codes:
  0 - All digests match
  1 - Determinism verification failed (digests differ)
  2 - Command error (encounter not found, invalid rules, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().StringVar(&opts.RulesDir, "rules", "", "directory of CUE rule sets")
	cmd.Flags().IntVar(&opts.BatchSize, "batch-size", 0, "perspectives replayed per batch in the first run")

	return cmd
}

func runVerify(opts *VerifyOptions, encounterID string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := resolveConfig(opts.RootOptions, commandFlags{
		Database:  opts.Database,
		RulesDir:  opts.RulesDir,
		BatchSize: opts.BatchSize,
	})
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.DB)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to open database", err)
	}
	defer st.Close()

	enc, first, err := prepareAnalysis(ctx, cfg, st, encounterID, formatter)
	if err != nil {
		return err
	}
	_, second, err := prepareAnalysis(ctx, cfg, st, encounterID, formatter, analysis.WithBatchSize(1))
	if err != nil {
		return err
	}

	r1, err := first.Analyze(ctx, enc)
	if err != nil {
		return failAnalysis(formatter, err)
	}
	r2, err := second.Analyze(ctx, enc)
	if err != nil {
		return failAnalysis(formatter, err)
	}

	result := VerifyResult{
		EncounterID:   encounterID,
		RuleSetDigest: r1.RuleSetDigest,
		FirstDigest:   r1.Digest,
		SecondDigest:  r2.Digest,
		Deterministic: r1.Digest == r2.Digest,
		Stored:        []StoredCheck{},
	}

	stored, err := st.ListReports(ctx, encounterID)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to list stored reports", err)
	}
	for _, s := range stored {
		if s.RuleSetDigest != r1.RuleSetDigest || s.EngineVersion != ir.EngineVersion || s.ReportVersion != ir.ReportVersion {
			result.Skipped++
			continue
		}
		result.Stored = append(result.Stored, StoredCheck{
			RunID:   s.RunID,
			Digest:  s.Digest,
			Matches: s.Digest == r1.Digest,
		})
	}

	if err := formatter.Success(result); err != nil {
		return err
	}
	if !result.Passed() {
		return NewExitError(ExitFailure, fmt.Sprintf("%s: encounter %s digests differ", ErrCodeMismatch, encounterID))
	}
	return nil
}
