package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/encounterlab/internal/analysis"
	"github.com/roach88/encounterlab/internal/config"
	"github.com/roach88/encounterlab/internal/encounter"
	"github.com/roach88/encounterlab/internal/gamedata"
	"github.com/roach88/encounterlab/internal/ir"
	"github.com/roach88/encounterlab/internal/rules"
	"github.com/roach88/encounterlab/internal/store"
)

// AnalyzeOptions holds flags for the analyze command.
type AnalyzeOptions struct {
	*RootOptions
	Database  string
	RulesDir  string
	BatchSize int
	Output    string
	DryRun    bool
}

// PerspectiveSummary is one member's line in an analysis summary.
type PerspectiveSummary struct {
	ActorID  string `json:"actor_id"`
	Job      string `json:"job"`
	Excluded bool   `json:"excluded"`
	Firings  int    `json:"firings"`
	Executed int    `json:"executed"`
	Pending  int    `json:"pending"`
}

// AnalyzeResult summarizes one analysis run.
type AnalyzeResult struct {
	RunID        string               `json:"run_id"`
	EncounterID  string               `json:"encounter_id"`
	Zone         string               `json:"zone"`
	RuleSetID    string               `json:"rule_set_id"`
	Digest       string               `json:"digest"`
	Stored       bool                 `json:"stored"`
	Output       string               `json:"output,omitempty"`
	Perspectives []PerspectiveSummary `json:"perspectives"`
}

func (r AnalyzeResult) renderText(w io.Writer) {
	fmt.Fprintf(w, "Run %s\n", r.RunID)
	fmt.Fprintf(w, "  Encounter: %s\n", r.EncounterID)
	fmt.Fprintf(w, "  Zone:      %s\n", r.Zone)
	ruleSet := r.RuleSetID
	if ruleSet == "" {
		ruleSet = "(none)"
	}
	fmt.Fprintf(w, "  Rule set:  %s\n", ruleSet)
	fmt.Fprintf(w, "  Digest:    %s\n", r.Digest)
	if r.Output != "" {
		fmt.Fprintf(w, "  Written:   %s\n", r.Output)
	}
	fmt.Fprintln(w)
	for _, p := range r.Perspectives {
		if p.Excluded {
			fmt.Fprintf(w, "  %-10s %-4s excluded\n", p.ActorID, p.Job)
			continue
		}
		fmt.Fprintf(w, "  %-10s %-4s %3d firing(s), %3d executed, %3d pending\n",
			p.ActorID, p.Job, p.Firings, p.Executed, p.Pending)
	}
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AnalyzeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "analyze <encounter-id>",
		Short: "Replay an encounter from every party member's perspective",
		Long: `Replay a stored encounter against the rule set for its zone, once per
party member, and store the resulting report.

Exit codes:
  0 - Analysis complete
  2 - Command error (encounter not found, invalid rules, replay aborted)

Examples:
  encounterlab analyze 0192c0de-... --rules ./rules
  encounterlab analyze windward-p1 --out report.json --dry-run`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().StringVar(&opts.RulesDir, "rules", "", "directory of CUE rule sets")
	cmd.Flags().IntVar(&opts.BatchSize, "batch-size", 0, "perspectives replayed per batch")
	cmd.Flags().StringVarP(&opts.Output, "out", "o", "", "write the canonical report JSON to this file")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "do not store the report")

	return cmd
}

func runAnalyze(opts *AnalyzeOptions, encounterID string, cmd *cobra.Command) error {
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

	enc, analyzer, err := prepareAnalysis(ctx, cfg, st, encounterID, formatter)
	if err != nil {
		return err
	}

	report, err := analyzer.Analyze(ctx, enc)
	if err != nil {
		return failAnalysis(formatter, err)
	}

	result := summarize(report)
	if !opts.DryRun {
		if err := st.WriteReport(ctx, report); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "failed to store report", err)
		}
		result.Stored = true
	}

	if opts.Output != "" {
		data, err := ir.MarshalIndent(report.Object())
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to render report", err)
		}
		if err := os.WriteFile(opts.Output, append(data, '\n'), 0644); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "failed to write report", err)
		}
		result.Output = opts.Output
	}

	return formatter.Success(result)
}

// prepareAnalysis reads the encounter and builds an analyzer over the
// configured rule sets. opts apply after the configured batch size.
func prepareAnalysis(ctx context.Context, cfg *config.Config, st *store.Store, encounterID string, formatter *OutputFormatter, opts ...analysis.Option) (*encounter.Encounter, *analysis.Analyzer, error) {
	enc, err := st.ReadEncounter(ctx, encounterID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("encounter %s not found", encounterID), nil)
	}
	if err != nil {
		return nil, nil, formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to read encounter", err)
	}

	catalog, err := rules.LoadDir(cfg.RulesDir)
	if err != nil {
		return nil, nil, formatter.Fail(ExitCommandError, ErrCodeRulesInvalid, fmt.Sprintf("failed to load rules from %s", cfg.RulesDir), err)
	}
	formatter.VerboseLog("Loaded %d rule set(s) from %s", len(catalog.RuleSets()), cfg.RulesDir)

	opts = append([]analysis.Option{analysis.WithBatchSize(cfg.Analysis.BatchSize)}, opts...)
	return enc, analysis.New(catalog, opts...), nil
}

// failAnalysis reports an aborted analysis.
func failAnalysis(formatter *OutputFormatter, err error) error {
	if errors.Is(err, context.Canceled) {
		return formatter.Fail(ExitCommandError, ErrCodeAnalyzeFailed, "analysis cancelled", err)
	}
	var unreachable *encounter.UnreachableError
	if errors.As(err, &unreachable) {
		return formatter.Fail(ExitCommandError, ErrCodeAnalyzeFailed, fmt.Sprintf("analysis aborted [%s]", unreachable.Code), err)
	}
	return formatter.Fail(ExitCommandError, ErrCodeAnalyzeFailed, "analysis failed", err)
}

// summarize builds the per-member summary of a report, sorted by actor id.
func summarize(report *analysis.Report) AnalyzeResult {
	result := AnalyzeResult{
		RunID:        report.RunID,
		EncounterID:  report.EncounterID,
		Zone:         fmt.Sprintf("%s (%s)", report.Zone.Name, gamedata.FormatZoneID(report.Zone.ID)),
		RuleSetID:    report.RuleSetID,
		Digest:       report.Digest,
		Perspectives: []PerspectiveSummary{},
	}
	for _, id := range report.Members() {
		p := report.Perspectives[id]
		job := p.InitialData.String("job")
		if job == "" {
			job = gamedata.JobByID(0)
		}
		sum := PerspectiveSummary{
			ActorID:  id,
			Job:      job,
			Excluded: p.Excluded,
			Firings:  len(p.Triggers),
			Pending:  len(p.Pending()),
		}
		for _, r := range p.Triggers {
			if r.Executed {
				sum.Executed++
			}
		}
		result.Perspectives = append(result.Perspectives, sum)
	}
	return result
}
