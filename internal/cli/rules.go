package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/encounterlab/internal/gamedata"
	"github.com/roach88/encounterlab/internal/rules"
)

// RulesOptions holds flags for the rules commands.
type RulesOptions struct {
	*RootOptions
	RulesDir string
}

// RuleSetSummary describes one compiled rule set.
type RuleSetSummary struct {
	ID       string   `json:"id"`
	Zones    []string `json:"zones"`
	Triggers int      `json:"triggers"`
	Timeline int      `json:"timeline"`
	Digest   string   `json:"digest"`
}

// RulesResult lists the rule sets found in a directory.
type RulesResult struct {
	Dir      string           `json:"dir"`
	Valid    bool             `json:"valid"`
	RuleSets []RuleSetSummary `json:"rule_sets"`
}

func (r RulesResult) renderText(w io.Writer) {
	if len(r.RuleSets) == 0 {
		fmt.Fprintf(w, "No rule sets found in %s.\n", r.Dir)
		return
	}
	fmt.Fprintf(w, "✓ %d rule set(s) valid in %s\n", len(r.RuleSets), r.Dir)
	for _, rs := range r.RuleSets {
		fmt.Fprintf(w, "  %-20s zones %v, %d trigger(s), %d timeline entr(ies)\n",
			rs.ID, rs.Zones, rs.Triggers, rs.Timeline)
	}
}

// NewRulesCommand creates the rules command group.
func NewRulesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RulesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect trigger rule sets",
	}
	cmd.PersistentFlags().StringVar(&opts.RulesDir, "rules", "", "directory of CUE rule sets")

	validate := &cobra.Command{
		Use:   "validate [rules-dir]",
		Short: "Compile and validate rule sets",
		Long: `Compile every rule set in a CUE package and run the rule checks:
regex patterns, templates, data operations, Lua scripts and timeline syncs.

Exit codes:
  0 - All rule sets valid
  1 - Validation failed
  2 - Command error (directory not found, etc.)`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRules(opts, args, cmd)
		},
	}

	list := &cobra.Command{
		Use:           "list [rules-dir]",
		Short:         "List rule sets with their zones and digests",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRules(opts, args, cmd)
		},
	}

	cmd.AddCommand(validate, list)
	return cmd
}

func runRules(opts *RulesOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	dir := opts.RulesDir
	if len(args) == 1 {
		dir = args[0]
	}
	cfg, err := resolveConfig(opts.RootOptions, commandFlags{RulesDir: dir})
	if err != nil {
		return err
	}

	catalog, err := rules.LoadDir(cfg.RulesDir)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeRulesInvalid, fmt.Sprintf("rules in %s are invalid", cfg.RulesDir), err)
	}

	result := RulesResult{Dir: cfg.RulesDir, Valid: true, RuleSets: []RuleSetSummary{}}
	for _, rs := range catalog.RuleSets() {
		digest, err := rules.Digest(rs)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to digest rule set", err)
		}
		zones := make([]string, 0, len(rs.ZoneIDs))
		for _, z := range rs.ZoneIDs {
			zones = append(zones, gamedata.FormatZoneID(z))
		}
		formatter.VerboseLog("Compiled rule set %s", rs.ID)
		result.RuleSets = append(result.RuleSets, RuleSetSummary{
			ID:       rs.ID,
			Zones:    zones,
			Triggers: len(rs.Triggers),
			Timeline: len(rs.Timeline),
			Digest:   digest,
		})
	}
	return formatter.Success(result)
}
