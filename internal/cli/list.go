package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/encounterlab/internal/ir"
	"github.com/roach88/encounterlab/internal/store"
)

// ListOptions holds flags for the listing commands.
type ListOptions struct {
	*RootOptions
	Database  string
	Encounter string
}

type encounterList []store.EncounterSummary

func (l encounterList) renderText(w io.Writer) {
	if len(l) == 0 {
		fmt.Fprintln(w, "No encounters found in database.")
		return
	}
	for _, e := range l {
		fmt.Fprintf(w, "%s  %-4s %-28s %6d line(s)  %d member(s)\n",
			e.ID, e.ZoneID, e.ZoneName, e.LineCount, len(e.Party))
	}
}

type reportList []store.ReportSummary

func (l reportList) renderText(w io.Writer) {
	if len(l) == 0 {
		fmt.Fprintln(w, "No reports found in database.")
		return
	}
	for _, r := range l {
		fmt.Fprintf(w, "%s  %s  %s\n", r.RunID, r.EncounterID, r.Digest)
	}
}

// NewEncountersCommand creates the encounters command.
func NewEncountersCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "encounters",
		Short:         "List imported encounters",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(opts.RootOptions, cmd)
			st, err := openStore(opts, formatter)
			if err != nil {
				return err
			}
			defer st.Close()

			list, err := st.ListEncounters(cmd.Context())
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to list encounters", err)
			}
			return formatter.Success(encounterList(list))
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	return cmd
}

// NewReportsCommand creates the reports command group.
func NewReportsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Inspect stored analysis reports",
	}
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database")

	list := &cobra.Command{
		Use:           "list",
		Short:         "List stored reports",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(opts.RootOptions, cmd)
			st, err := openStore(opts, formatter)
			if err != nil {
				return err
			}
			defer st.Close()

			list, err := st.ListReports(cmd.Context(), opts.Encounter)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to list reports", err)
			}
			return formatter.Success(reportList(list))
		},
	}
	list.Flags().StringVar(&opts.Encounter, "encounter", "", "only reports for this encounter")

	show := &cobra.Command{
		Use:           "show <run-id>",
		Short:         "Print a stored report as canonical JSON",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(opts.RootOptions, cmd)
			st, err := openStore(opts, formatter)
			if err != nil {
				return err
			}
			defer st.Close()

			report, err := st.ReadReport(cmd.Context(), args[0])
			if errors.Is(err, store.ErrNotFound) {
				return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("report %s not found", args[0]), nil)
			}
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to read report", err)
			}
			if formatter.Format == "json" {
				return formatter.Success(report.Body)
			}
			data, err := ir.MarshalIndent(report.Body)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to render report", err)
			}
			fmt.Fprintln(formatter.Writer, string(data))
			return nil
		},
	}

	cmd.AddCommand(list, show)
	return cmd
}

// openStore resolves the database path and opens it.
func openStore(opts *ListOptions, formatter *OutputFormatter) (*store.Store, error) {
	cfg, err := resolveConfig(opts.RootOptions, commandFlags{Database: opts.Database})
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.DB)
	if err != nil {
		return nil, formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to open database", err)
	}
	return st, nil
}
