package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/rulecheck/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Limit    int
	Compare  string // run ID to diff the selected run against
}

// RunSummary is one row of the run list.
type RunSummary struct {
	ID      string `json:"id"`
	Started string `json:"started,omitempty"`
	Suite   string `json:"suite"`
	Kind    string `json:"kind"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// RunDetail is the JSON payload of `history <run-id>`.
type RunDetail struct {
	Run         RunSummary           `json:"run"`
	Transitions []store.Transition   `json:"transitions"`
	Artifacts   []store.Artifact     `json:"artifacts"`
	Changes     []store.DigestChange `json:"changes,omitempty"`
	ComparedTo  string               `json:"compared_to,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded runs",
		Long: `Show runs recorded in a ledger.

Without arguments, lists recent runs. With a run ID, shows the run's input
transitions and artifact digests. With --compare, lists artifacts whose
digests differ between the two runs; deterministic tools on unchanged
inputs produce no differences.

Examples:
  rulecheck history --db ./runs.db
  rulecheck history --db ./runs.db 0190c0de-...
  rulecheck history --db ./runs.db 0190c0de-... --compare 0190bfaa-...`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := ""
			if len(args) == 1 {
				runID = args[0]
			}
			return runHistory(opts, runID, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite ledger (required)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "number of runs to list (0 for all)")
	cmd.Flags().StringVar(&opts.Compare, "compare", "", "diff artifact digests against this run")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runHistory(opts *HistoryOptions, runID string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	// Opening would create an empty ledger; history never writes.
	if _, err := os.Stat(opts.Database); err != nil {
		return reportLedgerError(formatter, fmt.Errorf("ledger not found: %s", opts.Database))
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return reportLedgerError(formatter, err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if runID == "" {
		if opts.Compare != "" {
			return reportError(formatter, errors.New("--compare needs a run ID"))
		}
		runs, err := st.ListRuns(ctx, opts.Limit)
		if err != nil {
			return reportLedgerError(formatter, err)
		}
		summaries := make([]RunSummary, len(runs))
		for i, r := range runs {
			summaries[i] = summarize(r)
		}
		if formatter.Format == "json" {
			return formatter.Success(summaries)
		}
		if len(summaries) == 0 {
			fmt.Fprintln(formatter.Writer, "No runs recorded.")
			return nil
		}
		for _, s := range summaries {
			fmt.Fprintf(formatter.Writer, "%s  %-7s  %-10s  %s  %s\n", s.ID, s.Status, s.Kind, s.Suite, s.Started)
		}
		return nil
	}

	detail, err := readDetail(cmd, st, runID, opts.Compare)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return reportError(formatter, err)
		}
		return reportLedgerError(formatter, err)
	}
	if formatter.Format == "json" {
		return formatter.Success(detail)
	}
	writeDetailText(formatter, detail)
	return nil
}

func readDetail(cmd *cobra.Command, st *store.Store, runID, compare string) (*RunDetail, error) {
	ctx := cmd.Context()
	run, err := st.ReadRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	transitions, err := st.ReadTransitions(ctx, runID)
	if err != nil {
		return nil, err
	}
	artifacts, err := st.ReadArtifacts(ctx, runID)
	if err != nil {
		return nil, err
	}
	detail := &RunDetail{Run: summarize(run), Transitions: transitions, Artifacts: artifacts}
	if compare != "" {
		if _, err := st.ReadRun(ctx, compare); err != nil {
			return nil, err
		}
		detail.Changes, err = st.CompareArtifacts(ctx, compare, runID)
		if err != nil {
			return nil, err
		}
		detail.ComparedTo = compare
	}
	return detail, nil
}

func summarize(r store.Run) RunSummary {
	s := RunSummary{ID: r.ID, Suite: r.Suite, Kind: r.Kind, Status: r.Status, Message: r.Message}
	if t, ok := store.RunTime(r.ID); ok {
		s.Started = t.Format("2006-01-02T15:04:05Z")
	}
	return s
}

func writeDetailText(f *OutputFormatter, d *RunDetail) {
	w := f.Writer
	fmt.Fprintf(w, "run %s (%s, %s): %s\n", d.Run.ID, d.Run.Suite, d.Run.Kind, d.Run.Status)
	if d.Run.Message != "" {
		fmt.Fprintf(w, "  %s\n", d.Run.Message)
	}

	fmt.Fprintln(w, "\nTransitions:")
	for _, t := range d.Transitions {
		fmt.Fprintf(w, "  %4d  %-20s %s\n", t.Seq, t.Input, t.State)
	}

	fmt.Fprintln(w, "\nArtifacts:")
	for _, a := range d.Artifacts {
		fmt.Fprintf(w, "  %s  %s\n", a.SHA256, a.Key())
	}

	if d.ComparedTo != "" {
		fmt.Fprintf(w, "\nCompared to %s:\n", d.ComparedTo)
		if len(d.Changes) == 0 {
			fmt.Fprintln(w, "  all artifacts identical")
		}
		for _, c := range d.Changes {
			fmt.Fprintf(w, "  %s  %s -> %s\n", c.Key, orNone(c.Before), orNone(c.After))
		}
	}
}

func orNone(digest string) string {
	if digest == "" {
		return "(none)"
	}
	return digest
}

func reportLedgerError(f *OutputFormatter, err error) error {
	_ = f.Error(ErrCodeLedger, err.Error(), nil)
	return &ExitError{Code: ExitCommandError, Message: ErrCodeLedger, Err: err, reported: true}
}
