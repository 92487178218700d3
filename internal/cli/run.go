package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/rulecheck/internal/harness"
	"github.com/roach88/rulecheck/internal/invoke"
	"github.com/roach88/rulecheck/internal/store"
	"github.com/roach88/rulecheck/internal/suite"
)

// SuccessMarker is printed once every input has passed.
const SuccessMarker = "GOOD"

// RunOptions holds flags for the flatten and recompress commands.
type RunOptions struct {
	*RootOptions
	SuiteOptions

	Database  string
	Jobs      int
	Timeout   time.Duration
	SkipBuild bool

	// IDGenerator overrides run ID generation (for testing).
	// If nil, defaults to store.UUIDv7Generator.
	IDGenerator store.IDGenerator
}

// RunResult is the JSON payload of a successful run.
type RunResult struct {
	RunID  string            `json:"run_id,omitempty"`
	Suite  string            `json:"suite"`
	Kind   string            `json:"kind"`
	Inputs []harness.Outcome `json:"inputs"`
}

// NewFlattenCommand creates the flatten command.
func NewFlattenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "flatten [inputs...]",
		Short: "Run the flattener suite",
		Long: `Run the flattener differential suite.

Each input is simplified and reprinted once, then every requested flattener
variant runs on the same upstream artifact. Outputs are reprinted into
canonical form and compared: debug and optimized must match exactly, and
when the reference flattener runs, optimized must be contained in it.

With no arguments every input in the suite runs, in table order.

Exit codes:
  0 - All inputs passed
  1 - A command failed or two outputs disagree
  2 - Usage or configuration error

Examples:
  rulecheck flatten
  rulecheck flatten tictactoe connect4 --jobs 2
  rulecheck flatten --suite ./suite.cue --db ./runs.db --format json`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuite(opts, suite.KindFlatten, args, cmd)
		},
	}
	addRunFlags(cmd, opts)
	return cmd
}

// NewRecompressCommand creates the recompress command.
func NewRecompressCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "recompress <inputs...>",
		Short: "Run the recompressor chain",
		Long: `Run the recompressor chain on the named inputs.

Each input is threaded through simplify, reprint, flatten, reprint and
recompress. There is no comparison: an input passes when every command
exits zero. At least one input must be named.

Examples:
  rulecheck recompress tictactoe.kif
  rulecheck recompress a.kif b.kif --timeout 10m`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuite(opts, suite.KindRecompress, args, cmd)
		},
	}
	addRunFlags(cmd, opts)
	return cmd
}

func addRunFlags(cmd *cobra.Command, opts *RunOptions) {
	addSuiteFlags(cmd, &opts.SuiteOptions)
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run in this SQLite ledger")
	cmd.Flags().IntVarP(&opts.Jobs, "jobs", "j", 1, "number of inputs to run concurrently")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "timeout for every command (default from suite)")
	cmd.Flags().BoolVar(&opts.SkipBuild, "skip-build", false, "do not run the suite's build command")
}

func runSuite(opts *RunOptions, kind suite.Kind, names []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: logLevel}))

	if opts.Jobs < 1 {
		return reportError(formatter, fmt.Errorf("--jobs must be at least 1, got %d", opts.Jobs))
	}
	if opts.Timeout < 0 {
		return reportError(formatter, fmt.Errorf("--timeout must be positive, got %s", opts.Timeout))
	}

	s, err := opts.load(kind)
	if err != nil {
		return reportError(formatter, err)
	}
	if opts.Timeout > 0 {
		s.Timeout = opts.Timeout
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, stopping run", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	inv := invoke.New(s.Timeout, logger)
	hopts := harness.Options{Jobs: opts.Jobs, SkipBuild: opts.SkipBuild, Logger: logger}

	var ledger *store.Ledger
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return reportLedgerError(formatter, err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing ledger", "error", closeErr)
			}
		}()

		gen := opts.IDGenerator
		if gen == nil {
			gen = store.UUIDv7Generator{}
		}
		ledger = store.NewLedger(st, gen.Generate(), nil, logger)
		if err := ledger.Begin(ctx, s.Name, string(s.Kind)); err != nil {
			return reportLedgerError(formatter, err)
		}
		inv = inv.WithObserver(ledger)
		hopts.Recorder = ledger
		hopts.RunID = ledger.RunID()
		logger.Info("recording run", "run", ledger.RunID(), "db", opts.Database)
	}

	h, err := harness.New(s, inv, hopts)
	if err != nil {
		return reportError(formatter, err)
	}

	report, runErr := h.Run(ctx, names)
	if report != nil {
		passed, failed, skipped := report.Counts()
		logger.Debug("run finished", "suite", s.Name, "passed", passed, "failed", failed, "skipped", skipped)
	}

	if ledger != nil {
		msg := ""
		if runErr != nil {
			msg = runErr.Error()
		}
		if err := ledger.Finish(context.WithoutCancel(ctx), runErr == nil, msg); err != nil {
			logger.Warn("ledger write failed", "run", ledger.RunID(), "error", err)
		}
	}

	if runErr != nil {
		return reportError(formatter, runErr)
	}
	return outputRunSuccess(formatter, report)
}

func outputRunSuccess(f *OutputFormatter, report *harness.Report) error {
	// An empty report compared nothing and must not print the marker.
	if !report.Passed() {
		return reportError(f, fmt.Errorf("suite %s ran no inputs", report.Suite))
	}
	if f.Format == "json" {
		return f.Success(RunResult{
			RunID:  report.RunID,
			Suite:  report.Suite,
			Kind:   report.Kind,
			Inputs: report.Outcomes,
		})
	}

	for _, o := range report.Outcomes {
		if o.Policy != "" {
			fmt.Fprintf(f.Writer, "✓ %s (%s)\n", o.Input, o.Policy)
		} else {
			fmt.Fprintf(f.Writer, "✓ %s\n", o.Input)
		}
	}
	if report.RunID != "" {
		fmt.Fprintf(f.Writer, "run %s\n", report.RunID)
	}
	fmt.Fprintln(f.Writer, SuccessMarker)
	return nil
}
