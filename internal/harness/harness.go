package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/rulecheck/internal/invoke"
	"github.com/roach88/rulecheck/internal/runner"
	"github.com/roach88/rulecheck/internal/stage"
	"github.com/roach88/rulecheck/internal/suite"
	"github.com/roach88/rulecheck/internal/verify"
)

// BuildLabel labels the build invocation in logs and failures.
const BuildLabel = "build"

// ErrMissingInput is wrapped by errors for selected inputs whose source file does not exist.
var ErrMissingInput = errors.New("input file not found")

// Recorder receives state transitions and artifacts as the run progresses.
type Recorder interface {
	Transition(ctx context.Context, input, state, message string) error
	Artifact(ctx context.Context, input, label, variant, path string) error
}

// Options configures a Harness.
type Options struct {
	// Jobs is the number of inputs run concurrently. Values below 1 mean 1.
	Jobs int

	// SkipBuild suppresses the suite's build command.
	SkipBuild bool

	// RunID is copied into the report.
	RunID string

	Recorder Recorder
	Logger   *slog.Logger
}

// Harness runs one suite.
type Harness struct {
	suite    *suite.Suite
	inv      *invoke.Invoker
	chain    *stage.Chain
	runner   *runner.Runner
	verifier *verify.Verifier
	recorder Recorder
	logger   *slog.Logger
	opts     Options
}

// New creates a Harness for s that runs every external command with inv.
func New(s *suite.Suite, inv *invoke.Invoker, opts Options) (*Harness, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Jobs < 1 {
		opts.Jobs = 1
	}

	h := &Harness{
		suite:    s,
		inv:      inv,
		chain:    stage.NewChain(inv),
		verifier: verify.New(logger),
		recorder: opts.Recorder,
		logger:   logger,
		opts:     opts,
	}
	if s.Kind == suite.KindFlatten {
		r, err := runner.New(h.chain, s, logger)
		if err != nil {
			return nil, err
		}
		h.runner = r
	}
	return h, nil
}

// Run executes the selected inputs (see suite.Select) and returns a report.
//
// The returned error is the first failure: a *invoke.StageFailure, a
// *verify.ComparisonFailure, or a configuration error. Configuration
// errors (unknown or missing inputs) are detected before any command
// runs and return a nil report.
func (h *Harness) Run(ctx context.Context, names []string) (*Report, error) {
	inputs, err := h.suite.Select(names)
	if err != nil {
		return nil, err
	}
	for _, in := range inputs {
		path := h.suite.SourcePath(in)
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%s: %w: %s", in.Name, ErrMissingInput, path)
		}
	}

	report := &Report{
		RunID:    h.opts.RunID,
		Suite:    h.suite.Name,
		Kind:     string(h.suite.Kind),
		Outcomes: make([]Outcome, len(inputs)),
	}
	for i, in := range inputs {
		report.Outcomes[i] = Outcome{Input: in.Name, State: StatePending}
		if in.Policy != 0 {
			report.Outcomes[i].Policy = in.Policy.String()
		}
	}

	if err := h.build(ctx); err != nil {
		return report, err
	}

	h.logger.Info("running suite", "suite", h.suite.Name, "inputs", len(inputs), "jobs", h.opts.Jobs)

	if h.opts.Jobs == 1 {
		for i, in := range inputs {
			if err := h.runInput(ctx, in, &report.Outcomes[i]); err != nil {
				return report, err
			}
		}
		return report, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.opts.Jobs)
	for i, in := range inputs {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			return h.runInput(gctx, in, &report.Outcomes[i])
		})
	}
	return report, g.Wait()
}

// build runs the suite's build command once.
func (h *Harness) build(ctx context.Context) error {
	if len(h.suite.Build) == 0 || h.opts.SkipBuild {
		return nil
	}
	capture := filepath.Join(h.suite.OutputDir, BuildLabel)
	if err := os.MkdirAll(h.suite.OutputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	h.logger.Info("building tools", "command", h.suite.Build)
	_, err := h.inv.RunOrAbort(ctx, invoke.Command{
		Argv:   h.suite.Build,
		Stdout: capture + stage.StdoutSuffix,
		Stderr: capture + stage.StderrSuffix,
		Stage:  BuildLabel,
	})
	return err
}

// runInput drives one input through the state machine, filling out.
func (h *Harness) runInput(ctx context.Context, in suite.Input, out *Outcome) error {
	start := time.Now()
	defer func() { out.Duration = time.Since(start) }()
	h.record(ctx, out.Input, StatePending, "")

	fail := func(err error) error {
		if invoke.IsTimeout(err) {
			h.logger.Warn("command exceeded timeout ceiling", "input", out.Input, "timeout", h.inv.Timeout())
		}
		out.err = err
		out.Error = err.Error()
		h.transition(ctx, out, StateFailed, err.Error())
		return err
	}

	steps, err := stage.Plan(h.suite.OutputDir, in.Name, h.suite.SourcePath(in), h.suite.Stages)
	if err != nil {
		return fail(err)
	}
	final, err := h.chain.Execute(ctx, steps)
	if err != nil {
		return fail(err)
	}
	for _, step := range steps {
		h.artifact(ctx, in.Name, step.Label, "", step.Output)
	}
	out.Final = final
	h.transition(ctx, out, StateChainBuilt, "")

	if h.runner == nil {
		h.transition(ctx, out, StatePassed, "")
		return nil
	}

	artifacts, err := h.runner.Run(ctx, in.Name, final, in.Variants)
	if err != nil {
		return fail(err)
	}
	for v, path := range artifacts {
		h.artifact(ctx, in.Name, h.suite.Flatten.Label, string(v), path)
	}
	out.Artifacts = artifacts
	h.transition(ctx, out, StateVariantsRun, "")

	if err := h.verifier.Verify(in.Policy, artifacts); err != nil {
		var cf *verify.ComparisonFailure
		if errors.As(err, &cf) && cf.Input == "" {
			cf.Input = in.Name
		}
		return fail(err)
	}
	h.transition(ctx, out, StateVerified, "")
	h.transition(ctx, out, StatePassed, "")
	return nil
}

// transition moves out to state, logging and recording it.
func (h *Harness) transition(ctx context.Context, out *Outcome, to State, message string) {
	if !CanTransition(out.State, to) {
		// Programming error; keep the run going with the state unchanged.
		h.logger.Error("illegal state transition", "input", out.Input, "from", out.State, "to", to)
		return
	}
	h.logger.Debug("state transition", "input", out.Input, "from", out.State, "to", to)
	out.State = to
	h.record(ctx, out.Input, to, message)
}

// record reports a state to the recorder. The run may already be canceled,
// so the write detaches from ctx.
func (h *Harness) record(ctx context.Context, input string, state State, message string) {
	if h.recorder == nil {
		return
	}
	if err := h.recorder.Transition(context.WithoutCancel(ctx), input, state.String(), message); err != nil {
		h.logger.Warn("ledger write failed", "input", input, "state", state, "error", err)
	}
}

func (h *Harness) artifact(ctx context.Context, input, label, variant, path string) {
	if h.recorder == nil {
		return
	}
	if err := h.recorder.Artifact(context.WithoutCancel(ctx), input, label, variant, path); err != nil {
		h.logger.Warn("ledger write failed", "input", input, "artifact", path, "error", err)
	}
}
