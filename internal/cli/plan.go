package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/rulecheck/internal/harness"
	"github.com/roach88/rulecheck/internal/invoke"
	"github.com/roach88/rulecheck/internal/stage"
)

// PlanOptions holds flags for the plan command.
type PlanOptions struct {
	*RootOptions
	SuiteOptions
	SkipBuild bool
}

// PlannedCommand is one command line of a plan.
type PlannedCommand struct {
	Stage   string   `json:"stage"`
	Variant string   `json:"variant,omitempty"`
	Argv    []string `json:"argv"`
	Output  string   `json:"output"`
	Stdout  string   `json:"stdout"`
	Stderr  string   `json:"stderr"`

	// Replaces is set on canonicalizing commands: their output is renamed over this path.
	Replaces string `json:"replaces,omitempty"`
}

// PlannedInput lists the commands one input would run.
type PlannedInput struct {
	Input    string           `json:"input"`
	Source   string           `json:"source"`
	Policy   string           `json:"policy,omitempty"`
	Commands []PlannedCommand `json:"commands"`
}

// PlanResult is the JSON payload of the plan command.
type PlanResult struct {
	Suite  string         `json:"suite"`
	Kind   string         `json:"kind"`
	Build  []string       `json:"build,omitempty"`
	Inputs []PlannedInput `json:"inputs"`
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plan <flatten|recompress> [inputs...]",
		Short: "Print the commands a run would execute",
		Long: `Print every command line a run would execute, in order, without
running anything. Inputs are selected exactly as for the run commands.

Examples:
  rulecheck plan flatten tictactoe
  rulecheck plan recompress game.kif --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(opts, args[0], args[1:], cmd)
		},
	}
	addSuiteFlags(cmd, &opts.SuiteOptions)
	cmd.Flags().BoolVar(&opts.SkipBuild, "skip-build", false, "omit the suite's build command")
	return cmd
}

func runPlan(opts *PlanOptions, kindName string, names []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	kind, err := parseKind(kindName)
	if err != nil {
		return reportError(formatter, err)
	}
	s, err := opts.load(kind)
	if err != nil {
		return reportError(formatter, err)
	}
	h, err := harness.New(s, invoke.New(s.Timeout, nil), harness.Options{SkipBuild: opts.SkipBuild})
	if err != nil {
		return reportError(formatter, err)
	}
	build, plans, err := h.Plan(names)
	if err != nil {
		return reportError(formatter, err)
	}

	result := PlanResult{Suite: s.Name, Kind: string(s.Kind), Build: build, Inputs: []PlannedInput{}}
	for _, p := range plans {
		in := PlannedInput{Input: p.Input, Source: p.Source, Policy: p.Policy}
		for _, step := range p.Steps {
			in.Commands = append(in.Commands, plannedCommand(step))
		}
		for _, vp := range p.Variants {
			canon := plannedCommand(vp.Canonicalize)
			canon.Replaces = vp.Run.Output
			in.Commands = append(in.Commands, plannedCommand(vp.Run), canon)
		}
		result.Inputs = append(result.Inputs, in)
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	writePlanText(formatter.Writer, result)
	return nil
}

func plannedCommand(step stage.Step) PlannedCommand {
	return PlannedCommand{
		Stage:   step.Label,
		Variant: step.Variant,
		Argv:    step.Argv(),
		Output:  step.Output,
		Stdout:  step.Stdout,
		Stderr:  step.Stderr,
	}
}

// writePlanText prints one shell-like line per command.
func writePlanText(w io.Writer, result PlanResult) {
	fmt.Fprintf(w, "# suite %s (%s)\n", result.Suite, result.Kind)
	if len(result.Build) > 0 {
		fmt.Fprintf(w, "%s\n", invoke.Command{Argv: result.Build}.String())
	}
	for _, in := range result.Inputs {
		header := "# " + in.Input
		if in.Policy != "" {
			header += " [" + in.Policy + "]"
		}
		fmt.Fprintf(w, "\n%s\n", header)
		for _, c := range in.Commands {
			line := invoke.Command{Argv: c.Argv}.String()
			fmt.Fprintf(w, "%s > %s 2> %s\n", line, c.Stdout, c.Stderr)
			if c.Replaces != "" {
				fmt.Fprintf(w, "mv %s %s\n", c.Output, c.Replaces)
			}
		}
	}
	if len(result.Inputs) == 0 {
		fmt.Fprintln(w, "# no inputs")
	}
}
