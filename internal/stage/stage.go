package stage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/roach88/rulecheck/internal/invoke"
)

// Capture file suffixes.
const (
	StdoutSuffix = ".stdout"
	StderrSuffix = ".stderr"
)

var labelRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Spec is one named step of a pipeline.
type Spec struct {
	// Label names the step and its artifact (e.g. "simplified").
	Label string

	// Template is the command run for this step.
	Template Template
}

// ValidateName checks that a label or input name is safe to use as a path element.
func ValidateName(name string) error {
	if !labelRe.MatchString(name) || name == "." || name == ".." {
		return fmt.Errorf("invalid name %q: must match %s", name, labelRe.String())
	}
	return nil
}

// Step is a fully planned invocation: a template plus concrete paths.
type Step struct {
	Subject  string
	Label    string
	Variant  string
	Input    string
	Output   string
	Stdout   string
	Stderr   string
	Template Template
}

// Argv renders the step's command line.
func (s Step) Argv() []string {
	return s.Template.Render(s.Input, s.Output)
}

// Command converts the step into an invocation.
func (s Step) Command() invoke.Command {
	return invoke.Command{
		Argv:    s.Argv(),
		Subject: s.Subject,
		Stdout:  s.Stdout,
		Stderr:  s.Stderr,
		Stage:   s.Label,
		Variant: s.Variant,
	}
}

// ArtifactPath returns the deterministic artifact path for (input, label, variant).
// An empty variant names a single-implementation stage.
func ArtifactPath(outDir, input, label, variant string) string {
	name := label
	if variant != "" {
		name = label + "." + variant
	}
	return filepath.Join(outDir, input, name)
}

// NewStep plans a single step reading from inputPath.
func NewStep(outDir, input, inputPath string, spec Spec, variant string) Step {
	out := ArtifactPath(outDir, input, spec.Label, variant)
	return Step{
		Subject:  input,
		Label:    spec.Label,
		Variant:  variant,
		Input:    inputPath,
		Output:   out,
		Stdout:   out + StdoutSuffix,
		Stderr:   out + StderrSuffix,
		Template: spec.Template,
	}
}

// Plan computes the chain of steps for one input without executing anything.
func Plan(outDir, input, initialPath string, specs []Spec) ([]Step, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("plan %s: no stages", input)
	}
	if err := ValidateName(input); err != nil {
		return nil, fmt.Errorf("plan: input: %w", err)
	}

	seen := make(map[string]bool, len(specs))
	steps := make([]Step, 0, len(specs))
	current := initialPath
	for i, spec := range specs {
		if err := ValidateName(spec.Label); err != nil {
			return nil, fmt.Errorf("plan %s: stage %d: %w", input, i, err)
		}
		if seen[spec.Label] {
			return nil, fmt.Errorf("plan %s: duplicate stage label %q", input, spec.Label)
		}
		if spec.Template.IsZero() {
			return nil, fmt.Errorf("plan %s: stage %q has no command", input, spec.Label)
		}
		seen[spec.Label] = true

		step := NewStep(outDir, input, current, spec, "")
		steps = append(steps, step)
		current = step.Output
	}
	return steps, nil
}

// Chain executes planned steps in order.
type Chain struct {
	inv *invoke.Invoker
}

// NewChain creates a Chain that runs steps with inv.
func NewChain(inv *invoke.Invoker) *Chain {
	return &Chain{inv: inv}
}

// Execute runs each step with RunOrAbort and returns the final artifact path.
// The first failing step stops the chain.
func (c *Chain) Execute(ctx context.Context, steps []Step) (string, error) {
	if len(steps) == 0 {
		return "", fmt.Errorf("execute: empty chain")
	}
	for _, step := range steps {
		if err := c.RunStep(ctx, step); err != nil {
			return "", err
		}
	}
	return steps[len(steps)-1].Output, nil
}

// RunStep runs a single planned step, creating its output directory first.
func (c *Chain) RunStep(ctx context.Context, step Step) error {
	if err := os.MkdirAll(filepath.Dir(step.Output), 0755); err != nil {
		return fmt.Errorf("create output directory for %s: %w", step.Label, err)
	}
	_, err := c.inv.RunOrAbort(ctx, step.Command())
	return err
}
