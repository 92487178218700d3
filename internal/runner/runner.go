// Package runner runs every requested implementation of one logical stage
// against the same upstream artifact and canonicalizes each result.
package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/roach88/rulecheck/internal/stage"
	"github.com/roach88/rulecheck/internal/suite"
	"github.com/roach88/rulecheck/internal/variant"
)

// canonicalSuffix marks the temporary reprint output before it replaces the raw artifact.
const canonicalSuffix = ".canonical"

// Artifacts maps each variant to its canonicalized artifact path.
type Artifacts map[variant.Variant]string

// VariantPlan holds the two steps run for one variant.
type VariantPlan struct {
	Variant variant.Variant

	// Run executes the implementation on the upstream artifact.
	Run stage.Step

	// Canonicalize reprints Run's output into a temporary file, which then
	// replaces Run's output in place.
	Canonicalize stage.Step
}

// Runner executes the compared stage of a flatten suite.
type Runner struct {
	chain   *stage.Chain
	suite   *suite.Suite
	outDir  string
	flatten *suite.Flatten
	logger  *slog.Logger
}

// New creates a Runner for the compared stage of s.
func New(chain *stage.Chain, s *suite.Suite, logger *slog.Logger) (*Runner, error) {
	if s.Flatten == nil {
		return nil, fmt.Errorf("suite %s has no compared stage", s.Name)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{chain: chain, suite: s, outDir: s.OutputDir, flatten: s.Flatten, logger: logger}, nil
}

// Plan computes the steps for each requested variant without running anything.
// Variants are planned in canonical order.
func (r *Runner) Plan(input, upstream string, set variant.Set) ([]VariantPlan, error) {
	if len(set) == 0 {
		return nil, fmt.Errorf("plan %s: no variants requested", input)
	}
	plans := make([]VariantPlan, 0, len(set))
	for _, v := range variant.NewSet(set...) {
		tmpl, err := r.suite.VariantTemplate(v)
		if err != nil {
			return nil, fmt.Errorf("plan %s: %w", input, err)
		}
		run := stage.NewStep(r.outDir, input, upstream, stage.Spec{Label: r.flatten.Label, Template: tmpl}, string(v))

		canonical := run.Output + canonicalSuffix
		reprint := stage.Step{
			Subject:  input,
			Label:    r.flatten.Label + canonicalSuffix,
			Variant:  string(v),
			Input:    run.Output,
			Output:   canonical,
			Stdout:   canonical + stage.StdoutSuffix,
			Stderr:   canonical + stage.StderrSuffix,
			Template: r.flatten.Canonicalize,
		}
		plans = append(plans, VariantPlan{Variant: v, Run: run, Canonicalize: reprint})
	}
	return plans, nil
}

// Run executes every requested variant against upstream and returns the
// canonicalized artifacts. The first failing invocation aborts the run.
func (r *Runner) Run(ctx context.Context, input, upstream string, set variant.Set) (Artifacts, error) {
	plans, err := r.Plan(input, upstream, set)
	if err != nil {
		return nil, err
	}

	artifacts := make(Artifacts, len(plans))
	for _, p := range plans {
		r.logger.Info("running variant", "input", input, "variant", p.Variant)
		if err := r.chain.RunStep(ctx, p.Run); err != nil {
			return nil, err
		}
		if err := r.chain.RunStep(ctx, p.Canonicalize); err != nil {
			return nil, err
		}
		if err := os.Rename(p.Canonicalize.Output, p.Run.Output); err != nil {
			return nil, fmt.Errorf("replace %s with canonical form: %w", p.Run.Output, err)
		}
		artifacts[p.Variant] = p.Run.Output
	}
	return artifacts, nil
}
