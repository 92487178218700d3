package suite

import (
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"time"

	"github.com/roach88/rulecheck/internal/stage"
	"github.com/roach88/rulecheck/internal/variant"
	"github.com/roach88/rulecheck/internal/verify"
)

// Kind distinguishes the two shapes of suite.
type Kind string

const (
	// KindFlatten runs an upstream chain, several implementations of one
	// stage, and a differential comparison.
	KindFlatten Kind = "flatten"

	// KindRecompress runs a single chain per input with no comparison.
	KindRecompress Kind = "recompress"
)

// DefaultFlattenLabel is the stage label used for variant artifacts.
const DefaultFlattenLabel = "flattened"

// Input is one test case.
type Input struct {
	// Name identifies the input and names its output directory.
	Name string

	// Variants lists the implementations to run. Empty for recompress suites.
	Variants variant.Set

	// Policy is the comparison policy implied by Variants (flatten suites only).
	Policy verify.Policy
}

// Flatten describes the compared stage of a flatten suite.
type Flatten struct {
	// Label names the variant artifacts ("<label>.<variant>").
	Label string

	// Canonicalize is the reprint command applied to each variant's output.
	Canonicalize stage.Template

	// Variants maps each implementation to its command.
	Variants map[variant.Variant]stage.Template
}

// Suite is a validated, read-only test table.
type Suite struct {
	Name      string
	Kind      Kind
	InputDir  string
	OutputDir string

	// Extension is appended to an input name to find its source file.
	Extension string

	// Build is run once before any input, when non-empty.
	Build []string

	// Timeout is the ceiling for every invocation; zero selects the invoker default.
	Timeout time.Duration

	// Stages is the upstream chain (flatten) or the full chain (recompress).
	Stages []stage.Spec

	// Flatten is set for flatten suites only.
	Flatten *Flatten

	// Inputs is the declared table, in declaration order.
	Inputs []Input
}

// SourcePath returns the path of the input's source file.
func (s *Suite) SourcePath(in Input) string {
	return filepath.Join(s.InputDir, in.Name+s.Extension)
}

// Select restricts the table to the named inputs, preserving table order.
//
// For flatten suites an empty selection keeps the full table and unknown
// names are rejected. Recompress suites have no fixed table: every name
// becomes an input, and at least one is required.
func (s *Suite) Select(names []string) ([]Input, error) {
	if s.Kind == KindRecompress {
		return s.selectAdHoc(names)
	}
	if len(names) == 0 {
		return slices.Clone(s.Inputs), nil
	}

	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []Input
	for _, in := range s.Inputs {
		if want[in.Name] {
			out = append(out, in)
			delete(want, in.Name)
		}
	}
	if len(want) > 0 {
		unknown := slices.Sorted(maps.Keys(want))
		return nil, fmt.Errorf("unknown input(s) %v in suite %s", unknown, s.Name)
	}
	return out, nil
}

func (s *Suite) selectAdHoc(names []string) ([]Input, error) {
	if len(names) == 0 {
		if len(s.Inputs) == 0 {
			return nil, fmt.Errorf("no inputs provided for suite %s", s.Name)
		}
		return slices.Clone(s.Inputs), nil
	}
	seen := make(map[string]bool, len(names))
	out := make([]Input, 0, len(names))
	for _, n := range names {
		if err := stage.ValidateName(n); err != nil {
			return nil, fmt.Errorf("input: %w", err)
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, Input{Name: n})
	}
	return out, nil
}

// VariantTemplate returns the command for v, or an error if the suite has none.
func (s *Suite) VariantTemplate(v variant.Variant) (stage.Template, error) {
	if s.Flatten == nil {
		return stage.Template{}, fmt.Errorf("suite %s has no compared stage", s.Name)
	}
	t, ok := s.Flatten.Variants[v]
	if !ok {
		return stage.Template{}, fmt.Errorf("suite %s has no command for variant %s", s.Name, v)
	}
	return t, nil
}
