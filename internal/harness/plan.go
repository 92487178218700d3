package harness

import (
	"github.com/roach88/rulecheck/internal/runner"
	"github.com/roach88/rulecheck/internal/stage"
)

// InputPlan is the full set of invocations one input would perform.
type InputPlan struct {
	Input    string
	Source   string
	Policy   string
	Steps    []stage.Step
	Variants []runner.VariantPlan
}

// Plan computes every invocation Run would perform for the selected
// inputs, without executing anything or touching the filesystem.
// The build command, if any, is returned separately.
func (h *Harness) Plan(names []string) (build []string, plans []InputPlan, err error) {
	inputs, err := h.suite.Select(names)
	if err != nil {
		return nil, nil, err
	}
	if !h.opts.SkipBuild {
		build = h.suite.Build
	}

	for _, in := range inputs {
		source := h.suite.SourcePath(in)
		steps, err := stage.Plan(h.suite.OutputDir, in.Name, source, h.suite.Stages)
		if err != nil {
			return nil, nil, err
		}
		p := InputPlan{Input: in.Name, Source: source, Steps: steps}
		if h.runner != nil {
			p.Policy = in.Policy.String()
			p.Variants, err = h.runner.Plan(in.Name, steps[len(steps)-1].Output, in.Variants)
			if err != nil {
				return nil, nil, err
			}
		}
		plans = append(plans, p)
	}
	return build, plans, nil
}
