package harness

import (
	"time"

	"github.com/roach88/rulecheck/internal/variant"
)

// Outcome is the result for one input.
type Outcome struct {
	Input string `json:"input"`
	State State  `json:"state"`

	// Policy is the comparison applied ("exact" or "subset"), empty for recompress suites.
	Policy string `json:"policy,omitempty"`

	// Final is the last artifact of the input's chain.
	Final string `json:"final,omitempty"`

	// Artifacts holds the canonicalized variant outputs.
	Artifacts map[variant.Variant]string `json:"artifacts,omitempty"`

	Duration time.Duration `json:"duration_ns"`

	// Error is the failure message for a Failed input.
	Error string `json:"error,omitempty"`

	err error
}

// Skipped reports whether the input never started because the run stopped first.
func (o Outcome) Skipped() bool {
	return o.State == StatePending
}

// Report summarizes a run.
type Report struct {
	RunID    string    `json:"run_id,omitempty"`
	Suite    string    `json:"suite"`
	Kind     string    `json:"kind"`
	Outcomes []Outcome `json:"outcomes"`
}

// Passed reports whether every input passed.
func (r *Report) Passed() bool {
	if len(r.Outcomes) == 0 {
		return false
	}
	for _, o := range r.Outcomes {
		if o.State != StatePassed {
			return false
		}
	}
	return true
}

// Counts returns the number of passed, failed and skipped inputs.
func (r *Report) Counts() (passed, failed, skipped int) {
	for _, o := range r.Outcomes {
		switch {
		case o.State == StatePassed:
			passed++
		case o.State == StateFailed:
			failed++
		case o.Skipped():
			skipped++
		}
	}
	return passed, failed, skipped
}
