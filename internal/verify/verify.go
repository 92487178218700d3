package verify

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/rulecheck/internal/variant"
)

// Policy selects how artifacts are compared.
type Policy int

const (
	// PolicyExact compares debug against optimized only.
	PolicyExact Policy = iota + 1

	// PolicySubset additionally requires optimized ⊆ reference.
	PolicySubset
)

func (p Policy) String() string {
	switch p {
	case PolicyExact:
		return "exact"
	case PolicySubset:
		return "subset"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

var (
	exactSet  = variant.NewSet(variant.Debug, variant.Optimized)
	subsetSet = variant.NewSet(variant.Reference, variant.Debug, variant.Optimized)
)

// PolicyFor chooses the policy for a variant set.
//
// A set of fewer than three variants is only accepted when it is exactly
// {debug, optimized}; a full set must be exactly {reference, debug,
// optimized}. Anything else is a *ComparisonFailure with
// CodeInvalidVariantSet.
func PolicyFor(set variant.Set) (Policy, error) {
	switch {
	case set.Equal(subsetSet):
		return PolicySubset, nil
	case set.Equal(exactSet):
		return PolicyExact, nil
	case len(set) < len(subsetSet):
		return 0, &ComparisonFailure{
			Code:    CodeInvalidVariantSet,
			Message: fmt.Sprintf("reduced variant set %s must be exactly %s", set, exactSet),
		}
	default:
		return 0, &ComparisonFailure{
			Code:    CodeInvalidVariantSet,
			Message: fmt.Sprintf("variant set %s must be exactly %s", set, subsetSet),
		}
	}
}

// Verifier reads artifacts back from disk and applies a policy.
type Verifier struct {
	logger *slog.Logger
}

// New creates a Verifier. A nil logger discards log output.
func New(logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Verifier{logger: logger}
}

// ExactMatch requires the artifacts at left and right to be identical line
// sequences. When the lines agree, the artifacts must also agree on whether
// the last line ends with a newline.
func (v *Verifier) ExactMatch(left, right string) error {
	l, lnl, err := readArtifact(left)
	if err != nil {
		return err
	}
	r, rnl, err := readArtifact(right)
	if err != nil {
		return err
	}

	m := CompareExact(l, r)
	if m == nil {
		if lnl != rnl {
			with, without := left, right
			if rnl {
				with, without = right, left
			}
			return &ComparisonFailure{
				Code:    CodeNewlineAtEOF,
				Policy:  PolicyExact,
				Left:    left,
				Right:   right,
				Line:    len(l),
				Message: fmt.Sprintf("%s ends with a newline but %s does not", with, without),
			}
		}
		v.logger.Debug("exact match", "left", left, "right", right, "lines", len(l))
		return nil
	}
	return &ComparisonFailure{
		Code:      m.Code,
		Policy:    PolicyExact,
		Left:      left,
		Right:     right,
		Line:      m.Index + 1,
		LeftLine:  m.Left,
		RightLine: m.Right,
	}
}

// SubsetContainment requires every line of candidate to appear in reference,
// counting multiplicity.
//
// Both artifacts are expected to be sorted by the canonicalizing stage. The
// precondition is checked: an unsorted side is logged and sorted in memory
// before the merge, so an unsorted artifact can never cause a false result.
func (v *Verifier) SubsetContainment(reference, candidate string) error {
	ref, err := ReadLines(reference)
	if err != nil {
		return err
	}
	cand, err := ReadLines(candidate)
	if err != nil {
		return err
	}
	ref = v.ensureSorted(reference, ref)
	cand = v.ensureSorted(candidate, cand)

	m := CompareSubset(ref, cand)
	if m == nil {
		v.logger.Debug("subset contained", "reference", reference, "candidate", candidate,
			"reference_lines", len(ref), "candidate_lines", len(cand))
		return nil
	}
	return &ComparisonFailure{
		Code:      m.Code,
		Policy:    PolicySubset,
		Left:      reference,
		Right:     candidate,
		Line:      m.Index + 1,
		RightLine: m.Right,
	}
}

func (v *Verifier) ensureSorted(path string, lines []string) []string {
	if IsSorted(lines) {
		return lines
	}
	v.logger.Warn("artifact is not sorted, sorting before merge", "path", path)
	sorted := slices.Clone(lines)
	slices.Sort(sorted)
	return sorted
}

// Verify applies policy to the variant artifacts of one input.
// artifacts maps each variant to its canonicalized artifact path.
func (v *Verifier) Verify(policy Policy, artifacts map[variant.Variant]string) error {
	need := func(vs ...variant.Variant) error {
		for _, x := range vs {
			if _, ok := artifacts[x]; !ok {
				return fmt.Errorf("verify: no %s artifact", x)
			}
		}
		return nil
	}

	switch policy {
	case PolicyExact:
		if err := need(variant.Debug, variant.Optimized); err != nil {
			return err
		}
		return v.ExactMatch(artifacts[variant.Debug], artifacts[variant.Optimized])
	case PolicySubset:
		if err := need(variant.Reference, variant.Debug, variant.Optimized); err != nil {
			return err
		}
		if err := v.ExactMatch(artifacts[variant.Debug], artifacts[variant.Optimized]); err != nil {
			return err
		}
		return v.SubsetContainment(artifacts[variant.Reference], artifacts[variant.Optimized])
	default:
		return fmt.Errorf("verify: unknown policy %s", policy)
	}
}
