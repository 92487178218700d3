package verify

import "fmt"

// Code identifies the kind of comparison failure.
type Code string

const (
	// CodeLineMismatch indicates both artifacts have a line at the same index but the lines differ.
	CodeLineMismatch Code = "LINE_MISMATCH"

	// CodeExtraLine indicates the right artifact has a line past the end of the left one.
	CodeExtraLine Code = "EXTRA_LINE"

	// CodeMissingLine indicates the right artifact ends before the left one.
	CodeMissingLine Code = "MISSING_LINE"

	// CodeNewlineAtEOF indicates the line sequences agree but only one artifact ends with a newline.
	CodeNewlineAtEOF Code = "NEWLINE_AT_EOF"

	// CodeNotContained indicates a line of the candidate has no counterpart in the reference.
	CodeNotContained Code = "NOT_CONTAINED"

	// CodeInvalidVariantSet indicates an input requested a variant set no policy accepts.
	CodeInvalidVariantSet Code = "INVALID_VARIANT_SET"
)

// ComparisonFailure reports the first discrepancy between two artifacts,
// or an input whose variant set cannot be compared at all.
type ComparisonFailure struct {
	Code   Code
	Policy Policy

	// Input is the test input, when known.
	Input string

	// Left and Right are the artifact paths. For subset containment Left is
	// the reference and Right the candidate.
	Left  string
	Right string

	// Line is the 1-based line number of the discrepancy (in the sorted
	// candidate sequence for subset containment).
	Line int

	// LeftLine and RightLine are the offending line contents.
	LeftLine  string
	RightLine string

	// Message is used for CodeNewlineAtEOF and CodeInvalidVariantSet.
	Message string
}

func (e *ComparisonFailure) Error() string {
	prefix := "comparison failure"
	if e.Input != "" {
		prefix += " for " + e.Input
	}
	switch e.Code {
	case CodeLineMismatch:
		return fmt.Sprintf("%s (%s): %s and %s differ at line %d:\n  %s: %q\n  %s: %q",
			prefix, e.Policy, e.Left, e.Right, e.Line, e.Left, e.LeftLine, e.Right, e.RightLine)
	case CodeExtraLine:
		return fmt.Sprintf("%s (%s): %s has extra line %d %q not in %s",
			prefix, e.Policy, e.Right, e.Line, e.RightLine, e.Left)
	case CodeMissingLine:
		return fmt.Sprintf("%s (%s): %s is missing line %d %q present in %s",
			prefix, e.Policy, e.Right, e.Line, e.LeftLine, e.Left)
	case CodeNewlineAtEOF:
		return fmt.Sprintf("%s (%s): %s", prefix, e.Policy, e.Message)
	case CodeNotContained:
		return fmt.Sprintf("%s (%s): line:\n%s\nof %s not in %s",
			prefix, e.Policy, e.RightLine, e.Right, e.Left)
	default:
		return fmt.Sprintf("%s: %s: %s", prefix, e.Code, e.Message)
	}
}

// NewInvalidVariantSet creates a failure for an input whose variant set is rejected.
func NewInvalidVariantSet(input string, err error) *ComparisonFailure {
	return &ComparisonFailure{
		Code:    CodeInvalidVariantSet,
		Input:   input,
		Message: err.Error(),
	}
}
