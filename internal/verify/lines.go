package verify

import (
	"fmt"
	"os"
	"slices"
	"strings"
)

// ReadLines reads an artifact as a sequence of lines.
// A trailing newline does not produce an empty final line.
func ReadLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return SplitLines(string(data)), nil
}

// readArtifact is ReadLines that also reports whether the file ends with "\n".
func readArtifact(path string) ([]string, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("read artifact: %w", err)
	}
	s := string(data)
	return SplitLines(s), strings.HasSuffix(s, "\n"), nil
}

// SplitLines splits s on "\n" without producing a trailing empty element.
func SplitLines(s string) []string {
	if s == "" {
		return []string{}
	}
	lines := strings.Split(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// Mismatch is the first discrepancy found by a line comparison.
// Index is 0-based.
type Mismatch struct {
	Code  Code
	Index int
	Left  string
	Right string
}

// CompareExact returns nil iff left and right are identical line sequences.
func CompareExact(left, right []string) *Mismatch {
	n := min(len(left), len(right))
	for i := 0; i < n; i++ {
		if left[i] != right[i] {
			return &Mismatch{Code: CodeLineMismatch, Index: i, Left: left[i], Right: right[i]}
		}
	}
	switch {
	case len(right) > n:
		return &Mismatch{Code: CodeExtraLine, Index: n, Right: right[n]}
	case len(left) > n:
		return &Mismatch{Code: CodeMissingLine, Index: n, Left: left[n]}
	}
	return nil
}

// CompareSubset returns nil iff candidate is a sub-multiset of reference.
//
// Both slices must be sorted; the merge walks each exactly once. The
// reference pointer skips lines smaller than the current candidate line; a
// larger reference line (or an exhausted reference) means the candidate line
// has no counterpart. A match consumes one line from each side.
func CompareSubset(reference, candidate []string) *Mismatch {
	j := 0
	for i, line := range candidate {
		for j < len(reference) && reference[j] < line {
			j++
		}
		if j == len(reference) || reference[j] > line {
			return &Mismatch{Code: CodeNotContained, Index: i, Right: line}
		}
		j++
	}
	return nil
}

// IsSorted reports whether lines are in lexicographic byte order.
func IsSorted(lines []string) bool {
	return slices.IsSorted(lines)
}
