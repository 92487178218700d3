// Package variant names the implementations of a single logical stage.
package variant

import (
	"fmt"
	"strings"
)

// Variant is one implementation of a logical stage.
type Variant string

const (
	// Reference is the superset oracle. Its output is not required to match exactly.
	Reference Variant = "reference"

	// Debug is the unoptimized in-house implementation.
	Debug Variant = "debug"

	// Optimized is the performance-tuned in-house implementation.
	// It must agree exactly with Debug.
	Optimized Variant = "optimized"
)

// All lists every variant in canonical execution order.
var All = []Variant{Reference, Debug, Optimized}

// aliases maps the short names used by the legacy test scripts.
var aliases = map[string]Variant{
	"sancho": Reference,
	"ref":    Reference,
	"dbg":    Debug,
	"opt":    Optimized,
}

// Parse converts a name or short alias into a Variant.
func Parse(name string) (Variant, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, v := range All {
		if string(v) == n {
			return v, nil
		}
	}
	if v, ok := aliases[n]; ok {
		return v, nil
	}
	return "", fmt.Errorf("unknown variant %q (want one of %s)", name, strings.Join(names(All), ", "))
}

// Set is a duplicate-free collection of variants kept in canonical order.
type Set []Variant

// ParseSet parses names into a Set. Unknown and repeated names are errors.
func ParseSet(names []string) (Set, error) {
	seen := make(map[Variant]bool, len(names))
	for _, n := range names {
		v, err := Parse(n)
		if err != nil {
			return nil, err
		}
		if seen[v] {
			return nil, fmt.Errorf("variant %q listed twice", v)
		}
		seen[v] = true
	}
	set := make(Set, 0, len(seen))
	for _, v := range All {
		if seen[v] {
			set = append(set, v)
		}
	}
	return set, nil
}

// NewSet builds a Set from known variants, dropping duplicates.
func NewSet(vs ...Variant) Set {
	seen := make(map[Variant]bool, len(vs))
	for _, v := range vs {
		seen[v] = true
	}
	set := make(Set, 0, len(seen))
	for _, v := range All {
		if seen[v] {
			set = append(set, v)
		}
	}
	return set
}

// Has reports whether v is in the set.
func (s Set) Has(v Variant) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

// Equal reports whether both sets hold the same variants.
func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for _, v := range s {
		if !other.Has(v) {
			return false
		}
	}
	return true
}

// String renders the set as "{a, b}".
func (s Set) String() string {
	return "{" + strings.Join(names(s), ", ") + "}"
}

func names(vs []Variant) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = string(v)
	}
	return out
}
