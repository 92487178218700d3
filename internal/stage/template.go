package stage

import (
	"fmt"
	"regexp"
	"strings"
)

// Placeholders recognised in command templates.
const (
	PlaceholderInput  = "{input}"
	PlaceholderOutput = "{output}"

	varPrefix = "var."
)

var placeholderRe = regexp.MustCompile(`\{([^{}]*)\}`)

// Template is a validated argv template.
//
// Each argument may embed {input} and {output}; both must appear at least
// once across the argv. Suite variables written as {var.NAME} are resolved
// when the template is parsed, so a Template only ever carries the two
// path placeholders.
type Template struct {
	argv []string
}

// ParseTemplate validates argv and resolves {var.NAME} references from vars.
func ParseTemplate(argv []string, vars map[string]string) (Template, error) {
	if len(argv) == 0 {
		return Template{}, fmt.Errorf("template: argv is empty")
	}
	if strings.TrimSpace(argv[0]) == "" {
		return Template{}, fmt.Errorf("template: program name is empty")
	}

	resolved := make([]string, len(argv))
	var hasInput, hasOutput bool
	for i, arg := range argv {
		var unresolved error
		out := placeholderRe.ReplaceAllStringFunc(arg, func(m string) string {
			name := m[1 : len(m)-1]
			switch {
			case m == PlaceholderInput:
				hasInput = true
				return m
			case m == PlaceholderOutput:
				hasOutput = true
				return m
			case strings.HasPrefix(name, varPrefix):
				key := strings.TrimPrefix(name, varPrefix)
				v, ok := vars[key]
				if !ok && unresolved == nil {
					unresolved = fmt.Errorf("template: argv[%d]: undefined variable %q", i, key)
				}
				return v
			default:
				if unresolved == nil {
					unresolved = fmt.Errorf("template: argv[%d]: unknown placeholder %s", i, m)
				}
				return m
			}
		})
		if unresolved != nil {
			return Template{}, unresolved
		}
		resolved[i] = out
	}

	if !hasInput {
		return Template{}, fmt.Errorf("template %q: missing %s placeholder", strings.Join(argv, " "), PlaceholderInput)
	}
	if !hasOutput {
		return Template{}, fmt.Errorf("template %q: missing %s placeholder", strings.Join(argv, " "), PlaceholderOutput)
	}
	return Template{argv: resolved}, nil
}

// MustParseTemplate is like ParseTemplate but panics on error.
// Intended for tests and package-level tables.
func MustParseTemplate(argv ...string) Template {
	t, err := ParseTemplate(argv, nil)
	if err != nil {
		panic(err)
	}
	return t
}

// Render substitutes the input and output paths into the template.
func (t Template) Render(input, output string) []string {
	r := strings.NewReplacer(PlaceholderInput, input, PlaceholderOutput, output)
	out := make([]string, len(t.argv))
	for i, a := range t.argv {
		out[i] = r.Replace(a)
	}
	return out
}

// IsZero reports whether t was never parsed.
func (t Template) IsZero() bool {
	return len(t.argv) == 0
}

// String returns the unrendered template.
func (t Template) String() string {
	return strings.Join(t.argv, " ")
}
