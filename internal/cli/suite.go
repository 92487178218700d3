package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rulecheck/internal/suite"
)

// SuiteOptions selects and parameterizes the suite a command works on.
type SuiteOptions struct {
	// File is a .yaml/.yml/.cue suite. Empty selects the built-in suite.
	File string

	// Vars are KEY=VALUE overrides for {var.KEY} placeholders.
	Vars []string
}

func addSuiteFlags(cmd *cobra.Command, opts *SuiteOptions) {
	cmd.Flags().StringVar(&opts.File, "suite", "", "suite file (.yaml, .yml or .cue); default is the built-in suite")
	cmd.Flags().StringArrayVar(&opts.Vars, "var", nil, "set a suite variable (KEY=VALUE, repeatable)")
}

// load returns the suite of the given kind.
func (o *SuiteOptions) load(kind suite.Kind) (*suite.Suite, error) {
	vars, err := parseVars(o.Vars)
	if err != nil {
		return nil, err
	}
	if o.File == "" {
		return suite.Default(kind, vars)
	}
	s, err := suite.Load(o.File, vars)
	if err != nil {
		return nil, err
	}
	if s.Kind != kind {
		return nil, fmt.Errorf("suite %s is a %s suite, not %s", o.File, s.Kind, kind)
	}
	return s, nil
}

func parseVars(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	vars := make(map[string]string, len(raw))
	for _, kv := range raw {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --var %q: want KEY=VALUE", kv)
		}
		vars[key] = value
	}
	return vars, nil
}

func parseKind(name string) (suite.Kind, error) {
	switch k := suite.Kind(name); k {
	case suite.KindFlatten, suite.KindRecompress:
		return k, nil
	}
	return "", fmt.Errorf("unknown suite kind %q: want %s or %s", name, suite.KindFlatten, suite.KindRecompress)
}
