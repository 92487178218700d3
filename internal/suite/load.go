package suite

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/roach88/rulecheck/internal/stage"
	"github.com/roach88/rulecheck/internal/variant"
	"github.com/roach88/rulecheck/internal/verify"
)

//go:embed schema.cue
var schemaCUE string

//go:embed defaults/flatten.yaml
var defaultFlattenYAML []byte

//go:embed defaults/recompress.yaml
var defaultRecompressYAML []byte

// Error codes for suite loading.
const (
	ErrCodeRead     = "S001" // file could not be read
	ErrCodeParse    = "S002" // YAML or CUE syntax error
	ErrCodeSchema   = "S003" // CUE schema violation
	ErrCodeInvalid  = "S004" // semantic validation failed
	ErrCodeTemplate = "S005" // command template rejected
)

// LoadError is returned when a suite file cannot be loaded.
type LoadError struct {
	Code    string
	Path    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// file is the on-disk shape shared by the YAML and CUE encodings.
type file struct {
	Name      string            `yaml:"name" json:"name"`
	Kind      string            `yaml:"kind" json:"kind"`
	InputDir  string            `yaml:"input_dir" json:"input_dir"`
	OutputDir string            `yaml:"output_dir" json:"output_dir"`
	Extension string            `yaml:"extension,omitempty" json:"extension,omitempty"`
	Build     []string          `yaml:"build,omitempty" json:"build,omitempty"`
	Timeout   string            `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Vars      map[string]string `yaml:"vars,omitempty" json:"vars,omitempty"`
	Stages    []stageFile       `yaml:"stages" json:"stages"`
	Flatten   *flattenFile      `yaml:"flatten,omitempty" json:"flatten,omitempty"`
	Inputs    []inputFile       `yaml:"inputs,omitempty" json:"inputs,omitempty"`
}

type stageFile struct {
	Label   string   `yaml:"label" json:"label"`
	Command []string `yaml:"command" json:"command"`
}

type flattenFile struct {
	Label        string              `yaml:"label,omitempty" json:"label,omitempty"`
	Canonicalize []string            `yaml:"canonicalize" json:"canonicalize"`
	Variants     map[string][]string `yaml:"variants" json:"variants"`
}

type inputFile struct {
	Name     string   `yaml:"name" json:"name"`
	Variants []string `yaml:"variants,omitempty" json:"variants,omitempty"`
}

// Load reads a suite from a .yaml, .yml, or .cue file.
// vars override variables declared in the file.
func Load(path string, vars map[string]string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeRead, Path: path, Message: err.Error()}
	}

	var f *file
	switch filepath.Ext(path) {
	case ".cue":
		f, err = decodeCUE(path, data)
	case ".yaml", ".yml":
		f, err = decodeYAML(path, data)
	default:
		return nil, &LoadError{Code: ErrCodeRead, Path: path, Message: "unsupported suite format (want .yaml, .yml or .cue)"}
	}
	if err != nil {
		return nil, err
	}
	return build(path, f, vars)
}

// Default returns a built-in suite.
func Default(kind Kind, vars map[string]string) (*Suite, error) {
	var data []byte
	switch kind {
	case KindFlatten:
		data = defaultFlattenYAML
	case KindRecompress:
		data = defaultRecompressYAML
	default:
		return nil, fmt.Errorf("no built-in suite of kind %q", kind)
	}
	name := "defaults/" + string(kind) + ".yaml"
	f, err := decodeYAML(name, data)
	if err != nil {
		return nil, err
	}
	return build(name, f, vars)
}

func decodeYAML(path string, data []byte) (*file, error) {
	var f file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // Reject unknown fields
	if err := dec.Decode(&f); err != nil {
		return nil, &LoadError{Code: ErrCodeParse, Path: path, Message: fmt.Sprintf("failed to parse YAML: %v", err)}
	}
	return &f, nil
}

func decodeCUE(path string, data []byte) (*file, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile suite schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Suite"))

	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, cueLoadError(ErrCodeParse, path, err)
	}

	unified := def.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, cueLoadError(ErrCodeSchema, path, err)
	}

	var f file
	if err := unified.Decode(&f); err != nil {
		return nil, cueLoadError(ErrCodeSchema, path, err)
	}
	return &f, nil
}

// cueLoadError converts a CUE error into a LoadError carrying its first position.
func cueLoadError(code, path string, err error) *LoadError {
	le := &LoadError{Code: code, Path: path, Message: err.Error()}
	var ce cueerrors.Error
	if errors.As(err, &ce) {
		le.Pos = ce.Position()
		msg, args := ce.Msg()
		le.Message = fmt.Sprintf(msg, args...)
	}
	return le
}

func build(path string, f *file, overrides map[string]string) (*Suite, error) {
	invalid := func(format string, args ...any) error {
		return &LoadError{Code: ErrCodeInvalid, Path: path, Message: fmt.Sprintf(format, args...)}
	}
	badTemplate := func(where string, err error) error {
		return &LoadError{Code: ErrCodeTemplate, Path: path, Message: fmt.Sprintf("%s: %v", where, err)}
	}

	if f.Name == "" {
		return nil, invalid("name is required")
	}
	if f.InputDir == "" || f.OutputDir == "" {
		return nil, invalid("input_dir and output_dir are required")
	}

	s := &Suite{
		Name:      f.Name,
		Kind:      Kind(f.Kind),
		InputDir:  f.InputDir,
		OutputDir: f.OutputDir,
		Extension: f.Extension,
	}
	if s.Kind != KindFlatten && s.Kind != KindRecompress {
		return nil, invalid("kind must be %q or %q, got %q", KindFlatten, KindRecompress, f.Kind)
	}

	if len(f.Build) > 0 {
		if f.Build[0] == "" {
			return nil, invalid("build: program name is empty")
		}
		s.Build = slices.Clone(f.Build)
	}

	if f.Timeout != "" {
		d, err := time.ParseDuration(f.Timeout)
		if err != nil {
			return nil, invalid("timeout: %v", err)
		}
		if d <= 0 {
			return nil, invalid("timeout must be positive, got %s", d)
		}
		s.Timeout = d
	}

	vars := maps.Clone(f.Vars)
	if vars == nil {
		vars = map[string]string{}
	}
	maps.Copy(vars, overrides)

	if len(f.Stages) == 0 {
		return nil, invalid("stages list is required and must be non-empty")
	}
	seen := make(map[string]bool, len(f.Stages))
	for i, st := range f.Stages {
		if err := stage.ValidateName(st.Label); err != nil {
			return nil, invalid("stages[%d]: %v", i, err)
		}
		if seen[st.Label] {
			return nil, invalid("stages[%d]: duplicate label %q", i, st.Label)
		}
		seen[st.Label] = true
		tmpl, err := stage.ParseTemplate(st.Command, vars)
		if err != nil {
			return nil, badTemplate(fmt.Sprintf("stages[%d] (%s)", i, st.Label), err)
		}
		s.Stages = append(s.Stages, stage.Spec{Label: st.Label, Template: tmpl})
	}

	switch s.Kind {
	case KindFlatten:
		if f.Flatten == nil {
			return nil, invalid("flatten section is required for kind %q", KindFlatten)
		}
		fl, err := buildFlatten(f.Flatten, vars, seen)
		if err != nil {
			var le *LoadError
			if errors.As(err, &le) {
				le.Path = path
				return nil, le
			}
			return nil, invalid("flatten: %v", err)
		}
		s.Flatten = fl
	case KindRecompress:
		if f.Flatten != nil {
			return nil, invalid("flatten section is not allowed for kind %q", KindRecompress)
		}
	}

	names := make(map[string]bool, len(f.Inputs))
	for i, raw := range f.Inputs {
		if err := stage.ValidateName(raw.Name); err != nil {
			return nil, invalid("inputs[%d]: %v", i, err)
		}
		if names[raw.Name] {
			return nil, invalid("inputs[%d]: duplicate input %q", i, raw.Name)
		}
		names[raw.Name] = true

		in, err := buildInput(s, raw)
		if err != nil {
			return nil, err
		}
		s.Inputs = append(s.Inputs, in)
	}
	if s.Kind == KindFlatten && len(s.Inputs) == 0 {
		return nil, invalid("inputs: a %s suite needs at least one input", KindFlatten)
	}

	return s, nil
}

func buildFlatten(f *flattenFile, vars map[string]string, stageLabels map[string]bool) (*Flatten, error) {
	fl := &Flatten{
		Label:    f.Label,
		Variants: make(map[variant.Variant]stage.Template, len(f.Variants)),
	}
	if fl.Label == "" {
		fl.Label = DefaultFlattenLabel
	}
	if err := stage.ValidateName(fl.Label); err != nil {
		return nil, err
	}
	if stageLabels[fl.Label] {
		return nil, fmt.Errorf("label %q collides with an upstream stage", fl.Label)
	}

	tmpl, err := stage.ParseTemplate(f.Canonicalize, vars)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeTemplate, Message: fmt.Sprintf("flatten.canonicalize: %v", err)}
	}
	fl.Canonicalize = tmpl

	if len(f.Variants) == 0 {
		return nil, fmt.Errorf("variants table is empty")
	}
	for _, name := range slices.Sorted(maps.Keys(f.Variants)) {
		v, err := variant.Parse(name)
		if err != nil {
			return nil, err
		}
		if _, dup := fl.Variants[v]; dup {
			return nil, fmt.Errorf("variant %s declared twice", v)
		}
		tmpl, err := stage.ParseTemplate(f.Variants[name], vars)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeTemplate, Message: fmt.Sprintf("flatten.variants.%s: %v", name, err)}
		}
		fl.Variants[v] = tmpl
	}
	return fl, nil
}

// buildInput validates one table row. Variant-set violations are reported as
// comparison failures, since they make the input impossible to compare.
func buildInput(s *Suite, raw inputFile) (Input, error) {
	in := Input{Name: raw.Name}
	if s.Kind == KindRecompress {
		if len(raw.Variants) > 0 {
			return Input{}, fmt.Errorf("input %s: variants are not allowed for kind %q", raw.Name, KindRecompress)
		}
		return in, nil
	}

	set, err := variant.ParseSet(raw.Variants)
	if err != nil {
		return Input{}, verify.NewInvalidVariantSet(raw.Name, err)
	}
	policy, err := verify.PolicyFor(set)
	if err != nil {
		var cf *verify.ComparisonFailure
		if errors.As(err, &cf) {
			cf.Input = raw.Name
		}
		return Input{}, err
	}
	for _, v := range set {
		if _, ok := s.Flatten.Variants[v]; !ok {
			return Input{}, fmt.Errorf("input %s: no command declared for variant %s", raw.Name, v)
		}
	}
	in.Variants = set
	in.Policy = policy
	return in, nil
}
