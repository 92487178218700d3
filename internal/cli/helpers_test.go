package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/roach88/rulecheck/internal/testutil"
)

// suiteFixture is a flatten or recompress suite whose tools are shell scripts.
type suiteFixture struct {
	dir    string
	inDir  string
	outDir string
	path   string
}

// flattenSuiteDoc returns a flatten suite document with the given variant tools.
func flattenSuiteDoc(inDir, outDir string, variants map[string][]string, inputs ...map[string]any) map[string]any {
	return map[string]any{
		"name":       "shell-flatten",
		"kind":       "flatten",
		"input_dir":  inDir,
		"output_dir": outDir,
		"extension":  ".kif",
		"timeout":    "10s",
		"stages": []map[string]any{
			{"label": "simplified", "command": testutil.CopyTool},
			{"label": "reprinted", "command": testutil.SortTool},
		},
		"flatten": map[string]any{
			"canonicalize": testutil.SortTool,
			"variants":     variants,
		},
		"inputs": inputs,
	}
}

func input(name string, variants ...string) map[string]any {
	return map[string]any{"name": name, "variants": variants}
}

// newSuiteFixture writes doc (with directories filled in by build) to suite.yaml.
func newSuiteFixture(t *testing.T, build func(inDir, outDir string) map[string]any) *suiteFixture {
	t.Helper()
	testutil.RequireShell(t)
	dir := t.TempDir()
	f := &suiteFixture{
		dir:    dir,
		inDir:  filepath.Join(dir, "in"),
		outDir: filepath.Join(dir, "out"),
		path:   filepath.Join(dir, "suite.yaml"),
	}
	data, err := yaml.Marshal(build(f.inDir, f.outDir))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(f.path, data, 0644))
	return f
}

func (f *suiteFixture) source(t *testing.T, name string, lines ...string) {
	t.Helper()
	testutil.WriteLines(t, f.inDir, name, lines...)
}

// execute runs the full command tree and returns the exit code and both streams.
func execute(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	code := Execute(context.Background(), args, stdout, stderr)
	return code, stdout.String(), stderr.String()
}
