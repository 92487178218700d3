package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rulecheck/internal/harness"
	"github.com/roach88/rulecheck/internal/testutil"
)

var passingVariants = map[string][]string{
	"reference": testutil.AppendTool("(extra)"),
	"debug":     testutil.ReverseSortTool,
	"optimized": testutil.CopyTool,
}

func passingSuite(t *testing.T) *suiteFixture {
	f := newSuiteFixture(t, func(inDir, outDir string) map[string]any {
		return flattenSuiteDoc(inDir, outDir, passingVariants,
			input("tictactoe", "reference", "debug", "optimized"),
			input("chess", "debug", "optimized"))
	})
	f.source(t, "tictactoe.kif", "(role x)", "(role o)")
	f.source(t, "chess.kif", "(role white)", "(role black)")
	return f
}

func TestFlatten_PassesText(t *testing.T) {
	f := passingSuite(t)

	code, stdout, stderr := execute(t, "flatten", "--suite", f.path)
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Equal(t, "✓ tictactoe (subset)\n✓ chess (exact)\nGOOD\n", stdout)
	assert.FileExists(t, filepath.Join(f.outDir, "tictactoe", "flattened.reference"))
}

func TestFlatten_SelectsInputs(t *testing.T) {
	f := passingSuite(t)

	code, stdout, stderr := execute(t, "flatten", "--suite", f.path, "chess")
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Equal(t, "✓ chess (exact)\nGOOD\n", stdout)
	assert.NoDirExists(t, filepath.Join(f.outDir, "tictactoe"))
}

func TestFlatten_UnknownInput(t *testing.T) {
	f := passingSuite(t)

	code, _, stderr := execute(t, "flatten", "--suite", f.path, "go")
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, "unknown input(s) [go]")
}

func TestFlatten_PassesJSON(t *testing.T) {
	f := passingSuite(t)

	code, stdout, _ := execute(t, "flatten", "--suite", f.path, "--jobs", "2", "--format", "json")
	require.Equal(t, ExitSuccess, code)

	var resp struct {
		Status string    `json:"status"`
		Data   RunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "shell-flatten", resp.Data.Suite)
	require.Len(t, resp.Data.Inputs, 2)
	assert.Equal(t, "tictactoe", resp.Data.Inputs[0].Input)
	assert.Equal(t, "passed", resp.Data.Inputs[0].State.String())
}

func TestFlatten_ComparisonFailureJSON(t *testing.T) {
	f := newSuiteFixture(t, func(inDir, outDir string) map[string]any {
		return flattenSuiteDoc(inDir, outDir, map[string][]string{
			"debug":     testutil.DropFirstTool,
			"optimized": testutil.CopyTool,
		}, input("chess", "debug", "optimized"))
	})
	f.source(t, "chess.kif", "b", "a")

	code, stdout, _ := execute(t, "flatten", "--suite", f.path, "--format", "json")
	assert.Equal(t, ExitFailure, code)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeComparison, resp.Error.Code)

	details, ok := resp.Error.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "chess", details["input"])
	assert.Equal(t, "exact", details["policy"])
	assert.Equal(t, "LINE_MISMATCH", details["code"])
	assert.NotContains(t, stdout, "GOOD")
}

func TestFlatten_StageFailureText(t *testing.T) {
	f := newSuiteFixture(t, func(inDir, outDir string) map[string]any {
		return flattenSuiteDoc(inDir, outDir, map[string][]string{
			"debug":     testutil.FailTool,
			"optimized": testutil.CopyTool,
		}, input("chess", "debug", "optimized"))
	})
	f.source(t, "chess.kif", "a")

	code, stdout, stderr := execute(t, "flatten", "--suite", f.path)
	assert.Equal(t, ExitFailure, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "Error [E101]")
	assert.Contains(t, stderr, "flattened[debug]: exit code 3")
	assert.Equal(t, 1, strings.Count(stderr, "Error ["), "failure reported once")
}

func TestFlatten_InvalidVariantSet(t *testing.T) {
	f := newSuiteFixture(t, func(inDir, outDir string) map[string]any {
		return flattenSuiteDoc(inDir, outDir, passingVariants, input("chess", "reference", "optimized"))
	})
	f.source(t, "chess.kif", "a")

	code, _, stderr := execute(t, "flatten", "--suite", f.path)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stderr, "Error [E102]")
	assert.NoDirExists(t, f.outDir)
}

func TestFlatten_MissingInputFile(t *testing.T) {
	f := passingSuite(t)
	require.NoError(t, os.Remove(filepath.Join(f.inDir, "chess.kif")))

	code, _, stderr := execute(t, "flatten", "--suite", f.path)
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, "input file not found")
	assert.NoDirExists(t, f.outDir)
}

func TestFlatten_EmptyInputTable(t *testing.T) {
	f := newSuiteFixture(t, func(inDir, outDir string) map[string]any {
		return flattenSuiteDoc(inDir, outDir, passingVariants)
	})

	code, stdout, stderr := execute(t, "flatten", "--suite", f.path)
	assert.Equal(t, ExitCommandError, code)
	assert.NotContains(t, stdout, SuccessMarker)
	assert.Contains(t, stderr, "Error [E201]")
	assert.Contains(t, stderr, "needs at least one input")
	assert.NoDirExists(t, f.outDir)
}

func TestOutputRunSuccess_EmptyReportIsNotSuccess(t *testing.T) {
	for _, format := range []string{"text", "json"} {
		t.Run(format, func(t *testing.T) {
			var out, errOut bytes.Buffer
			f := &OutputFormatter{Format: format, Writer: &out, ErrWriter: &errOut}

			err := outputRunSuccess(f, &harness.Report{Suite: "empty", Kind: "flatten"})
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.NotContains(t, out.String(), SuccessMarker)
			assert.Contains(t, out.String()+errOut.String(), "suite empty ran no inputs")
		})
	}
}

func TestFlatten_SuiteKindMismatch(t *testing.T) {
	f := passingSuite(t)

	code, _, stderr := execute(t, "recompress", "--suite", f.path, "chess.kif")
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, "is a flatten suite, not recompress")
}

func TestFlatten_BadFlags(t *testing.T) {
	f := passingSuite(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"jobs", []string{"--jobs", "0"}, "--jobs must be at least 1"},
		{"var", []string{"--var", "novalue"}, `invalid --var "novalue"`},
		{"suite", []string{"--suite", filepath.Join(f.dir, "missing.yaml")}, "S001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"flatten", "--suite", f.path}, tt.args...)
			code, _, stderr := execute(t, args...)
			assert.Equal(t, ExitCommandError, code)
			assert.Contains(t, stderr, tt.want)
		})
	}
}

func TestRecompress_Passes(t *testing.T) {
	f := newSuiteFixture(t, func(inDir, outDir string) map[string]any {
		return map[string]any{
			"name":       "shell-recompress",
			"kind":       "recompress",
			"input_dir":  inDir,
			"output_dir": outDir,
			"stages": []map[string]any{
				{"label": "simplified", "command": testutil.CopyTool},
				{"label": "reprinted", "command": testutil.SortTool},
				{"label": "recompressed", "command": testutil.DropFirstTool},
			},
		}
	})
	f.source(t, "game.kif", "b", "a", "c")

	code, stdout, stderr := execute(t, "recompress", "--suite", f.path, "game.kif")
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Equal(t, "✓ game.kif\nGOOD\n", stdout)
	assert.Equal(t, []string{"b", "c"}, testutil.ReadLines(t, filepath.Join(f.outDir, "game.kif", "recompressed")))
}

func TestRun_TimeoutFlagOverridesSuite(t *testing.T) {
	f := newSuiteFixture(t, func(inDir, outDir string) map[string]any {
		return flattenSuiteDoc(inDir, outDir, map[string][]string{
			"debug":     testutil.SlowTool,
			"optimized": testutil.CopyTool,
		}, input("chess", "debug", "optimized"))
	})
	f.source(t, "chess.kif", "a")

	code, stdout, _ := execute(t, "flatten", "--suite", f.path, "--timeout", "300ms", "--format", "json")
	assert.Equal(t, ExitFailure, code)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	details := resp.Error.Details.(map[string]any)
	assert.Equal(t, "timeout", details["kind"])
	assert.Equal(t, "debug", details["variant"])
}
