package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rulecheck/internal/store"
	"github.com/roach88/rulecheck/internal/suite"
	"github.com/roach88/rulecheck/internal/testutil"
)

// recordRun runs the passing suite against db and returns the run ID.
func recordRun(t *testing.T, f *suiteFixture, db string) string {
	t.Helper()
	code, stdout, stderr := execute(t, "flatten", "--suite", f.path, "--db", db, "--format", "json")
	require.Equal(t, ExitSuccess, code, stderr)

	var resp struct {
		Data RunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	require.NotEmpty(t, resp.Data.RunID)
	return resp.Data.RunID
}

func TestHistory_ListsRuns(t *testing.T) {
	f := passingSuite(t)
	db := filepath.Join(f.dir, "runs.db")
	first := recordRun(t, f, db)
	second := recordRun(t, f, db)

	code, stdout, _ := execute(t, "history", "--db", db, "--format", "json")
	require.Equal(t, ExitSuccess, code)

	var resp struct {
		Status string       `json:"status"`
		Data   []RunSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, second, resp.Data[0].ID)
	assert.Equal(t, first, resp.Data[1].ID)
	assert.Equal(t, store.StatusPassed, resp.Data[0].Status)
	assert.NotEmpty(t, resp.Data[0].Started)

	code, stdout, _ = execute(t, "history", "--db", db)
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, second)
	assert.Contains(t, stdout, "shell-flatten")
}

func TestHistory_DetailAndCompare(t *testing.T) {
	f := passingSuite(t)
	db := filepath.Join(f.dir, "runs.db")
	first := recordRun(t, f, db)
	second := recordRun(t, f, db)

	code, stdout, stderr := execute(t, "history", "--db", db, second, "--compare", first, "--format", "json")
	require.Equal(t, ExitSuccess, code, stderr)

	var resp struct {
		Data RunDetail `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	d := resp.Data
	assert.Equal(t, second, d.Run.ID)
	assert.Equal(t, first, d.ComparedTo)
	assert.Empty(t, d.Changes, "identical inputs and deterministic tools give identical digests")

	// 2 upstream artifacts per input, plus 3 variants for tictactoe and 2 for chess.
	assert.Len(t, d.Artifacts, 9)

	var states []string
	for _, tr := range d.Transitions {
		if tr.Input == "chess" {
			states = append(states, tr.State)
		}
	}
	assert.Equal(t, []string{"pending", "chain_built", "variants_run", "verified", "passed"}, states)

	code, stdout, _ = execute(t, "history", "--db", db, second, "--compare", first)
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "all artifacts identical")
}

func TestHistory_CompareDetectsChangedArtifact(t *testing.T) {
	f := passingSuite(t)
	db := filepath.Join(f.dir, "runs.db")
	first := recordRun(t, f, db)
	testutil.WriteLines(t, f.inDir, "chess.kif", "(role white)", "(role black)", "(role red)")
	second := recordRun(t, f, db)

	code, stdout, _ := execute(t, "history", "--db", db, second, "--compare", first)
	require.Equal(t, ExitSuccess, code)
	_, changes, found := strings.Cut(stdout, "Compared to")
	require.True(t, found, stdout)
	assert.Contains(t, changes, "chess/flattened.debug")
	assert.NotContains(t, changes, "tictactoe/")
}

func TestHistory_FailedRunRecorded(t *testing.T) {
	f := newSuiteFixture(t, func(inDir, outDir string) map[string]any {
		return flattenSuiteDoc(inDir, outDir, map[string][]string{
			"debug":     testutil.FailTool,
			"optimized": testutil.CopyTool,
		}, input("chess", "debug", "optimized"))
	})
	f.source(t, "chess.kif", "a")
	db := filepath.Join(f.dir, "runs.db")

	code, _, _ := execute(t, "flatten", "--suite", f.path, "--db", db)
	require.Equal(t, ExitFailure, code)

	code, stdout, _ := execute(t, "history", "--db", db, "--format", "json")
	require.Equal(t, ExitSuccess, code)
	var resp struct {
		Data []RunSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, store.StatusFailed, resp.Data[0].Status)
	assert.Contains(t, resp.Data[0].Message, "exit code 3")
}

func TestHistory_Errors(t *testing.T) {
	dir := t.TempDir()

	code, _, stderr := execute(t, "history")
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, `required flag(s) "db" not set`)

	code, _, stderr = execute(t, "history", "--db", filepath.Join(dir, "none.db"))
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, "ledger not found")
}

func TestHistory_UnknownRun(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")
	st, err := store.Open(db)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	code, _, stderr := execute(t, "history", "--db", db, "no-such-run")
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, "run no-such-run")

	code, stdout, _ := execute(t, "history", "--db", db)
	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, "No runs recorded.\n", stdout)
}

func TestRunOptions_FixedRunID(t *testing.T) {
	f := passingSuite(t)
	db := filepath.Join(f.dir, "runs.db")

	opts := &RunOptions{RootOptions: &RootOptions{Format: "text"}, IDGenerator: testutil.NewFixedRunIDGenerator("run-fixed")}
	opts.SuiteOptions.File = f.path
	opts.Database = db
	opts.Jobs = 1

	cmd := NewFlattenCommand(opts.RootOptions)
	stdout := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(&bytes.Buffer{})
	require.NoError(t, runSuite(opts, suite.KindFlatten, nil, cmd))
	assert.True(t, strings.HasSuffix(stdout.String(), "run run-fixed\nGOOD\n"))
}
