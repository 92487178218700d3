package invoke

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func sh(script string) []string {
	return []string{"/bin/sh", "-c", script}
}

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []Result
	cmds  []Command
}

func (o *recordingObserver) ObserveInvocation(_ context.Context, cmd Command, res Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cmds = append(o.cmds, cmd)
	o.calls = append(o.calls, res)
}

func TestRun_CapturesStreams(t *testing.T) {
	skipWithoutShell(t)
	dir := t.TempDir()
	out := filepath.Join(dir, "x.stdout")
	errPath := filepath.Join(dir, "x.stderr")

	inv := New(10*time.Second, nil)
	res, err := inv.Run(context.Background(), Command{
		Argv:   sh("echo hello; echo oops >&2"),
		Stdout: out,
		Stderr: errPath,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Empty(t, res.Kind)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(got))

	got, err = os.ReadFile(errPath)
	require.NoError(t, err)
	assert.Equal(t, "oops\n", string(got))
}

func TestRun_TruncatesCaptureFiles(t *testing.T) {
	skipWithoutShell(t)
	dir := t.TempDir()
	out := filepath.Join(dir, "x.stdout")
	require.NoError(t, os.WriteFile(out, []byte("stale output from a previous run\n"), 0644))

	inv := New(10*time.Second, nil)
	_, err := inv.Run(context.Background(), Command{Argv: sh("echo fresh"), Stdout: out})
	require.NoError(t, err)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "fresh\n", string(got))
}

func TestRun_CreatesCaptureDirectory(t *testing.T) {
	skipWithoutShell(t)
	out := filepath.Join(t.TempDir(), "nested", "deeper", "x.stdout")

	inv := New(10*time.Second, nil)
	_, err := inv.Run(context.Background(), Command{Argv: sh("echo ok"), Stdout: out})
	require.NoError(t, err)
	assert.FileExists(t, out)
}

func TestRun_NonZeroExitIsNotAnError(t *testing.T) {
	skipWithoutShell(t)
	inv := New(10*time.Second, nil)

	res, err := inv.Run(context.Background(), Command{Argv: sh("exit 3")})
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, KindExit, res.Kind)
}

func TestRunOrAbort_NonZeroExit(t *testing.T) {
	skipWithoutShell(t)
	inv := New(10*time.Second, nil)

	_, err := inv.RunOrAbort(context.Background(), Command{
		Argv:    sh("exit 2"),
		Stage:   "flattened",
		Variant: "debug",
	})
	require.Error(t, err)

	var sf *StageFailure
	require.ErrorAs(t, err, &sf)
	assert.Equal(t, KindExit, sf.Kind)
	assert.Equal(t, 2, sf.ExitCode)
	assert.Equal(t, "flattened", sf.Stage)
	assert.Equal(t, "debug", sf.Variant)
	assert.Contains(t, err.Error(), "flattened[debug]")
	assert.Contains(t, err.Error(), `/bin/sh -c "exit 2"`)
}

func TestRunOrAbort_Success(t *testing.T) {
	skipWithoutShell(t)
	inv := New(10*time.Second, nil)

	res, err := inv.RunOrAbort(context.Background(), Command{Argv: sh("true")})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
}

func TestRun_TimeoutKillsProcess(t *testing.T) {
	skipWithoutShell(t)
	inv := New(200*time.Millisecond, nil)

	start := time.Now()
	res, err := inv.Run(context.Background(), Command{
		Argv:    sh("sleep 30"),
		Stage:   "flattened",
		Variant: "optimized",
	})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	var sf *StageFailure
	require.ErrorAs(t, err, &sf)
	assert.Equal(t, KindTimeout, res.Kind)
	assert.Equal(t, -1, res.ExitCode)
	assert.Less(t, elapsed, 10*time.Second)
	assert.Contains(t, err.Error(), "flattened[optimized]: timeout after 200ms")
}

func TestRun_TimeoutKillsChildProcesses(t *testing.T) {
	skipWithoutShell(t)
	inv := New(200*time.Millisecond, nil)

	start := time.Now()
	_, err := inv.Run(context.Background(), Command{Argv: sh("sleep 30 & sleep 30; wait")})
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestRun_Canceled(t *testing.T) {
	skipWithoutShell(t)
	inv := New(time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	res, err := inv.Run(ctx, Command{Argv: sh("sleep 30")})
	require.Error(t, err)
	assert.Equal(t, KindCanceled, res.Kind)
	assert.False(t, IsTimeout(err))
}

func TestRun_SpawnFailure(t *testing.T) {
	inv := New(time.Second, nil)

	res, err := inv.Run(context.Background(), Command{
		Argv: []string{filepath.Join(t.TempDir(), "does-not-exist")},
	})
	require.Error(t, err)

	var sf *StageFailure
	require.ErrorAs(t, err, &sf)
	assert.Equal(t, KindSpawn, sf.Kind)
	assert.Equal(t, KindSpawn, res.Kind)
}

func TestRun_EmptyArgv(t *testing.T) {
	inv := New(time.Second, nil)

	_, err := inv.Run(context.Background(), Command{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty argv")
}

func TestRun_NotifiesObserver(t *testing.T) {
	skipWithoutShell(t)
	obs := &recordingObserver{}
	inv := New(10*time.Second, nil).WithObserver(obs)

	_, _ = inv.Run(context.Background(), Command{Argv: sh("true"), Stage: "simplified"})
	_, _ = inv.RunOrAbort(context.Background(), Command{Argv: sh("exit 1"), Stage: "reprinted"})

	require.Len(t, obs.calls, 2)
	assert.Equal(t, 0, obs.calls[0].ExitCode)
	assert.Equal(t, 1, obs.calls[1].ExitCode)
	assert.Equal(t, "reprinted", obs.cmds[1].Stage)
}

func TestNew_DefaultTimeout(t *testing.T) {
	assert.Equal(t, DefaultTimeout, New(0, nil).Timeout())
	assert.Equal(t, time.Second, New(time.Second, nil).Timeout())
}

func TestCommand_String(t *testing.T) {
	tests := []struct {
		name string
		argv []string
		want string
	}{
		{"plain", []string{"./rule_engine/flatten", "in.kif", "out.kif"}, "./rule_engine/flatten in.kif out.kif"},
		{"space", []string{"tool", "a b"}, `tool "a b"`},
		{"empty arg", []string{"tool", ""}, `tool ""`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Command{Argv: tt.argv}.String())
		})
	}
}
