package invoke

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout is the ceiling applied to every invocation when none is configured.
const DefaultTimeout = 40 * time.Minute

// waitDelay bounds how long Wait blocks on I/O after the process is killed.
const waitDelay = 5 * time.Second

// Command describes one external invocation.
type Command struct {
	// Argv is the program and its arguments. Argv[0] is resolved via PATH
	// unless it contains a path separator.
	Argv []string

	// Stdout is the capture file for standard output. Empty discards it.
	Stdout string

	// Stderr is the capture file for standard error. Empty discards it.
	Stderr string

	// Subject, Stage and Variant label the invocation in logs and failures.
	// Subject is the input the invocation works on.
	Subject string
	Stage   string
	Variant string
}

// String renders the command line with arguments quoted where needed.
func (c Command) String() string {
	parts := make([]string, len(c.Argv))
	for i, a := range c.Argv {
		if a == "" || strings.ContainsAny(a, " \t\n\"'\\$") {
			parts[i] = strconv.Quote(a)
		} else {
			parts[i] = a
		}
	}
	return strings.Join(parts, " ")
}

// Result is the outcome of an invocation that produced an exit status.
type Result struct {
	ExitCode int
	Duration time.Duration
	Kind     FailureKind // empty on exit code 0
}

// Observer is notified after every invocation, successful or not.
// The run ledger implements it.
type Observer interface {
	ObserveInvocation(ctx context.Context, cmd Command, res Result)
}

// Invoker starts external processes under a uniform timeout ceiling.
//
// An Invoker holds no per-invocation state and is safe for concurrent use.
type Invoker struct {
	timeout  time.Duration
	logger   *slog.Logger
	observer Observer
}

// New creates an Invoker. A non-positive timeout selects DefaultTimeout.
// A nil logger discards log output.
func New(timeout time.Duration, logger *slog.Logger) *Invoker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Invoker{timeout: timeout, logger: logger}
}

// WithObserver returns a copy of the Invoker that reports to obs.
func (inv *Invoker) WithObserver(obs Observer) *Invoker {
	c := *inv
	c.observer = obs
	return &c
}

// Timeout returns the ceiling applied to every invocation.
func (inv *Invoker) Timeout() time.Duration {
	return inv.timeout
}

// Run executes cmd and returns its exit status.
//
// A non-zero exit is not an error: the caller decides what it means.
// The returned error is non-nil only when no exit status exists, i.e. the
// process could not be started, exceeded the timeout, or was canceled;
// in those cases it is a *StageFailure.
func (inv *Invoker) Run(ctx context.Context, cmd Command) (Result, error) {
	res, err := inv.run(ctx, cmd)
	if inv.observer != nil {
		inv.observer.ObserveInvocation(ctx, cmd, res)
	}
	return res, err
}

// RunOrAbort executes cmd and returns a *StageFailure unless it exits zero.
func (inv *Invoker) RunOrAbort(ctx context.Context, cmd Command) (Result, error) {
	res, err := inv.Run(ctx, cmd)
	if err != nil {
		return res, err
	}
	if res.ExitCode != 0 {
		return res, &StageFailure{
			Subject:  cmd.Subject,
			Stage:    cmd.Stage,
			Variant:  cmd.Variant,
			Command:  cmd.String(),
			ExitCode: res.ExitCode,
			Kind:     KindExit,
		}
	}
	return res, nil
}

func (inv *Invoker) run(ctx context.Context, cmd Command) (Result, error) {
	fail := func(kind FailureKind, err error) (Result, error) {
		return Result{ExitCode: -1, Kind: kind}, &StageFailure{
			Subject:  cmd.Subject,
			Stage:    cmd.Stage,
			Variant:  cmd.Variant,
			Command:  cmd.String(),
			ExitCode: -1,
			Kind:     kind,
			Timeout:  inv.timeout,
			Err:      err,
		}
	}

	if len(cmd.Argv) == 0 || cmd.Argv[0] == "" {
		return fail(KindSpawn, errors.New("empty argv"))
	}

	stdout, err := openCapture(cmd.Stdout)
	if err != nil {
		return fail(KindSpawn, err)
	}
	if stdout != nil {
		defer stdout.Close()
	}
	stderr, err := openCapture(cmd.Stderr)
	if err != nil {
		return fail(KindSpawn, err)
	}
	if stderr != nil {
		defer stderr.Close()
	}

	runCtx, cancel := context.WithTimeout(ctx, inv.timeout)
	defer cancel()

	c := exec.CommandContext(runCtx, cmd.Argv[0], cmd.Argv[1:]...)
	// Assigning a nil *os.File would make exec treat it as a non-nil writer.
	if stdout != nil {
		c.Stdout = stdout
	}
	if stderr != nil {
		c.Stderr = stderr
	}
	configureProcessGroup(c)
	c.WaitDelay = waitDelay

	inv.logger.Debug("invoking", "input", cmd.Subject, "stage", cmd.Stage, "variant", cmd.Variant, "command", cmd.String())
	start := time.Now()
	err = c.Run()
	elapsed := time.Since(start)

	switch {
	case err == nil:
		inv.logger.Info("invocation finished",
			"stage", cmd.Stage, "variant", cmd.Variant, "exit_code", 0, "duration", elapsed)
		return Result{ExitCode: 0, Duration: elapsed}, nil
	case ctx.Err() != nil:
		res, ferr := fail(KindCanceled, ctx.Err())
		res.Duration = elapsed
		inv.logger.Warn("invocation canceled", "stage", cmd.Stage, "variant", cmd.Variant)
		return res, ferr
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		res, ferr := fail(KindTimeout, runCtx.Err())
		res.Duration = elapsed
		inv.logger.Error("invocation timed out",
			"stage", cmd.Stage, "variant", cmd.Variant, "timeout", inv.timeout, "command", cmd.String())
		return res, ferr
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		inv.logger.Info("invocation finished",
			"stage", cmd.Stage, "variant", cmd.Variant, "exit_code", code, "duration", elapsed)
		return Result{ExitCode: code, Duration: elapsed, Kind: KindExit}, nil
	}

	res, ferr := fail(KindSpawn, err)
	res.Duration = elapsed
	inv.logger.Error("invocation failed to start", "command", cmd.String(), "error", err)
	return res, ferr
}

// openCapture creates (or truncates) a capture file. An empty path yields nil.
func openCapture(path string) (*os.File, error) {
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create capture directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open capture file: %w", err)
	}
	return f, nil
}
