package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/roach88/rulecheck/internal/invoke"
)

// Ledger records a single run. It implements invoke.Observer so every
// external command is captured without the invoker knowing about SQLite.
type Ledger struct {
	store  *Store
	runID  string
	clock  *Clock
	logger *slog.Logger
}

// NewLedger creates a ledger for runID. A nil clock starts a fresh one.
func NewLedger(s *Store, runID string, clock *Clock, logger *slog.Logger) *Ledger {
	if clock == nil {
		clock = NewClock()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Ledger{store: s, runID: runID, clock: clock, logger: logger}
}

// RunID returns the ID of the run being recorded.
func (l *Ledger) RunID() string {
	return l.runID
}

// Begin records the start of the run.
func (l *Ledger) Begin(ctx context.Context, suite, kind string) error {
	return l.store.BeginRun(ctx, Run{
		ID:         l.runID,
		Suite:      suite,
		Kind:       kind,
		Status:     StatusRunning,
		StartedSeq: l.clock.Next(),
	})
}

// Finish records the run's terminal status.
func (l *Ledger) Finish(ctx context.Context, passed bool, message string) error {
	status := StatusFailed
	if passed {
		status = StatusPassed
	}
	return l.store.FinishRun(ctx, l.runID, status, message, l.clock.Next())
}

// Transition records an input entering state.
func (l *Ledger) Transition(ctx context.Context, input, state, message string) error {
	return l.store.WriteTransition(ctx, Transition{
		RunID:   l.runID,
		Input:   input,
		State:   state,
		Message: message,
		Seq:     l.clock.Next(),
	})
}

// Artifact hashes the file at path and records its digest.
func (l *Ledger) Artifact(ctx context.Context, input, label, variant, path string) error {
	sum, size, err := Digest(path)
	if err != nil {
		return fmt.Errorf("record artifact %s: %w", path, err)
	}
	return l.store.WriteArtifact(ctx, Artifact{
		RunID:   l.runID,
		Input:   input,
		Label:   label,
		Variant: variant,
		Path:    path,
		SHA256:  sum,
		Size:    size,
		Seq:     l.clock.Next(),
	})
}

// ObserveInvocation records an invocation. Write errors are logged, not
// returned: a ledger problem must not change the outcome of a run.
func (l *Ledger) ObserveInvocation(ctx context.Context, cmd invoke.Command, res invoke.Result) {
	err := l.store.WriteInvocation(context.WithoutCancel(ctx), Invocation{
		RunID:    l.runID,
		Input:    cmd.Subject,
		Stage:    cmd.Stage,
		Variant:  cmd.Variant,
		Argv:     cmd.Argv,
		ExitCode: res.ExitCode,
		Duration: res.Duration,
		Kind:     string(res.Kind),
		Seq:      l.clock.Next(),
	})
	if err != nil {
		l.logger.Warn("ledger write failed", "run", l.runID, "command", cmd.String(), "error", err)
	}
}

// Digest returns the hex SHA-256 and size of the file at path.
func Digest(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
