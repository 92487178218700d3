package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// BeginRun inserts a run in the running state.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	if run.Status == "" {
		run.Status = StatusRunning
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, suite, kind, status, message, started_seq)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID, run.Suite, run.Kind, run.Status, run.Message, run.StartedSeq)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// FinishRun records a run's terminal status.
func (s *Store) FinishRun(ctx context.Context, runID, status, message string, seq int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, message = ?, ended_seq = ?
		WHERE id = ?
	`, status, message, seq, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run: %w", sql.ErrNoRows)
	}
	return nil
}

// WriteTransition appends a state transition.
func (s *Store) WriteTransition(ctx context.Context, t Transition) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transitions (run_id, input, state, message, seq)
		VALUES (?, ?, ?, ?, ?)
	`, t.RunID, t.Input, t.State, t.Message, t.Seq)
	if err != nil {
		return fmt.Errorf("write transition: %w", err)
	}
	return nil
}

// WriteInvocation appends an invocation record. Argv is stored as a JSON array.
func (s *Store) WriteInvocation(ctx context.Context, inv Invocation) error {
	argv, err := json.Marshal(inv.Argv)
	if err != nil {
		return fmt.Errorf("write invocation: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO invocations
		(run_id, input, stage, variant, argv, exit_code, duration_ms, kind, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		inv.RunID,
		inv.Input,
		inv.Stage,
		inv.Variant,
		string(argv),
		inv.ExitCode,
		inv.Duration.Milliseconds(),
		inv.Kind,
		inv.Seq,
	)
	if err != nil {
		return fmt.Errorf("write invocation: %w", err)
	}
	return nil
}

// WriteArtifact records an artifact digest. Rewriting the same artifact
// within a run replaces the earlier digest, since canonicalization
// rewrites variant outputs in place.
func (s *Store) WriteArtifact(ctx context.Context, a Artifact) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO artifacts (run_id, input, label, variant, path, sha256, size, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, input, label, variant)
		DO UPDATE SET path = excluded.path, sha256 = excluded.sha256,
		              size = excluded.size, seq = excluded.seq
	`, a.RunID, a.Input, a.Label, a.Variant, a.Path, a.SHA256, a.Size, a.Seq)
	if err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}
