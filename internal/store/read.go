package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"
)

// ListRuns returns the most recent runs, newest first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `
		SELECT id, suite, kind, status, message, started_seq, ended_seq
		FROM runs
		ORDER BY rowid DESC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRun returns a single run. It returns an error wrapping sql.ErrNoRows
// when the run does not exist.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, suite, kind, status, message, started_seq, ended_seq
		FROM runs WHERE id = ?
	`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, sql.ErrNoRows)
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var r Run
	var ended sql.NullInt64
	if err := row.Scan(&r.ID, &r.Suite, &r.Kind, &r.Status, &r.Message, &r.StartedSeq, &ended); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	r.EndedSeq = ended.Int64
	return r, nil
}

// ReadTransitions returns a run's transitions in seq order.
func (s *Store) ReadTransitions(ctx context.Context, runID string) ([]Transition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, input, state, message, seq
		FROM transitions
		WHERE run_id = ?
		ORDER BY seq ASC, id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	out := []Transition{}
	for rows.Next() {
		var t Transition
		if err := rows.Scan(&t.RunID, &t.Input, &t.State, &t.Message, &t.Seq); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transitions: %w", err)
	}
	return out, nil
}

// ReadInvocations returns a run's invocations in seq order.
func (s *Store) ReadInvocations(ctx context.Context, runID string) ([]Invocation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, input, stage, variant, argv, exit_code, duration_ms, kind, seq
		FROM invocations
		WHERE run_id = ?
		ORDER BY seq ASC, id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query invocations: %w", err)
	}
	defer rows.Close()

	out := []Invocation{}
	for rows.Next() {
		var inv Invocation
		var argv string
		var ms int64
		if err := rows.Scan(&inv.RunID, &inv.Input, &inv.Stage, &inv.Variant, &argv,
			&inv.ExitCode, &ms, &inv.Kind, &inv.Seq); err != nil {
			return nil, fmt.Errorf("scan invocation: %w", err)
		}
		if err := json.Unmarshal([]byte(argv), &inv.Argv); err != nil {
			return nil, fmt.Errorf("decode argv: %w", err)
		}
		inv.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invocations: %w", err)
	}
	return out, nil
}

// ReadArtifacts returns a run's artifact digests ordered by input, label and variant.
func (s *Store) ReadArtifacts(ctx context.Context, runID string) ([]Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, input, label, variant, path, sha256, size, seq
		FROM artifacts
		WHERE run_id = ?
		ORDER BY input COLLATE BINARY, label COLLATE BINARY, variant COLLATE BINARY
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}
	defer rows.Close()

	out := []Artifact{}
	for rows.Next() {
		var a Artifact
		if err := rows.Scan(&a.RunID, &a.Input, &a.Label, &a.Variant, &a.Path, &a.SHA256, &a.Size, &a.Seq); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artifacts: %w", err)
	}
	return out, nil
}

// DigestChange describes an artifact whose digest differs between two runs.
// An empty Before or After means the artifact exists in only one run.
type DigestChange struct {
	Key    string `json:"key"`
	Before string `json:"before,omitempty"`
	After  string `json:"after,omitempty"`
}

// CompareArtifacts returns the artifacts of run after whose digests differ
// from run before, ordered by key. Two runs over the same inputs with
// deterministic tools should produce no changes.
func (s *Store) CompareArtifacts(ctx context.Context, before, after string) ([]DigestChange, error) {
	a, err := s.ReadArtifacts(ctx, before)
	if err != nil {
		return nil, err
	}
	b, err := s.ReadArtifacts(ctx, after)
	if err != nil {
		return nil, err
	}
	return DiffArtifacts(a, b), nil
}

// DiffArtifacts compares two artifact lists by key.
func DiffArtifacts(before, after []Artifact) []DigestChange {
	digests := make(map[string]*DigestChange, len(before)+len(after))
	for _, a := range before {
		digests[a.Key()] = &DigestChange{Key: a.Key(), Before: a.SHA256}
	}
	for _, a := range after {
		if c, ok := digests[a.Key()]; ok {
			c.After = a.SHA256
			continue
		}
		digests[a.Key()] = &DigestChange{Key: a.Key(), After: a.SHA256}
	}

	var changes []DigestChange
	for _, key := range slices.Sorted(maps.Keys(digests)) {
		if c := digests[key]; c.Before != c.After {
			changes = append(changes, *c)
		}
	}
	return changes
}
