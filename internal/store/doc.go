// Package store provides the SQLite run ledger for rulecheck.
//
// The ledger is append-only and records, per run:
//   - Runs: suite, kind, terminal status
//   - Transitions: per-input state machine steps
//   - Invocations: every external command, its exit code, duration and failure kind
//   - Artifacts: SHA-256 digests of every produced artifact
//
// Comparison results are not persisted. A failed input's terminal
// transition carries the error message instead.
//
// # Ordering
//
// Rows are ordered by a logical seq (see Clock), never by wall time, so
// concurrent inputs interleave deterministically in history output.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
