// Package invoke runs external transformation tools.
//
// Every tool is started from an argv (never a shell string), waited on, and
// bounded by a single timeout ceiling that applies uniformly to every
// invocation. Standard output and standard error are captured to files that
// are truncated at the start of each invocation, so re-running a command
// replaces its previous captures instead of appending to them.
//
// Two entry points exist:
//
//   - Run returns the exit code and leaves its interpretation to the caller.
//     Use it when a non-zero exit is itself the signal (diff-style tools).
//   - RunOrAbort turns any non-zero exit into a *StageFailure carrying the
//     command line so the run can stop immediately.
//
// Timeouts, spawn failures, and cancellation are always reported as
// *StageFailure, from either entry point. Nothing is retried: tool failures
// are not transient by assumption.
package invoke
