package invoke

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// FailureKind classifies why an invocation did not succeed.
type FailureKind string

const (
	// KindExit indicates the process ran and exited non-zero.
	KindExit FailureKind = "exit"

	// KindTimeout indicates the process exceeded the timeout ceiling and was killed.
	KindTimeout FailureKind = "timeout"

	// KindSpawn indicates the process could not be started.
	KindSpawn FailureKind = "spawn"

	// KindCanceled indicates the run was canceled while the process was running.
	KindCanceled FailureKind = "canceled"
)

// StageFailure is returned when an external invocation fails.
//
// It names the stage and variant (when the caller supplied them) and the
// exact command line, which is enough to reproduce the failure by hand.
type StageFailure struct {
	// Subject is the input being processed, when known.
	Subject string

	// Stage is the label of the pipeline step (e.g. "flattened").
	Stage string

	// Variant is the implementation variant, empty for single-variant stages.
	Variant string

	// Command is the rendered command line.
	Command string

	// ExitCode is the process exit code, -1 when the process never exited normally.
	ExitCode int

	// Kind classifies the failure.
	Kind FailureKind

	// Timeout is the ceiling that was exceeded (KindTimeout only).
	Timeout time.Duration

	// Err is the underlying error, if any.
	Err error
}

func (e *StageFailure) Error() string {
	var b strings.Builder
	b.WriteString("stage failure")
	if e.Subject != "" {
		b.WriteString(" for ")
		b.WriteString(e.Subject)
	}
	if e.Stage != "" {
		b.WriteString(" in ")
		b.WriteString(e.Stage)
		if e.Variant != "" {
			fmt.Fprintf(&b, "[%s]", e.Variant)
		}
	}
	switch e.Kind {
	case KindTimeout:
		fmt.Fprintf(&b, ": timeout after %s", e.Timeout)
	case KindExit:
		fmt.Fprintf(&b, ": exit code %d", e.ExitCode)
	case KindSpawn:
		b.WriteString(": failed to start")
	case KindCanceled:
		b.WriteString(": canceled")
	}
	if e.Err != nil && e.Kind != KindTimeout {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	fmt.Fprintf(&b, "\ncommand: %s", e.Command)
	return b.String()
}

func (e *StageFailure) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is a *StageFailure caused by the timeout ceiling.
func IsTimeout(err error) bool {
	var sf *StageFailure
	if errors.As(err, &sf) {
		return sf.Kind == KindTimeout
	}
	return false
}
