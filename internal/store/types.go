package store

import "time"

// Run statuses.
const (
	StatusRunning = "running"
	StatusPassed  = "passed"
	StatusFailed  = "failed"
)

// Run is one harness execution.
type Run struct {
	ID         string `json:"id"`
	Suite      string `json:"suite"`
	Kind       string `json:"kind"`
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
	StartedSeq int64  `json:"started_seq"`
	EndedSeq   int64  `json:"ended_seq,omitempty"` // 0 while running
}

// Transition is one step of an input's state machine.
type Transition struct {
	RunID   string `json:"run_id"`
	Input   string `json:"input"`
	State   string `json:"state"`
	Message string `json:"message,omitempty"`
	Seq     int64  `json:"seq"`
}

// Invocation records one external command.
type Invocation struct {
	RunID    string        `json:"run_id"`
	Input    string        `json:"input,omitempty"`
	Stage    string        `json:"stage,omitempty"`
	Variant  string        `json:"variant,omitempty"`
	Argv     []string      `json:"argv"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration_ns"`
	Kind     string        `json:"kind,omitempty"`
	Seq      int64         `json:"seq"`
}

// Artifact records the digest of one produced file.
type Artifact struct {
	RunID   string `json:"run_id"`
	Input   string `json:"input"`
	Label   string `json:"label"`
	Variant string `json:"variant,omitempty"`
	Path    string `json:"path"`
	SHA256  string `json:"sha256"`
	Size    int64  `json:"size"`
	Seq     int64  `json:"seq"`
}

// Key identifies an artifact independently of the run that produced it.
func (a Artifact) Key() string {
	if a.Variant == "" {
		return a.Input + "/" + a.Label
	}
	return a.Input + "/" + a.Label + "." + a.Variant
}
