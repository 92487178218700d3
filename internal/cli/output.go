package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/rulecheck/internal/invoke"
	"github.com/roach88/rulecheck/internal/suite"
	"github.com/roach88/rulecheck/internal/verify"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // every input passed
	ExitFailure      = 1 // stage failure or comparison failure
	ExitCommandError = 2 // usage or configuration error (bad flags, suite file, missing inputs)
)

// Error codes carried in the JSON error envelope.
const (
	ErrCodeStage      = "E101" // an external command failed or timed out
	ErrCodeComparison = "E102" // two artifacts disagree, or a variant set is invalid
	ErrCodeSuite      = "E201" // suite could not be loaded or validated
	ErrCodeUsage      = "E202" // bad arguments or input selection
	ErrCodeLedger     = "E203" // run ledger could not be opened or read
)

// ExitError is an error that carries a process exit code.
type ExitError struct {
	Code    int    // ExitFailure or ExitCommandError
	Message string
	Err     error // optional

	// reported is set once the error has been written through an OutputFormatter.
	reported bool
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// GetExitCode extracts the exit code from an error.
// Errors that are not ExitErrors come from argument parsing and count as
// command errors.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics; keeps JSON on Writer clean
	Verbose   bool
}

// CLIResponse is the JSON envelope for every command.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format. Text errors go to
// ErrWriter when set.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}

	w := f.errWriter()
	fmt.Fprintf(w, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(w, "Details: %+v\n", details)
	}
	return nil
}

func (f *OutputFormatter) errWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// StageFailureDetails is the JSON detail payload for a failed command.
type StageFailureDetails struct {
	Input    string `json:"input,omitempty"`
	Stage    string `json:"stage,omitempty"`
	Variant  string `json:"variant,omitempty"`
	Kind     string `json:"kind"`
	ExitCode int    `json:"exit_code"`
	Command  string `json:"command"`
}

// ComparisonFailureDetails is the JSON detail payload for a disagreement.
type ComparisonFailureDetails struct {
	Code      string `json:"code"`
	Input     string `json:"input,omitempty"`
	Policy    string `json:"policy,omitempty"`
	Left      string `json:"left,omitempty"`
	Right     string `json:"right,omitempty"`
	Line      int    `json:"line,omitempty"`
	LeftLine  string `json:"left_line,omitempty"`
	RightLine string `json:"right_line,omitempty"`
}

// classify maps a run error to its exit code, envelope code and details.
func classify(err error) (exit int, code string, details any) {
	var sf *invoke.StageFailure
	var cf *verify.ComparisonFailure
	var le *suite.LoadError
	switch {
	case errors.As(err, &sf):
		return ExitFailure, ErrCodeStage, StageFailureDetails{
			Input:    sf.Subject,
			Stage:    sf.Stage,
			Variant:  sf.Variant,
			Kind:     string(sf.Kind),
			ExitCode: sf.ExitCode,
			Command:  sf.Command,
		}
	case errors.As(err, &cf):
		d := ComparisonFailureDetails{
			Code:      string(cf.Code),
			Input:     cf.Input,
			Left:      cf.Left,
			Right:     cf.Right,
			Line:      cf.Line,
			LeftLine:  cf.LeftLine,
			RightLine: cf.RightLine,
		}
		if cf.Policy != 0 {
			d.Policy = cf.Policy.String()
		}
		return ExitFailure, ErrCodeComparison, d
	case errors.As(err, &le):
		return ExitCommandError, ErrCodeSuite, map[string]string{"code": le.Code}
	default:
		return ExitCommandError, ErrCodeUsage, nil
	}
}

// reportError writes err through the formatter and converts it to an ExitError.
func reportError(f *OutputFormatter, err error) error {
	exit, code, details := classify(err)
	_ = f.Error(code, err.Error(), details)
	return &ExitError{Code: exit, Message: code, Err: err, reported: true}
}
