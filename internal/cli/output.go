package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Process exit codes.
//
// ExitFailure means the command ran but its verdict is negative: a scenario
// failed or `check` found unbalanced SQL. ExitCommandError means no verdict
// was reached: the definition could not be loaded or composed, a seed or the
// statement failed in SQLite, or an output file could not be written.
const (
	ExitSuccess      = 0
	ExitFailure      = 1
	ExitCommandError = 2
)

// ExitError carries the exit code a command failed with.
//
// Message starts with the error code ("E201: ...") when the failure maps to
// one. Err is the composition, config or store error behind it.
type ExitError struct {
	Code    int
	Message string
	Err     error

	// Reported is set once the command has written the failure to its
	// output (text or JSON envelope); main then only sets the exit code.
	Reported bool
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

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// reported marks an ExitError as already written to the command output.
func reported(e *ExitError) *ExitError {
	e.Reported = true
	return e
}

// IsReported reports whether err carries an ExitError whose message the
// command already printed.
func IsReported(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr) && exitErr.Reported
}

// GetExitCode returns the exit code carried by err. Errors raised by cobra
// itself (unknown flag, wrong argument count) carry none and map to
// ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter writes command results as text or as one JSON envelope
// per invocation. Composed SQL and result rows go to Writer; verbose
// diagnostics and slog output go to ErrWriter so JSON on stdout stays
// parseable.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // nil means Writer
	Verbose   bool
}

// CLIResponse is the JSON envelope:
//
//	{"status":"ok","data":{"sql":"with ..."},"trace_id":"<run id>"}
//	{"status":"error","error":{"code":"E201","message":"..."}}
//
// TraceID is the UUIDv7 run id for `compose` and `run`; it matches the id
// recorded in the run log.
type CLIResponse struct {
	Status  string      `json:"status"`
	Data    interface{} `json:"data,omitempty"`
	Error   *CLIError   `json:"error,omitempty"`
	TraceID string      `json:"trace_id,omitempty"`
}

// CLIError is the error member of the envelope. Details holds positions
// for balance failures ({line, column, offset}) and is omitted otherwise.
type CLIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// Success writes data without a trace id.
func (f *OutputFormatter) Success(data interface{}) error {
	return f.SuccessWithTrace(data, "")
}

// SuccessWithTrace writes data tagged with a run id. In text mode data is
// printed with fmt.Println and the id is left to the caller.
func (f *OutputFormatter) SuccessWithTrace(data interface{}, traceID string) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status:  "ok",
			Data:    data,
			TraceID: traceID,
		})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error writes a failure. Text mode prints "Error [E201]: ..." and, with
// --verbose, the details.
func (f *OutputFormatter) Error(code, message string, details interface{}) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog writes a diagnostic line when --verbose is set.
func (f *OutputFormatter) VerboseLog(format string, args ...interface{}) {
	if f.Verbose {
		fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
	}
}

// GetErrWriter returns the diagnostics writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
