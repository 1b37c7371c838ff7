package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/bindery/internal/predicate"
	"github.com/roach88/bindery/internal/store"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Store operation failed (not found, duplicate, ...)
	ExitCommandError = 2 // Command error (bad flags, unreadable files, ...)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
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

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostic output; defaults to Writer
	Verbose   bool
}

// newFormatter builds a formatter from the global options and the
// command's writers.
func newFormatter(opts *RootOptions, out, errOut io.Writer) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    out,
		ErrWriter: errOut,
		Verbose:   opts.Verbose,
	}
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"` // store error code, INVALID_PREDICATE, or COMMAND_ERROR
	Message string `json:"message"`
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Fail outputs a structured error in the configured format, then
// returns an ExitError so the process exits non-zero.
func (f *OutputFormatter) Fail(err error) error {
	code := errorCode(err)
	if f.Format == "json" {
		if encErr := json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: err.Error()},
		}); encErr != nil {
			return encErr
		}
	} else {
		fmt.Fprintf(f.Writer, "Error [%s]: %v\n", code, err)
	}
	return WrapExitError(ExitFailure, code, err)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Diagnostic output goes to ErrWriter so it never corrupts JSON.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// errorCode maps an error to its structured code. Plain errors get
// COMMAND_ERROR.
func errorCode(err error) string {
	var se *store.StoreError
	if errors.As(err, &se) {
		return string(se.Code)
	}
	if predicate.IsInvalid(err) {
		return predicate.CodeInvalidPredicate
	}
	return "COMMAND_ERROR"
}
