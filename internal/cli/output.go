package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Process exit codes. A failed sync or a lookup that found nothing is
// ExitFailure. Anything fixed by changing the invocation or the config file
// is ExitCommandError.
const (
	ExitSuccess      = 0
	ExitFailure      = 1
	ExitCommandError = 2
)

// Output formats accepted by --format.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Envelope status values.
const (
	statusOK    = "ok"
	statusError = "error"
)

// ExitError carries the exit code and E-code a command failed with.
type ExitError struct {
	Code      int    // ExitFailure or ExitCommandError
	ErrorCode string // "E203"; empty lets errorCode classify Err
	Message   string
	Err       error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError returns an ExitError with no cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError returns an ExitError caused by err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the code of the first ExitError in err's chain, or
// ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// CLIResponse is the envelope every --format json invocation prints: one
// object per line, so `larder watch --format json` is a JSON Lines stream.
type CLIResponse struct {
	Status string    `json:"status"`
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error half of CLIResponse.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// OutputFormatter writes command results as text or as CLIResponse lines.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics; nil means Writer
	Verbose   bool
}

func (f *OutputFormatter) isJSON() bool { return f.Format == FormatJSON }

func (f *OutputFormatter) encode(resp CLIResponse) error {
	return json.NewEncoder(f.Writer).Encode(resp)
}

// Success prints data, using fmt.Fprintln in text mode.
func (f *OutputFormatter) Success(data any) error {
	return f.Render(data, nil)
}

// Render prints data inside an ok envelope in JSON mode. In text mode it
// calls text, or falls back to fmt.Fprintln when text is nil.
func (f *OutputFormatter) Render(data any, text func(w io.Writer) error) error {
	switch {
	case f.isJSON():
		return f.encode(CLIResponse{Status: statusOK, Data: data})
	case text != nil:
		return text(f.Writer)
	default:
		_, err := fmt.Fprintln(f.Writer, data)
		return err
	}
}

// Error prints an error envelope, or "Error [E005]: ..." in text mode.
// Details are only shown in text mode with --verbose.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.isJSON() {
		return f.encode(CLIResponse{
			Status: statusError,
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}

	if _, err := fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message); err != nil {
		return err
	}
	if f.Verbose && details != nil {
		_, err := fmt.Fprintf(f.Writer, "Details: %v\n", details)
		return err
	}
	return nil
}

// VerboseLog prints a diagnostic line when --verbose is set. It goes to the
// diagnostics writer so JSON output on Writer stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns ErrWriter, or Writer when unset.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
