package command

import (
	"errors"
	"fmt"
)

// ErrCommandImport tags diagnostics for scripts that raised while loading.
var ErrCommandImport = errors.New("command import failed")

const (
	// SeverityWarning indicates a command that could not be used.
	SeverityWarning Severity = "warning"
	// SeverityError indicates a namespace or runtime problem.
	SeverityError Severity = "error"
)

// Diagnostic codes.
const (
	CodeInvalidName  = "command_invalid_name"
	CodeNotFound     = "command_not_found"
	CodeImportFailed = "command_import_failed"
	CodeNoCallable   = "command_no_cli"
	CodeRuntime      = "command_runtime"
)

type (
	// Severity represents diagnostic severity.
	Severity string

	// Diagnostic describes a command that could not be loaded. Diagnostics are
	// recorded instead of returned so listing and help never fail.
	Diagnostic struct {
		// Severity is the diagnostic level (warning or error).
		Severity Severity
		// Code is a machine-readable identifier (e.g., "command_import_failed").
		Code string
		// Command is the command name that was requested.
		Command string
		// Message is the human-readable description.
		Message string
		// Path is the script path (optional).
		Path string
		// Cause is the underlying error (optional).
		Cause error
	}
)

// String returns a one-line rendering of the diagnostic.
func (d Diagnostic) String() string {
	if d.Path != "" {
		return fmt.Sprintf("%s: %s (%s)", d.Command, d.Message, d.Path)
	}
	return fmt.Sprintf("%s: %s", d.Command, d.Message)
}
