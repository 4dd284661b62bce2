package browser

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors returned by browser operations.
var (
	// ErrNotOpen is returned when a page command is issued before Open.
	ErrNotOpen = errors.New("browser session not open")

	// ErrCommandFailed is returned when the CLI exits non-zero.
	ErrCommandFailed = errors.New("browser command failed")

	// ErrBinaryNotFound is returned when the CLI binary is not in PATH.
	ErrBinaryNotFound = errors.New("browser automation binary not available")

	// ErrTimeout is returned when a command or a wait exceeds its deadline.
	ErrTimeout = errors.New("browser operation timed out")

	// ErrSnapshotFailed is returned when a snapshot response reports
	// failure or cannot be decoded.
	ErrSnapshotFailed = errors.New("snapshot failed")

	// ErrNoRosterControl is returned by NavigateToRoster when no roster
	// control is visible and no fallback URL was given.
	ErrNoRosterControl = errors.New("no roster navigation control found")
)

// CommandError carries the failed command line and captured stderr.
type CommandError struct {
	Command string
	Stderr  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("browser command %q failed: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("browser command %q failed: %v: %s", e.Command, e.Err, e.Stderr)
}

// Unwrap exposes both the sentinel and the underlying process error.
func (e *CommandError) Unwrap() []error {
	return []error{ErrCommandFailed, e.Err}
}

func commandLine(args []string) string {
	return strings.Join(args, " ")
}

// IsRetryable returns true if the error is likely to succeed on retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrSnapshotFailed)
}

// IsFatal returns true if nothing further can be done with the browser.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrBinaryNotFound) || errors.Is(err, ErrNotOpen)
}
