// Package errors provides structured error types and exit codes for deflake.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Exit codes reported by the deflake process.
const (
	ExitNoFailure      = 0  // No failure reproduced within the attempt budget
	ExitGenericFailure = 1  // Internal, infrastructure or configuration error
	ExitRootCaused     = 10 // Failing subset isolated, reproducer printed
)

// ErrorKind represents the type of error.
type ErrorKind int

const (
	KindRuntime ErrorKind = iota
	KindConfig
	KindInfrastructure
	KindOracleContract
	KindRecordCorrupt
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindInfrastructure:
		return "infrastructure"
	case KindOracleContract:
		return "oracle contract violation"
	case KindRecordCorrupt:
		return "record file corrupt"
	default:
		return "runtime"
	}
}

// Error is the base error type for deflake.
//
// Errors raised around an external process carry the command line, its exit
// status and the tail of its output so a failure can be diagnosed without
// rerunning it.
type Error struct {
	Kind       ErrorKind
	Message    string
	Command    []string // Command line if applicable
	ExitStatus int      // Exit status of Command; -1 if it did not exit normally
	Output     string   // Captured output tail of Command
	Cause      error    // Underlying error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if len(e.Command) > 0 {
		return fmt.Sprintf("%s (command: %s)", msg, strings.Join(e.Command, " "))
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// ExitCode returns the process exit code for this error.
// Every error that reaches the CLI maps to the generic failure code.
func (e *Error) ExitCode() int {
	return ExitGenericFailure
}

// Config creates a new configuration error.
func Config(message string) *Error {
	return &Error{
		Kind:    KindConfig,
		Message: message,
	}
}

// Configf creates a new configuration error with formatting.
func Configf(format string, args ...interface{}) *Error {
	return Config(fmt.Sprintf(format, args...))
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) *Error {
	return &Error{
		Kind:    KindRuntime,
		Message: message,
		Cause:   err,
	}
}

// WrapConfig wraps an error as a configuration error.
func WrapConfig(err error, message string) *Error {
	return &Error{
		Kind:    KindConfig,
		Message: message,
		Cause:   err,
	}
}

// Infrastructure creates an error for a command that could not be run.
func Infrastructure(command []string, cause error, message string) *Error {
	return &Error{
		Kind:       KindInfrastructure,
		Message:    message,
		Command:    command,
		ExitStatus: -1,
		Cause:      cause,
	}
}

// OracleContract creates an error for an oracle run that produced no usable summary.
func OracleContract(command []string, exitStatus int, output string, cause error, message string) *Error {
	return &Error{
		Kind:       KindOracleContract,
		Message:    message,
		Command:    command,
		ExitStatus: exitStatus,
		Output:     output,
		Cause:      cause,
	}
}

// RecordCorrupt creates an error for an unreadable checkpoint file.
func RecordCorrupt(path string, cause error) *Error {
	return &Error{
		Kind:    KindRecordCorrupt,
		Message: fmt.Sprintf("failed to parse %s", path),
		Cause:   cause,
	}
}

// Is reports whether err is a deflake error of the given kind.
func Is(err error, kind ErrorKind) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}

// As is errors.As from the standard library.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetExitCode returns the exit code for an error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitNoFailure
	}
	var de *Error
	if errors.As(err, &de) {
		return de.ExitCode()
	}
	return ExitGenericFailure
}
