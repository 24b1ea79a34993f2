package errors

import (
	"errors"
	"fmt"
)

// Exit codes for desklab
const (
	ExitSuccess         = 0
	ExitGeneralError    = 1
	ExitNotFound        = 2
	ExitPortAllocation  = 4
	ExitExternalFailure = 5
	ExitConfigError     = 6
	ExitForbidden       = 7
	ExitUnauthorized    = 8
)

// DeskError is the base error type for desklab
type DeskError struct {
	Code    int
	Message string
	Cause   error
}

func (e *DeskError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *DeskError) Unwrap() error {
	return e.Cause
}

// ExitCode returns the exit code for this error
func (e *DeskError) ExitCode() int {
	return e.Code
}

// New creates a new DeskError
func New(code int, message string) *DeskError {
	return &DeskError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a DeskError
func Wrap(code int, message string, cause error) *DeskError {
	return &DeskError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Common error constructors

// SessionNotFound returns an error for an unknown (user, session) pair
func SessionNotFound(user, sessionID string) *DeskError {
	return New(ExitNotFound, fmt.Sprintf("session not found: %s:%s", user, sessionID))
}

// UserNotFound returns an error for an unknown user
func UserNotFound(name string) *DeskError {
	return New(ExitNotFound, fmt.Sprintf("user not found: %s", name))
}

// ImageNotFound returns an error for an unknown artifact reference
func ImageNotFound(ref string) *DeskError {
	return New(ExitNotFound, fmt.Sprintf("image not found: %s", ref))
}

// PortAllocationFailed returns an error for port allocation failure
func PortAllocationFailed(cause error) *DeskError {
	return Wrap(ExitPortAllocation, "failed to allocate port", cause)
}

// ExternalFailure returns an error for a failed runtime or store call
func ExternalFailure(op string, cause error) *DeskError {
	return Wrap(ExitExternalFailure, fmt.Sprintf("%s failed", op), cause)
}

// ConfigError returns an error for configuration issues
func ConfigError(message string, cause error) *DeskError {
	return Wrap(ExitConfigError, message, cause)
}

// ValidationError returns an error for input validation failures
func ValidationError(message string) *DeskError {
	return New(ExitGeneralError, message)
}

// Forbidden returns an error when the subject may not perform an action
func Forbidden(subject, action string) *DeskError {
	return New(ExitForbidden, fmt.Sprintf("%s is not allowed to %s", subject, action))
}

// Unauthorized returns an error for failed authentication
func Unauthorized() *DeskError {
	return New(ExitUnauthorized, "incorrect username or password")
}

// GetExitCode extracts the exit code from an error
func GetExitCode(err error) int {
	var deskErr *DeskError
	if errors.As(err, &deskErr) {
		return deskErr.ExitCode()
	}
	return ExitGeneralError
}

// HasCode reports whether err carries a DeskError with the given code
func HasCode(err error, code int) bool {
	var deskErr *DeskError
	return errors.As(err, &deskErr) && deskErr.Code == code
}

// Is checks if an error is of a specific type
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target any) bool {
	return errors.As(err, target)
}
