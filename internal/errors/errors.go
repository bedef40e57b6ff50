// Package errors provides the error taxonomy shared by every command.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Type identifies the category of error
type Type string

const (
	// TypeConfig indicates missing, ambiguous or invalid settings
	TypeConfig Type = "CONFIG_ERROR"

	// TypeAuthentication indicates a credential, MFA or key failure
	TypeAuthentication Type = "AUTHENTICATION_ERROR"

	// TypePermission indicates a missing grant on a system view
	TypePermission Type = "PERMISSION_ERROR"

	// TypeDataUnavailable indicates an empty or latent result
	TypeDataUnavailable Type = "DATA_UNAVAILABLE"

	// TypeValidation indicates an invalid declared configuration
	TypeValidation Type = "VALIDATION_ERROR"

	// TypeApply indicates the platform rejected a mutation
	TypeApply Type = "APPLY_ERROR"

	// TypeQuery indicates a query failed for a reason not covered above
	TypeQuery Type = "QUERY_ERROR"

	// TypeInternal indicates an internal error
	TypeInternal Type = "INTERNAL_ERROR"
)

// Error represents a domain error with context
type Error struct {
	Type    Type                   `json:"type"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`

	// Remediation is the action that fixes a permission error
	Remediation string `json:"remediation,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Type, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Remediation != "" {
		msg = fmt.Sprintf("%s (remediation: %s)", msg, e.Remediation)
	}
	return msg
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the error is of a specific type
func (e *Error) Is(t Type) bool {
	return e.Type == t
}

// WithContext adds context to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new error
func New(errType Type, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
	}
}

// Newf creates a new formatted error
func Newf(errType Type, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an error with context
func Wrap(errType Type, message string, cause error) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an error with formatted context
func Wrapf(errType Type, cause error, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// TypeOf returns the type of the first *Error in err's chain, or "" when none.
func TypeOf(err error) Type {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ""
}

// IsType checks if any error in err's chain is of a specific type
func IsType(err error, t Type) bool {
	for err != nil {
		var e *Error
		if !stderrors.As(err, &e) {
			return false
		}
		if e.Type == t {
			return true
		}
		err = e.Cause
	}
	return false
}

// Config creates a configuration error
func Config(message string) *Error {
	return New(TypeConfig, message)
}

// Configf creates a formatted configuration error
func Configf(format string, args ...interface{}) *Error {
	return Newf(TypeConfig, format, args...)
}

// Authentication creates an authentication error carrying the driver cause
func Authentication(message string, cause error) *Error {
	return Wrap(TypeAuthentication, message, cause)
}

// Permission creates a permission error with the grant that resolves it
func Permission(message, remediation string, cause error) *Error {
	e := Wrap(TypePermission, message, cause)
	e.Remediation = remediation
	return e
}

// DataUnavailable reports an empty lookback window for a report
func DataUnavailable(report string, days int) *Error {
	return Newf(TypeDataUnavailable, "no data in window for %s (last %d days)", report, days).
		WithContext("report", report).
		WithContext("days", days)
}

// Validation wraps one or more validation problems
func Validation(message string, cause error) *Error {
	return Wrap(TypeValidation, message, cause)
}

// Internal creates an internal error
func Internal(message string, cause error) *Error {
	return Wrap(TypeInternal, message, cause)
}

// ApplyError reports a batch that stopped at the first rejected change.
type ApplyError struct {
	Failed    string
	Succeeded []string
	Remaining []string
	Cause     error
}

// Error implements the error interface
func (e *ApplyError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] apply stopped at %s: %v", TypeApply, e.Failed, e.Cause)
	if len(e.Succeeded) > 0 {
		fmt.Fprintf(&b, "; applied: %s", strings.Join(e.Succeeded, ", "))
	}
	if len(e.Remaining) > 0 {
		fmt.Fprintf(&b, "; not attempted: %s", strings.Join(e.Remaining, ", "))
	}
	return b.String()
}

// Unwrap returns the platform error
func (e *ApplyError) Unwrap() error {
	return e.Cause
}

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var applyErr *ApplyError
	if stderrors.As(err, &applyErr) {
		return 1
	}
	switch TypeOf(err) {
	case TypeDataUnavailable:
		return 0
	case TypeConfig, TypeValidation:
		return 2
	case TypeAuthentication:
		return 3
	case TypePermission:
		return 4
	default:
		return 1
	}
}
