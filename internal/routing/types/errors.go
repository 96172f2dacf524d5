package types

import (
	"errors"
	"fmt"
)

// RouteError represents an error raised while planning or applying route changes
type RouteError struct {
	Kind        ErrorKind
	Destination string // Destination involved in the error, if any
	Message     string // User-facing message
	Cause       error  // Underlying error
}

// ErrorKind represents the category of a route error
type ErrorKind int

// Error kind constants
const (
	// ErrMalformedInput indicates unsorted or overlapping input ranges or unparsable route entries
	ErrMalformedInput ErrorKind = iota
	// ErrGatewayUnavailable indicates no usable gateway for an add operation
	ErrGatewayUnavailable
	// ErrUnsupportedPlatform indicates no snapshot provider exists for the running platform
	ErrUnsupportedPlatform
	// ErrLockHeld indicates a fresh operation lock is held by another run
	ErrLockHeld
	// ErrCommandExecution indicates one group of route mutations failed
	ErrCommandExecution
	// ErrPermission indicates insufficient privileges for route operations
	ErrPermission
)

// String returns a string representation of the error kind
func (k ErrorKind) String() string {
	switch k {
	case ErrMalformedInput:
		return "MalformedInput"
	case ErrGatewayUnavailable:
		return "GatewayUnavailable"
	case ErrUnsupportedPlatform:
		return "UnsupportedPlatform"
	case ErrLockHeld:
		return "LockHeld"
	case ErrCommandExecution:
		return "CommandExecution"
	case ErrPermission:
		return "Permission"
	default:
		return "UnknownError"
	}
}

// Error implements the error interface for RouteError
func (re *RouteError) Error() string {
	msg := re.Message
	if msg == "" {
		msg = "route operation failed"
	}
	if re.Destination != "" {
		msg = fmt.Sprintf("%s (%s)", msg, re.Destination)
	}
	if re.Cause != nil {
		return fmt.Sprintf("%s [%s]: %v", msg, re.Kind, re.Cause)
	}
	return fmt.Sprintf("%s [%s]", msg, re.Kind)
}

// Unwrap returns the underlying cause
func (re *RouteError) Unwrap() error {
	return re.Cause
}

// IsFatal reports whether the error must stop the run.
// Only command execution failures are contained by the batch executor.
func (re *RouteError) IsFatal() bool {
	return re.Kind != ErrCommandExecution
}

// IsPermissionError returns true if the error is due to insufficient privileges
func (re *RouteError) IsPermissionError() bool {
	return re.Kind == ErrPermission
}

// UserMessage returns the message shown to users, without diagnostic detail
func (re *RouteError) UserMessage() string {
	if re.Message != "" {
		return re.Message
	}
	return re.Kind.String()
}

// NewError creates a RouteError of the given kind
func NewError(kind ErrorKind, message string, cause error) *RouteError {
	return &RouteError{Kind: kind, Message: message, Cause: cause}
}

// Errorf creates a RouteError with a formatted message
func Errorf(kind ErrorKind, format string, args ...any) *RouteError {
	return &RouteError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err wraps a RouteError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var re *RouteError
	if errors.As(err, &re) {
		return re.Kind == kind
	}
	return false
}

// AsRouteError extracts the first RouteError from err's chain
func AsRouteError(err error) (*RouteError, bool) {
	var re *RouteError
	ok := errors.As(err, &re)
	return re, ok
}
