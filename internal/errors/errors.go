package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// DuplicateKey indicates a dictionary insert collided with an existing key
	DuplicateKey ErrorCode = "DUPLICATE_KEY"
	// NotFound indicates a dictionary lookup or removal missed
	NotFound ErrorCode = "NOT_FOUND"
	// NoRouteMatched indicates no registered route accepted the path
	NoRouteMatched ErrorCode = "NO_ROUTE_MATCHED"
	// HandlerFailure indicates a handler returned an error or panicked
	HandlerFailure ErrorCode = "HANDLER_FAILURE"
	// InvalidPattern indicates a route pattern failed to compile
	InvalidPattern ErrorCode = "INVALID_PATTERN"
	// InvalidHeader indicates a response header name or value is malformed
	InvalidHeader ErrorCode = "INVALID_HEADER"
	// RouterFrozen indicates a registration after the listen phase began
	RouterFrozen ErrorCode = "ROUTER_FROZEN"
	// SessionNotFound indicates an unknown or expired session id
	SessionNotFound ErrorCode = "SESSION_NOT_FOUND"
	// ConfigInvalid indicates a configuration or route file is unusable
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// OpenDocs suggests opening documentation
	OpenDocs FixActionType = "open-docs"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Safe        bool          `json:"safe,omitempty"`
	Description string        `json:"description,omitempty"`
	URL         string        `json:"url,omitempty"`
}

// Error carries a stable code, a message, optional details and the cause.
type Error struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error       // Underlying error (not exported to JSON)
}

// New creates a new Error with the default fixes for its code.
func New(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: GetSuggestedFixes(code),
	}
}

// Newf is New with a formatted message and no cause.
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}

// CodeOf returns the code of the first *Error in err's chain, or InternalError.
func CodeOf(err error) ErrorCode {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return InternalError
}

// As is the standard library errors.As.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	var e *Error
	for stderrors.As(err, &e) {
		if e.Code == code {
			return true
		}
		err = e.cause
		if err == nil {
			return false
		}
	}
	return false
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	InvalidPattern: {
		{
			Type:        RunCommand,
			Command:     "burrow routes check ${routes_file}",
			Safe:        true,
			Description: "Validate every route pattern before serving",
		},
	},
	ConfigInvalid: {
		{
			Type:        RunCommand,
			Command:     "burrow config show",
			Safe:        true,
			Description: "Inspect the effective configuration",
		},
	},
	InvalidHeader: {
		{
			Type:        OpenDocs,
			URL:         "https://www.rfc-editor.org/rfc/rfc9110#section-5.1",
			Description: "Header names must be tokens and values must not hold control characters",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}

// FixesFor collects the suggested fixes of every *Error in err's chain,
// outermost first.
func FixesFor(err error) []FixAction {
	var fixes []FixAction
	var e *Error
	for err != nil && stderrors.As(err, &e) {
		fixes = append(fixes, GetSuggestedFixes(e.Code)...)
		err = e.cause
	}
	return fixes
}
