package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the engine.
type ErrorCode string

// Build-time error codes
const (
	ErrGraphInvalid    ErrorCode = "GRAPH_INVALID"
	ErrAgentNotFound   ErrorCode = "AGENT_NOT_FOUND"
	ErrConfigInvalid   ErrorCode = "CONFIG_INVALID"
	ErrDuplicateAgent  ErrorCode = "DUPLICATE_AGENT"
	ErrProtocolUnknown ErrorCode = "PROTOCOL_UNKNOWN"
)

// Run-time error codes
const (
	ErrModelCallFailed   ErrorCode = "MODEL_CALL_FAILED"
	ErrInterceptorFailed ErrorCode = "INTERCEPTOR_FAILED"
	ErrAgentFailed       ErrorCode = "AGENT_FAILED"
	ErrCancelled         ErrorCode = "CANCELLED"
	ErrStoreFailed       ErrorCode = "STORE_FAILED"
	ErrNestingTooDeep    ErrorCode = "NESTING_TOO_DEEP"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Node      string    `json:"node,omitempty"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	prefix := fmt.Sprintf("[%s]", e.Code)
	if e.Node != "" {
		prefix = fmt.Sprintf("[%s] node %s:", e.Code, e.Node)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s %s", prefix, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithNode records the graph node the error was raised at.
func (e *Error) WithNode(node string) *Error {
	e.Node = node
	return e
}

// AsError extracts a *Error anywhere in the chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := AsError(err); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// IsErrorCode reports whether err carries the given code.
func IsErrorCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}
