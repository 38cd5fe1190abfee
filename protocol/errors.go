package protocol

import (
	"errors"
	"fmt"
)

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// MCP-specific error codes.
const (
	CodeNotFound    = -32001
	CodeRateLimited = -32003
)

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("mcp: %s (code: %d)", e.Message, e.Code)
}

// Is matches errors by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithData returns a copy of the error with data attached.
func (e *Error) WithData(data any) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Data:    data,
	}
}

// AsError converts err into a protocol error. Errors that are not already
// protocol errors become internal errors carrying err's message.
func AsError(err error) *Error {
	var pErr *Error
	if errors.As(err, &pErr) {
		return pErr
	}
	return NewInternalError(err.Error())
}

// NewParseError creates a parse error (-32700).
func NewParseError(msg string) *Error {
	return &Error{Code: CodeParseError, Message: msg}
}

// NewInvalidRequest creates an invalid request error (-32600).
func NewInvalidRequest(msg string) *Error {
	return &Error{Code: CodeInvalidRequest, Message: msg}
}

// NewMethodNotFound creates a method not found error (-32601).
func NewMethodNotFound(method string) *Error {
	return &Error{Code: CodeMethodNotFound, Message: "method not found: " + method}
}

// NewInvalidParams creates an invalid params error (-32602).
func NewInvalidParams(msg string) *Error {
	return &Error{Code: CodeInvalidParams, Message: msg}
}

// NewInternalError creates an internal error (-32603).
func NewInternalError(msg string) *Error {
	return &Error{Code: CodeInternalError, Message: msg}
}

// NewNotFound creates a not found error (-32001).
func NewNotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NewRateLimited creates a rate limited error (-32003).
func NewRateLimited(msg string) *Error {
	return &Error{Code: CodeRateLimited, Message: msg}
}
