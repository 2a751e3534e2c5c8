package mcp

import (
	"errors"
	"fmt"
)

// JSON-RPC error codes used by the framework. The -32000..-32099 range is
// reserved by JSON-RPC for server-defined errors; conduit uses it for
// policy violations (limits) and the MCP not-initialized condition.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	CodeNotInitialized = -32002

	CodeTooManySessions   = -32001
	CodeMessageTooLarge   = -32003
	CodeTooManyTools      = -32004
	CodeTooManyResources  = -32005
	CodeTooManyPrompts    = -32006
	CodeRateLimitExceeded = -32007
)

// Error is a JSON-RPC 2.0 error object. It implements the error interface
// so protocol failures flow through normal Go error paths and are
// classified back with errors.As at the response boundary.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// LimitData describes a violated limit in an error's data member.
type LimitData struct {
	Limit  int `json:"limit"`
	Actual int `json:"actual"`
}

// NewParseError reports a JSON-level decode failure.
func NewParseError(detail string) *Error {
	return &Error{Code: CodeParseError, Message: "Parse error: " + detail}
}

// NewInvalidRequest reports a missing or invalid envelope field.
func NewInvalidRequest(detail string) *Error {
	return &Error{Code: CodeInvalidRequest, Message: "Invalid Request: " + detail}
}

// NewMethodNotFound reports an unrecognized method name.
func NewMethodNotFound(method string) *Error {
	return &Error{Code: CodeMethodNotFound, Message: fmt.Sprintf("Method not found: %s", method)}
}

// NewUnknownTool reports a tools/call against an unregistered tool.
func NewUnknownTool(name string) *Error {
	return &Error{Code: CodeMethodNotFound, Message: fmt.Sprintf("Unknown tool: %s", name)}
}

// NewUnknownResource reports a resources/read against an unregistered URI.
func NewUnknownResource(uri string) *Error {
	return &Error{Code: CodeMethodNotFound, Message: fmt.Sprintf("Unknown resource: %s", uri)}
}

// NewUnknownPrompt reports a prompts/get against an unregistered prompt.
func NewUnknownPrompt(name string) *Error {
	return &Error{Code: CodeMethodNotFound, Message: fmt.Sprintf("Unknown prompt: %s", name)}
}

// NewInvalidParams reports a params type mismatch or schema validation
// failure.
func NewInvalidParams(detail string) *Error {
	return &Error{Code: CodeInvalidParams, Message: "Invalid params: " + detail}
}

// NewInternalError reports an unclassified handler or server fault.
func NewInternalError(detail string) *Error {
	return &Error{Code: CodeInternalError, Message: "Internal error: " + detail}
}

// NewNotInitialized reports a non-initialize method on an uninitialized
// session.
func NewNotInitialized() *Error {
	return &Error{Code: CodeNotInitialized, Message: "Session not initialized: send initialize first"}
}

// NewTooManySessions reports that creating a session would exceed the
// configured cap.
func NewTooManySessions(limit int) *Error {
	return &Error{
		Code:    CodeTooManySessions,
		Message: fmt.Sprintf("Too many sessions: limit of %d reached", limit),
		Data:    LimitData{Limit: limit, Actual: limit},
	}
}

// NewMessageTooLarge reports an inbound message over the byte cap.
func NewMessageTooLarge(size, limit int) *Error {
	return &Error{
		Code:    CodeMessageTooLarge,
		Message: fmt.Sprintf("Message too large: %d bytes exceeds limit of %d", size, limit),
		Data:    LimitData{Limit: limit, Actual: size},
	}
}

// NewRateLimitExceeded reports a request rejected by the rate limiter.
func NewRateLimitExceeded() *Error {
	return &Error{Code: CodeRateLimitExceeded, Message: "Rate limit exceeded"}
}

// registrationError builds the build-time cap errors for catalogs.
func registrationError(code int, what string, limit, actual int) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf("Too many %s: %d registered, limit is %d", what, actual, limit),
		Data:    LimitData{Limit: limit, Actual: actual},
	}
}

// NewTooManyTools reports a tool registration over the cap.
func NewTooManyTools(limit, actual int) *Error {
	return registrationError(CodeTooManyTools, "tools", limit, actual)
}

// NewTooManyResources reports a resource registration over the cap.
func NewTooManyResources(limit, actual int) *Error {
	return registrationError(CodeTooManyResources, "resources", limit, actual)
}

// NewTooManyPrompts reports a prompt registration over the cap.
func NewTooManyPrompts(limit, actual int) *Error {
	return registrationError(CodeTooManyPrompts, "prompts", limit, actual)
}

// AsError classifies err into the protocol taxonomy. Typed *Error values
// pass through unchanged; anything else becomes an InternalError so the
// wire never sees stringly-typed failures.
func AsError(err error) *Error {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	return NewInternalError(err.Error())
}
