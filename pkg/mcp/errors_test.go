package mcp

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorCodes(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		code int
	}{
		{"parse", NewParseError("x"), -32700},
		{"invalid request", NewInvalidRequest("x"), -32600},
		{"method not found", NewMethodNotFound("foo/bar"), -32601},
		{"unknown tool", NewUnknownTool("t"), -32601},
		{"unknown resource", NewUnknownResource("u"), -32601},
		{"unknown prompt", NewUnknownPrompt("p"), -32601},
		{"invalid params", NewInvalidParams("x"), -32602},
		{"internal", NewInternalError("x"), -32603},
		{"not initialized", NewNotInitialized(), -32002},
		{"too many sessions", NewTooManySessions(5), -32001},
		{"message too large", NewMessageTooLarge(10, 5), -32003},
		{"too many tools", NewTooManyTools(2, 3), -32004},
		{"too many resources", NewTooManyResources(2, 3), -32005},
		{"too many prompts", NewTooManyPrompts(2, 3), -32006},
		{"rate limit", NewRateLimitExceeded(), -32007},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("expected code %d, got %d", tt.code, tt.err.Code)
			}
			if tt.err.Message == "" {
				t.Error("error message must not be empty")
			}
		})
	}
}

func TestPolicyErrorsCarryLimitData(t *testing.T) {
	e := NewMessageTooLarge(2097153, 2097152)
	data, ok := e.Data.(LimitData)
	if !ok {
		t.Fatalf("expected LimitData, got %T", e.Data)
	}
	if data.Limit != 2097152 || data.Actual != 2097153 {
		t.Errorf("unexpected limit data: %+v", data)
	}
}

func TestAsError(t *testing.T) {
	rpcErr := NewUnknownTool("x")
	if got := AsError(fmt.Errorf("dispatch: %w", rpcErr)); got.Code != CodeMethodNotFound {
		t.Errorf("wrapped *Error not recovered, got code %d", got.Code)
	}

	if got := AsError(errors.New("boom")); got.Code != CodeInternalError {
		t.Errorf("plain error should map to internal error, got %d", got.Code)
	}
}
