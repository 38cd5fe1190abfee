package protocol

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "internal error",
			err:  &Error{Code: CodeInternalError, Message: "something went wrong"},
			want: "mcp: something went wrong (code: -32603)",
		},
		{
			name: "method not found",
			err:  NewMethodNotFound("resources/list"),
			want: "mcp: method not found: resources/list (code: -32601)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestError_Is(t *testing.T) {
	if !errors.Is(NewInvalidParams("limit"), NewInvalidParams("year")) {
		t.Error("errors with same code should match with errors.Is")
	}
	if errors.Is(NewInvalidParams("limit"), NewNotFound("limit")) {
		t.Error("errors with different codes should not match with errors.Is")
	}
}

func TestError_WithData(t *testing.T) {
	base := NewInvalidParams("validation failed")
	err := base.WithData(map[string]string{"field": "limit"})

	if base.Data != nil {
		t.Error("WithData must not modify the receiver")
	}
	data, ok := err.Data.(map[string]string)
	if !ok {
		t.Fatalf("Data type = %T, want map[string]string", err.Data)
	}
	if data["field"] != "limit" {
		t.Errorf("Data[field] = %q, want %q", data["field"], "limit")
	}
}

func TestAsError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{
			name:     "protocol error passes through",
			err:      NewNotFound("tool not found: x"),
			wantCode: CodeNotFound,
			wantMsg:  "tool not found: x",
		},
		{
			name:     "wrapped protocol error is unwrapped",
			err:      fmt.Errorf("dispatch: %w", NewInvalidParams("bad")),
			wantCode: CodeInvalidParams,
			wantMsg:  "bad",
		},
		{
			name:     "plain error becomes internal",
			err:      errors.New("boom"),
			wantCode: CodeInternalError,
			wantMsg:  "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AsError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("Code = %d, want %d", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", got.Message, tt.wantMsg)
			}
		})
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want int
	}{
		{"parse error", NewParseError("invalid JSON"), CodeParseError},
		{"invalid request", NewInvalidRequest("missing method"), CodeInvalidRequest},
		{"invalid params", NewInvalidParams("limit"), CodeInvalidParams},
		{"internal", NewInternalError("x"), CodeInternalError},
		{"not found", NewNotFound("tool"), CodeNotFound},
		{"rate limited", NewRateLimited("slow down"), CodeRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.want {
				t.Errorf("Code = %d, want %d", tt.err.Code, tt.want)
			}
		})
	}
}
