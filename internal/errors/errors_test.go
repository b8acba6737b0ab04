package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	cause := errors.New("missing )")

	err := New(InvalidPattern, "route pattern does not compile", cause)

	if err.Code != InvalidPattern {
		t.Errorf("Code = %v, want %v", err.Code, InvalidPattern)
	}
	if err.Message != "route pattern does not compile" {
		t.Errorf("Message = %q, want %q", err.Message, "route pattern does not compile")
	}
	if len(err.SuggestedFixes) != 1 {
		t.Errorf("len(SuggestedFixes) = %d, want 1", len(err.SuggestedFixes))
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause through Unwrap")
	}
}

func TestError_Error(t *testing.T) {
	tests := []struct {
		name      string
		code      ErrorCode
		message   string
		cause     error
		wantParts []string
	}{
		{
			name:      "with cause",
			code:      HandlerFailure,
			message:   "handler for ^/api failed",
			cause:     errors.New("connection refused"),
			wantParts: []string{"HANDLER_FAILURE", "handler for ^/api failed", "connection refused"},
		},
		{
			name:      "without cause",
			code:      NotFound,
			message:   "key 'Host' not found",
			cause:     nil,
			wantParts: []string{"NOT_FOUND", "key 'Host' not found"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(tt.code, tt.message, tt.cause).Error()

			for _, part := range tt.wantParts {
				if !strings.Contains(got, part) {
					t.Errorf("Error() = %q, should contain %q", got, part)
				}
			}
		})
	}
}

func TestIsAndCodeOf(t *testing.T) {
	inner := Newf(DuplicateKey, "key %q already present", "a")
	wrapped := fmt.Errorf("loading headers: %w", inner)
	chained := New(ConfigInvalid, "bad route file", inner)

	if !Is(wrapped, DuplicateKey) {
		t.Error("Is(wrapped, DuplicateKey) = false, want true")
	}
	if Is(wrapped, NotFound) {
		t.Error("Is(wrapped, NotFound) = true, want false")
	}
	if !Is(chained, DuplicateKey) {
		t.Error("Is should walk the cause chain")
	}
	if Is(nil, NotFound) {
		t.Error("Is(nil) should be false")
	}
	if got := CodeOf(wrapped); got != DuplicateKey {
		t.Errorf("CodeOf(wrapped) = %v, want %v", got, DuplicateKey)
	}
	if got := CodeOf(errors.New("plain")); got != InternalError {
		t.Errorf("CodeOf(plain) = %v, want %v", got, InternalError)
	}
}

func TestWithDetails(t *testing.T) {
	err := Newf(NotFound, "missing").WithDetails(map[string]string{"key": "Host"})
	if err.Details == nil {
		t.Error("Details should be set")
	}
}

func TestFixesFor(t *testing.T) {
	inner := Newf(InvalidHeader, "invalid header name %q", "X A")
	tests := []struct {
		name  string
		err   error
		types []FixActionType
	}{
		{"nil", nil, nil},
		{"plain", errors.New("boom"), nil},
		{"no fixes", Newf(NotFound, "missing"), nil},
		{"single", inner, []FixActionType{OpenDocs}},
		{"chain", New(ConfigInvalid, "route[0]", inner), []FixActionType{RunCommand, OpenDocs}},
		{"wrapped chain", fmt.Errorf("load: %w", New(ConfigInvalid, "route[0]", inner)), []FixActionType{RunCommand, OpenDocs}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fixes := FixesFor(tt.err)
			if len(fixes) != len(tt.types) {
				t.Fatalf("FixesFor = %v, want types %v", fixes, tt.types)
			}
			for i, fix := range fixes {
				if fix.Type != tt.types[i] {
					t.Errorf("fix[%d].Type = %s, want %s", i, fix.Type, tt.types[i])
				}
			}
		})
	}
}

func TestGetSuggestedFixes(t *testing.T) {
	if fixes := GetSuggestedFixes(InvalidPattern); len(fixes) == 0 {
		t.Error("InvalidPattern should have suggested fixes")
	}
	if fixes := GetSuggestedFixes(NotFound); fixes != nil {
		t.Errorf("NotFound fixes = %v, want nil", fixes)
	}
}
