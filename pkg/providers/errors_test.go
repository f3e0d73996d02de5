package providers

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestTransientErrorMessage(t *testing.T) {
	withStatus := &TransientError{Provider: "groq", StatusCode: 503, Message: "overloaded"}
	if got := withStatus.Error(); !strings.Contains(got, "503") || !strings.Contains(got, "groq") {
		t.Errorf("Error() = %q", got)
	}

	cause := errors.New("dial tcp: connection refused")
	withoutStatus := &TransientError{Provider: "groq", Message: "request failed", Cause: cause}
	if got := withoutStatus.Error(); strings.Contains(got, "status") {
		t.Errorf("Error() = %q, should omit status when zero", got)
	}
	if !errors.Is(fmt.Errorf("send: %w", withoutStatus), withoutStatus) {
		t.Error("wrapped error should match with errors.Is")
	}
	if errors.Unwrap(withoutStatus) != cause {
		t.Error("Unwrap should return the cause")
	}
}

func TestRejectedErrorPreservesBody(t *testing.T) {
	body := []byte(`{"error": {"type": "rate_limit_error", "message": "slow down"}}`)
	err := &RejectedError{Provider: "anthropic", StatusCode: 429, Body: body, RetryAfter: 3 * time.Second}

	if got := err.Error(); !strings.Contains(got, "429") {
		t.Errorf("Error() = %q", got)
	}
	if string(err.Body) != string(body) {
		t.Error("Body must be preserved verbatim")
	}
}

func TestRejectedErrorTruncatesLongBodies(t *testing.T) {
	err := &RejectedError{Provider: "p", StatusCode: 400, Body: []byte(strings.Repeat("x", 500))}
	if got := err.Error(); len(got) > 300 {
		t.Errorf("Error() should truncate, got %d chars", len(got))
	}
}

func TestNotAvailableErrorMessage(t *testing.T) {
	bare := &NotAvailableError{Provider: "minimax"}
	if got := bare.Error(); !strings.Contains(got, "minimax") {
		t.Errorf("Error() = %q", got)
	}
	withReason := &NotAvailableError{Provider: "minimax", Reason: "no API key configured"}
	if got := withReason.Error(); !strings.Contains(got, "no API key") {
		t.Errorf("Error() = %q", got)
	}
}

func TestIsTransientClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "transient", err: &TransientError{Provider: "p"}, want: true},
		{name: "not available", err: &NotAvailableError{Provider: "p"}, want: true},
		{name: "protocol", err: &ProtocolError{Provider: "p", Message: "bad json"}, want: true},
		{name: "rejected", err: &RejectedError{Provider: "p", StatusCode: 400}, want: false},
		{name: "wrapped transient", err: fmt.Errorf("attempt 1: %w", &TransientError{Provider: "p"}), want: true},
		{name: "plain error", err: errors.New("boom"), want: false},
		{name: "count tokens sentinel", err: ErrCountTokensUnsupported, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestProtocolErrorUnwrap(t *testing.T) {
	cause := errors.New("unexpected end of JSON input")
	err := &ProtocolError{Provider: "openai", Message: "decode response", Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to reach the cause")
	}
}
