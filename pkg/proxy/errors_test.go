package proxy

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mercator-hq/saturn/pkg/providers"
	"mercator-hq/saturn/pkg/routing"
	"mercator-hq/saturn/pkg/wire"
)

func TestHandleErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{
			name:       "request error",
			err:        &RequestError{Message: "invalid JSON: unexpected end"},
			wantStatus: 400,
			wantType:   wire.ErrTypeInvalidRequest,
		},
		{
			name:       "no route configured",
			err:        &routing.NoRouteConfiguredError{Kind: routing.KindThink},
			wantStatus: 400,
			wantType:   wire.ErrTypeRouting,
		},
		{
			name:       "unknown model",
			err:        &routing.UnknownModelError{Model: "nope"},
			wantStatus: 404,
			wantType:   wire.ErrTypeNotFound,
		},
		{
			name:       "no providers for model",
			err:        &routing.NoProvidersForModelError{Model: "empty"},
			wantStatus: 404,
			wantType:   wire.ErrTypeNotFound,
		},
		{
			name:       "transient escapes the chain",
			err:        &providers.TransientError{Provider: "p", StatusCode: 503, Message: "overloaded"},
			wantStatus: 502,
			wantType:   wire.ErrTypeAPI,
		},
		{
			name:       "unknown error",
			err:        errors.New("something odd"),
			wantStatus: 500,
			wantType:   wire.ErrTypeAPI,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			HandleError(rec, tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var envelope wire.ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
				t.Fatalf("decode envelope: %v (body %q)", err, rec.Body.String())
			}
			if envelope.Type != "error" {
				t.Errorf("envelope type = %q, want error", envelope.Type)
			}
			if envelope.Error.Type != tt.wantType {
				t.Errorf("error type = %q, want %q", envelope.Error.Type, tt.wantType)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
		})
	}
}

func TestHandleErrorRejectedRelaysVerbatim(t *testing.T) {
	body := `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`
	rejected := &providers.RejectedError{
		Provider:   "anthropic",
		StatusCode: 429,
		Body:       []byte(body),
		RetryAfter: 7 * time.Second,
	}

	rec := httptest.NewRecorder()
	HandleError(rec, rejected)

	if rec.Code != 429 {
		t.Errorf("status = %d, want 429", rec.Code)
	}
	if rec.Body.String() != body {
		t.Errorf("body = %q, want the upstream bytes verbatim", rec.Body.String())
	}
	if got := rec.Header().Get("Retry-After"); got != "7" {
		t.Errorf("Retry-After = %q, want 7", got)
	}
}

func TestHandleErrorRejectedWithoutBody(t *testing.T) {
	rejected := &providers.RejectedError{Provider: "openrouter", StatusCode: 403}

	rec := httptest.NewRecorder()
	HandleError(rec, rejected)

	if rec.Code != 403 {
		t.Errorf("status = %d, want 403", rec.Code)
	}
	var envelope wire.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.Error.Type != wire.ErrTypePermission {
		t.Errorf("error type = %q, want %q", envelope.Error.Type, wire.ErrTypePermission)
	}
}

func TestHandleErrorAllFailedSummary(t *testing.T) {
	exhausted := &AllFailedError{
		LogicalModel: "sonnet",
		Attempts: []Attempt{
			{Provider: "anthropic", Model: "claude-sonnet-4", Err: &providers.TransientError{Provider: "anthropic", StatusCode: 529, Message: "overloaded"}},
			{Provider: "openrouter", Model: "claude-sonnet-4", Err: &providers.NotAvailableError{Provider: "openrouter", Reason: "missing api key"}},
		},
	}

	rec := httptest.NewRecorder()
	HandleError(rec, exhausted)

	if rec.Code != 502 {
		t.Errorf("status = %d, want 502", rec.Code)
	}
	var envelope wire.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	msg := envelope.Error.Message
	if !strings.Contains(msg, "all 2 provider mappings failed for model: sonnet") {
		t.Errorf("message = %q, want the exhaustion summary", msg)
	}
	if !strings.Contains(msg, "anthropic/claude-sonnet-4") || !strings.Contains(msg, "openrouter/claude-sonnet-4") {
		t.Errorf("message = %q, want one entry per attempt", msg)
	}
}

func TestErrorKindAgreesWithHandleError(t *testing.T) {
	if got := errorKind(&RequestError{Message: "x"}); got != wire.ErrTypeInvalidRequest {
		t.Errorf("errorKind(RequestError) = %q", got)
	}
	if got := errorKind(&routing.NoRouteConfiguredError{Kind: routing.KindDefault}); got != wire.ErrTypeRouting {
		t.Errorf("errorKind(NoRouteConfigured) = %q", got)
	}
	if got := errorKind(&providers.RejectedError{StatusCode: 429}); got != wire.ErrTypeRateLimit {
		t.Errorf("errorKind(Rejected 429) = %q", got)
	}
	if got := errorKind(errors.New("anything")); got != wire.ErrTypeAPI {
		t.Errorf("errorKind(unknown) = %q", got)
	}
}
