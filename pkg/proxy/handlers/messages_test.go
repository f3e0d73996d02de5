package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mercator-hq/saturn/pkg/proxy"
	"mercator-hq/saturn/pkg/wire"
)

// stubDispatcher records delegation without touching any upstream.
type stubDispatcher struct {
	messagesCalls int
	countCalls    int
	lastModel     string
	lastForced    string
}

func (s *stubDispatcher) Messages(ctx context.Context, w http.ResponseWriter, req *wire.Request, forced string) {
	s.messagesCalls++
	s.lastModel = req.Model
	s.lastForced = forced
	proxy.WriteJSON(w, http.StatusOK, map[string]string{"id": "msg_stub"})
}

func (s *stubDispatcher) CountTokens(ctx context.Context, w http.ResponseWriter, req *wire.CountTokensRequest, forced string) {
	s.countCalls++
	s.lastModel = req.Model
	s.lastForced = forced
	proxy.WriteJSON(w, http.StatusOK, wire.CountTokensResponse{InputTokens: 5})
}

func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) wire.ErrorResponse {
	t.Helper()
	var envelope wire.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return envelope
}

func TestMessagesHandlerDelegates(t *testing.T) {
	stub := &stubDispatcher{}
	handler := NewMessagesHandler(stub)

	body := `{"model":"claude-sonnet-4-20250514","max_tokens":64,"messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(body))
	req.Header.Set("X-Provider", "openrouter")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if stub.messagesCalls != 1 {
		t.Errorf("dispatcher called %d times, want 1", stub.messagesCalls)
	}
	if stub.lastModel != "claude-sonnet-4-20250514" {
		t.Errorf("model = %q", stub.lastModel)
	}
	if stub.lastForced != "openrouter" {
		t.Errorf("forced provider = %q, want openrouter", stub.lastForced)
	}
}

func TestMessagesHandlerRejectsNonPost(t *testing.T) {
	stub := &stubDispatcher{}
	handler := NewMessagesHandler(stub)

	req := httptest.NewRequest(http.MethodGet, "/v1/messages", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); allow != http.MethodPost {
		t.Errorf("Allow = %q, want POST", allow)
	}
	envelope := decodeErrorBody(t, rec)
	if envelope.Error.Type != wire.ErrTypeInvalidRequest {
		t.Errorf("error type = %q", envelope.Error.Type)
	}
	if stub.messagesCalls != 0 {
		t.Errorf("dispatcher called on rejected method")
	}
}

func TestMessagesHandlerRejectsMalformedBody(t *testing.T) {
	stub := &stubDispatcher{}
	handler := NewMessagesHandler(stub)

	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	envelope := decodeErrorBody(t, rec)
	if envelope.Error.Type != wire.ErrTypeInvalidRequest {
		t.Errorf("error type = %q, want invalid_request_error", envelope.Error.Type)
	}
	if stub.messagesCalls != 0 {
		t.Errorf("dispatcher called on parse failure")
	}
}

func TestCountTokensHandlerDelegates(t *testing.T) {
	stub := &stubDispatcher{}
	handler := NewCountTokensHandler(stub)

	body := `{"model":"claude-sonnet-4-20250514","messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/messages/count_tokens", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if stub.countCalls != 1 {
		t.Errorf("dispatcher called %d times, want 1", stub.countCalls)
	}

	var resp wire.CountTokensResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.InputTokens != 5 {
		t.Errorf("input_tokens = %d, want 5", resp.InputTokens)
	}
}

func TestCountTokensHandlerRejectsMissingModel(t *testing.T) {
	stub := &stubDispatcher{}
	handler := NewCountTokensHandler(stub)

	body := `{"messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/messages/count_tokens", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if stub.countCalls != 0 {
		t.Errorf("dispatcher called on invalid request")
	}
}
