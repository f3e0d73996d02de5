package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"mercator-hq/saturn/pkg/config"
	"mercator-hq/saturn/pkg/state"
	"mercator-hq/saturn/pkg/telemetry/metrics"
	"mercator-hq/saturn/pkg/telemetry/tracing"
	"mercator-hq/saturn/pkg/trace"
	"mercator-hq/saturn/pkg/wire"
)

func newTestDispatcher(t *testing.T, cfg *config.Config) *Dispatcher {
	t.Helper()

	snap, err := state.Build(cfg, nil)
	if err != nil {
		t.Fatalf("state.Build: %v", err)
	}
	cell := state.NewCell(snap, "", nil)

	spans, err := tracing.New(&config.TracingConfig{}, "test")
	if err != nil {
		t.Fatalf("tracing.New: %v", err)
	}

	return NewDispatcher(
		cell,
		metrics.NewCollector(&config.MetricsConfig{}, nil),
		trace.New(config.TraceConfig{}),
		trace.NewRoutingState(""),
		spans,
	)
}

func providerConfig(baseURL string) config.ProviderConfig {
	return config.ProviderConfig{
		Type:     "anthropic",
		BaseURL:  baseURL,
		APIKey:   "sk-test",
		AuthMode: "api_key",
		Timeout:  5 * time.Second,
	}
}

func chainConfig(primaryURL, secondaryURL string) *config.Config {
	return &config.Config{
		Router: config.RouterConfig{Default: "main"},
		Providers: map[string]config.ProviderConfig{
			"primary":   providerConfig(primaryURL),
			"secondary": providerConfig(secondaryURL),
		},
		Models: map[string][]config.ModelMapping{
			"main": {
				{Provider: "primary", Model: "model-a", Priority: 1},
				{Provider: "secondary", Model: "model-b", Priority: 2},
			},
		},
	}
}

func upstreamOK(calls *atomic.Int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		fmt.Fprint(w, `{"id":"msg_1","type":"message","role":"assistant","content":[{"type":"text","text":"ok"}],"model":"upstream-model","stop_reason":"end_turn","usage":{"input_tokens":7,"output_tokens":3}}`)
	}))
}

func upstreamStatus(status int, body string, calls *atomic.Int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
}

func parseBody(t *testing.T, raw string) *wire.Request {
	t.Helper()
	var req wire.Request
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		t.Fatalf("unmarshal request fixture: %v", err)
	}
	return &req
}

func simpleRequest(t *testing.T) *wire.Request {
	return parseBody(t, `{"model":"claude-sonnet-4-20250514","max_tokens":64,"messages":[{"role":"user","content":"hi"}]}`)
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) wire.ErrorResponse {
	t.Helper()
	var envelope wire.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error envelope: %v (body %q)", err, rec.Body.String())
	}
	return envelope
}

func TestMessagesFallsBackOnTransientFailure(t *testing.T) {
	var primaryCalls, secondaryCalls atomic.Int32
	primary := upstreamStatus(500, `{"type":"error","error":{"type":"api_error","message":"boom"}}`, &primaryCalls)
	defer primary.Close()
	secondary := upstreamOK(&secondaryCalls)
	defer secondary.Close()

	d := newTestDispatcher(t, chainConfig(primary.URL, secondary.URL))

	rec := httptest.NewRecorder()
	d.Messages(context.Background(), rec, simpleRequest(t), "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %q)", rec.Code, rec.Body.String())
	}
	if primaryCalls.Load() != 1 || secondaryCalls.Load() != 1 {
		t.Errorf("calls = primary %d secondary %d, want 1 and 1", primaryCalls.Load(), secondaryCalls.Load())
	}

	var resp wire.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Model != "claude-sonnet-4-20250514" {
		t.Errorf("response model = %q, want the client's original model", resp.Model)
	}
}

func TestMessagesRejectionStopsChain(t *testing.T) {
	var secondaryCalls atomic.Int32
	primary := upstreamStatus(400, `{"type":"error","error":{"type":"invalid_request_error","message":"bad tool schema"}}`, nil)
	defer primary.Close()
	secondary := upstreamOK(&secondaryCalls)
	defer secondary.Close()

	d := newTestDispatcher(t, chainConfig(primary.URL, secondary.URL))

	rec := httptest.NewRecorder()
	d.Messages(context.Background(), rec, simpleRequest(t), "")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "bad tool schema") {
		t.Errorf("body should carry the upstream complaint verbatim, got %q", rec.Body.String())
	}
	if secondaryCalls.Load() != 0 {
		t.Errorf("secondary was called %d times after a rejection", secondaryCalls.Load())
	}
}

func TestMessagesAllProvidersFailed(t *testing.T) {
	primary := upstreamStatus(500, `{"type":"error","error":{"type":"api_error","message":"down"}}`, nil)
	defer primary.Close()
	secondary := upstreamStatus(503, `{"type":"error","error":{"type":"api_error","message":"down too"}}`, nil)
	defer secondary.Close()

	d := newTestDispatcher(t, chainConfig(primary.URL, secondary.URL))

	rec := httptest.NewRecorder()
	d.Messages(context.Background(), rec, simpleRequest(t), "")

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	envelope := decodeEnvelope(t, rec)
	if envelope.Error.Type != wire.ErrTypeAPI {
		t.Errorf("error type = %q, want %q", envelope.Error.Type, wire.ErrTypeAPI)
	}
	if !strings.Contains(envelope.Error.Message, "all 2 provider mappings failed for model: main") {
		t.Errorf("message = %q, want attempt summary", envelope.Error.Message)
	}
}

func TestMessagesForcedProvider(t *testing.T) {
	var primaryCalls, secondaryCalls atomic.Int32
	primary := upstreamOK(&primaryCalls)
	defer primary.Close()
	secondary := upstreamOK(&secondaryCalls)
	defer secondary.Close()

	d := newTestDispatcher(t, chainConfig(primary.URL, secondary.URL))

	rec := httptest.NewRecorder()
	d.Messages(context.Background(), rec, simpleRequest(t), "secondary")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if primaryCalls.Load() != 0 {
		t.Errorf("primary called %d times despite X-Provider override", primaryCalls.Load())
	}
	if secondaryCalls.Load() != 1 {
		t.Errorf("secondary calls = %d, want 1", secondaryCalls.Load())
	}
}

func TestMessagesForcedProviderNotInChain(t *testing.T) {
	primary := upstreamOK(nil)
	defer primary.Close()
	secondary := upstreamOK(nil)
	defer secondary.Close()

	d := newTestDispatcher(t, chainConfig(primary.URL, secondary.URL))

	rec := httptest.NewRecorder()
	d.Messages(context.Background(), rec, simpleRequest(t), "no-such-provider")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if got := decodeEnvelope(t, rec).Error.Type; got != wire.ErrTypeNotFound {
		t.Errorf("error type = %q, want %q", got, wire.ErrTypeNotFound)
	}
}

func TestMessagesNoRouteConfigured(t *testing.T) {
	cfg := &config.Config{
		Router:    config.RouterConfig{},
		Providers: map[string]config.ProviderConfig{},
		Models:    map[string][]config.ModelMapping{},
	}
	d := newTestDispatcher(t, cfg)

	rec := httptest.NewRecorder()
	d.Messages(context.Background(), rec, simpleRequest(t), "")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if got := decodeEnvelope(t, rec).Error.Type; got != wire.ErrTypeRouting {
		t.Errorf("error type = %q, want %q", got, wire.ErrTypeRouting)
	}
}

func TestMessagesSkipsProviderWithoutAdapter(t *testing.T) {
	var secondaryCalls atomic.Int32
	secondary := upstreamOK(&secondaryCalls)
	defer secondary.Close()

	// "ghost" has no providers entry, so the registry never builds it.
	cfg := &config.Config{
		Router: config.RouterConfig{Default: "main"},
		Providers: map[string]config.ProviderConfig{
			"secondary": providerConfig(secondary.URL),
		},
		Models: map[string][]config.ModelMapping{
			"main": {
				{Provider: "ghost", Model: "model-a", Priority: 1},
				{Provider: "secondary", Model: "model-b", Priority: 2},
			},
		},
	}
	d := newTestDispatcher(t, cfg)

	rec := httptest.NewRecorder()
	d.Messages(context.Background(), rec, simpleRequest(t), "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %q)", rec.Code, rec.Body.String())
	}
	if secondaryCalls.Load() != 1 {
		t.Errorf("secondary calls = %d, want 1", secondaryCalls.Load())
	}
}

func sseMessage(stop bool) string {
	var b strings.Builder
	b.WriteString("event: message_start\ndata: {\"type\":\"message_start\",\"message\":{\"id\":\"msg_1\",\"type\":\"message\",\"role\":\"assistant\",\"content\":[],\"model\":\"upstream-model\",\"usage\":{\"input_tokens\":5,\"output_tokens\":0}}}\n\n")
	b.WriteString("event: content_block_start\ndata: {\"type\":\"content_block_start\",\"index\":0,\"content_block\":{\"type\":\"text\",\"text\":\"\"}}\n\n")
	b.WriteString("event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"hello\"}}\n\n")
	if stop {
		b.WriteString("event: content_block_stop\ndata: {\"type\":\"content_block_stop\",\"index\":0}\n\n")
		b.WriteString("event: message_delta\ndata: {\"type\":\"message_delta\",\"delta\":{\"stop_reason\":\"end_turn\",\"stop_sequence\":null},\"usage\":{\"output_tokens\":2}}\n\n")
		b.WriteString("event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n")
	}
	return b.String()
}

func upstreamSSE(body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, body)
	}))
}

func streamingRequest(t *testing.T) *wire.Request {
	return parseBody(t, `{"model":"claude-sonnet-4-20250514","max_tokens":64,"stream":true,"messages":[{"role":"user","content":"hi"}]}`)
}

func TestMessagesStreamingFallsBackBeforeFirstEvent(t *testing.T) {
	primary := upstreamStatus(500, `{"type":"error","error":{"type":"api_error","message":"boom"}}`, nil)
	defer primary.Close()
	secondary := upstreamSSE(sseMessage(true))
	defer secondary.Close()

	d := newTestDispatcher(t, chainConfig(primary.URL, secondary.URL))

	rec := httptest.NewRecorder()
	d.Messages(context.Background(), rec, streamingRequest(t), "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %q)", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "event: message_start") || !strings.Contains(body, "event: message_stop") {
		t.Errorf("stream should relay the full event sequence, got %q", body)
	}
	if strings.Contains(body, "event: error") {
		t.Errorf("clean stream should carry no error event, got %q", body)
	}
}

func TestMessagesStreamingMidStreamFailure(t *testing.T) {
	var secondaryCalls atomic.Int32
	// Stream ends without message_stop: the upstream died mid-response.
	primary := upstreamSSE(sseMessage(false))
	defer primary.Close()
	secondary := upstreamOK(&secondaryCalls)
	defer secondary.Close()

	d := newTestDispatcher(t, chainConfig(primary.URL, secondary.URL))

	rec := httptest.NewRecorder()
	d.Messages(context.Background(), rec, streamingRequest(t), "")

	body := rec.Body.String()
	if !strings.Contains(body, "event: message_start") {
		t.Fatalf("relayed events should be preserved, got %q", body)
	}
	if !strings.Contains(body, "event: error") || !strings.Contains(body, wire.ErrTypeAPI) {
		t.Errorf("mid-stream failure should surface as a terminal error event, got %q", body)
	}
	if secondaryCalls.Load() != 0 {
		t.Errorf("no fallback is possible after the first event, but secondary saw %d calls", secondaryCalls.Load())
	}
}

func TestMessagesStreamingEmptyStreamFallsBack(t *testing.T) {
	// 200 with an empty body carries no message at all; the chain should
	// move on as if the attempt failed.
	primary := upstreamSSE("")
	defer primary.Close()
	secondary := upstreamSSE(sseMessage(true))
	defer secondary.Close()

	d := newTestDispatcher(t, chainConfig(primary.URL, secondary.URL))

	rec := httptest.NewRecorder()
	d.Messages(context.Background(), rec, streamingRequest(t), "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "event: message_stop") {
		t.Errorf("secondary's stream should have been relayed, got %q", rec.Body.String())
	}
}

func TestCountTokensDelegatesToAnthropicUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages/count_tokens" {
			t.Errorf("path = %q, want /v1/messages/count_tokens", r.URL.Path)
		}
		fmt.Fprint(w, `{"input_tokens":42}`)
	}))
	defer upstream.Close()

	cfg := &config.Config{
		Router:    config.RouterConfig{Default: "main"},
		Providers: map[string]config.ProviderConfig{"primary": providerConfig(upstream.URL)},
		Models: map[string][]config.ModelMapping{
			"main": {{Provider: "primary", Model: "model-a", Priority: 1}},
		},
	}
	d := newTestDispatcher(t, cfg)

	var req wire.CountTokensRequest
	if err := json.Unmarshal([]byte(`{"model":"claude-sonnet-4-20250514","messages":[{"role":"user","content":"hi"}]}`), &req); err != nil {
		t.Fatalf("unmarshal fixture: %v", err)
	}

	rec := httptest.NewRecorder()
	d.CountTokens(context.Background(), rec, &req, "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %q)", rec.Code, rec.Body.String())
	}
	var resp wire.CountTokensResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.InputTokens != 42 {
		t.Errorf("input_tokens = %d, want 42", resp.InputTokens)
	}
}

func TestCountTokensEstimatesForChatCompletionsUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("local estimation must not call the upstream")
	}))
	defer upstream.Close()

	cfg := &config.Config{
		Router: config.RouterConfig{Default: "main"},
		Providers: map[string]config.ProviderConfig{
			"primary": {
				Type:     "openai",
				BaseURL:  upstream.URL,
				APIKey:   "sk-test",
				AuthMode: "api_key",
				Timeout:  5 * time.Second,
			},
		},
		Models: map[string][]config.ModelMapping{
			"main": {{Provider: "primary", Model: "gpt-4o", Priority: 1}},
		},
	}
	d := newTestDispatcher(t, cfg)

	var req wire.CountTokensRequest
	if err := json.Unmarshal([]byte(`{"model":"claude-sonnet-4-20250514","messages":[{"role":"user","content":"The quick brown fox jumps over the lazy dog."}]}`), &req); err != nil {
		t.Fatalf("unmarshal fixture: %v", err)
	}

	rec := httptest.NewRecorder()
	d.CountTokens(context.Background(), rec, &req, "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %q)", rec.Code, rec.Body.String())
	}
	var resp wire.CountTokensResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.InputTokens <= 0 {
		t.Errorf("input_tokens = %d, want a positive estimate", resp.InputTokens)
	}
}

func TestMessagesInjectsContinuationPrompt(t *testing.T) {
	var captured []byte
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = io.ReadAll(r.Body)
		fmt.Fprint(w, `{"id":"msg_1","type":"message","role":"assistant","content":[{"type":"text","text":"ok"}],"model":"m","stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":1}}`)
	}))
	defer upstream.Close()

	cfg := &config.Config{
		Router:    config.RouterConfig{Default: "main"},
		Providers: map[string]config.ProviderConfig{"primary": providerConfig(upstream.URL)},
		Models: map[string][]config.ModelMapping{
			"main": {{Provider: "primary", Model: "model-a", Priority: 1, InjectContinuationPrompt: true}},
		},
	}
	d := newTestDispatcher(t, cfg)

	req := parseBody(t, `{"model":"claude-sonnet-4-20250514","max_tokens":64,"messages":[
		{"role":"assistant","content":[{"type":"tool_use","id":"tu_1","name":"ls","input":{}}]},
		{"role":"user","content":[{"type":"tool_result","tool_use_id":"tu_1","content":"files"}]}
	]}`)

	rec := httptest.NewRecorder()
	d.Messages(context.Background(), rec, req, "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %q)", rec.Code, rec.Body.String())
	}
	if !strings.Contains(string(captured), "active todo list") {
		t.Errorf("upstream body should carry the continuation reminder, got %s", captured)
	}

	// The dispatcher works on clones; the parsed request must be intact.
	last := req.LastMessage()
	if len(last.Content.Blocks) != 1 || last.Content.Blocks[0].Type != wire.BlockTypeToolResult {
		t.Errorf("caller's request was mutated: %+v", last.Content.Blocks)
	}
}

func TestMessagesSkipsContinuationForBackgroundRoute(t *testing.T) {
	var captured []byte
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = io.ReadAll(r.Body)
		fmt.Fprint(w, `{"id":"msg_1","type":"message","role":"assistant","content":[{"type":"text","text":"ok"}],"model":"m","stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":1}}`)
	}))
	defer upstream.Close()

	cfg := &config.Config{
		Router: config.RouterConfig{
			Default:         "main",
			Background:      "main",
			BackgroundRegex: `(?i)claude.*haiku`,
		},
		Providers: map[string]config.ProviderConfig{"primary": providerConfig(upstream.URL)},
		Models: map[string][]config.ModelMapping{
			"main": {{Provider: "primary", Model: "model-a", Priority: 1, InjectContinuationPrompt: true}},
		},
	}
	d := newTestDispatcher(t, cfg)

	req := parseBody(t, `{"model":"claude-3-5-haiku-20241022","max_tokens":64,"messages":[
		{"role":"user","content":[{"type":"tool_result","tool_use_id":"tu_1","content":"files"}]}
	]}`)

	rec := httptest.NewRecorder()
	d.Messages(context.Background(), rec, req, "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %q)", rec.Code, rec.Body.String())
	}
	if strings.Contains(string(captured), "active todo list") {
		t.Errorf("background requests must not get the continuation reminder, got %s", captured)
	}
}
