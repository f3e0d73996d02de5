package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"mercator-hq/saturn/pkg/providers"
	"mercator-hq/saturn/pkg/wire"
)

func testConfig(baseURL string) providers.ProviderConfig {
	return providers.ProviderConfig{
		Name:    "fireworks",
		Type:    providers.TypeOpenAI,
		BaseURL: baseURL,
		APIKey:  "sk-test",
		Timeout: 5 * time.Second,
	}
}

func completionResponse(text string) string {
	return `{
		"id": "chatcmpl-9x",
		"object": "chat.completion",
		"model": "llama-3.3-70b",
		"choices": [
			{"index": 0, "message": {"role": "assistant", "content": ` + jsonString(text) + `}, "finish_reason": "stop"}
		],
		"usage": {"prompt_tokens": 11, "completion_tokens": 3, "total_tokens": 14}
	}`
}

func jsonString(s string) string {
	raw, _ := json.Marshal(s)
	return string(raw)
}

func TestSendTranslatesRoundTrip(t *testing.T) {
	var gotPath, gotAuth string
	var gotReq OpenAIRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotReq); err != nil {
			t.Errorf("request body is not valid JSON: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, completionResponse("Hello."))
	}))
	defer server.Close()

	p, err := NewProvider(testConfig(server.URL))
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	resp, err := p.Send(context.Background(), &wire.Request{
		Model:     "llama-3.3-70b",
		MaxTokens: 64,
		System:    wire.SystemText("Be brief."),
		Messages:  []wire.Message{{Role: wire.RoleUser, Content: wire.TextContent("hi")}},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if gotPath != "/chat/completions" {
		t.Errorf("path = %q, want /chat/completions", gotPath)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotReq.Stream {
		t.Error("non-streaming request should not set stream")
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" {
		t.Errorf("translated messages wrong: %+v", gotReq.Messages)
	}

	if len(resp.Content) != 1 || resp.Content[0].Text != "Hello." {
		t.Errorf("response content wrong: %+v", resp.Content)
	}
	if resp.StopReason == nil || *resp.StopReason != wire.StopEndTurn {
		t.Errorf("stop_reason wrong: %v", resp.StopReason)
	}
	if resp.Usage.InputTokens != 11 || resp.Usage.OutputTokens != 3 {
		t.Errorf("usage wrong: %+v", resp.Usage)
	}
}

func TestSendExtraHeaders(t *testing.T) {
	var gotReferer, gotTitle string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReferer = r.Header.Get("HTTP-Referer")
		gotTitle = r.Header.Get("X-Title")
		io.WriteString(w, completionResponse("ok"))
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.ExtraHeaders = map[string]string{
		"HTTP-Referer": "https://github.com/mercator-hq/saturn",
		"X-Title":      "Mercator Saturn",
	}
	p, err := NewProvider(cfg)
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	if _, err := p.Send(context.Background(), &wire.Request{Model: "m", MaxTokens: 1}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotReferer != "https://github.com/mercator-hq/saturn" || gotTitle != "Mercator Saturn" {
		t.Errorf("extra headers not sent: referer=%q title=%q", gotReferer, gotTitle)
	}
}

func TestSendSurfacesRejection(t *testing.T) {
	const upstreamBody = `{"error":{"message":"invalid model","type":"invalid_request_error"}}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, upstreamBody)
	}))
	defer server.Close()

	p, err := NewProvider(testConfig(server.URL))
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	_, err = p.Send(context.Background(), &wire.Request{Model: "m", MaxTokens: 1})
	var rejected *providers.RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected RejectedError, got %v", err)
	}
	if rejected.StatusCode != http.StatusBadRequest || string(rejected.Body) != upstreamBody {
		t.Errorf("rejection should carry the upstream body verbatim: %+v", rejected)
	}
}

func TestSendMalformedResponseIsProtocolError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices": [`)
	}))
	defer server.Close()

	p, err := NewProvider(testConfig(server.URL))
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	_, err = p.Send(context.Background(), &wire.Request{Model: "m", MaxTokens: 1})
	var protoErr *providers.ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
	if !providers.IsTransient(err) {
		t.Error("a malformed response should count as transient for fallback")
	}
}

func TestSendStreamTranscodes(t *testing.T) {
	chunks := []string{
		`{"id":"chatcmpl-7","model":"llama-3.3-70b","choices":[{"index":0,"delta":{"role":"assistant"}}]}`,
		`{"choices":[{"index":0,"delta":{"content":"Hi"}}]}`,
		`{"choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
		`{"choices":[],"usage":{"prompt_tokens":5,"completion_tokens":1,"total_tokens":6}}`,
		`[DONE]`,
	}

	var gotReq OpenAIRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotReq); err != nil {
			t.Errorf("request body is not valid JSON: %v", err)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, c := range chunks {
			io.WriteString(w, "data: "+c+"\n\n")
			flusher.Flush()
		}
	}))
	defer server.Close()

	p, err := NewProvider(testConfig(server.URL))
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	stream, err := p.SendStream(context.Background(), &wire.Request{
		Model:     "llama-3.3-70b",
		MaxTokens: 16,
		Stream:    true,
		Messages:  []wire.Message{{Role: wire.RoleUser, Content: wire.TextContent("hi")}},
	})
	if err != nil {
		t.Fatalf("SendStream: %v", err)
	}
	defer stream.Close()

	events := collectEvents(t, stream)

	if !gotReq.Stream {
		t.Error("streaming request should set stream")
	}
	if gotReq.StreamOptions == nil || !gotReq.StreamOptions.IncludeUsage {
		t.Error("streaming request should ask for the usage chunk")
	}

	want := []string{
		wire.EventMessageStart,
		wire.EventContentBlockStart,
		wire.EventContentBlockDelta,
		wire.EventContentBlockStop,
		wire.EventMessageDelta,
		wire.EventMessageStop,
	}
	if got := eventNames(events); !reflect.DeepEqual(got, want) {
		t.Fatalf("event sequence\n got %v\nwant %v", got, want)
	}
}

func TestSendStreamRejectionBeforeFirstByte(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"message":"bad key"}}`)
	}))
	defer server.Close()

	p, err := NewProvider(testConfig(server.URL))
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	_, err = p.SendStream(context.Background(), &wire.Request{Model: "m", MaxTokens: 1, Stream: true})
	var rejected *providers.RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected RejectedError before any stream event, got %v", err)
	}
}

func TestCountTokensUnsupported(t *testing.T) {
	p, err := NewProvider(testConfig("https://api.openai.com/v1"))
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	_, err = p.CountTokens(context.Background(), &wire.CountTokensRequest{Model: "gpt-4o"})
	if !errors.Is(err, providers.ErrCountTokensUnsupported) {
		t.Fatalf("expected ErrCountTokensUnsupported, got %v", err)
	}
}

func TestNewProviderValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  providers.ProviderConfig
	}{
		{"missing base_url", providers.ProviderConfig{Name: "x", APIKey: "k"}},
		{"missing api_key", providers.ProviderConfig{Name: "x", BaseURL: "https://api.openai.com/v1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewProvider(tt.cfg); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestSendBodyOmitsUnsetSampling(t *testing.T) {
	var body string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		io.WriteString(w, completionResponse("ok"))
	}))
	defer server.Close()

	p, err := NewProvider(testConfig(server.URL))
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	if _, err := p.Send(context.Background(), &wire.Request{Model: "m", MaxTokens: 8}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	for _, field := range []string{"temperature", "top_p", "stop", "tool_choice", "stream_options"} {
		if strings.Contains(body, `"`+field+`"`) {
			t.Errorf("unset %s should be omitted from the body: %s", field, body)
		}
	}
}
