package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"mercator-hq/saturn/pkg/providers"
	"mercator-hq/saturn/pkg/wire"
)

func testConfig(baseURL string) providers.ProviderConfig {
	return providers.ProviderConfig{
		Name:    "gemini",
		Type:    providers.TypeGemini,
		BaseURL: baseURL,
		APIKey:  "AIza-test",
		Timeout: 5 * time.Second,
	}
}

func generateResponse() string {
	return `{
		"candidates": [
			{"content": {"parts": [{"text": "Hello."}], "role": "model"}, "finishReason": "STOP", "index": 0}
		],
		"usageMetadata": {"promptTokenCount": 7, "candidatesTokenCount": 2, "totalTokenCount": 9},
		"modelVersion": "gemini-2.0-flash-001"
	}`
}

func TestSendBuildsModelURL(t *testing.T) {
	var gotPath, gotKey string
	var gotReq GeminiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotReq); err != nil {
			t.Errorf("request body is not valid JSON: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, generateResponse())
	}))
	defer server.Close()

	p, err := NewProvider(testConfig(server.URL))
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	resp, err := p.Send(context.Background(), &wire.Request{
		Model:     "gemini-2.0-flash",
		MaxTokens: 64,
		Messages:  []wire.Message{{Role: wire.RoleUser, Content: wire.TextContent("hi")}},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if gotPath != "/v1beta/models/gemini-2.0-flash:generateContent" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "AIza-test" {
		t.Errorf("x-goog-api-key = %q", gotKey)
	}
	if len(gotReq.Contents) != 1 || gotReq.Contents[0].Parts[0].Text != "hi" {
		t.Errorf("translated contents wrong: %+v", gotReq.Contents)
	}

	if resp.Content[0].Text != "Hello." {
		t.Errorf("response content wrong: %+v", resp.Content)
	}
	if resp.Usage.InputTokens != 7 || resp.Usage.OutputTokens != 2 {
		t.Errorf("usage wrong: %+v", resp.Usage)
	}
}

func TestSendStreamURLAndEvents(t *testing.T) {
	chunks := []string{
		`{"candidates":[{"content":{"parts":[{"text":"Hi"}],"role":"model"},"index":0}]}`,
		`{"candidates":[{"content":{"parts":[{"text":"!"}],"role":"model"},"finishReason":"STOP","index":0}],"usageMetadata":{"promptTokenCount":5,"candidatesTokenCount":1,"totalTokenCount":6}}`,
	}

	var gotPath, gotAlt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAlt = r.URL.Query().Get("alt")
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
		Model:     "gemini-2.0-flash",
		MaxTokens: 16,
		Stream:    true,
		Messages:  []wire.Message{{Role: wire.RoleUser, Content: wire.TextContent("hi")}},
	})
	if err != nil {
		t.Fatalf("SendStream: %v", err)
	}
	defer stream.Close()

	events := collectEvents(t, stream)

	if gotPath != "/v1beta/models/gemini-2.0-flash:streamGenerateContent" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAlt != "sse" {
		t.Errorf("alt = %q, want sse", gotAlt)
	}

	want := []string{
		wire.EventMessageStart,
		wire.EventContentBlockStart,
		wire.EventContentBlockDelta,
		wire.EventContentBlockDelta,
		wire.EventContentBlockStop,
		wire.EventMessageDelta,
		wire.EventMessageStop,
	}
	if got := eventNames(events); !reflect.DeepEqual(got, want) {
		t.Fatalf("event sequence\n got %v\nwant %v", got, want)
	}
}

func TestSendSurfacesRejection(t *testing.T) {
	const upstreamBody = `{"error":{"code":400,"message":"Invalid model","status":"INVALID_ARGUMENT"}}`
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
	if string(rejected.Body) != upstreamBody {
		t.Errorf("rejection should carry the upstream body verbatim: %s", rejected.Body)
	}
}

func TestCountTokensUnsupported(t *testing.T) {
	p, err := NewProvider(testConfig("https://generativelanguage.googleapis.com"))
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	_, err = p.CountTokens(context.Background(), &wire.CountTokensRequest{Model: "gemini-2.0-flash"})
	if !errors.Is(err, providers.ErrCountTokensUnsupported) {
		t.Fatalf("expected ErrCountTokensUnsupported, got %v", err)
	}
}

func TestNewProviderValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  providers.ProviderConfig
	}{
		{"missing base_url", providers.ProviderConfig{Name: "g", APIKey: "k"}},
		{"missing api_key", providers.ProviderConfig{Name: "g", BaseURL: "https://generativelanguage.googleapis.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewProvider(tt.cfg); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}
