package providers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// MockServer simulates a provider API endpoint for integration tests.
// Responses are registered per request path; every request is recorded
// for later assertions. Paths without a registered response get a 404.
type MockServer struct {
	server    *httptest.Server
	mu        sync.Mutex
	responses map[string]MockResponse
	requests  map[string][]RecordedRequest
	total     int
}

// MockResponse configures what the server returns for one path.
type MockResponse struct {
	StatusCode int
	Body       any
	Headers    map[string]string
	Delay      time.Duration

	// SSE holds raw server-sent event blocks. When set the response is
	// streamed: each block is written verbatim and flushed before the
	// next, so Anthropic event-framed blocks and chat completions
	// data-only blocks both work.
	SSE []string
}

// RecordedRequest captures one request as the upstream saw it.
type RecordedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

// NewMockServer starts a mock provider endpoint. The caller owns the
// server and must Close it.
func NewMockServer() *MockServer {
	ms := &MockServer{
		responses: make(map[string]MockResponse),
		requests:  make(map[string][]RecordedRequest),
	}
	ms.server = httptest.NewServer(http.HandlerFunc(ms.handler))
	return ms
}

// URL returns the server's base URL, suitable for a provider base_url.
func (ms *MockServer) URL() string {
	return ms.server.URL
}

// Close shuts the server down.
func (ms *MockServer) Close() {
	ms.server.Close()
}

// SetResponse registers the response served for a request path.
func (ms *MockServer) SetResponse(path string, response MockResponse) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.responses[path] = response
}

// RequestCount returns how many requests hit a path.
func (ms *MockServer) RequestCount(path string) int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return len(ms.requests[path])
}

// TotalRequests returns how many requests the server received on any
// path.
func (ms *MockServer) TotalRequests() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.total
}

// LastRequest returns the most recent request recorded on a path.
func (ms *MockServer) LastRequest(path string) (RecordedRequest, bool) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	reqs := ms.requests[path]
	if len(reqs) == 0 {
		return RecordedRequest{}, false
	}
	return reqs[len(reqs)-1], true
}

// Reset clears recorded requests, keeping registered responses.
func (ms *MockServer) Reset() {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.requests = make(map[string][]RecordedRequest)
	ms.total = 0
}

func (ms *MockServer) handler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	ms.mu.Lock()
	ms.total++
	ms.requests[r.URL.Path] = append(ms.requests[r.URL.Path], RecordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Header: r.Header.Clone(),
		Body:   body,
	})
	response, ok := ms.responses[r.URL.Path]
	ms.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	if response.Delay > 0 {
		time.Sleep(response.Delay)
	}
	for key, value := range response.Headers {
		w.Header().Set(key, value)
	}

	if len(response.SSE) > 0 {
		ms.stream(w, response)
		return
	}

	status := response.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	if response.Body != nil && w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(status)

	switch v := response.Body.(type) {
	case nil:
	case string:
		io.WriteString(w, v)
	case []byte:
		w.Write(v)
	default:
		json.NewEncoder(w).Encode(v)
	}
}

// stream writes the SSE blocks with a flush after each, mimicking an
// upstream that trickles events.
func (ms *MockServer) stream(w http.ResponseWriter, response MockResponse) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	for _, block := range response.SSE {
		io.WriteString(w, block)
		flusher.Flush()
		time.Sleep(time.Millisecond)
	}
}

// Event renders one SSE block with an event name, the Messages API
// stream framing.
func Event(name string, payload any) string {
	data, _ := json.Marshal(payload)
	return fmt.Sprintf("event: %s\ndata: %s\n\n", name, data)
}

// Data renders one data-only SSE block, the chat completions and Gemini
// stream framing.
func Data(payload any) string {
	data, _ := json.Marshal(payload)
	return fmt.Sprintf("data: %s\n\n", data)
}

// OpenAIDone is the chat completions stream terminator.
const OpenAIDone = "data: [DONE]\n\n"

// AnthropicMessage builds a complete Messages API response body.
func AnthropicMessage(model, text string) map[string]any {
	return map[string]any{
		"id":    "msg_mock_001",
		"type":  "message",
		"role":  "assistant",
		"model": model,
		"content": []map[string]any{
			{"type": "text", "text": text},
		},
		"stop_reason":   "end_turn",
		"stop_sequence": nil,
		"usage": map[string]any{
			"input_tokens":  10,
			"output_tokens": 20,
		},
	}
}

// AnthropicStream builds the canonical Messages API event sequence for
// a single text block: message_start through message_stop.
func AnthropicStream(model, text string) []string {
	return []string{
		Event("message_start", map[string]any{
			"type": "message_start",
			"message": map[string]any{
				"id":          "msg_mock_stream",
				"type":        "message",
				"role":        "assistant",
				"model":       model,
				"content":     []any{},
				"stop_reason": nil,
				"usage":       map[string]any{"input_tokens": 10, "output_tokens": 0},
			},
		}),
		Event("content_block_start", map[string]any{
			"type":          "content_block_start",
			"index":         0,
			"content_block": map[string]any{"type": "text", "text": ""},
		}),
		Event("content_block_delta", map[string]any{
			"type":  "content_block_delta",
			"index": 0,
			"delta": map[string]any{"type": "text_delta", "text": text},
		}),
		Event("content_block_stop", map[string]any{
			"type":  "content_block_stop",
			"index": 0,
		}),
		Event("message_delta", map[string]any{
			"type":  "message_delta",
			"delta": map[string]any{"stop_reason": "end_turn", "stop_sequence": nil},
			"usage": map[string]any{"output_tokens": 20},
		}),
		Event("message_stop", map[string]any{"type": "message_stop"}),
	}
}

// OpenAIChatCompletion builds a complete chat completions response
// body.
func OpenAIChatCompletion(model, content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-mock",
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   model,
		"choices": []map[string]any{
			{
				"index": 0,
				"message": map[string]any{
					"role":    "assistant",
					"content": content,
				},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]any{
			"prompt_tokens":     10,
			"completion_tokens": 20,
			"total_tokens":      30,
		},
	}
}

// OpenAIStream builds a chat completions stream: one chunk per delta, a
// finish chunk, a trailing usage chunk, then [DONE].
func OpenAIStream(model string, deltas ...string) []string {
	var blocks []string
	for _, delta := range deltas {
		blocks = append(blocks, Data(map[string]any{
			"id":     "chatcmpl-mock",
			"object": "chat.completion.chunk",
			"model":  model,
			"choices": []map[string]any{
				{"index": 0, "delta": map[string]any{"content": delta}},
			},
		}))
	}
	blocks = append(blocks, Data(map[string]any{
		"id":     "chatcmpl-mock",
		"object": "chat.completion.chunk",
		"model":  model,
		"choices": []map[string]any{
			{"index": 0, "delta": map[string]any{}, "finish_reason": "stop"},
		},
	}))
	blocks = append(blocks, Data(map[string]any{
		"id":      "chatcmpl-mock",
		"object":  "chat.completion.chunk",
		"model":   model,
		"choices": []any{},
		"usage": map[string]any{
			"prompt_tokens":     10,
			"completion_tokens": 20,
			"total_tokens":      30,
		},
	}))
	return append(blocks, OpenAIDone)
}

// GeminiGenerate builds a complete generateContent response body.
func GeminiGenerate(text string) map[string]any {
	return map[string]any{
		"candidates": []map[string]any{
			{
				"content": map[string]any{
					"role":  "model",
					"parts": []map[string]any{{"text": text}},
				},
				"finishReason": "STOP",
				"index":        0,
			},
		},
		"usageMetadata": map[string]any{
			"promptTokenCount":     10,
			"candidatesTokenCount": 20,
			"totalTokenCount":      30,
		},
	}
}

// GeminiStream builds a streamGenerateContent sequence: one chunk per
// delta, then a closing chunk carrying the finish reason and usage.
// Gemini streams end at connection close, without a terminator line.
func GeminiStream(deltas ...string) []string {
	var blocks []string
	for _, delta := range deltas {
		blocks = append(blocks, Data(map[string]any{
			"candidates": []map[string]any{
				{
					"content": map[string]any{
						"role":  "model",
						"parts": []map[string]any{{"text": delta}},
					},
				},
			},
		}))
	}
	return append(blocks, Data(map[string]any{
		"candidates": []map[string]any{
			{
				"content":      map[string]any{"role": "model", "parts": []any{}},
				"finishReason": "STOP",
			},
		},
		"usageMetadata": map[string]any{
			"promptTokenCount":     10,
			"candidatesTokenCount": 20,
			"totalTokenCount":      30,
		},
	}))
}

// ErrorResponse builds an Anthropic error envelope response.
func ErrorResponse(statusCode int, errType, message string) MockResponse {
	return MockResponse{
		StatusCode: statusCode,
		Body: map[string]any{
			"type": "error",
			"error": map[string]any{
				"type":    errType,
				"message": message,
			},
		},
	}
}

// RateLimitResponse builds a 429 with a Retry-After hint.
func RateLimitResponse(retryAfter int) MockResponse {
	resp := ErrorResponse(http.StatusTooManyRequests, "rate_limit_error", "rate limit exceeded")
	resp.Headers = map[string]string{"Retry-After": strconv.Itoa(retryAfter)}
	return resp
}

// ServerErrorResponse builds the 500 that drives fallback.
func ServerErrorResponse() MockResponse {
	return ErrorResponse(http.StatusInternalServerError, "api_error", "internal server error")
}
