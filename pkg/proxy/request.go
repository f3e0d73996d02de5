package proxy

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"mercator-hq/saturn/pkg/wire"
)

const (
	// RequestIDHeader carries a client-supplied request ID for correlation.
	RequestIDHeader = "X-Request-ID"

	// ProviderHeader forces dispatch to a single named provider,
	// bypassing priority order.
	ProviderHeader = "X-Provider"

	// BetaHeader is Anthropic's opt-in feature header. Values are
	// forwarded to Anthropic-native upstreams.
	BetaHeader = "anthropic-beta"
)

// RequestError is a parse or validation failure on the inbound body.
// It surfaces as 400 invalid_request_error.
type RequestError struct {
	Message string
}

func (e *RequestError) Error() string {
	return e.Message
}

// ParseMessagesRequest reads and decodes a /v1/messages body.
//
// Unknown top-level fields are preserved in the request's Extra map so
// passthrough providers can forward them verbatim. The anthropic-beta
// header, if present, is attached to the request.
func ParseMessagesRequest(r *http.Request) (*wire.Request, error) {
	body, err := ReadBody(r)
	if err != nil {
		return nil, err
	}

	var req wire.Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, &RequestError{Message: fmt.Sprintf("invalid JSON: %v", err)}
	}

	if req.Model == "" {
		return nil, &RequestError{Message: "model is required"}
	}
	if len(req.Messages) == 0 {
		return nil, &RequestError{Message: "messages must not be empty"}
	}
	if req.MaxTokens < 1 {
		return nil, &RequestError{Message: "max_tokens must be at least 1"}
	}

	req.Betas = parseBetas(r)
	return &req, nil
}

// ParseCountTokensRequest reads and decodes a /v1/messages/count_tokens
// body. Count requests carry no max_tokens.
func ParseCountTokensRequest(r *http.Request) (*wire.CountTokensRequest, error) {
	body, err := ReadBody(r)
	if err != nil {
		return nil, err
	}

	var req wire.CountTokensRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, &RequestError{Message: fmt.Sprintf("invalid JSON: %v", err)}
	}

	if req.Model == "" {
		return nil, &RequestError{Message: "model is required"}
	}
	if len(req.Messages) == 0 {
		return nil, &RequestError{Message: "messages must not be empty"}
	}

	return &req, nil
}

// ReadBody drains the request body. The server's body-limit middleware
// caps it at the configured max_body_bytes; exceeding the cap surfaces
// here as a RequestError naming the limit.
func ReadBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, &RequestError{Message: fmt.Sprintf("request body exceeds maximum size of %d bytes", mbe.Limit)}
		}
		return nil, &RequestError{Message: fmt.Sprintf("failed to read request body: %v", err)}
	}
	return body, nil
}

// ForcedProvider extracts the X-Provider header. An empty or whitespace
// value means no override.
func ForcedProvider(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(ProviderHeader))
}

// ExtractRequestID extracts the client-supplied request ID, if any.
// The request ID middleware generates one when the header is absent.
func ExtractRequestID(r *http.Request) string {
	return r.Header.Get(RequestIDHeader)
}

// parseBetas splits the anthropic-beta header into individual flags.
// The header may repeat and each value may hold a comma-separated list.
func parseBetas(r *http.Request) []string {
	var betas []string
	for _, raw := range r.Header.Values(BetaHeader) {
		for _, part := range strings.Split(raw, ",") {
			if b := strings.TrimSpace(part); b != "" {
				betas = append(betas, b)
			}
		}
	}
	return betas
}
