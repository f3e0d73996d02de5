package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"mercator-hq/saturn/pkg/auth"
	"mercator-hq/saturn/pkg/providers"
	"mercator-hq/saturn/pkg/wire"
)

// APIVersion is the Messages API version sent on every request.
const APIVersion = "2023-06-01"

// oauthBetas are the feature flags OAuth-issued tokens must declare.
var oauthBetas = strings.Join([]string{
	auth.OAuthBetaFlag,
	"claude-code-20250219",
	"interleaved-thinking-2025-05-14",
	"fine-grained-tool-streaming-2025-05-14",
}, ",")

// Provider is the Anthropic passthrough adapter. It serves both the native
// API and Messages-compatible aggregators.
type Provider struct {
	cfg    providers.ProviderConfig
	http   *providers.HTTPClient
	tokens *auth.TokenStore

	// anthropicFamily marks upstreams that verify Anthropic thinking
	// signatures.
	anthropicFamily bool

	// delegateCount enables upstream count_tokens delegation. Only the
	// native API exposes the endpoint.
	delegateCount bool
}

// NewProvider creates the passthrough adapter. tokens is required only for
// oauth auth mode.
func NewProvider(cfg providers.ProviderConfig, tokens *auth.TokenStore) (*Provider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("provider %q: base_url is required", cfg.Name)
	}
	if cfg.AuthMode == providers.AuthModeOAuth {
		if tokens == nil {
			return nil, fmt.Errorf("provider %q: oauth auth mode requires a token store", cfg.Name)
		}
	} else if cfg.APIKey == "" {
		return nil, fmt.Errorf("provider %q: api_key is required", cfg.Name)
	}

	p := &Provider{
		cfg:             cfg,
		http:            providers.NewHTTPClient(cfg.Name, cfg.Timeout, cfg.MaxRetries),
		tokens:          tokens,
		anthropicFamily: strings.Contains(cfg.BaseURL, "anthropic.com"),
		delegateCount:   cfg.Type == providers.TypeAnthropic,
	}

	slog.Info("anthropic adapter initialized",
		"provider", cfg.Name,
		"base_url", cfg.BaseURL,
		"auth_mode", cfg.AuthMode,
	)
	return p, nil
}

// Name returns the provider's configured name.
func (p *Provider) Name() string { return p.cfg.Name }

// Type returns the adapter family.
func (p *Provider) Type() string { return p.cfg.Type }

// Supports always reports true: the model mapping table decides which
// models land here.
func (p *Provider) Supports(model string) bool { return true }

// Health returns the passive health snapshot.
func (p *Provider) Health() providers.Health { return p.http.Health() }

// Close releases adapter resources.
func (p *Provider) Close() {}

// Send forwards the request verbatim and returns the upstream's response.
// The request may be modified (thinking hygiene); callers pass a dedicated
// copy.
func (p *Provider) Send(ctx context.Context, req *wire.Request) (*wire.Response, error) {
	stripIncompatibleThinking(req, p.anthropicFamily)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	header, err := p.headers(ctx, req.Betas)
	if err != nil {
		return nil, err
	}

	resp, err := p.http.Post(ctx, p.cfg.BaseURL+"/v1/messages", body, header)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &providers.ProtocolError{Provider: p.cfg.Name, Message: "read response body", Cause: err}
	}

	var out wire.Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &providers.ProtocolError{Provider: p.cfg.Name, Message: "decode response", Cause: err}
	}
	return &out, nil
}

// SendStream forwards the request and relays the upstream SSE stream with
// payloads untouched.
func (p *Provider) SendStream(ctx context.Context, req *wire.Request) (providers.Stream, error) {
	stripIncompatibleThinking(req, p.anthropicFamily)
	req.Stream = true

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	header, err := p.headers(ctx, req.Betas)
	if err != nil {
		return nil, err
	}
	header.Set("Accept", "text/event-stream")

	resp, err := p.http.PostStream(ctx, p.cfg.BaseURL+"/v1/messages", body, header)
	if err != nil {
		return nil, err
	}
	return newRelayStream(p.cfg.Name, resp.Body), nil
}

// CountTokens delegates to the upstream count_tokens endpoint when the
// upstream has one.
func (p *Provider) CountTokens(ctx context.Context, req *wire.CountTokensRequest) (*wire.CountTokensResponse, error) {
	if !p.delegateCount {
		return nil, providers.ErrCountTokensUnsupported
	}

	header, err := p.headers(ctx, nil)
	if err != nil {
		return nil, err
	}

	var out wire.CountTokensResponse
	if err := p.http.PostJSON(ctx, p.cfg.BaseURL+"/v1/messages/count_tokens", req, &out, header); err != nil {
		return nil, err
	}
	return &out, nil
}

// headers assembles the outbound header set: API version, credentials,
// beta flags from the inbound request, and configured extras.
func (p *Provider) headers(ctx context.Context, betas []string) (http.Header, error) {
	h := http.Header{}
	h.Set("anthropic-version", APIVersion)
	h.Set("Content-Type", "application/json")

	switch p.cfg.AuthMode {
	case providers.AuthModeOAuth:
		token, err := p.tokens.AccessToken(ctx, p.cfg.Name)
		if err != nil {
			// Token trouble should not kill the whole fallback chain.
			return nil, &providers.NotAvailableError{
				Provider: p.cfg.Name,
				Reason:   fmt.Sprintf("oauth token: %v", err),
			}
		}
		h.Set("Authorization", "Bearer "+token)
		h.Set("anthropic-beta", oauthBetas)
	case providers.AuthModeBearer:
		h.Set("Authorization", "Bearer "+p.cfg.APIKey)
	default:
		h.Set("x-api-key", p.cfg.APIKey)
	}

	for _, beta := range betas {
		h.Add("anthropic-beta", beta)
	}
	for k, v := range p.cfg.ExtraHeaders {
		h.Set(k, v)
	}
	return h, nil
}

// relayStream forwards upstream SSE events without touching the payloads.
type relayStream struct {
	provider string
	body     io.ReadCloser
	events   *providers.EventReader
	sawStop  bool
	err      error
}

func newRelayStream(provider string, body io.ReadCloser) *relayStream {
	return &relayStream{
		provider: provider,
		body:     body,
		events:   providers.NewEventReader(body),
	}
}

func (s *relayStream) Next() (*providers.StreamEvent, error) {
	if s.err != nil {
		return nil, s.err
	}

	name, data, err := s.events.Next()
	if err == io.EOF {
		if !s.sawStop {
			s.err = &providers.ProtocolError{Provider: s.provider, Message: "stream ended before message_stop"}
			return nil, s.err
		}
		s.err = io.EOF
		return nil, io.EOF
	}
	if err != nil {
		s.err = &providers.ProtocolError{Provider: s.provider, Message: "stream read failed", Cause: err}
		return nil, s.err
	}

	if name == wire.EventMessageStop {
		s.sawStop = true
	}
	return &providers.StreamEvent{Name: name, Data: data}, nil
}

func (s *relayStream) Close() error {
	return s.body.Close()
}
