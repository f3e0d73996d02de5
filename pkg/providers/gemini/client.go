package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"mercator-hq/saturn/pkg/providers"
	"mercator-hq/saturn/pkg/wire"
)

// Provider is the generateContent adapter.
type Provider struct {
	cfg  providers.ProviderConfig
	http *providers.HTTPClient
}

// NewProvider creates the adapter. Gemini authenticates with an API key
// header.
func NewProvider(cfg providers.ProviderConfig) (*Provider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("provider %q: base_url is required", cfg.Name)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("provider %q: api_key is required", cfg.Name)
	}

	p := &Provider{
		cfg:  cfg,
		http: providers.NewHTTPClient(cfg.Name, cfg.Timeout, cfg.MaxRetries),
	}

	slog.Info("gemini adapter initialized",
		"provider", cfg.Name,
		"base_url", cfg.BaseURL,
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

// Send translates the request, calls generateContent, and translates the
// response back into Anthropic form.
func (p *Provider) Send(ctx context.Context, req *wire.Request) (*wire.Response, error) {
	greq := transformRequest(req)

	body, err := json.Marshal(greq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := p.http.Post(ctx, p.modelURL(req.Model, "generateContent"), body, p.headers())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &providers.ProtocolError{Provider: p.cfg.Name, Message: "read response body", Cause: err}
	}

	var gresp GeminiResponse
	if err := json.Unmarshal(raw, &gresp); err != nil {
		return nil, &providers.ProtocolError{Provider: p.cfg.Name, Message: "decode response", Cause: err}
	}
	out, err := transformResponse(&gresp, req.Model)
	if err != nil {
		return nil, &providers.ProtocolError{Provider: p.cfg.Name, Message: "translate response", Cause: err}
	}
	return out, nil
}

// SendStream opens a streamGenerateContent stream and returns it
// transcoded into Anthropic SSE events.
func (p *Provider) SendStream(ctx context.Context, req *wire.Request) (providers.Stream, error) {
	greq := transformRequest(req)

	body, err := json.Marshal(greq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	header := p.headers()
	header.Set("Accept", "text/event-stream")

	streamURL := p.modelURL(req.Model, "streamGenerateContent") + "?alt=sse"
	resp, err := p.http.PostStream(ctx, streamURL, body, header)
	if err != nil {
		return nil, err
	}
	return newTranscoder(p.cfg.Name, req.Model, resp.Body), nil
}

// CountTokens reports ErrCountTokensUnsupported; callers use the local
// estimator.
func (p *Provider) CountTokens(ctx context.Context, req *wire.CountTokensRequest) (*wire.CountTokensResponse, error) {
	return nil, providers.ErrCountTokensUnsupported
}

func (p *Provider) modelURL(model, method string) string {
	return p.cfg.BaseURL + "/v1beta/models/" + url.PathEscape(model) + ":" + method
}

func (p *Provider) headers() http.Header {
	h := make(http.Header)
	h.Set("x-goog-api-key", p.cfg.APIKey)
	for k, v := range p.cfg.ExtraHeaders {
		h.Set(k, v)
	}
	return h
}
