package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Anthropic OAuth endpoints and the public client ID used by Claude Code
// and compatible tooling. Tokens minted through this client carry the
// user:inference scope the Messages API requires.
const (
	OAuthClientID     = "9d1c250a-e61b-44d9-88ed-5944d1962f5e"
	OAuthAuthorizeURL = "https://claude.ai/oauth/authorize"
	OAuthTokenURL     = "https://console.anthropic.com/v1/oauth/token"
	OAuthRedirectURI  = "https://console.anthropic.com/oauth/code/callback"
	OAuthScopes       = "org:create_api_key user:profile user:inference"

	// OAuthBetaFlag must accompany requests authenticated with an OAuth
	// bearer token, as the anthropic-beta header value.
	OAuthBetaFlag = "oauth-2025-04-20"
)

// OAuthClient refreshes Anthropic OAuth tokens. The zero value is not
// usable; construct with NewOAuthClient.
type OAuthClient struct {
	// TokenURL is the token endpoint. Default: OAuthTokenURL.
	TokenURL string

	// ClientID identifies the public OAuth client. Default: OAuthClientID.
	ClientID string

	// HTTPClient performs token calls. Default: 15 second timeout.
	HTTPClient *http.Client

	// MaxRetries bounds retry attempts on transient failures. Default: 3.
	MaxRetries uint64
}

// NewOAuthClient returns a client for the Anthropic token endpoint.
func NewOAuthClient() *OAuthClient {
	return &OAuthClient{
		TokenURL:   OAuthTokenURL,
		ClientID:   OAuthClientID,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		MaxRetries: 3,
	}
}

// tokenResponse is the JSON body returned by the token endpoint.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// Refresh exchanges a refresh token for a new credential triple.
// Transient failures (network errors, 429, 5xx) are retried with
// exponential backoff; a 4xx response is terminal since a rejected
// refresh token will not heal on retry.
func (c *OAuthClient) Refresh(ctx context.Context, refreshToken string) (OAuthToken, error) {
	payload, err := json.Marshal(map[string]string{
		"grant_type":    "refresh_token",
		"client_id":     c.ClientID,
		"refresh_token": refreshToken,
	})
	if err != nil {
		return OAuthToken{}, fmt.Errorf("failed to marshal refresh request: %w", err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 5 * time.Second

	var token OAuthToken
	operation := func() error {
		tok, err := c.refreshOnce(ctx, payload)
		if err != nil {
			return err
		}
		token = tok
		return nil
	}
	notify := func(err error, next time.Duration) {
		slog.Warn("oauth refresh failed, will retry",
			"backoff", next,
			"error", err,
		)
	}

	if err := backoff.RetryNotify(operation, backoff.WithMaxRetries(backoff.WithContext(bo, ctx), c.MaxRetries), notify); err != nil {
		return OAuthToken{}, err
	}

	if token.RefreshToken == "" {
		token.RefreshToken = refreshToken
	}
	return token, nil
}

// refreshOnce performs a single token endpoint call.
func (c *OAuthClient) refreshOnce(ctx context.Context, payload []byte) (OAuthToken, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.TokenURL, bytes.NewReader(payload))
	if err != nil {
		return OAuthToken{}, backoff.Permanent(fmt.Errorf("failed to create refresh request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return OAuthToken{}, fmt.Errorf("token refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return OAuthToken{}, fmt.Errorf("failed to read refresh response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		refreshErr := fmt.Errorf("token refresh failed (status %d): %s", resp.StatusCode, truncateBody(body))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return OAuthToken{}, refreshErr
		}
		return OAuthToken{}, backoff.Permanent(refreshErr)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return OAuthToken{}, backoff.Permanent(fmt.Errorf("failed to parse refresh response: %w", err))
	}

	return OAuthToken{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    time.Now().Unix() + tr.ExpiresIn,
	}, nil
}

// truncateBody trims provider error bodies for log and error messages.
func truncateBody(body []byte) string {
	s := string(body)
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
