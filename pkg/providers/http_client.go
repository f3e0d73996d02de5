package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"
)

// Outbound HTTP limits shared by every adapter.
const (
	// ConnectTimeout bounds TCP connection establishment.
	ConnectTimeout = 30 * time.Second

	// StreamTimeout bounds an entire streaming exchange, first byte to
	// message_stop.
	StreamTimeout = 10 * time.Minute

	// DefaultTimeout bounds a non-streaming exchange when the provider
	// config does not set one.
	DefaultTimeout = 60 * time.Second

	// maxErrorBody caps how much of an upstream error body is read and
	// surfaced.
	maxErrorBody = 1 << 20
)

// sharedTransport is the process-wide connection pool. Every adapter dials
// through it so keep-alive connections survive adapter rebuilds on config
// reload.
var sharedTransport = &http.Transport{
	Proxy: http.ProxyFromEnvironment,
	DialContext: (&net.Dialer{
		Timeout:   ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext,
	ForceAttemptHTTP2:     true,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   10,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
}

// HTTPClient is the outbound HTTP layer embedded by adapters. It retries
// transient failures with exponential backoff, classifies upstream statuses
// into the adapter error taxonomy, and feeds the passive health tracker.
type HTTPClient struct {
	provider   string
	client     *http.Client
	stream     *http.Client
	maxRetries int
	health     *healthTracker
}

// NewHTTPClient creates the outbound layer for one provider. timeout bounds
// non-streaming exchanges; zero or negative selects DefaultTimeout.
func NewHTTPClient(provider string, timeout time.Duration, maxRetries int) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &HTTPClient{
		provider:   provider,
		client:     &http.Client{Transport: sharedTransport, Timeout: timeout},
		stream:     &http.Client{Transport: sharedTransport, Timeout: StreamTimeout},
		maxRetries: maxRetries,
		health:     newHealthTracker(provider),
	}
}

// Health returns the passive health snapshot for this provider.
func (c *HTTPClient) Health() Health {
	return c.health.Snapshot()
}

// Post sends a buffered POST and returns the response with its body open.
// Only 2xx responses are returned; everything else comes back as an error
// from the adapter taxonomy. The caller owns resp.Body.
func (c *HTTPClient) Post(ctx context.Context, url string, body []byte, header http.Header) (*http.Response, error) {
	return c.do(ctx, c.client, url, body, header)
}

// PostStream is Post with the streaming timeout. The request body is still
// buffered, so retries restart the exchange from scratch.
func (c *HTTPClient) PostStream(ctx context.Context, url string, body []byte, header http.Header) (*http.Response, error) {
	return c.do(ctx, c.stream, url, body, header)
}

// PostJSON marshals reqBody, posts it, and decodes the 2xx response into
// respBody. A body that fails to decode is a *ProtocolError.
func (c *HTTPClient) PostJSON(ctx context.Context, url string, reqBody, respBody any, header http.Header) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	resp, err := c.Post(ctx, url, payload, header)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ProtocolError{Provider: c.provider, Message: "read response body", Cause: err}
	}
	if respBody == nil {
		return nil
	}
	if err := json.Unmarshal(raw, respBody); err != nil {
		return &ProtocolError{
			Provider: c.provider,
			Message:  fmt.Sprintf("decode response: %s", truncate(string(raw), 200)),
			Cause:    err,
		}
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, client *http.Client, url string, body []byte, header http.Header) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			slog.Debug("retrying provider request",
				"provider", c.provider,
				"attempt", attempt,
				"max_retries", c.maxRetries,
				"backoff", delay,
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		if req.Header.Get("Content-Type") == "" {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := client.Do(req)
		if err != nil {
			c.health.Record(false, err)

			// Cancellation is the caller's decision; never retried.
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			lastErr = &TransientError{Provider: c.provider, Message: "request failed", Cause: err}
			slog.Warn("provider request failed, will retry",
				"provider", c.provider,
				"attempt", attempt+1,
				"error", err,
			)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			c.health.Record(true, nil)
			return resp, nil
		}

		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		c.health.Record(false, fmt.Errorf("status %d", resp.StatusCode))

		// 4xx means the request itself was refused. Retrying or falling
		// back would fail the same way, so the upstream body is preserved
		// for the client. 429 rides along with its Retry-After hint.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, &RejectedError{
				Provider:   c.provider,
				StatusCode: resp.StatusCode,
				Body:       errBody,
				RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			}
		}

		lastErr = &TransientError{
			Provider:   c.provider,
			StatusCode: resp.StatusCode,
			Message:    truncate(string(errBody), 200),
		}
		slog.Warn("provider returned server error, will retry",
			"provider", c.provider,
			"status", resp.StatusCode,
			"attempt", attempt+1,
		)
	}

	return nil, lastErr
}

// parseRetryAfter reads a Retry-After header value: either delta-seconds or
// an HTTP date.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
