package providers

import (
	"context"
	"encoding/json"

	"mercator-hq/saturn/pkg/wire"
)

// Provider is the interface all upstream adapters implement. It presents
// every upstream as if it spoke the Anthropic Messages API: requests arrive
// in wire form with Model already set to the upstream model identifier, and
// responses come back in wire form no matter what dialect the upstream
// speaks.
//
// All methods respect context cancellation. Cancelling the context aborts
// the outbound call and is never retried.
type Provider interface {
	// Name returns the provider's configured name (e.g. "openrouter").
	Name() string

	// Type returns the adapter family (e.g. "anthropic", "openai").
	Type() string

	// Send performs a non-streaming exchange. The returned response is in
	// Anthropic wire form with the upstream's model identifier.
	//
	// Transient failures (network errors, 5xx) are retried internally with
	// exponential backoff before being reported as *TransientError.
	Send(ctx context.Context, req *wire.Request) (*wire.Response, error)

	// SendStream performs a streaming exchange. The returned Stream yields
	// Anthropic SSE events and terminates at message_stop or an error. The
	// caller owns the stream and must Close it.
	//
	// A stream is restartable only from scratch: once any event has been
	// consumed, a retry means a new SendStream call.
	SendStream(ctx context.Context, req *wire.Request) (Stream, error)

	// CountTokens returns the input token count for a request. Adapters
	// whose upstream has no counting endpoint return
	// ErrCountTokensUnsupported; the caller falls back to a local estimate.
	CountTokens(ctx context.Context, req *wire.CountTokensRequest) (*wire.CountTokensResponse, error)

	// Supports reports whether the adapter expects to serve the given
	// upstream model. Advisory only: the model mapping table is the
	// authority, and dispatch never consults this.
	Supports(model string) bool

	// Health returns the adapter's passive health snapshot, accumulated
	// from request outcomes.
	Health() Health

	// Close releases adapter resources. Safe to call more than once.
	Close()
}

// StreamEvent is one Anthropic SSE event: the event name and the payload
// that belongs on its data line. Data is kept as raw JSON so passthrough
// adapters can relay upstream bytes without a decode/encode round trip.
type StreamEvent struct {
	Name string
	Data json.RawMessage
}

// Stream is a lazy, finite sequence of Anthropic SSE events.
//
// Next returns the next event, io.EOF after the final event, or an error
// describing why the stream broke. After a non-nil error, Next returns the
// same error on every call.
//
// Close releases the underlying connection. It is idempotent and must be
// called even when Next returned an error.
type Stream interface {
	Next() (*StreamEvent, error)
	Close() error
}
