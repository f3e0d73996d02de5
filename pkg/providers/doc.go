// Package providers implements the upstream adapter layer of the proxy.
//
// # Overview
//
// An adapter speaks one upstream dialect and presents it as the Anthropic
// Messages API. The dispatcher hands every adapter the same request shape
// (pkg/wire) and receives either a complete wire.Response or a Stream of
// Anthropic SSE events, regardless of what the upstream actually speaks.
//
// # Architecture
//
// The package is organized into layers:
//
//  1. Provider interface - the capability set every adapter implements
//  2. HTTPClient - shared outbound HTTP with pooling, retries, and passive
//     health tracking
//  3. Adapter subpackages - anthropic (passthrough), openai (chat
//     completions translation), gemini (generateContent translation)
//  4. Catalog - pinned base URLs and headers for known provider names
//
// Adapter construction from configuration lives in pkg/providerfactory,
// which imports this package and the adapter subpackages.
//
// # Error Contract
//
// Adapters report failures through the types in errors.go:
//
//   - TransientError: network failure, timeout, or 5xx; the dispatcher may
//     try the next provider in the fallback chain
//   - RejectedError: the upstream refused the request (4xx); the chain
//     stops and the upstream body is surfaced to the client
//   - NotAvailableError: the provider exists in a mapping but has no live
//     adapter; treated like a transient failure for fallback purposes
//   - ProtocolError: the upstream replied with bytes the adapter cannot
//     interpret
//
// # Streaming
//
// SendStream returns a Stream: a lazy, finite sequence of StreamEvents,
// each an Anthropic SSE event name plus its raw data payload. The sequence
// ends with message_stop (then io.EOF) or an error. Streams hold an open
// HTTP response body and must be closed.
//
// # Thread Safety
//
// Adapters are safe for concurrent use. All outbound requests share one
// process-wide connection pool.
package providers
