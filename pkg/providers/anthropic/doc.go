// Package anthropic implements the passthrough adapter for providers that
// speak the Anthropic Messages API natively.
//
// This covers api.anthropic.com itself and the growing set of aggregators
// that expose a Messages-format endpoint (z.ai, Minimax, ZenMux, Kimi,
// OpenRouter's Anthropic surface). Because the upstream dialect is the same
// as the proxy's client dialect, the adapter forwards request JSON
// verbatim, unknown fields and cache_control markers included, with only
// the model field rewritten by the dispatcher beforehand. Streaming
// responses are relayed event for event with the data payloads untouched.
//
// # Authentication
//
//   - api_key: x-api-key header
//   - bearer: Authorization: Bearer with the configured key
//   - oauth: Authorization: Bearer with a token from the auth.TokenStore,
//     refreshed when close to expiry, plus the anthropic-beta feature
//     flags OAuth tokens require
//
// # Thinking Block Hygiene
//
// Conversation history can carry thinking blocks signed by whichever
// provider produced them. Signatures do not transfer between providers, so
// the adapter strips incompatible signed blocks before forwarding; see
// thinking.go for the exact policy.
//
// # Token Counting
//
// Only api.anthropic.com exposes a count_tokens endpoint, so delegation is
// enabled for the anthropic family and compatible aggregators report
// ErrCountTokensUnsupported, letting the caller fall back to the local
// estimator.
package anthropic
