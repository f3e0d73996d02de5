// Package openai implements the translating adapter for OpenAI-compatible
// chat completions endpoints.
//
// This is the widest adapter family: api.openai.com itself plus the many
// inference hosts that clone its surface (DeepInfra, Novita, Baseten,
// Together, Fireworks, Groq, Nebius, Cerebras, Moonshot). Requests arrive
// in Anthropic Messages form and must be translated both ways.
//
// # Request Translation
//
// The system prompt becomes a leading role:system message. Text content
// stays a string where possible and becomes a content-parts array when
// images are present (base64 sources as data: URIs). Anthropic tool_use
// blocks turn into assistant tool_calls with a JSON-string arguments
// field; tool_result blocks become standalone role:tool messages keyed by
// tool_call_id. Thinking blocks and cache_control markers have no chat
// completions representation and are dropped.
//
// # Response Translation
//
// choices[0] is unflattened back into Anthropic content blocks: message
// content into a text block, tool_calls into tool_use blocks with parsed
// arguments, finish_reason into the Anthropic stop_reason vocabulary.
// Some upstreams (GLM models on Cerebras) return the answer in a
// reasoning field instead of content; that is used as text when content
// is empty.
//
// # Streaming
//
// SendStream transcodes the upstream delta chunks into the Anthropic
// event sequence with a small state machine; see streaming.go. The
// upstream is asked for a final usage chunk (stream_options.include_usage)
// so the closing message_delta can carry real token counts.
//
// # Token Counting
//
// Chat completions endpoints expose no count_tokens operation, so
// CountTokens reports ErrCountTokensUnsupported and the caller falls back
// to the local estimator.
package openai
