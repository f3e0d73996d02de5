// Package gemini implements the translating adapter for Google's
// generateContent API.
//
// Requests arrive in Anthropic Messages form and are mapped onto the
// Gemini surface: the system prompt becomes systemInstruction, messages
// become contents with the user/model role pair, tools become
// functionDeclarations, and base64 images become inline_data parts.
// Thinking blocks and cache_control markers have no representation and
// are dropped, as are URL image sources (Gemini takes inline bytes or
// uploaded file references, not arbitrary URLs).
//
// # Function Calling
//
// Gemini keys function responses by function name while Anthropic keys
// tool results by tool_use id, so the adapter resolves names from the
// tool_use blocks earlier in the conversation. Gemini also issues no call
// ids of its own; the adapter mints toolu_ ids when translating
// functionCall parts back, and those ids round-trip through the client's
// next request.
//
// # Streaming
//
// streamGenerateContent with alt=sse emits whole GenerateContentResponse
// chunks. The transcoder in streaming.go turns them into the Anthropic
// event sequence: one text block fed by per-chunk deltas, one tool_use
// block per functionCall part, blocks closed in index order when the
// finishReason arrives. The stream has no terminator line; end of input
// after a finishReason is the normal exit.
//
// # Token Counting
//
// CountTokens reports ErrCountTokensUnsupported so callers use the local
// estimator. Gemini's own countTokens endpoint measures its tokenizer,
// which is not what Anthropic-dialect clients are quoting against.
package gemini
