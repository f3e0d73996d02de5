package wire

// Stop reasons reported on completed responses.
const (
	StopEndTurn      = "end_turn"
	StopMaxTokens    = "max_tokens"
	StopStopSequence = "stop_sequence"
	StopToolUse      = "tool_use"
	StopRefusal      = "refusal"
)

// RoleAssistant and RoleUser are the Messages API conversation roles.
const (
	RoleAssistant = "assistant"
	RoleUser      = "user"
)

// Response is a non-streaming Messages API response.
type Response struct {
	// ID is the message identifier (msg_ prefixed).
	ID string `json:"id"`

	// Type is always "message".
	Type string `json:"type"`

	// Role is always "assistant".
	Role string `json:"role"`

	// Content is the generated content blocks.
	Content []ContentBlock `json:"content"`

	// Model is the model that produced the response.
	Model string `json:"model"`

	// StopReason explains why generation ended. Null in streaming
	// envelopes until the message_delta arrives.
	StopReason *string `json:"stop_reason"`

	// StopSequence is the matched stop sequence, when StopReason is
	// stop_sequence.
	StopSequence *string `json:"stop_sequence"`

	// Usage is the token accounting for the exchange.
	Usage Usage `json:"usage"`
}

// Usage is the token accounting attached to responses and stream events.
// Cache fields are surfaced only when the upstream reported them.
type Usage struct {
	InputTokens              int  `json:"input_tokens"`
	OutputTokens             int  `json:"output_tokens"`
	CacheCreationInputTokens *int `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     *int `json:"cache_read_input_tokens,omitempty"`
}

// StopReasonPtr converts a stop reason to the pointer form used on the wire,
// mapping the empty string to null.
func StopReasonPtr(reason string) *string {
	if reason == "" {
		return nil
	}
	return &reason
}
