package wire

// SSE event names emitted on streaming responses.
const (
	EventMessageStart      = "message_start"
	EventContentBlockStart = "content_block_start"
	EventContentBlockDelta = "content_block_delta"
	EventContentBlockStop  = "content_block_stop"
	EventMessageDelta      = "message_delta"
	EventMessageStop       = "message_stop"
	EventPing              = "ping"
	EventError             = "error"
)

// Delta type discriminators inside content_block_delta events.
const (
	DeltaTypeText      = "text_delta"
	DeltaTypeInputJSON = "input_json_delta"
	DeltaTypeThinking  = "thinking_delta"
	DeltaTypeSignature = "signature_delta"
)

// Event is one Anthropic SSE stream event: the event name plus the payload
// that marshals to its data line.
type Event struct {
	Name    string
	Payload any
}

// MessageStartEvent opens a stream with the message envelope.
type MessageStartEvent struct {
	Type    string   `json:"type"`
	Message Response `json:"message"`
}

// ContentBlockStartEvent opens content block Index.
type ContentBlockStartEvent struct {
	Type         string       `json:"type"`
	Index        int          `json:"index"`
	ContentBlock ContentBlock `json:"content_block"`
}

// ContentBlockDeltaEvent appends to an open content block. Delta is one of
// TextDelta, InputJSONDelta, ThinkingDelta, or SignatureDelta.
type ContentBlockDeltaEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
	Delta any    `json:"delta"`
}

// TextDelta carries a text fragment.
type TextDelta struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// InputJSONDelta carries a fragment of a tool_use input document.
type InputJSONDelta struct {
	Type        string `json:"type"`
	PartialJSON string `json:"partial_json"`
}

// ThinkingDelta carries a fragment of reasoning text.
type ThinkingDelta struct {
	Type     string `json:"type"`
	Thinking string `json:"thinking"`
}

// SignatureDelta carries the reasoning signature.
type SignatureDelta struct {
	Type      string `json:"type"`
	Signature string `json:"signature"`
}

// ContentBlockStopEvent closes content block Index.
type ContentBlockStopEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
}

// MessageDeltaEvent carries the final stop reason and output token count.
type MessageDeltaEvent struct {
	Type  string           `json:"type"`
	Delta MessageDeltaBody `json:"delta"`
	Usage DeltaUsage       `json:"usage"`
}

// MessageDeltaBody is the delta member of a message_delta event.
type MessageDeltaBody struct {
	StopReason   *string `json:"stop_reason"`
	StopSequence *string `json:"stop_sequence"`
}

// DeltaUsage is the usage member of a message_delta event.
type DeltaUsage struct {
	InputTokens  int `json:"input_tokens,omitempty"`
	OutputTokens int `json:"output_tokens"`
}

// MessageStopEvent ends the stream.
type MessageStopEvent struct {
	Type string `json:"type"`
}

// PingEvent is a keepalive.
type PingEvent struct {
	Type string `json:"type"`
}

// NewMessageStart builds a message_start event. The envelope always carries
// an empty content array and null stop fields.
func NewMessageStart(id, model string, usage Usage) Event {
	return Event{
		Name: EventMessageStart,
		Payload: MessageStartEvent{
			Type: EventMessageStart,
			Message: Response{
				ID:      id,
				Type:    "message",
				Role:    RoleAssistant,
				Content: []ContentBlock{},
				Model:   model,
				Usage:   usage,
			},
		},
	}
}

// NewContentBlockStart builds a content_block_start event.
func NewContentBlockStart(index int, block ContentBlock) Event {
	return Event{
		Name:    EventContentBlockStart,
		Payload: ContentBlockStartEvent{Type: EventContentBlockStart, Index: index, ContentBlock: block},
	}
}

// NewTextDelta builds a content_block_delta carrying text.
func NewTextDelta(index int, text string) Event {
	return Event{
		Name: EventContentBlockDelta,
		Payload: ContentBlockDeltaEvent{
			Type:  EventContentBlockDelta,
			Index: index,
			Delta: TextDelta{Type: DeltaTypeText, Text: text},
		},
	}
}

// NewInputJSONDelta builds a content_block_delta carrying a tool input
// fragment.
func NewInputJSONDelta(index int, partial string) Event {
	return Event{
		Name: EventContentBlockDelta,
		Payload: ContentBlockDeltaEvent{
			Type:  EventContentBlockDelta,
			Index: index,
			Delta: InputJSONDelta{Type: DeltaTypeInputJSON, PartialJSON: partial},
		},
	}
}

// NewThinkingDelta builds a content_block_delta carrying reasoning text.
func NewThinkingDelta(index int, thinking string) Event {
	return Event{
		Name: EventContentBlockDelta,
		Payload: ContentBlockDeltaEvent{
			Type:  EventContentBlockDelta,
			Index: index,
			Delta: ThinkingDelta{Type: DeltaTypeThinking, Thinking: thinking},
		},
	}
}

// NewSignatureDelta builds a content_block_delta carrying a reasoning
// signature.
func NewSignatureDelta(index int, signature string) Event {
	return Event{
		Name: EventContentBlockDelta,
		Payload: ContentBlockDeltaEvent{
			Type:  EventContentBlockDelta,
			Index: index,
			Delta: SignatureDelta{Type: DeltaTypeSignature, Signature: signature},
		},
	}
}

// NewContentBlockStop builds a content_block_stop event.
func NewContentBlockStop(index int) Event {
	return Event{
		Name:    EventContentBlockStop,
		Payload: ContentBlockStopEvent{Type: EventContentBlockStop, Index: index},
	}
}

// NewMessageDelta builds a message_delta event with the stop reason and
// final output token count.
func NewMessageDelta(stopReason, stopSequence *string, usage DeltaUsage) Event {
	return Event{
		Name: EventMessageDelta,
		Payload: MessageDeltaEvent{
			Type:  EventMessageDelta,
			Delta: MessageDeltaBody{StopReason: stopReason, StopSequence: stopSequence},
			Usage: usage,
		},
	}
}

// NewMessageStop builds a message_stop event.
func NewMessageStop() Event {
	return Event{Name: EventMessageStop, Payload: MessageStopEvent{Type: EventMessageStop}}
}

// NewPing builds a ping event.
func NewPing() Event {
	return Event{Name: EventPing, Payload: PingEvent{Type: EventPing}}
}

// NewErrorEvent builds an in-stream error event.
func NewErrorEvent(errType, message string) Event {
	return Event{Name: EventError, Payload: ErrorResponse{Type: "error", Error: ErrorDetail{Type: errType, Message: message}}}
}
