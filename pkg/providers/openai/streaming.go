package openai

import (
	"encoding/json"
	"io"

	"github.com/google/uuid"

	"mercator-hq/saturn/pkg/providers"
	"mercator-hq/saturn/pkg/wire"
)

// transcoder converts a chat completions SSE stream into the Anthropic
// event sequence. It allocates one content block per upstream channel: a
// single text block for delta.content and one tool_use block per distinct
// tool_calls index, opened on first sight. Blocks close in index order
// when the upstream reports a finish_reason; message_delta and
// message_stop follow once the trailing usage chunk (or [DONE]) arrives.
// Every allocated block gets exactly one start and one stop event.
type transcoder struct {
	provider string
	model    string
	body     io.ReadCloser
	events   *providers.EventReader

	// queue holds translated events not yet delivered.
	queue []*providers.StreamEvent

	started   bool
	textIndex int         // open text block, -1 until delta.content appears
	toolIndex map[int]int // upstream tool_calls index -> block index
	nextIndex int

	stopReason string       // mapped finish_reason, "" until reported
	usage      *OpenAIUsage // trailing usage chunk, nil until reported
	closed     bool         // content_block_stop events emitted
	finished   bool         // message_stop emitted
	err        error
}

func newTranscoder(provider, model string, body io.ReadCloser) *transcoder {
	return &transcoder{
		provider:  provider,
		model:     model,
		body:      body,
		events:    providers.NewEventReader(body),
		textIndex: -1,
		toolIndex: make(map[int]int),
	}
}

// Next returns the next translated event. It reads upstream chunks until
// at least one event is produced, then drains them one per call.
func (t *transcoder) Next() (*providers.StreamEvent, error) {
	for {
		if len(t.queue) > 0 {
			ev := t.queue[0]
			t.queue = t.queue[1:]
			return ev, nil
		}
		if t.err != nil {
			return nil, t.err
		}
		if t.finished {
			t.err = io.EOF
			return nil, t.err
		}

		_, data, err := t.events.Next()
		if err == io.EOF {
			if t.stopReason != "" {
				// The message completed; the upstream just skipped [DONE].
				t.flush()
			} else {
				t.err = &providers.ProtocolError{Provider: t.provider, Message: "stream ended before completion"}
			}
			continue
		}
		if err != nil {
			t.err = &providers.ProtocolError{Provider: t.provider, Message: "stream read failed", Cause: err}
			continue
		}

		if string(data) == "[DONE]" {
			if t.stopReason == "" {
				t.stopReason = wire.StopEndTurn
			}
			t.flush()
			continue
		}

		var chunk OpenAIStreamResponse
		if err := json.Unmarshal(data, &chunk); err != nil {
			t.err = &providers.ProtocolError{Provider: t.provider, Message: "malformed stream chunk", Cause: err}
			continue
		}
		t.handleChunk(&chunk)
	}
}

// Close closes the upstream connection.
func (t *transcoder) Close() error {
	return t.body.Close()
}

func (t *transcoder) handleChunk(chunk *OpenAIStreamResponse) {
	if chunk.Usage != nil {
		t.usage = chunk.Usage
	}
	t.ensureStarted(chunk.ID, chunk.Model)
	if len(chunk.Choices) == 0 {
		return
	}
	choice := chunk.Choices[0]

	if choice.Delta.Content != "" {
		if t.textIndex < 0 {
			t.textIndex = t.nextIndex
			t.nextIndex++
			t.push(wire.NewContentBlockStart(t.textIndex, wire.TextBlock("")))
		}
		t.push(wire.NewTextDelta(t.textIndex, choice.Delta.Content))
	}

	for _, tc := range choice.Delta.ToolCalls {
		idx, ok := t.toolIndex[tc.Index]
		if !ok {
			idx = t.nextIndex
			t.nextIndex++
			t.toolIndex[tc.Index] = idx
			t.push(wire.NewContentBlockStart(idx, wire.ToolUseBlock(tc.ID, tc.Function.Name, json.RawMessage("{}"))))
		}
		if tc.Function.Arguments != "" {
			t.push(wire.NewInputJSONDelta(idx, tc.Function.Arguments))
		}
	}

	if choice.FinishReason != "" {
		t.stopReason = mapFinishReason(choice.FinishReason)
		t.closeBlocks()
	}
}

// ensureStarted emits message_start on the first upstream chunk. IDs and
// model names missing from the chunk fall back to a generated ID and the
// requested model.
func (t *transcoder) ensureStarted(id, model string) {
	if t.started {
		return
	}
	t.started = true
	if id == "" {
		id = "msg_" + uuid.New().String()
	}
	if model == "" {
		model = t.model
	}
	t.push(wire.NewMessageStart(id, model, wire.Usage{}))
}

// closeBlocks emits content_block_stop for every allocated block, in
// index order.
func (t *transcoder) closeBlocks() {
	if t.closed {
		return
	}
	t.closed = true
	for i := 0; i < t.nextIndex; i++ {
		t.push(wire.NewContentBlockStop(i))
	}
}

// flush ends the message: remaining block stops, then message_delta with
// the stop reason and final usage, then message_stop.
func (t *transcoder) flush() {
	if t.finished {
		return
	}
	t.finished = true
	t.ensureStarted("", "")
	t.closeBlocks()

	reason := t.stopReason
	if reason == "" {
		reason = wire.StopEndTurn
	}
	usage := wire.DeltaUsage{}
	if t.usage != nil {
		usage.InputTokens = t.usage.PromptTokens
		usage.OutputTokens = t.usage.CompletionTokens
	}
	t.push(wire.NewMessageDelta(&reason, nil, usage))
	t.push(wire.NewMessageStop())
}

func (t *transcoder) push(ev wire.Event) {
	data, err := json.Marshal(ev.Payload)
	if err != nil {
		t.err = &providers.ProtocolError{Provider: t.provider, Message: "encode event", Cause: err}
		return
	}
	t.queue = append(t.queue, &providers.StreamEvent{Name: ev.Name, Data: data})
}
