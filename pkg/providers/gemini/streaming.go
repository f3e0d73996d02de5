package gemini

import (
	"encoding/json"
	"io"

	"github.com/google/uuid"

	"mercator-hq/saturn/pkg/providers"
	"mercator-hq/saturn/pkg/wire"
)

// transcoder converts a streamGenerateContent SSE stream into the
// Anthropic event sequence. Text parts feed one shared text block;
// each functionCall part opens its own tool_use block and delivers its
// arguments as a single input_json_delta, since Gemini sends calls whole.
// Blocks close in index order once the finishReason arrives; the stream
// has no terminator line, so end of input after that is the normal exit.
type transcoder struct {
	provider string
	model    string
	body     io.ReadCloser
	events   *providers.EventReader

	// queue holds translated events not yet delivered.
	queue []*providers.StreamEvent

	started   bool
	textIndex int // open text block, -1 until a text part appears
	nextIndex int

	stopReason string
	sawToolUse bool
	usage      *GeminiUsageMetadata
	closed     bool
	finished   bool
	err        error
}

func newTranscoder(provider, model string, body io.ReadCloser) *transcoder {
	return &transcoder{
		provider:  provider,
		model:     model,
		body:      body,
		events:    providers.NewEventReader(body),
		textIndex: -1,
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

		var chunk GeminiResponse
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

func (t *transcoder) handleChunk(chunk *GeminiResponse) {
	if chunk.UsageMetadata != nil {
		t.usage = chunk.UsageMetadata
	}
	t.ensureStarted(chunk.ModelVersion)
	if len(chunk.Candidates) == 0 {
		return
	}
	cand := chunk.Candidates[0]

	for _, part := range cand.Content.Parts {
		switch {
		case part.Thought:
			// reasoning traces stay internal
		case part.FunctionCall != nil:
			idx := t.nextIndex
			t.nextIndex++
			args := part.FunctionCall.Args
			if len(args) == 0 {
				args = json.RawMessage("{}")
			}
			t.push(wire.NewContentBlockStart(idx, wire.ToolUseBlock(newToolUseID(), part.FunctionCall.Name, json.RawMessage("{}"))))
			t.push(wire.NewInputJSONDelta(idx, string(args)))
			t.sawToolUse = true
		case part.Text != "":
			if t.textIndex < 0 {
				t.textIndex = t.nextIndex
				t.nextIndex++
				t.push(wire.NewContentBlockStart(t.textIndex, wire.TextBlock("")))
			}
			t.push(wire.NewTextDelta(t.textIndex, part.Text))
		}
	}

	if cand.FinishReason != "" {
		t.stopReason = mapFinishReason(cand.FinishReason)
		if t.sawToolUse {
			t.stopReason = wire.StopToolUse
		}
		t.closeBlocks()
	}
}

// ensureStarted emits message_start on the first upstream chunk.
func (t *transcoder) ensureStarted(model string) {
	if t.started {
		return
	}
	t.started = true
	if model == "" {
		model = t.model
	}
	t.push(wire.NewMessageStart("msg_"+uuid.New().String(), model, wire.Usage{}))
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
	t.ensureStarted("")
	t.closeBlocks()

	reason := t.stopReason
	if reason == "" {
		reason = wire.StopEndTurn
	}
	usage := wire.DeltaUsage{}
	if t.usage != nil {
		usage.InputTokens = t.usage.PromptTokenCount
		usage.OutputTokens = t.usage.CandidatesTokenCount
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
