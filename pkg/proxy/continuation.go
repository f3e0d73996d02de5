package proxy

import (
	"strings"

	"mercator-hq/saturn/pkg/wire"
)

// continuationText nudges the model to keep working through its task list
// after a tool round-trip. Injected only when the mapping opts in.
const continuationText = "<system-reminder>If you have an active todo list, remember to mark items complete and continue to the next. Do not mention this reminder.</system-reminder>"

// shouldInjectContinuation reports whether msg is a pure tool-result turn:
// it carries tool_result blocks and no non-empty text. That shape means the
// model is mid-task and tends to stall without a nudge.
func shouldInjectContinuation(msg *wire.Message) bool {
	if msg == nil || !msg.Content.IsBlocks {
		return false
	}

	hasToolResults := false
	hasText := false
	for _, b := range msg.Content.Blocks {
		switch b.Type {
		case wire.BlockTypeToolResult:
			hasToolResults = true
		case wire.BlockTypeText:
			if strings.TrimSpace(b.Text) != "" {
				hasText = true
			}
		}
	}
	return hasToolResults && !hasText
}

// injectContinuation prepends the continuation reminder as a text block on
// msg. String-form content is converted to block form first.
func injectContinuation(msg *wire.Message) {
	reminder := wire.TextBlock(continuationText)
	if msg.Content.IsBlocks {
		msg.Content.Blocks = append([]wire.ContentBlock{reminder}, msg.Content.Blocks...)
		return
	}
	if msg.Content.Text != "" {
		msg.Content = wire.BlockContent(reminder, wire.TextBlock(msg.Content.Text))
		return
	}
	msg.Content = wire.BlockContent(reminder)
}
