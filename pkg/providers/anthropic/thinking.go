package anthropic

import (
	"log/slog"

	"mercator-hq/saturn/pkg/wire"
)

// anthropicSignatureLength is the conservative cutoff above which a
// thinking signature is taken to be Anthropic-issued.
const anthropicSignatureLength = 150

// stripIncompatibleThinking removes signed thinking blocks the target
// cannot verify. Providers sign reasoning with their own keys, so a
// signature from one upstream fails validation at another: Anthropic
// targets keep only Anthropic-length signatures, every other target drops
// all signed blocks. Unsigned thinking always survives. Messages emptied
// by stripping are dropped.
func stripIncompatibleThinking(req *wire.Request, anthropicTarget bool) {
	stripped := 0
	for i := range req.Messages {
		content := &req.Messages[i].Content
		if !content.IsBlocks {
			continue
		}

		kept := content.Blocks[:0]
		for _, b := range content.Blocks {
			if keepThinkingBlock(b, anthropicTarget) {
				kept = append(kept, b)
			} else {
				stripped++
			}
		}
		content.Blocks = kept
	}
	if stripped == 0 {
		return
	}

	messages := req.Messages[:0]
	dropped := 0
	for _, m := range req.Messages {
		if m.Content.IsBlocks && len(m.Content.Blocks) == 0 {
			dropped++
			continue
		}
		messages = append(messages, m)
	}
	req.Messages = messages

	slog.Debug("stripped incompatible thinking blocks",
		"stripped", stripped,
		"dropped_messages", dropped,
		"anthropic_target", anthropicTarget,
	)
}

func keepThinkingBlock(b wire.ContentBlock, anthropicTarget bool) bool {
	if b.Type != wire.BlockTypeThinking {
		return true
	}
	if b.Signature == "" {
		return true
	}
	if anthropicTarget {
		return len(b.Signature) > anthropicSignatureLength
	}
	return false
}
