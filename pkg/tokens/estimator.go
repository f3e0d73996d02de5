// Package tokens estimates input token counts for requests served by
// adapters without a native count endpoint.
//
// Counts come from a BPE tokenizer keyed by an approximate model family,
// defaulting to a GPT-style encoding. When the encoding cannot be loaded
// the estimator degrades to a characters-per-token heuristic. Estimates
// are advisory; exact counts come only from providers that expose a
// count endpoint of their own.
package tokens

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"mercator-hq/saturn/pkg/wire"
)

const (
	// messageOverhead covers role and message framing tokens.
	messageOverhead = 4

	// toolOverhead covers the framing around one tool declaration.
	toolOverhead = 10

	// conversationOverhead covers conversation-level framing.
	conversationOverhead = 3

	// imageTokens is the flat cost attributed to one image block.
	imageTokens = 1000

	// fallbackCharsPerToken is the heuristic divisor used when no BPE
	// encoding is available.
	fallbackCharsPerToken = 4

	encodingCL100K = "cl100k_base"
	encodingO200K  = "o200k_base"
)

// EncodingName maps a model name to a tiktoken encoding. Newer OpenAI
// families use o200k_base; everything else gets the GPT-4-era default.
func EncodingName(model string) string {
	m := strings.ToLower(model)
	switch {
	case strings.Contains(m, "gpt-4o"),
		strings.Contains(m, "gpt-4.1"),
		strings.Contains(m, "gpt-5"),
		strings.HasPrefix(m, "o1"),
		strings.HasPrefix(m, "o3"),
		strings.HasPrefix(m, "o4"):
		return encodingO200K
	default:
		return encodingCL100K
	}
}

// Estimator computes advisory token estimates. Encodings are loaded once
// and cached; a load failure is also cached so a missing BPE file does not
// get retried on every request.
type Estimator struct {
	mu        sync.Mutex
	encodings map[string]*tiktoken.Tiktoken
}

// NewEstimator creates an estimator with an empty encoding cache.
func NewEstimator() *Estimator {
	return &Estimator{
		encodings: make(map[string]*tiktoken.Tiktoken),
	}
}

// encoding returns the cached tokenizer for a model's family, or nil when
// the encoding could not be loaded.
func (e *Estimator) encoding(model string) *tiktoken.Tiktoken {
	name := EncodingName(model)

	e.mu.Lock()
	defer e.mu.Unlock()

	if enc, ok := e.encodings[name]; ok {
		return enc
	}

	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		slog.Warn("tokenizer encoding unavailable, using character estimate",
			"encoding", name,
			"error", err,
		)
		enc = nil
	}
	e.encodings[name] = enc
	return enc
}

// CountText returns the token count for a single text string.
func (e *Estimator) CountText(text, model string) int {
	if text == "" {
		return 0
	}
	if enc := e.encoding(model); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	n := len(text) / fallbackCharsPerToken
	if n < 1 {
		n = 1
	}
	return n
}

// CountRequest estimates prompt tokens for a count request: system prompt,
// message content, and tool declarations plus flat framing overheads.
func (e *Estimator) CountRequest(req *wire.CountTokensRequest) int {
	if req == nil {
		return 0
	}

	total := 0
	if req.System != nil {
		total += e.CountText(req.System.FullText(), req.Model)
	}
	for i := range req.Messages {
		total += messageOverhead
		total += e.countContent(req.Messages[i].Content, req.Model)
	}
	for i := range req.Tools {
		total += e.countTool(&req.Tools[i], req.Model)
	}
	if len(req.Messages) > 0 {
		total += conversationOverhead
	}
	return total
}

// countContent walks message content, pricing text by the tokenizer and
// images at a flat rate. Tool results recurse into their nested content.
func (e *Estimator) countContent(content wire.MessageContent, model string) int {
	if !content.IsBlocks {
		return e.CountText(content.Text, model)
	}

	total := 0
	for i := range content.Blocks {
		b := &content.Blocks[i]
		switch b.Type {
		case wire.BlockTypeText:
			total += e.CountText(b.Text, model)
		case wire.BlockTypeImage:
			total += imageTokens
		case wire.BlockTypeToolUse:
			total += e.CountText(b.Name, model)
			total += e.CountText(string(b.Input), model)
		case wire.BlockTypeToolResult:
			if b.Content != nil {
				total += e.countContent(*b.Content, model)
			}
		case wire.BlockTypeThinking:
			total += e.CountText(b.Thinking, model)
		}
	}
	return total
}

func (e *Estimator) countTool(t *wire.Tool, model string) int {
	total := toolOverhead
	total += e.CountText(t.Name, model)
	total += e.CountText(t.Description, model)
	if len(t.InputSchema) > 0 {
		total += e.CountText(string(t.InputSchema), model)
	}
	return total
}
