package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Known content block type discriminators.
const (
	BlockTypeText             = "text"
	BlockTypeImage            = "image"
	BlockTypeToolUse          = "tool_use"
	BlockTypeToolResult       = "tool_result"
	BlockTypeThinking         = "thinking"
	BlockTypeRedactedThinking = "redacted_thinking"
)

// Message is a single conversation turn.
type Message struct {
	// Role identifies the sender ("user" or "assistant").
	Role string `json:"role"`

	// Content is either a bare string or a sequence of content blocks.
	Content MessageContent `json:"content"`
}

// MessageContent holds message content, which arrives on the wire as either
// a bare string or an array of content blocks. The received shape is
// remembered so serialization reproduces it.
type MessageContent struct {
	// Text holds the content when the wire form was a single string.
	Text string

	// Blocks holds the content when the wire form was an array.
	Blocks []ContentBlock

	// IsBlocks records which wire form was received.
	IsBlocks bool
}

// TextContent builds string-form content.
func TextContent(s string) MessageContent {
	return MessageContent{Text: s}
}

// BlockContent builds block-form content.
func BlockContent(blocks ...ContentBlock) MessageContent {
	return MessageContent{Blocks: blocks, IsBlocks: true}
}

// UnmarshalJSON accepts both the string and the array wire forms.
func (c *MessageContent) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*c = MessageContent{}
		return nil
	}

	switch trimmed[0] {
	case '"':
		c.IsBlocks = false
		c.Blocks = nil
		return json.Unmarshal(trimmed, &c.Text)
	case '[':
		c.IsBlocks = true
		c.Text = ""
		return json.Unmarshal(trimmed, &c.Blocks)
	default:
		return fmt.Errorf("content must be a string or an array of blocks")
	}
}

// MarshalJSON reproduces the wire form the content was received in.
func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.IsBlocks {
		if c.Blocks == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(c.Blocks)
	}
	return json.Marshal(c.Text)
}

// AsBlocks returns the content as a block sequence, wrapping string-form
// content in a single text block. The returned slice aliases c.Blocks when
// the content is already block-form.
func (c MessageContent) AsBlocks() []ContentBlock {
	if c.IsBlocks {
		return c.Blocks
	}
	if c.Text == "" {
		return nil
	}
	return []ContentBlock{{Type: BlockTypeText, Text: c.Text}}
}

// PlainText concatenates all text content, ignoring non-text blocks.
func (c MessageContent) PlainText() string {
	if !c.IsBlocks {
		return c.Text
	}
	var sb strings.Builder
	for _, b := range c.Blocks {
		if b.Type == BlockTypeText {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

// HasBlockType reports whether any block has the given type. String-form
// content counts as a single text block.
func (c MessageContent) HasBlockType(blockType string) bool {
	if !c.IsBlocks {
		return blockType == BlockTypeText && c.Text != ""
	}
	for _, b := range c.Blocks {
		if b.Type == blockType {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (c MessageContent) Clone() MessageContent {
	out := MessageContent{Text: c.Text, IsBlocks: c.IsBlocks}
	if c.Blocks != nil {
		out.Blocks = make([]ContentBlock, len(c.Blocks))
		for i, b := range c.Blocks {
			out.Blocks[i] = b.Clone()
		}
	}
	return out
}

// ImageSource describes the source of an image block.
type ImageSource struct {
	// Type is "base64" or "url".
	Type string `json:"type"`

	// MediaType is the MIME type for base64 sources (e.g. "image/png").
	MediaType string `json:"media_type,omitempty"`

	// Data carries the base64 payload for base64 sources.
	Data string `json:"data,omitempty"`

	// URL carries the location for url sources.
	URL string `json:"url,omitempty"`
}

// ContentBlock is the open tagged union of Anthropic content block variants,
// discriminated by Type. Fields are populated according to the variant;
// unrecognized variants are retained verbatim in raw and reproduced
// byte-identically on serialization.
type ContentBlock struct {
	Type string

	// Text variant.
	Text string

	// CacheControl is the opaque prompt-caching marker. It is preserved
	// verbatim and omitted from the wire when absent.
	CacheControl json.RawMessage

	// Image variant.
	Source *ImageSource

	// ToolUse variant.
	ID    string
	Name  string
	Input json.RawMessage

	// ToolResult variant.
	ToolUseID string
	Content   *MessageContent
	IsError   bool

	// Thinking variant. Signature is the provider-issued attestation over
	// the reasoning content; it must survive round-trips unmodified.
	Thinking  string
	Signature string

	// RedactedThinking variant.
	Data string

	raw json.RawMessage
}

// TextBlock builds a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockTypeText, Text: text}
}

// ToolUseBlock builds a tool_use content block.
func ToolUseBlock(id, name string, input json.RawMessage) ContentBlock {
	return ContentBlock{Type: BlockTypeToolUse, ID: id, Name: name, Input: input}
}

// ThinkingBlock builds a thinking content block.
func ThinkingBlock(thinking, signature string) ContentBlock {
	return ContentBlock{Type: BlockTypeThinking, Thinking: thinking, Signature: signature}
}

// IsKnownType reports whether the block is a modeled variant rather than a
// raw passthrough.
func (b ContentBlock) IsKnownType() bool {
	return b.raw == nil
}

// Raw returns the verbatim JSON for unrecognized variants, or nil for
// modeled ones.
func (b ContentBlock) Raw() json.RawMessage {
	return b.raw
}

// Clone returns a deep copy.
func (b ContentBlock) Clone() ContentBlock {
	out := b
	out.CacheControl = cloneRaw(b.CacheControl)
	out.Input = cloneRaw(b.Input)
	out.raw = cloneRaw(b.raw)
	if b.Source != nil {
		src := *b.Source
		out.Source = &src
	}
	if b.Content != nil {
		inner := b.Content.Clone()
		out.Content = &inner
	}
	return out
}

func cloneRaw(r json.RawMessage) json.RawMessage {
	if r == nil {
		return nil
	}
	out := make(json.RawMessage, len(r))
	copy(out, r)
	return out
}

type textBlockJSON struct {
	Type         string          `json:"type"`
	Text         string          `json:"text"`
	CacheControl json.RawMessage `json:"cache_control,omitempty"`
}

type imageBlockJSON struct {
	Type         string          `json:"type"`
	Source       *ImageSource    `json:"source"`
	CacheControl json.RawMessage `json:"cache_control,omitempty"`
}

type toolUseBlockJSON struct {
	Type         string          `json:"type"`
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Input        json.RawMessage `json:"input"`
	CacheControl json.RawMessage `json:"cache_control,omitempty"`
}

type toolResultBlockJSON struct {
	Type         string          `json:"type"`
	ToolUseID    string          `json:"tool_use_id"`
	Content      *MessageContent `json:"content,omitempty"`
	IsError      bool            `json:"is_error,omitempty"`
	CacheControl json.RawMessage `json:"cache_control,omitempty"`
}

type thinkingBlockJSON struct {
	Type      string `json:"type"`
	Thinking  string `json:"thinking"`
	Signature string `json:"signature,omitempty"`
}

type redactedThinkingBlockJSON struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// UnmarshalJSON decodes a block by its type discriminator. Unrecognized
// types keep the original bytes for passthrough.
func (b *ContentBlock) UnmarshalJSON(data []byte) error {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("content block: %w", err)
	}

	*b = ContentBlock{Type: probe.Type}

	switch probe.Type {
	case BlockTypeText:
		var v textBlockJSON
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		b.Text = v.Text
		b.CacheControl = v.CacheControl

	case BlockTypeImage:
		var v imageBlockJSON
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		b.Source = v.Source
		b.CacheControl = v.CacheControl

	case BlockTypeToolUse:
		var v toolUseBlockJSON
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		b.ID = v.ID
		b.Name = v.Name
		b.Input = v.Input
		b.CacheControl = v.CacheControl

	case BlockTypeToolResult:
		var v toolResultBlockJSON
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		b.ToolUseID = v.ToolUseID
		b.Content = v.Content
		b.IsError = v.IsError
		b.CacheControl = v.CacheControl

	case BlockTypeThinking:
		var v thinkingBlockJSON
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		b.Thinking = v.Thinking
		b.Signature = v.Signature

	case BlockTypeRedactedThinking:
		var v redactedThinkingBlockJSON
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		b.Data = v.Data

	default:
		b.raw = cloneRaw(data)
	}

	return nil
}

// MarshalJSON emits the variant-appropriate shape. Unrecognized variants are
// reproduced verbatim.
func (b ContentBlock) MarshalJSON() ([]byte, error) {
	if b.raw != nil {
		return b.raw, nil
	}

	switch b.Type {
	case BlockTypeText:
		return json.Marshal(textBlockJSON{Type: b.Type, Text: b.Text, CacheControl: b.CacheControl})

	case BlockTypeImage:
		return json.Marshal(imageBlockJSON{Type: b.Type, Source: b.Source, CacheControl: b.CacheControl})

	case BlockTypeToolUse:
		input := b.Input
		if len(input) == 0 {
			input = json.RawMessage("{}")
		}
		return json.Marshal(toolUseBlockJSON{Type: b.Type, ID: b.ID, Name: b.Name, Input: input, CacheControl: b.CacheControl})

	case BlockTypeToolResult:
		return json.Marshal(toolResultBlockJSON{Type: b.Type, ToolUseID: b.ToolUseID, Content: b.Content, IsError: b.IsError, CacheControl: b.CacheControl})

	case BlockTypeThinking:
		return json.Marshal(thinkingBlockJSON{Type: b.Type, Thinking: b.Thinking, Signature: b.Signature})

	case BlockTypeRedactedThinking:
		return json.Marshal(redactedThinkingBlockJSON{Type: b.Type, Data: b.Data})

	default:
		return nil, fmt.Errorf("content block has unknown type %q and no raw form", b.Type)
	}
}
