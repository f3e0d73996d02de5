package openai

import (
	"encoding/json"
	"fmt"
	"strings"

	"mercator-hq/saturn/pkg/wire"
)

// OpenAI API request/response types

// OpenAIRequest is a chat completions request body.
type OpenAIRequest struct {
	Model         string               `json:"model"`
	Messages      []OpenAIMessage      `json:"messages"`
	MaxTokens     int                  `json:"max_tokens,omitempty"`
	Temperature   *float64             `json:"temperature,omitempty"`
	TopP          *float64             `json:"top_p,omitempty"`
	Stop          []string             `json:"stop,omitempty"`
	Stream        bool                 `json:"stream,omitempty"`
	StreamOptions *OpenAIStreamOptions `json:"stream_options,omitempty"`
	Tools         []OpenAITool         `json:"tools,omitempty"`
	ToolChoice    any                  `json:"tool_choice,omitempty"`
}

// OpenAIStreamOptions selects optional streaming behavior.
type OpenAIStreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// OpenAIMessage is one chat message. Content is a string for plain text, a
// []OpenAIContentPart when images are involved, or nil for assistant
// messages that carry only tool calls.
type OpenAIMessage struct {
	Role       string           `json:"role"`
	Content    any              `json:"content,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	ToolCalls  []OpenAIToolCall `json:"tool_calls,omitempty"`
}

// OpenAIContentPart is one element of a mixed-content message.
type OpenAIContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *OpenAIImageURL `json:"image_url,omitempty"`
}

// OpenAIImageURL holds an image location: an https URL or a data: URI.
type OpenAIImageURL struct {
	URL string `json:"url"`
}

// OpenAIToolCall is a completed tool invocation on an assistant message.
type OpenAIToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function OpenAIFunctionCall `json:"function"`
}

// OpenAIFunctionCall names a function and carries its arguments as a JSON
// string.
type OpenAIFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// OpenAITool is a tool definition in chat completions form.
type OpenAITool struct {
	Type     string                   `json:"type"`
	Function OpenAIFunctionDefinition `json:"function"`
}

// OpenAIFunctionDefinition describes one callable function.
type OpenAIFunctionDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// OpenAIToolChoice forces a specific function call.
type OpenAIToolChoice struct {
	Type     string             `json:"type"`
	Function OpenAIFunctionName `json:"function"`
}

// OpenAIFunctionName names the forced function.
type OpenAIFunctionName struct {
	Name string `json:"name"`
}

// OpenAIResponse is a non-streaming chat completions response.
type OpenAIResponse struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []OpenAIChoice `json:"choices"`
	Usage   OpenAIUsage    `json:"usage"`
}

// OpenAIChoice is one completion choice.
type OpenAIChoice struct {
	Index        int                   `json:"index"`
	Message      OpenAIResponseMessage `json:"message"`
	FinishReason string                `json:"finish_reason"`
}

// OpenAIResponseMessage is the assistant message of a choice. Content is
// kept raw because upstreams return a string, a parts array, or null.
type OpenAIResponseMessage struct {
	Role      string           `json:"role"`
	Content   json.RawMessage  `json:"content"`
	Reasoning string           `json:"reasoning,omitempty"`
	ToolCalls []OpenAIToolCall `json:"tool_calls,omitempty"`
}

// OpenAIUsage is the token accounting block.
type OpenAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// OpenAI streaming chunk types

// OpenAIStreamResponse is one SSE chunk of a streaming completion. The
// final chunk carries Usage with an empty Choices slice when
// stream_options.include_usage is set.
type OpenAIStreamResponse struct {
	ID      string               `json:"id"`
	Object  string               `json:"object"`
	Created int64                `json:"created"`
	Model   string               `json:"model"`
	Choices []OpenAIStreamChoice `json:"choices"`
	Usage   *OpenAIUsage         `json:"usage,omitempty"`
}

// OpenAIStreamChoice is one choice of a stream chunk.
type OpenAIStreamChoice struct {
	Index        int               `json:"index"`
	Delta        OpenAIStreamDelta `json:"delta"`
	FinishReason string            `json:"finish_reason,omitempty"`
}

// OpenAIStreamDelta is the incremental payload of a stream chunk.
type OpenAIStreamDelta struct {
	Role      string                 `json:"role,omitempty"`
	Content   string                 `json:"content,omitempty"`
	ToolCalls []OpenAIStreamToolCall `json:"tool_calls,omitempty"`
}

// OpenAIStreamToolCall is a tool call fragment. Index identifies the call
// across chunks; ID and the function name arrive on the first fragment
// only.
type OpenAIStreamToolCall struct {
	Index    int                `json:"index"`
	ID       string             `json:"id,omitempty"`
	Type     string             `json:"type,omitempty"`
	Function OpenAIFunctionCall `json:"function"`
}

// Transformation functions

// transformRequest flattens an Anthropic request into chat completions
// form.
func transformRequest(req *wire.Request) *OpenAIRequest {
	out := &OpenAIRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.StopSequences,
		Stream:      req.Stream,
		ToolChoice:  transformToolChoice(req.ToolChoice),
	}

	if req.System != nil {
		if text := systemText(req.System); text != "" {
			out.Messages = append(out.Messages, OpenAIMessage{Role: "system", Content: text})
		}
	}
	for _, msg := range req.Messages {
		out.Messages = append(out.Messages, transformMessage(msg)...)
	}

	if len(req.Tools) > 0 {
		out.Tools = make([]OpenAITool, 0, len(req.Tools))
		for _, t := range req.Tools {
			out.Tools = append(out.Tools, OpenAITool{
				Type: "function",
				Function: OpenAIFunctionDefinition{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.InputSchema,
				},
			})
		}
	}
	return out
}

// systemText flattens a system prompt, joining block-form prompts with
// newlines the way the upstream expects a single system string.
func systemText(s *wire.SystemPrompt) string {
	if !s.IsBlocks {
		return s.Text
	}
	parts := make([]string, 0, len(s.Blocks))
	for _, b := range s.Blocks {
		parts = append(parts, b.Text)
	}
	return strings.Join(parts, "\n")
}

// transformMessage converts one Anthropic message into its chat
// completions equivalents. tool_result blocks cannot live inside a user
// message upstream, so each becomes a standalone role:tool message emitted
// after the main one. Thinking blocks are dropped. The main message is
// omitted entirely when nothing of it survives.
func transformMessage(msg wire.Message) []OpenAIMessage {
	if !msg.Content.IsBlocks {
		return []OpenAIMessage{{Role: msg.Role, Content: msg.Content.Text}}
	}

	var (
		parts     []OpenAIContentPart
		toolCalls []OpenAIToolCall
		after     []OpenAIMessage
	)
	for _, b := range msg.Content.Blocks {
		switch b.Type {
		case wire.BlockTypeText:
			parts = append(parts, OpenAIContentPart{Type: "text", Text: b.Text})
		case wire.BlockTypeImage:
			if url := imageURL(b.Source); url != "" {
				parts = append(parts, OpenAIContentPart{Type: "image_url", ImageURL: &OpenAIImageURL{URL: url}})
			}
		case wire.BlockTypeToolUse:
			args := "{}"
			if len(b.Input) > 0 {
				args = string(b.Input)
			}
			toolCalls = append(toolCalls, OpenAIToolCall{
				ID:       b.ID,
				Type:     "function",
				Function: OpenAIFunctionCall{Name: b.Name, Arguments: args},
			})
		case wire.BlockTypeToolResult:
			var content string
			if b.Content != nil {
				content = b.Content.PlainText()
			}
			after = append(after, OpenAIMessage{Role: "tool", ToolCallID: b.ToolUseID, Content: content})
		}
	}

	msgs := make([]OpenAIMessage, 0, len(after)+1)
	if len(parts) > 0 || len(toolCalls) > 0 {
		m := OpenAIMessage{Role: msg.Role, ToolCalls: toolCalls}
		switch {
		case len(parts) == 1 && parts[0].Type == "text":
			m.Content = parts[0].Text
		case len(parts) > 0:
			m.Content = parts
		}
		msgs = append(msgs, m)
	}
	return append(msgs, after...)
}

// imageURL renders an image source as either its URL or a data: URI.
// Sources with neither form are unrepresentable and yield "".
func imageURL(src *wire.ImageSource) string {
	if src == nil {
		return ""
	}
	switch src.Type {
	case "base64":
		mediaType := src.MediaType
		if mediaType == "" {
			mediaType = "image/png"
		}
		return "data:" + mediaType + ";base64," + src.Data
	case "url":
		return src.URL
	}
	return ""
}

// transformToolChoice maps the Anthropic tool_choice vocabulary onto the
// chat completions one.
func transformToolChoice(tc *wire.ToolChoice) any {
	if tc == nil {
		return nil
	}
	switch tc.Type {
	case "auto":
		return "auto"
	case "any":
		return "required"
	case "none":
		return "none"
	case "tool":
		return OpenAIToolChoice{Type: "function", Function: OpenAIFunctionName{Name: tc.Name}}
	}
	return nil
}

// transformResponse unflattens a chat completions response into Anthropic
// form.
func transformResponse(resp *OpenAIResponse) (*wire.Response, error) {
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("response has no choices")
	}
	choice := resp.Choices[0]

	text := responseText(choice.Message.Content)
	if text == "" {
		text = choice.Message.Reasoning
	}

	content := make([]wire.ContentBlock, 0, 1+len(choice.Message.ToolCalls))
	if text != "" || len(choice.Message.ToolCalls) == 0 {
		content = append(content, wire.TextBlock(text))
	}
	for _, tc := range choice.Message.ToolCalls {
		input, err := toolCallInput(tc.Function.Arguments)
		if err != nil {
			return nil, fmt.Errorf("tool call %q: %w", tc.ID, err)
		}
		content = append(content, wire.ToolUseBlock(tc.ID, tc.Function.Name, input))
	}

	stopReason := mapFinishReason(choice.FinishReason)
	return &wire.Response{
		ID:         resp.ID,
		Type:       "message",
		Role:       wire.RoleAssistant,
		Content:    content,
		Model:      resp.Model,
		StopReason: &stopReason,
		Usage: wire.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

// responseText extracts the text of a raw content value: a plain string,
// the text parts of a parts array joined with newlines, or "" for null and
// anything unrecognized.
func responseText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var parts []OpenAIContentPart
	if err := json.Unmarshal(raw, &parts); err == nil {
		texts := make([]string, 0, len(parts))
		for _, p := range parts {
			if p.Type == "text" {
				texts = append(texts, p.Text)
			}
		}
		return strings.Join(texts, "\n")
	}
	return ""
}

// toolCallInput converts a JSON-string arguments field into the tool_use
// input document. Empty arguments become an empty object.
func toolCallInput(arguments string) (json.RawMessage, error) {
	if strings.TrimSpace(arguments) == "" {
		return json.RawMessage("{}"), nil
	}
	if !json.Valid([]byte(arguments)) {
		return nil, fmt.Errorf("arguments are not valid JSON")
	}
	return json.RawMessage(arguments), nil
}

// mapFinishReason maps a chat completions finish_reason onto the Anthropic
// stop_reason vocabulary. Unknown reasons collapse to end_turn so clients
// never see values outside the vocabulary.
func mapFinishReason(reason string) string {
	switch reason {
	case "stop":
		return wire.StopEndTurn
	case "length":
		return wire.StopMaxTokens
	case "tool_calls", "function_call":
		return wire.StopToolUse
	case "content_filter":
		return wire.StopEndTurn
	}
	return wire.StopEndTurn
}
