package gemini

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"mercator-hq/saturn/pkg/wire"
)

// Gemini API request/response types

// GeminiRequest is a generateContent request body. The model is addressed
// in the URL path, not the body.
type GeminiRequest struct {
	SystemInstruction *GeminiContent          `json:"systemInstruction,omitempty"`
	Contents          []GeminiContent         `json:"contents"`
	Tools             []GeminiTool            `json:"tools,omitempty"`
	ToolConfig        *GeminiToolConfig       `json:"toolConfig,omitempty"`
	GenerationConfig  *GeminiGenerationConfig `json:"generationConfig,omitempty"`
}

// GeminiContent is one conversation turn.
type GeminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []GeminiPart `json:"parts"`
}

// GeminiPart is the union of part variants; exactly one data field is
// set. Thought marks reasoning-trace parts on thinking models.
type GeminiPart struct {
	Text             string                  `json:"text,omitempty"`
	InlineData       *GeminiBlob             `json:"inline_data,omitempty"`
	FunctionCall     *GeminiFunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *GeminiFunctionResponse `json:"functionResponse,omitempty"`
	Thought          bool                    `json:"thought,omitempty"`
}

// GeminiBlob carries inline binary data, base64 encoded.
type GeminiBlob struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

// GeminiFunctionCall is a model-issued function invocation.
type GeminiFunctionCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// GeminiFunctionResponse returns a function result to the model. Response
// must be a JSON object.
type GeminiFunctionResponse struct {
	Name     string          `json:"name"`
	Response json.RawMessage `json:"response"`
}

// GeminiTool groups function declarations.
type GeminiTool struct {
	FunctionDeclarations []GeminiFunctionDeclaration `json:"functionDeclarations,omitempty"`
}

// GeminiFunctionDeclaration describes one callable function.
type GeminiFunctionDeclaration struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// GeminiToolConfig constrains function calling.
type GeminiToolConfig struct {
	FunctionCallingConfig GeminiFunctionCallingConfig `json:"functionCallingConfig"`
}

// GeminiFunctionCallingConfig selects the calling mode: AUTO, ANY, or
// NONE, optionally restricted to named functions.
type GeminiFunctionCallingConfig struct {
	Mode                 string   `json:"mode"`
	AllowedFunctionNames []string `json:"allowedFunctionNames,omitempty"`
}

// GeminiGenerationConfig carries sampling parameters.
type GeminiGenerationConfig struct {
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	TopK            *int     `json:"topK,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

// GeminiResponse is a GenerateContentResponse, whole for non-streaming
// calls and per chunk for streaming ones.
type GeminiResponse struct {
	Candidates    []GeminiCandidate    `json:"candidates"`
	UsageMetadata *GeminiUsageMetadata `json:"usageMetadata,omitempty"`
	ModelVersion  string               `json:"modelVersion,omitempty"`
}

// GeminiCandidate is one generated candidate.
type GeminiCandidate struct {
	Content      GeminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
	Index        int           `json:"index"`
}

// GeminiUsageMetadata is the token accounting block.
type GeminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// Transformation functions

// transformRequest maps an Anthropic request onto the generateContent
// surface.
func transformRequest(req *wire.Request) *GeminiRequest {
	out := &GeminiRequest{
		Contents: make([]GeminiContent, 0, len(req.Messages)),
		GenerationConfig: &GeminiGenerationConfig{
			MaxOutputTokens: req.MaxTokens,
			Temperature:     req.Temperature,
			TopP:            req.TopP,
			TopK:            req.TopK,
			StopSequences:   req.StopSequences,
		},
	}

	if req.System != nil {
		if text := systemText(req.System); text != "" {
			out.SystemInstruction = &GeminiContent{Parts: []GeminiPart{{Text: text}}}
		}
	}

	names := toolUseNames(req.Messages)
	for _, msg := range req.Messages {
		role := "user"
		if msg.Role == wire.RoleAssistant {
			role = "model"
		}
		parts := transformParts(msg.Content, names)
		if len(parts) == 0 {
			// Gemini rejects empty parts arrays.
			continue
		}
		out.Contents = append(out.Contents, GeminiContent{Role: role, Parts: parts})
	}

	if len(req.Tools) > 0 {
		decls := make([]GeminiFunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, GeminiFunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			})
		}
		out.Tools = []GeminiTool{{FunctionDeclarations: decls}}
	}
	out.ToolConfig = transformToolChoice(req.ToolChoice)

	return out
}

// systemText flattens a system prompt, joining block-form prompts with
// newlines.
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

// toolUseNames maps tool_use ids to function names across the whole
// conversation. Gemini keys function responses by name where Anthropic
// keys tool results by id.
func toolUseNames(msgs []wire.Message) map[string]string {
	names := make(map[string]string)
	for _, msg := range msgs {
		if !msg.Content.IsBlocks {
			continue
		}
		for _, b := range msg.Content.Blocks {
			if b.Type == wire.BlockTypeToolUse && b.ID != "" {
				names[b.ID] = b.Name
			}
		}
	}
	return names
}

// transformParts converts one message's content into Gemini parts.
// Thinking blocks, URL images, and unknown block types drop out.
func transformParts(content wire.MessageContent, names map[string]string) []GeminiPart {
	if !content.IsBlocks {
		if content.Text == "" {
			return nil
		}
		return []GeminiPart{{Text: content.Text}}
	}

	var parts []GeminiPart
	for _, b := range content.Blocks {
		switch b.Type {
		case wire.BlockTypeText:
			if b.Text != "" {
				parts = append(parts, GeminiPart{Text: b.Text})
			}
		case wire.BlockTypeImage:
			if b.Source != nil && b.Source.Type == "base64" && b.Source.Data != "" {
				mime := b.Source.MediaType
				if mime == "" {
					mime = "image/png"
				}
				parts = append(parts, GeminiPart{InlineData: &GeminiBlob{MIMEType: mime, Data: b.Source.Data}})
			}
		case wire.BlockTypeToolUse:
			args := b.Input
			if len(args) == 0 {
				args = json.RawMessage("{}")
			}
			parts = append(parts, GeminiPart{FunctionCall: &GeminiFunctionCall{Name: b.Name, Args: args}})
		case wire.BlockTypeToolResult:
			name := names[b.ToolUseID]
			if name == "" {
				name = b.ToolUseID
			}
			parts = append(parts, GeminiPart{FunctionResponse: &GeminiFunctionResponse{
				Name:     name,
				Response: functionResponseBody(b.Content),
			}})
		}
	}
	return parts
}

// functionResponseBody renders tool output as the JSON object Gemini
// requires. Results that already are objects pass through; everything
// else is wrapped under a result key.
func functionResponseBody(content *wire.MessageContent) json.RawMessage {
	var text string
	if content != nil {
		text = content.PlainText()
	}
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") && json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed)
	}
	wrapped, _ := json.Marshal(map[string]string{"result": text})
	return wrapped
}

// transformToolChoice maps the Anthropic tool_choice vocabulary onto
// Gemini's function calling modes.
func transformToolChoice(tc *wire.ToolChoice) *GeminiToolConfig {
	if tc == nil {
		return nil
	}
	cfg := GeminiFunctionCallingConfig{}
	switch tc.Type {
	case "auto":
		cfg.Mode = "AUTO"
	case "any":
		cfg.Mode = "ANY"
	case "none":
		cfg.Mode = "NONE"
	case "tool":
		cfg.Mode = "ANY"
		cfg.AllowedFunctionNames = []string{tc.Name}
	default:
		return nil
	}
	return &GeminiToolConfig{FunctionCallingConfig: cfg}
}

// transformResponse unflattens a generateContent response into Anthropic
// form. model is the requested upstream model, used when the response
// does not name one.
func transformResponse(resp *GeminiResponse, model string) (*wire.Response, error) {
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("response has no candidates")
	}
	cand := resp.Candidates[0]

	content := make([]wire.ContentBlock, 0, len(cand.Content.Parts))
	sawToolUse := false
	for _, part := range cand.Content.Parts {
		switch {
		case part.Thought:
			// reasoning traces stay internal
		case part.FunctionCall != nil:
			args := part.FunctionCall.Args
			if len(args) == 0 {
				args = json.RawMessage("{}")
			}
			content = append(content, wire.ToolUseBlock(newToolUseID(), part.FunctionCall.Name, args))
			sawToolUse = true
		case part.Text != "":
			content = append(content, wire.TextBlock(part.Text))
		}
	}
	if len(content) == 0 {
		content = append(content, wire.TextBlock(""))
	}

	// Gemini reports STOP for function calls too; Anthropic clients
	// expect tool_use.
	stopReason := mapFinishReason(cand.FinishReason)
	if sawToolUse {
		stopReason = wire.StopToolUse
	}

	out := &wire.Response{
		ID:         "msg_" + uuid.New().String(),
		Type:       "message",
		Role:       wire.RoleAssistant,
		Content:    content,
		Model:      model,
		StopReason: &stopReason,
	}
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = wire.Usage{InputTokens: u.PromptTokenCount, OutputTokens: u.CandidatesTokenCount}
	}
	return out, nil
}

// newToolUseID mints an id for a functionCall part; Gemini issues none.
func newToolUseID() string {
	return "toolu_" + uuid.New().String()
}

// mapFinishReason maps a Gemini finishReason onto the Anthropic
// stop_reason vocabulary. Safety and recitation stops collapse to
// end_turn, as do unknown values.
func mapFinishReason(reason string) string {
	switch reason {
	case "STOP":
		return wire.StopEndTurn
	case "MAX_TOKENS":
		return wire.StopMaxTokens
	case "SAFETY", "RECITATION":
		return wire.StopEndTurn
	}
	return wire.StopEndTurn
}
