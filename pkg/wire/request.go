package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Request is a Messages API request. Unrecognized top-level fields are
// retained in Extra so they can be forwarded verbatim to Anthropic-native
// providers.
type Request struct {
	// Model is the logical model name the caller asked for.
	Model string `json:"model"`

	// MaxTokens caps the generated output length.
	MaxTokens int `json:"max_tokens"`

	// Messages is the conversation history, oldest first.
	Messages []Message `json:"messages"`

	// System is the optional system prompt (string or block form).
	System *SystemPrompt `json:"system,omitempty"`

	// Tools declares the tools the model may invoke.
	Tools []Tool `json:"tools,omitempty"`

	// ToolChoice constrains how the model selects tools.
	ToolChoice *ToolChoice `json:"tool_choice,omitempty"`

	// Thinking enables extended reasoning with a token budget.
	Thinking *ThinkingConfig `json:"thinking,omitempty"`

	// Stream selects SSE delivery of the response.
	Stream bool `json:"stream,omitempty"`

	Temperature   *float64        `json:"temperature,omitempty"`
	TopP          *float64        `json:"top_p,omitempty"`
	TopK          *int            `json:"top_k,omitempty"`
	StopSequences []string        `json:"stop_sequences,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`

	// Extra holds top-level fields this proxy does not model.
	Extra map[string]json.RawMessage `json:"-"`

	// Betas carries the inbound anthropic-beta header values. Transport
	// metadata rather than body: Anthropic-native adapters forward it.
	Betas []string `json:"-"`
}

// knownRequestFields mirrors the json tags of Request's modeled fields.
var knownRequestFields = []string{
	"model", "max_tokens", "messages", "system", "tools", "tool_choice",
	"thinking", "stream", "temperature", "top_p", "top_k",
	"stop_sequences", "metadata",
}

// UnmarshalJSON decodes the modeled fields and stashes everything else in
// Extra.
func (r *Request) UnmarshalJSON(data []byte) error {
	type alias Request
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*r = Request(a)

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, k := range knownRequestFields {
		delete(all, k)
	}
	if len(all) > 0 {
		r.Extra = all
	}
	return nil
}

// MarshalJSON emits the modeled fields merged with Extra. Modeled fields win
// on key collision.
func (r Request) MarshalJSON() ([]byte, error) {
	type alias Request
	base, err := json.Marshal(alias(r))
	if err != nil {
		return nil, err
	}
	if len(r.Extra) == 0 {
		return base, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range r.Extra {
		if _, ok := merged[k]; !ok {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// Clone returns a deep copy, so per-provider rewrites never leak between
// fallback attempts.
func (r Request) Clone() Request {
	out := r

	if r.Messages != nil {
		out.Messages = make([]Message, len(r.Messages))
		for i, m := range r.Messages {
			out.Messages[i] = Message{Role: m.Role, Content: m.Content.Clone()}
		}
	}
	if r.System != nil {
		sys := r.System.Clone()
		out.System = &sys
	}
	if r.Tools != nil {
		out.Tools = make([]Tool, len(r.Tools))
		for i, t := range r.Tools {
			out.Tools[i] = t.Clone()
		}
	}
	if r.ToolChoice != nil {
		tc := *r.ToolChoice
		out.ToolChoice = &tc
	}
	if r.Thinking != nil {
		th := *r.Thinking
		out.Thinking = &th
	}
	if r.Temperature != nil {
		v := *r.Temperature
		out.Temperature = &v
	}
	if r.TopP != nil {
		v := *r.TopP
		out.TopP = &v
	}
	if r.TopK != nil {
		v := *r.TopK
		out.TopK = &v
	}
	if r.StopSequences != nil {
		out.StopSequences = append([]string(nil), r.StopSequences...)
	}
	out.Metadata = cloneRaw(r.Metadata)
	if r.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(r.Extra))
		for k, v := range r.Extra {
			out.Extra[k] = cloneRaw(v)
		}
	}
	if r.Betas != nil {
		out.Betas = append([]string(nil), r.Betas...)
	}
	return out
}

// ThinkingEnabled reports whether extended thinking is requested.
func (r *Request) ThinkingEnabled() bool {
	return r.Thinking != nil && r.Thinking.Type == "enabled"
}

// SystemText returns the system prompt flattened to plain text, joining
// block-form prompts in order.
func (r *Request) SystemText() string {
	if r.System == nil {
		return ""
	}
	return r.System.FullText()
}

// LastMessage returns the most recent message, or nil when the conversation
// is empty.
func (r *Request) LastMessage() *Message {
	if len(r.Messages) == 0 {
		return nil
	}
	return &r.Messages[len(r.Messages)-1]
}

// SystemPrompt is the request system prompt, which arrives on the wire as
// either a bare string or an array of system blocks. The received shape is
// reproduced on serialization.
type SystemPrompt struct {
	// Text holds the prompt when the wire form was a single string.
	Text string

	// Blocks holds the prompt when the wire form was an array.
	Blocks []SystemBlock

	// IsBlocks records which wire form was received.
	IsBlocks bool
}

// SystemBlock is one element of a block-form system prompt.
type SystemBlock struct {
	// Type is always "text" today.
	Type string `json:"type"`

	// Text is the prompt text for this block.
	Text string `json:"text"`

	// CacheControl is the opaque prompt-caching marker, preserved verbatim.
	CacheControl json.RawMessage `json:"cache_control,omitempty"`
}

// SystemText builds a string-form system prompt.
func SystemText(s string) *SystemPrompt {
	return &SystemPrompt{Text: s}
}

// UnmarshalJSON accepts both the string and the array wire forms.
func (s *SystemPrompt) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*s = SystemPrompt{}
		return nil
	}

	switch trimmed[0] {
	case '"':
		s.IsBlocks = false
		s.Blocks = nil
		return json.Unmarshal(trimmed, &s.Text)
	case '[':
		s.IsBlocks = true
		s.Text = ""
		return json.Unmarshal(trimmed, &s.Blocks)
	default:
		return fmt.Errorf("system must be a string or an array of blocks")
	}
}

// MarshalJSON reproduces the wire form the prompt was received in.
func (s SystemPrompt) MarshalJSON() ([]byte, error) {
	if s.IsBlocks {
		if s.Blocks == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(s.Blocks)
	}
	return json.Marshal(s.Text)
}

// FullText flattens the prompt to plain text, concatenating block-form
// prompts in order.
func (s SystemPrompt) FullText() string {
	if !s.IsBlocks {
		return s.Text
	}
	var sb strings.Builder
	for _, b := range s.Blocks {
		sb.WriteString(b.Text)
	}
	return sb.String()
}

// ReplaceAll rewrites every match of re with repl in the prompt text,
// preserving the wire shape and any cache_control markers.
func (s *SystemPrompt) ReplaceAll(re *regexp.Regexp, repl string) {
	if !s.IsBlocks {
		s.Text = re.ReplaceAllString(s.Text, repl)
		return
	}
	for i := range s.Blocks {
		s.Blocks[i].Text = re.ReplaceAllString(s.Blocks[i].Text, repl)
	}
}

// Clone returns a deep copy.
func (s SystemPrompt) Clone() SystemPrompt {
	out := SystemPrompt{Text: s.Text, IsBlocks: s.IsBlocks}
	if s.Blocks != nil {
		out.Blocks = make([]SystemBlock, len(s.Blocks))
		for i, b := range s.Blocks {
			out.Blocks[i] = b
			out.Blocks[i].CacheControl = cloneRaw(b.CacheControl)
		}
	}
	return out
}

// Tool declares one tool the model may call. Client tools carry an input
// schema; server tools (web_search and friends) carry a versioned Type plus
// provider-defined options, which are retained in Extra.
type Tool struct {
	// Type is set for server tools (e.g. "web_search_20250305") and empty
	// for plain client tools.
	Type string `json:"type,omitempty"`

	// Name is the tool identifier the model uses to call it.
	Name string `json:"name"`

	// Description tells the model what the tool does.
	Description string `json:"description,omitempty"`

	// InputSchema is the JSON Schema for the tool's arguments.
	InputSchema json.RawMessage `json:"input_schema,omitempty"`

	// CacheControl is the opaque prompt-caching marker.
	CacheControl json.RawMessage `json:"cache_control,omitempty"`

	// Extra holds unmodeled tool fields such as server tool options.
	Extra map[string]json.RawMessage `json:"-"`
}

var knownToolFields = []string{"type", "name", "description", "input_schema", "cache_control"}

// UnmarshalJSON decodes the modeled fields and stashes everything else in
// Extra.
func (t *Tool) UnmarshalJSON(data []byte) error {
	type alias Tool
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*t = Tool(a)

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, k := range knownToolFields {
		delete(all, k)
	}
	if len(all) > 0 {
		t.Extra = all
	}
	return nil
}

// MarshalJSON emits the modeled fields merged with Extra.
func (t Tool) MarshalJSON() ([]byte, error) {
	type alias Tool
	base, err := json.Marshal(alias(t))
	if err != nil {
		return nil, err
	}
	if len(t.Extra) == 0 {
		return base, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range t.Extra {
		if _, ok := merged[k]; !ok {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// IsWebSearch reports whether the tool is a web search tool, either a
// versioned server tool or a client tool named web_search.
func (t Tool) IsWebSearch() bool {
	return strings.HasPrefix(t.Type, "web_search") || t.Name == "web_search"
}

// Clone returns a deep copy.
func (t Tool) Clone() Tool {
	out := t
	out.InputSchema = cloneRaw(t.InputSchema)
	out.CacheControl = cloneRaw(t.CacheControl)
	if t.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(t.Extra))
		for k, v := range t.Extra {
			out.Extra[k] = cloneRaw(v)
		}
	}
	return out
}

// ToolChoice constrains tool selection: "auto", "any", "none", or "tool"
// with a specific Name.
type ToolChoice struct {
	Type string `json:"type"`

	// Name is the forced tool when Type is "tool".
	Name string `json:"name,omitempty"`

	// DisableParallelToolUse limits the model to one tool call per turn.
	DisableParallelToolUse *bool `json:"disable_parallel_tool_use,omitempty"`
}

// ThinkingConfig enables extended reasoning.
type ThinkingConfig struct {
	// Type is "enabled" or "disabled".
	Type string `json:"type"`

	// BudgetTokens caps the reasoning tokens when enabled.
	BudgetTokens int `json:"budget_tokens,omitempty"`
}

// CountTokensRequest is a count_tokens request body. It shares the request
// shape minus generation parameters.
type CountTokensRequest struct {
	Model    string          `json:"model"`
	Messages []Message       `json:"messages"`
	System   *SystemPrompt   `json:"system,omitempty"`
	Tools    []Tool          `json:"tools,omitempty"`
	Thinking *ThinkingConfig `json:"thinking,omitempty"`
}

// CountTokensResponse is the count_tokens reply.
type CountTokensResponse struct {
	InputTokens int `json:"input_tokens"`
}
