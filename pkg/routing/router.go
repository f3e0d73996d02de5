// Package routing classifies inbound requests into route categories and
// resolves logical model names to ordered provider fallback chains.
//
// The router is pure with respect to its configuration: classification
// reads the request and performs no I/O, so a Router instance can be
// shared freely and swapped wholesale on config reload. It does rewrite
// the request it classifies: the model field is replaced with the chosen
// logical model, subagent markers are removed from the system prompt, and
// prompt rules may strip their matched text.
package routing

import (
	"fmt"
	"regexp"
	"strings"

	"mercator-hq/saturn/pkg/config"
	"mercator-hq/saturn/pkg/wire"
)

// Kind is the route category a request classified into.
type Kind string

// Route categories, in classification priority order. Passthrough is the
// auto-map short circuit and wins over everything.
const (
	KindPassthrough Kind = "passthrough"
	KindWebSearch   Kind = "websearch"
	KindSubagent    Kind = "subagent"
	KindThink       Kind = "think"
	KindBackground  Kind = "background"
	KindPromptRule  Kind = "prompt_rule"
	KindDefault     Kind = "default"
)

// Decision is the outcome of classifying one request.
type Decision struct {
	// LogicalModel is the chosen logical model name. The request's model
	// field has been rewritten to this value unless Kind is Passthrough.
	LogicalModel string

	// Kind is the winning route category.
	Kind Kind

	// OriginalModel is the model the request arrived with.
	OriginalModel string

	// RuleName is the prompt rule that matched, when Kind is PromptRule.
	RuleName string

	// MatchedPrompt is the text the prompt rule matched, for tracing.
	MatchedPrompt string
}

// subagentMarkerPattern extracts the embedded model name from a subagent
// marker anywhere in the system prompt.
var subagentMarkerPattern = regexp.MustCompile(`<CCM-SUBAGENT-MODEL>(.*?)</CCM-SUBAGENT-MODEL>`)

// captureRefPattern detects capture group references ($1, $name, ${name})
// in a prompt rule target.
var captureRefPattern = regexp.MustCompile(`\$(?:\d+|[a-zA-Z_]\w*|\{[^}]+\})`)

// compiledRule is a prompt rule with its pattern compiled.
type compiledRule struct {
	name    string
	re      *regexp.Regexp
	target  string
	scope   string
	strip   bool
	dynamic bool
}

// Router classifies requests. Construct with NewRouter; instances are
// immutable and safe for concurrent use.
type Router struct {
	cfg        config.RouterConfig
	autoMap    *regexp.Regexp
	background *regexp.Regexp
	rules      []compiledRule

	// modelNames maps lowercased logical model names to their configured
	// spelling, for case-insensitive subagent marker resolution.
	modelNames map[string]string
}

// NewRouter compiles the router configuration. modelNames are the logical
// model names from the models table; subagent markers resolve against them
// case-insensitively. Patterns were checked at config validation, so a
// compile failure here means the config bypassed Validate.
func NewRouter(cfg config.RouterConfig, modelNames []string) (*Router, error) {
	r := &Router{
		cfg:        cfg,
		modelNames: make(map[string]string, len(modelNames)),
	}
	for _, name := range modelNames {
		r.modelNames[strings.ToLower(name)] = name
	}

	if cfg.AutoMapRegex != "" {
		re, err := regexp.Compile(cfg.AutoMapRegex)
		if err != nil {
			return nil, fmt.Errorf("invalid auto_map_regex: %w", err)
		}
		r.autoMap = re
	}

	if cfg.BackgroundRegex != "" {
		re, err := regexp.Compile(cfg.BackgroundRegex)
		if err != nil {
			return nil, fmt.Errorf("invalid background_regex: %w", err)
		}
		r.background = re
	}

	for _, rule := range cfg.PromptRules {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid prompt rule %q: %w", rule.Name, err)
		}
		scope := rule.Scope
		if scope == "" {
			scope = config.DefaultPromptRuleScope
		}
		r.rules = append(r.rules, compiledRule{
			name:    rule.Name,
			re:      re,
			target:  rule.Target,
			scope:   scope,
			strip:   rule.StripMatch,
			dynamic: strings.Contains(rule.Target, "$") && captureRefPattern.MatchString(rule.Target),
		})
	}

	return r, nil
}

// Route classifies a request into exactly one category and rewrites its
// model field to the chosen logical model. Classification never fails on a
// malformed request; fields that do not match simply cascade toward the
// default slot. The only error is a chosen slot with no model configured.
//
// Priority: an auto-map match passes the request through untouched.
// Otherwise web_search tools beat a subagent marker, which beats enabled
// thinking, which beats a background model name, which beats prompt rules,
// which beat the default slot.
func (r *Router) Route(req *wire.Request) (Decision, error) {
	original := req.Model

	if r.autoMap != nil && r.autoMap.MatchString(req.Model) {
		return Decision{
			LogicalModel:  req.Model,
			Kind:          KindPassthrough,
			OriginalModel: original,
		}, nil
	}

	decision := r.classify(req)
	decision.OriginalModel = original

	if decision.LogicalModel == "" {
		return Decision{}, &NoRouteConfiguredError{Kind: decision.Kind}
	}

	req.Model = decision.LogicalModel
	return decision, nil
}

// classify picks the winning category and its logical model. It may mutate
// the request: subagent markers and stripped prompt rule matches are
// removed here so they never reach an upstream.
func (r *Router) classify(req *wire.Request) Decision {
	if hasWebSearchTool(req) {
		return Decision{Kind: KindWebSearch, LogicalModel: r.cfg.WebSearch}
	}

	if name, ok := r.extractSubagentModel(req); ok {
		return Decision{Kind: KindSubagent, LogicalModel: name}
	}

	if req.ThinkingEnabled() {
		return Decision{Kind: KindThink, LogicalModel: r.cfg.Think}
	}

	// Matched against the model the request arrived with; nothing has
	// rewritten it at this point.
	if r.background != nil && r.background.MatchString(req.Model) {
		return Decision{Kind: KindBackground, LogicalModel: r.cfg.Background}
	}

	if d, ok := r.matchPromptRule(req); ok {
		return d
	}

	return Decision{Kind: KindDefault, LogicalModel: r.cfg.Default}
}

// hasWebSearchTool reports whether any declared tool is a web_search
// server tool.
func hasWebSearchTool(req *wire.Request) bool {
	for i := range req.Tools {
		if req.Tools[i].IsWebSearch() {
			return true
		}
	}
	return false
}

// extractSubagentModel scans the whole system prompt for a subagent marker.
// The marker is removed from the outgoing prompt regardless of whether its
// embedded name resolves. The name is matched case-insensitively against
// the models table and rewritten to the configured spelling; an unlisted
// name falls back to the subagent slot when one is set, and otherwise
// passes through so the mapping layer reports it as unknown.
func (r *Router) extractSubagentModel(req *wire.Request) (string, bool) {
	if req.System == nil {
		return "", false
	}

	m := subagentMarkerPattern.FindStringSubmatch(req.System.FullText())
	if m == nil {
		return "", false
	}
	req.System.ReplaceAll(subagentMarkerPattern, "")

	name := m[1]
	if name == "" {
		return "", false
	}
	if canonical, ok := r.modelNames[strings.ToLower(name)]; ok {
		return canonical, true
	}
	if r.cfg.Subagent != "" {
		return r.cfg.Subagent, true
	}
	return name, true
}

// matchPromptRule runs the configured rules in order against their scoped
// prompt text. First match wins. Dynamic targets expand capture references
// from the match; strip_match removes the matched text in place.
func (r *Router) matchPromptRule(req *wire.Request) (Decision, bool) {
	for i := range r.rules {
		rule := &r.rules[i]

		text := scopeText(req, rule.scope)
		if text == "" {
			continue
		}

		match := rule.re.FindStringSubmatchIndex(text)
		if match == nil {
			continue
		}

		target := rule.target
		if rule.dynamic {
			target = string(rule.re.ExpandString(nil, rule.target, text, match))
		}

		if rule.strip {
			stripScope(req, rule.scope, rule.re)
		}

		return Decision{
			Kind:          KindPromptRule,
			LogicalModel:  target,
			RuleName:      rule.name,
			MatchedPrompt: text[match[0]:match[1]],
		}, true
	}
	return Decision{}, false
}

// scopeText extracts the text a rule's scope refers to.
func scopeText(req *wire.Request, scope string) string {
	switch scope {
	case config.PromptRuleScopeSystem:
		return req.SystemText()
	case config.PromptRuleScopeAnyUser:
		// Newest first, so recent instructions win over old ones.
		for i := len(req.Messages) - 1; i >= 0; i-- {
			if req.Messages[i].Role == wire.RoleUser {
				if text := messageText(&req.Messages[i]); text != "" {
					return text
				}
			}
		}
		return ""
	default: // last_user
		for i := len(req.Messages) - 1; i >= 0; i-- {
			if req.Messages[i].Role == wire.RoleUser {
				return messageText(&req.Messages[i])
			}
		}
		return ""
	}
}

// messageText joins a message's text blocks with single spaces.
func messageText(msg *wire.Message) string {
	if !msg.Content.IsBlocks {
		return msg.Content.Text
	}
	var parts []string
	for _, b := range msg.Content.Blocks {
		if b.Type == wire.BlockTypeText && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, " ")
}

// stripScope removes pattern matches from the scoped text in place.
func stripScope(req *wire.Request, scope string, re *regexp.Regexp) {
	switch scope {
	case config.PromptRuleScopeSystem:
		if req.System != nil {
			req.System.ReplaceAll(re, "")
		}
	case config.PromptRuleScopeAnyUser:
		for i := range req.Messages {
			if req.Messages[i].Role == wire.RoleUser {
				stripMessage(&req.Messages[i], re)
			}
		}
	default: // last_user
		for i := len(req.Messages) - 1; i >= 0; i-- {
			if req.Messages[i].Role == wire.RoleUser {
				stripMessage(&req.Messages[i], re)
				return
			}
		}
	}
}

func stripMessage(msg *wire.Message, re *regexp.Regexp) {
	if !msg.Content.IsBlocks {
		msg.Content.Text = re.ReplaceAllString(msg.Content.Text, "")
		return
	}
	for i := range msg.Content.Blocks {
		if msg.Content.Blocks[i].Type == wire.BlockTypeText {
			msg.Content.Blocks[i].Text = re.ReplaceAllString(msg.Content.Blocks[i].Text, "")
		}
	}
}
