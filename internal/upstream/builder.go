package upstream

import (
	"strings"

	"github.com/llmgate/llmgate/internal/registry"
	"github.com/llmgate/llmgate/internal/types"
)

// Defaults carries server-level knobs that shape every upstream payload.
type Defaults struct {
	ReasoningEffort  string
	ReasoningSummary string
	BaseInstructions string
	DefaultWebSearch bool
}

var validSummaries = map[string]bool{"auto": true, "concise": true, "detailed": true, "none": true}

// BuildPayload assembles the upstream wire request from a canonical request.
// The session id must already be set on the request.
func BuildPayload(cr *types.CanonicalRequest, entry registry.Entry, d Defaults) *types.UpstreamPayload {
	instructions := cr.Instructions
	if instructions == "" {
		instructions = d.BaseInstructions
	} else if d.BaseInstructions != "" {
		instructions = d.BaseInstructions + "\n\n" + instructions
	}

	reasoning := buildReasoning(entry, cr.Reasoning, d)

	payload := &types.UpstreamPayload{
		Model:             entry.ID,
		Instructions:      instructions,
		Input:             cr.Input,
		Tools:             withWebSearch(cr.Tools, d.DefaultWebSearch),
		ToolChoice:        sanitizeToolChoice(cr.ToolChoice),
		ParallelToolCalls: cr.ParallelToolCalls,
		Store:             false,
		Stream:            true,
		PromptCacheKey:    cr.SessionID,
		Reasoning:         reasoning,
		Text:              textFormat(cr.ResponseFormat),
	}
	if reasoning != nil {
		payload.Include = []string{"reasoning.encrypted_content"}
	}
	return payload
}

// buildReasoning resolves the effective reasoning parameter: request override
// over server default, clamped to what the model supports. Non-reasoning
// models get none.
func buildReasoning(entry registry.Entry, override *types.ReasoningParam, d Defaults) *types.ReasoningParam {
	if len(entry.Efforts) == 0 {
		return nil
	}

	effort := strings.ToLower(strings.TrimSpace(d.ReasoningEffort))
	summary := strings.ToLower(strings.TrimSpace(d.ReasoningSummary))
	if override != nil {
		if e := strings.ToLower(strings.TrimSpace(override.Effort)); e != "" {
			effort = e
		}
		if s := strings.ToLower(strings.TrimSpace(override.Summary)); s != "" && validSummaries[s] {
			summary = s
		}
	}

	effort = registry.ClampEffort(entry, effort)
	if effort == "" {
		effort = registry.ClampEffort(entry, "medium")
	}
	if !validSummaries[summary] {
		summary = "auto"
	}

	r := &types.ReasoningParam{Effort: effort}
	// "none" disables summaries; the upstream expects the field omitted, not
	// the literal string.
	if summary != "none" {
		r.Summary = summary
	}
	return r
}

// sanitizeToolChoice keeps only values the upstream accepts: "auto", "none",
// or an object naming a specific tool. Everything else degrades to "auto".
func sanitizeToolChoice(choice any) any {
	switch tc := choice.(type) {
	case string:
		if tc == "auto" || tc == "none" {
			return tc
		}
		return "auto"
	case map[string]any:
		return tc
	}
	return "auto"
}

func withWebSearch(tools []types.Tool, enabled bool) []types.Tool {
	if tools == nil {
		tools = []types.Tool{}
	}
	if !enabled {
		return tools
	}
	for _, t := range tools {
		if strings.HasPrefix(t.Type, "web_search") {
			return tools
		}
	}
	return append(tools, types.Tool{Type: "web_search"})
}

func textFormat(rf *types.ResponseFormat) *types.ResponsesText {
	if rf == nil {
		return nil
	}
	switch rf.Type {
	case "json_object":
		return &types.ResponsesText{Format: &types.ResponsesTextFormat{Type: "json_object"}}
	case "json_schema":
		name := rf.Name
		if name == "" {
			name = "response"
		}
		return &types.ResponsesText{Format: &types.ResponsesTextFormat{
			Type:   "json_schema",
			Name:   name,
			Schema: rf.Schema,
			Strict: rf.Strict,
		}}
	}
	return nil
}
