package normalize

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/llmgate/llmgate/internal/types"
)

// FromChat decodes an OpenAI chat completions body.
func FromChat(body []byte, compatDefault string) (*types.CanonicalRequest, error) {
	var req types.ChatCompletionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, malformed("invalid JSON: %v", err)
	}
	if strings.TrimSpace(req.Model) == "" {
		return nil, malformed("model is required")
	}
	if len(req.Messages) == 0 {
		return nil, malformed("messages must be a non-empty array")
	}

	items, system := chatMessagesToInput(req.Messages)

	cr := &types.CanonicalRequest{
		Shape:             types.ShapeChat,
		RequestedModel:    req.Model,
		Model:             req.Model,
		Stream:            req.Stream,
		Input:             items,
		Instructions:      mergeInstructions(system),
		MessagesCount:     len(req.Messages),
		Tools:             chatToolsToCanonical(req.Tools),
		ToolChoice:        req.ToolChoice,
		ParallelToolCalls: req.ParallelToolCalls,
		ResponseFormat:    chatResponseFormat(req.ResponseFormat),
		Reasoning:         reasoningFromBody(body),
		ReasoningCompat:   compatFromBody(body, compatDefault),
	}
	if req.Stream && req.StreamOptions != nil {
		cr.IncludeUsage = req.StreamOptions.IncludeUsage
	}
	return cr, nil
}

// FromText decodes an OpenAI legacy completions body. The prompt becomes a
// single user message; string arrays are joined in order.
func FromText(body []byte, compatDefault string) (*types.CanonicalRequest, error) {
	if !gjson.ValidBytes(body) {
		return nil, malformed("invalid JSON")
	}
	model := gjson.GetBytes(body, "model").Str
	if strings.TrimSpace(model) == "" {
		return nil, malformed("model is required")
	}
	prompt := promptText(gjson.GetBytes(body, "prompt"))
	if prompt == "" {
		return nil, malformed("prompt is required")
	}

	cr := &types.CanonicalRequest{
		Shape:          types.ShapeText,
		RequestedModel: model,
		Model:          model,
		Stream:         gjson.GetBytes(body, "stream").Bool(),
		Input: []types.InputItem{{
			Type:    "message",
			Role:    "user",
			Content: []types.Part{{Type: "input_text", Text: prompt}},
		}},
		MessagesCount:   1,
		Reasoning:       reasoningFromBody(body),
		ReasoningCompat: compatFromBody(body, compatDefault),
	}
	if cr.Stream {
		cr.IncludeUsage = gjson.GetBytes(body, "stream_options.include_usage").Bool()
	}
	return cr, nil
}

func promptText(res gjson.Result) string {
	switch {
	case res.Type == gjson.String:
		return res.Str
	case res.IsArray():
		var parts []string
		for _, entry := range res.Array() {
			if entry.Type == gjson.String && entry.Str != "" {
				parts = append(parts, entry.Str)
			}
		}
		return strings.Join(parts, "\n")
	}
	return ""
}

func chatResponseFormat(rf *types.ChatRespFormat) *types.ResponseFormat {
	if rf == nil {
		return nil
	}
	switch rf.Type {
	case "json_object":
		return &types.ResponseFormat{Type: "json_object"}
	case "json_schema":
		out := &types.ResponseFormat{Type: "json_schema"}
		if rf.JSONSchema != nil {
			out.Name = rf.JSONSchema.Name
			out.Schema = rf.JSONSchema.Schema
			out.Strict = rf.JSONSchema.Strict
		}
		return out
	}
	return nil
}
