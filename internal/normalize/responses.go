package normalize

import (
	"encoding/json"
	"strings"

	"github.com/llmgate/llmgate/internal/types"
)

// FromResponses decodes a Responses API body. The input field accepts a bare
// string or an item array; items already use the canonical layout, so the
// array path is a tolerant element-wise conversion.
func FromResponses(body []byte, compatDefault string) (*types.CanonicalRequest, error) {
	var req types.ResponsesRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, malformed("invalid JSON: %v", err)
	}
	if strings.TrimSpace(req.Model) == "" {
		return nil, malformed("model is required")
	}

	items, system, err := responsesInputToItems(req.Input)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, malformed("input is required")
	}

	instructions := mergeInstructions(append([]string{req.Instructions}, system...))

	cr := &types.CanonicalRequest{
		Shape:           types.ShapeResponses,
		RequestedModel:  req.Model,
		Model:           req.Model,
		Stream:          req.Stream,
		IncludeUsage:    req.Stream,
		Input:           items,
		Instructions:    instructions,
		MessagesCount:   len(items),
		Tools:           canonicalTools(req.Tools),
		ToolChoice:      req.ToolChoice,
		ResponseFormat:  responsesFormat(req.Text),
		Reasoning:       req.Reasoning,
		ReasoningCompat: compatFromBody(body, compatDefault),
	}
	if req.ParallelToolCalls != nil {
		cr.ParallelToolCalls = *req.ParallelToolCalls
	}
	return cr, nil
}

func responsesInputToItems(raw json.RawMessage) ([]types.InputItem, []string, error) {
	if len(raw) == 0 {
		return nil, nil, nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if text == "" {
			return nil, nil, nil
		}
		return []types.InputItem{{
			Type:    "message",
			Role:    "user",
			Content: []types.Part{{Type: "input_text", Text: text}},
		}}, nil, nil
	}

	var entries []map[string]any
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, nil, malformed("input must be a string or an item array")
	}

	var items []types.InputItem
	var system []string
	for _, entry := range entries {
		itemType, _ := entry["type"].(string)
		role, _ := entry["role"].(string)
		if itemType == "" && role != "" {
			itemType = "message"
		}
		switch itemType {
		case "message":
			if isSystemRole(role) {
				system = append(system, flattenText(entry["content"]))
				continue
			}
			parts := contentParts(entry["content"], role)
			if len(parts) == 0 {
				continue
			}
			roleOut := "user"
			if role == "assistant" {
				roleOut = "assistant"
			}
			items = append(items, types.InputItem{Type: "message", Role: roleOut, Content: parts})
		case "function_call":
			name, _ := entry["name"].(string)
			callID, _ := entry["call_id"].(string)
			args, _ := entry["arguments"].(string)
			if name == "" || callID == "" {
				continue
			}
			items = append(items, types.InputItem{
				Type:      "function_call",
				Name:      name,
				Arguments: argumentsString(args),
				CallID:    callID,
			})
		case "function_call_output":
			callID, _ := entry["call_id"].(string)
			output, _ := entry["output"].(string)
			if callID == "" {
				continue
			}
			items = append(items, types.InputItem{Type: "function_call_output", CallID: callID, Output: output})
		}
	}
	return items, system, nil
}

// canonicalTools passes flat Responses tools through, dropping unnamed
// function entries. Built-in tool types (web_search) survive as-is.
func canonicalTools(tools []types.Tool) []types.Tool {
	var out []types.Tool
	for _, t := range tools {
		if t.Type == "function" && t.Name == "" {
			continue
		}
		if t.Type == "function" && t.Parameters == nil {
			t.Parameters = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out = append(out, t)
	}
	return out
}

func responsesFormat(text *types.ResponsesText) *types.ResponseFormat {
	if text == nil || text.Format == nil {
		return nil
	}
	switch text.Format.Type {
	case "json_object":
		return &types.ResponseFormat{Type: "json_object"}
	case "json_schema":
		return &types.ResponseFormat{
			Type:   "json_schema",
			Name:   text.Format.Name,
			Schema: text.Format.Schema,
			Strict: text.Format.Strict,
		}
	}
	return nil
}
