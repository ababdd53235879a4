package normalize

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/llmgate/llmgate/internal/types"
)

// FromOllama decodes an Ollama /api/chat body. Ollama defaults to streaming
// when the stream flag is absent.
func FromOllama(body []byte, compatDefault string) (*types.CanonicalRequest, error) {
	var req types.OllamaChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, malformed("invalid JSON: %v", err)
	}
	if strings.TrimSpace(req.Model) == "" {
		return nil, malformed("model is required")
	}
	if len(req.Messages) == 0 {
		return nil, malformed("messages must be a non-empty array")
	}

	items, system := ollamaMessagesToInput(req.Messages)

	stream := true
	if req.Stream != nil {
		stream = *req.Stream
	}

	cr := &types.CanonicalRequest{
		Shape:           types.ShapeOllama,
		RequestedModel:  req.Model,
		Model:           req.Model,
		Stream:          stream,
		Input:           items,
		Instructions:    mergeInstructions(system),
		MessagesCount:   len(req.Messages),
		Tools:           chatToolsToCanonical(req.Tools),
		ResponseFormat:  ollamaResponseFormat(req.Format),
		Reasoning:       reasoningFromBody(body),
		ReasoningCompat: compatFromBody(body, compatDefault),
	}
	return cr, nil
}

// ollamaMessagesToInput converts Ollama messages to canonical input items.
// Tool results missing an explicit id are matched FIFO against the preceding
// assistant tool calls, mirroring how Ollama clients omit ids.
func ollamaMessagesToInput(messages []types.OllamaMessage) ([]types.InputItem, []string) {
	var items []types.InputItem
	var system []string
	var pendingCallIDs []string
	callCounter := 0

	for _, msg := range messages {
		role := msg.Role
		if role == "" {
			role = "user"
		}

		if isSystemRole(role) {
			system = append(system, msg.Content)
			continue
		}

		if role == "tool" {
			callID := msg.ToolCallID
			if callID == "" && len(pendingCallIDs) > 0 {
				callID = pendingCallIDs[0]
				pendingCallIDs = pendingCallIDs[1:]
			}
			if callID != "" {
				items = append(items, types.InputItem{
					Type:   "function_call_output",
					CallID: callID,
					Output: msg.Content,
				})
			}
			continue
		}

		if role == "assistant" {
			for _, tc := range msg.ToolCalls {
				if tc.Function.Name == "" {
					continue
				}
				callID := tc.ID
				if callID == "" {
					callCounter++
					callID = fmt.Sprintf("ollama_call_%d", callCounter)
				}
				pendingCallIDs = append(pendingCallIDs, callID)
				items = append(items, types.InputItem{
					Type:      "function_call",
					Name:      tc.Function.Name,
					Arguments: argumentsString(tc.Function.Arguments),
					CallID:    callID,
				})
			}
		}

		var parts []types.Part
		textKind := "input_text"
		if role == "assistant" {
			textKind = "output_text"
		}
		if msg.Content != "" {
			parts = append(parts, types.Part{Type: textKind, Text: msg.Content})
		}
		for _, img := range msg.Images {
			if u := toDataURL(img); u != "" {
				parts = append(parts, types.Part{Type: "input_image", ImageURL: u})
			}
		}
		if len(parts) == 0 {
			continue
		}
		roleOut := "user"
		if role == "assistant" {
			roleOut = "assistant"
		}
		items = append(items, types.InputItem{Type: "message", Role: roleOut, Content: parts})
	}

	return items, system
}

// ollamaResponseFormat maps the Ollama format field: the string "json"
// selects a JSON object, a schema object selects schema-constrained output.
func ollamaResponseFormat(format any) *types.ResponseFormat {
	switch f := format.(type) {
	case string:
		if f == "json" {
			return &types.ResponseFormat{Type: "json_object"}
		}
	case map[string]any:
		if len(f) > 0 {
			return &types.ResponseFormat{Type: "json_schema", Name: "ollama_format", Schema: f}
		}
	}
	return nil
}
