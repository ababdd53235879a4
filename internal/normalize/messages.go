package normalize

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/llmgate/llmgate/internal/types"
)

// chatMessagesToInput converts OpenAI chat messages into canonical input
// items. System-role content is returned separately for the instructions
// merge. Part order within a message is preserved.
func chatMessagesToInput(messages []types.ChatMessage) ([]types.InputItem, []string) {
	var items []types.InputItem
	var system []string

	for _, msg := range messages {
		role := msg.Role

		if isSystemRole(role) {
			system = append(system, flattenText(msg.Content))
			continue
		}

		if role == "tool" {
			callID := msg.ToolCallID
			if callID == "" {
				callID = msg.Name
			}
			if callID != "" {
				items = append(items, types.InputItem{
					Type:   "function_call_output",
					CallID: callID,
					Output: flattenText(msg.Content),
				})
			}
			continue
		}

		if role == "assistant" {
			for _, tc := range msg.ToolCalls {
				if tc.Type != "" && tc.Type != "function" {
					continue
				}
				if tc.ID == "" || tc.Function.Name == "" || tc.Function.Arguments == "" {
					continue
				}
				items = append(items, types.InputItem{
					Type:      "function_call",
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
					CallID:    tc.ID,
				})
			}
		}

		parts := contentParts(msg.Content, role)
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

// contentParts converts a chat content value (string or part array) into
// ordered canonical parts.
func contentParts(content any, role string) []types.Part {
	textKind := "input_text"
	if role == "assistant" {
		textKind = "output_text"
	}

	switch c := content.(type) {
	case string:
		if c == "" {
			return nil
		}
		return []types.Part{{Type: textKind, Text: c}}
	case []any:
		var parts []types.Part
		for _, raw := range c {
			p, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			switch ptype, _ := p["type"].(string); ptype {
			case "text", "input_text":
				text, _ := p["text"].(string)
				if text == "" {
					text, _ = p["content"].(string)
				}
				if text != "" {
					parts = append(parts, types.Part{Type: textKind, Text: text})
				}
			case "image_url", "input_image":
				var imgURL string
				if img, ok := p["image_url"].(map[string]any); ok {
					imgURL, _ = img["url"].(string)
				} else if s, ok := p["image_url"].(string); ok {
					imgURL = s
				}
				if imgURL != "" {
					parts = append(parts, types.Part{Type: "input_image", ImageURL: normalizeImageDataURL(imgURL)})
				}
			}
		}
		return parts
	}
	return nil
}

// flattenText joins the text of a content value into one string.
func flattenText(content any) string {
	switch c := content.(type) {
	case string:
		return c
	case []any:
		var texts []string
		for _, raw := range c {
			p, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			text, _ := p["text"].(string)
			if text == "" {
				text, _ = p["content"].(string)
			}
			if text != "" {
				texts = append(texts, text)
			}
		}
		return strings.Join(texts, "\n")
	}
	return ""
}

// normalizeImageDataURL repairs common client damage in base64 data URLs:
// URL-escaped payloads, url-safe alphabets, stripped padding.
func normalizeImageDataURL(u string) string {
	if !strings.HasPrefix(u, "data:image/") || !strings.Contains(u, ";base64,") {
		return u
	}
	header, data, ok := strings.Cut(u, ",")
	if !ok {
		return u
	}
	data, _ = url.QueryUnescape(data)
	data = strings.NewReplacer("\n", "", "\r", "", "-", "+", "_", "/").Replace(data)
	if pad := len(data) % 4; pad != 0 {
		data += strings.Repeat("=", 4-pad)
	}
	if _, err := base64.StdEncoding.DecodeString(data); err != nil {
		return u
	}
	return header + "," + data
}

// toDataURL converts a raw base64 image string to a data URL, sniffing the
// media type from the payload prefix. Plain URLs pass through.
func toDataURL(image string) string {
	s := strings.TrimSpace(image)
	if s == "" || strings.HasPrefix(s, "data:image/") ||
		strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return s
	}
	b64 := strings.NewReplacer("\n", "", "\r", "").Replace(s)
	kind := "image/png"
	switch {
	case strings.HasPrefix(b64, "/9j/"):
		kind = "image/jpeg"
	case strings.HasPrefix(b64, "R0lGOD"):
		kind = "image/gif"
	}
	return fmt.Sprintf("data:%s;base64,%s", kind, b64)
}

// chatToolsToCanonical converts nested OpenAI tool declarations to the flat
// canonical form. Non-function tools and unnamed functions are dropped.
func chatToolsToCanonical(tools []types.ChatTool) []types.Tool {
	var out []types.Tool
	for _, t := range tools {
		if t.Type != "function" || t.Function == nil || t.Function.Name == "" {
			continue
		}
		params := t.Function.Parameters
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out = append(out, types.Tool{
			Type:        "function",
			Name:        t.Function.Name,
			Description: t.Function.Description,
			Strict:      types.BoolPtr(false),
			Parameters:  params,
		})
	}
	return out
}

// argumentsString never forwards an empty arguments payload.
func argumentsString(args string) string {
	if strings.TrimSpace(args) == "" {
		return "{}"
	}
	return args
}
