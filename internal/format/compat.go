package format

import (
	"strings"

	"github.com/llmgate/llmgate/internal/types"
)

// Reasoning compatibility modes. Exactly one is in effect per request.
const (
	// CompatThinkTags embeds reasoning in the content stream between
	// <think> delimiters.
	CompatThinkTags = "think-tags"
	// CompatO3 presents reasoning as a structured reasoning.content channel.
	CompatO3 = "o3"
	// CompatLegacy splits reasoning text and summary into separate
	// top-level fields.
	CompatLegacy = "legacy"
)

// NormalizeCompat maps user input to a supported compat mode.
func NormalizeCompat(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case CompatO3:
		return CompatO3
	case CompatLegacy, "current":
		return CompatLegacy
	default:
		return CompatThinkTags
	}
}

// thinkState tracks the inline <think> delimiter pair for one turn. The tag
// opens before the first reasoning fragment and closes before the first
// plain-text fragment (or at turn end). Once closed it never reopens: late
// reasoning fragments are dropped rather than nesting a second tag.
type thinkState struct {
	open   bool
	closed bool
}

// onReasoning returns the content pieces to emit for one reasoning fragment
// in inline-tagged mode.
func (t *thinkState) onReasoning(text string, paragraphBreak bool) []string {
	if t.closed {
		return nil
	}
	var out []string
	if !t.open {
		t.open = true
		out = append(out, "<think>")
	}
	if paragraphBreak {
		out = append(out, "\n")
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}

// closeTag returns the closing delimiter once, before the first plain text
// or at turn end.
func (t *thinkState) closeTag() (string, bool) {
	if t.open && !t.closed {
		t.open = false
		t.closed = true
		return "</think>", true
	}
	return "", false
}

// joinReasoning merges the two reasoning channels for buffered rendering.
func joinReasoning(summary, full string) string {
	var parts []string
	if summary != "" {
		parts = append(parts, summary)
	}
	if full != "" {
		parts = append(parts, full)
	}
	return strings.Join(parts, "\n\n")
}

// ApplyReasoningToMessage renders accumulated reasoning into a buffered chat
// message according to the compat mode.
func ApplyReasoningToMessage(msg *types.ChatResponseMsg, summary, full, compat string) {
	switch NormalizeCompat(compat) {
	case CompatO3:
		if rtxt := joinReasoning(summary, full); rtxt != "" {
			msg.Reasoning = types.ReasoningContent{
				Content: []types.ReasoningPart{{Type: "text", Text: rtxt}},
			}
		}
	case CompatLegacy:
		if summary != "" {
			msg.ReasoningSummary = summary
		}
		if full != "" {
			msg.Reasoning = full
		}
	default: // think-tags
		if rtxt := joinReasoning(summary, full); rtxt != "" {
			msg.Content = "<think>" + rtxt + "</think>" + msg.Content
		}
	}
}
