// Package normalize decodes each supported request shape into the canonical
// internal request. The shape is decided by the route, never sniffed from the
// body. All validation that can fail before an upstream call lives here.
package normalize

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/llmgate/llmgate/internal/types"
)

// ErrMalformed marks requests rejected before any upstream call.
var ErrMalformed = errors.New("malformed request")

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

// reasoningFromBody probes the raw body for reasoning overrides. Both the
// chat-style top-level reasoning_effort and the nested reasoning object are
// accepted; the nested object wins.
func reasoningFromBody(body []byte) *types.ReasoningParam {
	effort := gjson.GetBytes(body, "reasoning.effort").Str
	summary := gjson.GetBytes(body, "reasoning.summary").Str
	if effort == "" {
		effort = gjson.GetBytes(body, "reasoning_effort").Str
	}
	if effort == "" && summary == "" {
		return nil
	}
	return &types.ReasoningParam{Effort: effort, Summary: summary}
}

// compatFromBody probes for a per-request reasoning compat override.
func compatFromBody(body []byte, serverDefault string) string {
	if v := gjson.GetBytes(body, "reasoning_compat").Str; v != "" {
		return v
	}
	return serverDefault
}

// mergeInstructions joins system-role text blocks, in order, separated by
// blank lines. System content is never forwarded as conversation input.
func mergeInstructions(blocks []string) string {
	var nonEmpty []string
	for _, b := range blocks {
		if s := strings.TrimSpace(b); s != "" {
			nonEmpty = append(nonEmpty, s)
		}
	}
	return strings.Join(nonEmpty, "\n\n")
}

func isSystemRole(role string) bool {
	return role == "system" || role == "developer"
}
