package event

import (
	"fmt"
	"io"
	"maps"
	"strings"

	"github.com/llmgate/llmgate/internal/types"
)

// Source is a pull-based sequence of canonical deltas. It is finite and
// consumed once: after the terminal delta, Next returns false forever.
type Source interface {
	Next() (Delta, bool)
	ResponseID() string
}

type interpState int

const (
	stateIdle interpState = iota
	stateStreaming
	stateDone
)

// Interpreter reads the upstream SSE stream and reclassifies raw events into
// the canonical delta sequence, strictly in arrival order. Unknown event
// types are ignored. Exactly one terminal delta is produced per stream.
type Interpreter struct {
	reader *Reader
	body   io.Closer
	tools  *toolAssembler

	st         interpState
	queue      []Delta
	responseID string

	sawSummary   bool
	hiddenItems  map[string]bool
	wsParams     map[string]map[string]any
	finishLength bool
}

// NewInterpreter wraps an upstream SSE body. The interpreter closes the body
// when the sequence terminates.
func NewInterpreter(body io.ReadCloser) *Interpreter {
	return &Interpreter{
		reader:      NewReader(body),
		body:        body,
		tools:       newToolAssembler(),
		hiddenItems: map[string]bool{},
		wsParams:    map[string]map[string]any{},
	}
}

// ResponseID returns the upstream response id seen so far, if any.
func (it *Interpreter) ResponseID() string { return it.responseID }

// Close releases the underlying stream without waiting for a terminal event.
func (it *Interpreter) Close() error {
	it.st = stateDone
	return it.body.Close()
}

// Next returns the next canonical delta. The second result is false once the
// sequence has ended.
func (it *Interpreter) Next() (Delta, bool) {
	for {
		if len(it.queue) > 0 {
			d := it.queue[0]
			it.queue = it.queue[1:]
			if d.Terminal() {
				it.queue = nil
				it.st = stateDone
				it.body.Close()
			}
			return d, true
		}
		if it.st == stateDone {
			return Delta{}, false
		}
		evt, err := it.reader.Next()
		if err != nil {
			// Transport error or EOF without a terminal event: the turn is
			// over, but everything already emitted remains valid.
			it.push(Delta{Kind: KindFailed, Err: fmt.Errorf("%w: %v", ErrUpstreamDisconnected, err)})
			continue
		}
		it.classify(evt)
	}
}

func (it *Interpreter) push(d Delta) {
	if it.st == stateDone {
		return
	}
	if !d.Terminal() {
		it.st = stateStreaming
	}
	it.queue = append(it.queue, d)
}

func (it *Interpreter) classify(evt *RawEvent) {
	if resp, ok := evt.Data["response"].(map[string]any); ok {
		if id, _ := resp["id"].(string); id != "" {
			it.responseID = id
		}
	}

	if strings.Contains(evt.Type, "web_search_call") {
		it.handleWebSearch(evt)
		return
	}

	switch evt.Type {
	case "response.output_item.added":
		item, _ := evt.Data["item"].(map[string]any)
		switch itemType, _ := item["type"].(string); itemType {
		case "message":
			// Commentary-phase messages are internal narration, not answer text.
			if id := strings.TrimSpace(stringOr(item, "id")); id != "" {
				phase := strings.ToLower(strings.TrimSpace(stringOr(item, "phase")))
				it.hiddenItems[id] = phase == "commentary"
			}
		case "function_call":
			it.tools.onItemAdded(item)
		}

	case "response.function_call_arguments.delta":
		if frag := it.tools.onArgsDelta(evt.Data); frag != nil {
			it.push(Delta{Kind: KindToolCall, Call: frag})
		}

	case "response.function_call_arguments.done":
		it.tools.onArgsDone(evt.Data)

	case "response.output_item.done":
		item, _ := evt.Data["item"].(map[string]any)
		if itemType, _ := item["type"].(string); itemType == "function_call" {
			if frag := it.tools.onItemDone(item); frag != nil {
				it.push(Delta{Kind: KindToolCall, Call: frag})
			}
		}

	case "response.output_text.delta":
		if id := strings.TrimSpace(stringOr(evt.Data, "item_id")); id != "" && it.hiddenItems[id] {
			return
		}
		text, _ := evt.Data["delta"].(string)
		if text != "" {
			it.push(Delta{Kind: KindText, Text: text})
		}

	case "response.reasoning_summary_part.added":
		if it.sawSummary {
			it.push(Delta{Kind: KindReasoning, Segment: SegmentSummary, ParagraphBreak: true})
		} else {
			it.sawSummary = true
		}

	case "response.reasoning_summary_text.delta":
		if text, _ := evt.Data["delta"].(string); text != "" {
			it.push(Delta{Kind: KindReasoning, Segment: SegmentSummary, Text: text})
		}

	case "response.reasoning_text.delta":
		if text, _ := evt.Data["delta"].(string); text != "" {
			it.push(Delta{Kind: KindReasoning, Segment: SegmentFull, Text: text})
		}

	case "response.content_part.done":
		part, _ := evt.Data["part"].(map[string]any)
		if partType, _ := part["type"].(string); partType != "output_text" {
			return
		}
		if anns := annotationsFromList(part["annotations"]); len(anns) > 0 {
			it.push(Delta{Kind: KindAnnotation, Annotations: anns})
		}

	case "response.output_text.annotation.added":
		raw, _ := evt.Data["annotation"].(map[string]any)
		if ann, ok := annotationFromMap(raw); ok {
			it.push(Delta{Kind: KindAnnotation, Annotations: []types.Annotation{ann}})
		}

	case "response.incomplete":
		it.finishLength = incompleteDueToLength(evt.Data)
		it.finish(evt.Data)

	case "response.failed":
		msg := failureMessage(evt.Data)
		it.push(Delta{Kind: KindFailed, Err: fmt.Errorf("%w: %s", ErrUpstreamProtocol, msg)})

	case "response.completed":
		it.finish(evt.Data)
	}
}

// finish flushes still-open tool calls, the usage delta, and the terminal
// Completed delta.
func (it *Interpreter) finish(data map[string]any) {
	for _, frag := range it.tools.closeRemaining() {
		it.push(Delta{Kind: KindToolCall, Call: frag})
	}
	if usage := usageFromEvent(data); usage != nil {
		it.push(Delta{Kind: KindUsage, Usage: usage})
	}
	reason := FinishStop
	if it.tools.anyClosed {
		reason = FinishToolCalls
	}
	if it.finishLength {
		reason = FinishLength
	}
	it.push(Delta{Kind: KindCompleted, FinishReason: reason})
}

// handleWebSearch folds built-in web search call events into canonical tool
// call deltas. Parameters dribble in across several event types; the call is
// emitted once, when the upstream reports it finished.
func (it *Interpreter) handleWebSearch(evt *RawEvent) {
	callID := strings.TrimSpace(stringOr(evt.Data, "item_id"))
	if callID == "" {
		callID = "ws_call"
	}
	params := it.wsParams[callID]
	if params == nil {
		params = map[string]any{}
		it.wsParams[callID] = params
	}
	mergeSearchParams(params, evt.Data)
	if item, ok := evt.Data["item"].(map[string]any); ok {
		mergeSearchParams(params, item)
	}

	if !strings.HasSuffix(evt.Type, ".completed") && !strings.HasSuffix(evt.Type, ".done") {
		return
	}
	if it.tools.closed[callID] {
		return
	}
	it.tools.closed[callID] = true
	it.tools.anyClosed = true
	args := serializeArgs(params, true)
	it.push(Delta{Kind: KindToolCall, Call: &ToolCallFragment{
		CallID:       callID,
		Name:         "web_search",
		ArgsFragment: args,
		Done:         true,
		Arguments:    args,
	}})
}

func mergeSearchParams(dst, src map[string]any) {
	for _, key := range []string{"parameters", "args", "arguments", "input"} {
		if params, ok := src[key].(map[string]any); ok {
			maps.Copy(dst, params)
		}
	}
	for _, key := range []string{"query", "q"} {
		if q, ok := src[key].(string); ok {
			if _, exists := dst["query"]; !exists {
				dst["query"] = q
			}
		}
	}
}

func failureMessage(data map[string]any) string {
	resp, _ := data["response"].(map[string]any)
	if errObj, ok := resp["error"].(map[string]any); ok {
		if msg, _ := errObj["message"].(string); strings.TrimSpace(msg) != "" {
			return strings.TrimSpace(msg)
		}
	}
	return "response.failed"
}

func incompleteDueToLength(data map[string]any) bool {
	resp, _ := data["response"].(map[string]any)
	details, _ := resp["incomplete_details"].(map[string]any)
	reason, _ := details["reason"].(string)
	return strings.Contains(reason, "token") || reason == "length" || reason == "max_output_tokens"
}

func annotationsFromList(raw any) []types.Annotation {
	list, _ := raw.([]any)
	var out []types.Annotation
	for _, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if ann, ok := annotationFromMap(m); ok {
			out = append(out, ann)
		}
	}
	return out
}

// annotationFromMap accepts both the flat Responses form and the nested chat
// form of a url_citation annotation.
func annotationFromMap(m map[string]any) (types.Annotation, bool) {
	if m == nil {
		return types.Annotation{}, false
	}
	body := m
	if nested, ok := m["url_citation"].(map[string]any); ok {
		body = nested
	}
	url := strings.TrimSpace(stringOr(body, "url"))
	if url == "" {
		return types.Annotation{}, false
	}
	return types.Annotation{
		Type: "url_citation",
		URLCitation: &types.URLCitation{
			URL:        url,
			Title:      strings.TrimSpace(stringOr(body, "title")),
			StartIndex: int(int64FromAny(body["start_index"])),
			EndIndex:   int(int64FromAny(body["end_index"])),
		},
	}, true
}

func int64FromAny(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int:
		return int64(n)
	case int64:
		return n
	}
	return 0
}

// usageFromEvent extracts usage statistics from a terminal event, or nil.
func usageFromEvent(data map[string]any) *types.Usage {
	resp, _ := data["response"].(map[string]any)
	usage, _ := resp["usage"].(map[string]any)
	if usage == nil {
		return nil
	}
	pt := int64FromAny(usage["input_tokens"])
	ct := int64FromAny(usage["output_tokens"])
	tt := int64FromAny(usage["total_tokens"])
	if tt == 0 {
		tt = pt + ct
	}
	u := &types.Usage{PromptTokens: pt, CompletionTokens: ct, TotalTokens: tt}
	if ctd, ok := usage["output_tokens_details"].(map[string]any); ok && len(ctd) > 0 {
		u.CompletionTokensDetails = &types.CompletionTokensDetails{
			ReasoningTokens: int64FromAny(ctd["reasoning_tokens"]),
		}
	}
	if ptd, ok := usage["input_tokens_details"].(map[string]any); ok && len(ptd) > 0 {
		u.PromptTokensDetails = &types.PromptTokensDetails{
			CachedTokens: int64FromAny(ptd["cached_tokens"]),
		}
	}
	return u
}
