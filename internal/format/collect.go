package format

import (
	"strings"

	"github.com/llmgate/llmgate/internal/event"
	"github.com/llmgate/llmgate/internal/types"
)

// Result is a fully drained delta sequence, ready for buffered rendering.
type Result struct {
	ResponseID       string
	Text             string
	ReasoningSummary string
	ReasoningFull    string
	ToolCalls        []types.ToolCall
	Annotations      []types.Annotation
	Usage            *types.Usage
	FinishReason     string
	Err              error
}

// accumulator folds deltas into buffered state. Shared by Collect and the
// Responses streaming formatter, which needs the final response object too.
type accumulator struct {
	text        strings.Builder
	summary     strings.Builder
	full        strings.Builder
	calls       []types.ToolCall
	annotations []types.Annotation
	usage       *types.Usage
	finish      string
	err         error
}

// add folds one delta. It reports whether the delta was terminal.
func (a *accumulator) add(d event.Delta) bool {
	switch d.Kind {
	case event.KindText:
		a.text.WriteString(d.Text)
	case event.KindReasoning:
		buf := &a.full
		if d.Segment == event.SegmentSummary {
			buf = &a.summary
		}
		if d.ParagraphBreak {
			buf.WriteString("\n")
		}
		buf.WriteString(d.Text)
	case event.KindToolCall:
		if d.Call != nil && d.Call.Done {
			a.calls = append(a.calls, types.ToolCall{
				Index:    len(a.calls),
				ID:       d.Call.CallID,
				Type:     "function",
				Function: types.FunctionCall{Name: d.Call.Name, Arguments: d.Call.Arguments},
			})
		}
	case event.KindAnnotation:
		a.annotations = append(a.annotations, d.Annotations...)
	case event.KindUsage:
		a.usage = d.Usage
	case event.KindCompleted:
		a.finish = d.FinishReason
		return true
	case event.KindFailed:
		a.err = d.Err
		return true
	}
	return false
}

func (a *accumulator) result(responseID string) *Result {
	finish := a.finish
	if finish == "" {
		finish = event.FinishStop
	}
	return &Result{
		ResponseID:       responseID,
		Text:             a.text.String(),
		ReasoningSummary: a.summary.String(),
		ReasoningFull:    a.full.String(),
		ToolCalls:        a.calls,
		Annotations:      a.annotations,
		Usage:            a.usage,
		FinishReason:     finish,
		Err:              a.err,
	}
}

// Collect drains src to its terminal delta. A sequence ending in Failed
// yields a Result with Err set; partial content is preserved for callers
// that want it, but buffered endpoints normally discard it.
func Collect(src event.Source) *Result {
	var acc accumulator
	for {
		d, ok := src.Next()
		if !ok {
			break
		}
		if acc.add(d) {
			break
		}
	}
	return acc.result(src.ResponseID())
}

func resolveID(res *Result, opts Options, prefix string) string {
	if res.ResponseID != "" {
		return res.ResponseID
	}
	if opts.ResponseID != "" {
		return opts.ResponseID
	}
	return prefix
}

// BuildChatResponse renders a collected result as a buffered chat completion.
func BuildChatResponse(res *Result, opts Options) types.ChatCompletionResponse {
	msg := types.ChatResponseMsg{
		Role:        "assistant",
		Content:     res.Text,
		ToolCalls:   res.ToolCalls,
		Annotations: res.Annotations,
	}
	ApplyReasoningToMessage(&msg, res.ReasoningSummary, res.ReasoningFull, opts.ReasoningCompat)
	return types.ChatCompletionResponse{
		ID:      resolveID(res, opts, "chatcmpl"),
		Object:  "chat.completion",
		Created: opts.Created,
		Model:   opts.Model,
		Choices: []types.ChatChoice{{Index: 0, Message: msg, FinishReason: types.StringPtr(res.FinishReason)}},
		Usage:   res.Usage,
	}
}

// BuildTextResponse renders a collected result as a buffered legacy
// completion. Tool calls have no representation on this surface.
func BuildTextResponse(res *Result, opts Options) types.TextCompletionResponse {
	text := res.Text
	if NormalizeCompat(opts.ReasoningCompat) == CompatThinkTags {
		if rtxt := joinReasoning(res.ReasoningSummary, res.ReasoningFull); rtxt != "" {
			text = "<think>" + rtxt + "</think>" + text
		}
	}
	finish := res.FinishReason
	if finish == event.FinishToolCalls {
		finish = event.FinishStop
	}
	return types.TextCompletionResponse{
		ID:      resolveID(res, opts, "cmpl"),
		Object:  "text_completion",
		Created: opts.Created,
		Model:   opts.Model,
		Choices: []types.TextChoice{{Index: 0, Text: text, FinishReason: types.StringPtr(finish)}},
		Usage:   res.Usage,
	}
}

// BuildOllamaResponse renders a collected result as the single buffered
// Ollama chat object.
func BuildOllamaResponse(res *Result, opts Options) types.OllamaStreamChunk {
	content := res.Text
	if NormalizeCompat(opts.ReasoningCompat) == CompatThinkTags {
		if rtxt := joinReasoning(res.ReasoningSummary, res.ReasoningFull); rtxt != "" {
			content = "<think>" + rtxt + "</think>" + content
		}
	}
	chunk := types.OllamaStreamChunk{
		Model:      opts.Model,
		CreatedAt:  opts.CreatedAt,
		Message:    types.OllamaMessage{Role: "assistant", Content: content, ToolCalls: res.ToolCalls},
		Done:       true,
		DoneReason: ollamaDoneReason(res.FinishReason),
		OllamaEval: ollamaEvalWithUsage(res.Usage),
	}
	return chunk
}

// BuildResponsesResponse renders a collected result as a buffered Responses
// API object. Reasoning becomes a reasoning item, the answer a message item,
// and each tool call a function_call item, in that order.
func BuildResponsesResponse(res *Result, opts Options) types.ResponsesResponse {
	resp := types.ResponsesResponse{
		ID:        resolveID(res, opts, "resp"),
		Object:    "response",
		CreatedAt: opts.Created,
		Status:    "completed",
		Model:     opts.Model,
	}
	if rtxt := joinReasoning(res.ReasoningSummary, res.ReasoningFull); rtxt != "" {
		resp.Output = append(resp.Output, types.ResponsesOutputItem{
			Type:    "reasoning",
			Summary: []types.ReasoningPart{{Type: "summary_text", Text: rtxt}},
		})
	}
	if res.Text != "" || len(res.ToolCalls) == 0 {
		anns := res.Annotations
		if anns == nil {
			anns = []types.Annotation{}
		}
		resp.Output = append(resp.Output, types.ResponsesOutputItem{
			Type:   "message",
			Role:   "assistant",
			Status: "completed",
			Content: []types.ResponsesOutputContent{
				{Type: "output_text", Text: res.Text, Annotations: anns},
			},
		})
	}
	for _, call := range res.ToolCalls {
		resp.Output = append(resp.Output, types.ResponsesOutputItem{
			Type:      "function_call",
			Status:    "completed",
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
			CallID:    call.ID,
		})
	}
	if res.Usage != nil {
		resp.Usage = &types.ResponsesUsage{
			InputTokens:  res.Usage.PromptTokens,
			OutputTokens: res.Usage.CompletionTokens,
			TotalTokens:  res.Usage.TotalTokens,
		}
	}
	return resp
}
