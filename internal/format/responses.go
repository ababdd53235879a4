package format

import (
	"net/http"

	"github.com/llmgate/llmgate/internal/event"
)

// ResponsesStream re-emits the canonical delta sequence in Responses API SSE
// framing. The final response.completed event carries the full buffered
// object, so the stream accumulates as it forwards.
type ResponsesStream struct {
	sw   *sseWriter
	opts Options
	src  event.Source
	acc  accumulator

	announced map[string]bool
	created   bool
}

// NewResponsesStream creates a Responses API streaming formatter.
func NewResponsesStream(w http.ResponseWriter, opts Options) *ResponsesStream {
	return &ResponsesStream{sw: newSSEWriter(w, "responses"), opts: opts, announced: map[string]bool{}}
}

// Run consumes src until its terminal delta and writes the event sequence.
func (f *ResponsesStream) Run(src event.Source) {
	f.src = src
	for {
		d, ok := src.Next()
		if !ok {
			f.finish()
			return
		}
		f.ensureCreated()
		switch d.Kind {
		case event.KindText:
			if d.Text != "" {
				f.sw.writeEvent("response.output_text.delta", map[string]any{
					"type":  "response.output_text.delta",
					"delta": d.Text,
				})
			}

		case event.KindReasoning:
			f.writeReasoning(d)

		case event.KindToolCall:
			f.writeToolCall(d.Call)

		case event.KindAnnotation:
			for _, ann := range d.Annotations {
				f.sw.writeEvent("response.output_text.annotation.added", map[string]any{
					"type":       "response.output_text.annotation.added",
					"annotation": ann,
				})
			}

		case event.KindFailed:
			msg := "upstream error"
			if d.Err != nil {
				msg = d.Err.Error()
			}
			f.acc.add(d)
			f.sw.writeEvent("response.failed", map[string]any{
				"type": "response.failed",
				"response": map[string]any{
					"id":     f.responseID(),
					"object": "response",
					"status": "failed",
					"error":  map[string]any{"message": msg},
				},
			})
			return
		}
		if f.acc.add(d) {
			f.finish()
			return
		}
	}
}

func (f *ResponsesStream) finish() {
	f.ensureCreated()
	resp := BuildResponsesResponse(f.acc.result(f.src.ResponseID()), f.opts)
	f.sw.writeEvent("response.completed", map[string]any{
		"type":     "response.completed",
		"response": resp,
	})
}

func (f *ResponsesStream) responseID() string {
	if id := f.src.ResponseID(); id != "" {
		return id
	}
	if f.opts.ResponseID != "" {
		return f.opts.ResponseID
	}
	return "resp"
}

func (f *ResponsesStream) ensureCreated() {
	if f.created {
		return
	}
	f.created = true
	f.sw.writeEvent("response.created", map[string]any{
		"type": "response.created",
		"response": map[string]any{
			"id":         f.responseID(),
			"object":     "response",
			"status":     "in_progress",
			"model":      f.opts.Model,
			"created_at": f.opts.Created,
		},
	})
}

func (f *ResponsesStream) writeReasoning(d event.Delta) {
	if d.Segment == event.SegmentSummary {
		if d.ParagraphBreak {
			f.sw.writeEvent("response.reasoning_summary_part.added", map[string]any{
				"type": "response.reasoning_summary_part.added",
			})
		}
		if d.Text != "" {
			f.sw.writeEvent("response.reasoning_summary_text.delta", map[string]any{
				"type":  "response.reasoning_summary_text.delta",
				"delta": d.Text,
			})
		}
		return
	}
	if d.Text != "" {
		f.sw.writeEvent("response.reasoning_text.delta", map[string]any{
			"type":  "response.reasoning_text.delta",
			"delta": d.Text,
		})
	}
}

func (f *ResponsesStream) writeToolCall(call *event.ToolCallFragment) {
	if call == nil {
		return
	}
	if !f.announced[call.CallID] {
		f.announced[call.CallID] = true
		f.sw.writeEvent("response.output_item.added", map[string]any{
			"type": "response.output_item.added",
			"item": map[string]any{
				"type":    "function_call",
				"id":      call.CallID,
				"call_id": call.CallID,
				"name":    call.Name,
				"status":  "in_progress",
			},
		})
	}
	if call.Done {
		f.sw.writeEvent("response.output_item.done", map[string]any{
			"type": "response.output_item.done",
			"item": map[string]any{
				"type":      "function_call",
				"id":        call.CallID,
				"call_id":   call.CallID,
				"name":      call.Name,
				"arguments": call.Arguments,
				"status":    "completed",
			},
		})
		return
	}
	if call.ArgsFragment != "" {
		f.sw.writeEvent("response.function_call_arguments.delta", map[string]any{
			"type":    "response.function_call_arguments.delta",
			"item_id": call.CallID,
			"delta":   call.ArgsFragment,
		})
	}
}
