package format

import (
	"net/http"

	"github.com/llmgate/llmgate/internal/event"
	"github.com/llmgate/llmgate/internal/types"
)

// ChatStream translates the canonical delta sequence into OpenAI chat
// completion chunks over SSE.
type ChatStream struct {
	sw   *sseWriter
	opts Options

	src    event.Source
	compat string
	think  thinkState

	toolIndex map[string]int
	nextIndex int

	annotations []types.Annotation
	usage       *types.Usage
}

// NewChatStream creates a chat-completions streaming formatter.
func NewChatStream(w http.ResponseWriter, opts Options) *ChatStream {
	return &ChatStream{
		sw:        newSSEWriter(w, "chat"),
		opts:      opts,
		compat:    NormalizeCompat(opts.ReasoningCompat),
		toolIndex: map[string]int{},
	}
}

// Run consumes src until its terminal delta and writes the chunk sequence.
// Chunks are produced in delta order; exactly one carries a finish_reason.
func (f *ChatStream) Run(src event.Source) {
	f.src = src
	for {
		d, ok := src.Next()
		if !ok {
			// Defensive: a well-formed source always ends with a terminal.
			f.writeFinish(event.FinishStop)
			f.sw.writeDone()
			return
		}
		switch d.Kind {
		case event.KindText:
			if tag, ok := f.think.closeTag(); ok {
				f.writeContent(tag)
			}
			f.writeContent(d.Text)

		case event.KindReasoning:
			f.writeReasoning(d)

		case event.KindToolCall:
			f.writeToolCall(d.Call)

		case event.KindAnnotation:
			f.annotations = append(f.annotations, d.Annotations...)

		case event.KindUsage:
			f.usage = d.Usage

		case event.KindCompleted:
			if tag, ok := f.think.closeTag(); ok {
				f.writeContent(tag)
			}
			f.flushAnnotations()
			f.writeFinish(d.FinishReason)
			if f.opts.IncludeUsage && f.usage != nil {
				f.writeChunkWithUsage()
			}
			f.sw.writeDone()
			return

		case event.KindFailed:
			f.fail(d.Err)
			return
		}
	}
}

// fail ends the stream after a mid-stream upstream failure. Content already
// delivered is never retracted: if anything was flushed the stream closes
// with a normal stop marker plus a trailing error notice.
func (f *ChatStream) fail(err error) {
	msg := "upstream error"
	if err != nil {
		msg = err.Error()
	}
	if f.sw.wroteAny {
		if tag, ok := f.think.closeTag(); ok {
			f.writeContent(tag)
		}
		f.flushAnnotations()
		f.writeFinish(event.FinishStop)
	}
	f.sw.writeJSON(types.ErrorResponse{Error: types.ErrorDetail{Message: msg}})
	f.sw.writeDone()
}

func (f *ChatStream) responseID() string {
	if id := f.src.ResponseID(); id != "" {
		return id
	}
	if f.opts.ResponseID != "" {
		return f.opts.ResponseID
	}
	return "chatcmpl-stream"
}

func (f *ChatStream) chunk(delta types.ChatDelta, finish *string) types.ChatCompletionChunk {
	return types.ChatCompletionChunk{
		ID:      f.responseID(),
		Object:  "chat.completion.chunk",
		Created: f.opts.Created,
		Model:   f.opts.Model,
		Choices: []types.ChatChunkChoice{{Index: 0, Delta: delta, FinishReason: finish}},
	}
}

func (f *ChatStream) writeContent(text string) {
	if text == "" {
		return
	}
	f.sw.writeJSON(f.chunk(types.ChatDelta{Content: text}, nil))
}

func (f *ChatStream) writeFinish(reason string) {
	f.sw.writeJSON(f.chunk(types.ChatDelta{}, types.StringPtr(reason)))
}

func (f *ChatStream) writeChunkWithUsage() {
	chunk := f.chunk(types.ChatDelta{}, nil)
	chunk.Usage = f.usage
	f.sw.writeJSON(chunk)
}

func (f *ChatStream) flushAnnotations() {
	if len(f.annotations) == 0 {
		return
	}
	f.sw.writeJSON(f.chunk(types.ChatDelta{Annotations: f.annotations}, nil))
	f.annotations = nil
}

func (f *ChatStream) writeReasoning(d event.Delta) {
	switch f.compat {
	case CompatO3:
		if d.ParagraphBreak {
			f.writeReasoningContent("\n")
			return
		}
		f.writeReasoningContent(d.Text)
	case CompatLegacy:
		if d.ParagraphBreak || d.Text == "" {
			return
		}
		if d.Segment == event.SegmentSummary {
			f.sw.writeJSON(f.chunk(types.ChatDelta{ReasoningSummary: d.Text, Reasoning: d.Text}, nil))
		} else {
			f.sw.writeJSON(f.chunk(types.ChatDelta{Reasoning: d.Text}, nil))
		}
	default: // think-tags
		for _, piece := range f.think.onReasoning(d.Text, d.ParagraphBreak) {
			f.writeContent(piece)
		}
	}
}

func (f *ChatStream) writeReasoningContent(text string) {
	if text == "" {
		return
	}
	f.sw.writeJSON(f.chunk(types.ChatDelta{
		Reasoning: types.ReasoningContent{Content: []types.ReasoningPart{{Type: "text", Text: text}}},
	}, nil))
}

// writeToolCall emits one tool-call delta chunk. The index is assigned on
// first sight of a call_id and stays stable for the turn.
func (f *ChatStream) writeToolCall(call *event.ToolCallFragment) {
	if call == nil {
		return
	}
	idx, ok := f.toolIndex[call.CallID]
	if !ok {
		idx = f.nextIndex
		f.toolIndex[call.CallID] = idx
		f.nextIndex++
	}
	if call.Name == "" && call.ArgsFragment == "" {
		return
	}
	tc := types.ToolCall{Index: idx, Type: "function", Function: types.FunctionCall{Arguments: call.ArgsFragment}}
	if call.Name != "" {
		tc.ID = call.CallID
		tc.Function.Name = call.Name
	}
	f.sw.writeJSON(f.chunk(types.ChatDelta{ToolCalls: []types.ToolCall{tc}}, nil))
}
