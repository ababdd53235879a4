package format

import (
	"net/http"

	"github.com/llmgate/llmgate/internal/event"
	"github.com/llmgate/llmgate/internal/types"
)

// TextStream translates the canonical delta sequence into legacy text
// completion chunks. The legacy surface has no tool-call or annotation
// channel; those deltas are dropped. Reasoning is inlined with <think> tags
// in the default compat mode and dropped otherwise.
type TextStream struct {
	sw     *sseWriter
	opts   Options
	src    event.Source
	think  thinkState
	inline bool
	usage  *types.Usage
}

// NewTextStream creates a legacy-completions streaming formatter.
func NewTextStream(w http.ResponseWriter, opts Options) *TextStream {
	return &TextStream{
		sw:     newSSEWriter(w, "text"),
		opts:   opts,
		inline: NormalizeCompat(opts.ReasoningCompat) == CompatThinkTags,
	}
}

// Run consumes src until its terminal delta and writes the chunk sequence.
func (f *TextStream) Run(src event.Source) {
	f.src = src
	for {
		d, ok := src.Next()
		if !ok {
			f.writeFinish(event.FinishStop)
			f.sw.writeDone()
			return
		}
		switch d.Kind {
		case event.KindText:
			if tag, ok := f.think.closeTag(); ok && f.inline {
				f.writeText(tag)
			}
			f.writeText(d.Text)

		case event.KindReasoning:
			if !f.inline {
				continue
			}
			for _, piece := range f.think.onReasoning(d.Text, d.ParagraphBreak) {
				f.writeText(piece)
			}

		case event.KindUsage:
			f.usage = d.Usage

		case event.KindCompleted:
			if tag, ok := f.think.closeTag(); ok && f.inline {
				f.writeText(tag)
			}
			reason := d.FinishReason
			if reason == event.FinishToolCalls {
				reason = event.FinishStop
			}
			f.writeFinish(reason)
			if f.opts.IncludeUsage && f.usage != nil {
				chunk := f.chunk("", nil)
				chunk.Usage = f.usage
				f.sw.writeJSON(chunk)
			}
			f.sw.writeDone()
			return

		case event.KindFailed:
			msg := "upstream error"
			if d.Err != nil {
				msg = d.Err.Error()
			}
			if f.sw.wroteAny {
				if tag, ok := f.think.closeTag(); ok && f.inline {
					f.writeText(tag)
				}
				f.writeFinish(event.FinishStop)
			}
			f.sw.writeJSON(types.ErrorResponse{Error: types.ErrorDetail{Message: msg}})
			f.sw.writeDone()
			return
		}
	}
}

func (f *TextStream) responseID() string {
	if id := f.src.ResponseID(); id != "" {
		return id
	}
	if f.opts.ResponseID != "" {
		return f.opts.ResponseID
	}
	return "cmpl-stream"
}

func (f *TextStream) chunk(text string, finish *string) types.TextCompletionChunk {
	return types.TextCompletionChunk{
		ID:      f.responseID(),
		Object:  "text_completion",
		Created: f.opts.Created,
		Model:   f.opts.Model,
		Choices: []types.TextChunkChoice{{Index: 0, Text: text, FinishReason: finish}},
	}
}

func (f *TextStream) writeText(text string) {
	if text == "" {
		return
	}
	f.sw.writeJSON(f.chunk(text, nil))
}

func (f *TextStream) writeFinish(reason string) {
	f.sw.writeJSON(f.chunk("", types.StringPtr(reason)))
}
