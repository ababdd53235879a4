package format

import (
	"net/http"

	"github.com/llmgate/llmgate/internal/event"
	"github.com/llmgate/llmgate/internal/types"
)

// Synthetic durations reported on terminal Ollama chunks. Clients divide by
// these, so they must be nonzero.
var ollamaEvalDefaults = types.OllamaEval{
	TotalDuration:      1_000_000_000,
	LoadDuration:       10_000_000,
	PromptEvalDuration: 100_000_000,
	EvalDuration:       900_000_000,
}

// OllamaStream translates the canonical delta sequence into Ollama NDJSON
// chunks. Tool calls are emitted whole once assembled; Ollama clients do not
// consume argument fragments.
type OllamaStream struct {
	nw     *ndjsonWriter
	opts   Options
	think  thinkState
	compat string
	usage  *types.Usage
	calls  []types.ToolCall
}

// NewOllamaStream creates an Ollama chat streaming formatter.
func NewOllamaStream(w http.ResponseWriter, opts Options) *OllamaStream {
	return &OllamaStream{
		nw:     newNDJSONWriter(w, "ollama"),
		opts:   opts,
		compat: NormalizeCompat(opts.ReasoningCompat),
	}
}

// Run consumes src until its terminal delta and writes the chunk sequence.
func (f *OllamaStream) Run(src event.Source) {
	for {
		d, ok := src.Next()
		if !ok {
			f.writeTerminal("stop")
			return
		}
		switch d.Kind {
		case event.KindText:
			if tag, ok := f.think.closeTag(); ok && f.compat == CompatThinkTags {
				f.writeContent(tag)
			}
			f.writeContent(d.Text)

		case event.KindReasoning:
			if f.compat != CompatThinkTags {
				continue
			}
			for _, piece := range f.think.onReasoning(d.Text, d.ParagraphBreak) {
				f.writeContent(piece)
			}

		case event.KindToolCall:
			if call := ollamaToolCall(d.Call, len(f.calls)); call != nil {
				f.calls = append(f.calls, *call)
				f.writeMessage(types.OllamaMessage{Role: "assistant", ToolCalls: []types.ToolCall{*call}}, false, "")
			}

		case event.KindUsage:
			f.usage = d.Usage

		case event.KindCompleted:
			if tag, ok := f.think.closeTag(); ok && f.compat == CompatThinkTags {
				f.writeContent(tag)
			}
			f.writeTerminal(ollamaDoneReason(d.FinishReason))
			return

		case event.KindFailed:
			msg := "upstream error"
			if d.Err != nil {
				msg = d.Err.Error()
			}
			if f.nw.wroteAny {
				if tag, ok := f.think.closeTag(); ok && f.compat == CompatThinkTags {
					f.writeContent(tag)
				}
				f.writeTerminal("stop")
			}
			f.nw.writeJSON(map[string]string{"error": msg})
			return
		}
	}
}

func (f *OllamaStream) writeContent(text string) {
	if text == "" {
		return
	}
	f.writeMessage(types.OllamaMessage{Role: "assistant", Content: text}, false, "")
}

func (f *OllamaStream) writeTerminal(reason string) {
	f.writeMessage(types.OllamaMessage{Role: "assistant"}, true, reason)
}

func (f *OllamaStream) writeMessage(msg types.OllamaMessage, done bool, reason string) {
	chunk := types.OllamaStreamChunk{
		Model:      f.opts.Model,
		CreatedAt:  f.opts.CreatedAt,
		Message:    msg,
		Done:       done,
		DoneReason: reason,
	}
	if done {
		chunk.OllamaEval = ollamaEvalWithUsage(f.usage)
	}
	f.nw.writeJSON(chunk)
}

// ollamaToolCall converts a completed tool-call fragment. Fragments that are
// not yet done are skipped for this shape.
func ollamaToolCall(frag *event.ToolCallFragment, index int) *types.ToolCall {
	if frag == nil || !frag.Done {
		return nil
	}
	return &types.ToolCall{
		Index:    index,
		ID:       frag.CallID,
		Type:     "function",
		Function: types.FunctionCall{Name: frag.Name, Arguments: frag.Arguments},
	}
}

func ollamaDoneReason(finish string) string {
	if finish == event.FinishLength {
		return "length"
	}
	return "stop"
}

func ollamaEvalWithUsage(u *types.Usage) types.OllamaEval {
	eval := ollamaEvalDefaults
	if u != nil {
		eval.PromptEvalCount = u.PromptTokens
		eval.EvalCount = u.CompletionTokens
	}
	return eval
}
