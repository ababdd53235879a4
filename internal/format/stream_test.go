package format

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/llmgate/llmgate/internal/event"
	"github.com/llmgate/llmgate/internal/types"
)

// fakeSource replays a fixed delta sequence.
type fakeSource struct {
	id     string
	deltas []event.Delta
	pos    int
}

func (f *fakeSource) Next() (event.Delta, bool) {
	if f.pos >= len(f.deltas) {
		return event.Delta{}, false
	}
	d := f.deltas[f.pos]
	f.pos++
	return d, true
}

func (f *fakeSource) ResponseID() string { return f.id }

func textDelta(s string) event.Delta {
	return event.Delta{Kind: event.KindText, Text: s}
}

func summaryDelta(s string) event.Delta {
	return event.Delta{Kind: event.KindReasoning, Segment: event.SegmentSummary, Text: s}
}

func completedDelta(reason string) event.Delta {
	return event.Delta{Kind: event.KindCompleted, FinishReason: reason}
}

// chatChunks parses the SSE body written by a ChatStream.
func chatChunks(t *testing.T, body string) []types.ChatCompletionChunk {
	t.Helper()
	var chunks []types.ChatCompletionChunk
	for _, line := range strings.Split(body, "\n") {
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok || data == "[DONE]" {
			continue
		}
		var chunk types.ChatCompletionChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) > 0 || chunk.Usage != nil {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}

func chatContent(chunks []types.ChatCompletionChunk) string {
	var sb strings.Builder
	for _, c := range chunks {
		for _, ch := range c.Choices {
			sb.WriteString(ch.Delta.Content)
		}
	}
	return sb.String()
}

func runChat(deltas []event.Delta, opts Options) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	NewChatStream(w, opts).Run(&fakeSource{id: "resp_test", deltas: deltas})
	return w
}
