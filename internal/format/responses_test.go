package format

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/llmgate/llmgate/internal/event"
	"github.com/llmgate/llmgate/internal/types"
)

func runResponses(deltas []event.Delta, opts Options) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	NewResponsesStream(w, opts).Run(&fakeSource{id: "resp_test", deltas: deltas})
	return w
}

// responseEvents parses named SSE events into (name, data) pairs.
func responseEvents(t *testing.T, body string) []struct {
	Name string
	Data map[string]any
} {
	t.Helper()
	var out []struct {
		Name string
		Data map[string]any
	}
	var name string
	for _, line := range strings.Split(body, "\n") {
		if n, ok := strings.CutPrefix(line, "event: "); ok {
			name = n
			continue
		}
		if d, ok := strings.CutPrefix(line, "data: "); ok {
			var data map[string]any
			if err := json.Unmarshal([]byte(d), &data); err != nil {
				t.Fatalf("invalid event data %q: %v", d, err)
			}
			out = append(out, struct {
				Name string
				Data map[string]any
			}{name, data})
		}
	}
	return out
}

func TestResponsesStreamFraming(t *testing.T) {
	w := runResponses([]event.Delta{
		textDelta("Hel"),
		textDelta("lo"),
		{Kind: event.KindUsage, Usage: &types.Usage{PromptTokens: 4, CompletionTokens: 2, TotalTokens: 6}},
		completedDelta(event.FinishStop),
	}, Options{Model: "gpt-5"})

	events := responseEvents(t, w.Body.String())
	if len(events) < 4 {
		t.Fatalf("too few events: %d", len(events))
	}
	if events[0].Name != "response.created" {
		t.Errorf("first event: got %q", events[0].Name)
	}
	last := events[len(events)-1]
	if last.Name != "response.completed" {
		t.Errorf("last event: got %q", last.Name)
	}

	resp, _ := last.Data["response"].(map[string]any)
	if resp["id"] != "resp_test" || resp["status"] != "completed" {
		t.Errorf("completed response envelope: %v", resp)
	}
	usage, _ := resp["usage"].(map[string]any)
	if usage["total_tokens"] != float64(6) {
		t.Errorf("usage: %v", usage)
	}

	// The completed object carries the accumulated text.
	raw, _ := json.Marshal(resp["output"])
	if !strings.Contains(string(raw), "Hello") {
		t.Errorf("accumulated text missing from output: %s", raw)
	}

	if strings.Contains(w.Body.String(), "[DONE]") {
		t.Error("Responses framing must not emit the [DONE] sentinel")
	}
}

func TestResponsesStreamForwardsDeltas(t *testing.T) {
	w := runResponses([]event.Delta{
		{Kind: event.KindReasoning, Segment: event.SegmentSummary, ParagraphBreak: true},
		summaryDelta("why"),
		{Kind: event.KindReasoning, Segment: event.SegmentFull, Text: "chain"},
		textDelta("answer"),
		completedDelta(event.FinishStop),
	}, Options{})

	var names []string
	for _, e := range responseEvents(t, w.Body.String()) {
		names = append(names, e.Name)
	}
	joined := strings.Join(names, ",")
	for _, want := range []string{
		"response.reasoning_summary_part.added",
		"response.reasoning_summary_text.delta",
		"response.reasoning_text.delta",
		"response.output_text.delta",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("missing %s in %s", want, joined)
		}
	}
}

func TestResponsesStreamToolCallLifecycle(t *testing.T) {
	w := runResponses([]event.Delta{
		{Kind: event.KindToolCall, Call: &event.ToolCallFragment{CallID: "call_1", Name: "f", ArgsFragment: `{"a":`}},
		{Kind: event.KindToolCall, Call: &event.ToolCallFragment{CallID: "call_1", ArgsFragment: `1}`}},
		{Kind: event.KindToolCall, Call: &event.ToolCallFragment{CallID: "call_1", Done: true, Arguments: `{"a":1}`}},
		completedDelta(event.FinishToolCalls),
	}, Options{})

	var added, deltas, done int
	for _, e := range responseEvents(t, w.Body.String()) {
		switch e.Name {
		case "response.output_item.added":
			added++
		case "response.function_call_arguments.delta":
			deltas++
		case "response.output_item.done":
			done++
			item, _ := e.Data["item"].(map[string]any)
			if item["arguments"] != `{"a":1}` {
				t.Errorf("done item arguments: %v", item)
			}
		}
	}
	if added != 1 {
		t.Errorf("announcements: got %d want 1", added)
	}
	if deltas != 2 {
		t.Errorf("argument deltas: got %d want 2", deltas)
	}
	if done != 1 {
		t.Errorf("done events: got %d want 1", done)
	}
}

func TestResponsesStreamFailed(t *testing.T) {
	w := runResponses([]event.Delta{
		textDelta("partial"),
		{Kind: event.KindFailed, Err: errors.New("boom")},
	}, Options{})

	events := responseEvents(t, w.Body.String())
	last := events[len(events)-1]
	if last.Name != "response.failed" {
		t.Fatalf("last event: got %q", last.Name)
	}
	resp, _ := last.Data["response"].(map[string]any)
	errObj, _ := resp["error"].(map[string]any)
	if errObj["message"] != "boom" {
		t.Errorf("error message: %v", errObj)
	}
}
