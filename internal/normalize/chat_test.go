package normalize

import (
	"errors"
	"strings"
	"testing"

	"github.com/llmgate/llmgate/internal/types"
)

func TestFromChatBasic(t *testing.T) {
	body := []byte(`{
		"model": "gpt-5",
		"messages": [
			{"role": "system", "content": "Be terse."},
			{"role": "user", "content": "Hi"}
		],
		"stream": true,
		"stream_options": {"include_usage": true}
	}`)

	cr, err := FromChat(body, "think-tags")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cr.Shape != types.ShapeChat || cr.RequestedModel != "gpt-5" {
		t.Errorf("envelope: %+v", cr)
	}
	if !cr.Stream || !cr.IncludeUsage {
		t.Errorf("stream flags: stream=%v usage=%v", cr.Stream, cr.IncludeUsage)
	}
	if cr.Instructions != "Be terse." {
		t.Errorf("instructions: %q", cr.Instructions)
	}
	if len(cr.Input) != 1 || cr.Input[0].Role != "user" || cr.Input[0].Content[0].Text != "Hi" {
		t.Errorf("input: %+v", cr.Input)
	}
	if cr.ReasoningCompat != "think-tags" {
		t.Errorf("compat: %q", cr.ReasoningCompat)
	}
}

func TestFromChatSystemAndDeveloperMerged(t *testing.T) {
	body := []byte(`{
		"model": "gpt-5",
		"messages": [
			{"role": "system", "content": "one"},
			{"role": "developer", "content": "two"},
			{"role": "user", "content": "q"}
		]
	}`)
	cr, err := FromChat(body, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cr.Instructions != "one\n\ntwo" {
		t.Errorf("instructions: %q", cr.Instructions)
	}
	for _, item := range cr.Input {
		if item.Role == "system" || item.Role == "developer" {
			t.Errorf("system content forwarded as input: %+v", item)
		}
	}
}

func TestFromChatMultimodalParts(t *testing.T) {
	body := []byte(`{
		"model": "gpt-5",
		"messages": [
			{"role": "user", "content": [
				{"type": "text", "text": "look at this"},
				{"type": "image_url", "image_url": {"url": "https://example.com/a.png"}}
			]}
		]
	}`)
	cr, err := FromChat(body, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	parts := cr.Input[0].Content
	if len(parts) != 2 {
		t.Fatalf("parts: %+v", parts)
	}
	if parts[0].Type != "input_text" || parts[1].Type != "input_image" {
		t.Errorf("part types: %q %q", parts[0].Type, parts[1].Type)
	}
	if parts[1].ImageURL != "https://example.com/a.png" {
		t.Errorf("image url: %q", parts[1].ImageURL)
	}
}

func TestFromChatToolRoundTrip(t *testing.T) {
	body := []byte(`{
		"model": "gpt-5",
		"messages": [
			{"role": "user", "content": "weather?"},
			{"role": "assistant", "tool_calls": [
				{"id": "call_1", "type": "function", "function": {"name": "get_weather", "arguments": "{\"city\":\"Paris\"}"}}
			]},
			{"role": "tool", "tool_call_id": "call_1", "content": "sunny"}
		],
		"tools": [
			{"type": "function", "function": {"name": "get_weather", "description": "d"}}
		]
	}`)
	cr, err := FromChat(body, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var kinds []string
	for _, item := range cr.Input {
		kinds = append(kinds, item.Type)
	}
	want := "message,function_call,function_call_output"
	if got := strings.Join(kinds, ","); got != want {
		t.Errorf("item order: got %s want %s", got, want)
	}

	fc := cr.Input[1]
	if fc.Name != "get_weather" || fc.CallID != "call_1" || fc.Arguments != `{"city":"Paris"}` {
		t.Errorf("function_call item: %+v", fc)
	}
	out := cr.Input[2]
	if out.CallID != "call_1" || out.Output != "sunny" {
		t.Errorf("function_call_output item: %+v", out)
	}

	if len(cr.Tools) != 1 || cr.Tools[0].Name != "get_weather" {
		t.Errorf("tools: %+v", cr.Tools)
	}
	if cr.Tools[0].Parameters == nil {
		t.Error("missing default parameters schema")
	}
}

func TestFromChatAssistantContentIsOutputText(t *testing.T) {
	body := []byte(`{
		"model": "gpt-5",
		"messages": [
			{"role": "user", "content": "a"},
			{"role": "assistant", "content": "b"},
			{"role": "user", "content": "c"}
		]
	}`)
	cr, err := FromChat(body, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cr.Input[1].Content[0].Type != "output_text" {
		t.Errorf("assistant part type: %q", cr.Input[1].Content[0].Type)
	}
}

func TestFromChatReasoningOverrides(t *testing.T) {
	body := []byte(`{"model":"gpt-5","messages":[{"role":"user","content":"x"}],"reasoning_effort":"high"}`)
	cr, err := FromChat(body, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cr.Reasoning == nil || cr.Reasoning.Effort != "high" {
		t.Errorf("reasoning: %+v", cr.Reasoning)
	}

	body = []byte(`{"model":"gpt-5","messages":[{"role":"user","content":"x"}],"reasoning":{"effort":"low","summary":"detailed"},"reasoning_effort":"high"}`)
	cr, _ = FromChat(body, "")
	if cr.Reasoning.Effort != "low" || cr.Reasoning.Summary != "detailed" {
		t.Errorf("nested reasoning must win: %+v", cr.Reasoning)
	}
}

func TestFromChatCompatOverride(t *testing.T) {
	body := []byte(`{"model":"gpt-5","messages":[{"role":"user","content":"x"}],"reasoning_compat":"o3"}`)
	cr, err := FromChat(body, "think-tags")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cr.ReasoningCompat != "o3" {
		t.Errorf("compat: %q", cr.ReasoningCompat)
	}
}

func TestFromChatRejections(t *testing.T) {
	cases := []string{
		`not json`,
		`{"messages":[{"role":"user","content":"x"}]}`,
		`{"model":"gpt-5"}`,
		`{"model":"gpt-5","messages":[]}`,
	}
	for _, body := range cases {
		if _, err := FromChat([]byte(body), ""); !errors.Is(err, ErrMalformed) {
			t.Errorf("body %q: expected ErrMalformed, got %v", body, err)
		}
	}
}

func TestFromText(t *testing.T) {
	body := []byte(`{"model":"gpt-5","prompt":"complete me","stream":true,"stream_options":{"include_usage":true}}`)
	cr, err := FromText(body, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cr.Shape != types.ShapeText || !cr.Stream || !cr.IncludeUsage {
		t.Errorf("envelope: %+v", cr)
	}
	if cr.Input[0].Content[0].Text != "complete me" {
		t.Errorf("prompt: %+v", cr.Input)
	}
}

func TestFromTextPromptArray(t *testing.T) {
	body := []byte(`{"model":"gpt-5","prompt":["first","second"]}`)
	cr, err := FromText(body, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cr.Input[0].Content[0].Text != "first\nsecond" {
		t.Errorf("joined prompt: %q", cr.Input[0].Content[0].Text)
	}
}

func TestFromTextRejections(t *testing.T) {
	for _, body := range []string{`{}`, `{"model":"gpt-5"}`, `{"prompt":"x"}`} {
		if _, err := FromText([]byte(body), ""); !errors.Is(err, ErrMalformed) {
			t.Errorf("body %q: expected ErrMalformed, got %v", body, err)
		}
	}
}
