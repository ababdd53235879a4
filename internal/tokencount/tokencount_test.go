package tokencount

import (
	"testing"

	"github.com/llmgate/llmgate/internal/types"
)

func TestCount(t *testing.T) {
	if got := Count(""); got != 0 {
		t.Errorf("empty string: %d", got)
	}
	if got := Count("Hello, world"); got <= 0 {
		t.Errorf("expected a positive count, got %d", got)
	}
	// More text never counts fewer tokens.
	if Count("one two three four five") < Count("one") {
		t.Error("count not monotone in input length")
	}
}

func TestEstimateUsage(t *testing.T) {
	input := []types.InputItem{
		{
			Type:    "message",
			Role:    "user",
			Content: []types.Part{{Type: "input_text", Text: "What is the weather?"}},
		},
		{Type: "function_call", Name: "get_weather", Arguments: `{"city":"Oslo"}`},
		{Type: "function_call_output", Output: `{"temp":12}`},
	}
	u := EstimateUsage(input, "You are terse.", "It is 12 degrees.")

	if u.PromptTokens <= 0 || u.CompletionTokens <= 0 {
		t.Fatalf("estimate: %+v", u)
	}
	if u.TotalTokens != u.PromptTokens+u.CompletionTokens {
		t.Errorf("total %d != %d + %d", u.TotalTokens, u.PromptTokens, u.CompletionTokens)
	}

	// Instructions contribute to the prompt side.
	bare := EstimateUsage(input, "", "It is 12 degrees.")
	if bare.PromptTokens >= u.PromptTokens {
		t.Errorf("instructions not counted: %d vs %d", bare.PromptTokens, u.PromptTokens)
	}
}
