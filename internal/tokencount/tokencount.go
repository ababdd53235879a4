// Package tokencount estimates token counts when the upstream omits usage.
package tokencount

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/llmgate/llmgate/internal/types"
)

var (
	once sync.Once
	enc  tokenizer.Codec
)

func codec() tokenizer.Codec {
	once.Do(func() {
		enc, _ = tokenizer.Get(tokenizer.Cl100kBase)
	})
	return enc
}

// Count estimates tokens in a string. Falls back to a bytes/4 heuristic if
// the tokenizer is unavailable.
func Count(text string) int64 {
	if text == "" {
		return 0
	}
	if c := codec(); c != nil {
		if ids, _, err := c.Encode(text); err == nil {
			return int64(len(ids))
		}
	}
	return int64(len(text)+3) / 4
}

// EstimateUsage fills a usage block from the request input and the produced
// output text. Used only when the upstream reported no usage.
func EstimateUsage(input []types.InputItem, instructions, output string) *types.Usage {
	var prompt int64
	prompt += Count(instructions)
	for _, item := range input {
		prompt += Count(item.Output)
		prompt += Count(item.Arguments)
		for _, part := range item.Content {
			prompt += Count(part.Text)
		}
	}
	completion := Count(output)
	return &types.Usage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}
}
