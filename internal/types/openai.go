package types

import "encoding/json"

// --- Request types ---

// ChatCompletionRequest is an OpenAI chat completions request.
type ChatCompletionRequest struct {
	Model             string          `json:"model"`
	Messages          []ChatMessage   `json:"messages,omitempty"`
	Stream            bool            `json:"stream,omitempty"`
	StreamOptions     *StreamOptions  `json:"stream_options,omitempty"`
	Tools             []ChatTool      `json:"tools,omitempty"`
	ToolChoice        any             `json:"tool_choice,omitempty"`
	ParallelToolCalls bool            `json:"parallel_tool_calls,omitempty"`
	Reasoning         *ReasoningParam `json:"reasoning,omitempty"`
	ReasoningEffort   string          `json:"reasoning_effort,omitempty"`
	ResponseFormat    *ChatRespFormat `json:"response_format,omitempty"`
}

// ChatMessage is one OpenAI chat message.
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    any        `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ChatContentPart is one part of a multimodal content array.
type ChatContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL holds an image URL or data URI reference.
type ImageURL struct {
	URL string `json:"url"`
}

// ChatTool is a tool declaration in the OpenAI nested format.
type ChatTool struct {
	Type     string       `json:"type"`
	Function *FunctionDef `json:"function,omitempty"`
}

// FunctionDef defines a function tool.
type FunctionDef struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Strict      *bool  `json:"strict,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

// ChatRespFormat is the OpenAI response_format request field.
type ChatRespFormat struct {
	Type       string          `json:"type"`
	JSONSchema *ChatJSONSchema `json:"json_schema,omitempty"`
}

// ChatJSONSchema carries a named JSON schema for structured output.
type ChatJSONSchema struct {
	Name   string `json:"name,omitempty"`
	Schema any    `json:"schema,omitempty"`
	Strict *bool  `json:"strict,omitempty"`
}

// ToolCall is a tool call in a message or a streaming delta.
type ToolCall struct {
	Index    int          `json:"index,omitempty"`
	ID       string       `json:"id,omitempty"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall holds the function name and arguments string.
type FunctionCall struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments"`
}

// UnmarshalJSON accepts arguments as either a JSON-encoded string (OpenAI)
// or an inline object (Ollama).
func (fc *FunctionCall) UnmarshalJSON(data []byte) error {
	var wire struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	fc.Name = wire.Name
	if len(wire.Arguments) == 0 {
		fc.Arguments = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(wire.Arguments, &s); err == nil {
		fc.Arguments = s
		return nil
	}
	fc.Arguments = string(wire.Arguments)
	return nil
}

// StreamOptions holds stream-specific request options.
type StreamOptions struct {
	IncludeUsage bool `json:"include_usage,omitempty"`
}

// --- Response types ---

// ChatCompletionResponse is a non-streaming chat completion response.
type ChatCompletionResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   *Usage       `json:"usage,omitempty"`
}

// ChatChoice is a single choice in a non-streaming response.
type ChatChoice struct {
	Index        int             `json:"index"`
	Message      ChatResponseMsg `json:"message"`
	FinishReason *string         `json:"finish_reason"`
}

// ChatResponseMsg is the assistant message in a non-streaming choice.
type ChatResponseMsg struct {
	Role             string       `json:"role"`
	Content          string       `json:"content"`
	ToolCalls        []ToolCall   `json:"tool_calls,omitempty"`
	Annotations      []Annotation `json:"annotations,omitempty"`
	Reasoning        any          `json:"reasoning,omitempty"`
	ReasoningSummary string       `json:"reasoning_summary,omitempty"`
}

// ChatCompletionChunk is a streaming chat completion chunk.
type ChatCompletionChunk struct {
	ID      string            `json:"id"`
	Object  string            `json:"object"`
	Created int64             `json:"created"`
	Model   string            `json:"model"`
	Choices []ChatChunkChoice `json:"choices"`
	Usage   *Usage            `json:"usage,omitempty"`
}

// ChatChunkChoice is a single choice in a streaming chunk.
type ChatChunkChoice struct {
	Index        int       `json:"index"`
	Delta        ChatDelta `json:"delta"`
	FinishReason *string   `json:"finish_reason"`
}

// ChatDelta holds the incremental payload of a streaming chunk choice.
type ChatDelta struct {
	Role             string       `json:"role,omitempty"`
	Content          string       `json:"content,omitempty"`
	ToolCalls        []ToolCall   `json:"tool_calls,omitempty"`
	Annotations      []Annotation `json:"annotations,omitempty"`
	Reasoning        any          `json:"reasoning,omitempty"`
	ReasoningSummary string       `json:"reasoning_summary,omitempty"`
}

// Annotation is a citation marker over a span of the answer text.
type Annotation struct {
	Type        string       `json:"type"`
	URLCitation *URLCitation `json:"url_citation,omitempty"`
}

// URLCitation references a source URL for a byte range of the final text.
type URLCitation struct {
	URL        string `json:"url"`
	Title      string `json:"title,omitempty"`
	StartIndex int    `json:"start_index"`
	EndIndex   int    `json:"end_index"`
}

// ReasoningContent is the structured reasoning channel ("o3" compat mode).
type ReasoningContent struct {
	Content []ReasoningPart `json:"content"`
}

// ReasoningPart is a single part of structured reasoning content.
type ReasoningPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// TextCompletionResponse is a non-streaming legacy completion response.
type TextCompletionResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []TextChoice `json:"choices"`
	Usage   *Usage       `json:"usage,omitempty"`
}

// TextChoice is a single choice in a legacy completion response.
type TextChoice struct {
	Index        int     `json:"index"`
	Text         string  `json:"text"`
	FinishReason *string `json:"finish_reason"`
	Logprobs     any     `json:"logprobs"`
}

// TextCompletionChunk is a streaming legacy completion chunk.
type TextCompletionChunk struct {
	ID      string            `json:"id"`
	Object  string            `json:"object"`
	Created int64             `json:"created"`
	Model   string            `json:"model"`
	Choices []TextChunkChoice `json:"choices"`
	Usage   *Usage            `json:"usage,omitempty"`
}

// TextChunkChoice is a single choice in a streaming legacy chunk.
type TextChunkChoice struct {
	Index        int     `json:"index"`
	Text         string  `json:"text"`
	FinishReason *string `json:"finish_reason"`
}

// ModelList is the response for GET /v1/models.
type ModelList struct {
	Object string        `json:"object"`
	Data   []ModelObject `json:"data"`
}

// ModelObject is a single model entry.
type ModelObject struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
}

// ErrorResponse wraps an OpenAI-format API error.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail holds the error message and optional machine-readable type.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
}
