package types

import "encoding/json"

// ResponsesRequest is an OpenAI Responses API request. Input is kept raw
// because it accepts either a plain string or an item array.
type ResponsesRequest struct {
	Model             string          `json:"model"`
	Input             json.RawMessage `json:"input,omitempty"`
	Instructions      string          `json:"instructions,omitempty"`
	Stream            bool            `json:"stream,omitempty"`
	Tools             []Tool          `json:"tools,omitempty"`
	ToolChoice        any             `json:"tool_choice,omitempty"`
	ParallelToolCalls *bool           `json:"parallel_tool_calls,omitempty"`
	Reasoning         *ReasoningParam `json:"reasoning,omitempty"`
	Text              *ResponsesText  `json:"text,omitempty"`
}

// ResponsesText carries the Responses API output-format configuration.
type ResponsesText struct {
	Format *ResponsesTextFormat `json:"format,omitempty"`
}

// ResponsesTextFormat selects plain text, JSON object, or JSON schema output.
type ResponsesTextFormat struct {
	Type   string `json:"type"`
	Name   string `json:"name,omitempty"`
	Schema any    `json:"schema,omitempty"`
	Strict *bool  `json:"strict,omitempty"`
}

// UpstreamPayload is the full request body sent to the upstream
// conversational-completion service.
type UpstreamPayload struct {
	Model             string          `json:"model"`
	Instructions      string          `json:"instructions"`
	Input             []InputItem     `json:"input"`
	Tools             []Tool          `json:"tools"`
	ToolChoice        any             `json:"tool_choice"`
	ParallelToolCalls bool            `json:"parallel_tool_calls"`
	Store             bool            `json:"store"`
	Stream            bool            `json:"stream"`
	PromptCacheKey    string          `json:"prompt_cache_key"`
	Include           []string        `json:"include,omitempty"`
	Reasoning         *ReasoningParam `json:"reasoning,omitempty"`
	Text              *ResponsesText  `json:"text,omitempty"`
}

// ResponsesResponse is a non-streaming Responses API response object.
type ResponsesResponse struct {
	ID        string                `json:"id"`
	Object    string                `json:"object"`
	CreatedAt int64                 `json:"created_at"`
	Status    string                `json:"status"`
	Model     string                `json:"model"`
	Output    []ResponsesOutputItem `json:"output"`
	Usage     *ResponsesUsage       `json:"usage,omitempty"`
	Error     *ResponsesError       `json:"error,omitempty"`
}

// ResponsesOutputItem is one output item (message, reasoning, function_call).
type ResponsesOutputItem struct {
	Type      string                   `json:"type"`
	ID        string                   `json:"id,omitempty"`
	Status    string                   `json:"status,omitempty"`
	Role      string                   `json:"role,omitempty"`
	Content   []ResponsesOutputContent `json:"content,omitempty"`
	Summary   []ReasoningPart          `json:"summary,omitempty"`
	Name      string                   `json:"name,omitempty"`
	Arguments string                   `json:"arguments,omitempty"`
	CallID    string                   `json:"call_id,omitempty"`
}

// ResponsesOutputContent is one content part of an output message item.
type ResponsesOutputContent struct {
	Type        string       `json:"type"`
	Text        string       `json:"text,omitempty"`
	Annotations []Annotation `json:"annotations"`
}

// ResponsesUsage mirrors the upstream usage block (input/output naming).
type ResponsesUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	TotalTokens  int64 `json:"total_tokens"`
}

// ResponsesError is the error block of a failed Responses API response.
type ResponsesError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}
