package types

// Shape identifies the caller-facing API format of a request, derived from
// the route the request arrived on.
type Shape string

const (
	ShapeChat      Shape = "chat"      // OpenAI chat completions
	ShapeText      Shape = "text"      // OpenAI legacy text completions
	ShapeResponses Shape = "responses" // OpenAI Responses API
	ShapeOllama    Shape = "ollama"    // Ollama chat
)

// CanonicalRequest is the unified internal representation of any inbound
// request after decoding. It is shape-agnostic and carries everything the
// upstream builder and the output formatters need.
type CanonicalRequest struct {
	Shape Shape

	// Model fields
	RequestedModel string // original model string from the client
	Model          string // normalized model for upstream

	// Streaming
	Stream       bool
	IncludeUsage bool

	// Input
	Input         []InputItem
	Instructions  string // merged system-role text; never forwarded as input
	MessagesCount int

	// Tools
	Tools             []Tool
	ToolChoice        any
	ParallelToolCalls bool

	// Output constraints
	ResponseFormat *ResponseFormat

	// Reasoning
	Reasoning       *ReasoningParam
	ReasoningCompat string

	// Session
	SessionID string
}

// InputItem is a single item in the canonical conversation input.
// Flat discriminated union: Type determines which fields are relevant.
type InputItem struct {
	Type      string `json:"type"` // "message", "function_call", "function_call_output"
	Role      string `json:"role,omitempty"`
	Content   []Part `json:"content,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	CallID    string `json:"call_id,omitempty"`
	Output    string `json:"output,omitempty"`
}

// Part is one ordered content part of a canonical message.
type Part struct {
	Type     string `json:"type"` // "input_text", "output_text", "input_image"
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// Tool is a canonical (Responses-style, flat) tool declaration.
type Tool struct {
	Type        string `json:"type"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Strict      *bool  `json:"strict,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

// ResponseFormat constrains the output to JSON or a JSON schema.
// Schema conformance is enforced by the upstream, not the gateway.
type ResponseFormat struct {
	Type   string `json:"type"` // "json_object" or "json_schema"
	Name   string `json:"name,omitempty"`
	Schema any    `json:"schema,omitempty"`
	Strict *bool  `json:"strict,omitempty"`
}

// ReasoningParam is the reasoning configuration forwarded upstream.
type ReasoningParam struct {
	Effort  string `json:"effort"`
	Summary string `json:"summary,omitempty"`
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool { return &b }
