package types

// OllamaChatRequest is an Ollama /api/chat request.
type OllamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []OllamaMessage `json:"messages,omitempty"`
	Stream   *bool           `json:"stream,omitempty"`
	Tools    []ChatTool      `json:"tools,omitempty"`
	Format   any             `json:"format,omitempty"` // "json" or a schema object
	Options  map[string]any  `json:"options,omitempty"`
}

// OllamaMessage is a message in the Ollama format.
type OllamaMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Images     []string   `json:"images,omitempty"` // base64-encoded
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// OllamaStreamChunk is a single Ollama NDJSON chunk. The same structure with
// Done=true serves as the non-streaming response body.
type OllamaStreamChunk struct {
	Model      string        `json:"model"`
	CreatedAt  string        `json:"created_at"`
	Message    OllamaMessage `json:"message"`
	Done       bool          `json:"done"`
	DoneReason string        `json:"done_reason,omitempty"`
	OllamaEval
}

// OllamaEval holds the timing/count fields Ollama reports on terminal chunks.
// Durations are synthetic; token counts come from upstream usage when present.
type OllamaEval struct {
	TotalDuration      int64 `json:"total_duration,omitempty"`
	LoadDuration       int64 `json:"load_duration,omitempty"`
	PromptEvalCount    int64 `json:"prompt_eval_count,omitempty"`
	PromptEvalDuration int64 `json:"prompt_eval_duration,omitempty"`
	EvalCount          int64 `json:"eval_count,omitempty"`
	EvalDuration       int64 `json:"eval_duration,omitempty"`
}

// OllamaModelEntry is a model in the /api/tags list.
type OllamaModelEntry struct {
	Name       string             `json:"name"`
	Model      string             `json:"model"`
	ModifiedAt string             `json:"modified_at"`
	Size       int64              `json:"size"`
	Digest     string             `json:"digest"`
	Details    OllamaModelDetails `json:"details"`
}

// OllamaModelDetails holds model metadata.
type OllamaModelDetails struct {
	ParentModel       string   `json:"parent_model"`
	Format            string   `json:"format"`
	Family            string   `json:"family"`
	Families          []string `json:"families"`
	ParameterSize     string   `json:"parameter_size"`
	QuantizationLevel string   `json:"quantization_level"`
}

// OllamaModelList is the response for GET /api/tags.
type OllamaModelList struct {
	Models []OllamaModelEntry `json:"models"`
}

// OllamaShowResponse is the response for POST /api/show.
type OllamaShowResponse struct {
	Modelfile    string             `json:"modelfile"`
	Parameters   string             `json:"parameters"`
	Template     string             `json:"template"`
	Details      OllamaModelDetails `json:"details"`
	ModelInfo    map[string]any     `json:"model_info"`
	Capabilities []string           `json:"capabilities"`
}

// OllamaVersionResponse is the response for GET /api/version.
type OllamaVersionResponse struct {
	Version string `json:"version"`
}
