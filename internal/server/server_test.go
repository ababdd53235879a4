package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/llmgate/llmgate/internal/auth"
	"github.com/llmgate/llmgate/internal/config"
	"github.com/llmgate/llmgate/internal/types"
	"github.com/llmgate/llmgate/internal/upstream"
)

// queuedUpstream hands out canned SSE bodies in order and records the
// payloads it was asked to stream.
type queuedUpstream struct {
	mu       sync.Mutex
	bodies   []string
	err      error
	payloads []*types.UpstreamPayload
}

func (q *queuedUpstream) Stream(ctx context.Context, payload *types.UpstreamPayload) (io.ReadCloser, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.payloads = append(q.payloads, payload)
	if q.err != nil {
		return nil, q.err
	}
	if len(q.bodies) == 0 {
		return io.NopCloser(strings.NewReader("")), nil
	}
	body := q.bodies[0]
	q.bodies = q.bodies[1:]
	return io.NopCloser(strings.NewReader(body)), nil
}

const sseHello = `data: {"type":"response.created","response":{"id":"resp_abc"}}

data: {"type":"response.output_text.delta","delta":"Hello"}

data: {"type":"response.completed","response":{"id":"resp_abc","usage":{"input_tokens":10,"output_tokens":5,"total_tokens":15}}}

data: [DONE]

`

const sseNoUsage = `data: {"type":"response.output_text.delta","delta":"Hi there"}

data: {"type":"response.completed","response":{"id":"resp_abc"}}

data: [DONE]

`

func newTestServer(t *testing.T, up *queuedUpstream) *Server {
	t.Helper()
	cfg := config.Default()
	return NewWithUpstream(cfg, up)
}

func do(t *testing.T, s *Server, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestChatCompletionsStreaming(t *testing.T) {
	up := &queuedUpstream{bodies: []string{sseHello}}
	s := newTestServer(t, up)

	rec := do(t, s, "POST", "/v1/chat/completions",
		`{"model":"gpt-5","stream":true,"messages":[{"role":"user","content":"hi"}]}`, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("content type: %q", ct)
	}
	out := rec.Body.String()
	if !strings.Contains(out, "chat.completion.chunk") {
		t.Errorf("no chunks in output:\n%s", out)
	}
	if !strings.Contains(out, "resp_abc") {
		t.Error("upstream response id not carried through")
	}
	if !strings.HasSuffix(strings.TrimSpace(out), "data: [DONE]") {
		t.Errorf("stream must end with [DONE]:\n%s", out)
	}

	if len(up.payloads) != 1 || up.payloads[0].Model != "gpt-5" {
		t.Fatalf("payloads: %+v", up.payloads)
	}
	if !up.payloads[0].Stream || up.payloads[0].Store {
		t.Error("upstream payload must stream and not store")
	}
}

func TestChatCompletionsBufferedEstimatesUsage(t *testing.T) {
	up := &queuedUpstream{bodies: []string{sseNoUsage}}
	s := newTestServer(t, up)

	rec := do(t, s, "POST", "/v1/chat/completions",
		`{"model":"gpt-5","messages":[{"role":"user","content":"hi"}]}`, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp types.ChatCompletionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Choices) != 1 {
		t.Fatalf("choices: %+v", resp.Choices)
	}
	if !strings.Contains(resp.Choices[0].Message.Content, "Hi there") {
		t.Errorf("content: %q", resp.Choices[0].Message.Content)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens <= 0 {
		t.Errorf("usage must be estimated when the upstream omits it: %+v", resp.Usage)
	}
}

func TestModelEffortSuffixReachesUpstream(t *testing.T) {
	up := &queuedUpstream{bodies: []string{sseHello}}
	s := newTestServer(t, up)

	rec := do(t, s, "POST", "/v1/chat/completions",
		`{"model":"gpt-5-high","messages":[{"role":"user","content":"hi"}]}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	p := up.payloads[0]
	if p.Model != "gpt-5" {
		t.Errorf("model: %q", p.Model)
	}
	if p.Reasoning == nil || p.Reasoning.Effort != "high" {
		t.Errorf("effort suffix lost: %+v", p.Reasoning)
	}
	// The caller's name is echoed back, not the resolved id.
	if !strings.Contains(rec.Body.String(), `"model":"gpt-5-high"`) {
		t.Error("requested model name not echoed")
	}
}

func TestCompletionsBuffered(t *testing.T) {
	up := &queuedUpstream{bodies: []string{sseHello}}
	s := newTestServer(t, up)

	rec := do(t, s, "POST", "/v1/completions", `{"model":"gpt-5","prompt":"hi"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	out := rec.Body.String()
	if !strings.Contains(out, `"text_completion"`) || !strings.Contains(out, "Hello") {
		t.Errorf("legacy completion body:\n%s", out)
	}
}

func TestOllamaChatStreamingNDJSON(t *testing.T) {
	up := &queuedUpstream{bodies: []string{sseHello}}
	s := newTestServer(t, up)

	rec := do(t, s, "POST", "/api/chat",
		`{"model":"gpt-5","messages":[{"role":"user","content":"hi"}]}`, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/x-ndjson") {
		t.Errorf("content type: %q", ct)
	}

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	var last map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &last); err != nil {
		t.Fatalf("last line not JSON: %v", err)
	}
	if last["done"] != true || last["done_reason"] != "stop" {
		t.Errorf("terminal line: %v", last)
	}
	if ec, ok := last["eval_count"].(float64); !ok || ec != 5 {
		t.Errorf("eval_count: %v", last["eval_count"])
	}
}

func TestOllamaChatBuffered(t *testing.T) {
	up := &queuedUpstream{bodies: []string{sseHello}}
	s := newTestServer(t, up)

	rec := do(t, s, "POST", "/api/chat",
		`{"model":"gpt-5","stream":false,"messages":[{"role":"user","content":"hi"}]}`, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("buffered ollama reply must be one JSON object: %v", err)
	}
	msg, _ := resp["message"].(map[string]any)
	if msg == nil || msg["content"] != "Hello" {
		t.Errorf("message: %v", resp)
	}
	if resp["done"] != true {
		t.Errorf("done: %v", resp)
	}
}

func TestResponsesStreaming(t *testing.T) {
	up := &queuedUpstream{bodies: []string{sseHello}}
	s := newTestServer(t, up)

	rec := do(t, s, "POST", "/v1/responses", `{"model":"gpt-5","input":"hi","stream":true}`, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	out := rec.Body.String()
	if !strings.Contains(out, "event: response.created") {
		t.Error("missing response.created")
	}
	if !strings.Contains(out, "event: response.completed") {
		t.Error("missing response.completed")
	}
	if strings.Contains(out, "[DONE]") {
		t.Error("responses streams do not use the [DONE] sentinel")
	}
}

func TestMalformedBody(t *testing.T) {
	s := newTestServer(t, &queuedUpstream{})
	rec := do(t, s, "POST", "/v1/chat/completions", `{not json`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"error"`) {
		t.Errorf("body: %s", rec.Body.String())
	}
}

func TestUnsupportedModel(t *testing.T) {
	s := newTestServer(t, &queuedUpstream{})
	rec := do(t, s, "POST", "/v1/chat/completions",
		`{"model":"llama3","messages":[{"role":"user","content":"hi"}]}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "unsupported model") {
		t.Errorf("body: %s", rec.Body.String())
	}
}

func TestUpstreamErrorMapping(t *testing.T) {
	s := newTestServer(t, &queuedUpstream{err: &upstream.Error{StatusCode: 429, Message: "slow down"}})
	rec := do(t, s, "POST", "/v1/chat/completions",
		`{"model":"gpt-5","messages":[{"role":"user","content":"hi"}]}`, nil)
	if rec.Code != 429 || !strings.Contains(rec.Body.String(), "slow down") {
		t.Errorf("status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestNoCredentialsMapsTo401(t *testing.T) {
	s := newTestServer(t, &queuedUpstream{err: auth.ErrNoCredentials})
	rec := do(t, s, "POST", "/v1/chat/completions",
		`{"model":"gpt-5","messages":[{"role":"user","content":"hi"}]}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "auth.json") {
		t.Errorf("body: %s", rec.Body.String())
	}
}

func TestAccessTokenMiddleware(t *testing.T) {
	cfg := config.Default()
	cfg.AccessToken = "secret"
	s := NewWithUpstream(cfg, &queuedUpstream{})

	// Protected routes reject missing and wrong tokens, in the caller's
	// native error shape.
	rec := do(t, s, "GET", "/v1/models", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("/v1/models without token: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"message"`) {
		t.Errorf("openai error shape: %s", rec.Body.String())
	}

	rec = do(t, s, "GET", "/api/version", "", map[string]string{"Authorization": "Bearer wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("/api/version with wrong token: %d", rec.Code)
	}
	var ollamaErr map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &ollamaErr); err != nil || ollamaErr["error"] == "" {
		t.Errorf("ollama error shape: %s", rec.Body.String())
	}

	// Correct token passes.
	rec = do(t, s, "GET", "/v1/models", "", map[string]string{"Authorization": "Bearer secret"})
	if rec.Code != http.StatusOK {
		t.Errorf("with token: %d", rec.Code)
	}

	// Health stays open.
	rec = do(t, s, "GET", "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("/health: %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, &queuedUpstream{})
	rec := do(t, s, "OPTIONS", "/v1/chat/completions", "", map[string]string{
		"Access-Control-Request-Headers": "X-Custom",
	})
	if rec.Code != http.StatusNoContent {
		t.Errorf("status: %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing allow-origin")
	}
	if rec.Header().Get("Access-Control-Allow-Headers") != "X-Custom" {
		t.Errorf("allow-headers: %q", rec.Header().Get("Access-Control-Allow-Headers"))
	}
}

func TestListModels(t *testing.T) {
	s := newTestServer(t, &queuedUpstream{})
	rec := do(t, s, "GET", "/v1/models", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	var list types.ModelList
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	ids := map[string]bool{}
	for _, m := range list.Data {
		ids[m.ID] = true
	}
	if !ids["gpt-5"] || ids["gpt-5-high"] {
		t.Errorf("default catalog: %v", ids)
	}

	cfg := config.Default()
	cfg.ExposeReasoningModels = true
	s = NewWithUpstream(cfg, &queuedUpstream{})
	rec = do(t, s, "GET", "/v1/models", "", nil)
	if !strings.Contains(rec.Body.String(), `"gpt-5-high"`) {
		t.Error("effort variants not exposed")
	}
}

func TestOllamaCatalogEndpoints(t *testing.T) {
	s := newTestServer(t, &queuedUpstream{})

	rec := do(t, s, "GET", "/api/tags", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "gpt-5:latest") {
		t.Errorf("/api/tags: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, s, "POST", "/api/show", `{"model":"gpt-5"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("/api/show: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"thinking"`) || !strings.Contains(rec.Body.String(), `"vision"`) {
		t.Errorf("capabilities: %s", rec.Body.String())
	}

	rec = do(t, s, "POST", "/api/show", `{"model":"llama3"}`, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("/api/show unknown model: %d", rec.Code)
	}

	rec = do(t, s, "GET", "/api/version", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), config.OllamaVersionString) {
		t.Errorf("/api/version: %d %s", rec.Code, rec.Body.String())
	}
}
