package format

import (
	"fmt"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/llmgate/llmgate/internal/types"
)

// WriteOpenAIError writes an OpenAI-format error response. Used by the chat,
// legacy-completions, and Responses surfaces.
func WriteOpenAIError(w http.ResponseWriter, status int, message string) {
	log.WithFields(log.Fields{"status": status, "error": message}).Error("request failed")
	WriteJSON(w, status, types.ErrorResponse{Error: types.ErrorDetail{Message: message}})
}

// WriteInvalidRequestError writes a 400 with the invalid_request_error type.
func WriteInvalidRequestError(w http.ResponseWriter, message string) {
	log.WithFields(log.Fields{"status": http.StatusBadRequest, "error": message}).Warn("invalid request")
	WriteJSON(w, http.StatusBadRequest, types.ErrorResponse{
		Error: types.ErrorDetail{Message: message, Type: "invalid_request_error"},
	})
}

// WriteOllamaError writes an Ollama-format error response.
func WriteOllamaError(w http.ResponseWriter, status int, message string) {
	log.WithFields(log.Fields{"status": status, "error": message}).Error("request failed")
	WriteJSON(w, status, map[string]string{"error": message})
}

// WriteShapeError routes an error to the right wire format for the shape.
func WriteShapeError(w http.ResponseWriter, shape types.Shape, status int, message string) {
	if shape == types.ShapeOllama {
		WriteOllamaError(w, status, message)
		return
	}
	WriteOpenAIError(w, status, message)
}

// FormatUpstreamError summarizes a non-2xx upstream reply for the caller.
func FormatUpstreamError(statusCode int, rawBody []byte) string {
	status := fmt.Sprintf("%d", statusCode)
	if text := http.StatusText(statusCode); text != "" {
		status = fmt.Sprintf("%d %s", statusCode, text)
	}
	if msg := ExtractUpstreamErrorMessage(rawBody); msg != "" {
		return fmt.Sprintf("upstream returned HTTP %s: %s", status, msg)
	}
	if preview := compactBodyPreview(rawBody, 280); preview != "" {
		return fmt.Sprintf("upstream returned HTTP %s with unparsed body: %s", status, preview)
	}
	return fmt.Sprintf("upstream returned HTTP %s with empty error body", status)
}

// ExtractUpstreamErrorMessage pulls a human-readable message out of whatever
// error body the upstream produced.
func ExtractUpstreamErrorMessage(rawBody []byte) string {
	body := strings.TrimSpace(string(rawBody))
	if body == "" || !gjson.Valid(body) {
		return ""
	}
	paths := []string{
		"error.message", "error", "message", "detail",
		"error_description", "title", "reason", "errors.0.message", "errors.0",
	}
	for _, path := range paths {
		res := gjson.Get(body, path)
		if res.Type == gjson.String && strings.TrimSpace(res.Str) != "" {
			return strings.TrimSpace(res.Str)
		}
	}
	return ""
}

func compactBodyPreview(rawBody []byte, maxLen int) string {
	clean := strings.Join(strings.Fields(strings.TrimSpace(string(rawBody))), " ")
	if len(clean) <= maxLen {
		return clean
	}
	return clean[:maxLen] + "..."
}
