// Package format turns the canonical delta sequence into caller-facing
// output: streamed chunks framed for each supported API shape, or a single
// buffered response object.
package format

import (
	"encoding/json"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/llmgate/llmgate/internal/metrics"
)

// Options carries per-request output configuration shared by all shapes.
type Options struct {
	Model           string
	Created         int64
	CreatedAt       string // RFC3339, used by Ollama chunks
	ResponseID      string // fallback id when the upstream never reports one
	ReasoningCompat string
	IncludeUsage    bool
}

// sseWriter frames chunks as Server-Sent Events. Write failures (client
// disconnects) latch: subsequent writes are dropped silently.
type sseWriter struct {
	w        http.ResponseWriter
	flusher  http.Flusher
	shape    string
	failed   bool
	wroteAny bool
}

func newSSEWriter(w http.ResponseWriter, shape string) *sseWriter {
	flusher, _ := w.(http.Flusher)
	return &sseWriter{w: w, flusher: flusher, shape: shape}
}

func (sw *sseWriter) writeJSON(v any) {
	if sw.failed {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		log.WithError(err).Error("failed to marshal SSE chunk")
		return
	}
	if _, err := fmt.Fprintf(sw.w, "data: %s\n\n", data); err != nil {
		log.WithError(err).Debug("client disconnected during SSE write")
		sw.failed = true
		return
	}
	sw.wroteAny = true
	metrics.StreamedChunks.WithLabelValues(sw.shape).Inc()
	sw.flush()
}

// writeEvent frames a named SSE event (Responses API framing).
func (sw *sseWriter) writeEvent(name string, v any) {
	if sw.failed {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		log.WithError(err).Error("failed to marshal SSE event")
		return
	}
	if _, err := fmt.Fprintf(sw.w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		log.WithError(err).Debug("client disconnected during SSE write")
		sw.failed = true
		return
	}
	sw.wroteAny = true
	metrics.StreamedChunks.WithLabelValues(sw.shape).Inc()
	sw.flush()
}

func (sw *sseWriter) writeDone() {
	if sw.failed {
		return
	}
	if _, err := fmt.Fprint(sw.w, "data: [DONE]\n\n"); err != nil {
		sw.failed = true
		return
	}
	sw.flush()
}

func (sw *sseWriter) flush() {
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
}

// ndjsonWriter frames chunks as newline-delimited JSON (Ollama framing).
type ndjsonWriter struct {
	w        http.ResponseWriter
	flusher  http.Flusher
	shape    string
	failed   bool
	wroteAny bool
}

func newNDJSONWriter(w http.ResponseWriter, shape string) *ndjsonWriter {
	flusher, _ := w.(http.Flusher)
	return &ndjsonWriter{w: w, flusher: flusher, shape: shape}
}

func (nw *ndjsonWriter) writeJSON(v any) {
	if nw.failed {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		log.WithError(err).Error("failed to marshal NDJSON chunk")
		return
	}
	if _, err := fmt.Fprintf(nw.w, "%s\n", data); err != nil {
		log.WithError(err).Debug("client disconnected during NDJSON write")
		nw.failed = true
		return
	}
	nw.wroteAny = true
	metrics.StreamedChunks.WithLabelValues(nw.shape).Inc()
	if nw.flusher != nil {
		nw.flusher.Flush()
	}
}

// WriteJSON writes a single buffered JSON response.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Debug("failed to write JSON response")
	}
}

// WriteSSEHeaders prepares the response for an SSE stream.
func WriteSSEHeaders(w http.ResponseWriter, statusCode int) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(statusCode)
}

// WriteNDJSONHeaders prepares the response for an Ollama NDJSON stream.
func WriteNDJSONHeaders(w http.ResponseWriter, statusCode int) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(statusCode)
}
