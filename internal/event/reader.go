package event

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

// RawEvent is a single SSE event from the upstream before classification.
type RawEvent struct {
	Type string
	Data map[string]any
}

// Reader reads SSE events from an io.Reader.
type Reader struct {
	scanner *bufio.Scanner
}

// NewReader creates a new SSE reader.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 256*1024), 1024*1024)
	return &Reader{scanner: scanner}
}

// Next returns the next SSE event. Returns nil, io.EOF when the stream ends
// or the upstream sends its [DONE] sentinel.
func (r *Reader) Next() (*RawEvent, error) {
	for r.scanner.Scan() {
		line := r.scanner.Text()
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimSpace(line[6:])
		if data == "" {
			continue
		}
		if data == "[DONE]" {
			return nil, io.EOF
		}
		var parsed map[string]any
		if err := json.Unmarshal([]byte(data), &parsed); err != nil {
			// Malformed event payloads are skipped, not fatal.
			continue
		}
		eventType, _ := parsed["type"].(string)
		return &RawEvent{Type: eventType, Data: parsed}, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}
