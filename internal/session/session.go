// Package session derives stable session ids so the upstream can reuse
// prompt-cache state across turns of the same conversation.
package session

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/llmgate/llmgate/internal/types"
)

const maxEntries = 10000

// Table maps conversation fingerprints to session ids with FIFO eviction.
type Table struct {
	mu    sync.Mutex
	byFP  map[string]string
	order []string
}

// NewTable creates an empty session table.
func NewTable() *Table {
	return &Table{byFP: make(map[string]string)}
}

// EnsureSessionID returns the session id for a conversation. The id is
// keyed on the session-invariant prefix (instructions plus the first user
// message) so every turn of the same conversation maps to one id. A
// client-supplied id wins.
func (t *Table) EnsureSessionID(instructions string, input []types.InputItem, clientSupplied string) string {
	if clientSupplied != "" {
		return clientSupplied
	}

	fp := fingerprint(instructions, input)

	t.mu.Lock()
	defer t.mu.Unlock()

	if sid, ok := t.byFP[fp]; ok {
		return sid
	}

	sid := uuid.New().String()
	t.byFP[fp] = sid
	t.order = append(t.order, fp)
	if len(t.order) > maxEntries {
		oldest := t.order[0]
		t.order = append(t.order[:0], t.order[1:]...)
		delete(t.byFP, oldest)
	}
	return sid
}

// fingerprint hashes only the parts that stay constant across turns.
// Including later messages would mint a fresh id every turn and defeat
// upstream prompt caching.
func fingerprint(instructions string, input []types.InputItem) string {
	prefix := map[string]any{}
	if instructions != "" {
		prefix["instructions"] = instructions
	}
	if first := firstUserMessage(input); first != nil {
		prefix["first_user"] = first
	}
	data, _ := json.Marshal(prefix)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func firstUserMessage(input []types.InputItem) *types.InputItem {
	for i := range input {
		if input[i].Type == "message" && input[i].Role == "user" {
			return &input[i]
		}
	}
	return nil
}
