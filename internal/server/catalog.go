package server

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/llmgate/llmgate/internal/config"
	"github.com/llmgate/llmgate/internal/format"
	"github.com/llmgate/llmgate/internal/registry"
	"github.com/llmgate/llmgate/internal/types"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	format.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	var data []types.ModelObject
	for _, id := range registry.Catalog(s.cfg.ExposeReasoningModels) {
		data = append(data, types.ModelObject{ID: id, Object: "model", OwnedBy: "owner"})
	}
	format.WriteJSON(w, http.StatusOK, types.ModelList{Object: "list", Data: data})
}

func (s *Server) handleOllamaTags(w http.ResponseWriter, r *http.Request) {
	modified := time.Now().UTC().Format(time.RFC3339)
	var entries []types.OllamaModelEntry
	for _, e := range registry.Entries() {
		entries = append(entries, ollamaEntry(e, modified))
	}
	format.WriteJSON(w, http.StatusOK, types.OllamaModelList{Models: entries})
}

func (s *Server) handleOllamaShow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Model string `json:"model"`
		Name  string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		format.WriteOllamaError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	name := req.Model
	if name == "" {
		name = req.Name
	}
	entry, _, err := registry.Resolve(name)
	if err != nil {
		format.WriteOllamaError(w, http.StatusNotFound, "model not found")
		return
	}

	capabilities := []string{"completion", "tools"}
	if entry.Vision {
		capabilities = append(capabilities, "vision")
	}
	if len(entry.Efforts) > 0 {
		capabilities = append(capabilities, "thinking")
	}
	format.WriteJSON(w, http.StatusOK, types.OllamaShowResponse{
		Details:      ollamaDetails(entry),
		ModelInfo:    map[string]any{"general.architecture": entry.Family},
		Capabilities: capabilities,
	})
}

func (s *Server) handleOllamaVersion(w http.ResponseWriter, r *http.Request) {
	format.WriteJSON(w, http.StatusOK, types.OllamaVersionResponse{Version: config.OllamaVersionString})
}

func ollamaEntry(e registry.Entry, modified string) types.OllamaModelEntry {
	return types.OllamaModelEntry{
		Name:       e.ID + ":latest",
		Model:      e.ID + ":latest",
		ModifiedAt: modified,
		Size:       1,
		Digest:     modelDigest(e.ID),
		Details:    ollamaDetails(e),
	}
}

func ollamaDetails(e registry.Entry) types.OllamaModelDetails {
	return types.OllamaModelDetails{
		Format:            "gguf",
		Family:            e.Family,
		Families:          []string{e.Family},
		ParameterSize:     "unknown",
		QuantizationLevel: "unknown",
	}
}

// modelDigest produces a stable fake digest so Ollama clients that cache by
// digest behave consistently.
func modelDigest(id string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(id)))
	return hex.EncodeToString(sum[:])
}
