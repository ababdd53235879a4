// Package registry holds the static model catalog: which model ids the
// gateway serves, their aliases, and the reasoning effort levels each family
// supports.
package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/llmgate/llmgate/internal/types"
)

// ErrUnsupportedModel marks a model id outside the catalog.
var ErrUnsupportedModel = errors.New("unsupported model")

// Entry describes one served model family.
type Entry struct {
	ID      string
	Family  string
	Efforts []string // ordered lowest to highest; nil means non-reasoning
	Vision  bool
}

// effortLadder is the canonical ordering used for clamping.
var effortLadder = []string{"minimal", "low", "medium", "high", "xhigh"}

var entries = []Entry{
	{ID: "gpt-5", Family: "gpt-5", Efforts: []string{"minimal", "low", "medium", "high"}, Vision: true},
	{ID: "gpt-5.1", Family: "gpt-5", Efforts: []string{"low", "medium", "high"}, Vision: true},
	{ID: "gpt-5.2", Family: "gpt-5", Efforts: []string{"low", "medium", "high", "xhigh"}, Vision: true},
	{ID: "gpt-5-codex", Family: "codex", Efforts: []string{"low", "medium", "high"}, Vision: true},
	{ID: "gpt-5.1-codex", Family: "codex", Efforts: []string{"low", "medium", "high"}, Vision: true},
	{ID: "gpt-5.1-codex-max", Family: "codex", Efforts: []string{"low", "medium", "high", "xhigh"}, Vision: true},
	{ID: "gpt-5.2-codex", Family: "codex", Efforts: []string{"low", "medium", "high", "xhigh"}, Vision: true},
	{ID: "gpt-5.1-codex-mini", Family: "codex-mini"},
	{ID: "codex-mini-latest", Family: "codex-mini"},
}

var aliases = map[string]string{
	"gpt5":                 "gpt-5",
	"gpt-5-latest":         "gpt-5",
	"gpt5.1":               "gpt-5.1",
	"gpt5.2":               "gpt-5.2",
	"gpt-5.2-latest":       "gpt-5.2",
	"gpt5-codex":           "gpt-5-codex",
	"gpt-5-codex-latest":   "gpt-5-codex",
	"gpt5.2-codex":         "gpt-5.2-codex",
	"gpt-5.2-codex-latest": "gpt-5.2-codex",
	"codex":                "codex-mini-latest",
	"codex-mini":           "codex-mini-latest",
}

func index() map[string]Entry {
	m := make(map[string]Entry, len(entries))
	for _, e := range entries {
		m[e.ID] = e
	}
	return m
}

// Resolve normalizes a client model string into a catalog entry plus any
// effort override encoded in the name. Accepted variants: bare id, alias,
// effort suffix ("gpt-5-high", "gpt-5_high"), and the Ollama tag convention
// ("gpt-5:high", "gpt-5:latest").
func Resolve(name string) (Entry, *types.ReasoningParam, error) {
	base := strings.TrimSpace(name)
	if base == "" {
		return Entry{}, nil, fmt.Errorf("%w: empty model", ErrUnsupportedModel)
	}

	var override *types.ReasoningParam

	if head, tag, ok := strings.Cut(base, ":"); ok {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if isEffort(tag) {
			override = &types.ReasoningParam{Effort: tag}
		}
		base = strings.TrimSpace(head)
	}

	lowered := strings.ToLower(base)
	for _, sep := range []string{"-", "_"} {
		for _, effort := range effortLadder {
			suffix := sep + effort
			if strings.HasSuffix(lowered, suffix) {
				trimmed := base[:len(base)-len(suffix)]
				if _, ok := lookup(trimmed); ok {
					base = trimmed
					if override == nil {
						override = &types.ReasoningParam{Effort: effort}
					}
				}
				break
			}
		}
	}

	entry, ok := lookup(base)
	if !ok {
		return Entry{}, nil, fmt.Errorf("%w: %s", ErrUnsupportedModel, name)
	}
	return entry, override, nil
}

func lookup(name string) (Entry, bool) {
	id := strings.ToLower(strings.TrimSpace(name))
	if mapped, ok := aliases[id]; ok {
		id = mapped
	}
	e, ok := index()[id]
	return e, ok
}

// ClampEffort snaps a requested effort to the nearest level the entry
// supports. An empty request or a non-reasoning entry yields the empty
// string; an unknown effort string falls back to the family default.
func ClampEffort(entry Entry, requested string) string {
	if len(entry.Efforts) == 0 {
		return ""
	}
	req := strings.ToLower(strings.TrimSpace(requested))
	if req == "" {
		return ""
	}
	for _, e := range entry.Efforts {
		if e == req {
			return req
		}
	}
	rank := ladderRank(req)
	if rank < 0 {
		return "medium"
	}
	// Nearest supported level, preferring the lower one on ties.
	best := entry.Efforts[0]
	bestDist := distance(rank, ladderRank(best))
	for _, e := range entry.Efforts[1:] {
		if d := distance(rank, ladderRank(e)); d < bestDist {
			best, bestDist = e, d
		}
	}
	return best
}

func ladderRank(effort string) int {
	for i, e := range effortLadder {
		if e == effort {
			return i
		}
	}
	return -1
}

func distance(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}

func isEffort(s string) bool { return ladderRank(s) >= 0 }

// Catalog returns served model ids, optionally including effort variants.
func Catalog(exposeVariants bool) []string {
	var ids []string
	for _, e := range entries {
		ids = append(ids, e.ID)
		if exposeVariants {
			for _, effort := range e.Efforts {
				ids = append(ids, e.ID+"-"+effort)
			}
		}
	}
	return ids
}

// Entries returns the full catalog table.
func Entries() []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}
