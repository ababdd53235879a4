package event

import (
	"encoding/json"
	"strings"

	log "github.com/sirupsen/logrus"
)

// maxToolArgBuf bounds accumulated function-call arguments per call.
const maxToolArgBuf = 1 << 20 // 1 MB

// toolAssembler tracks in-flight tool calls across upstream events: it maps
// item ids to call ids, concatenates argument fragments in arrival order, and
// resolves the final arguments string when a call closes.
type toolAssembler struct {
	itemToCall map[string]string
	names      map[string]string
	fragments  map[string]string // concatenated argument fragments per call id
	finalArgs  map[string]string // authoritative args from a done event
	announced  map[string]bool   // a fragment carrying the name was emitted
	closed     map[string]bool
	seen       map[string]bool
	order      []string // call ids in first-seen order
	anyClosed  bool
}

func newToolAssembler() *toolAssembler {
	return &toolAssembler{
		itemToCall: map[string]string{},
		names:      map[string]string{},
		fragments:  map[string]string{},
		finalArgs:  map[string]string{},
		announced:  map[string]bool{},
		closed:     map[string]bool{},
		seen:       map[string]bool{},
	}
}

func (ta *toolAssembler) track(callID string) {
	if !ta.seen[callID] {
		ta.seen[callID] = true
		ta.order = append(ta.order, callID)
	}
}

// onItemAdded records the item/call mapping and the declared name from a
// function_call output_item.added event.
func (ta *toolAssembler) onItemAdded(item map[string]any) {
	itemID := strings.TrimSpace(stringOr(item, "id"))
	callID := strings.TrimSpace(stringOr(item, "call_id", itemID))
	if callID == "" {
		return
	}
	if itemID != "" && itemID != callID {
		ta.itemToCall[itemID] = callID
	}
	ta.track(callID)
	if name := strings.TrimSpace(stringOr(item, "name")); name != "" {
		ta.names[callID] = name
	}
}

// onArgsDelta returns the fragment delta for an arguments.delta event, or
// nil when the event carries nothing usable.
func (ta *toolAssembler) onArgsDelta(data map[string]any) *ToolCallFragment {
	id := strings.TrimSpace(stringOr(data, "item_id", "call_id", "id"))
	fragment, _ := data["delta"].(string)
	if id == "" || fragment == "" {
		return nil
	}
	callID := ta.resolveCallID(id)
	if ta.closed[callID] {
		return nil
	}
	ta.track(callID)
	if len(ta.fragments[callID])+len(fragment) > maxToolArgBuf {
		log.WithFields(log.Fields{"call_id": callID, "buf_len": len(ta.fragments[callID])}).
			Warn("tool argument buffer limit exceeded, dropping fragment")
		return nil
	}
	ta.fragments[callID] += fragment
	frag := &ToolCallFragment{CallID: callID, ArgsFragment: fragment}
	if !ta.announced[callID] {
		frag.Name = ta.names[callID]
		ta.announced[callID] = true
	}
	return frag
}

// onArgsDone records the authoritative arguments from an arguments.done event.
func (ta *toolAssembler) onArgsDone(data map[string]any) {
	id := strings.TrimSpace(stringOr(data, "item_id", "call_id", "id"))
	if id == "" {
		return
	}
	callID := ta.resolveCallID(id)
	ta.track(callID)
	args := extractRawArgs(data)
	if isEmptyArgs(args) {
		if item, ok := data["item"].(map[string]any); ok {
			args = extractRawArgs(item)
		}
	}
	if s := argsString(args); s != "" && s != "{}" {
		ta.finalArgs[callID] = s
	}
}

// onItemDone closes a function_call and returns the terminal fragment for it.
// remainder carries any argument bytes the caller has not yet seen as
// fragments, so that concatenated fragments always equal the final arguments.
func (ta *toolAssembler) onItemDone(item map[string]any) *ToolCallFragment {
	itemID := strings.TrimSpace(stringOr(item, "id"))
	callID := strings.TrimSpace(stringOr(item, "call_id", itemID))
	if callID == "" {
		return nil
	}
	callID = ta.resolveCallID(callID)
	if ta.closed[callID] {
		return nil
	}
	ta.closed[callID] = true
	ta.anyClosed = true

	name := strings.TrimSpace(stringOr(item, "name"))
	if name == "" {
		name = ta.names[callID]
	}

	args := argsString(extractRawArgs(item))
	if args == "" || args == "{}" {
		if fa := ta.finalArgs[callID]; fa != "" {
			args = fa
		}
	}
	if args == "" || args == "{}" {
		if buf := strings.TrimSpace(ta.fragments[callID]); buf != "" {
			args = buf
		}
	}
	if args == "" {
		args = "{}"
	}

	frag := &ToolCallFragment{CallID: callID, Done: true, Arguments: args}
	if !ta.announced[callID] {
		frag.Name = name
		ta.announced[callID] = true
	}
	// Fragments already streamed cover a prefix of the final arguments;
	// emit only the remainder so concatenation stays exact.
	streamed := ta.fragments[callID]
	if streamed == "" {
		frag.ArgsFragment = args
	} else if strings.HasPrefix(args, streamed) {
		frag.ArgsFragment = args[len(streamed):]
	}
	return frag
}

// closeRemaining closes calls left open when the terminal delta arrives, in
// first-seen order.
func (ta *toolAssembler) closeRemaining() []*ToolCallFragment {
	var out []*ToolCallFragment
	for _, id := range ta.order {
		if ta.closed[id] {
			continue
		}
		ta.closed[id] = true
		ta.anyClosed = true
		args := ta.finalArgs[id]
		if args == "" {
			args = ta.fragments[id]
		}
		if args == "" {
			args = "{}"
		}
		frag := &ToolCallFragment{CallID: id, Done: true, Arguments: args}
		if !ta.announced[id] {
			frag.Name = ta.names[id]
		}
		out = append(out, frag)
	}
	return out
}

func (ta *toolAssembler) resolveCallID(id string) string {
	if mapped := ta.itemToCall[id]; mapped != "" {
		return mapped
	}
	return id
}

// --- shared helpers ---

func stringOr(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func extractRawArgs(m map[string]any) any {
	if m == nil {
		return nil
	}
	for _, key := range []string{"arguments", "parameters", "input"} {
		if v, ok := m[key]; ok {
			return v
		}
	}
	return nil
}

func isEmptyArgs(args any) bool {
	switch v := args.(type) {
	case nil:
		return true
	case string:
		t := strings.TrimSpace(v)
		return t == "" || t == "{}" || t == "null"
	case map[string]any:
		return len(v) == 0
	case []any:
		return len(v) == 0
	default:
		return false
	}
}

// argsString keeps string arguments byte-exact (so fragment concatenation
// stays verifiable) and marshals structured values.
func argsString(raw any) string {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		if isEmptyArgs(v) {
			return ""
		}
		return serializeArgs(v, false)
	}
}

// serializeArgs renders tool arguments as a JSON string. With queryFallback,
// free-text arguments are wrapped as {"query": ...} (built-in search calls
// report their input that way).
func serializeArgs(args any, queryFallback bool) string {
	switch a := args.(type) {
	case map[string]any, []any:
		b, _ := json.Marshal(a)
		return string(b)
	case string:
		raw := strings.TrimSpace(a)
		if raw == "" {
			return "{}"
		}
		var parsed any
		if json.Unmarshal([]byte(raw), &parsed) == nil {
			b, _ := json.Marshal(parsed)
			return string(b)
		}
		if queryFallback {
			b, _ := json.Marshal(map[string]any{"query": raw})
			return string(b)
		}
		return raw
	}
	return "{}"
}
