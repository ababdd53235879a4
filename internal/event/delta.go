package event

import (
	"errors"

	"github.com/llmgate/llmgate/internal/types"
)

// Kind discriminates the Delta union.
type Kind int

const (
	KindText Kind = iota
	KindReasoning
	KindToolCall
	KindAnnotation
	KindUsage
	KindCompleted
	KindFailed
)

// Reasoning segments. Summary text and full reasoning text arrive on
// distinct upstream channels and some compat modes render them differently.
const (
	SegmentSummary = "summary"
	SegmentFull    = "full"
)

// Finish reasons carried by Completed deltas.
const (
	FinishStop      = "stop"
	FinishToolCalls = "tool_calls"
	FinishLength    = "length"
)

var (
	// ErrUpstreamDisconnected marks a transport-level failure mid-stream,
	// including idle-read timeouts and streams that end without a terminal
	// event. Content already emitted before it remains valid.
	ErrUpstreamDisconnected = errors.New("upstream disconnected")

	// ErrUpstreamProtocol marks an upstream payload the interpreter could
	// not make sense of.
	ErrUpstreamProtocol = errors.New("upstream protocol error")
)

// Delta is one canonical unit of information about an in-progress turn.
// Exactly one terminal delta (Completed or Failed) ends every sequence.
type Delta struct {
	Kind Kind

	// KindText and KindReasoning
	Text string

	// KindReasoning
	Segment        string // SegmentSummary or SegmentFull
	ParagraphBreak bool   // a new summary segment started; render as a break

	// KindToolCall
	Call *ToolCallFragment

	// KindAnnotation
	Annotations []types.Annotation

	// KindUsage
	Usage *types.Usage

	// KindCompleted
	FinishReason string

	// KindFailed
	Err error
}

// Terminal reports whether d ends the delta sequence.
func (d Delta) Terminal() bool {
	return d.Kind == KindCompleted || d.Kind == KindFailed
}

// ToolCallFragment is one increment of a tool call. Fragments for a given
// CallID are emitted in arrival order and concatenate to the full arguments
// string. Done is set exactly once per call, when the upstream closes it.
type ToolCallFragment struct {
	CallID       string
	Name         string // set on the first fragment for a call
	ArgsFragment string
	Done         bool
	Arguments    string // full resolved arguments, set only when Done
}
