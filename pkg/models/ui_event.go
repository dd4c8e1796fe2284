package models

import "time"

// UIEventType discriminates the fire-and-forget events published to the UI
// Bus external collaborator (§6). The tagged-union-with-payload-pointers
// shape mirrors the teacher's own AgentEvent design.
type UIEventType string

const (
	UIEventAgentOutput   UIEventType = "agent_output"
	UIEventStreamDelta   UIEventType = "stream_delta"
	UIEventStreamEnd     UIEventType = "stream_end"
	UIEventToolCallStart UIEventType = "tool_call_start"
	UIEventToolCallEnd   UIEventType = "tool_call_end"
	UIEventAuditEntry    UIEventType = "audit_entry"
)

// UIEvent is one message published to the UI Bus. Exactly one payload field
// is populated for a given Type.
type UIEvent struct {
	Type   UIEventType `json:"type"`
	TaskID string      `json:"task_id"`
	Time   time.Time   `json:"time"`

	AgentOutput *AgentOutputPayload `json:"agent_output,omitempty"`
	StreamDelta *StreamDeltaPayload `json:"stream_delta,omitempty"`
	ToolCall    *ToolCallPayload    `json:"tool_call,omitempty"`
	Audit       *AuditEntry         `json:"audit,omitempty"`
}

// AgentOutputPayload carries a non-streamed text/reasoning/verbose/error
// AgentOutput value forwarded to the UI unconditionally or when not already
// covered by streaming deltas.
type AgentOutputPayload struct {
	Kind    AgentOutputKind `json:"kind"`
	Content string          `json:"content"`
}

// AgentOutputKind is the discriminator of the Agent's yielded output stream
// (§9). The agent itself is an external collaborator; this enumerates the
// variants the Output Handler (C7) must dispatch on.
type AgentOutputKind string

const (
	OutputText        AgentOutputKind = "text"
	OutputReasoning    AgentOutputKind = "reasoning"
	OutputVerbose      AgentOutputKind = "verbose"
	OutputError        AgentOutputKind = "error"
	OutputToolCall     AgentOutputKind = "tool_call"
	OutputInteraction  AgentOutputKind = "interaction"
	OutputDone         AgentOutputKind = "done"
	OutputFailed       AgentOutputKind = "failed"
)

// AgentOutput is one value yielded by the agent's output stream (§9,
// "async iterators -> channel-producing generators"). The Output Handler
// (C7) consumes exactly one of these per iteration of the Agent Runtime
// loop.
type AgentOutput struct {
	Kind AgentOutputKind `json:"kind"`

	// text | reasoning | verbose | error
	Content string `json:"content,omitempty"`

	// tool_call
	ToolCall *ToolCall `json:"tool_call_req,omitempty"`

	// interaction
	Interaction *Interaction `json:"interaction,omitempty"`

	// done
	Summary string `json:"summary,omitempty"`

	// failed
	FailureReason string `json:"failure_reason,omitempty"`
}

// StreamDeltaPayload is one incremental chunk of a streaming LM response.
type StreamDeltaPayload struct {
	Kind  AgentOutputKind `json:"kind"` // text | reasoning
	Delta string          `json:"delta"`
}

// ToolCallPayload accompanies tool_call_start/tool_call_end UI events.
type ToolCallPayload struct {
	ToolCallID string `json:"tool_call_id"`
	ToolName   string `json:"tool_name"`
	IsError    bool   `json:"is_error,omitempty"`
	Output     string `json:"output,omitempty"`
}
