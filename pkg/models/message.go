// Package models provides the domain types shared across the task runtime:
// conversation messages, domain events, audit entries, interactions, and the
// UI-facing event stream.
package models

import (
	"encoding/json"
	"time"
)

// Role indicates the author of an LM message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// ToolCall represents an LM's request to execute a tool.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Message is one entry in a task's conversation with the LM, tagged by Role.
// Only the fields relevant to Role are populated for a given entry.
type Message struct {
	TaskID    string     `json:"task_id"`
	Index     int        `json:"index"`
	Role      Role       `json:"role"`
	Content   string     `json:"content,omitempty"`
	Reasoning string     `json:"reasoning,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// Tool-role only.
	ToolCallID string `json:"tool_call_id,omitempty"`
	ToolName   string `json:"tool_name,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// HasToolCalls reports whether an assistant message requested tool calls.
func (m Message) HasToolCalls() bool {
	return m.Role == RoleAssistant && len(m.ToolCalls) > 0
}

// ToolResultPayload is the conventional JSON shape stored as a tool message's
// Content when a call could not be answered by a normal execution: policy
// denial, user rejection, or history-repair synthesis.
type ToolResultPayload struct {
	IsError bool   `json:"is_error"`
	Error   string `json:"error,omitempty"`
	Output  string `json:"output,omitempty"`
}

// Marshal encodes the payload as the JSON string stored in Message.Content.
func (p ToolResultPayload) Marshal() string {
	b, err := json.Marshal(p)
	if err != nil {
		return `{"is_error":true,"error":"failed to encode tool result"}`
	}
	return string(b)
}

// NewToolResultMessage builds a tool-role message answering the given call.
func NewToolResultMessage(taskID, toolCallID, toolName, content string) Message {
	return Message{
		TaskID:     taskID,
		Role:       RoleTool,
		Content:    content,
		ToolCallID: toolCallID,
		ToolName:   toolName,
		CreatedAt:  time.Now(),
	}
}

// Agent describes a registered, pluggable agent: its LM provider/model
// configuration and the tools it is allowed to call. The agent's own
// decision logic (what it yields on each turn) is an external collaborator
// (§1); this struct is only the registry-facing descriptor.
type Agent struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	SystemPrompt string   `json:"system_prompt,omitempty"`
	Model        string   `json:"model"`
	Provider     string   `json:"provider"`
	AllowedTools []string `json:"allowed_tools,omitempty"`
}
