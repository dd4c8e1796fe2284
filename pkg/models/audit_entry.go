package models

import (
	"encoding/json"
	"time"
)

// AuditEntryType discriminates the two audit variants (§3). This is a
// deliberately narrower vocabulary than the teacher's own
// internal/audit.EventType (session/permission/gateway events) — the core's
// audit stream exists for exactly one purpose: recovering dangling tool
// calls (C5 strategy S1), so only tool request/completion pairs are modeled.
type AuditEntryType string

const (
	AuditToolCallRequested AuditEntryType = "tool_call_requested"
	AuditToolCallCompleted AuditEntryType = "tool_call_completed"
)

// AuditEntry is a tagged variant appended to the Audit Log (C3), a stream
// separate from the domain Event Store.
type AuditEntry struct {
	Type       AuditEntryType  `json:"type"`
	ToolCallID string          `json:"tool_call_id"`
	ToolName   string          `json:"tool_name"`
	TaskID     string          `json:"task_id"`
	Timestamp  time.Time       `json:"timestamp"`

	// ToolCallRequested
	Input json.RawMessage `json:"input,omitempty"`

	// ToolCallCompleted
	Output     string        `json:"output,omitempty"`
	IsError    bool          `json:"is_error,omitempty"`
	DurationMS int64         `json:"duration_ms,omitempty"`
}

// StoredAuditEntry is an AuditEntry as persisted, carrying its own
// append-order sequence number within the audit stream.
type StoredAuditEntry struct {
	ID    uint64     `json:"id"`
	Entry AuditEntry `json:"entry"`
}
