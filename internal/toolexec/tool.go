// Package toolexec implements the Tool Executor and Registry (C6):
// risky-tool confirmation bound to a specific tool call, audit logging of
// every request/completion, and the Subtask tool's createSubtasks
// precondition surface (internal/subtask wires the orchestration itself).
//
// Grounded on haasonsaas-nexus/internal/agent/tool_exec.go's
// timeout/retry/concurrency-limited execution idiom and on
// internal/tools/policy/approval.go's risk-level + approval lifecycle
// shape, narrowed from edge/session trust levels down to the spec's plain
// safe/risky distinction bound to one interaction id per tool call.
package toolexec

import (
	"context"
	"encoding/json"
	"fmt"
)

// RiskLevel classifies a tool call for the confirmation gate (§4.7).
type RiskLevel string

const (
	RiskSafe  RiskLevel = "safe"
	RiskRisky RiskLevel = "risky"
)

// Call is a single tool invocation requested by the agent loop.
type Call struct {
	ToolCallID string
	Name       string
	Arguments  json.RawMessage
}

// Result is what a tool execution (or rejection) produces.
type Result struct {
	ToolCallID string
	Output     string
	IsError    bool
}

// Context carries the per-call execution context: the task it runs under,
// the cancellation signal (the idiomatic Go mapping of the spec's
// AbortSignal), and — when present — the one risky tool call the caller has
// just confirmed (INV-6, SA-001).
type Context struct {
	context.Context
	TaskID string

	// ConfirmedInteractionID/ConfirmedToolCallID identify the single risky
	// tool call authorised by the most recent approval response. Both must
	// be set and ConfirmedToolCallID must equal the call being executed;
	// otherwise a risky tool call is rejected with ErrConfirmationRequired.
	ConfirmedInteractionID string
	ConfirmedToolCallID    string
}

// Tool is the external-collaborator surface the core depends on (§6); the
// embedding application supplies concrete tools (files, exec, ...).
type Tool interface {
	Name() string
	Description() string
	// ParametersSchema returns the tool's argument JSON Schema, used both
	// to describe the tool to the LM and to validate incoming arguments
	// before execution.
	ParametersSchema() json.RawMessage
	Group() string
	RiskLevel(args json.RawMessage, tc *Context) RiskLevel
	// CanExecute runs a cheap precondition check before Execute; a non-nil
	// error short-circuits execution with a synthetic tool-result error
	// (spec: "Tool pre-check failure").
	CanExecute(args json.RawMessage, tc *Context) error
	Execute(args json.RawMessage, tc *Context) (Result, error)
}

// ErrConfirmationRequired is returned when a risky tool call is attempted
// without a matching confirmation binding.
var ErrConfirmationRequired = fmt.Errorf("toolexec: confirmation required")

// ErrUnknownTool is returned when no tool is registered under the
// requested name (S2 of history repair synthesizes a result for this).
var ErrUnknownTool = fmt.Errorf("toolexec: unknown tool")
