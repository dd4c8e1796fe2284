// Package convmanager implements the Conversation Manager (C5): loading a
// task's history, repairing dangling tool calls before each execution, and
// deciding whether a freshly arrived user instruction is safe to inject
// immediately or must be queued.
//
// Grounded on haasonsaas-nexus/internal/sessions/transcript_repair.go's
// tool-call/tool-result pairing scan, re-targeted from that file's
// move-and-drop repair (built for LM-API transcript validity) to the
// spec's four ordered recovery strategies (S1-S4), which additionally
// consult the Audit Log and can re-execute a tool.
package convmanager

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/haasonsaas/taskrun/internal/audit"
	"github.com/haasonsaas/taskrun/internal/convstore"
	"github.com/haasonsaas/taskrun/internal/toolexec"
	"github.com/haasonsaas/taskrun/pkg/models"
)

// RiskClassifier reports whether a tool is risky, without running it — the
// Conversation Manager needs this to choose between S3 (safe, re-execute)
// and S4 (risky, leave dangling) without owning a full Registry.
type RiskClassifier interface {
	IsRisky(toolName string, args json.RawMessage) (risky bool, known bool)
}

// registryClassifier adapts a *toolexec.Registry to RiskClassifier.
type registryClassifier struct {
	registry *toolexec.Registry
}

// NewRegistryClassifier builds a RiskClassifier backed by a live tool
// registry.
func NewRegistryClassifier(registry *toolexec.Registry) RiskClassifier {
	return &registryClassifier{registry: registry}
}

func (c *registryClassifier) IsRisky(toolName string, args json.RawMessage) (bool, bool) {
	tool, ok := c.registry.Lookup(toolName)
	if !ok {
		return false, false
	}
	level := tool.RiskLevel(args, &toolexec.Context{Context: context.Background()})
	return level == toolexec.RiskRisky, true
}

// Manager implements history load + repair + instruction queuing (C5).
type Manager struct {
	conv       convstore.Store
	auditLog   *audit.Logger
	classifier RiskClassifier
	executor   *toolexec.Executor

	mu                 sync.Mutex
	queuedInstructions map[string][]string // taskID -> queued instruction texts
}

// NewManager constructs a Conversation Manager. executor may be nil if the
// embedding application never needs S3 re-execution (e.g. read-only replay
// tooling).
func NewManager(conv convstore.Store, auditLog *audit.Logger, classifier RiskClassifier, executor *toolexec.Executor) *Manager {
	return &Manager{
		conv:                conv,
		auditLog:            auditLog,
		classifier:          classifier,
		executor:           executor,
		queuedInstructions: make(map[string][]string),
	}
}

// RepairReport summarizes what LoadAndRepair did, for observability.
type RepairReport struct {
	RecoveredFromAudit int
	UnknownTool        int
	ReExecutedSafe     int
	LeftDangling       int
}

// LoadAndRepair loads a task's conversation and applies S1-S4 to every
// outstanding tool call (an assistant toolCall with no matching tool
// message), in that priority order. It returns the repaired history and a
// report of which strategy resolved each gap.
func (m *Manager) LoadAndRepair(ctx context.Context, taskID string) ([]models.Message, RepairReport, error) {
	history, err := m.conv.GetHistory(ctx, taskID, 0)
	if err != nil {
		return nil, RepairReport{}, fmt.Errorf("convmanager: load history: %w", err)
	}

	answered := make(map[string]bool)
	for _, msg := range history {
		if msg.Role == models.RoleTool && msg.ToolCallID != "" {
			answered[msg.ToolCallID] = true
		}
	}

	type outstanding struct {
		toolCallID string
		name       string
		args       json.RawMessage
		afterIndex int // position in history right after the assistant message
	}
	var gaps []outstanding
	for i, msg := range history {
		if msg.Role != models.RoleAssistant {
			continue
		}
		for _, tc := range msg.ToolCalls {
			if tc.ID != "" && !answered[tc.ID] {
				gaps = append(gaps, outstanding{toolCallID: tc.ID, name: tc.Name, args: tc.Arguments, afterIndex: i})
			}
		}
	}

	var report RepairReport
	repaired := append([]models.Message(nil), history...)
	inserted := 0

	for _, gap := range gaps {
		insertAt := gap.afterIndex + 1 + inserted

		if synthetic, ok := m.tryRecoverFromAudit(ctx, taskID, gap.toolCallID, gap.name); ok {
			repaired = insertMessage(repaired, insertAt, synthetic)
			inserted++
			report.RecoveredFromAudit++
			continue
		}

		risky, known := false, false
		if m.classifier != nil {
			risky, known = m.classifier.IsRisky(gap.name, gap.args)
		}
		if !known {
			repaired = insertMessage(repaired, insertAt, unknownToolResult(taskID, gap.toolCallID))
			inserted++
			report.UnknownTool++
			continue
		}

		if !risky && m.executor != nil {
			synthetic := m.reExecuteSafeTool(taskID, gap.toolCallID, gap.name, gap.args)
			repaired = insertMessage(repaired, insertAt, synthetic)
			inserted++
			report.ReExecutedSafe++
			continue
		}

		// S4: risky tool, leave dangling.
		report.LeftDangling++
	}

	if inserted > 0 {
		if err := m.conv.ReplaceHistory(ctx, taskID, repaired); err != nil {
			return nil, report, fmt.Errorf("convmanager: persist repaired history: %w", err)
		}
	}

	return repaired, report, nil
}

func insertMessage(history []models.Message, at int, msg models.Message) []models.Message {
	if at >= len(history) {
		return append(history, msg)
	}
	out := make([]models.Message, 0, len(history)+1)
	out = append(out, history[:at]...)
	out = append(out, msg)
	out = append(out, history[at:]...)
	return out
}

// tryRecoverFromAudit implements S1: if a ToolCallCompleted audit entry
// exists for this call, re-inject a synthetic tool message carrying its
// recorded output.
func (m *Manager) tryRecoverFromAudit(_ context.Context, taskID, toolCallID, toolName string) (models.Message, bool) {
	if m.auditLog == nil {
		return models.Message{}, false
	}
	entries := m.auditLog.GetEntriesForToolCall(context.Background(), toolCallID)
	for _, e := range entries {
		if e.Entry.Type == models.AuditToolCallCompleted {
			content := e.Entry.Output
			if content == "" && e.Entry.IsError {
				content = "tool execution failed"
			}
			return models.NewToolResultMessage(taskID, toolCallID, toolName, content), true
		}
	}
	return models.Message{}, false
}

// unknownToolResult implements S2.
func unknownToolResult(taskID, toolCallID string) models.Message {
	payload := models.ToolResultPayload{IsError: true, Error: "Tool execution interrupted (Unknown tool)"}
	return models.NewToolResultMessage(taskID, toolCallID, "", payload.Marshal())
}

// reExecuteSafeTool implements S3: re-run the tool via the Tool Executor
// and append whatever it returns, success or failure alike.
func (m *Manager) reExecuteSafeTool(taskID, toolCallID, toolName string, args json.RawMessage) models.Message {
	tc := &toolexec.Context{Context: context.Background(), TaskID: taskID}
	result, err := m.executor.Execute(toolexec.Call{ToolCallID: toolCallID, Name: toolName, Arguments: args}, tc)
	if err != nil && result.Output == "" {
		result = toolexec.Result{ToolCallID: toolCallID, Output: err.Error(), IsError: true}
	}
	return models.NewToolResultMessage(taskID, toolCallID, toolName, result.Output)
}

// IsSafeToInject implements §4.3's isSafeToInject: true iff the last
// non-tool-role message is a user message, or the last assistant message
// has every one of its tool calls already answered.
func IsSafeToInject(history []models.Message) bool {
	lastAssistant := -1
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == models.RoleAssistant {
			lastAssistant = i
			break
		}
		if history[i].Role == models.RoleUser {
			return true
		}
	}
	if lastAssistant == -1 {
		return true
	}

	answered := make(map[string]bool)
	for _, msg := range history[lastAssistant+1:] {
		if msg.Role == models.RoleTool && msg.ToolCallID != "" {
			answered[msg.ToolCallID] = true
		}
	}
	for _, tc := range history[lastAssistant].ToolCalls {
		if !answered[tc.ID] {
			return false
		}
	}
	return true
}

// QueueInstruction records an instruction that arrived while history was
// unsafe to inject into. DrainInstructions returns and clears them once
// the runtime reaches a safe yield point.
func (m *Manager) QueueInstruction(taskID, instruction string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queuedInstructions[taskID] = append(m.queuedInstructions[taskID], instruction)
}

// DrainInstructions returns and clears all instructions queued for a task.
func (m *Manager) DrainInstructions(taskID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	queued := m.queuedInstructions[taskID]
	delete(m.queuedInstructions, taskID)
	return queued
}

// AppendMessage passes a message through to the underlying Conversation
// Store, so callers that already hold a Manager don't need a second
// reference to the store just to append a user/instruction message.
func (m *Manager) AppendMessage(ctx context.Context, taskID string, msg models.Message) (models.Message, error) {
	return m.conv.AppendMessage(ctx, taskID, msg)
}

// GetHistory passes through to the Conversation Store without running
// the repair ladder, for callers that only need a safe-to-inject check
// against the current, already-consistent history.
func (m *Manager) GetHistory(ctx context.Context, taskID string) ([]models.Message, error) {
	return m.conv.GetHistory(ctx, taskID, 0)
}
