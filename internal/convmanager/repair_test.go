package convmanager

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/haasonsaas/taskrun/internal/audit"
	"github.com/haasonsaas/taskrun/internal/convstore"
	"github.com/haasonsaas/taskrun/internal/toolexec"
	"github.com/haasonsaas/taskrun/pkg/models"
)

func assistantWithCall(content, toolCallID, toolName string) models.Message {
	return models.Message{
		Role:    models.RoleAssistant,
		Content: content,
		ToolCalls: []models.ToolCall{
			{ID: toolCallID, Name: toolName, Arguments: []byte(`{}`)},
		},
	}
}

type staticClassifier struct {
	risky map[string]bool
	known map[string]bool
}

func (c *staticClassifier) IsRisky(toolName string, _ json.RawMessage) (bool, bool) {
	if !c.known[toolName] {
		return false, false
	}
	return c.risky[toolName], true
}

type stubTool struct {
	name string
	risk toolexec.RiskLevel
	out  string
}

func (s *stubTool) Name() string                     { return s.name }
func (s *stubTool) Description() string              { return "" }
func (s *stubTool) ParametersSchema() json.RawMessage { return nil }
func (s *stubTool) Group() string                     { return "test" }
func (s *stubTool) RiskLevel(json.RawMessage, *toolexec.Context) toolexec.RiskLevel { return s.risk }
func (s *stubTool) CanExecute(json.RawMessage, *toolexec.Context) error             { return nil }
func (s *stubTool) Execute(json.RawMessage, *toolexec.Context) (toolexec.Result, error) {
	return toolexec.Result{Output: s.out}, nil
}

func TestLoadAndRepairS1RecoversFromAuditLog(t *testing.T) {
	ctx := context.Background()
	conv := convstore.NewMemory()
	conv.AppendMessage(ctx, "t1", assistantWithCall("do it", "call-1", "files.read"))

	auditLog, err := audit.NewLogger(audit.Config{Enabled: false})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	auditLog.LogToolCallRequested(ctx, "t1", "call-1", "files.read", nil)
	auditLog.LogToolCallCompleted(ctx, "t1", "call-1", "files.read", "recovered output", false, time.Millisecond)

	m := NewManager(conv, auditLog, nil, nil)
	repaired, report, err := m.LoadAndRepair(ctx, "t1")
	if err != nil {
		t.Fatalf("LoadAndRepair() error = %v", err)
	}
	if report.RecoveredFromAudit != 1 {
		t.Fatalf("report = %+v, want 1 recovered from audit", report)
	}
	if len(repaired) != 2 || repaired[1].Content != "recovered output" {
		t.Fatalf("repaired = %+v, want synthetic tool message with recovered output", repaired)
	}
}

func TestLoadAndRepairS2UnknownTool(t *testing.T) {
	ctx := context.Background()
	conv := convstore.NewMemory()
	conv.AppendMessage(ctx, "t1", assistantWithCall("do it", "call-1", "mystery.tool"))

	m := NewManager(conv, nil, &staticClassifier{known: map[string]bool{}}, nil)
	repaired, report, err := m.LoadAndRepair(ctx, "t1")
	if err != nil {
		t.Fatalf("LoadAndRepair() error = %v", err)
	}
	if report.UnknownTool != 1 {
		t.Fatalf("report = %+v, want 1 unknown tool", report)
	}
	var payload models.ToolResultPayload
	if err := json.Unmarshal([]byte(repaired[1].Content), &payload); err != nil {
		t.Fatalf("synthetic content not JSON: %v", err)
	}
	if !payload.IsError {
		t.Fatalf("payload = %+v, want IsError", payload)
	}
}

func TestLoadAndRepairS3ReExecutesSafeTool(t *testing.T) {
	ctx := context.Background()
	conv := convstore.NewMemory()
	conv.AppendMessage(ctx, "t1", assistantWithCall("do it", "call-1", "files.read"))

	reg := toolexec.NewRegistry()
	reg.Register(&stubTool{name: "files.read", risk: toolexec.RiskSafe, out: "re-executed"})
	exec := toolexec.NewExecutor(reg, nil)
	classifier := &staticClassifier{known: map[string]bool{"files.read": true}, risky: map[string]bool{"files.read": false}}

	m := NewManager(conv, nil, classifier, exec)
	repaired, report, err := m.LoadAndRepair(ctx, "t1")
	if err != nil {
		t.Fatalf("LoadAndRepair() error = %v", err)
	}
	if report.ReExecutedSafe != 1 {
		t.Fatalf("report = %+v, want 1 re-executed", report)
	}
	if repaired[1].Content != "re-executed" {
		t.Fatalf("repaired = %+v, want re-executed output", repaired)
	}
}

func TestLoadAndRepairS4RiskyToolLeftDangling(t *testing.T) {
	ctx := context.Background()
	conv := convstore.NewMemory()
	conv.AppendMessage(ctx, "t1", assistantWithCall("do it", "call-1", "exec.run"))

	classifier := &staticClassifier{known: map[string]bool{"exec.run": true}, risky: map[string]bool{"exec.run": true}}
	m := NewManager(conv, nil, classifier, nil)

	repaired, report, err := m.LoadAndRepair(ctx, "t1")
	if err != nil {
		t.Fatalf("LoadAndRepair() error = %v", err)
	}
	if report.LeftDangling != 1 {
		t.Fatalf("report = %+v, want 1 left dangling", report)
	}
	if len(repaired) != 1 {
		t.Fatalf("repaired = %+v, want no synthetic message inserted", repaired)
	}
}

func TestIsSafeToInjectTrueWhenLastMessageIsUser(t *testing.T) {
	history := []models.Message{
		{Role: models.RoleAssistant, Content: "hi"},
		{Role: models.RoleUser, Content: "ok"},
	}
	if !IsSafeToInject(history) {
		t.Fatal("expected safe to inject after a user message")
	}
}

func TestIsSafeToInjectFalseWithPendingToolCall(t *testing.T) {
	history := []models.Message{
		assistantWithCall("do it", "call-1", "files.read"),
	}
	if IsSafeToInject(history) {
		t.Fatal("expected unsafe to inject with an unanswered tool call")
	}
}

func TestIsSafeToInjectTrueWhenAllToolCallsAnswered(t *testing.T) {
	history := []models.Message{
		assistantWithCall("do it", "call-1", "files.read"),
		{Role: models.RoleTool, ToolCallID: "call-1", Content: "ok"},
	}
	if !IsSafeToInject(history) {
		t.Fatal("expected safe to inject once every tool call is answered")
	}
}

func TestQueueAndDrainInstructions(t *testing.T) {
	m := NewManager(convstore.NewMemory(), nil, nil, nil)
	m.QueueInstruction("t1", "do the next thing")
	m.QueueInstruction("t1", "and then this")

	drained := m.DrainInstructions("t1")
	if len(drained) != 2 {
		t.Fatalf("got %v, want 2 queued instructions", drained)
	}
	if again := m.DrainInstructions("t1"); len(again) != 0 {
		t.Fatalf("expected drain to clear the queue, got %v", again)
	}
}
