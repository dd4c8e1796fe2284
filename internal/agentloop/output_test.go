package agentloop

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/haasonsaas/taskrun/internal/toolexec"
	"github.com/haasonsaas/taskrun/pkg/models"
)

type fakeTool struct {
	name string
	risk toolexec.RiskLevel
	out  string
}

func (f *fakeTool) Name() string                     { return f.name }
func (f *fakeTool) Description() string              { return "fake" }
func (f *fakeTool) ParametersSchema() json.RawMessage { return nil }
func (f *fakeTool) Group() string                     { return "test" }
func (f *fakeTool) RiskLevel(json.RawMessage, *toolexec.Context) toolexec.RiskLevel {
	return f.risk
}
func (f *fakeTool) CanExecute(json.RawMessage, *toolexec.Context) error { return nil }
func (f *fakeTool) Execute(json.RawMessage, *toolexec.Context) (toolexec.Result, error) {
	return toolexec.Result{Output: f.out}, nil
}

type fakeEvents struct {
	appended []models.DomainEvent
}

func (f *fakeEvents) Append(_ context.Context, _ string, events []models.DomainEvent) ([]models.StoredEvent, error) {
	f.appended = append(f.appended, events...)
	var out []models.StoredEvent
	for _, e := range events {
		out = append(out, models.StoredEvent{Event: e})
	}
	return out, nil
}

type fakeConv struct {
	messages []models.Message
}

func (f *fakeConv) AppendMessage(_ context.Context, taskID string, msg models.Message) (models.Message, error) {
	msg.TaskID = taskID
	msg.Index = len(f.messages)
	f.messages = append(f.messages, msg)
	return msg, nil
}
func (f *fakeConv) GetHistory(_ context.Context, _ string, _ int) ([]models.Message, error) {
	return f.messages, nil
}

type fakeBus struct {
	events []models.UIEvent
}

func (f *fakeBus) Publish(e models.UIEvent) { f.events = append(f.events, e) }

func newToolCtxFactory(ctx context.Context, taskID, confirmedInteractionID, confirmedToolCallID string) *toolexec.Context {
	return &toolexec.Context{
		Context:                ctx,
		TaskID:                 taskID,
		ConfirmedInteractionID: confirmedInteractionID,
		ConfirmedToolCallID:    confirmedToolCallID,
	}
}

func newTestHandler(reg *toolexec.Registry) (*OutputHandler, *fakeEvents, *fakeConv, *fakeBus) {
	events := &fakeEvents{}
	conv := &fakeConv{}
	bus := &fakeBus{}
	exec := toolexec.NewExecutor(reg, nil)
	h := NewOutputHandler(events, conv, bus, exec, reg, newToolCtxFactory)
	return h, events, conv, bus
}

func TestHandleTextPublishesToBus(t *testing.T) {
	h, _, _, bus := newTestHandler(toolexec.NewRegistry())
	step, err := h.Handle(context.Background(), "t1", models.AgentOutput{Kind: models.OutputText, Content: "hi"}, nil)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if step.Pause || step.Terminal {
		t.Fatalf("got %+v, want non-terminal step", step)
	}
	if len(bus.events) != 1 || bus.events[0].AgentOutput.Content != "hi" {
		t.Fatalf("bus events = %+v", bus.events)
	}
}

func TestHandleSafeToolCallExecutesAndPersists(t *testing.T) {
	reg := toolexec.NewRegistry()
	reg.Register(&fakeTool{name: "files.read", risk: toolexec.RiskSafe, out: "contents"})
	h, _, conv, _ := newTestHandler(reg)

	out := models.AgentOutput{Kind: models.OutputToolCall, ToolCall: &models.ToolCall{ID: "c1", Name: "files.read"}}
	step, err := h.Handle(context.Background(), "t1", out, nil)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if step.Pause || step.Terminal {
		t.Fatalf("got %+v, want non-terminal step", step)
	}
	if len(conv.messages) != 1 || conv.messages[0].Role != models.RoleTool {
		t.Fatalf("conv.messages = %+v, want one tool result", conv.messages)
	}
	var payload models.ToolResultPayload
	if err := json.Unmarshal([]byte(conv.messages[0].Content), &payload); err != nil {
		t.Fatalf("content not JSON: %v", err)
	}
	if payload.Output != "contents" {
		t.Fatalf("payload = %+v, want contents", payload)
	}
}

func TestHandleRiskyToolCallWithoutConfirmationRequestsInteraction(t *testing.T) {
	reg := toolexec.NewRegistry()
	reg.Register(&fakeTool{name: "exec.run", risk: toolexec.RiskRisky})
	h, events, conv, _ := newTestHandler(reg)

	out := models.AgentOutput{Kind: models.OutputToolCall, ToolCall: &models.ToolCall{ID: "c1", Name: "exec.run"}}
	step, err := h.Handle(context.Background(), "t1", out, nil)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if !step.Pause {
		t.Fatalf("got %+v, want pause for risky confirmation", step)
	}
	if len(conv.messages) != 0 {
		t.Fatalf("conv.messages = %+v, want no tool result yet", conv.messages)
	}
	if len(events.appended) != 1 || events.appended[0].Type != models.EventUserInteractionRequested {
		t.Fatalf("events = %+v, want interaction requested", events.appended)
	}
	if id, ok := events.appended[0].Interaction.BoundToolCallID(); !ok || id != "c1" {
		t.Fatalf("interaction not bound to call c1: %+v", events.appended[0].Interaction)
	}
}

func TestHandleRiskyToolCallWithMatchingConfirmationExecutes(t *testing.T) {
	reg := toolexec.NewRegistry()
	reg.Register(&fakeTool{name: "exec.run", risk: toolexec.RiskRisky, out: "ran"})
	h, _, conv, _ := newTestHandler(reg)

	out := models.AgentOutput{Kind: models.OutputToolCall, ToolCall: &models.ToolCall{ID: "c1", Name: "exec.run"}}
	confirmed := &confirmation{interactionID: "i1", toolCallID: "c1"}
	step, err := h.Handle(context.Background(), "t1", out, confirmed)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if step.Pause || step.Terminal {
		t.Fatalf("got %+v, want non-terminal step", step)
	}
	if len(conv.messages) != 1 {
		t.Fatalf("conv.messages = %+v, want the tool result persisted", conv.messages)
	}
}

func TestHandleUnknownToolPersistsErrorResult(t *testing.T) {
	h, _, conv, _ := newTestHandler(toolexec.NewRegistry())
	out := models.AgentOutput{Kind: models.OutputToolCall, ToolCall: &models.ToolCall{ID: "c1", Name: "mystery"}}
	if _, err := h.Handle(context.Background(), "t1", out, nil); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(conv.messages) != 1 {
		t.Fatalf("conv.messages = %+v", conv.messages)
	}
	var payload models.ToolResultPayload
	if err := json.Unmarshal([]byte(conv.messages[0].Content), &payload); err != nil {
		t.Fatalf("content not JSON: %v", err)
	}
	if !payload.IsError {
		t.Fatalf("payload = %+v, want IsError", payload)
	}
}

func TestHandleDoneAppendsTerminalEvent(t *testing.T) {
	h, events, _, _ := newTestHandler(toolexec.NewRegistry())
	step, err := h.Handle(context.Background(), "t1", models.AgentOutput{Kind: models.OutputDone, Summary: "all set"}, nil)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if !step.Terminal {
		t.Fatalf("got %+v, want terminal", step)
	}
	if len(events.appended) != 1 || events.appended[0].Type != models.EventTaskCompleted {
		t.Fatalf("events = %+v, want task completed", events.appended)
	}
}

func TestHandleFailedAppendsTerminalEvent(t *testing.T) {
	h, events, _, _ := newTestHandler(toolexec.NewRegistry())
	step, err := h.Handle(context.Background(), "t1", models.AgentOutput{Kind: models.OutputFailed, FailureReason: "boom"}, nil)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if !step.Terminal {
		t.Fatalf("got %+v, want terminal", step)
	}
	if len(events.appended) != 1 || events.appended[0].Type != models.EventTaskFailed {
		t.Fatalf("events = %+v, want task failed", events.appended)
	}
}

func TestHandleRejectionPersistsRejectedResult(t *testing.T) {
	reg := toolexec.NewRegistry()
	reg.Register(&fakeTool{name: "exec.run", risk: toolexec.RiskRisky})
	h, _, conv, _ := newTestHandler(reg)

	interaction := models.Interaction{
		InteractionID: "i1",
		Display:       models.Display{Metadata: map[string]string{"toolCallId": "c1", "toolName": "exec.run"}},
	}
	if err := h.handleRejection(context.Background(), "t1", interaction); err != nil {
		t.Fatalf("handleRejection() error = %v", err)
	}
	if len(conv.messages) != 1 || !isRejected(conv.messages[0]) {
		t.Fatalf("conv.messages = %+v, want a rejected tool result", conv.messages)
	}
}

func isRejected(msg models.Message) bool {
	var payload models.ToolResultPayload
	if err := json.Unmarshal([]byte(msg.Content), &payload); err != nil {
		return false
	}
	return payload.IsError && payload.Error == "User rejected"
}
