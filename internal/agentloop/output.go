package agentloop

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/taskrun/internal/toolexec"
	"github.com/haasonsaas/taskrun/pkg/models"
)

// OutputHandler implements C7: dispatches one AgentOutput at a time,
// persisting conversation messages, appending domain events, publishing to
// the UI Bus, and invoking the Tool Executor for tool_call outputs.
//
// Grounded on internal/agent/runtime.go's per-iteration tool-call handling
// (collect → policy check → execute → persist) generalized from that
// file's approval-queue model to the spec's interaction-based confirmation
// gate.
type OutputHandler struct {
	events     EventAppender
	conv       Conversation
	bus        UIBus
	executor   *toolexec.Executor
	registry   *toolexec.Registry
	newToolCtx ToolContextFactory
}

// NewOutputHandler constructs an OutputHandler.
func NewOutputHandler(events EventAppender, conv Conversation, bus UIBus, executor *toolexec.Executor, registry *toolexec.Registry, newToolCtx ToolContextFactory) *OutputHandler {
	return &OutputHandler{events: events, conv: conv, bus: bus, executor: executor, registry: registry, newToolCtx: newToolCtx}
}

// confirmation is the one-shot binding recorded after a risky tool's
// confirmation interaction is approved (INV-6, SA-001).
type confirmation struct {
	interactionID string
	toolCallID    string
}

// Handle dispatches a single AgentOutput per §4.4's rules, given the
// current risky-tool confirmation binding (nil if none is active).
func (h *OutputHandler) Handle(ctx context.Context, taskID string, out models.AgentOutput, confirmed *confirmation) (StepResult, error) {
	switch out.Kind {
	case models.OutputText, models.OutputReasoning:
		h.publish(taskID, out)
		return StepResult{}, nil

	case models.OutputVerbose, models.OutputError:
		h.publish(taskID, out)
		return StepResult{}, nil

	case models.OutputToolCall:
		return h.handleToolCall(ctx, taskID, out, confirmed)

	case models.OutputInteraction:
		if out.Interaction != nil {
			interaction := *out.Interaction
			if interaction.InteractionID == "" {
				interaction.InteractionID = uuid.NewString()
			}
			if _, err := h.events.Append(ctx, taskID, []models.DomainEvent{{
				Type:        models.EventUserInteractionRequested,
				Interaction: &interaction,
			}}); err != nil {
				return StepResult{}, fmt.Errorf("agentloop: append interaction requested: %w", err)
			}
		}
		return StepResult{Pause: true}, nil

	case models.OutputDone:
		if _, err := h.events.Append(ctx, taskID, []models.DomainEvent{{
			Type:    models.EventTaskCompleted,
			Summary: out.Summary,
		}}); err != nil {
			return StepResult{}, fmt.Errorf("agentloop: append task completed: %w", err)
		}
		return StepResult{Terminal: true}, nil

	case models.OutputFailed:
		if _, err := h.events.Append(ctx, taskID, []models.DomainEvent{{
			Type:          models.EventTaskFailed,
			FailureReason: out.FailureReason,
		}}); err != nil {
			return StepResult{}, fmt.Errorf("agentloop: append task failed: %w", err)
		}
		return StepResult{Terminal: true}, nil

	default:
		return StepResult{}, fmt.Errorf("agentloop: unknown output kind %q", out.Kind)
	}
}

func (h *OutputHandler) handleToolCall(ctx context.Context, taskID string, out models.AgentOutput, confirmed *confirmation) (StepResult, error) {
	if out.ToolCall == nil {
		return StepResult{}, fmt.Errorf("agentloop: tool_call output missing ToolCall")
	}
	call := toolexec.Call{ToolCallID: out.ToolCall.ID, Name: out.ToolCall.Name, Arguments: out.ToolCall.Arguments}

	tool, known := h.registry.Lookup(call.Name)
	if !known {
		h.persistToolResult(ctx, taskID, call.ToolCallID, call.Name, "unknown tool", true)
		return StepResult{}, nil
	}

	tc := h.newToolCtx(ctx, taskID, "", "")
	if confirmed != nil {
		tc.ConfirmedInteractionID = confirmed.interactionID
		tc.ConfirmedToolCallID = confirmed.toolCallID
	}

	if tool.RiskLevel(call.Arguments, tc) == toolexec.RiskRisky {
		if confirmed == nil || confirmed.toolCallID != call.ToolCallID {
			interaction := confirmationInteraction(call)
			if _, err := h.events.Append(ctx, taskID, []models.DomainEvent{{
				Type:        models.EventUserInteractionRequested,
				Interaction: &interaction,
			}}); err != nil {
				return StepResult{}, fmt.Errorf("agentloop: append interaction requested: %w", err)
			}
			return StepResult{Pause: true}, nil
		}
	}

	h.publishToolCallStart(taskID, call)
	result, err := h.executor.Execute(call, tc)
	if err != nil && result.Output == "" {
		result.Output = err.Error()
		result.IsError = true
	}
	h.publishToolCallEnd(taskID, call, result)
	h.persistToolResult(ctx, taskID, call.ToolCallID, call.Name, result.Output, result.IsError)

	return StepResult{}, nil
}

// handleRejection implements §4.4's rejection handler: given the rejected
// interaction's bound tool-call id, records the rejection via the
// executor's record-rejection entry point and persists the result.
func (h *OutputHandler) handleRejection(ctx context.Context, taskID string, interaction models.Interaction) error {
	toolCallID, ok := interaction.BoundToolCallID()
	if !ok {
		return nil
	}
	toolName := interaction.Display.Metadata["toolName"]
	tc := h.newToolCtx(ctx, taskID, "", "")
	result := h.executor.RecordRejection(toolexec.Call{ToolCallID: toolCallID, Name: toolName}, tc)
	h.persistToolResult(ctx, taskID, toolCallID, toolName, result.Output, result.IsError)
	return nil
}

func confirmationInteraction(call toolexec.Call) models.Interaction {
	return models.Interaction{
		InteractionID: uuid.NewString(),
		Kind:          models.InteractionConfirm,
		Purpose:       models.PurposeConfirmRiskyAction,
		Display: models.Display{
			Title:       fmt.Sprintf("Confirm %s", call.Name),
			Description: "This tool performs a risky action and requires approval before it runs.",
			Metadata:    map[string]string{"toolCallId": call.ToolCallID, "toolName": call.Name},
		},
		Options: []models.Option{
			{ID: "approve", Label: "Approve", Style: models.OptionStylePrimary, IsDefault: true},
			{ID: "reject", Label: "Reject", Style: models.OptionStyleDestructive},
		},
	}
}

func (h *OutputHandler) persistToolResult(ctx context.Context, taskID, toolCallID, toolName, content string, isError bool) {
	payload := models.ToolResultPayload{IsError: isError, Output: content}
	if isError {
		payload = models.ToolResultPayload{IsError: true, Error: content}
	}
	msg := models.NewToolResultMessage(taskID, toolCallID, toolName, payload.Marshal())
	h.conv.AppendMessage(ctx, taskID, msg)
}

func (h *OutputHandler) publish(taskID string, out models.AgentOutput) {
	if h.bus == nil {
		return
	}
	h.bus.Publish(models.UIEvent{
		Type:   models.UIEventAgentOutput,
		TaskID: taskID,
		Time:   time.Now(),
		AgentOutput: &models.AgentOutputPayload{Kind: out.Kind, Content: out.Content},
	})
}

func (h *OutputHandler) publishToolCallStart(taskID string, call toolexec.Call) {
	if h.bus == nil {
		return
	}
	h.bus.Publish(models.UIEvent{
		Type:   models.UIEventToolCallStart,
		TaskID: taskID,
		Time:   time.Now(),
		ToolCall: &models.ToolCallPayload{ToolCallID: call.ToolCallID, ToolName: call.Name},
	})
}

func (h *OutputHandler) publishToolCallEnd(taskID string, call toolexec.Call, result toolexec.Result) {
	if h.bus == nil {
		return
	}
	h.bus.Publish(models.UIEvent{
		Type:   models.UIEventToolCallEnd,
		TaskID: taskID,
		Time:   time.Now(),
		ToolCall: &models.ToolCallPayload{ToolCallID: call.ToolCallID, ToolName: call.Name, IsError: result.IsError, Output: result.Output},
	})
}
