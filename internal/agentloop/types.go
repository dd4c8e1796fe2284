// Package agentloop implements the Output Handler (C7) and the Agent
// Runtime (C8): the per-task execution loop that drives one agent
// conversation to completion, dispatching each yielded AgentOutput and
// reacting to external pause/resume/cancel/instruction signals.
//
// Grounded on haasonsaas-nexus/internal/agent/runtime.go's overall shape
// (per-session lock, repair-then-run, iteration loop with suspension
// checks) and internal/agent/steering.go's signal-queue idiom, generalized
// from that file's Session/Channel model to the spec's per-task
// AgentOutput dispatch loop.
package agentloop

import (
	"context"
	"time"

	"github.com/haasonsaas/taskrun/internal/toolexec"
	"github.com/haasonsaas/taskrun/pkg/models"
)

// Agent is the external-collaborator surface the runtime drives: given the
// current conversation history and the tools available to it, it yields a
// sequence of AgentOutput values on a channel until the channel closes.
// Concrete LM-backed implementations are assembled by the embedding
// application; this core depends only on this interface (§6, "LM Client").
type Agent interface {
	Run(ctx context.Context, history []models.Message, tools []toolexec.Tool) (<-chan models.AgentOutput, error)
}

// UIBus is the fire-and-forget publication surface (§6).
type UIBus interface {
	Publish(event models.UIEvent)
}

// EventAppender is the subset of the Event Store the runtime needs to
// record domain events as it executes.
type EventAppender interface {
	Append(ctx context.Context, streamID string, events []models.DomainEvent) ([]models.StoredEvent, error)
}

// Conversation is the subset of the Conversation Store the runtime needs.
type Conversation interface {
	AppendMessage(ctx context.Context, taskID string, msg models.Message) (models.Message, error)
	GetHistory(ctx context.Context, taskID string, limit int) ([]models.Message, error)
}

// ToolContextFactory builds a toolexec.Context for one tool call, binding
// the confirmation id/tool-call-id pair when the call is a confirmed risky
// execution (SA-001).
type ToolContextFactory func(ctx context.Context, taskID, confirmedInteractionID, confirmedToolCallID string) *toolexec.Context

// StepResult reports what the Output Handler decided for one AgentOutput.
type StepResult struct {
	Pause    bool // a user interaction is now pending; the loop must suspend
	Terminal bool // the task reached done or failed; the loop must stop
}

// defaultToolCallTimeout bounds an individual tool execution inside the
// loop when the caller does not configure one explicitly.
const defaultToolCallTimeout = 30 * time.Second
