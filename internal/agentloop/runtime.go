package agentloop

import (
	"context"
	"fmt"
	"sync"

	"github.com/haasonsaas/taskrun/internal/convmanager"
	"github.com/haasonsaas/taskrun/internal/taskproj"
	"github.com/haasonsaas/taskrun/internal/toolexec"
	"github.com/haasonsaas/taskrun/pkg/models"
)

// EventReader is the subset of the Event Store the runtime needs to fold
// the current Task projection and to recover a past interaction's bound
// tool call id.
type EventReader interface {
	ReadStream(ctx context.Context, streamID string) ([]models.StoredEvent, error)
}

// Runtime is the Agent Runtime (C8): one instance per task, owning that
// task's execution loop and its pause/cancel/instruction signals.
//
// Grounded on haasonsaas-nexus/internal/agent/runtime.go's per-session
// execute/resume shape and internal/agent/steering.go's signal-queue
// idiom, narrowed to the spec's scalar-state-only runtime (no session
// channel model, no compaction).
type Runtime struct {
	taskID string
	agent  Agent
	tools  []toolexec.Tool

	conv   *convmanager.Manager
	output *OutputHandler
	events EventReader

	mu              sync.Mutex
	isExecuting     bool
	isPaused        bool
	isCanceled      bool
	pendingResponse *models.InteractionResponse
}

// NewRuntime constructs an Agent Runtime for one task.
func NewRuntime(taskID string, agent Agent, tools []toolexec.Tool, conv *convmanager.Manager, output *OutputHandler, events EventReader) *Runtime {
	return &Runtime{
		taskID: taskID,
		agent:  agent,
		tools:  tools,
		conv:   conv,
		output: output,
		events: events,
	}
}

// onPause records a pause request; it takes effect at the next
// suspension point (after the current AgentOutput finishes dispatching).
func (r *Runtime) OnPause() {
	r.mu.Lock()
	r.isPaused = true
	r.mu.Unlock()
}

// onResume clears a pending pause.
func (r *Runtime) OnResume() {
	r.mu.Lock()
	r.isPaused = false
	r.mu.Unlock()
}

// onCancel marks the task canceled; the loop breaks at the next
// suspension point regardless of pause state.
func (r *Runtime) OnCancel() {
	r.mu.Lock()
	r.isCanceled = true
	r.mu.Unlock()
}

// onInstruction implements §4.5's instruction-arrival rules: queue while
// executing, inject immediately and re-enter the loop when it is safe to
// do so, otherwise queue for the next drain point.
func (r *Runtime) OnInstruction(ctx context.Context, instruction string) error {
	r.mu.Lock()
	executing := r.isExecuting
	r.mu.Unlock()

	if executing {
		r.conv.QueueInstruction(r.taskID, instruction)
		return nil
	}

	history, _, err := r.conv.LoadAndRepair(ctx, r.taskID)
	if err != nil {
		return fmt.Errorf("agentloop: load history for instruction: %w", err)
	}
	if !convmanager.IsSafeToInject(history) {
		r.conv.QueueInstruction(r.taskID, instruction)
		return nil
	}

	msg := models.Message{TaskID: r.taskID, Role: models.RoleUser, Content: instruction}
	if _, err := r.conv.AppendMessage(ctx, r.taskID, msg); err != nil {
		return fmt.Errorf("agentloop: persist instruction: %w", err)
	}
	return r.Execute(ctx)
}

// Resume implements §4.5's resume(response): records a user's answer to
// the pending interaction and re-enters the execution loop.
func (r *Runtime) Resume(ctx context.Context, response models.InteractionResponse) error {
	r.mu.Lock()
	r.pendingResponse = &response
	r.mu.Unlock()
	return r.Execute(ctx)
}

// Execute implements §4.5's execution loop. The single-flight guard
// (CC-008) makes a concurrent call while one is already running a no-op;
// the caller observes the in-flight call's eventual outcome via the Event
// Store rather than this call's return value.
func (r *Runtime) Execute(ctx context.Context) error {
	r.mu.Lock()
	if r.isExecuting {
		r.mu.Unlock()
		return nil
	}
	r.isExecuting = true
	response := r.pendingResponse
	r.pendingResponse = nil
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.isExecuting = false
		r.mu.Unlock()
	}()

	var confirmed *confirmation
	var err error
	if response != nil {
		confirmed, err = r.applyResponse(ctx, *response)
		if err != nil {
			return err
		}
	}

	if err := r.drainInstructions(ctx); err != nil {
		return err
	}
	if err := r.ensureStarted(ctx); err != nil {
		return err
	}

	history, _, err := r.conv.LoadAndRepair(ctx, r.taskID)
	if err != nil {
		return fmt.Errorf("agentloop: load and repair: %w", err)
	}

	outputs, err := r.agent.Run(ctx, history, r.tools)
	if err != nil {
		return r.fail(ctx, err)
	}

	for out := range outputs {
		if err := r.drainInstructions(ctx); err != nil {
			return err
		}

		if r.canceled() {
			return nil
		}
		if r.paused() {
			current, err := r.conv.GetHistory(ctx, r.taskID)
			if err == nil && convmanager.IsSafeToInject(current) {
				return nil
			}
		}

		step, err := r.output.Handle(ctx, r.taskID, out, confirmed)
		if err != nil {
			return r.fail(ctx, err)
		}
		confirmed = nil

		if step.Pause || step.Terminal {
			return nil
		}
	}

	return nil
}

// applyResponse resolves a pending interaction response: a rejection
// triggers the Output Handler's rejection path immediately, an approval
// derives the confirmedInteractionId/confirmedToolCallId pair the next
// tool_call output must honor (§4.5 step 2).
func (r *Runtime) applyResponse(ctx context.Context, response models.InteractionResponse) (*confirmation, error) {
	interaction, err := r.findInteraction(ctx, response.InteractionID)
	if err != nil || interaction == nil {
		return nil, err
	}

	toolCallID, bound := interaction.BoundToolCallID()
	if !bound {
		return nil, nil
	}

	if response.IsRejection() {
		if err := r.output.handleRejection(ctx, r.taskID, *interaction); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if response.IsApproval() {
		return &confirmation{interactionID: response.InteractionID, toolCallID: toolCallID}, nil
	}
	return nil, nil
}

// findInteraction recovers the full Interaction a past
// UserInteractionRequested event carried, by id, so its Display.Metadata
// binding can be read back (the Task projection retains only the id).
func (r *Runtime) findInteraction(ctx context.Context, interactionID string) (*models.Interaction, error) {
	events, err := r.events.ReadStream(ctx, r.taskID)
	if err != nil {
		return nil, fmt.Errorf("agentloop: read stream for interaction lookup: %w", err)
	}
	for i := len(events) - 1; i >= 0; i-- {
		e := events[i].Event
		if e.Type == models.EventUserInteractionRequested && e.Interaction != nil && e.Interaction.InteractionID == interactionID {
			return e.Interaction, nil
		}
	}
	return nil, nil
}

func (r *Runtime) drainInstructions(ctx context.Context) error {
	history, _, err := r.conv.LoadAndRepair(ctx, r.taskID)
	if err != nil {
		return fmt.Errorf("agentloop: load history to drain instructions: %w", err)
	}
	if !convmanager.IsSafeToInject(history) {
		return nil
	}
	queued := r.conv.DrainInstructions(r.taskID)
	for _, instruction := range queued {
		msg := models.Message{TaskID: r.taskID, Role: models.RoleUser, Content: instruction}
		if _, err := r.conv.AppendMessage(ctx, r.taskID, msg); err != nil {
			return fmt.Errorf("agentloop: persist queued instruction: %w", err)
		}
	}
	return nil
}

func (r *Runtime) canceled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isCanceled
}

func (r *Runtime) paused() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isPaused
}

func (r *Runtime) fail(ctx context.Context, cause error) error {
	task, loadErr := r.currentTask(ctx)
	if loadErr == nil && taskproj.CanTransition(task.Status, models.EventTaskFailed) {
		r.output.events.Append(ctx, r.taskID, []models.DomainEvent{{
			Type:          models.EventTaskFailed,
			FailureReason: cause.Error(),
		}})
	}
	return cause
}

// ensureStarted appends TaskStarted the first time a task's runtime
// actually begins executing, taking it from open to in_progress. It is a
// no-op for a task that has already started (resumed from paused, or
// re-entered after an interaction response), since TaskStarted is only
// admissible from open.
func (r *Runtime) ensureStarted(ctx context.Context) error {
	task, err := r.currentTask(ctx)
	if err != nil {
		return fmt.Errorf("agentloop: load task before start: %w", err)
	}
	if !taskproj.CanTransition(task.Status, models.EventTaskStarted) {
		return nil
	}
	if _, err := r.output.events.Append(ctx, r.taskID, []models.DomainEvent{{Type: models.EventTaskStarted}}); err != nil {
		return fmt.Errorf("agentloop: append task started: %w", err)
	}
	return nil
}

func (r *Runtime) currentTask(ctx context.Context) (models.Task, error) {
	events, err := r.events.ReadStream(ctx, r.taskID)
	if err != nil {
		return models.Task{}, err
	}
	return taskproj.Fold(events)
}
