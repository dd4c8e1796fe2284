// Package taskservice implements the Task Service (C11): the command
// façade every client (CLI, HTTP/WebSocket transport, the Subtask tool)
// goes through to mutate a task. Every command validates the task's
// current projected state via the Task State Machine (C4) and appends
// exactly one event to the Event Store (C1); it never mutates a Task
// read model directly.
//
// Grounded on
// _examples/other_examples/3af9de26_andygeiss-go-agent__internal-domain-agent-task_service.go.go's
// TaskService (command validates, then publishes exactly once) and on
// haasonsaas-nexus/internal/agent/runtime.go's session-mutation call
// sites, which are the teacher's closest analogue to a command façade
// sitting in front of an event-sourced aggregate.
package taskservice

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/haasonsaas/taskrun/internal/eventstore"
	"github.com/haasonsaas/taskrun/internal/taskproj"
	"github.com/haasonsaas/taskrun/pkg/models"
)

// ErrInvalidTransition is returned when a command is not admissible from
// the task's current state (INV-4); no event is appended in that case.
var ErrInvalidTransition = taskproj.ErrInvalidTransition

// Service is the Task Service (C11).
type Service struct {
	store eventstore.Store
}

// NewService constructs a Task Service backed by store.
func NewService(store eventstore.Store) *Service {
	return &Service{store: store}
}

// CreateTaskRequest describes a new task. ParentTaskID is set by the
// Subtask tool (C10) when spawning a child; it is empty for top-level
// tasks.
type CreateTaskRequest struct {
	Title         string
	Intent        string
	Priority      models.Priority
	AgentID       string
	ParentTaskID  string
	AuthorActorID string
}

// CreateTask appends a TaskCreated event for a fresh task id and returns
// the resulting projection. Creation is always admissible; there is no
// prior state to validate against.
func (s *Service) CreateTask(ctx context.Context, req CreateTaskRequest) (models.Task, error) {
	if req.Title == "" {
		return models.Task{}, fmt.Errorf("taskservice: title is required")
	}
	if req.Priority == "" {
		req.Priority = models.PriorityNormal
	}
	taskID := uuid.NewString()

	stored, err := s.store.Append(ctx, taskID, []models.DomainEvent{{
		Type:          models.EventTaskCreated,
		AuthorActorID: req.AuthorActorID,
		Title:         req.Title,
		Intent:        req.Intent,
		Priority:      req.Priority,
		AgentID:       req.AgentID,
		ParentTaskID:  req.ParentTaskID,
	}})
	if err != nil {
		return models.Task{}, fmt.Errorf("taskservice: create task: %w", err)
	}
	return taskproj.Fold(stored)
}

// GetTask folds a task's full event stream into its current projection.
func (s *Service) GetTask(ctx context.Context, taskID string) (models.Task, error) {
	events, err := s.store.ReadStream(ctx, taskID, 0)
	if err != nil {
		return models.Task{}, fmt.Errorf("taskservice: read stream: %w", err)
	}
	if len(events) == 0 {
		return models.Task{}, fmt.Errorf("taskservice: task %s not found", taskID)
	}
	return taskproj.Fold(events)
}

// CancelTask appends TaskCanceled if the task's current state admits it.
func (s *Service) CancelTask(ctx context.Context, taskID, reason, authorActorID string) error {
	return s.appendValidated(ctx, taskID, models.DomainEvent{
		Type:          models.EventTaskCanceled,
		AuthorActorID: authorActorID,
		CancelReason:  reason,
	})
}

// PauseTask appends TaskPaused if the task's current state admits it.
func (s *Service) PauseTask(ctx context.Context, taskID, authorActorID string) error {
	return s.appendValidated(ctx, taskID, models.DomainEvent{
		Type:          models.EventTaskPaused,
		AuthorActorID: authorActorID,
	})
}

// ResumeTask appends TaskResumed if the task's current state admits it.
func (s *Service) ResumeTask(ctx context.Context, taskID, authorActorID string) error {
	return s.appendValidated(ctx, taskID, models.DomainEvent{
		Type:          models.EventTaskResumed,
		AuthorActorID: authorActorID,
	})
}

// AddInstruction appends TaskInstructionAdded if the task's current state
// admits it. The Agent Runtime (C8), not this service, decides whether to
// inject it immediately or queue it.
func (s *Service) AddInstruction(ctx context.Context, taskID, instruction, authorActorID string) error {
	if instruction == "" {
		return fmt.Errorf("taskservice: instruction must not be empty")
	}
	return s.appendValidated(ctx, taskID, models.DomainEvent{
		Type:          models.EventTaskInstructionAdded,
		AuthorActorID: authorActorID,
		Instruction:   instruction,
	})
}

// UpdateTodoList appends TaskTodoUpdated if the task's current state
// admits it, replacing the task's full todo list.
func (s *Service) UpdateTodoList(ctx context.Context, taskID string, todos []models.Todo, authorActorID string) error {
	return s.appendValidated(ctx, taskID, models.DomainEvent{
		Type:          models.EventTaskTodoUpdated,
		AuthorActorID: authorActorID,
		Todos:         todos,
	})
}

// RespondToInteraction appends UserInteractionResponded if the task's
// current state admits it and the response targets the currently pending
// interaction (SA-002); a stale id is rejected before the state-machine
// check even runs.
func (s *Service) RespondToInteraction(ctx context.Context, taskID string, response models.InteractionResponse, authorActorID string) error {
	task, err := s.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task.PendingInteractionID == "" || task.PendingInteractionID != response.InteractionID {
		return fmt.Errorf("taskservice: response references a stale or unknown interaction")
	}
	return s.appendValidated(ctx, taskID, models.DomainEvent{
		Type:             models.EventUserInteractionResponded,
		AuthorActorID:    authorActorID,
		InteractionID:    response.InteractionID,
		SelectedOptionID: response.SelectedOptionID,
		InputValue:       response.InputValue,
		Comment:          response.Comment,
	})
}

// appendValidated loads the task's current projection, checks that ev's
// type is an admissible transition from it (INV-4), and appends ev only
// if so.
func (s *Service) appendValidated(ctx context.Context, taskID string, ev models.DomainEvent) error {
	task, err := s.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if !taskproj.CanTransition(task.Status, ev.Type) {
		return fmt.Errorf("%w: %s -> %s on task %s", ErrInvalidTransition, task.Status, ev.Type, taskID)
	}
	_, err = s.store.Append(ctx, taskID, []models.DomainEvent{ev})
	if err != nil {
		return fmt.Errorf("taskservice: append %s: %w", ev.Type, err)
	}
	return nil
}
