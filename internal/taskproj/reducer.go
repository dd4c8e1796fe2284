package taskproj

import (
	"fmt"

	"github.com/haasonsaas/taskrun/pkg/models"
)

// ErrInvalidTransition is returned by Apply when an event is not
// admissible from the task's current state (INV-4).
var ErrInvalidTransition = fmt.Errorf("taskproj: invalid state transition")

// Apply folds one StoredEvent onto a Task snapshot and returns the
// resulting Task. It is a pure function: no I/O, no global state, and the
// same (task, event) pair always produces the same result (required by the
// spec for C4). The zero Task{} is the valid starting point for a new
// stream before its TaskCreated event is folded.
func Apply(task models.Task, ev models.StoredEvent) (models.Task, error) {
	e := ev.Event

	if e.Type == models.EventTaskCreated {
		return models.Task{
			ID:           ev.StreamID,
			Title:        e.Title,
			Intent:       e.Intent,
			Priority:     e.Priority,
			AgentID:      e.AgentID,
			Status:       models.TaskOpen,
			ParentTaskID: e.ParentTaskID,
			CreatedAt:    ev.CreatedAt,
			UpdatedAt:    ev.CreatedAt,
		}, nil
	}

	if !CanTransition(task.Status, e.Type) {
		return task, fmt.Errorf("%w: %s -> %s on task %s", ErrInvalidTransition, task.Status, e.Type, task.ID)
	}

	next := task.Clone()
	next.Status = nextStatus(task.Status, e.Type)
	next.UpdatedAt = ev.CreatedAt

	switch e.Type {
	case models.EventTaskStarted:
		// Open Question 1 (DESIGN.md): TaskStarted from `done` preserves
		// Summary/Todos; only status and FailureReason change.
		next.FailureReason = ""
	case models.EventTaskCompleted:
		next.Summary = e.Summary
	case models.EventTaskFailed:
		next.FailureReason = e.FailureReason
	case models.EventTaskCanceled:
		next.FailureReason = e.CancelReason
	case models.EventTaskInstructionAdded:
		// Instructions do not mutate projected fields; the Conversation
		// Manager (C5) is responsible for queuing/injecting them.
	case models.EventTaskTodoUpdated:
		next.Todos = append([]models.Todo(nil), e.Todos...)
	case models.EventUserInteractionRequested:
		if e.Interaction != nil {
			next.PendingInteractionID = e.Interaction.InteractionID
		}
	case models.EventUserInteractionResponded:
		// INV-3: only clear pending state on a matching id. The caller
		// (Task Service) is expected to have already validated the id
		// matches before appending this event, but the reducer re-checks
		// defensively since it must hold regardless of caller discipline.
		if e.InteractionID == task.PendingInteractionID {
			next.PendingInteractionID = ""
		}
	}

	return next, nil
}

// Fold replays a full ordered stream of events for one task, starting from
// the zero Task, and returns the final projected Task. Used by Runtime
// Manager / Task Service to rebuild a TaskView from the Event Store on
// startup (no separate durable projection table is required for a single
// task's own stream; callers that need cross-task read models still use
// Event Store's cursor-based projection mechanism).
func Fold(events []models.StoredEvent) (models.Task, error) {
	var task models.Task
	for _, ev := range events {
		var err error
		task, err = Apply(task, ev)
		if err != nil {
			return task, err
		}
	}
	return task, nil
}
