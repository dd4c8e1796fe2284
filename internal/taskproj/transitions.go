// Package taskproj implements the Task State Machine (C4): a pure,
// deterministic reducer that folds DomainEvents into Task read models, and
// the transition guard that the rest of the system consults before
// appending a new event.
//
// Grounded on the status-enum and IsTerminal idiom of
// haasonsaas-nexus/internal/tasks/types.go, generalized from a single
// cron-execution status enum to the spec's seven-state task machine.
package taskproj

import "github.com/haasonsaas/taskrun/pkg/models"

// CanTransition reports whether eventType is an admissible transition out of
// state, per the table in SPEC_FULL.md §4.1. It is consulted by both the
// Task Service (C11, before appending) and the Agent Runtime (C8, before
// appending a TaskFailed on error).
func CanTransition(state models.TaskStatus, eventType models.DomainEventType) bool {
	switch state {
	case models.TaskOpen:
		switch eventType {
		case models.EventTaskStarted, models.EventTaskCanceled,
			models.EventTaskInstructionAdded, models.EventTaskTodoUpdated:
			return true
		}
	case models.TaskInProgress:
		switch eventType {
		case models.EventTaskStarted, models.EventUserInteractionRequested,
			models.EventTaskCompleted, models.EventTaskFailed, models.EventTaskCanceled,
			models.EventTaskPaused, models.EventTaskInstructionAdded, models.EventTaskTodoUpdated:
			return true
		}
	case models.TaskAwaitingUser:
		switch eventType {
		case models.EventUserInteractionResponded, models.EventTaskCanceled,
			models.EventTaskInstructionAdded, models.EventTaskTodoUpdated:
			return true
		}
	case models.TaskPausedStatus:
		switch eventType {
		case models.EventTaskFailed, models.EventTaskCanceled,
			models.EventTaskResumed, models.EventTaskTodoUpdated:
			return true
		}
	case models.TaskDone:
		switch eventType {
		case models.EventTaskStarted, models.EventTaskInstructionAdded, models.EventTaskTodoUpdated:
			return true
		}
	case models.TaskFailedStatus:
		switch eventType {
		case models.EventTaskInstructionAdded, models.EventTaskTodoUpdated:
			return true
		}
	case models.TaskCanceledStatus:
		return false
	}
	return false
}

// nextStatus returns the status that results from applying eventType to
// state, assuming CanTransition(state, eventType) already holds. Some
// events are admissible but do not change status (e.g. an instruction added
// while in_progress stays in_progress); those map to state itself.
func nextStatus(state models.TaskStatus, eventType models.DomainEventType) models.TaskStatus {
	switch eventType {
	case models.EventTaskStarted:
		return models.TaskInProgress
	case models.EventUserInteractionRequested:
		return models.TaskAwaitingUser
	case models.EventUserInteractionResponded:
		return models.TaskInProgress
	case models.EventTaskCompleted:
		return models.TaskDone
	case models.EventTaskFailed:
		return models.TaskFailedStatus
	case models.EventTaskCanceled:
		return models.TaskCanceledStatus
	case models.EventTaskPaused:
		return models.TaskPausedStatus
	case models.EventTaskResumed:
		return models.TaskInProgress
	case models.EventTaskInstructionAdded:
		switch state {
		case models.TaskOpen, models.TaskDone, models.TaskFailedStatus:
			return models.TaskInProgress
		default:
			return state
		}
	default:
		return state
	}
}
