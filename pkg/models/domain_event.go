package models

import "time"

// DomainEventType discriminates the tagged DomainEvent variants (§3).
type DomainEventType string

const (
	EventTaskCreated              DomainEventType = "task_created"
	EventTaskStarted              DomainEventType = "task_started"
	EventTaskCompleted            DomainEventType = "task_completed"
	EventTaskFailed               DomainEventType = "task_failed"
	EventTaskCanceled             DomainEventType = "task_canceled"
	EventTaskPaused               DomainEventType = "task_paused"
	EventTaskResumed              DomainEventType = "task_resumed"
	EventTaskInstructionAdded     DomainEventType = "task_instruction_added"
	EventTaskTodoUpdated          DomainEventType = "task_todo_updated"
	EventUserInteractionRequested DomainEventType = "user_interaction_requested"
	EventUserInteractionResponded DomainEventType = "user_interaction_responded"
)

// DomainEvent is the tagged union appended to the Event Store. Every variant
// carries AuthorActorID; only the fields relevant to Type are populated,
// mirroring a closed, exhaustively-matched sum type.
type DomainEvent struct {
	Type          DomainEventType `json:"type"`
	AuthorActorID string          `json:"author_actor_id"`

	// TaskCreated
	Title    string   `json:"title,omitempty"`
	Intent   string   `json:"intent,omitempty"`
	Priority Priority `json:"priority,omitempty"`
	AgentID  string   `json:"agent_id,omitempty"`
	ParentTaskID string `json:"parent_task_id,omitempty"`

	// TaskCompleted
	Summary string `json:"summary,omitempty"`

	// TaskFailed
	FailureReason string `json:"failure_reason,omitempty"`

	// TaskCanceled
	CancelReason string `json:"cancel_reason,omitempty"`

	// TaskInstructionAdded
	Instruction string `json:"instruction,omitempty"`

	// TaskTodoUpdated
	Todos []Todo `json:"todos,omitempty"`

	// UserInteractionRequested
	Interaction *Interaction `json:"interaction,omitempty"`

	// UserInteractionResponded
	InteractionID    string `json:"interaction_id,omitempty"`
	SelectedOptionID string `json:"selected_option_id,omitempty"`
	InputValue       string `json:"input_value,omitempty"`
	Comment          string `json:"comment,omitempty"`
}

// StoredEvent is a DomainEvent as it exists in the Event Store: it carries
// the globally monotonic ID, the per-stream monotonic Seq, and the time it
// was durably written (INV-1).
type StoredEvent struct {
	ID        uint64      `json:"id"`
	StreamID  string      `json:"stream_id"`
	Seq       uint64      `json:"seq"`
	CreatedAt time.Time   `json:"created_at"`
	Event     DomainEvent `json:"event"`
}
