package taskservice

import (
	"context"
	"errors"
	"testing"

	"github.com/haasonsaas/taskrun/internal/eventstore"
	"github.com/haasonsaas/taskrun/pkg/models"
)

func newTestService() (*Service, eventstore.Store) {
	store := eventstore.NewMemory()
	return NewService(store), store
}

func TestCreateTaskAppendsTaskCreated(t *testing.T) {
	svc, store := newTestService()

	task, err := svc.CreateTask(context.Background(), CreateTaskRequest{
		Title:   "investigate outage",
		AgentID: "agent-1",
	})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	if task.Status != models.TaskOpen {
		t.Fatalf("Status = %q, want open", task.Status)
	}

	events, err := store.ReadStream(context.Background(), task.ID, 0)
	if err != nil {
		t.Fatalf("ReadStream() error = %v", err)
	}
	if len(events) != 1 || events[0].Event.Type != models.EventTaskCreated {
		t.Fatalf("events = %+v, want one TaskCreated", events)
	}
}

func TestCreateTaskRequiresTitle(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.CreateTask(context.Background(), CreateTaskRequest{}); err == nil {
		t.Fatal("CreateTask() error = nil, want error for missing title")
	}
}

func TestPauseThenResumeRoundTrips(t *testing.T) {
	svc, _ := newTestService()
	task, err := svc.CreateTask(context.Background(), CreateTaskRequest{Title: "t"})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	// open cannot be paused directly; only in_progress/awaiting_user can.
	if err := svc.PauseTask(context.Background(), task.ID, "user-1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("PauseTask() error = %v, want ErrInvalidTransition", err)
	}

	if err := svc.AddInstruction(context.Background(), task.ID, "start", "user-1"); err != nil {
		t.Fatalf("AddInstruction() error = %v", err)
	}
	got, err := svc.GetTask(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if got.Status != models.TaskInProgress {
		t.Fatalf("Status = %q, want in_progress", got.Status)
	}

	if err := svc.PauseTask(context.Background(), task.ID, "user-1"); err != nil {
		t.Fatalf("PauseTask() error = %v", err)
	}
	got, err = svc.GetTask(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if got.Status != models.TaskPausedStatus {
		t.Fatalf("Status = %q, want paused", got.Status)
	}

	if err := svc.ResumeTask(context.Background(), task.ID, "user-1"); err != nil {
		t.Fatalf("ResumeTask() error = %v", err)
	}
	got, err = svc.GetTask(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if got.Status != models.TaskInProgress {
		t.Fatalf("Status = %q, want in_progress after resume", got.Status)
	}
}

func TestResumeRejectedWhenNotPaused(t *testing.T) {
	svc, _ := newTestService()
	task, err := svc.CreateTask(context.Background(), CreateTaskRequest{Title: "t"})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	if err := svc.ResumeTask(context.Background(), task.ID, "user-1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("ResumeTask() error = %v, want ErrInvalidTransition", err)
	}
}

func TestCancelTaskFromOpen(t *testing.T) {
	svc, _ := newTestService()
	task, err := svc.CreateTask(context.Background(), CreateTaskRequest{Title: "t"})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	if err := svc.CancelTask(context.Background(), task.ID, "no longer needed", "user-1"); err != nil {
		t.Fatalf("CancelTask() error = %v", err)
	}
	got, err := svc.GetTask(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if got.Status != models.TaskCanceledStatus {
		t.Fatalf("Status = %q, want canceled", got.Status)
	}
}

func TestCancelTaskRejectedWhenAlreadyTerminal(t *testing.T) {
	svc, _ := newTestService()
	task, err := svc.CreateTask(context.Background(), CreateTaskRequest{Title: "t"})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	if err := svc.CancelTask(context.Background(), task.ID, "first", "user-1"); err != nil {
		t.Fatalf("CancelTask() error = %v", err)
	}
	if err := svc.CancelTask(context.Background(), task.ID, "second", "user-1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("CancelTask() error = %v, want ErrInvalidTransition", err)
	}
}

func TestUpdateTodoListReplacesTodos(t *testing.T) {
	svc, _ := newTestService()
	task, err := svc.CreateTask(context.Background(), CreateTaskRequest{Title: "t"})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	todos := []models.Todo{{ID: "1", Text: "step one"}, {ID: "2", Text: "step two", Done: true}}
	if err := svc.UpdateTodoList(context.Background(), task.ID, todos, "agent-1"); err != nil {
		t.Fatalf("UpdateTodoList() error = %v", err)
	}
	got, err := svc.GetTask(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if len(got.Todos) != 2 || !got.Todos[1].Done {
		t.Fatalf("Todos = %+v, want two todos with second done", got.Todos)
	}
}

func TestGetTaskUnknownID(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.GetTask(context.Background(), "nope"); err == nil {
		t.Fatal("GetTask() error = nil, want error for unknown task")
	}
}

func TestRespondToInteractionRejectsStaleID(t *testing.T) {
	svc, _ := newTestService()
	task, err := svc.CreateTask(context.Background(), CreateTaskRequest{Title: "t"})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	err = svc.RespondToInteraction(context.Background(), task.ID, models.InteractionResponse{
		InteractionID:    "does-not-exist",
		SelectedOptionID: "approve",
	}, "user-1")
	if err == nil {
		t.Fatal("RespondToInteraction() error = nil, want error for stale interaction id")
	}
}
