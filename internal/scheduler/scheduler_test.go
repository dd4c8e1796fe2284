package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/haasonsaas/taskrun/internal/eventstore"
	"github.com/haasonsaas/taskrun/internal/taskservice"
)

func newTestScheduler(t *testing.T) (*Scheduler, *taskservice.Service) {
	t.Helper()
	svc := taskservice.NewService(eventstore.NewMemory())
	return New(svc, nil), svc
}

func TestAddTaskRejectsInvalidSchedule(t *testing.T) {
	s, _ := newTestScheduler(t)
	err := s.AddTask(&ScheduledTask{ID: "t1", Name: "n", Schedule: "not a cron expression"})
	if err == nil {
		t.Fatal("AddTask() error = nil, want error for invalid schedule")
	}
}

func TestAddTaskRejectsDuplicateID(t *testing.T) {
	s, _ := newTestScheduler(t)
	task := &ScheduledTask{ID: "t1", Name: "n", Schedule: "@every 1h"}
	if err := s.AddTask(task); err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}
	if err := s.AddTask(task); err == nil {
		t.Fatal("AddTask() error = nil, want error for duplicate id")
	}
}

func TestFireCreatesTaskViaTaskService(t *testing.T) {
	s, svc := newTestScheduler(t)
	task := &ScheduledTask{ID: "t1", Name: "daily digest", Schedule: "@every 1h", AgentID: "digest-bot", Prompt: "summarize today"}

	s.fire(task)

	if task.LastExecutionID == "" {
		t.Fatal("LastExecutionID = \"\", want it set after fire")
	}
	if task.LastRunAt == nil {
		t.Fatal("LastRunAt = nil, want it set after fire")
	}
	got, err := svc.GetTask(context.Background(), task.LastExecutionID)
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if got.Title != "daily digest" || got.Intent != "summarize today" || got.AgentID != "digest-bot" {
		t.Fatalf("created task = %+v, want title/intent/agent from ScheduledTask", got)
	}
}

func TestFireSkipsWhenPreviousRunStillActiveAndOverlapDisallowed(t *testing.T) {
	s, _ := newTestScheduler(t)
	task := &ScheduledTask{ID: "t1", Name: "n", Schedule: "@every 1h", AllowOverlap: false}

	s.fire(task)
	firstExecution := task.LastExecutionID
	if firstExecution == "" {
		t.Fatal("LastExecutionID = \"\", want it set after first fire")
	}

	s.fire(task)
	if task.LastExecutionID != firstExecution {
		t.Fatalf("LastExecutionID changed to %q, want unchanged %q (previous run still open)", task.LastExecutionID, firstExecution)
	}
}

func TestFireRunsAgainWhenOverlapAllowed(t *testing.T) {
	s, _ := newTestScheduler(t)
	task := &ScheduledTask{ID: "t1", Name: "n", Schedule: "@every 1h", AllowOverlap: true}

	s.fire(task)
	first := task.LastExecutionID
	s.fire(task)
	second := task.LastExecutionID

	if first == "" || second == "" || first == second {
		t.Fatalf("first = %q, second = %q, want two distinct executions", first, second)
	}
}

func TestRemoveTaskStopsFurtherTicks(t *testing.T) {
	s, _ := newTestScheduler(t)
	task := &ScheduledTask{ID: "t1", Name: "n", Schedule: "@every 1h"}
	if err := s.AddTask(task); err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}
	s.RemoveTask("t1")
	if len(s.Tasks()) != 0 {
		t.Fatalf("Tasks() = %v, want empty after RemoveTask", s.Tasks())
	}
}

func TestStartStop(t *testing.T) {
	s, _ := newTestScheduler(t)
	task := &ScheduledTask{ID: "t1", Name: "n", Schedule: "@every 1h"}
	if err := s.AddTask(task); err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}
	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
}
