// Package scheduler implements §4.8's enrichment of the distilled spec: a
// cron-triggered producer of tasks, sitting entirely outside C1-C10's
// invariants. A scheduled tick is indistinguishable from a user-submitted
// task once Task Service (C11) has created it.
//
// Grounded on haasonsaas-nexus/internal/tasks's cron-trigger concept
// (ScheduledTask shape, cron expression parsing via robfig/cron/v3,
// AllowOverlap semantics) but radically narrowed: the teacher package's
// own distributed-execution-lock machinery (internal/tasks/cockroach.go,
// TaskExecution rows, acquire/cleanup loops, worker-id locking) exists to
// coordinate multiple scheduler processes racing over the same due task —
// exactly the "multi-process coordination" this spec's Non-goals exclude.
// This package instead uses `*cron.Cron`'s own in-process scheduling
// directly (one registered entry per ScheduledTask) and has no store of
// its own: it calls through to the Task Service for everything durable.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/haasonsaas/taskrun/internal/taskservice"
	"github.com/haasonsaas/taskrun/pkg/models"
)

// cronParser accepts both standard (5-field) and seconds-extended (6-field)
// cron expressions, matching the teacher's own parser configuration.
var cronParser = cron.NewParser(
	cron.SecondOptional |
		cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow |
		cron.Descriptor,
)

// ScheduledTask is one cron-triggered task definition. Unlike the spec's
// own Task (C4's read model), this struct is the Scheduler's own
// bookkeeping — it is not itself an event-sourced aggregate.
type ScheduledTask struct {
	ID       string
	Name     string
	AgentID  string
	Schedule string
	Priority models.Priority

	// Prompt becomes the created task's Intent; Name becomes its Title.
	Prompt string

	// AllowOverlap, when false (the default), skips a tick if the
	// previous tick's created task has not yet reached a terminal state.
	AllowOverlap bool

	LastRunAt       *time.Time
	LastExecutionID string

	entryID cron.EntryID
}

// Scheduler holds a set of ScheduledTask records and a *cron.Cron; each
// fire calls through to the Task Service to create the actual task.
type Scheduler struct {
	service *taskservice.Service
	cron    *cron.Cron
	logger  *slog.Logger

	mu    sync.Mutex
	tasks map[string]*ScheduledTask
}

// New constructs a Scheduler backed by service. logger may be nil, in
// which case a default logger is used.
func New(service *taskservice.Service, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		service: service,
		cron:    cron.New(cron.WithParser(cronParser)),
		logger:  logger.With("component", "scheduler"),
		tasks:   make(map[string]*ScheduledTask),
	}
}

// Start begins firing registered tasks on their schedules. It does not
// block; call Stop to shut down.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop blocks until any in-flight fire callbacks finish, then stops
// accepting new ticks.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AddTask registers task's schedule with the underlying cron runner. The
// task's Schedule must already be a valid cron expression.
func (s *Scheduler) AddTask(task *ScheduledTask) error {
	if task.ID == "" {
		return fmt.Errorf("scheduler: task id is required")
	}
	if _, err := cronParser.Parse(task.Schedule); err != nil {
		return fmt.Errorf("scheduler: invalid schedule %q: %w", task.Schedule, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[task.ID]; exists {
		return fmt.Errorf("scheduler: task %s is already registered", task.ID)
	}

	entryID, err := s.cron.AddFunc(task.Schedule, func() { s.fire(task) })
	if err != nil {
		return fmt.Errorf("scheduler: register %s: %w", task.ID, err)
	}
	task.entryID = entryID
	s.tasks[task.ID] = task
	return nil
}

// RemoveTask unregisters a scheduled task; a tick already in flight is not
// interrupted.
func (s *Scheduler) RemoveTask(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return
	}
	s.cron.Remove(task.entryID)
	delete(s.tasks, id)
}

// Tasks returns a snapshot of every registered task.
func (s *Scheduler) Tasks() []*ScheduledTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*ScheduledTask, 0, len(s.tasks))
	for _, task := range s.tasks {
		copied := *task
		out = append(out, &copied)
	}
	return out
}

// fire runs on task's own schedule: it checks the overlap guard, then
// creates the tick's task via the Task Service and records the result.
// Errors are logged, not returned — there is no caller on the other end of
// a cron tick to hand an error to.
func (s *Scheduler) fire(task *ScheduledTask) {
	ctx := context.Background()

	if !task.AllowOverlap {
		if running, err := s.priorRunStillActive(ctx, task); err != nil {
			s.logger.Error("scheduler: check previous run", "task_id", task.ID, "error", err)
			return
		} else if running {
			s.logger.Debug("scheduler: skipping tick, previous run still active", "task_id", task.ID)
			return
		}
	}

	created, err := s.service.CreateTask(ctx, taskservice.CreateTaskRequest{
		Title:    task.Name,
		Intent:   task.Prompt,
		Priority: task.effectivePriority(),
		AgentID:  task.AgentID,
	})
	if err != nil {
		s.logger.Error("scheduler: create task", "task_id", task.ID, "error", err)
		return
	}

	now := time.Now()
	s.mu.Lock()
	task.LastRunAt = &now
	task.LastExecutionID = created.ID
	s.mu.Unlock()

	s.logger.Info("scheduler: created task from tick", "task_id", task.ID, "execution_id", created.ID)
}

func (s *Scheduler) priorRunStillActive(ctx context.Context, task *ScheduledTask) (bool, error) {
	s.mu.Lock()
	lastExecutionID := task.LastExecutionID
	s.mu.Unlock()
	if lastExecutionID == "" {
		return false, nil
	}
	prior, err := s.service.GetTask(ctx, lastExecutionID)
	if err != nil {
		return false, fmt.Errorf("load previous execution %s: %w", lastExecutionID, err)
	}
	return !prior.Status.IsTerminal(), nil
}

func (t *ScheduledTask) effectivePriority() models.Priority {
	if t.Priority == "" {
		return models.PriorityBackground
	}
	return t.Priority
}
