// Package subtask implements the createSubtasks tool (C10): a Tool
// Executor (C6) plugin that fans a top-level task out into children via
// the Task Service (C11) and blocks until every child reaches a terminal
// state, cascading cancellation when the caller itself is aborted.
//
// Grounded on haasonsaas-nexus/internal/multiagent/subagent_registry.go's
// run-record bookkeeping (status vocabulary, per-run timeout, outcome
// struct) for the shape of a child's tracked outcome, and on
// _examples/other_examples/3af9de26_andygeiss-go-agent__internal-domain-agent-task_service.go.go's
// parallel fan-out-and-collect idiom for awaiting every child concurrently
// — reimplemented with plain goroutines and a WaitGroup rather than
// `andygeiss/cloud-native-utils/efficiency`, which is not part of the
// chosen teacher's dependency surface.
package subtask

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/haasonsaas/taskrun/internal/eventstore"
	"github.com/haasonsaas/taskrun/internal/taskservice"
	"github.com/haasonsaas/taskrun/internal/toolexec"
	"github.com/haasonsaas/taskrun/pkg/models"
)

// defaultChildTimeout is §4.7's default bound on how long a parent waits
// for one child before cascading a cancel.
const defaultChildTimeout = 300 * time.Second

// AgentRegistry reports whether an agent id is known to the embedding
// application. The concrete agent catalogue lives outside the core (§6
// Non-goals: concrete tools/agents are external collaborators); this tool
// only needs to check membership.
type AgentRegistry interface {
	IsRegistered(agentID string) bool
}

// RunningTasks reports whether the Runtime Manager (C9) is currently
// driving task execution, a precondition the Subtask tool must check
// before it can promise a child will ever actually run.
type RunningTasks interface {
	Running() bool
}

// ConversationReader recovers a child's final assistant message for the
// parent's outcome summary. A narrower shape than convstore.Store, matching
// the interface-segregation idiom used elsewhere (agentloop.EventReader,
// runtimemgr.storeReader).
type ConversationReader interface {
	GetHistory(ctx context.Context, taskID string, limit int) ([]models.Message, error)
}

type childSpec struct {
	AgentID  string          `json:"agentId"`
	Title    string          `json:"title"`
	Intent   string          `json:"intent,omitempty"`
	Priority models.Priority `json:"priority,omitempty"`
}

type createSubtasksArgs struct {
	Subtasks []childSpec `json:"subtasks"`
}

// outcomeStatus mirrors the teacher's SubagentRunStatus vocabulary
// (pending/running/completed/error/timeout), narrowed to the three
// terminal outcomes this tool reports once a child finishes or is
// cascade-canceled.
type outcomeStatus string

const (
	outcomeSuccess outcomeStatus = "success"
	outcomeError   outcomeStatus = "error"
	outcomeCancel  outcomeStatus = "cancel"
)

// childOutcome is one child's entry in the summary returned to the agent.
type childOutcome struct {
	TaskID  string        `json:"taskId"`
	AgentID string        `json:"agentId"`
	Status  outcomeStatus `json:"status"`
	Message string        `json:"message,omitempty"`
	Reason  string        `json:"reason,omitempty"`
}

// summary is the tool's structured result: counts plus every child's
// outcome, per §4.7 step 5.
type summary struct {
	Total    int            `json:"total"`
	Success  int            `json:"success"`
	Error    int            `json:"error"`
	Cancel   int            `json:"cancel"`
	Children []childOutcome `json:"children"`
}

const subtasksSchema = `{
  "type": "object",
  "properties": {
    "subtasks": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "properties": {
          "agentId": {"type": "string"},
          "title": {"type": "string"},
          "intent": {"type": "string"},
          "priority": {"type": "string", "enum": ["foreground", "normal", "background"]}
        },
        "required": ["agentId", "title"]
      }
    }
  },
  "required": ["subtasks"]
}`

// Tool implements toolexec.Tool for createSubtasks.
type Tool struct {
	service *taskservice.Service
	store   eventstore.Store
	conv    ConversationReader
	agents  AgentRegistry
	running RunningTasks
	timeout time.Duration
}

// NewTool constructs the createSubtasks tool. agents/running may be nil,
// in which case their respective precondition checks are skipped (useful
// for an embedding application that has no agent catalogue yet, or that
// always runs the Runtime Manager).
func NewTool(service *taskservice.Service, store eventstore.Store, conv ConversationReader, agents AgentRegistry, running RunningTasks) *Tool {
	return &Tool{
		service: service,
		store:   store,
		conv:    conv,
		agents:  agents,
		running: running,
		timeout: defaultChildTimeout,
	}
}

// WithTimeout overrides the default 300s per-child wait.
func (t *Tool) WithTimeout(d time.Duration) *Tool {
	t.timeout = d
	return t
}

func (t *Tool) Name() string        { return "createSubtasks" }
func (t *Tool) Group() string       { return "orchestration" }
func (t *Tool) Description() string {
	return "Spawn one or more child tasks under distinct agents and wait for all of them to finish, fail, or be canceled."
}

func (t *Tool) ParametersSchema() json.RawMessage { return json.RawMessage(subtasksSchema) }

// RiskLevel is always safe: creating and awaiting subtasks has no
// irreversible side effect of its own (the children's own tools carry
// whatever risk they carry).
func (t *Tool) RiskLevel(json.RawMessage, *toolexec.Context) toolexec.RiskLevel {
	return toolexec.RiskSafe
}

// CanExecute enforces §4.7's three preconditions: caller is top-level, the
// Runtime Manager is running, and every requested agentId is registered.
func (t *Tool) CanExecute(args json.RawMessage, tc *toolexec.Context) error {
	parsed, err := parseArgs(args)
	if err != nil {
		return err
	}
	if t.running != nil && !t.running.Running() {
		return fmt.Errorf("subtask: runtime manager is not running")
	}
	caller, err := t.service.GetTask(tc.Context, tc.TaskID)
	if err != nil {
		return fmt.Errorf("subtask: load caller task: %w", err)
	}
	if caller.ParentTaskID != "" {
		return fmt.Errorf("subtask: only a top-level task may call createSubtasks")
	}
	if t.agents != nil {
		for _, spec := range parsed.Subtasks {
			if !t.agents.IsRegistered(spec.AgentID) {
				return fmt.Errorf("subtask: agent %q is not registered", spec.AgentID)
			}
		}
	}
	return nil
}

// Execute creates every child task, then waits on all of them concurrently
// before returning the combined summary (§4.7 steps 1-5).
func (t *Tool) Execute(args json.RawMessage, tc *toolexec.Context) (toolexec.Result, error) {
	parsed, err := parseArgs(args)
	if err != nil {
		return toolexec.Result{IsError: true, Output: err.Error()}, nil
	}

	children := make([]models.Task, 0, len(parsed.Subtasks))
	for _, spec := range parsed.Subtasks {
		child, err := t.service.CreateTask(tc.Context, taskservice.CreateTaskRequest{
			Title:        spec.Title,
			Intent:       spec.Intent,
			Priority:     spec.Priority,
			AgentID:      spec.AgentID,
			ParentTaskID: tc.TaskID,
		})
		if err != nil {
			return toolexec.Result{IsError: true, Output: fmt.Sprintf("subtask: create child task: %v", err)}, nil
		}
		children = append(children, child)
	}

	outcomes := t.awaitAll(tc, children)
	out, err := json.Marshal(summarize(outcomes))
	if err != nil {
		return toolexec.Result{IsError: true, Output: err.Error()}, nil
	}
	return toolexec.Result{Output: string(out)}, nil
}

func parseArgs(args json.RawMessage) (createSubtasksArgs, error) {
	var parsed createSubtasksArgs
	if err := json.Unmarshal(args, &parsed); err != nil {
		return createSubtasksArgs{}, fmt.Errorf("subtask: invalid arguments: %w", err)
	}
	if len(parsed.Subtasks) == 0 {
		return createSubtasksArgs{}, fmt.Errorf("subtask: at least one subtask is required")
	}
	for _, spec := range parsed.Subtasks {
		if spec.Title == "" {
			return createSubtasksArgs{}, fmt.Errorf("subtask: title is required for every child")
		}
	}
	return parsed, nil
}

func summarize(outcomes []childOutcome) summary {
	sum := summary{Total: len(outcomes), Children: outcomes}
	for _, oc := range outcomes {
		switch oc.Status {
		case outcomeSuccess:
			sum.Success++
		case outcomeError:
			sum.Error++
		case outcomeCancel:
			sum.Cancel++
		}
	}
	return sum
}

// awaitAll runs one wait per child in parallel and collects every outcome;
// per §4.7, "all waits proceed in parallel" rather than sequentially.
func (t *Tool) awaitAll(tc *toolexec.Context, children []models.Task) []childOutcome {
	outcomes := make([]childOutcome, len(children))
	var wg sync.WaitGroup
	for i, child := range children {
		wg.Add(1)
		go func(i int, child models.Task) {
			defer wg.Done()
			outcomes[i] = t.awaitOne(tc, child)
		}(i, child)
	}
	wg.Wait()
	return outcomes
}

// awaitOne subscribes to the Event Store before its catch-up read so a
// child that finishes between the two cannot be missed (§4.7 step 3), then
// waits for the child's first terminal event, the parent's AbortSignal, or
// the per-child timeout — whichever comes first.
func (t *Tool) awaitOne(tc *toolexec.Context, child models.Task) childOutcome {
	events, unsubscribe := t.store.Subscribe(tc.Context)
	defer unsubscribe()

	if final, ok := t.terminalSnapshot(tc.Context, child.ID); ok {
		return t.outcomeFor(child, final)
	}

	timer := time.NewTimer(t.timeout)
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return t.cascadeCancel(child, "child event stream closed unexpectedly")
			}
			if ev.StreamID != child.ID || !isTerminalEventType(ev.Event.Type) {
				continue
			}
			final, ok := t.terminalSnapshot(context.Background(), child.ID)
			if !ok {
				return childOutcome{TaskID: child.ID, AgentID: child.AgentID, Status: outcomeError, Reason: "terminal event observed but projection is not terminal"}
			}
			return t.outcomeFor(child, final)

		case <-timer.C:
			return t.cascadeCancel(child, "subtask timed out")

		case <-tc.Context.Done():
			return t.cascadeCancel(child, "Parent task canceled")
		}
	}
}

func (t *Tool) terminalSnapshot(ctx context.Context, taskID string) (models.Task, bool) {
	task, err := t.service.GetTask(ctx, taskID)
	if err != nil || !task.Status.IsTerminal() {
		return models.Task{}, false
	}
	return task, true
}

// cascadeCancel issues CancelTask against a background context — the
// triggering wait's own context may already be canceled — and tolerates
// the child having reached a terminal state in the interim (CancelTask
// then rejects with ErrInvalidTransition, which is not a failure here).
func (t *Tool) cascadeCancel(child models.Task, reason string) childOutcome {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_ = t.service.CancelTask(ctx, child.ID, reason, "")
	if final, ok := t.terminalSnapshot(ctx, child.ID); ok {
		return t.outcomeFor(child, final)
	}
	return childOutcome{TaskID: child.ID, AgentID: child.AgentID, Status: outcomeCancel, Reason: reason}
}

func (t *Tool) outcomeFor(child models.Task, final models.Task) childOutcome {
	oc := childOutcome{TaskID: child.ID, AgentID: child.AgentID}
	switch final.Status {
	case models.TaskDone:
		oc.Status = outcomeSuccess
		oc.Message = t.finalAssistantMessage(final.ID)
	case models.TaskFailedStatus:
		oc.Status = outcomeError
		oc.Reason = final.FailureReason
	case models.TaskCanceledStatus:
		oc.Status = outcomeCancel
		oc.Reason = final.FailureReason
	default:
		oc.Status = outcomeError
		oc.Reason = fmt.Sprintf("unexpected terminal status %q", final.Status)
	}
	return oc
}

// finalAssistantMessage recovers a completed child's last assistant
// message for the summary, where recoverable (§4.7 step 5); a read failure
// or a conversation with no assistant turn simply leaves it blank.
func (t *Tool) finalAssistantMessage(taskID string) string {
	if t.conv == nil {
		return ""
	}
	history, err := t.conv.GetHistory(context.Background(), taskID, 0)
	if err != nil {
		return ""
	}
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == models.RoleAssistant && history[i].Content != "" {
			return history[i].Content
		}
	}
	return ""
}

func isTerminalEventType(t models.DomainEventType) bool {
	switch t {
	case models.EventTaskCompleted, models.EventTaskFailed, models.EventTaskCanceled:
		return true
	}
	return false
}
