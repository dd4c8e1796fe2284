// Package runtimemgr implements the Runtime Manager (C9): it keeps a
// per-task map of Agent Runtimes, subscribes to the Event Store, and
// dispatches each incoming domain event to its target runtime under a
// per-task asynchronous mutex so that work for one task never overlaps
// while work for distinct tasks runs concurrently (CC-001, CC-002).
//
// Grounded on
// _examples/other_examples/13e861a6_dohr-michael-ozzie__internal-agent-eventrunner.go.go's
// EventRunner: its events.Bus.Subscribe fan-out and `running map[string]bool`
// + sync.Mutex per-session lock is generalized here to a per-task
// *sync.Mutex so distinct tasks never block each other.
package runtimemgr

import (
	"context"
	"log/slog"
	"sync"

	"github.com/haasonsaas/taskrun/internal/agentloop"
	"github.com/haasonsaas/taskrun/internal/eventstore"
	"github.com/haasonsaas/taskrun/pkg/models"
)

// RuntimeFactory builds a fresh Agent Runtime for a newly created task.
// agentID is the assignee recorded on the TaskCreated event.
type RuntimeFactory func(taskID, agentID string) *agentloop.Runtime

// Manager is the Runtime Manager (C9).
type Manager struct {
	store      eventstore.Store
	newRuntime RuntimeFactory
	log        *slog.Logger

	unsubscribe func()

	mu        sync.Mutex
	runtimes  map[string]*agentloop.Runtime
	disposed  map[string]bool
	taskLocks map[string]*sync.Mutex
}

// NewManager constructs a Runtime Manager. Call Start to begin consuming
// the Event Store.
func NewManager(store eventstore.Store, newRuntime RuntimeFactory, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		store:      store,
		newRuntime: newRuntime,
		log:        log,
		runtimes:   make(map[string]*agentloop.Runtime),
		disposed:   make(map[string]bool),
		taskLocks:  make(map[string]*sync.Mutex),
	}
}

// Start subscribes to the Event Store and dispatches events to per-task
// runtimes until ctx is canceled or Stop is called.
func (m *Manager) Start(ctx context.Context) {
	events, unsubscribe := m.store.Subscribe(ctx)
	m.unsubscribe = unsubscribe

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				m.dispatch(ctx, ev)
			}
		}
	}()
}

// Stop unsubscribes from the Event Store. Work items already dispatched
// to a goroutine are allowed to finish.
func (m *Manager) Stop() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// dispatch derives the target runtime for one event and enqueues the
// corresponding work item behind that task's asynchronous mutex (CC-001).
// Distinct tasks are dispatched onto distinct goroutines so they proceed
// concurrently (CC-002).
func (m *Manager) dispatch(ctx context.Context, ev models.StoredEvent) {
	taskID := ev.StreamID
	if taskID == "" {
		return
	}
	e := ev.Event

	switch e.Type {
	case models.EventTaskCreated:
		go m.runExclusive(ctx, taskID, e.AgentID, func(rt *agentloop.Runtime) {
			if err := rt.Execute(ctx); err != nil {
				m.log.Error("runtime execute failed", "task_id", taskID, "error", err)
			}
		})

	case models.EventUserInteractionResponded:
		response := models.InteractionResponse{
			InteractionID:    e.InteractionID,
			SelectedOptionID: e.SelectedOptionID,
			InputValue:       e.InputValue,
			Comment:          e.Comment,
		}
		go m.runExclusive(ctx, taskID, "", func(rt *agentloop.Runtime) {
			if err := rt.Resume(ctx, response); err != nil {
				m.log.Error("runtime resume failed", "task_id", taskID, "error", err)
			}
		})

	case models.EventTaskPaused:
		go m.runExclusive(ctx, taskID, "", func(rt *agentloop.Runtime) {
			rt.OnPause()
		})

	case models.EventTaskResumed:
		go m.runExclusive(ctx, taskID, "", func(rt *agentloop.Runtime) {
			rt.OnResume()
			if err := rt.Execute(ctx); err != nil {
				m.log.Error("runtime execute after resume failed", "task_id", taskID, "error", err)
			}
		})

	case models.EventTaskCanceled:
		go m.runExclusive(ctx, taskID, "", func(rt *agentloop.Runtime) {
			rt.OnCancel()
		})
		go m.markDisposed(taskID)

	case models.EventTaskInstructionAdded:
		go m.runExclusive(ctx, taskID, "", func(rt *agentloop.Runtime) {
			if err := rt.OnInstruction(ctx, e.Instruction); err != nil {
				m.log.Error("runtime instruction failed", "task_id", taskID, "error", err)
			}
		})

	case models.EventTaskCompleted, models.EventTaskFailed:
		go m.markDisposed(taskID)
	}
}

// runExclusive serializes one work item for taskID behind that task's
// per-task mutex (CC-001). If the task has already been disposed
// (reached a terminal state), the work item is silently dropped (§4.6:
// "subsequent events for that task are ignored"). agentID is only used
// to build a runtime the first time a task is seen; it is ignored once a
// runtime already exists.
func (m *Manager) runExclusive(ctx context.Context, taskID, agentID string, work func(*agentloop.Runtime)) {
	lock := m.lockFor(taskID)
	lock.Lock()
	defer lock.Unlock()

	rt, ok := m.runtimeFor(taskID, agentID)
	if !ok {
		return
	}
	work(rt)
}

func (m *Manager) lockFor(taskID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.taskLocks[taskID]
	if !ok {
		lock = &sync.Mutex{}
		m.taskLocks[taskID] = lock
	}
	return lock
}

// runtimeFor returns the runtime for taskID, lazily constructing it via
// RuntimeFactory the first time a task is seen. Returns ok=false if the
// task has already been disposed.
func (m *Manager) runtimeFor(taskID, agentID string) (*agentloop.Runtime, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.disposed[taskID] {
		return nil, false
	}
	if rt, ok := m.runtimes[taskID]; ok {
		return rt, true
	}
	rt := m.newRuntime(taskID, agentID)
	if rt == nil {
		return nil, false
	}
	m.runtimes[taskID] = rt
	return rt, true
}

// markDisposed removes a task's runtime once it reaches a terminal
// state; subsequent events for that task are ignored (§4.6). Dispatched
// as its own goroutine so it does not wait behind a work item that may
// itself be what just reached the terminal state.
func (m *Manager) markDisposed(taskID string) {
	lock := m.lockFor(taskID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.disposed[taskID] = true
	delete(m.runtimes, taskID)
}
