package convstore

import (
	"context"
	"sync"

	"github.com/haasonsaas/taskrun/pkg/models"
)

// maxMessagesPerTask bounds in-memory growth the same way the teacher's
// session store bounds per-session history.
const maxMessagesPerTask = 2000

// Memory is an in-process, non-durable Store.
type Memory struct {
	mu       sync.RWMutex
	messages map[string][]models.Message
}

// NewMemory constructs an empty in-memory Conversation Store.
func NewMemory() *Memory {
	return &Memory{messages: make(map[string][]models.Message)}
}

// AppendMessage implements Store.
func (m *Memory) AppendMessage(_ context.Context, taskID string, msg models.Message) (models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg.TaskID = taskID
	msg.Index = len(m.messages[taskID])
	m.messages[taskID] = append(m.messages[taskID], msg)

	if n := len(m.messages[taskID]); n > maxMessagesPerTask {
		excess := n - maxMessagesPerTask
		m.messages[taskID] = m.messages[taskID][excess:]
	}
	return msg, nil
}

// GetHistory implements Store.
func (m *Memory) GetHistory(_ context.Context, taskID string, limit int) ([]models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msgs := m.messages[taskID]
	if len(msgs) == 0 {
		return []models.Message{}, nil
	}
	start := 0
	if limit > 0 && len(msgs) > limit {
		start = len(msgs) - limit
	}
	out := make([]models.Message, len(msgs)-start)
	copy(out, msgs[start:])
	return out, nil
}

// ReplaceHistory implements Store.
func (m *Memory) ReplaceHistory(_ context.Context, taskID string, msgs []models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Message, len(msgs))
	for i, msg := range msgs {
		msg.TaskID = taskID
		msg.Index = i
		out[i] = msg
	}
	m.messages[taskID] = out
	return nil
}

// DeleteHistory implements Store.
func (m *Memory) DeleteHistory(_ context.Context, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.messages, taskID)
	return nil
}
