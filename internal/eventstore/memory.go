package eventstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/haasonsaas/taskrun/pkg/models"
)

// subscriberBufferSize bounds the per-subscriber channel. A subscriber that
// cannot keep up has its oldest pending event dropped to make room rather
// than block the append path (documented at-least-once-while-keeping-up
// policy from §4.2).
const subscriberBufferSize = 256

// Memory is an in-process, non-durable Store used for tests and for
// embedding applications that accept losing history on restart. Durable
// backends (SQLite, Postgres) share this same locking discipline; see
// sqlite.go.
type Memory struct {
	mu sync.Mutex

	nextID    uint64
	streamSeq map[string]uint64
	events    []models.StoredEvent
	byID      map[uint64]models.StoredEvent

	subs map[int]chan models.StoredEvent
	nextSubID int

	projections map[string]ProjectionState
}

// NewMemory constructs an empty in-memory Event Store.
func NewMemory() *Memory {
	return &Memory{
		streamSeq:   make(map[string]uint64),
		byID:        make(map[uint64]models.StoredEvent),
		subs:        make(map[int]chan models.StoredEvent),
		projections: make(map[string]ProjectionState),
	}
}

// Append implements Store. The entire batch is assigned ids/seqs and
// published under a single critical section, so INV-1 and B13 hold even for
// multi-event batches.
func (m *Memory) Append(_ context.Context, streamID string, events []models.DomainEvent) ([]models.StoredEvent, error) {
	if len(events) == 0 {
		return nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]models.StoredEvent, 0, len(events))
	now := time.Now()
	for _, e := range events {
		m.nextID++
		m.streamSeq[streamID]++
		se := models.StoredEvent{
			ID:        m.nextID,
			StreamID:  streamID,
			Seq:       m.streamSeq[streamID],
			CreatedAt: now,
			Event:     e,
		}
		m.events = append(m.events, se)
		m.byID[se.ID] = se
		stored = append(stored, se)
	}

	for _, se := range stored {
		for _, ch := range m.subs {
			select {
			case ch <- se:
			default:
				// Drop the oldest queued event to make room, then enqueue.
				select {
				case <-ch:
				default:
				}
				select {
				case ch <- se:
				default:
				}
			}
		}
	}

	return stored, nil
}

// ReadStream implements Store.
func (m *Memory) ReadStream(_ context.Context, streamID string, fromSeqInclusive uint64) ([]models.StoredEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.StoredEvent
	for _, se := range m.events {
		if se.StreamID == streamID && se.Seq >= fromSeqInclusive {
			out = append(out, se)
		}
	}
	return out, nil
}

// ReadAll implements Store.
func (m *Memory) ReadAll(_ context.Context, fromIDExclusive uint64) ([]models.StoredEvent, error) {
	return m.GetEventsAfter(context.Background(), fromIDExclusive, 0)
}

// ReadByID implements Store.
func (m *Memory) ReadByID(_ context.Context, id uint64) (models.StoredEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	se, ok := m.byID[id]
	if !ok {
		return models.StoredEvent{}, fmt.Errorf("eventstore: event %d: %w", id, ErrNotFound)
	}
	return se, nil
}

// GetEventsAfter implements Store.
func (m *Memory) GetEventsAfter(_ context.Context, fromIDExclusive uint64, limit int) ([]models.StoredEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.StoredEvent
	for _, se := range m.events {
		if se.ID > fromIDExclusive {
			out = append(out, se)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// Subscribe implements Store.
func (m *Memory) Subscribe(_ context.Context) (<-chan models.StoredEvent, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSubID
	m.nextSubID++
	ch := make(chan models.StoredEvent, subscriberBufferSize)
	m.subs[id] = ch

	unsub := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if ch, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(ch)
		}
	}
	return ch, unsub
}

// GetProjection implements Store.
func (m *Memory) GetProjection(_ context.Context, name string, def ProjectionState) (ProjectionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.projections[name]; ok {
		return p, nil
	}
	return def, nil
}

// SaveProjection implements Store.
func (m *Memory) SaveProjection(_ context.Context, name string, state ProjectionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state.Name = name
	m.projections[name] = state
	return nil
}
