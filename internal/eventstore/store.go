// Package eventstore implements the Event Store (C1): a durable
// append-only log of domain events, ordered per stream, with a
// subscription broadcast and named projection cursors.
//
// Grounded on the async buffered-writer idiom of
// haasonsaas-nexus/internal/audit/logger.go (buffer channel + background
// flush goroutine) and on the append-then-publish shape implicit in
// haasonsaas-nexus/internal/agent/event_emitter.go.
package eventstore

import (
	"context"
	"fmt"

	"github.com/haasonsaas/taskrun/pkg/models"
)

// ErrNotFound is returned when a lookup by id finds nothing.
var ErrNotFound = fmt.Errorf("eventstore: not found")

// Store is the Event Store contract (§4.2). Implementations must guarantee
// INV-1 (id/seq strictly increase) and B13 (assignment and publication
// happen under one process-wide mutual exclusion, so subscribers observe
// events in strict id order).
type Store interface {
	// Append assigns a globally monotonic id and a per-stream monotonic seq
	// to each event, in order, durably writes them, and only then publishes
	// them to subscribers. It is all-or-nothing: if the durable write
	// fails, no event in the batch is assigned an id or published.
	Append(ctx context.Context, streamID string, events []models.DomainEvent) ([]models.StoredEvent, error)

	// ReadStream returns events for one stream with Seq >= fromSeqInclusive,
	// in Seq order.
	ReadStream(ctx context.Context, streamID string, fromSeqInclusive uint64) ([]models.StoredEvent, error)

	// ReadAll returns all events with ID > fromIDExclusive, in ID order.
	ReadAll(ctx context.Context, fromIDExclusive uint64) ([]models.StoredEvent, error)

	// ReadByID returns the single event with the given global id.
	ReadByID(ctx context.Context, id uint64) (models.StoredEvent, error)

	// GetEventsAfter is the paginated form ReadAll is built on: it returns
	// at most limit events with ID > fromIDExclusive. limit <= 0 means
	// unlimited.
	GetEventsAfter(ctx context.Context, fromIDExclusive uint64, limit int) ([]models.StoredEvent, error)

	// Subscribe registers a new subscriber and returns a channel of events
	// published from the moment of registration onward, plus an unsubscribe
	// function. The channel is buffered; a slow consumer that fills the
	// buffer will have its oldest-undelivered events dropped rather than
	// block Append (documented, at-least-once-while-keeping-up delivery).
	Subscribe(ctx context.Context) (<-chan models.StoredEvent, func())

	// GetProjection loads the named projection's cursor and opaque state,
	// or def if none has been saved yet.
	GetProjection(ctx context.Context, name string, def ProjectionState) (ProjectionState, error)

	// SaveProjection persists the named projection's new cursor and state.
	SaveProjection(ctx context.Context, name string, state ProjectionState) error
}

// ProjectionState is a named projection's cursor plus opaque serialized
// state, per §4.2's getProjection/saveProjection contract.
type ProjectionState struct {
	Name        string
	CursorEventID uint64
	State       []byte
}
