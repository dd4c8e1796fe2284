// Package convstore implements the Conversation Store (C2): append-only,
// per-task ordered Message history, independent of the Event Store.
//
// Grounded on haasonsaas-nexus/internal/sessions/store.go's Store interface
// shape, narrowed from the teacher's multi-channel Session model down to the
// spec's per-task message list (no Session, no channel/key lookup — a task's
// conversation is addressed directly by TaskID).
package convstore

import (
	"context"
	"fmt"

	"github.com/haasonsaas/taskrun/pkg/models"
)

// ErrNotFound is returned when a task has no recorded conversation.
var ErrNotFound = fmt.Errorf("convstore: not found")

// Store is the Conversation Store contract (§4.3).
type Store interface {
	// AppendMessage appends one message to a task's conversation. The
	// message's Index is assigned by the store (the caller's Index field,
	// if any, is overwritten) so callers never race on ordering.
	AppendMessage(ctx context.Context, taskID string, msg models.Message) (models.Message, error)

	// GetHistory returns up to limit of the most recent messages for a
	// task, in chronological order. limit <= 0 means unlimited.
	GetHistory(ctx context.Context, taskID string, limit int) ([]models.Message, error)

	// ReplaceHistory atomically replaces a task's entire message list, used
	// by the Conversation Manager's history-repair procedure (C5) to write
	// back a repaired transcript. Indices are reassigned 0..len(msgs)-1.
	ReplaceHistory(ctx context.Context, taskID string, msgs []models.Message) error

	// DeleteHistory drops all recorded messages for a task.
	DeleteHistory(ctx context.Context, taskID string) error
}
