package runtimemgr

import (
	"context"

	"github.com/haasonsaas/taskrun/internal/eventstore"
	"github.com/haasonsaas/taskrun/pkg/models"
)

// storeReader adapts an eventstore.Store's full ReadStream(ctx, streamID,
// fromSeqInclusive) to agentloop.EventReader's narrower (ctx, streamID)
// shape, always replaying a task's stream from the beginning.
type storeReader struct {
	store eventstore.Store
}

// NewEventReader wraps store for use as an agentloop.EventReader.
func NewEventReader(store eventstore.Store) storeReader {
	return storeReader{store: store}
}

func (s storeReader) ReadStream(ctx context.Context, streamID string) ([]models.StoredEvent, error) {
	return s.store.ReadStream(ctx, streamID, 0)
}
