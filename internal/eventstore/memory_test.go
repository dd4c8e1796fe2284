package eventstore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/haasonsaas/taskrun/pkg/models"
)

func TestAppendAssignsStrictlyIncreasingIDAndSeq(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	first, err := m.Append(ctx, "t1", []models.DomainEvent{
		{Type: models.EventTaskCreated, Title: "a"},
		{Type: models.EventTaskStarted},
	})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if first[0].ID != 1 || first[1].ID != 2 {
		t.Fatalf("ids = %d, %d; want 1, 2", first[0].ID, first[1].ID)
	}
	if first[0].Seq != 1 || first[1].Seq != 2 {
		t.Fatalf("seqs = %d, %d; want 1, 2", first[0].Seq, first[1].Seq)
	}

	second, err := m.Append(ctx, "t2", []models.DomainEvent{{Type: models.EventTaskCreated, Title: "b"}})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if second[0].ID != 3 {
		t.Fatalf("id = %d, want 3 (global, cross-stream)", second[0].ID)
	}
	if second[0].Seq != 1 {
		t.Fatalf("seq = %d, want 1 (per-stream, independent of t1)", second[0].Seq)
	}
}

func TestAppendConcurrentNoDuplicateIDs(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	ids := make(chan uint64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			se, err := m.Append(ctx, "t1", []models.DomainEvent{{Type: models.EventTaskInstructionAdded}})
			if err != nil {
				t.Errorf("Append() error = %v", err)
				return
			}
			ids <- se[0].ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[uint64]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %d assigned under concurrent append", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Fatalf("got %d distinct ids, want %d", len(seen), n)
	}
}

func TestReadStreamFiltersByStreamAndSeq(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.Append(ctx, "t1", []models.DomainEvent{{Type: models.EventTaskCreated}, {Type: models.EventTaskStarted}})
	m.Append(ctx, "t2", []models.DomainEvent{{Type: models.EventTaskCreated}})

	got, err := m.ReadStream(ctx, "t1", 2)
	if err != nil {
		t.Fatalf("ReadStream() error = %v", err)
	}
	if len(got) != 1 || got[0].Event.Type != models.EventTaskStarted {
		t.Fatalf("got %+v, want only the seq-2 TaskStarted event", got)
	}
}

func TestReadByIDNotFound(t *testing.T) {
	m := NewMemory()
	_, err := m.ReadByID(context.Background(), 999)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSubscribeReceivesEventsInOrder(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	ch, unsub := m.Subscribe(ctx)
	defer unsub()

	m.Append(ctx, "t1", []models.DomainEvent{
		{Type: models.EventTaskCreated},
		{Type: models.EventTaskStarted},
		{Type: models.EventTaskCompleted},
	})

	var got []uint64
	for i := 0; i < 3; i++ {
		se := <-ch
		got = append(got, se.ID)
	}
	for i, id := range got {
		if id != uint64(i+1) {
			t.Fatalf("received ids %v, want strictly increasing from 1", got)
		}
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	ch, unsub := m.Subscribe(ctx)
	unsub()

	m.Append(ctx, "t1", []models.DomainEvent{{Type: models.EventTaskCreated}})

	if _, ok := <-ch; ok {
		t.Fatal("expected channel closed after unsubscribe, got a delivered event")
	}
}

func TestProjectionRoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	def := ProjectionState{CursorEventID: 0}
	got, err := m.GetProjection(ctx, "taskview", def)
	if err != nil {
		t.Fatalf("GetProjection() error = %v", err)
	}
	if got.CursorEventID != 0 {
		t.Fatalf("expected default projection, got %+v", got)
	}

	want := ProjectionState{CursorEventID: 42, State: []byte(`{"x":1}`)}
	if err := m.SaveProjection(ctx, "taskview", want); err != nil {
		t.Fatalf("SaveProjection() error = %v", err)
	}

	got, err = m.GetProjection(ctx, "taskview", def)
	if err != nil {
		t.Fatalf("GetProjection() error = %v", err)
	}
	if got.Name != "taskview" || got.CursorEventID != 42 || string(got.State) != `{"x":1}` {
		t.Fatalf("got %+v, want round-tripped state", got)
	}
}

func TestGetEventsAfterRespectsLimit(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.Append(ctx, "t1", []models.DomainEvent{
		{Type: models.EventTaskCreated},
		{Type: models.EventTaskStarted},
		{Type: models.EventTaskCompleted},
	})

	got, err := m.GetEventsAfter(ctx, 0, 2)
	if err != nil {
		t.Fatalf("GetEventsAfter() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 2 {
		t.Fatalf("got %+v, want first 2 events in id order", got)
	}
}
