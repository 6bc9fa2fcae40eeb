package comms

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func makeEvent(taskID, dept int64, t EventType) *Event {
	return &Event{
		Type:         t,
		TaskID:       taskID,
		DepartmentID: dept,
		ActorID:      1,
	}
}

func TestInMemoryBus_Subscribe_Unsubscribe(t *testing.T) {
	bus := NewInMemoryBus(0)
	ctx := context.Background()

	var received int32
	unsub := bus.Subscribe(func(_ context.Context, _ *Event) error {
		atomic.AddInt32(&received, 1)
		return nil
	})

	if err := bus.Publish(ctx, makeEvent(1, 3, TypeTaskCreated)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if atomic.LoadInt32(&received) != 1 {
		t.Errorf("received = %d, want 1", received)
	}

	unsub()
	if err := bus.Publish(ctx, makeEvent(1, 3, TypeTaskCompleted)); err != nil {
		t.Fatalf("Publish after unsub: %v", err)
	}
	if atomic.LoadInt32(&received) != 1 {
		t.Errorf("received after unsub = %d, want 1", received)
	}
}

func TestInMemoryBus_MultipleSubscribers(t *testing.T) {
	bus := NewInMemoryBus(0)
	ctx := context.Background()

	var count int32
	for range 3 {
		bus.Subscribe(func(_ context.Context, _ *Event) error {
			atomic.AddInt32(&count, 1)
			return nil
		})
	}
	bus.Publish(ctx, makeEvent(1, 3, TypeTaskApproved))

	if atomic.LoadInt32(&count) != 3 {
		t.Errorf("count = %d, want 3 (every handler fired)", count)
	}
}

func TestInMemoryBus_Publish_FillsIDAndTimestamp(t *testing.T) {
	bus := NewInMemoryBus(0)
	ev := makeEvent(1, 3, TypeTaskCreated)
	if err := bus.Publish(context.Background(), ev); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if ev.ID == "" {
		t.Error("ID not assigned")
	}
	if ev.Timestamp.IsZero() {
		t.Error("Timestamp not assigned")
	}

	keep := &Event{ID: "fixed", Type: TypeNoteAdded}
	bus.Publish(context.Background(), keep)
	if keep.ID != "fixed" {
		t.Errorf("ID overwritten: %q", keep.ID)
	}
}

func TestInMemoryBus_Publish_HandlerError(t *testing.T) {
	bus := NewInMemoryBus(0)
	var calls int32
	bus.Subscribe(func(_ context.Context, _ *Event) error { return errors.New("boom") })
	bus.Subscribe(func(_ context.Context, _ *Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	if err := bus.Publish(context.Background(), makeEvent(1, 1, TypeTaskRejected)); err == nil {
		t.Fatal("expected handler error")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Error("second handler should still run after the first fails")
	}
}

func TestInMemoryBus_History(t *testing.T) {
	bus := NewInMemoryBus(0)
	ctx := context.Background()

	for _, ev := range []*Event{
		makeEvent(1, 3, TypeTaskCreated),
		makeEvent(2, 1, TypeTaskCreated), // other department
		makeEvent(1, 3, TypeTaskCompleted),
		makeEvent(1, 3, TypeTaskApproved),
	} {
		bus.Publish(ctx, ev)
	}

	dept := int64(3)
	hist, err := bus.History(&dept, 100)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 3 {
		t.Fatalf("History len = %d, want 3", len(hist))
	}
	if hist[0].Type != TypeTaskCreated || hist[2].Type != TypeTaskApproved {
		t.Errorf("History not chronological: %s .. %s", hist[0].Type, hist[2].Type)
	}

	all, _ := bus.History(nil, 0)
	if len(all) != 4 {
		t.Errorf("unscoped History len = %d, want 4", len(all))
	}
}

func TestInMemoryBus_History_Limit(t *testing.T) {
	bus := NewInMemoryBus(0)
	ctx := context.Background()
	for i := range 10 {
		bus.Publish(ctx, makeEvent(int64(i+1), 1, TypeNoteAdded))
	}

	hist, err := bus.History(nil, 5)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 5 {
		t.Fatalf("History with limit 5 returned %d events", len(hist))
	}
	if hist[4].TaskID != 10 {
		t.Errorf("last event task = %d, want 10 (most recent)", hist[4].TaskID)
	}
}

func TestInMemoryBus_History_Cap(t *testing.T) {
	bus := NewInMemoryBus(3)
	ctx := context.Background()
	for i := range 5 {
		bus.Publish(ctx, makeEvent(int64(i+1), 1, TypeTaskCreated))
	}
	hist, _ := bus.History(nil, 0)
	if len(hist) != 3 || hist[0].TaskID != 3 {
		t.Errorf("capped history = %d events starting at task %d, want 3 starting at 3", len(hist), hist[0].TaskID)
	}
}
