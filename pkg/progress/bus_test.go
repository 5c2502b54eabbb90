package progress

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func drain(c chan Event) []Event {
	var events []Event
	for {
		select {
		case evt, ok := <-c:
			if !ok {
				return events
			}
			events = append(events, evt)
		default:
			return events
		}
	}
}

func TestBusDeliversToMatchingSubscribers(t *testing.T) {
	bus := NewBus(nil, nil)
	subA := bus.Subscribe(1)
	subB := bus.Subscribe(2)

	run := uuid.New()
	bus.Publish(Event{BookID: 1, RunID: run, Status: StatusProcessing, Processed: 10, Total: 40, At: time.Now()})

	gotA := drain(subA.C)
	if len(gotA) != 1 {
		t.Fatalf("book 1 subscriber got %d events, want 1", len(gotA))
	}
	if gotA[0].Processed != 10 {
		t.Errorf("Processed = %d, want 10", gotA[0].Processed)
	}
	if got := drain(subB.C); len(got) != 0 {
		t.Fatalf("book 2 subscriber got %d events, want 0", len(got))
	}
}

func TestBusSnapshotPrimesLateSubscriber(t *testing.T) {
	bus := NewBus(nil, nil)
	run := uuid.New()
	bus.Publish(Event{BookID: 1, RunID: run, Status: StatusProcessing, Processed: 25, Total: 50, At: time.Now()})

	late := bus.Subscribe(1)
	got := drain(late.C)
	if len(got) != 1 {
		t.Fatalf("late subscriber got %d events, want 1 snapshot", len(got))
	}
	if got[0].Processed != 25 {
		t.Errorf("snapshot Processed = %d, want 25", got[0].Processed)
	}

	evt, ok := bus.Snapshot(1)
	if !ok || evt.Processed != 25 {
		t.Errorf("Snapshot = (%+v, %v), want processed 25", evt, ok)
	}
	if _, ok := bus.Snapshot(99); ok {
		t.Error("Snapshot for unknown book reported an event")
	}
}

func TestBusDropsRegressingProcessedCount(t *testing.T) {
	bus := NewBus(nil, nil)
	sub := bus.Subscribe(1)
	run := uuid.New()

	bus.Publish(Event{BookID: 1, RunID: run, Status: StatusProcessing, Processed: 30, Total: 40, At: time.Now()})
	bus.Publish(Event{BookID: 1, RunID: run, Status: StatusProcessing, Processed: 20, Total: 40, At: time.Now()})
	bus.Publish(Event{BookID: 1, RunID: run, Status: StatusProcessing, Processed: 30, Total: 40, At: time.Now()})
	bus.Publish(Event{BookID: 1, RunID: run, Status: StatusProcessing, Processed: 40, Total: 40, At: time.Now()})

	got := drain(sub.C)
	want := []int{30, 30, 40}
	if len(got) != len(want) {
		t.Fatalf("subscriber got %d events, want %d (regression must be dropped)", len(got), len(want))
	}
	for i, evt := range got {
		if evt.Processed != want[i] {
			t.Errorf("event %d Processed = %d, want %d", i, evt.Processed, want[i])
		}
	}

	// The snapshot must never reflect the regressed count.
	evt, _ := bus.Snapshot(1)
	if evt.Processed != 40 {
		t.Errorf("Snapshot Processed = %d, want 40", evt.Processed)
	}
}

func TestBusWatermarksAreScopedPerRun(t *testing.T) {
	bus := NewBus(nil, nil)
	sub := bus.Subscribe(1)

	firstRun := uuid.New()
	bus.Publish(Event{BookID: 1, RunID: firstRun, Status: StatusProcessing, Processed: 35, Total: 40, At: time.Now()})
	bus.Publish(Event{BookID: 1, RunID: firstRun, Status: StatusCompleted, Processed: 40, Total: 40, At: time.Now()})

	// A fresh run starts its count over; that is not a regression.
	secondRun := uuid.New()
	bus.Publish(Event{BookID: 1, RunID: secondRun, Status: StatusProcessing, Processed: 5, Total: 40, At: time.Now()})

	got := drain(sub.C)
	if len(got) != 3 {
		t.Fatalf("subscriber got %d events, want 3", len(got))
	}
	if got[2].Processed != 5 || got[2].RunID != secondRun {
		t.Errorf("new run event = %+v, want processed 5", got[2])
	}
}

func TestBusFullSubscriberBufferDropsNotBlocks(t *testing.T) {
	bus := NewBus(nil, nil)
	sub := bus.Subscribe(1)
	run := uuid.New()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*3; i++ {
			bus.Publish(Event{BookID: 1, RunID: run, Status: StatusProcessing, Processed: i + 1, Total: 100, At: time.Now()})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber buffer")
	}

	got := drain(sub.C)
	if len(got) != subscriberBuffer {
		t.Errorf("subscriber got %d events, want the %d buffered", len(got), subscriberBuffer)
	}
	if dropped := bus.Stats().Dropped; dropped != int64(subscriberBuffer*2) {
		t.Errorf("Dropped = %d, want %d", dropped, subscriberBuffer*2)
	}
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus(nil, nil)
	sub := bus.Subscribe(1)
	bus.Unsubscribe(sub.ID)

	if _, ok := <-sub.C; ok {
		t.Fatal("channel still open after Unsubscribe")
	}

	// Publishing after unsubscribe must not panic or deliver.
	bus.Publish(Event{BookID: 1, RunID: uuid.New(), Status: StatusProcessing, Processed: 1, Total: 2, At: time.Now()})
	if stats := bus.Stats(); stats.Subscribers != 0 {
		t.Errorf("Subscribers = %d, want 0", stats.Subscribers)
	}
}

func TestBusForgetClearsSnapshot(t *testing.T) {
	bus := NewBus(nil, nil)
	bus.Publish(Event{BookID: 1, RunID: uuid.New(), Status: StatusCompleted, Processed: 40, Total: 40, At: time.Now()})

	bus.Forget(1)
	if _, ok := bus.Snapshot(1); ok {
		t.Fatal("Snapshot survived Forget")
	}
	if got := drain(bus.Subscribe(1).C); len(got) != 0 {
		t.Fatalf("new subscriber primed with %d events after Forget, want 0", len(got))
	}
}

func TestBusTerminalErrorPassesGuard(t *testing.T) {
	bus := NewBus(nil, nil)
	sub := bus.Subscribe(1)
	run := uuid.New()

	bus.Publish(Event{BookID: 1, RunID: run, Status: StatusProcessing, Processed: 30, Total: 40, At: time.Now()})
	// A failure mid-run reports no count; it must still reach subscribers.
	bus.Publish(Event{BookID: 1, RunID: run, Status: StatusError, Message: "provider quota exhausted", At: time.Now()})

	got := drain(sub.C)
	if len(got) != 2 {
		t.Fatalf("subscriber got %d events, want 2", len(got))
	}
	if got[1].Status != StatusError {
		t.Errorf("last event status = %q, want %q", got[1].Status, StatusError)
	}

	evt, _ := bus.Snapshot(1)
	if evt.Status != StatusError {
		t.Errorf("Snapshot status = %q, want %q", evt.Status, StatusError)
	}
}

func TestBusForgetEvictsRunWatermarks(t *testing.T) {
	bus := NewBus(nil, nil)
	run := uuid.New()

	// A run that dies without a terminal event leaves a watermark behind.
	bus.Publish(Event{BookID: 1, RunID: run, Status: StatusProcessing, Processed: 30, Total: 40, At: time.Now()})

	bus.Forget(1)

	sub := bus.Subscribe(1)
	bus.Publish(Event{BookID: 1, RunID: run, Status: StatusProcessing, Processed: 10, Total: 40, At: time.Now()})

	got := drain(sub.C)
	if len(got) != 1 {
		t.Fatalf("subscriber got %d events, want 1; stale watermark outlived Forget", len(got))
	}
	if got[0].Processed != 10 {
		t.Errorf("Processed = %d, want 10", got[0].Processed)
	}

	// Watermarks for other books survive.
	other := uuid.New()
	bus.Publish(Event{BookID: 2, RunID: other, Status: StatusProcessing, Processed: 20, Total: 40, At: time.Now()})
	bus.Forget(1)
	if !bus.ingest(Event{BookID: 2, RunID: other, Status: StatusProcessing, Processed: 5, Total: 40, At: time.Now()}) {
		return
	}
	t.Error("regressing event for an unaffected book was accepted after Forget")
}
