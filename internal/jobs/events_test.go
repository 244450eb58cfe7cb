package jobs

import (
	"testing"
	"time"
)

// TestEventBusSince verifies incremental event reads by sequence.
func TestEventBusSince(t *testing.T) {
	bus := NewEventBus(3)
	bus.Publish(Event{Type: EventTypeStatus, Message: "1"})
	bus.Publish(Event{Type: EventTypeStatus, Message: "2"})
	bus.Publish(Event{Type: EventTypeStatus, Message: "3"})

	events := bus.Since(1)
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	if events[0].Seq != 2 || events[1].Seq != 3 {
		t.Fatalf("unexpected seqs: %+v", events)
	}
}

// TestEventBusCapsHistory verifies buffer limit trimming behavior.
func TestEventBusCapsHistory(t *testing.T) {
	bus := NewEventBus(2)
	bus.Publish(Event{Message: "1"})
	bus.Publish(Event{Message: "2"})
	bus.Publish(Event{Message: "3"})

	events := bus.Since(0)
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	if events[0].Message != "2" || events[1].Message != "3" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

// TestEventBusSubscribePushes checks subscribers receive new events only.
func TestEventBusSubscribePushes(t *testing.T) {
	bus := NewEventBus(10)
	bus.Publish(Event{Message: "before"})

	ch, cancel := bus.Subscribe(4)
	defer cancel()
	bus.Publish(Event{Message: "after", Type: EventTypeResult})

	select {
	case ev := <-ch:
		if ev.Message != "after" || ev.Seq != 2 {
			t.Fatalf("event = %+v, want seq 2 after", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no event pushed")
	}
}

// TestEventBusUnsubscribeClosesChannel checks cancel is idempotent.
func TestEventBusUnsubscribeClosesChannel(t *testing.T) {
	bus := NewEventBus(10)
	ch, cancel := bus.Subscribe(1)
	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Fatal("channel still open after cancel")
	}
	bus.Publish(Event{Message: "ignored"})
}

// TestEventBusSlowSubscriberDoesNotBlock checks full buffers drop events.
func TestEventBusSlowSubscriberDoesNotBlock(t *testing.T) {
	bus := NewEventBus(10)
	_, cancel := bus.Subscribe(1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			bus.Publish(Event{Message: "x"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on slow subscriber")
	}
	if got := len(bus.Since(0)); got != 5 {
		t.Fatalf("history = %d, want 5", got)
	}
}
