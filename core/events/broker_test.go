package events

import (
	"context"
	"testing"
	"time"
)

type testEvent struct{ kind string }

func (e testEvent) EventType() string { return e.kind }

func TestBrokerFanout(t *testing.T) {
	broker := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first, stopFirst := broker.Subscribe(ctx)
	defer stopFirst()
	second, stopSecond := broker.Subscribe(ctx)
	defer stopSecond()

	broker.Emit(testEvent{kind: "market.listed"})

	for name, ch := range map[string]<-chan Event{"first": first, "second": second} {
		select {
		case evt := <-ch:
			if evt.EventType() != "market.listed" {
				t.Fatalf("%s subscriber got %q", name, evt.EventType())
			}
		case <-time.After(time.Second):
			t.Fatalf("%s subscriber received nothing", name)
		}
	}
}

func TestBrokerDropsSlowSubscribers(t *testing.T) {
	broker := NewBroker()
	updates, stop := broker.Subscribe(context.Background())
	defer stop()

	// Overflow the buffer; Emit must not block.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*2; i++ {
			broker.Emit(testEvent{kind: "market.bid_placed"})
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("emit blocked on a slow subscriber")
	}
	if len(updates) != subscriberBuffer {
		t.Fatalf("expected a full buffer, got %d", len(updates))
	}
}

func TestBrokerCancelClosesChannel(t *testing.T) {
	broker := NewBroker()
	updates, stop := broker.Subscribe(context.Background())
	stop()

	select {
	case _, ok := <-updates:
		if ok {
			t.Fatalf("expected a closed channel")
		}
	case <-time.After(time.Second):
		t.Fatalf("channel not closed after cancel")
	}
	// Emits after cancellation are a no-op.
	broker.Emit(testEvent{kind: "market.sold"})
}
