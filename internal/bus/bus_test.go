package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("conn.", 10)
	defer unsub()

	b.Publish(Event{Kind: ConnStateChanged, Timestamp: time.Now(), Payload: "test"})

	select {
	case evt := <-ch:
		if evt.Kind != "conn.state_changed" {
			t.Errorf("got kind %q, want conn.state_changed", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("roster.", 10)
	defer unsub()

	b.Publish(Event{Kind: ConnStateChanged})
	b.Publish(Event{Kind: RosterUpdated})

	select {
	case evt := <-ch:
		if evt.Kind != "roster.updated" {
			t.Errorf("got kind %q, want roster.updated", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// Ensure the conn event was not delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected: no more events.
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("message.", 10)
	unsub()

	b.Publish(Event{Kind: MessageReceived})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected.
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("typing.", 1)
	defer unsub()

	// Fill buffer.
	b.Publish(Event{Kind: TypingStarted})
	// This should be dropped (non-blocking).
	b.Publish(Event{Kind: TypingStopped})

	evt := <-ch
	if evt.Kind != "typing.started" {
		t.Errorf("got %q, want typing.started", evt.Kind)
	}
}

func TestEmitStampsTimestamp(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("unread.", 10)
	defer unsub()

	before := time.Now()
	b.Emit(UnreadChanged, 3)

	select {
	case evt := <-ch:
		if evt.Kind != UnreadChanged {
			t.Errorf("got kind %q, want %q", evt.Kind, UnreadChanged)
		}
		if evt.Payload != 3 {
			t.Errorf("got payload %v, want 3", evt.Payload)
		}
		if evt.Timestamp.Before(before) {
			t.Errorf("timestamp %v predates the emit", evt.Timestamp)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}
