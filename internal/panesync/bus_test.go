package panesync

import (
	"testing"
	"time"

	"charting-systemv1/internal/model"
)

func TestBus_NoSelfEcho(t *testing.T) {
	bus := NewBus(10)
	chA, cancelA := bus.Subscribe("panel-a")
	chB, cancelB := bus.Subscribe("panel-b")
	defer cancelA()
	defer cancelB()

	bus.Publish(model.SyncEvent{SourceID: "panel-a", Timestamp: 1700000000, Price: 101.5})

	select {
	case ev := <-chB:
		if ev.SourceID != "panel-a" {
			t.Errorf("panel-b: expected source panel-a, got %s", ev.SourceID)
		}
		if ev.Price != 101.5 {
			t.Errorf("panel-b: expected price 101.5, got %v", ev.Price)
		}
	case <-time.After(time.Second):
		t.Fatal("panel-b: timed out waiting for event")
	}

	select {
	case ev := <-chA:
		t.Fatalf("panel-a received its own event: %+v", ev)
	default:
	}
}

func TestBus_NoReplayForLateSubscriber(t *testing.T) {
	bus := NewBus(10)
	bus.Publish(model.SyncEvent{SourceID: "panel-a", Timestamp: 1, Price: 99})

	chLate, cancel := bus.Subscribe("panel-late")
	defer cancel()

	select {
	case ev := <-chLate:
		t.Fatalf("late subscriber received replayed event: %+v", ev)
	default:
	}
}

func TestBus_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	bus := NewBus(1)
	drops := 0
	bus.OnDrop = func(string) { drops++ }

	_, cancel := bus.Subscribe("panel-slow")
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			bus.Publish(model.SyncEvent{SourceID: "panel-a", Timestamp: int64(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber channel")
	}
	if drops != 4 {
		t.Errorf("expected 4 drops, got %d", drops)
	}
}

func TestBus_UnsubscribeIsIdempotent(t *testing.T) {
	bus := NewBus(10)
	_, cancel := bus.Subscribe("panel-a")
	cancel()
	cancel()
	if n := bus.SubscriberCount(); n != 0 {
		t.Errorf("expected 0 subscribers, got %d", n)
	}
}

func TestBus_PublishInvokesOnPublish(t *testing.T) {
	bus := NewBus(10)
	var mirrored []model.SyncEvent
	bus.OnPublish = func(ev model.SyncEvent) { mirrored = append(mirrored, ev) }

	ev := model.SyncEvent{SourceID: "panel-a", Timestamp: 1700000000, Price: 101.5}
	bus.Publish(ev)
	if len(mirrored) != 1 || mirrored[0] != ev {
		t.Fatalf("expected one mirrored event, got %+v", mirrored)
	}

	// Remote-origin delivery goes through dispatch and must not re-mirror.
	bus.dispatch(model.SyncEvent{SourceID: "panel-b", Timestamp: 2, Price: 3})
	if len(mirrored) != 1 {
		t.Errorf("dispatch re-entered the mirror hook: %+v", mirrored)
	}
}
