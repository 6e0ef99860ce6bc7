// Package panesync broadcasts crosshair positions between chart panels so
// hovering one chart moves a tracking line on every other chart of the same
// sync group. Events are ephemeral: late subscribers receive nothing until
// the next hover.
package panesync

import (
	"log"
	"sync"

	"charting-systemv1/internal/model"
)

// Bus fans a SyncEvent out to every subscriber except the one that produced
// it. If a subscriber channel is full the event is dropped for that consumer
// to prevent a slow panel from blocking the pipeline.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]*subscriber
	nextID  int
	bufSize int

	// OnDrop is called when an event is dropped for a subscriber.
	OnDrop func(sourceID string)

	// OnPublish observes every locally published event after fanout.
	// RedisBus installs it to mirror the group across processes;
	// remote-origin events bypass it.
	OnPublish func(ev model.SyncEvent)
}

type subscriber struct {
	sourceID string
	ch       chan model.SyncEvent
}

// NewBus creates a Bus with the given buffer size for subscriber channels.
func NewBus(bufferSize int) *Bus {
	return &Bus{
		subs:    make(map[int]*subscriber),
		bufSize: bufferSize,
	}
}

// Subscribe registers a panel on the bus. Events published with the same
// sourceID are never delivered back to the returned channel. The unsubscribe
// func closes the channel and removes the registration; it is idempotent.
func (b *Bus) Subscribe(sourceID string) (<-chan model.SyncEvent, func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	sub := &subscriber{sourceID: sourceID, ch: make(chan model.SyncEvent, b.bufSize)}
	b.subs[id] = sub
	b.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, unsubscribe
}

// Publish delivers ev to every subscriber whose sourceID differs from the
// event's, then hands it to OnPublish. Never blocks.
func (b *Bus) Publish(ev model.SyncEvent) {
	b.dispatch(ev)
	if b.OnPublish != nil {
		b.OnPublish(ev)
	}
}

// dispatch is the local fanout. Events arriving from another process enter
// here directly so they are not mirrored back out.
func (b *Bus) dispatch(ev model.SyncEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if sub.sourceID == ev.SourceID {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			if b.OnDrop != nil {
				b.OnDrop(sub.sourceID)
			} else {
				log.Printf("[panesync] subscriber %s full, dropping event from %s", sub.sourceID, ev.SourceID)
			}
		}
	}
}

// SubscriberCount reports how many panels are registered.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
