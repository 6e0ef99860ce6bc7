package panesync

import (
	"context"
	"encoding/json"
	"log"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"charting-systemv1/internal/model"
)

const outboundBuffer = 256

// frame is the cross-process wire format. Origin identifies the producing
// process so each RedisBus can skip its own events on receipt; the local bus
// already delivered them.
type frame struct {
	Origin string          `json:"origin"`
	Event  model.SyncEvent `json:"event"`
}

// RedisBus bridges a local Bus across processes through a Redis PubSub
// channel, one channel per sync group. NewRedisBus installs itself as the
// bus's OnPublish hook, so every local publish is mirrored to Redis; the Run
// loop feeds events received from other processes into the local bus. Each
// event reaches local subscribers exactly once regardless of which process
// produced it.
type RedisBus struct {
	bus     *Bus
	rdb     *redis.Client
	channel string
	origin  string
	out     chan model.SyncEvent
}

// NewRedisBus creates a RedisBus for the given sync group and hooks it into
// bus. Call Run to start the bridge.
func NewRedisBus(bus *Bus, rdb *redis.Client, group string) *RedisBus {
	r := &RedisBus{
		bus:     bus,
		rdb:     rdb,
		channel: "pub:sync:" + group,
		origin:  uuid.NewString(),
		out:     make(chan model.SyncEvent, outboundBuffer),
	}
	bus.OnPublish = r.enqueue
	return r
}

// enqueue hands a locally published event to the Run loop without blocking
// the publisher. A full buffer drops the event.
func (r *RedisBus) enqueue(ev model.SyncEvent) {
	select {
	case r.out <- ev:
	default:
		log.Printf("[panesync] redis publish buffer full, dropping event from %s", ev.SourceID)
	}
}

// Publish sends ev to the group's Redis channel tagged with this process's
// origin.
func (r *RedisBus) Publish(ctx context.Context, ev model.SyncEvent) error {
	payload, err := json.Marshal(frame{Origin: r.origin, Event: ev})
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, r.channel, payload).Err()
}

// Run pumps the bridge in both directions: locally published events go out
// to the group's Redis channel, received events from other processes go into
// the local bus. Blocks until ctx is cancelled.
func (r *RedisBus) Run(ctx context.Context) {
	pubsub := r.rdb.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	log.Printf("[panesync] subscribed to %s", r.channel)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-r.out:
			if err := r.Publish(ctx, ev); err != nil {
				log.Printf("[panesync] redis publish failed: %v", err)
			}
		case msg, ok := <-ch:
			if !ok {
				return
			}
			r.handle(msg.Payload)
		}
	}
}

// handle dispatches one received payload into the local bus. Events this
// process produced are skipped.
func (r *RedisBus) handle(payload string) {
	var fr frame
	if err := json.Unmarshal([]byte(payload), &fr); err != nil {
		log.Printf("[panesync] bad payload on %s: %v", r.channel, err)
		return
	}
	if fr.Origin == r.origin {
		return
	}
	r.bus.dispatch(fr.Event)
}
