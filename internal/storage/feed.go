package storage

import (
	"log"
	"sync"

	"github.com/devanshm/campuschat-backend/internal/models"
)

// feedBuffer is the per-subscriber event queue depth. A subscriber that
// falls this far behind is dropped rather than blocking publishers.
const feedBuffer = 256

// Bus is an in-process change-feed fan-out shared by store implementations.
// Each subscriber gets its own buffered queue and delivery goroutine, so
// events reach every subscriber in publish order without publishers ever
// blocking on a slow consumer.
type Bus struct {
	mu   sync.Mutex
	subs map[string]map[*busSub]bool // conversationID -> subscribers
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[*busSub]bool)}
}

// Subscribe registers fn for the conversation's events.
func (b *Bus) Subscribe(conversationID string, fn func(models.FeedEvent)) Subscription {
	sub := &busSub{
		bus:    b,
		convID: conversationID,
		events: make(chan models.FeedEvent, feedBuffer),
	}
	go func() {
		for ev := range sub.events {
			fn(ev)
		}
	}()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[conversationID] == nil {
		b.subs[conversationID] = make(map[*busSub]bool)
	}
	b.subs[conversationID][sub] = true
	return sub
}

// Publish fans the event out to the conversation's subscribers. A
// subscriber with a full queue is dropped, mirroring the slow-client
// handling of the ws hub.
func (b *Bus) Publish(ev models.FeedEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs[ev.ConversationID] {
		select {
		case sub.events <- ev:
		default:
			log.Printf("[store] dropping slow feed subscriber on conversation %s", ev.ConversationID)
			delete(b.subs[ev.ConversationID], sub)
			close(sub.events)
			sub.closed = true
		}
	}
}

type busSub struct {
	bus    *Bus
	convID string
	events chan models.FeedEvent
	closed bool
}

// Close unregisters the subscription. Idempotent. After Close returns no
// further events are queued, though an event already handed to the
// delivery goroutine may still complete.
func (sub *busSub) Close() error {
	b := sub.bus
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub.closed {
		return nil
	}
	if subs, ok := b.subs[sub.convID]; ok {
		delete(subs, sub)
	}
	close(sub.events)
	sub.closed = true
	return nil
}
