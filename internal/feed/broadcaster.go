package feed

import (
	"context"
	"sync"

	"checkin/internal/checkin"
)

// subscriberBuffer bounds how far a slow dashboard may fall behind before
// events are dropped for it. The store remains the system of record.
const subscriberBuffer = 64

// Broadcaster fans newly admitted check-ins out to live subscribers. There is
// no replay: a late-joining dashboard loads the session's records once, then
// tails the feed.
type Broadcaster interface {
	checkin.Publisher
	// Subscribe returns a channel of the session's future events plus a cancel
	// function. Cancelling stops delivery without affecting other subscribers.
	Subscribe(ctx context.Context, sessionID string) (<-chan checkin.FeedEvent, func(), error)
}

// MemoryBroadcaster delivers events in-process. Publish runs under the lock,
// so subscribers observe events in admission order.
type MemoryBroadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]chan checkin.FeedEvent // sessionID -> subscriber id -> channel
}

// NewMemoryBroadcaster creates a broadcaster with no subscribers.
func NewMemoryBroadcaster() *MemoryBroadcaster {
	return &MemoryBroadcaster{subs: make(map[string]map[int]chan checkin.FeedEvent)}
}

// Subscribe registers a subscriber for the session's future events.
func (b *MemoryBroadcaster) Subscribe(_ context.Context, sessionID string) (<-chan checkin.FeedEvent, func(), error) {
	ch := make(chan checkin.FeedEvent, subscriberBuffer)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	if b.subs[sessionID] == nil {
		b.subs[sessionID] = make(map[int]chan checkin.FeedEvent)
	}
	b.subs[sessionID][id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[sessionID], id)
			if len(b.subs[sessionID]) == 0 {
				delete(b.subs, sessionID)
			}
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel, nil
}

// Publish delivers the event to the session's current subscribers. Delivery
// is best-effort: a subscriber whose buffer is full misses the event.
func (b *MemoryBroadcaster) Publish(_ context.Context, ev checkin.FeedEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[ev.Record.SessionID] {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}
