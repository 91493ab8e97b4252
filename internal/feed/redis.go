package feed

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"

	"checkin/internal/checkin"
)

// RedisBroadcaster distributes feed events over Redis pub/sub, so dashboards
// may be connected to a different API instance than the one that admitted the
// check-in. Redis pub/sub has no replay, matching the feed contract.
type RedisBroadcaster struct {
	client *redis.Client
	prefix string
}

// NewRedisBroadcaster builds a broadcaster publishing on prefix:<sessionID>.
func NewRedisBroadcaster(client *redis.Client, prefix string) *RedisBroadcaster {
	if prefix == "" {
		prefix = "checkin:feed"
	}
	return &RedisBroadcaster{client: client, prefix: prefix}
}

func (b *RedisBroadcaster) channel(sessionID string) string {
	return b.prefix + ":" + sessionID
}

// Publish sends the event to the session's channel.
func (b *RedisBroadcaster) Publish(ctx context.Context, ev checkin.FeedEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel(ev.Record.SessionID), data).Err()
}

// Subscribe tails the session's channel until cancelled.
func (b *RedisBroadcaster) Subscribe(ctx context.Context, sessionID string) (<-chan checkin.FeedEvent, func(), error) {
	pubsub := b.client.Subscribe(ctx, b.channel(sessionID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, err
	}

	out := make(chan checkin.FeedEvent, subscriberBuffer)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var ev checkin.FeedEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Printf("feed: dropping undecodable event on %s: %v", msg.Channel, err)
				continue
			}
			select {
			case out <- ev:
			default:
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() { _ = pubsub.Close() })
	}
	return out, cancel, nil
}
