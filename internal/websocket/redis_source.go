package websocket

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"relay-backend/internal/services"
)

// RedisUpdates reads owner updates from the pub/sub channels RedisPublisher
// writes to.
type RedisUpdates struct {
	client *redis.Client
}

func NewRedisUpdates(client *redis.Client) *RedisUpdates {
	return &RedisUpdates{client: client}
}

// Subscribe returns once the subscription is confirmed. The channel closes
// when ctx is done or the subscription drops.
func (r *RedisUpdates) Subscribe(ctx context.Context, ownerID string) (<-chan []byte, error) {
	pubsub := r.client.Subscribe(ctx, services.UpdatesChannel(ownerID))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to updates: %w", err)
	}

	out := make(chan []byte, 16)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
