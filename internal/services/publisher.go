package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"relay-backend/internal/models"
)

// UpdatesChannel is the pub/sub channel carrying an owner's new exchanges.
func UpdatesChannel(ownerID string) string {
	return "chat_updates:" + ownerID
}

type RedisPublisher struct {
	redis *redis.Client
}

func NewRedisPublisher(redisClient *redis.Client) *RedisPublisher {
	return &RedisPublisher{redis: redisClient}
}

// PublishExchange sends a WebSocket update via Redis pub/sub
func (p *RedisPublisher) PublishExchange(ctx context.Context, e *models.ChatExchange) error {
	data, err := json.Marshal(models.WSMessage{Type: models.WSTypeChatExchange, Payload: e})
	if err != nil {
		return fmt.Errorf("failed to encode update: %w", err)
	}
	return p.redis.Publish(ctx, UpdatesChannel(e.OwnerID), string(data)).Err()
}
