package repository

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"relay-backend/internal/models"
)

// HistoryStore is implemented by ChatRepo, BoltChatRepo and CachedHistory.
type HistoryStore interface {
	Append(ctx context.Context, ownerID, message, reply string) (*models.ChatExchange, error)
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]models.ChatExchange, error)
}

var errCacheMiss = errors.New("cache miss")

// cacheClient is the slice of Redis the history cache needs.
type cacheClient interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Incr(ctx context.Context, key string) error
	Del(ctx context.Context, key string) error
}

type redisCache struct {
	client *redis.Client
}

func (r redisCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errCacheMiss
	}
	return data, err
}

func (r redisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r redisCache) Incr(ctx context.Context, key string) error {
	return r.client.Incr(ctx, key).Err()
}

func (r redisCache) Del(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// CachedHistory is a read-through Redis cache in front of a history store.
//
// Cached lists live under a per-owner version number. Append bumps the
// version after the write lands, so a list computed before the write can only
// be stored under a version that is never read again. If the bump fails the
// current list key is deleted instead.
type CachedHistory struct {
	store HistoryStore
	cache cacheClient
	ttl   time.Duration
}

func NewCachedHistory(store HistoryStore, redisClient *redis.Client, ttl time.Duration) *CachedHistory {
	return newCachedHistory(store, redisCache{client: redisClient}, ttl)
}

func newCachedHistory(store HistoryStore, cache cacheClient, ttl time.Duration) *CachedHistory {
	return &CachedHistory{store: store, cache: cache, ttl: ttl}
}

func (c *CachedHistory) Append(ctx context.Context, ownerID, message, reply string) (*models.ChatExchange, error) {
	e, err := c.store.Append(ctx, ownerID, message, reply)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Incr(ctx, versionKey(ownerID)); err != nil {
		slog.Warn("history cache version bump failed", "owner", ownerID, "error", err)
		c.dropCurrentList(ctx, ownerID)
	}
	return e, nil
}

func (c *CachedHistory) dropCurrentList(ctx context.Context, ownerID string) {
	version, err := c.version(ctx, ownerID)
	if err != nil {
		slog.Error("history cache invalidation failed, entries may be stale until they expire",
			"owner", ownerID, "ttl", c.ttl, "error", err)
		return
	}
	if err := c.cache.Del(ctx, listKey(ownerID, version)); err != nil {
		slog.Error("history cache invalidation failed, entries may be stale until they expire",
			"owner", ownerID, "ttl", c.ttl, "error", err)
	}
}

func (c *CachedHistory) version(ctx context.Context, ownerID string) (int64, error) {
	raw, err := c.cache.Get(ctx, versionKey(ownerID))
	if errors.Is(err, errCacheMiss) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(string(raw), 10, 64)
}

func (c *CachedHistory) ListByOwner(ctx context.Context, ownerID string, limit int) ([]models.ChatExchange, error) {
	limit = ClampLimit(limit)

	version, err := c.version(ctx, ownerID)
	if err != nil {
		slog.Warn("history cache version lookup failed", "owner", ownerID, "error", err)
		return c.store.ListByOwner(ctx, ownerID, limit)
	}
	key := listKey(ownerID, version)

	if data, err := c.cache.Get(ctx, key); err == nil {
		var cached []models.ChatExchange
		if err := json.Unmarshal(data, &cached); err == nil {
			return truncate(cached, limit), nil
		}
		slog.Warn("history cache entry unreadable", "key", key)
	} else if !errors.Is(err, errCacheMiss) {
		slog.Warn("history cache read failed", "key", key, "error", err)
	}

	// Always cache the full page so smaller limits can be served from it.
	exchanges, err := c.store.ListByOwner(ctx, ownerID, MaxHistoryLimit)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(exchanges); err == nil {
		if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
			slog.Warn("history cache write failed", "key", key, "error", err)
		}
	}
	return truncate(exchanges, limit), nil
}

func truncate(exchanges []models.ChatExchange, limit int) []models.ChatExchange {
	if exchanges == nil {
		return []models.ChatExchange{}
	}
	if len(exchanges) > limit {
		return exchanges[:limit]
	}
	return exchanges
}

func ownerToken(ownerID string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(ownerID))
}

func versionKey(ownerID string) string {
	return fmt.Sprintf("chat:history:%s:version", ownerToken(ownerID))
}

func listKey(ownerID string, version int64) string {
	return fmt.Sprintf("chat:history:%s:v%d", ownerToken(ownerID), version)
}
