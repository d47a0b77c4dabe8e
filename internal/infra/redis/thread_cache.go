package redis

import (
	"context"
	"encoding/json"
	"time"

	"ai-chat-backend/internal/domain/model"
)

// ThreadCache is a write-through cache of a thread's committed history.
// Entries carry the store version so a stale cache can never satisfy an
// optimistic-concurrency check with old data.
type ThreadCache struct {
	client RedisClient
	ttl    time.Duration
}

type cachedThread struct {
	Version int64        `json:"version"`
	Turns   []model.Turn `json:"turns"`
}

func NewThreadCache(client RedisClient, ttl time.Duration) *ThreadCache {
	return &ThreadCache{client: client, ttl: ttl}
}

func threadKey(threadID string) string { return "thread_history:" + threadID }

func (c *ThreadCache) Store(ctx context.Context, threadID string, version int64, turns []model.Turn) error {
	data, err := json.Marshal(cachedThread{Version: version, Turns: turns})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, threadKey(threadID), data, c.ttl)
}

// Get returns (turns, version, true) on a hit; any redis error is a miss.
func (c *ThreadCache) Get(ctx context.Context, threadID string) ([]model.Turn, int64, bool) {
	data, err := c.client.Get(ctx, threadKey(threadID))
	if err != nil {
		return nil, 0, false
	}
	var entry cachedThread
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return nil, 0, false
	}
	return entry.Turns, entry.Version, true
}

func (c *ThreadCache) Delete(ctx context.Context, threadID string) error {
	return c.client.Del(ctx, threadKey(threadID))
}
