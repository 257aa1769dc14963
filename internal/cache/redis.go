package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Cache is a read-through JSON cache over redis. Callers treat every
// failure as a miss; the database remains the source of truth.
type Cache struct {
	client *redis.Client
}

func New(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Get(ctx context.Context, key string, dest interface{}) bool {
	if c == nil || c.client == nil {
		return false
	}
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(val), dest) == nil
}

func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if c == nil || c.client == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	c.client.Set(ctx, key, data, ttl)
}

func (c *Cache) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("cache not configured")
	}
	return c.client.Ping(ctx).Err()
}

// MemoriesKey scopes cached memory listings by org and optional intake.
func MemoriesKey(orgID string, intakeID *uuid.UUID, limit, offset int) string {
	scope := "all"
	if intakeID != nil {
		scope = intakeID.String()
	}
	return fmt.Sprintf("memories:%s:%s:%d:%d", orgID, scope, limit, offset)
}

func StatsKey(orgID string) string {
	return fmt.Sprintf("stats:%s", orgID)
}
