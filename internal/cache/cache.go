// Package cache keeps per-user recommendation state in Redis: the live
// queue, the set of everything ever recommended, a per-user lock, and a
// read-through cache of hydrated recipes.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/actuallystonmai/recipe-recommender/internal/metrics"
)

const (
	recipeTTL = 10 * time.Minute
	// queues and histories of inactive users expire
	stateTTL = 30 * 24 * time.Hour
)

type Cache struct {
	client *redis.Client
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func queueKey(userID string) string   { return fmt.Sprintf("rec:user:%s:queue", userID) }
func historyKey(userID string) string { return fmt.Sprintf("rec:user:%s:history", userID) }
func lockKey(userID string) string    { return fmt.Sprintf("rec:user:%s:lock", userID) }
func recipeKey(id string) string      { return fmt.Sprintf("rec:recipe:%s", id) }

// Ping connectivity
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func observe(op string, start time.Time, err error) {
	if err == redis.Nil {
		err = nil
	}
	metrics.RecordStoreOp("redis", op, time.Since(start), err)
}

func toArgs(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
