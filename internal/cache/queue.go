package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// maxTxRetries bounds optimistic retries of a contended queue update.
const maxTxRetries = 5

func (c *Cache) GetQueue(ctx context.Context, userID string) ([]string, error) {
	start := time.Now()
	ids, err := c.client.LRange(ctx, queueKey(userID), 0, -1).Result()
	observe("get_queue", start, err)
	if err != nil {
		return nil, fmt.Errorf("get queue for user %s: %w", userID, err)
	}
	return ids, nil
}

// UpdateQueue applies fn to the current queue and stores the result,
// adding any new ids to the history. The queue is read and written under
// WATCH, so a concurrent writer makes the transaction fail and fn runs
// again on the fresh queue. fn may be called more than once.
func (c *Cache) UpdateQueue(ctx context.Context, userID string, fn func(queue []string) []string) ([]string, error) {
	start := time.Now()
	qk, hk := queueKey(userID), historyKey(userID)

	var next []string
	txf := func(tx *redis.Tx) error {
		current, err := tx.LRange(ctx, qk, 0, -1).Result()
		if err != nil && err != redis.Nil {
			return err
		}
		next = fn(current)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, qk)
			if len(next) > 0 {
				pipe.RPush(ctx, qk, toArgs(next)...)
				pipe.Expire(ctx, qk, stateTTL)
				pipe.SAdd(ctx, hk, toArgs(next)...)
				pipe.Expire(ctx, hk, stateTTL)
			}
			return nil
		})
		return err
	}

	var err error
	for range maxTxRetries {
		err = c.client.Watch(ctx, txf, qk)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	observe("update_queue", start, err)
	if err != nil {
		return nil, fmt.Errorf("update queue for user %s: %w", userID, err)
	}
	return next, nil
}

// RemoveFromQueue is a single LREM and needs no transaction.
func (c *Cache) RemoveFromQueue(ctx context.Context, userID, itemID string) error {
	start := time.Now()
	err := c.client.LRem(ctx, queueKey(userID), 0, itemID).Err()
	observe("remove_from_queue", start, err)
	if err != nil {
		return fmt.Errorf("remove %s from queue of user %s: %w", itemID, userID, err)
	}
	return nil
}

// ClearQueue drops the live queue. The history is kept.
func (c *Cache) ClearQueue(ctx context.Context, userID string) error {
	start := time.Now()
	err := c.client.Del(ctx, queueKey(userID)).Err()
	observe("clear_queue", start, err)
	if err != nil {
		return fmt.Errorf("clear queue for user %s: %w", userID, err)
	}
	return nil
}

// History lists every id ever queued for the user.
func (c *Cache) History(ctx context.Context, userID string) ([]string, error) {
	start := time.Now()
	ids, err := c.client.SMembers(ctx, historyKey(userID)).Result()
	observe("history", start, err)
	if err != nil {
		return nil, fmt.Errorf("get history for user %s: %w", userID, err)
	}
	return ids, nil
}
