package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/actuallystonmai/recipe-recommender/internal/domain"
	"github.com/actuallystonmai/recipe-recommender/internal/logging"
)

// GetRecipes returns the cached recipes among ids. Entries that fail to
// decode are treated as misses.
func (c *Cache) GetRecipes(ctx context.Context, ids []string) (map[string]domain.Recipe, error) {
	found := make(map[string]domain.Recipe, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = recipeKey(id)
	}

	start := time.Now()
	vals, err := c.client.MGet(ctx, keys...).Result()
	observe("get_recipes", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to get recipes from cache: %w", err)
	}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var rc domain.Recipe
		if err := json.Unmarshal([]byte(s), &rc); err != nil {
			logging.Warn().Err(err).Str("key", keys[i]).Msg("dropping undecodable cached recipe")
			continue
		}
		found[ids[i]] = rc
	}
	return found, nil
}

// SetRecipes stores recipes for recipeTTL.
func (c *Cache) SetRecipes(ctx context.Context, recipes []domain.Recipe) error {
	if len(recipes) == 0 {
		return nil
	}
	start := time.Now()
	_, err := c.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, rc := range recipes {
			val, err := json.Marshal(rc)
			if err != nil {
				return fmt.Errorf("failed to marshal recipe %s: %w", rc.ID, err)
			}
			pipe.Set(ctx, recipeKey(rc.ID), val, recipeTTL)
		}
		return nil
	})
	observe("set_recipes", start, err)
	if err != nil {
		return fmt.Errorf("failed to set recipes in cache: %w", err)
	}
	return nil
}

// InvalidateRecipes is used after recipes are re-imported.
func (c *Cache) InvalidateRecipes(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, recipeKey("*"), 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("cache delete %s: %w", iter.Val(), err)
		}
	}
	return iter.Err()
}
