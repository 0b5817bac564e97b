package cache

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/actuallystonmai/recipe-recommender/internal/domain"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCache(client), mr
}

func setQueue(ids ...string) func([]string) []string {
	return func([]string) []string { return ids }
}

func TestKeys(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{queueKey("u-1"), "rec:user:u-1:queue"},
		{historyKey("u-1"), "rec:user:u-1:history"},
		{lockKey("u-1"), "rec:user:u-1:lock"},
		{recipeKey("r9"), "rec:recipe:r9"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("key = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestToArgs(t *testing.T) {
	got := toArgs([]string{"a", "b"})
	if !reflect.DeepEqual(got, []any{"a", "b"}) {
		t.Errorf("toArgs() = %v", got)
	}
	if len(toArgs(nil)) != 0 {
		t.Error("toArgs(nil) should be empty")
	}
}

func TestUpdateQueueRecordsHistory(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	if _, err := c.UpdateQueue(ctx, "u1", setQueue("a", "b")); err != nil {
		t.Fatalf("UpdateQueue() error = %v", err)
	}
	got, err := c.UpdateQueue(ctx, "u1", func(q []string) []string { return append(q[1:], "c") })
	if err != nil {
		t.Fatalf("UpdateQueue() error = %v", err)
	}
	if !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Errorf("UpdateQueue() = %v, want [b c]", got)
	}

	q, _ := c.GetQueue(ctx, "u1")
	if !reflect.DeepEqual(q, []string{"b", "c"}) {
		t.Errorf("queue = %v, want [b c]", q)
	}
	h, _ := c.History(ctx, "u1")
	slices.Sort(h)
	if !reflect.DeepEqual(h, []string{"a", "b", "c"}) {
		t.Errorf("history = %v, want [a b c]", h)
	}
	if mr.TTL(queueKey("u1")) <= 0 || mr.TTL(historyKey("u1")) <= 0 {
		t.Error("queue and history should expire")
	}

	// an empty result deletes the queue
	if _, err := c.UpdateQueue(ctx, "u1", setQueue()); err != nil {
		t.Fatal(err)
	}
	if mr.Exists(queueKey("u1")) {
		t.Error("empty queue should not be stored")
	}
}

func TestUpdateQueueRetriesOnConcurrentWrite(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	if _, err := c.UpdateQueue(ctx, "u1", setQueue("x", "y")); err != nil {
		t.Fatal(err)
	}

	removeAndAppend := func(drop, add string) func([]string) []string {
		return func(q []string) []string {
			q = slices.DeleteFunc(q, func(id string) bool { return id == drop })
			return append(q, add)
		}
	}

	calls := 0
	_, err := c.UpdateQueue(ctx, "u1", func(q []string) []string {
		calls++
		if calls == 1 {
			// another request edits the queue between our read and write
			if _, err := c.UpdateQueue(ctx, "u1", removeAndAppend("y", "r2")); err != nil {
				t.Errorf("concurrent update: %v", err)
			}
		}
		return removeAndAppend("x", "r1")(q)
	})
	if err != nil {
		t.Fatalf("UpdateQueue() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("fn ran %d times, want 2", calls)
	}
	q, _ := c.GetQueue(ctx, "u1")
	if !reflect.DeepEqual(q, []string{"r2", "r1"}) {
		t.Errorf("queue = %v, want [r2 r1]", q)
	}
}

func TestUpdateQueueGivesUpUnderContention(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	calls := 0
	_, err := c.UpdateQueue(ctx, "u1", func(q []string) []string {
		calls++
		c.client.RPush(ctx, queueKey("u1"), "intruder")
		return []string{"mine"}
	})
	if !errors.Is(err, redis.TxFailedErr) {
		t.Fatalf("err = %v, want TxFailedErr", err)
	}
	if calls != maxTxRetries {
		t.Errorf("fn ran %d times, want %d", calls, maxTxRetries)
	}
}

func TestRemoveFromQueue(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	if _, err := c.UpdateQueue(ctx, "u1", setQueue("a", "b", "c")); err != nil {
		t.Fatal(err)
	}

	if err := c.RemoveFromQueue(ctx, "u1", "b"); err != nil {
		t.Fatalf("RemoveFromQueue() error = %v", err)
	}
	if err := c.RemoveFromQueue(ctx, "u1", "missing"); err != nil {
		t.Fatalf("RemoveFromQueue(missing) error = %v", err)
	}
	q, _ := c.GetQueue(ctx, "u1")
	if !reflect.DeepEqual(q, []string{"a", "c"}) {
		t.Errorf("queue = %v, want [a c]", q)
	}
	h, _ := c.History(ctx, "u1")
	if !slices.Contains(h, "b") {
		t.Errorf("removed id should stay in history: %v", h)
	}
}

func TestClearQueueKeepsHistory(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	if _, err := c.UpdateQueue(ctx, "u1", setQueue("a", "b")); err != nil {
		t.Fatal(err)
	}

	if err := c.ClearQueue(ctx, "u1"); err != nil {
		t.Fatalf("ClearQueue() error = %v", err)
	}
	q, err := c.GetQueue(ctx, "u1")
	if err != nil || len(q) != 0 {
		t.Errorf("queue after clear = %v, %v", q, err)
	}
	h, _ := c.History(ctx, "u1")
	if len(h) != 2 {
		t.Errorf("history after clear = %v, want 2 ids", h)
	}
}

func TestLockerExcludesSecondHolder(t *testing.T) {
	c, mr := newTestCache(t)
	l := NewLocker(c.client, time.Minute)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "u1")
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}

	wctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(wctx, "u1"); err == nil {
		t.Error("second Lock() on a held key should time out")
	}
	if _, err := l.Lock(ctx, "u2"); err != nil {
		t.Errorf("other users must not contend: %v", err)
	}

	unlock()
	if mr.Exists(lockKey("u1")) {
		t.Error("lock key should be gone after unlock")
	}
	if _, err := l.Lock(ctx, "u1"); err != nil {
		t.Errorf("Lock() after unlock error = %v", err)
	}
}

func TestLockerReleaseKeepsForeignToken(t *testing.T) {
	c, mr := newTestCache(t)
	l := NewLocker(c.client, time.Minute)

	unlock, err := l.Lock(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	// our lock expired and someone else took it
	if err := mr.Set(lockKey("u1"), "someone-else"); err != nil {
		t.Fatal(err)
	}
	unlock()

	got, err := mr.Get(lockKey("u1"))
	if err != nil || got != "someone-else" {
		t.Errorf("lock value = %q, %v; another holder's lock must survive", got, err)
	}
}

func TestRecipeCache(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	err := c.SetRecipes(ctx, []domain.Recipe{
		{ID: "r1", Title: "Green Curry", Cuisine: "Thai"},
		{ID: "r2", Title: "Margherita"},
	})
	if err != nil {
		t.Fatalf("SetRecipes() error = %v", err)
	}
	if err := mr.Set(recipeKey("bad"), "{not json"); err != nil {
		t.Fatal(err)
	}

	got, err := c.GetRecipes(ctx, []string{"r1", "missing", "bad", "r2"})
	if err != nil {
		t.Fatalf("GetRecipes() error = %v", err)
	}
	if len(got) != 2 || got["r1"].Title != "Green Curry" || got["r2"].Title != "Margherita" {
		t.Errorf("GetRecipes() = %+v", got)
	}

	if err := c.InvalidateRecipes(ctx); err != nil {
		t.Fatalf("InvalidateRecipes() error = %v", err)
	}
	got, _ = c.GetRecipes(ctx, []string{"r1", "r2"})
	if len(got) != 0 {
		t.Errorf("recipes survived invalidation: %+v", got)
	}
}
