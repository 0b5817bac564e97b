package session

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/actuallystonmai/recipe-recommender/internal/domain"
	"github.com/actuallystonmai/recipe-recommender/internal/preference"
	"github.com/actuallystonmai/recipe-recommender/internal/ranker"
	"github.com/actuallystonmai/recipe-recommender/internal/vectorstore"
)

var errDown = errors.New("store down")

type memItems struct {
	ids []string
}

func (m *memItems) AllItemIDs(context.Context) ([]string, error) { return slices.Clone(m.ids), nil }

func (m *memItems) ItemExists(_ context.Context, id string) (bool, error) {
	return slices.Contains(m.ids, id), nil
}

type memFeedback struct {
	mu      sync.Mutex
	records map[string]map[string]domain.Polarity
	failGet bool
	failSet bool
}

func newMemFeedback() *memFeedback {
	return &memFeedback{records: make(map[string]map[string]domain.Polarity)}
}

func (m *memFeedback) GetFeedback(_ context.Context, userID string) (domain.FeedbackSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return domain.FeedbackSet{}, errDown
	}
	var set domain.FeedbackSet
	for id, p := range m.records[userID] {
		if p == domain.Like {
			set.Liked = append(set.Liked, id)
		} else {
			set.Disliked = append(set.Disliked, id)
		}
	}
	slices.Sort(set.Liked)
	slices.Sort(set.Disliked)
	return set, nil
}

func (m *memFeedback) SaveFeedback(_ context.Context, fb domain.Feedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet {
		return errDown
	}
	if m.records[fb.UserID] == nil {
		m.records[fb.UserID] = make(map[string]domain.Polarity)
	}
	m.records[fb.UserID][fb.RecipeID] = fb.Polarity
	return nil
}

type memQueue struct {
	mu       sync.Mutex
	queues   map[string][]string
	history  map[string]map[string]struct{}
	failRead bool
	// beforeUpdate, when set, runs once ahead of the next UpdateQueue.
	beforeUpdate func()
}

func newMemQueue() *memQueue {
	return &memQueue{queues: make(map[string][]string), history: make(map[string]map[string]struct{})}
}

func (m *memQueue) GetQueue(_ context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRead {
		return nil, errDown
	}
	return slices.Clone(m.queues[userID]), nil
}

func (m *memQueue) UpdateQueue(_ context.Context, userID string, fn func([]string) []string) ([]string, error) {
	if hook := m.beforeUpdate; hook != nil {
		m.beforeUpdate = nil
		hook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	next := slices.Clone(fn(slices.Clone(m.queues[userID])))
	m.queues[userID] = next
	if m.history[userID] == nil {
		m.history[userID] = make(map[string]struct{})
	}
	for _, id := range next {
		m.history[userID][id] = struct{}{}
	}
	return slices.Clone(next), nil
}

func (m *memQueue) RemoveFromQueue(_ context.Context, userID, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queues[userID] = slices.DeleteFunc(m.queues[userID], func(id string) bool { return id == itemID })
	return nil
}

func (m *memQueue) ClearQueue(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.queues, userID)
	return nil
}

func (m *memQueue) History(_ context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRead {
		return nil, errDown
	}
	var out []string
	for id := range m.history[userID] {
		out = append(out, id)
	}
	slices.Sort(out)
	return out, nil
}

type failingRanker struct {
	Ranker
}

func (f failingRanker) Rank(context.Context, domain.FeatureVector, map[string]struct{}, int) ([]ranker.Scored, error) {
	return nil, errDown
}

type brokenLocker struct{}

func (brokenLocker) Lock(context.Context, string) (func(), error) { return nil, errDown }

// fixture wires real vector, preference and ranking components over the
// five-item corpus [1,0],[0,1],[1,0],[0,1],[-1,0]. Item 6 has no vector.
type fixture struct {
	items    *memItems
	feedback *memFeedback
	queue    *memQueue
	ranker   *ranker.Ranker
	deps     Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	vectors := map[string]domain.FeatureVector{
		"1": {1, 0},
		"2": {0, 1},
		"3": {1, 0},
		"4": {0, 1},
		"5": {-1, 0},
	}
	accessor := vectorstore.NewAccessor(vectorstore.NewMemorySource(vectors), 2, time.Second)
	agg, err := preference.NewAggregator(accessor, 1.0, -0.5)
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{
		items:    &memItems{ids: []string{"1", "2", "3", "4", "5", "6"}},
		feedback: newMemFeedback(),
		queue:    newMemQueue(),
		ranker:   ranker.New(ranker.NewIndex(vectors, 2), 2, 2),
	}
	f.deps = Deps{
		Items:       f.items,
		Feedback:    f.feedback,
		Queue:       f.queue,
		Preferences: agg,
		Ranker:      f.ranker,
		Sampler:     NewSampler(7),
	}
	return f
}

func (f *fixture) manager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(f.deps, Options{DefaultK: 3, MaxK: 10, StoreTimeout: time.Second, LockWait: 100 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	return m
}
