package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/actuallystonmai/recipe-recommender/internal/domain"
	"github.com/actuallystonmai/recipe-recommender/internal/ranker"
)

type fakeRecipes struct {
	byID  map[string]domain.Recipe
	loads [][]string
}

func (f *fakeRecipes) GetRecipe(_ context.Context, id string) (*domain.Recipe, error) {
	rc, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrItemNotFound
	}
	return &rc, nil
}

func (f *fakeRecipes) GetRecipesByIDs(_ context.Context, ids []string) ([]domain.Recipe, error) {
	f.loads = append(f.loads, ids)
	var out []domain.Recipe
	for _, id := range ids {
		if rc, ok := f.byID[id]; ok {
			out = append(out, rc)
		}
	}
	return out, nil
}

func (f *fakeRecipes) SearchRecipes(_ context.Context, q string, page, size int) (domain.SearchPage, error) {
	return domain.SearchPage{Query: q, RecipeIDs: []string{"b", "a"}, TotalHits: 2, Page: page, Size: size, TotalPages: 1}, nil
}

type fakeUsers struct {
	known map[string]bool
}

func (f *fakeUsers) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	if !f.known[id] {
		return nil, domain.ErrUserNotFound
	}
	return &domain.User{ID: id}, nil
}

func (f *fakeUsers) UpsertUser(_ context.Context, u *domain.User) error {
	u.ID = "user-" + u.Email
	f.known[u.ID] = true
	return nil
}

func (f *fakeUsers) GetUserIDsPaginated(context.Context, int, int) ([]string, error) {
	return []string{"u1", "u2", "broken"}, nil
}

func (f *fakeUsers) CountUsers(context.Context) (int, error) { return 3, nil }

func (f *fakeUsers) UserStats(_ context.Context, id string) (*domain.UserStats, error) {
	return &domain.UserStats{UserID: id, NumLiked: 1}, nil
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]domain.Recipe
	fail    bool
}

func (f *fakeCache) GetRecipes(_ context.Context, ids []string) (map[string]domain.Recipe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("redis down")
	}
	out := map[string]domain.Recipe{}
	for _, id := range ids {
		if rc, ok := f.entries[id]; ok {
			out[id] = rc
		}
	}
	return out, nil
}

func (f *fakeCache) SetRecipes(_ context.Context, recipes []domain.Recipe) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rc := range recipes {
		f.entries[rc.ID] = rc
	}
	return nil
}

type fakeSessions struct{}

func (fakeSessions) GenerateOrServe(_ context.Context, userID string, _ int) (domain.RecommendationResult, error) {
	if userID == "broken" {
		return domain.RecommendationResult{}, fmt.Errorf("generate: %w", context.DeadlineExceeded)
	}
	return domain.RecommendationResult{RecipeIDs: []string{"c", "gone", "a"}, Source: domain.SourceColdStart}, nil
}

func (fakeSessions) Refresh(_ context.Context, _ string, _ int) (domain.RecommendationResult, error) {
	return domain.RecommendationResult{RecipeIDs: []string{"b"}, Source: domain.SourcePersonalized}, nil
}

func (fakeSessions) RecordFeedbackAndReplenish(_ context.Context, userID, itemID string, p domain.Polarity) (domain.FeedbackResult, error) {
	return domain.FeedbackResult{UserID: userID, RecipeID: itemID, Polarity: p, ReplacementID: "c"}, nil
}

func (fakeSessions) Similar(context.Context, string, int) ([]ranker.Scored, error) {
	return []ranker.Scored{{ID: "b", Score: 0.9}, {ID: "c", Score: 0.5}}, nil
}

func newTestService() (*Service, *fakeRecipes, *fakeCache) {
	recipes := &fakeRecipes{byID: map[string]domain.Recipe{
		"a": {ID: "a", Title: "Apple pie"},
		"b": {ID: "b", Title: "Banana bread"},
		"c": {ID: "c", Title: "Carrot cake"},
	}}
	cache := &fakeCache{entries: map[string]domain.Recipe{}}
	users := &fakeUsers{known: map[string]bool{"u1": true}}
	return NewService(recipes, users, cache, fakeSessions{}), recipes, cache
}

func titles(rs []domain.Recipe) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

func TestHydrateKeepsOrderAndFillsCache(t *testing.T) {
	svc, recipes, cache := newTestService()
	ctx := context.Background()
	cache.entries["b"] = domain.Recipe{ID: "b", Title: "cached"}

	got, err := svc.Hydrate(ctx, []string{"c", "b", "missing", "a"})
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"c", "b", "a"}; !reflect.DeepEqual(titles(got), want) {
		t.Errorf("order = %v, want %v", titles(got), want)
	}
	if got[1].Title != "cached" {
		t.Errorf("cached entry not used")
	}
	if !reflect.DeepEqual(recipes.loads[0], []string{"c", "missing", "a"}) {
		t.Errorf("loaded from store: %v", recipes.loads[0])
	}
	if _, ok := cache.entries["c"]; !ok {
		t.Error("store hits not written back to cache")
	}

	// cache outage falls through to the store
	cache.fail = true
	if got, err := svc.Hydrate(ctx, []string{"a"}); err != nil || len(got) != 1 {
		t.Errorf("with cache down: %v, %v", got, err)
	}
}

func TestGetRecommendations(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.GetRecommendations(ctx, "nobody", 5); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("unknown user error = %v", err)
	}
	list, err := svc.GetRecommendations(ctx, "u1", 5)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"c", "a"}; !reflect.DeepEqual(titles(list.Recipes), want) {
		t.Errorf("recipes = %v, want %v", titles(list.Recipes), want)
	}
	if list.Source != domain.SourceColdStart {
		t.Errorf("source = %s", list.Source)
	}
}

func TestLoginWarmsQueue(t *testing.T) {
	svc, _, _ := newTestService()
	res, err := svc.Login(context.Background(), LoginInput{Email: "cook@example.com", Name: "Cook"})
	if err != nil {
		t.Fatal(err)
	}
	if res.User.ID != "user-cook@example.com" || res.Recommendations == nil || len(res.Recommendations.Recipes) != 2 {
		t.Errorf("login result = %+v", res)
	}
}

func TestSubmitFeedbackHydratesReplacement(t *testing.T) {
	svc, _, _ := newTestService()
	out, err := svc.SubmitFeedback(context.Background(), "u1", "a", domain.Like)
	if err != nil {
		t.Fatal(err)
	}
	if out.Replacement == nil || out.Replacement.ID != "c" {
		t.Errorf("replacement = %+v", out.Replacement)
	}
}

func TestSimilarAttachesScores(t *testing.T) {
	svc, _, _ := newTestService()
	got, err := svc.Similar(context.Background(), "a", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Recipe.ID != "b" || got[0].Score != 0.9 {
		t.Errorf("Similar() = %+v", got)
	}
	if _, err := svc.Similar(context.Background(), "zzz", 2); !errors.Is(err, domain.ErrItemNotFound) {
		t.Errorf("unknown recipe error = %v", err)
	}
}

func TestSearchHydratesInHitOrder(t *testing.T) {
	svc, _, _ := newTestService()
	res, err := svc.Search(context.Background(), "bread", 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"b", "a"}; !reflect.DeepEqual(titles(res.Recipes), want) {
		t.Errorf("recipes = %v", titles(res.Recipes))
	}
}

func TestBatchSummary(t *testing.T) {
	svc, _, _ := newTestService()
	res, err := svc.GetBatchRecommendations(context.Background(), 1, 3)
	if err != nil {
		t.Fatal(err)
	}
	if res.Summary.SuccessCount != 2 || res.Summary.FailedCount != 1 {
		t.Errorf("summary = %+v", res.Summary)
	}
	if res.Results[2].UserID != "broken" || res.Results[2].Error != "timeout" {
		t.Errorf("failed result = %+v", res.Results[2])
	}
	if res.TotalUsers != 3 {
		t.Errorf("total users = %d", res.TotalUsers)
	}
}
