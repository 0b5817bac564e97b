package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/actuallystonmai/recipe-recommender/internal/domain"
	"github.com/actuallystonmai/recipe-recommender/internal/logging"
	"github.com/actuallystonmai/recipe-recommender/internal/metrics"
	"github.com/actuallystonmai/recipe-recommender/internal/ranker"
)

const (
	batchConcurrency = 10
	batchRecLimit    = 10
)

type RecipeStore interface {
	GetRecipe(ctx context.Context, id string) (*domain.Recipe, error)
	GetRecipesByIDs(ctx context.Context, ids []string) ([]domain.Recipe, error)
	SearchRecipes(ctx context.Context, query string, page, size int) (domain.SearchPage, error)
}

type UserStore interface {
	GetUserByID(ctx context.Context, userID string) (*domain.User, error)
	UpsertUser(ctx context.Context, u *domain.User) error
	GetUserIDsPaginated(ctx context.Context, page, limit int) ([]string, error)
	CountUsers(ctx context.Context) (int, error)
	UserStats(ctx context.Context, userID string) (*domain.UserStats, error)
}

type RecipeCache interface {
	GetRecipes(ctx context.Context, ids []string) (map[string]domain.Recipe, error)
	SetRecipes(ctx context.Context, recipes []domain.Recipe) error
}

// Sessions is satisfied by *session.Manager.
type Sessions interface {
	GenerateOrServe(ctx context.Context, userID string, k int) (domain.RecommendationResult, error)
	Refresh(ctx context.Context, userID string, k int) (domain.RecommendationResult, error)
	RecordFeedbackAndReplenish(ctx context.Context, userID, itemID string, polarity domain.Polarity) (domain.FeedbackResult, error)
	Similar(ctx context.Context, itemID string, k int) ([]ranker.Scored, error)
}

type Service struct {
	recipes  RecipeStore
	users    UserStore
	cache    RecipeCache
	sessions Sessions
}

func NewService(recipes RecipeStore, users UserStore, cache RecipeCache, sessions Sessions) *Service {
	return &Service{
		recipes:  recipes,
		users:    users,
		cache:    cache,
		sessions: sessions,
	}
}

type RecommendationList struct {
	UserID   string
	Recipes  []domain.Recipe
	Source   domain.RecommendationSource
	Degraded bool
}

type FeedbackOutcome struct {
	domain.FeedbackResult
	Replacement *domain.Recipe
}

type ScoredRecipe struct {
	Recipe domain.Recipe
	Score  float64
}

type SearchResult struct {
	Page    domain.SearchPage
	Recipes []domain.Recipe
}

type LoginInput struct {
	Email    string
	Name     string
	ImageURL string
}

type LoginResult struct {
	User            *domain.User
	Recommendations *RecommendationList
}

func (s *Service) ensureUser(ctx context.Context, userID string) error {
	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("fetch user: %w", err)
	}
	return nil
}

func (s *Service) GetRecommendations(ctx context.Context, userID string, limit int) (*RecommendationList, error) {
	if err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}
	res, err := s.sessions.GenerateOrServe(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, userID, res)
}

// Refresh discards the user's queue and builds a new one.
func (s *Service) Refresh(ctx context.Context, userID string, limit int) (*RecommendationList, error) {
	if err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}
	res, err := s.sessions.Refresh(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, userID, res)
}

func (s *Service) list(ctx context.Context, userID string, res domain.RecommendationResult) (*RecommendationList, error) {
	recipes, err := s.Hydrate(ctx, res.RecipeIDs)
	if err != nil {
		return nil, err
	}
	return &RecommendationList{UserID: userID, Recipes: recipes, Source: res.Source, Degraded: res.Degraded}, nil
}

// Login upserts the user and warms their queue. A failure to warm is
// logged; the login itself still succeeds.
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	u := &domain.User{Email: in.Email, Name: in.Name, ImageURL: in.ImageURL}
	if err := s.users.UpsertUser(ctx, u); err != nil {
		return nil, err
	}
	out := &LoginResult{User: u}
	res, err := s.sessions.GenerateOrServe(ctx, u.ID, 0)
	if err != nil {
		logging.Warn().Err(err).Str("user_id", u.ID).Msg("warm recommendations on login")
		return out, nil
	}
	if out.Recommendations, err = s.list(ctx, u.ID, res); err != nil {
		logging.Warn().Err(err).Str("user_id", u.ID).Msg("hydrate recommendations on login")
	}
	return out, nil
}

func (s *Service) SubmitFeedback(ctx context.Context, userID, recipeID string, polarity domain.Polarity) (*FeedbackOutcome, error) {
	if err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}
	res, err := s.sessions.RecordFeedbackAndReplenish(ctx, userID, recipeID, polarity)
	if err != nil {
		return nil, err
	}
	out := &FeedbackOutcome{FeedbackResult: res}
	if res.ReplacementID != "" {
		recipes, err := s.Hydrate(ctx, []string{res.ReplacementID})
		if err != nil {
			logging.Warn().Err(err).Str("recipe_id", res.ReplacementID).Msg("hydrate replacement")
		} else if len(recipes) == 1 {
			out.Replacement = &recipes[0]
		}
	}
	return out, nil
}

func (s *Service) Stats(ctx context.Context, userID string) (*domain.UserStats, error) {
	if err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.users.UserStats(ctx, userID)
}

func (s *Service) GetRecipe(ctx context.Context, id string) (*domain.Recipe, error) {
	recipes, err := s.Hydrate(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(recipes) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrItemNotFound, id)
	}
	return &recipes[0], nil
}

// Similar returns the recipes closest to id, best first.
func (s *Service) Similar(ctx context.Context, id string, limit int) ([]ScoredRecipe, error) {
	if _, err := s.GetRecipe(ctx, id); err != nil {
		return nil, err
	}
	scored, err := s.sessions.Similar(ctx, id, limit)
	if err != nil {
		return nil, err
	}
	recipes, err := s.Hydrate(ctx, ranker.IDs(scored))
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Recipe, len(recipes))
	for _, rc := range recipes {
		byID[rc.ID] = rc
	}
	out := make([]ScoredRecipe, 0, len(scored))
	for _, sc := range scored {
		if rc, ok := byID[sc.ID]; ok {
			out = append(out, ScoredRecipe{Recipe: rc, Score: sc.Score})
		}
	}
	return out, nil
}

func (s *Service) Search(ctx context.Context, query string, page, size int) (*SearchResult, error) {
	hits, err := s.recipes.SearchRecipes(ctx, query, page, size)
	if err != nil {
		return nil, err
	}
	recipes, err := s.Hydrate(ctx, hits.RecipeIDs)
	if err != nil {
		return nil, err
	}
	return &SearchResult{Page: hits, Recipes: recipes}, nil
}

// Hydrate loads recipes in the order of ids, from the cache first. Ids
// that no longer exist are skipped. Cache failures only cost latency.
func (s *Service) Hydrate(ctx context.Context, ids []string) ([]domain.Recipe, error) {
	if len(ids) == 0 {
		return []domain.Recipe{}, nil
	}
	found, err := s.cache.GetRecipes(ctx, ids)
	if err != nil {
		logging.Warn().Err(err).Msg("recipe cache read")
		found = make(map[string]domain.Recipe)
	}

	var missing []string
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		loaded, err := s.recipes.GetRecipesByIDs(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("load recipes: %w", err)
		}
		for _, rc := range loaded {
			found[rc.ID] = rc
		}
		if err := s.cache.SetRecipes(ctx, loaded); err != nil {
			logging.Warn().Err(err).Msg("recipe cache write")
		}
	}

	out := make([]domain.Recipe, 0, len(ids))
	for _, id := range ids {
		if rc, ok := found[id]; ok {
			out = append(out, rc)
		}
	}
	return out, nil
}

func (s *Service) GetBatchRecommendations(ctx context.Context, page, limit int) (*domain.BatchResponse, error) {
	start := time.Now()

	// Fetch paginated user IDs
	userIDs, err := s.users.GetUserIDsPaginated(ctx, page, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch user ids: %w", err)
	}

	totalUsers, err := s.users.CountUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("count user: %w", err)
	}

	// Process users concurrently with bounded worker pool
	results := make([]domain.BatchUserResult, len(userIDs))
	var wg sync.WaitGroup
	sem := make(chan struct{}, batchConcurrency) // semaphore

	for i, userID := range userIDs {
		wg.Add(1)
		go func(idx int, uid string) {
			defer wg.Done()
			sem <- struct{}{}        // acquire
			defer func() { <-sem }() // release

			results[idx] = s.processUserForBatch(ctx, uid)
		}(i, userID)
	}
	wg.Wait()

	successCount := 0
	failedCount := 0
	for _, r := range results {
		if r.Status == domain.StatusSuccess {
			successCount++
		} else {
			failedCount++
		}
	}

	return &domain.BatchResponse{
		Page:       page,
		Limit:      limit,
		TotalUsers: totalUsers,
		Results:    results,
		Summary: domain.BatchSummary{
			SuccessCount:     successCount,
			FailedCount:      failedCount,
			ProcessingTimeMs: time.Since(start).Milliseconds(),
		},
		Metadata: domain.BatchMeta{
			GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		},
	}, nil
}

// Warms the queue of a single user, capturing errors.
func (s *Service) processUserForBatch(ctx context.Context, userID string) domain.BatchUserResult {
	res, err := s.sessions.GenerateOrServe(ctx, userID, batchRecLimit)
	if err != nil {
		logging.Warn().Err(err).Str("user_id", userID).Msg("batch: recommendation failed")
		metrics.BatchUsersProcessed.WithLabelValues(string(domain.StatusFailed)).Inc()
		return domain.BatchUserResult{
			UserID: userID,
			Status: domain.StatusFailed,
			Error:  categorizeError(err),
		}
	}
	metrics.BatchUsersProcessed.WithLabelValues(string(domain.StatusSuccess)).Inc()
	return domain.BatchUserResult{
		UserID:    userID,
		RecipeIDs: res.RecipeIDs,
		Source:    string(res.Source),
		Status:    domain.StatusSuccess,
	}
}

func categorizeError(err error) string {
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	}
	return "internal_error"
}
