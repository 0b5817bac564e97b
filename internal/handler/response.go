package handler

import (
	"time"

	"github.com/actuallystonmai/recipe-recommender/internal/domain"
	"github.com/actuallystonmai/recipe-recommender/internal/service"
)

type RecommendationMeta struct {
	Source      string `json:"source"`
	Degraded    bool   `json:"degraded"`
	GeneratedAt string `json:"generated_at"`
	TotalCount  int    `json:"total_count"`
}

type RecommendationResponse struct {
	UserID          string             `json:"user_id"`
	Recommendations []domain.Recipe    `json:"recommendations"`
	Metadata        RecommendationMeta `json:"metadata"`
}

func newRecommendationResponse(l *service.RecommendationList) RecommendationResponse {
	return RecommendationResponse{
		UserID:          l.UserID,
		Recommendations: l.Recipes,
		Metadata: RecommendationMeta{
			Source:      string(l.Source),
			Degraded:    l.Degraded,
			GeneratedAt: time.Now().UTC().Format(time.RFC3339),
			TotalCount:  len(l.Recipes),
		},
	}
}

type FeedbackRequest struct {
	RecipeID string `json:"recipe_id" validate:"required,max=128"`
	Polarity string `json:"polarity" validate:"required,oneof=like dislike"`
}

type FeedbackResponse struct {
	UserID            string         `json:"user_id"`
	RecipeID          string         `json:"recipe_id"`
	Polarity          string         `json:"polarity"`
	Replacement       *domain.Recipe `json:"replacement,omitempty"`
	ReplacementSource string         `json:"replacement_source,omitempty"`
	ReplenishDegraded bool           `json:"replenish_degraded"`
	ReplenishError    string         `json:"replenish_error,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Name     string `json:"name" validate:"max=200"`
	ImageURL string `json:"image_url" validate:"omitempty,url,max=2048"`
}

type LoginResponse struct {
	User            *domain.User            `json:"user"`
	Recommendations *RecommendationResponse `json:"recommendations,omitempty"`
}

type SimilarItem struct {
	Recipe domain.Recipe `json:"recipe"`
	Score  float64       `json:"score"`
}

type SimilarResponse struct {
	RecipeID string        `json:"recipe_id"`
	Similar  []SimilarItem `json:"similar"`
}

type Pagination struct {
	Page        int  `json:"page"`
	Size        int  `json:"size"`
	TotalHits   int  `json:"total_hits"`
	TotalPages  int  `json:"total_pages"`
	HasNext     bool `json:"has_next"`
	HasPrevious bool `json:"has_previous"`
}

type SearchResponse struct {
	Query      string          `json:"query"`
	Results    []domain.Recipe `json:"results"`
	Pagination Pagination      `json:"pagination"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
