package domain

// RecommendationSource records how a list of recommendations was produced.
type RecommendationSource string

const (
	SourceQueue        RecommendationSource = "queue"
	SourcePersonalized RecommendationSource = "personalized"
	SourceColdStart    RecommendationSource = "cold_start"
	SourceFallback     RecommendationSource = "random_fallback"
)

type RecommendationResult struct {
	RecipeIDs []string
	Source    RecommendationSource
	// Degraded is set when a collaborator failed and a fallback was used.
	Degraded bool
}

type FeedbackResult struct {
	UserID        string
	RecipeID      string
	Polarity      Polarity
	ReplacementID string
	Source        RecommendationSource
	// ReplenishDegraded is set when the feedback was stored but the
	// replacement could not be generated normally.
	ReplenishDegraded bool
	ReplenishError    string
}

type BatchStatus string

const (
	StatusSuccess BatchStatus = "success"
	StatusFailed  BatchStatus = "failed"
)

type BatchUserResult struct {
	UserID    string      `json:"user_id"`
	RecipeIDs []string    `json:"recipe_ids,omitempty"`
	Source    string      `json:"source,omitempty"`
	Status    BatchStatus `json:"status"`
	Error     string      `json:"error,omitempty"`
}

type BatchSummary struct {
	SuccessCount     int   `json:"success_count"`
	FailedCount      int   `json:"failed_count"`
	ProcessingTimeMs int64 `json:"processing_time_ms"`
}

type BatchMeta struct {
	GeneratedAt string `json:"generated_at"`
}

type BatchResponse struct {
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalUsers int               `json:"total_users"`
	Results    []BatchUserResult `json:"results"`
	Summary    BatchSummary      `json:"summary"`
	Metadata   BatchMeta         `json:"metadata"`
}

// SearchPage is one page of keyword search hits, ids only.
type SearchPage struct {
	Query       string   `json:"query"`
	RecipeIDs   []string `json:"recipe_ids"`
	TotalHits   int      `json:"total_hits"`
	Page        int      `json:"page"`
	Size        int      `json:"size"`
	TotalPages  int      `json:"total_pages"`
	HasNext     bool     `json:"has_next"`
	HasPrevious bool     `json:"has_previous"`
}
