package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/actuallystonmai/recipe-recommender/internal/domain"
)

// SaveFeedback keeps one row per (user, recipe); the latest polarity wins.
func (r *Repository) SaveFeedback(ctx context.Context, fb domain.Feedback) error {
	start := time.Now()
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = start.UTC()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_feedback (user_id, recipe_id, polarity, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, recipe_id) DO UPDATE
		   SET polarity = EXCLUDED.polarity, created_at = EXCLUDED.created_at`,
		fb.UserID, fb.RecipeID, string(fb.Polarity), fb.CreatedAt,
	)
	observe("save_feedback", start, err)
	if err != nil {
		return fmt.Errorf("save feedback user=%s recipe=%s: %w", fb.UserID, fb.RecipeID, err)
	}
	return nil
}

// GetFeedback returns the user's current feedback, oldest first within
// each polarity.
func (r *Repository) GetFeedback(ctx context.Context, userID string) (domain.FeedbackSet, error) {
	start := time.Now()
	rows, err := r.pool.Query(ctx,
		`SELECT recipe_id, polarity FROM user_feedback
		 WHERE user_id = $1
		 ORDER BY created_at, recipe_id`,
		userID,
	)
	if err != nil {
		observe("get_feedback", start, err)
		return domain.FeedbackSet{}, fmt.Errorf("get feedback for user %s: %w", userID, err)
	}
	defer rows.Close()

	var set domain.FeedbackSet
	for rows.Next() {
		var recipeID, polarity string
		if err := rows.Scan(&recipeID, &polarity); err != nil {
			observe("get_feedback", start, err)
			return domain.FeedbackSet{}, fmt.Errorf("scan feedback: %w", err)
		}
		switch domain.Polarity(polarity) {
		case domain.Like:
			set.Liked = append(set.Liked, recipeID)
		case domain.Dislike:
			set.Disliked = append(set.Disliked, recipeID)
		}
	}
	err = rows.Err()
	observe("get_feedback", start, err)
	if err != nil {
		return domain.FeedbackSet{}, fmt.Errorf("iterate feedback: %w", err)
	}
	return set, nil
}
