package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/actuallystonmai/recipe-recommender/internal/domain"
)

func (r *Repository) GetUserByID(ctx context.Context, userID string) (*domain.User, error) {
	u := &domain.User{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, name, image_url, created_at, updated_at
		 FROM users WHERE id = $1`,
		userID,
	).Scan(&u.ID, &u.Email, &u.Name, &u.ImageURL, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("query user id=%s: %w", userID, err)
	}
	return u, nil
}

// UpsertUser creates the user on first login, keyed by email, and refreshes
// name and image on later logins. The stored id is returned on u.
func (r *Repository) UpsertUser(ctx context.Context, u *domain.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (id, email, name, image_url)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (email) DO UPDATE
		   SET name = EXCLUDED.name, image_url = EXCLUDED.image_url, updated_at = NOW()
		 RETURNING id, created_at, updated_at`,
		u.ID, u.Email, u.Name, u.ImageURL,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", u.Email, err)
	}
	return nil
}

func (r *Repository) GetUserIDsPaginated(ctx context.Context, page, limit int) ([]string, error) {
	offset := (page - 1) * limit
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM users ORDER BY id LIMIT $1 OFFSET $2`, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("query user ids for page %d: %w", page, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect user ids: %w", err)
	}
	return ids, nil
}

func (r *Repository) CountUsers(ctx context.Context) (int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return total, nil
}

// UserStats counts the user's feedback and finds the cuisine they like
// most. Both queries go out in one batch.
func (r *Repository) UserStats(ctx context.Context, userID string) (*domain.UserStats, error) {
	batch := &pgx.Batch{}
	batch.Queue(
		`SELECT COUNT(*) FILTER (WHERE polarity = 'like'), COUNT(*)
		 FROM user_feedback WHERE user_id = $1`, userID)
	batch.Queue(
		`SELECT r.cuisine
		 FROM user_feedback f JOIN recipes r ON r.id = f.recipe_id
		 WHERE f.user_id = $1 AND f.polarity = 'like' AND r.cuisine <> ''
		 GROUP BY r.cuisine
		 ORDER BY COUNT(*) DESC, r.cuisine
		 LIMIT 1`, userID)

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	stats := &domain.UserStats{UserID: userID}
	if err := results.QueryRow().Scan(&stats.NumLiked, &stats.NumViewed); err != nil {
		return nil, fmt.Errorf("count feedback for user %s: %w", userID, err)
	}
	err := results.QueryRow().Scan(&stats.FavoriteCuisine)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("favourite cuisine for user %s: %w", userID, err)
	}
	return stats, nil
}
