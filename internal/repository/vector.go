package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/actuallystonmai/recipe-recommender/internal/domain"
)

// SaveVector stores one vector under modelVersion, replacing any earlier
// one for the recipe.
func (r *Repository) SaveVector(ctx context.Context, recipeID string, v domain.FeatureVector, modelVersion string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO recipe_vectors (recipe_id, vector, model_version)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (recipe_id) DO UPDATE
		   SET vector = EXCLUDED.vector, model_version = EXCLUDED.model_version, updated_at = NOW()`,
		recipeID, []float64(v), modelVersion,
	)
	if err != nil {
		return fmt.Errorf("save vector %s: %w", recipeID, err)
	}
	return nil
}

// SaveVectors upserts many vectors in one round trip.
func (r *Repository) SaveVectors(ctx context.Context, vectors map[string]domain.FeatureVector, modelVersion string) error {
	batch := &pgx.Batch{}
	for id, v := range vectors {
		batch.Queue(
			`INSERT INTO recipe_vectors (recipe_id, vector, model_version)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (recipe_id) DO UPDATE
			   SET vector = EXCLUDED.vector, model_version = EXCLUDED.model_version, updated_at = NOW()`,
			id, []float64(v), modelVersion)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("save %d vectors: %w", len(vectors), err)
	}
	return nil
}

// ReplaceVectors swaps the whole vector table for a freshly fitted corpus
// inside one transaction, so readers never see two model versions mixed.
func (r *Repository) ReplaceVectors(ctx context.Context, vectors map[string]domain.FeatureVector, modelVersion string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM recipe_vectors`); err != nil {
		return fmt.Errorf("clear vectors: %w", err)
	}
	rows := make([][]any, 0, len(vectors))
	for id, v := range vectors {
		rows = append(rows, []any{id, []float64(v), modelVersion})
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"recipe_vectors"},
		[]string{"recipe_id", "vector", "model_version"}, pgx.CopyFromRows(rows)); err != nil {
		return fmt.Errorf("copy vectors: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit vectors: %w", err)
	}
	return nil
}

func (r *Repository) GetVector(ctx context.Context, recipeID string) (domain.FeatureVector, bool, error) {
	start := time.Now()
	var v []float64
	err := r.pool.QueryRow(ctx, `SELECT vector FROM recipe_vectors WHERE recipe_id = $1`, recipeID).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		observe("get_vector", start, nil)
		return nil, false, nil
	}
	observe("get_vector", start, err)
	if err != nil {
		return nil, false, fmt.Errorf("get vector %s: %w", recipeID, err)
	}
	return domain.FeatureVector(v), true, nil
}

// GetVectors returns only the ids that have a stored vector.
func (r *Repository) GetVectors(ctx context.Context, ids []string) (map[string]domain.FeatureVector, error) {
	out := make(map[string]domain.FeatureVector, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	start := time.Now()
	rows, err := r.pool.Query(ctx, `SELECT recipe_id, vector FROM recipe_vectors WHERE recipe_id = ANY($1)`, ids)
	if err != nil {
		observe("get_vectors", start, err)
		return nil, fmt.Errorf("get vectors: %w", err)
	}
	err = scanVectors(rows, out)
	observe("get_vectors", start, err)
	return out, err
}

func (r *Repository) AllVectors(ctx context.Context) (map[string]domain.FeatureVector, error) {
	start := time.Now()
	rows, err := r.pool.Query(ctx, `SELECT recipe_id, vector FROM recipe_vectors`)
	if err != nil {
		observe("all_vectors", start, err)
		return nil, fmt.Errorf("all vectors: %w", err)
	}
	out := make(map[string]domain.FeatureVector)
	err = scanVectors(rows, out)
	observe("all_vectors", start, err)
	return out, err
}

func scanVectors(rows pgx.Rows, into map[string]domain.FeatureVector) error {
	defer rows.Close()
	for rows.Next() {
		var id string
		var v []float64
		if err := rows.Scan(&id, &v); err != nil {
			return fmt.Errorf("scan vector: %w", err)
		}
		into[id] = domain.FeatureVector(v)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate vectors: %w", err)
	}
	return nil
}

// ModelVersions reports how many vectors each model version produced.
func (r *Repository) ModelVersions(ctx context.Context) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT model_version, COUNT(*) FROM recipe_vectors GROUP BY model_version`)
	if err != nil {
		return nil, fmt.Errorf("query model versions: %w", err)
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var version string
		var n int
		if err := rows.Scan(&version, &n); err != nil {
			return nil, fmt.Errorf("scan model version: %w", err)
		}
		out[version] = n
	}
	return out, rows.Err()
}
