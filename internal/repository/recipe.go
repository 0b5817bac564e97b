package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/actuallystonmai/recipe-recommender/internal/domain"
)

const recipeColumns = `id, title, description, recipe_url, image_url, ingredients, instructions,
	category, cuisine, site_name, keywords, dietary_restrictions, total_time, overall_rating, created_at`

func scanRecipe(row pgx.Row) (domain.Recipe, error) {
	var rc domain.Recipe
	err := row.Scan(&rc.ID, &rc.Title, &rc.Description, &rc.RecipeURL, &rc.ImageURL,
		&rc.Ingredients, &rc.Instructions, &rc.Category, &rc.Cuisine, &rc.SiteName,
		&rc.Keywords, &rc.DietaryRestrictions, &rc.TotalTime, &rc.OverallRating, &rc.CreatedAt)
	return rc, err
}

func (r *Repository) GetRecipe(ctx context.Context, id string) (*domain.Recipe, error) {
	start := time.Now()
	rc, err := scanRecipe(r.pool.QueryRow(ctx, `SELECT `+recipeColumns+` FROM recipes WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			observe("get_recipe", start, nil)
			return nil, fmt.Errorf("%w: %s", domain.ErrItemNotFound, id)
		}
		observe("get_recipe", start, err)
		return nil, fmt.Errorf("query recipe %s: %w", id, err)
	}
	observe("get_recipe", start, nil)
	return &rc, nil
}

// GetRecipesByIDs returns the recipes that exist, in no particular order.
func (r *Repository) GetRecipesByIDs(ctx context.Context, ids []string) ([]domain.Recipe, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	start := time.Now()
	rows, err := r.pool.Query(ctx, `SELECT `+recipeColumns+` FROM recipes WHERE id = ANY($1)`, ids)
	if err != nil {
		observe("get_recipes", start, err)
		return nil, fmt.Errorf("query recipes by id: %w", err)
	}
	recipes, err := collectRecipes(rows)
	observe("get_recipes", start, err)
	return recipes, err
}

// AllRecipes loads the whole corpus ordered by id.
func (r *Repository) AllRecipes(ctx context.Context) ([]domain.Recipe, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+recipeColumns+` FROM recipes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query all recipes: %w", err)
	}
	return collectRecipes(rows)
}

// RecipesWithoutVectors lists recipes that have no stored vector.
func (r *Repository) RecipesWithoutVectors(ctx context.Context) ([]domain.Recipe, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+recipeColumns+`
		FROM recipes r
		WHERE NOT EXISTS (SELECT 1 FROM recipe_vectors v WHERE v.recipe_id = r.id)
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query unvectorised recipes: %w", err)
	}
	return collectRecipes(rows)
}

func collectRecipes(rows pgx.Rows) ([]domain.Recipe, error) {
	defer rows.Close()
	var out []domain.Recipe
	for rows.Next() {
		rc, err := scanRecipe(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recipe: %w", err)
		}
		out = append(out, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recipes: %w", err)
	}
	return out, nil
}

func (r *Repository) AllItemIDs(ctx context.Context) ([]string, error) {
	start := time.Now()
	rows, err := r.pool.Query(ctx, `SELECT id FROM recipes ORDER BY id`)
	if err != nil {
		observe("all_item_ids", start, err)
		return nil, fmt.Errorf("query recipe ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	observe("all_item_ids", start, err)
	if err != nil {
		return nil, fmt.Errorf("collect recipe ids: %w", err)
	}
	return ids, nil
}

func (r *Repository) ItemExists(ctx context.Context, id string) (bool, error) {
	start := time.Now()
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM recipes WHERE id = $1)`, id).Scan(&exists)
	observe("item_exists", start, err)
	if err != nil {
		return false, fmt.Errorf("check recipe %s: %w", id, err)
	}
	return exists, nil
}

func (r *Repository) CountRecipes(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM recipes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count recipes: %w", err)
	}
	return n, nil
}

// InsertRecipes bulk loads recipes with COPY.
func (r *Repository) InsertRecipes(ctx context.Context, recipes []domain.Recipe) (int64, error) {
	rows := make([][]any, len(recipes))
	for i, rc := range recipes {
		rows[i] = []any{rc.ID, rc.Title, rc.Description, rc.RecipeURL, rc.ImageURL,
			nonNil(rc.Ingredients), nonNil(rc.Instructions), rc.Category, rc.Cuisine, rc.SiteName,
			nonNil(rc.Keywords), nonNil(rc.DietaryRestrictions), rc.TotalTime, rc.OverallRating, rc.CreatedAt}
	}
	n, err := r.pool.CopyFrom(ctx, pgx.Identifier{"recipes"},
		[]string{"id", "title", "description", "recipe_url", "image_url", "ingredients", "instructions",
			"category", "cuisine", "site_name", "keywords", "dietary_restrictions", "total_time",
			"overall_rating", "created_at"},
		pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("copy recipes: %w", err)
	}
	return n, nil
}

// nonNil keeps NOT NULL array columns from receiving NULL.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
