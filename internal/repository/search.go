package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/actuallystonmai/recipe-recommender/internal/domain"
)

// likePattern turns free text into a case-insensitive substring pattern
// with LIKE wildcards escaped.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.TrimSpace(q)) + "%"
}

// pageOf fills the pagination fields of a search page.
func pageOf(query string, ids []string, total, page, size int) domain.SearchPage {
	pages := 0
	if size > 0 {
		pages = (total + size - 1) / size
	}
	if ids == nil {
		ids = []string{}
	}
	return domain.SearchPage{
		Query:       query,
		RecipeIDs:   ids,
		TotalHits:   total,
		Page:        page,
		Size:        size,
		TotalPages:  pages,
		HasNext:     page < pages,
		HasPrevious: page > 1,
	}
}

// SearchRecipes matches title, description and ingredients. Hits with the
// query in the title come first, then by rating and id.
func (r *Repository) SearchRecipes(ctx context.Context, query string, page, size int) (domain.SearchPage, error) {
	start := time.Now()
	pattern := likePattern(query)
	const where = `title ILIKE $1 OR description ILIKE $1 OR array_to_string(ingredients, ' ') ILIKE $1`

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM recipes WHERE `+where, pattern).Scan(&total); err != nil {
		observe("search", start, err)
		return domain.SearchPage{}, fmt.Errorf("count search hits: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id FROM recipes WHERE `+where+`
		 ORDER BY (title ILIKE $1) DESC, overall_rating DESC NULLS LAST, id
		 LIMIT $2 OFFSET $3`,
		pattern, size, (page-1)*size)
	if err != nil {
		observe("search", start, err)
		return domain.SearchPage{}, fmt.Errorf("search recipes: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	observe("search", start, err)
	if err != nil {
		return domain.SearchPage{}, fmt.Errorf("collect search hits: %w", err)
	}
	return pageOf(query, ids, total, page, size), nil
}
