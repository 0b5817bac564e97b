// Package repository is the Postgres side of the service: recipes, users,
// feedback, recipe vectors and keyword search.
package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/actuallystonmai/recipe-recommender/internal/metrics"
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// observe records the latency and outcome of one query.
func observe(op string, start time.Time, err error) {
	metrics.RecordStoreOp("postgres", op, time.Since(start), err)
}
