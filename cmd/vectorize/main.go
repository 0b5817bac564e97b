// Command vectorize fits the recipe vectorizer over the stored corpus and
// writes every recipe vector, or with -incremental fills in vectors for
// recipes added since the last fit.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/actuallystonmai/recipe-recommender/internal/config"
	"github.com/actuallystonmai/recipe-recommender/internal/logging"
	"github.com/actuallystonmai/recipe-recommender/internal/repository"
	"github.com/actuallystonmai/recipe-recommender/internal/vectorizer"
)

func main() {
	incremental := flag.Bool("incremental", false, "only vectorize recipes without a stored vector, using the saved model")
	modelPath := flag.String("model", "", "model file (defaults to recommend.model_path)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Caller: cfg.Logging.Caller})
	if *modelPath == "" {
		*modelPath = cfg.Recommend.ModelPath
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	repo := repository.New(pool)

	if *incremental {
		model, err := vectorizer.Load(*modelPath)
		if err != nil {
			logging.Fatal().Err(err).Msg("incremental run needs a fitted model")
		}
		n, err := vectorizer.VectorizeMissing(ctx, repo, model)
		if err != nil {
			logging.Fatal().Err(err).Msg("incremental vectorization failed")
		}
		logging.Info().Int("vectors", n).Msg("done")
		return
	}

	_, n, err := vectorizer.Rebuild(ctx, repo, cfg.Vectorizer.Options(), *modelPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("vectorization failed")
	}
	logging.Info().Int("vectors", n).Msg("done")
}
