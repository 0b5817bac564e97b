package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/actuallystonmai/recipe-recommender/internal/cache"
	"github.com/actuallystonmai/recipe-recommender/internal/config"
	"github.com/actuallystonmai/recipe-recommender/internal/handler"
	"github.com/actuallystonmai/recipe-recommender/internal/logging"
	"github.com/actuallystonmai/recipe-recommender/internal/preference"
	"github.com/actuallystonmai/recipe-recommender/internal/ranker"
	"github.com/actuallystonmai/recipe-recommender/internal/repository"
	"github.com/actuallystonmai/recipe-recommender/internal/router"
	"github.com/actuallystonmai/recipe-recommender/internal/service"
	"github.com/actuallystonmai/recipe-recommender/internal/session"
	"github.com/actuallystonmai/recipe-recommender/internal/vectorizer"
	"github.com/actuallystonmai/recipe-recommender/internal/vectorstore"
	"github.com/actuallystonmai/recipe-recommender/seeds"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Caller: cfg.Logging.Caller})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ------------ PostgreSQL ---------------
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to parse database config")
	}
	poolConfig.MaxConns = int32(cfg.Database.PoolSize)
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	if err := waitForDB(ctx, pool); err != nil {
		logging.Fatal().Err(err).Msg("database not ready")
	}
	logging.Info().Msg("connected to PostgreSQL")

	// ------------ Run Migrations ---------------
	// for migrate-down using CLI command
	if len(os.Args) > 1 && os.Args[1] == "migrate-down" {
		if err := runMigration(ctx, pool, cfg.Server.MigrationsDir, "create_tables.down.sql"); err != nil {
			logging.Fatal().Err(err).Msg("failed to migrate down")
		}
		logging.Info().Msg("migrations dropped")
		return
	}
	if err := runMigration(ctx, pool, cfg.Server.MigrationsDir, "create_tables.up.sql"); err != nil {
		logging.Fatal().Err(err).Msg("failed to migrate up")
	}

	repo := repository.New(pool)

	// ------------ Setup Seed Data ---------------
	if err := checkSeed(ctx, repo, cfg); err != nil {
		logging.Fatal().Err(err).Msg("failed to check seed")
	}

	// ------------ Redis ---------------
	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to parse redis url")
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()
	c := cache.NewCache(rdb)

	var locker session.Locker = cache.NewLocker(rdb, cfg.Recommend.LockTTL)
	if err := c.Ping(ctx); err != nil {
		logging.Warn().Err(err).Msg("redis unreachable, using in-process user locks")
		locker = session.NewKeyedMutex()
	}

	// ------------ Vectors and ranking ---------------
	dim := cfg.Vectorizer.Dimension
	if model, err := vectorizer.Load(cfg.Recommend.ModelPath); err != nil {
		logging.Warn().Err(err).Msg("no vectorizer model, using configured dimension")
	} else {
		dim = model.Dimension
		logging.Info().Str("model_version", model.Version).Int("dimension", dim).Msg("vectorizer model loaded")
	}

	vectors := vectorstore.NewAccessor(
		vectorstore.NewBreakerSource(repo, vectorstore.DefaultBreakerSettings()),
		dim, cfg.Recommend.StoreTimeout)
	rk := ranker.New(nil, cfg.Recommend.BatchSize, cfg.Recommend.Concurrency)
	if err := rk.Reload(ctx, vectors, dim); err != nil {
		logging.Error().Err(err).Msg("initial index load failed, serving random recommendations")
	}
	go reloadOnHangup(ctx, rk, vectors, dim, c)

	agg, err := preference.NewAggregator(vectors, cfg.Recommend.LikeWeight, cfg.Recommend.DislikeWeight)
	if err != nil {
		logging.Fatal().Err(err).Msg("invalid preference weights")
	}

	mgr, err := session.NewManager(session.Deps{
		Items:       repo,
		Feedback:    repo,
		Queue:       c,
		Preferences: agg,
		Ranker:      rk,
		Sampler:     session.NewSampler(cfg.Recommend.RandomSeed),
		Locker:      locker,
	}, session.Options{
		DefaultK:     cfg.Recommend.DefaultK,
		MaxK:         cfg.Recommend.MaxK,
		StoreTimeout: cfg.Recommend.StoreTimeout,
		LockWait:     cfg.Recommend.LockWait,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to build session manager")
	}

	// ---------------- Server --------------------
	svc := service.NewService(repo, repo, c, mgr)
	h := handler.NewHandler(svc, cfg.Recommend.DefaultK, cfg.Recommend.MaxK)
	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: router.Setup(h, router.Options{
			RequestTimeout:  cfg.Server.RequestTimeout,
			CORSOrigins:     cfg.Server.CORSOrigins,
			RateLimitReqs:   cfg.Server.RateLimitReqs,
			RateLimitWindow: cfg.Server.RateLimitWindow,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logging.Info().Str("addr", srv.Addr).Msg("server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	logging.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func waitForDB(ctx context.Context, pool *pgxpool.Pool) error {
	for i := 0; i < 30; i++ {
		if err := pool.Ping(ctx); err == nil {
			return nil
		}
		logging.Info().Int("attempt", i+1).Msg("waiting for database")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return fmt.Errorf("database connection timeout after 30s")
}

func runMigration(ctx context.Context, pool *pgxpool.Pool, dir, name string) error {
	sql, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return fmt.Errorf("read migration file: %w", err)
	}
	if _, err := pool.Exec(ctx, string(sql)); err != nil {
		return fmt.Errorf("execute migration %s: %w", name, err)
	}
	logging.Info().Str("migration", name).Msg("migration applied")
	return nil
}

// checkSeed fills an empty database with the synthetic corpus and builds
// vectors when none are stored yet.
func checkSeed(ctx context.Context, repo *repository.Repository, cfg *config.Config) error {
	count, err := repo.CountRecipes(ctx)
	if err != nil {
		return fmt.Errorf("check recipe count: %w", err)
	}
	if count == 0 {
		if err := seeds.Setup(ctx, repo); err != nil {
			return err
		}
	} else {
		logging.Info().Int("recipes", count).Msg("database already seeded, skipping")
	}

	versions, err := repo.ModelVersions(ctx)
	if err != nil {
		return fmt.Errorf("check vectors: %w", err)
	}
	if len(versions) > 0 {
		if len(versions) > 1 {
			logging.Warn().Int("versions", len(versions)).Msg("stored vectors come from more than one model, rerun the vectorizer")
		}
		return nil
	}
	if _, _, err := vectorizer.Rebuild(ctx, repo, cfg.Vectorizer.Options(), cfg.Recommend.ModelPath); err != nil {
		return fmt.Errorf("build initial vectors: %w", err)
	}
	return nil
}

// reloadOnHangup rebuilds the ranking index from stored vectors on SIGHUP,
// e.g. after the vectorizer has run, and drops cached recipe documents.
func reloadOnHangup(ctx context.Context, rk *ranker.Ranker, loader ranker.Loader, dim int, c *cache.Cache) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := rk.Reload(ctx, loader, dim); err != nil {
				logging.Error().Err(err).Msg("index reload failed")
			}
			if err := c.InvalidateRecipes(ctx); err != nil {
				logging.Warn().Err(err).Msg("recipe cache invalidation failed")
			}
		}
	}
}
