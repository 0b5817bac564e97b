package vectorizer

import (
	"context"
	"fmt"

	"github.com/actuallystonmai/recipe-recommender/internal/domain"
	"github.com/actuallystonmai/recipe-recommender/internal/logging"
)

// CorpusStore is what a full rebuild reads from and writes to.
type CorpusStore interface {
	AllRecipes(ctx context.Context) ([]domain.Recipe, error)
	ReplaceVectors(ctx context.Context, vectors map[string]domain.FeatureVector, modelVersion string) error
}

// IncrementalStore is what VectorizeMissing reads from and writes to.
type IncrementalStore interface {
	RecipesWithoutVectors(ctx context.Context) ([]domain.Recipe, error)
	SaveVectors(ctx context.Context, vectors map[string]domain.FeatureVector, modelVersion string) error
}

// Rebuild fits a new model over every stored recipe, saves it to
// modelPath and replaces all stored vectors with ones from the new model.
// The model file is written before the vectors.
func Rebuild(ctx context.Context, store CorpusStore, opts Options, modelPath string) (*Model, int, error) {
	corpus, err := store.AllRecipes(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("load corpus: %w", err)
	}
	model, vectors, err := Build(ctx, corpus, opts)
	if err != nil {
		return nil, 0, err
	}
	if err := model.Save(modelPath); err != nil {
		return nil, 0, err
	}
	if err := store.ReplaceVectors(ctx, vectors, model.Version); err != nil {
		return nil, 0, fmt.Errorf("store vectors: %w", err)
	}
	logging.Info().
		Str("model_version", model.Version).
		Int("recipes", len(corpus)).
		Int("vectors", len(vectors)).
		Float64("explained_variance", model.ExplainedVariance()).
		Str("path", modelPath).
		Msg("vector corpus rebuilt")
	return model, len(vectors), nil
}

// VectorizeMissing vectorizes recipes that have no stored vector with an
// already fitted model. Recipes with no usable text are skipped.
func VectorizeMissing(ctx context.Context, store IncrementalStore, model *Model) (int, error) {
	if model == nil {
		return 0, domain.ErrModelNotFitted
	}
	pending, err := store.RecipesWithoutVectors(ctx)
	if err != nil {
		return 0, fmt.Errorf("load unvectorised recipes: %w", err)
	}
	vectors := make(map[string]domain.FeatureVector, len(pending))
	for _, r := range pending {
		v, ok := model.Vectorize(r)
		if !ok {
			logging.Warn().Str("item_id", r.ID).Str("reason", "no_known_terms").Msg("recipe left without vector")
			continue
		}
		vectors[r.ID] = v
	}
	if len(vectors) == 0 {
		return 0, nil
	}
	if err := store.SaveVectors(ctx, vectors, model.Version); err != nil {
		return 0, fmt.Errorf("store vectors: %w", err)
	}
	logging.Info().Str("model_version", model.Version).Int("vectors", len(vectors)).Int("skipped", len(pending)-len(vectors)).Msg("missing vectors filled")
	return len(vectors), nil
}
