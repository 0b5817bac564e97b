package vectorizer

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/actuallystonmai/recipe-recommender/internal/domain"
)

type memCorpus struct {
	recipes  []domain.Recipe
	vectors  map[string]domain.FeatureVector
	versions map[string]string
}

func (m *memCorpus) AllRecipes(context.Context) ([]domain.Recipe, error) { return m.recipes, nil }

func (m *memCorpus) ReplaceVectors(_ context.Context, v map[string]domain.FeatureVector, version string) error {
	m.vectors = map[string]domain.FeatureVector{}
	m.versions = map[string]string{}
	return m.SaveVectors(context.Background(), v, version)
}

func (m *memCorpus) RecipesWithoutVectors(context.Context) ([]domain.Recipe, error) {
	var out []domain.Recipe
	for _, r := range m.recipes {
		if _, ok := m.vectors[r.ID]; !ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memCorpus) SaveVectors(_ context.Context, v map[string]domain.FeatureVector, version string) error {
	for id, vec := range v {
		m.vectors[id] = vec
		m.versions[id] = version
	}
	return nil
}

func TestRebuildThenIncremental(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "model.json")
	store := &memCorpus{recipes: testCorpus()}

	model, n, err := Rebuild(ctx, store, testOptions(), path)
	if err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	if n != 6 || len(store.vectors) != 6 {
		t.Fatalf("stored %d vectors (reported %d), want 6", len(store.vectors), n)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Version != model.Version {
		t.Errorf("saved version %s, built %s", loaded.Version, model.Version)
	}

	store.recipes = append(store.recipes, domain.Recipe{
		ID: "r7", Title: "Green Curry Noodles", Ingredients: []string{"green curry paste", "coconut milk"}, Cuisine: "Thai",
	})
	added, err := VectorizeMissing(ctx, store, loaded)
	if err != nil {
		t.Fatalf("VectorizeMissing() error = %v", err)
	}
	if added != 1 {
		t.Errorf("added %d vectors, want 1", added)
	}
	if store.versions["r7"] != model.Version {
		t.Errorf("new vector tagged %q, want %q", store.versions["r7"], model.Version)
	}
	if _, ok := store.vectors["empty"]; ok {
		t.Error("empty recipe should stay without a vector")
	}
}

func TestVectorizeMissingNeedsModel(t *testing.T) {
	_, err := VectorizeMissing(context.Background(), &memCorpus{}, nil)
	if !errors.Is(err, domain.ErrModelNotFitted) {
		t.Errorf("error = %v, want ErrModelNotFitted", err)
	}
}
