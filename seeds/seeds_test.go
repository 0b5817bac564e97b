package seeds

import (
	"context"
	"reflect"
	"testing"

	"github.com/actuallystonmai/recipe-recommender/internal/domain"
)

func TestCorpusDeterministic(t *testing.T) {
	a, b := Corpus(50), Corpus(50)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("Corpus is not deterministic")
	}
}

func TestCorpusShape(t *testing.T) {
	recipes := Corpus(DefaultSize)
	if len(recipes) != DefaultSize {
		t.Fatalf("got %d recipes", len(recipes))
	}
	ids := map[string]bool{}
	titles := map[string]bool{}
	for _, rc := range recipes {
		if ids[rc.ID] {
			t.Errorf("duplicate id %s", rc.ID)
		}
		ids[rc.ID] = true
		if titles[rc.Title] {
			t.Errorf("duplicate title %q", rc.Title)
		}
		titles[rc.Title] = true
		if rc.Title == "" || len(rc.Ingredients) < 4 || rc.Cuisine == "" {
			t.Errorf("incomplete recipe %+v", rc)
		}
		if *rc.OverallRating < 1 || *rc.OverallRating > 5 {
			t.Errorf("rating %v out of range", *rc.OverallRating)
		}
	}
}

type captureStore struct {
	got []domain.Recipe
}

func (c *captureStore) InsertRecipes(_ context.Context, recipes []domain.Recipe) (int64, error) {
	c.got = recipes
	return int64(len(recipes)), nil
}

func TestSetup(t *testing.T) {
	store := &captureStore{}
	if err := Setup(context.Background(), store); err != nil {
		t.Fatal(err)
	}
	if len(store.got) != DefaultSize {
		t.Errorf("inserted %d recipes", len(store.got))
	}
}
