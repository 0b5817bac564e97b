// Package seeds generates a deterministic synthetic recipe corpus for
// empty databases.
package seeds

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/actuallystonmai/recipe-recommender/internal/domain"
	"github.com/actuallystonmai/recipe-recommender/internal/logging"
)

// DefaultSize is the number of recipes Setup inserts.
const DefaultSize = 120

var recipeNamespace = uuid.MustParse("6f1c8f3e-2b7a-4d5e-9a61-0c4b8e2f7d13")

type RecipeInserter interface {
	InsertRecipes(ctx context.Context, recipes []domain.Recipe) (int64, error)
}

func Setup(ctx context.Context, store RecipeInserter) error {
	logging.Info().Int("recipes", DefaultSize).Msg("seeding recipes")
	n, err := store.InsertRecipes(ctx, Corpus(DefaultSize))
	if err != nil {
		return fmt.Errorf("seed recipes: %w", err)
	}
	logging.Info().Int64("inserted", n).Msg("seeding complete")
	return nil
}

type cuisineTemplate struct {
	dishes      []string
	ingredients []string
	keywords    []string
}

var cuisines = map[string]cuisineTemplate{
	"italian": {
		dishes:      []string{"Spaghetti Carbonara", "Margherita Pizza", "Mushroom Risotto", "Lasagna", "Minestrone Soup", "Tiramisu"},
		ingredients: []string{"pasta", "parmesan cheese", "olive oil", "garlic", "basil", "tomatoes", "mozzarella", "arborio rice", "pancetta"},
		keywords:    []string{"pasta", "cheese", "comfort food", "mediterranean"},
	},
	"mexican": {
		dishes:      []string{"Chicken Tacos", "Beef Enchiladas", "Guacamole", "Chili Con Carne", "Churros", "Black Bean Burrito"},
		ingredients: []string{"tortillas", "black beans", "avocado", "lime", "jalapeno", "cilantro", "cumin", "chicken thighs", "ground beef"},
		keywords:    []string{"spicy", "street food", "tacos", "beans"},
	},
	"thai": {
		dishes:      []string{"Pad Thai", "Green Curry", "Tom Yum Soup", "Mango Sticky Rice", "Massaman Curry", "Papaya Salad"},
		ingredients: []string{"rice noodles", "fish sauce", "coconut milk", "lemongrass", "thai basil", "shrimp", "peanuts", "chili paste", "jasmine rice"},
		keywords:    []string{"spicy", "curry", "noodles", "coconut"},
	},
	"japanese": {
		dishes:      []string{"Chicken Teriyaki", "Miso Soup", "Salmon Sushi Bowl", "Tonkotsu Ramen", "Vegetable Tempura", "Matcha Cheesecake"},
		ingredients: []string{"soy sauce", "mirin", "miso paste", "salmon", "sushi rice", "nori", "ginger", "scallions", "ramen noodles"},
		keywords:    []string{"umami", "rice", "noodles", "seafood"},
	},
	"indian": {
		dishes:      []string{"Butter Chicken", "Chana Masala", "Palak Paneer", "Vegetable Biryani", "Dal Tadka", "Mango Lassi"},
		ingredients: []string{"garam masala", "turmeric", "paneer", "chickpeas", "basmati rice", "yogurt", "ghee", "spinach", "red lentils"},
		keywords:    []string{"curry", "spicy", "vegetarian", "lentils"},
	},
	"american": {
		dishes:      []string{"Classic Cheeseburger", "Buttermilk Pancakes", "Mac and Cheese", "BBQ Pulled Pork", "Apple Pie", "Caesar Salad"},
		ingredients: []string{"ground beef", "cheddar cheese", "buttermilk", "maple syrup", "pork shoulder", "apples", "romaine lettuce", "butter", "brown sugar"},
		keywords:    []string{"comfort food", "grill", "baking", "classic"},
	},
}

var (
	cuisineOrder = []string{"american", "indian", "italian", "japanese", "mexican", "thai"}
	categories   = []string{"main course", "soup", "dessert", "breakfast", "salad", "side dish"}
	catWeights   = []float64{0.4, 0.12, 0.18, 0.1, 0.1, 0.1}
	diets        = []string{"vegetarian", "vegan", "gluten free", "dairy free", "low carb"}
	methods      = []string{"Preheat the oven", "Heat oil in a large pan", "Bring a pot of salted water to a boil", "Whisk together", "Marinate"}
	finishes     = []string{"Serve warm", "Garnish with fresh herbs", "Let it rest before slicing", "Season to taste", "Chill before serving"}
)

// Corpus returns n recipes. The same n always yields the same recipes with
// the same ids.
func Corpus(n int) []domain.Recipe {
	rng := rand.New(rand.NewPCG(42, 42))
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	out := make([]domain.Recipe, 0, n)
	for i := range n {
		cuisine := cuisineOrder[i%len(cuisineOrder)]
		tmpl := cuisines[cuisine]
		dish := tmpl.dishes[(i/len(cuisineOrder))%len(tmpl.dishes)]
		title := dish
		if round := i / (len(cuisineOrder) * len(tmpl.dishes)); round > 0 {
			title = fmt.Sprintf("%s %d", dish, round+1)
		}

		ingredients := pick(rng, tmpl.ingredients, 4+rng.IntN(4))
		totalTime := 10 + rng.IntN(110)
		rating := powerLawScore(rng)

		out = append(out, domain.Recipe{
			ID:          uuid.NewSHA1(recipeNamespace, []byte(fmt.Sprintf("recipe-%d", i))).String(),
			Title:       title,
			Description: fmt.Sprintf("A %s %s with %s.", cuisine, strings.ToLower(dish), strings.Join(ingredients[:2], " and ")),
			Ingredients: ingredients,
			Instructions: []string{
				methods[rng.IntN(len(methods))] + ".",
				fmt.Sprintf("Add the %s and cook until done.", ingredients[0]),
				finishes[rng.IntN(len(finishes))] + ".",
			},
			Category:            weightedChoice(rng, categories, catWeights),
			Cuisine:             cuisine,
			SiteName:            "Test Kitchen",
			Keywords:            pick(rng, tmpl.keywords, 2),
			DietaryRestrictions: pick(rng, diets, rng.IntN(3)),
			TotalTime:           &totalTime,
			OverallRating:       &rating,
			CreatedAt:           base.AddDate(0, 0, rng.IntN(365)),
		})
	}
	return out
}

// pick returns k distinct elements of s.
func pick(rng *rand.Rand, s []string, k int) []string {
	k = min(k, len(s))
	idx := rng.Perm(len(s))[:k]
	out := make([]string, k)
	for i, j := range idx {
		out[i] = s[j]
	}
	return out
}

// powerLawScore skews ratings towards the top of the 1..5 scale.
func powerLawScore(rng *rand.Rand) float64 {
	raw := 1 - math.Pow(rng.Float64(), 2.0)
	return math.Round((1+raw*4)*10) / 10
}

func weightedChoice(rng *rand.Rand, choices []string, weights []float64) string {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	r := rng.Float64() * total
	cumulative := 0.0
	for i, w := range weights {
		cumulative += w
		if r <= cumulative {
			return choices[i]
		}
	}
	return choices[len(choices)-1]
}
