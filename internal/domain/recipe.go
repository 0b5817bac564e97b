package domain

import "time"

type Recipe struct {
	ID                  string    `json:"id"`
	Title               string    `json:"title"`
	Description         string    `json:"description,omitempty"`
	RecipeURL           string    `json:"recipe_url,omitempty"`
	ImageURL            string    `json:"image_url,omitempty"`
	Ingredients         []string  `json:"ingredients"`
	Instructions        []string  `json:"instructions"`
	Category            string    `json:"category,omitempty"`
	Cuisine             string    `json:"cuisine,omitempty"`
	SiteName            string    `json:"site_name,omitempty"`
	Keywords            []string  `json:"keywords"`
	DietaryRestrictions []string  `json:"dietary_restrictions"`
	TotalTime           *int      `json:"total_time,omitempty"`
	OverallRating       *float64  `json:"overall_rating,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}
