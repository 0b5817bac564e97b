package domain

import "time"

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type UserStats struct {
	UserID          string `json:"user_id"`
	NumLiked        int    `json:"num_liked"`
	NumViewed       int    `json:"num_viewed"`
	FavoriteCuisine string `json:"favorite_cuisine,omitempty"`
}
