package domain

import (
	"fmt"
	"strings"
	"time"
)

type Polarity string

const (
	Like    Polarity = "like"
	Dislike Polarity = "dislike"
)

// ParsePolarity accepts "like" or "dislike", case-insensitively.
func ParsePolarity(s string) (Polarity, error) {
	switch Polarity(strings.ToLower(strings.TrimSpace(s))) {
	case Like:
		return Like, nil
	case Dislike:
		return Dislike, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPolarity, s)
}

type Feedback struct {
	UserID    string    `json:"user_id"`
	RecipeID  string    `json:"recipe_id"`
	Polarity  Polarity  `json:"polarity"`
	CreatedAt time.Time `json:"created_at"`
}

// FeedbackSet is a user's current feedback split by polarity. A recipe id
// appears in at most one of the two lists.
type FeedbackSet struct {
	Liked    []string `json:"liked"`
	Disliked []string `json:"disliked"`
}

func (f FeedbackSet) Empty() bool {
	return len(f.Liked) == 0 && len(f.Disliked) == 0
}

func (f FeedbackSet) Len() int {
	return len(f.Liked) + len(f.Disliked)
}
