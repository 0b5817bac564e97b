package session

import (
	"context"

	"github.com/actuallystonmai/recipe-recommender/internal/domain"
	"github.com/actuallystonmai/recipe-recommender/internal/ranker"
)

type ItemStore interface {
	AllItemIDs(ctx context.Context) ([]string, error)
	ItemExists(ctx context.Context, id string) (bool, error)
}

type FeedbackStore interface {
	GetFeedback(ctx context.Context, userID string) (domain.FeedbackSet, error)
	// SaveFeedback upserts: a second call for the same pair replaces the
	// earlier polarity.
	SaveFeedback(ctx context.Context, fb domain.Feedback) error
}

// QueueStore persists the pending recommendations of each user. Every id
// ever written with UpdateQueue is also remembered in the user's history.
type QueueStore interface {
	GetQueue(ctx context.Context, userID string) ([]string, error)
	// UpdateQueue replaces the queue with fn(current) atomically with
	// respect to other writers of the same user. fn may run more than once.
	UpdateQueue(ctx context.Context, userID string, fn func(queue []string) []string) ([]string, error)
	RemoveFromQueue(ctx context.Context, userID, itemID string) error
	ClearQueue(ctx context.Context, userID string) error
	History(ctx context.Context, userID string) ([]string, error)
}

// Locker serialises writers of one user's state.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// PreferenceSource is satisfied by *preference.Aggregator.
type PreferenceSource interface {
	Aggregate(ctx context.Context, liked, disliked []string) (domain.FeatureVector, error)
}

// Ranker is satisfied by *ranker.Ranker.
type Ranker interface {
	Rank(ctx context.Context, pref domain.FeatureVector, exclude map[string]struct{}, k int) ([]ranker.Scored, error)
	Candidates() []string
}
