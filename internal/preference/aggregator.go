// Package preference turns a user's feedback into a unit-length taste
// vector.
package preference

import (
	"context"
	"fmt"

	"github.com/actuallystonmai/recipe-recommender/internal/domain"
)

// VectorGetter is satisfied by *vectorstore.Accessor.
type VectorGetter interface {
	GetMany(ctx context.Context, ids []string) (map[string]domain.FeatureVector, error)
}

type Aggregator struct {
	vectors       VectorGetter
	likeWeight    float64
	dislikeWeight float64
}

// NewAggregator requires likeWeight > 0 and dislikeWeight < 0.
func NewAggregator(vectors VectorGetter, likeWeight, dislikeWeight float64) (*Aggregator, error) {
	if likeWeight <= 0 {
		return nil, fmt.Errorf("like weight must be positive, got %v", likeWeight)
	}
	if dislikeWeight >= 0 {
		return nil, fmt.Errorf("dislike weight must be negative, got %v", dislikeWeight)
	}
	return &Aggregator{vectors: vectors, likeWeight: likeWeight, dislikeWeight: dislikeWeight}, nil
}

// Aggregate returns like_w*mean(liked) + dislike_w*mean(disliked), scaled
// to unit length. A nil vector means there is nothing to personalise on:
// no usable vectors, or likes and dislikes cancelling out exactly.
func (a *Aggregator) Aggregate(ctx context.Context, liked, disliked []string) (domain.FeatureVector, error) {
	likedVecs, err := a.vectors.GetMany(ctx, liked)
	if err != nil {
		return nil, fmt.Errorf("liked vectors: %w", err)
	}
	dislikedVecs, err := a.vectors.GetMany(ctx, disliked)
	if err != nil {
		return nil, fmt.Errorf("disliked vectors: %w", err)
	}
	return combine(liked, likedVecs, disliked, dislikedVecs, a.likeWeight, a.dislikeWeight)
}

// combine walks ids in the caller's order so the floating point sums are
// reproducible regardless of map iteration.
func combine(liked []string, likedVecs map[string]domain.FeatureVector, disliked []string, dislikedVecs map[string]domain.FeatureVector, likeW, dislikeW float64) (domain.FeatureVector, error) {
	likeMean, err := mean(liked, likedVecs)
	if err != nil {
		return nil, err
	}
	dislikeMean, err := mean(disliked, dislikedVecs)
	if err != nil {
		return nil, err
	}
	likeDim, dislikeDim := len(likeMean), len(dislikeMean)
	if likeMean == nil && dislikeMean == nil {
		return nil, nil
	}
	if likeMean != nil && dislikeMean != nil && likeDim != dislikeDim {
		return nil, fmt.Errorf("%w: liked %d, disliked %d", domain.ErrDimensionMismatch, likeDim, dislikeDim)
	}

	dim := max(likeDim, dislikeDim)
	pref := make(domain.FeatureVector, dim)
	if likeMean != nil {
		for i, x := range likeMean {
			pref[i] += likeW * x
		}
	}
	if dislikeMean != nil {
		for i, x := range dislikeMean {
			pref[i] += dislikeW * x
		}
	}

	unit, ok := pref.Normalized()
	if !ok {
		return nil, nil
	}
	return unit, nil
}

// mean averages the vectors present for ids, visiting each id once.
func mean(ids []string, vecs map[string]domain.FeatureVector) (domain.FeatureVector, error) {
	var sum domain.FeatureVector
	n := 0
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		v, ok := vecs[id]
		if !ok {
			continue
		}
		if sum == nil {
			sum = make(domain.FeatureVector, len(v))
		}
		if len(v) != len(sum) {
			return nil, fmt.Errorf("%w: %s has %d values, want %d", domain.ErrDimensionMismatch, id, len(v), len(sum))
		}
		for i, x := range v {
			sum[i] += x
		}
		n++
	}
	if n == 0 {
		return nil, nil
	}
	for i := range sum {
		sum[i] /= float64(n)
	}
	return sum, nil
}
