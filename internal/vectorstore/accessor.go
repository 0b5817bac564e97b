// Package vectorstore reads persisted recipe vectors and filters out the
// ones that cannot be used for ranking.
package vectorstore

import (
	"context"
	"fmt"
	"time"

	"github.com/actuallystonmai/recipe-recommender/internal/domain"
	"github.com/actuallystonmai/recipe-recommender/internal/logging"
	"github.com/actuallystonmai/recipe-recommender/internal/metrics"
)

// Source is the vector persistence collaborator. GetVectors and
// AllVectors return only the ids that have a stored vector.
type Source interface {
	GetVector(ctx context.Context, id string) (domain.FeatureVector, bool, error)
	GetVectors(ctx context.Context, ids []string) (map[string]domain.FeatureVector, error)
	AllVectors(ctx context.Context) (map[string]domain.FeatureVector, error)
}

// Accessor validates vectors read from a Source. Invalid vectors are
// logged and dropped; only collaborator failures surface as errors.
type Accessor struct {
	src     Source
	dim     int
	timeout time.Duration
}

func NewAccessor(src Source, dim int, timeout time.Duration) *Accessor {
	return &Accessor{src: src, dim: dim, timeout: timeout}
}

func (a *Accessor) Dimension() int { return a.dim }

func (a *Accessor) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.timeout)
}

// Get returns the vector for id, or false when it is absent or invalid.
func (a *Accessor) Get(ctx context.Context, id string) (domain.FeatureVector, bool, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	v, ok, err := a.src.GetVector(ctx, id)
	metrics.RecordStoreOp("vectors", "get", time.Since(start), err)
	if err != nil {
		return nil, false, fmt.Errorf("get vector %s: %w", id, err)
	}
	if !ok || !a.valid(id, v) {
		return nil, false, nil
	}
	return v, true, nil
}

// GetMany returns the valid vectors among ids. Missing ids are simply
// absent from the result.
func (a *Accessor) GetMany(ctx context.Context, ids []string) (map[string]domain.FeatureVector, error) {
	if len(ids) == 0 {
		return map[string]domain.FeatureVector{}, nil
	}
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	raw, err := a.src.GetVectors(ctx, ids)
	metrics.RecordStoreOp("vectors", "get_many", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("get %d vectors: %w", len(ids), err)
	}
	return a.filter(raw), nil
}

// All returns every valid stored vector. Used to build the ranking index.
func (a *Accessor) All(ctx context.Context) (map[string]domain.FeatureVector, error) {
	start := time.Now()
	raw, err := a.src.AllVectors(ctx)
	metrics.RecordStoreOp("vectors", "all", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("list vectors: %w", err)
	}
	return a.filter(raw), nil
}

func (a *Accessor) filter(raw map[string]domain.FeatureVector) map[string]domain.FeatureVector {
	out := make(map[string]domain.FeatureVector, len(raw))
	for id, v := range raw {
		if a.valid(id, v) {
			out[id] = v
		}
	}
	return out
}

func (a *Accessor) valid(id string, v domain.FeatureVector) bool {
	reason := v.Check(a.dim)
	if reason == "" {
		return true
	}
	metrics.InvalidVectors.WithLabelValues(reason).Inc()
	logging.Warn().
		Str("item_id", id).
		Str("reason", reason).
		Int("length", len(v)).
		Int("dimension", a.dim).
		Msg("dropping invalid vector")
	return false
}
