// Package ranker scores the indexed corpus against a preference vector
// and returns a deterministic top-k.
package ranker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/actuallystonmai/recipe-recommender/internal/domain"
	"github.com/actuallystonmai/recipe-recommender/internal/logging"
	"github.com/actuallystonmai/recipe-recommender/internal/metrics"
)

type Scored struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// before orders by score descending, then id ascending.
func before(a, b Scored) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.ID < b.ID
}

func sortScored(s []Scored) {
	sort.Slice(s, func(i, j int) bool { return before(s[i], s[j]) })
}

// Loader supplies the vectors an index is built from.
type Loader interface {
	All(ctx context.Context) (map[string]domain.FeatureVector, error)
}

type Ranker struct {
	mu          sync.RWMutex
	index       *Index
	batchSize   int
	concurrency int
}

func New(index *Index, batchSize, concurrency int) *Ranker {
	if batchSize <= 0 {
		batchSize = 1024
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	if index == nil {
		index = NewIndex(nil, 0)
	}
	metrics.IndexSize.Set(float64(index.Len()))
	return &Ranker{index: index, batchSize: batchSize, concurrency: concurrency}
}

// Index returns the current snapshot.
func (r *Ranker) Index() *Index {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index
}

// Swap replaces the index. Rankings already in flight keep the old one.
func (r *Ranker) Swap(index *Index) {
	r.mu.Lock()
	r.index = index
	r.mu.Unlock()
	metrics.IndexSize.Set(float64(index.Len()))
}

// Reload rebuilds the index from loader.
func (r *Ranker) Reload(ctx context.Context, loader Loader, dim int) error {
	vectors, err := loader.All(ctx)
	if err != nil {
		return fmt.Errorf("reload index: %w", err)
	}
	ix := NewIndex(vectors, dim)
	r.Swap(ix)
	logging.Info().Int("items", ix.Len()).Int("dimension", dim).Msg("ranking index loaded")
	return nil
}

// Rank returns up to k ids most similar to pref, skipping exclude. A nil
// or wrong-sized pref, or an empty index, yields an empty result. If ctx
// ends mid-way the partial scores are discarded.
func (r *Ranker) Rank(ctx context.Context, pref domain.FeatureVector, exclude map[string]struct{}, k int) ([]Scored, error) {
	ix := r.Index()
	if k <= 0 || ix.Len() == 0 || pref == nil || len(pref) != ix.Dimension() {
		return []Scored{}, nil
	}
	unit, ok := pref.Normalized()
	if !ok {
		return []Scored{}, nil
	}

	start := time.Now()
	defer func() { metrics.RankDuration.Observe(time.Since(start).Seconds()) }()

	numBatches := (ix.Len() + r.batchSize - 1) / r.batchSize
	partial := make([][]Scored, numBatches)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for b := 0; b < numBatches; b++ {
		lo := b * r.batchSize
		hi := min(lo+r.batchSize, ix.Len())
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			partial[b] = scoreBatch(ix, unit, exclude, lo, hi, k)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("rank: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("rank: %w", err)
	}

	merged := make([]Scored, 0, min(k*numBatches, ix.Len()))
	for _, p := range partial {
		merged = append(merged, p...)
	}
	sortScored(merged)
	if len(merged) > k {
		merged = merged[:k]
	}
	return merged, nil
}

// scoreBatch returns the local top-k of ix[lo:hi]. Any global top-k item
// is in the top-k of its own batch, so merging local results is exact.
func scoreBatch(ix *Index, pref domain.FeatureVector, exclude map[string]struct{}, lo, hi, k int) []Scored {
	out := make([]Scored, 0, hi-lo)
	for i := lo; i < hi; i++ {
		id := ix.ids[i]
		if _, skip := exclude[id]; skip {
			continue
		}
		out = append(out, Scored{ID: id, Score: pref.Dot(ix.vecs[i])})
	}
	sortScored(out)
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// IDs flattens scored results.
func IDs(s []Scored) []string {
	ids := make([]string, len(s))
	for i, x := range s {
		ids[i] = x.ID
	}
	return ids
}

// Candidates lists every rankable id in ascending order.
func (r *Ranker) Candidates() []string {
	return r.Index().IDs()
}
