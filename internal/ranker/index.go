package ranker

import (
	"sort"

	"github.com/actuallystonmai/recipe-recommender/internal/domain"
	"github.com/actuallystonmai/recipe-recommender/internal/logging"
	"github.com/actuallystonmai/recipe-recommender/internal/metrics"
)

// Index is an immutable snapshot of every rankable recipe: ids in
// ascending order with their unit-length vectors.
type Index struct {
	dim  int
	ids  []string
	vecs []domain.FeatureVector
	pos  map[string]int
}

// NewIndex copies and normalises vectors. Entries that are not valid at
// dimension dim are skipped.
func NewIndex(vectors map[string]domain.FeatureVector, dim int) *Index {
	ids := make([]string, 0, len(vectors))
	for id, v := range vectors {
		if reason := v.Check(dim); reason != "" {
			logging.Warn().Str("item_id", id).Str("reason", reason).Msg("skipping vector while building index")
			metrics.InvalidVectors.WithLabelValues(reason).Inc()
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	ix := &Index{
		dim:  dim,
		ids:  ids,
		vecs: make([]domain.FeatureVector, 0, len(ids)),
		pos:  make(map[string]int, len(ids)),
	}
	kept := ids[:0]
	for _, id := range ids {
		unit, ok := vectors[id].Normalized()
		if !ok {
			logging.Warn().Str("item_id", id).Str("reason", domain.RejectUnnormalizable).Msg("skipping vector while building index")
			metrics.InvalidVectors.WithLabelValues(domain.RejectUnnormalizable).Inc()
			continue
		}
		ix.pos[id] = len(kept)
		kept = append(kept, id)
		ix.vecs = append(ix.vecs, unit)
	}
	ix.ids = kept
	return ix
}

func (ix *Index) Len() int { return len(ix.ids) }

func (ix *Index) Dimension() int { return ix.dim }

// IDs returns a copy of the indexed ids in ascending order.
func (ix *Index) IDs() []string {
	return append([]string(nil), ix.ids...)
}

func (ix *Index) Contains(id string) bool {
	_, ok := ix.pos[id]
	return ok
}

// Vector returns the normalised vector of id.
func (ix *Index) Vector(id string) (domain.FeatureVector, bool) {
	i, ok := ix.pos[id]
	if !ok {
		return nil, false
	}
	return ix.vecs[i], true
}
