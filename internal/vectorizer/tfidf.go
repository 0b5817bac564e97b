package vectorizer

import (
	"math"
	"sort"
	"strings"

	"github.com/actuallystonmai/recipe-recommender/internal/domain"
)

// Channel names. Each channel is weighted and normalised on its own so a
// long field cannot drown out a short one.
const (
	ChannelTitle        = "title"
	ChannelIngredients  = "ingredients"
	ChannelInstructions = "instructions"
	ChannelDescription  = "description"
	ChannelTaxonomy     = "taxonomy"
	ChannelKeywords     = "keywords"
)

var channelOrder = []string{
	ChannelTitle,
	ChannelIngredients,
	ChannelInstructions,
	ChannelDescription,
	ChannelTaxonomy,
	ChannelKeywords,
}

var defaultChannelWeights = map[string]float64{
	ChannelTitle:        1.0,
	ChannelIngredients:  1.0,
	ChannelInstructions: 0.5,
	ChannelDescription:  0.75,
	ChannelTaxonomy:     1.0,
	ChannelKeywords:     0.75,
}

func channelText(name string, r *domain.Recipe) string {
	switch name {
	case ChannelTitle:
		return r.Title
	case ChannelIngredients:
		return strings.Join(r.Ingredients, " ")
	case ChannelInstructions:
		return strings.Join(r.Instructions, " ")
	case ChannelDescription:
		return r.Description
	case ChannelTaxonomy:
		return strings.Join([]string{r.Category, r.Cuisine, durationToken(r.TotalTime)}, " ")
	case ChannelKeywords:
		parts := make([]string, 0, len(r.Keywords)+len(r.DietaryRestrictions))
		parts = append(parts, r.Keywords...)
		parts = append(parts, r.DietaryRestrictions...)
		return strings.Join(parts, " ")
	}
	return ""
}

func knownChannel(name string) bool {
	_, ok := defaultChannelWeights[name]
	return ok
}

// ChannelModel is the fitted term-weighting transform of one channel.
type ChannelModel struct {
	Name       string         `json:"name"`
	Weight     float64        `json:"weight"`
	Offset     int            `json:"offset"`
	Vocabulary map[string]int `json:"vocabulary"`
	IDF        []float64      `json:"idf"`
}

// sparseRow holds ascending column indexes and their values.
type sparseRow struct {
	idx []int
	val []float64
}

func (r sparseRow) empty() bool { return len(r.idx) == 0 }

func (r sparseRow) sqNorm() float64 {
	var s float64
	for _, v := range r.val {
		s += v * v
	}
	return s
}

// fitChannel learns the vocabulary and idf of one channel. docs holds the
// analysed terms of every document in the corpus, empty documents included.
func fitChannel(name string, weight float64, docs [][]string, opts Options) ChannelModel {
	n := len(docs)
	df := make(map[string]int)
	tf := make(map[string]int)
	for _, terms := range docs {
		seen := make(map[string]struct{}, len(terms))
		for _, t := range terms {
			tf[t]++
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			df[t]++
		}
	}

	maxDocs := opts.MaxDFRatio * float64(n)
	kept := make([]string, 0, len(df))
	for t, c := range df {
		if c < opts.MinDF || float64(c) > maxDocs {
			continue
		}
		kept = append(kept, t)
	}

	if opts.MaxFeatures > 0 && len(kept) > opts.MaxFeatures {
		sort.Slice(kept, func(i, j int) bool {
			if tf[kept[i]] != tf[kept[j]] {
				return tf[kept[i]] > tf[kept[j]]
			}
			return kept[i] < kept[j]
		})
		kept = kept[:opts.MaxFeatures]
	}
	sort.Strings(kept)

	cm := ChannelModel{
		Name:       name,
		Weight:     weight,
		Vocabulary: make(map[string]int, len(kept)),
		IDF:        make([]float64, len(kept)),
	}
	for i, t := range kept {
		cm.Vocabulary[t] = i
		cm.IDF[i] = math.Log(float64(1+n)/float64(1+df[t])) + 1
	}
	return cm
}

// transform maps analysed terms to the weighted, L2-normalised tf-idf row
// of this channel, shifted by the channel offset.
func (c *ChannelModel) transform(terms []string) sparseRow {
	if len(terms) == 0 || len(c.Vocabulary) == 0 {
		return sparseRow{}
	}
	counts := make(map[int]float64)
	for _, t := range terms {
		if i, ok := c.Vocabulary[t]; ok {
			counts[i]++
		}
	}
	if len(counts) == 0 {
		return sparseRow{}
	}

	row := sparseRow{
		idx: make([]int, 0, len(counts)),
		val: make([]float64, 0, len(counts)),
	}
	for i := range counts {
		row.idx = append(row.idx, i)
	}
	sort.Ints(row.idx)

	var sq float64
	for _, i := range row.idx {
		v := counts[i] * c.IDF[i]
		row.val = append(row.val, v)
		sq += v * v
	}
	scale := c.Weight / math.Sqrt(sq)
	for k := range row.val {
		row.val[k] *= scale
		row.idx[k] += c.Offset
	}
	return row
}

// concatRows joins per-channel rows; channel offsets keep indexes ascending.
func concatRows(rows []sparseRow) sparseRow {
	var out sparseRow
	for _, r := range rows {
		out.idx = append(out.idx, r.idx...)
		out.val = append(out.val, r.val...)
	}
	return out
}
