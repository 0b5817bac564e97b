// Package vectorizer fits the corpus-wide text transform (per-channel
// tf-idf followed by PCA) and turns recipes into fixed-length vectors.
package vectorizer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"

	"github.com/actuallystonmai/recipe-recommender/internal/domain"
	"github.com/actuallystonmai/recipe-recommender/internal/logging"
)

type Options struct {
	Dimension       int
	MinDF           int
	MaxDFRatio      float64
	MaxFeatures     int
	PowerIterations int
	Seed            uint64
	ChannelWeights  map[string]float64
}

func DefaultOptions() Options {
	return Options{
		Dimension:       256,
		MinDF:           2,
		MaxDFRatio:      0.95,
		MaxFeatures:     10000,
		PowerIterations: 7,
		Seed:            42,
	}
}

func (o Options) weight(channel string) float64 {
	if w, ok := o.ChannelWeights[channel]; ok {
		return w
	}
	return defaultChannelWeights[channel]
}

func (o Options) validate() error {
	if o.Dimension <= 0 {
		return fmt.Errorf("dimension must be positive, got %d", o.Dimension)
	}
	if o.MinDF < 1 {
		return fmt.Errorf("min df must be >= 1, got %d", o.MinDF)
	}
	if o.MaxDFRatio <= 0 || o.MaxDFRatio > 1 {
		return fmt.Errorf("max df ratio must be in (0, 1], got %v", o.MaxDFRatio)
	}
	for name, w := range o.ChannelWeights {
		if !knownChannel(name) {
			return fmt.Errorf("unknown channel %q", name)
		}
		if w < 0 {
			return fmt.Errorf("channel %q weight must not be negative", name)
		}
	}
	return nil
}

// Build fits a Model over the whole corpus and returns it together with
// the vector of every recipe that has one. Recipes whose text is empty
// after cleaning are absent from the map.
//
// Duplicate ids and inconsistent vector lengths are fatal.
func Build(ctx context.Context, corpus []domain.Recipe, opts Options) (*Model, map[string]domain.FeatureVector, error) {
	if err := opts.validate(); err != nil {
		return nil, nil, fmt.Errorf("vectorizer options: %w", err)
	}
	if len(corpus) == 0 {
		return nil, nil, domain.ErrEmptyCorpus
	}

	seen := make(map[string]struct{}, len(corpus))
	for _, r := range corpus {
		if r.ID == "" {
			return nil, nil, fmt.Errorf("%w: empty id", domain.ErrDuplicateItem)
		}
		if _, dup := seen[r.ID]; dup {
			return nil, nil, fmt.Errorf("%w: %s", domain.ErrDuplicateItem, r.ID)
		}
		seen[r.ID] = struct{}{}
	}

	// terms[c][i] are the analysed terms of document i in channel c
	terms := make([][][]string, len(channelOrder))
	for c := range terms {
		terms[c] = make([][]string, 0, len(corpus))
	}
	docs := make([]*domain.Recipe, 0, len(corpus))
	for i := range corpus {
		r := &corpus[i]
		perChannel := make([][]string, len(channelOrder))
		total := 0
		for c, name := range channelOrder {
			perChannel[c] = analyze(channelText(name, r))
			total += len(perChannel[c])
		}
		if total == 0 {
			logging.Warn().Str("item_id", r.ID).Str("reason", "empty_document").Msg("recipe has no text, skipping vector")
			continue
		}
		docs = append(docs, r)
		for c := range channelOrder {
			terms[c] = append(terms[c], perChannel[c])
		}
	}
	if len(docs) == 0 {
		return nil, nil, fmt.Errorf("%w: no recipe has usable text", domain.ErrEmptyCorpus)
	}

	model := &Model{
		FormatVersion: FormatVersion,
		Version:       modelVersion(docs, opts),
		Dimension:     opts.Dimension,
		NumDocuments:  len(docs),
		FittedAt:      time.Now().UTC(),
	}
	offset := 0
	for c, name := range channelOrder {
		cm := fitChannel(name, opts.weight(name), terms[c], opts)
		cm.Offset = offset
		offset += len(cm.IDF)
		model.Channels = append(model.Channels, cm)
	}
	model.NumFeatures = offset
	if offset == 0 {
		return nil, nil, fmt.Errorf("%w: no terms survived document frequency pruning", domain.ErrEmptyCorpus)
	}

	rows := make([]sparseRow, 0, len(docs))
	rowDocs := make([]*domain.Recipe, 0, len(docs))
	for i, r := range docs {
		parts := make([]sparseRow, len(model.Channels))
		for c := range model.Channels {
			parts[c] = model.Channels[c].transform(terms[c][i])
		}
		row := concatRows(parts)
		if row.empty() {
			logging.Warn().Str("item_id", r.ID).Str("reason", "no_vocabulary_terms").Msg("recipe has no retained terms, skipping vector")
			continue
		}
		rows = append(rows, row)
		rowDocs = append(rowDocs, r)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("%w: no recipe kept any vocabulary term", domain.ErrEmptyCorpus)
	}

	k := min(opts.Dimension, len(rows), model.NumFeatures)
	fit, err := fitPCA(ctx, rows, model.NumFeatures, k, opts.PowerIterations, opts.Seed)
	if err != nil {
		return nil, nil, fmt.Errorf("fit pca: %w", err)
	}
	model.Mean = fit.mean
	model.Components = fit.components
	model.ExplainedVarianceRatio = fit.varRatio
	model.MeanProjection = make([]float64, len(fit.components))
	for j, comp := range fit.components {
		model.MeanProjection[j] = floats.Dot(fit.mean, comp)
	}

	vectors := make(map[string]domain.FeatureVector, len(rows))
	for i, row := range rows {
		vec, ok := model.project(row)
		if len(vec) != model.Dimension {
			return nil, nil, fmt.Errorf("%w: %s has %d values, want %d", domain.ErrDimensionMismatch, rowDocs[i].ID, len(vec), model.Dimension)
		}
		if !ok {
			logging.Warn().Str("item_id", rowDocs[i].ID).Str("reason", domain.RejectZero).Msg("recipe projects to the zero vector, skipping")
			continue
		}
		vectors[rowDocs[i].ID] = vec
	}

	logging.Info().
		Int("documents", len(docs)).
		Int("features", model.NumFeatures).
		Int("dimension", model.Dimension).
		Int("vectors", len(vectors)).
		Float64("explained_variance", model.ExplainedVariance()).
		Msg("vectorizer fitted")

	return model, vectors, nil
}

// modelVersion names a fit by its inputs: the same documents and options
// always yield the same version.
func modelVersion(docs []*domain.Recipe, opts Options) string {
	ids := make([]string, len(docs))
	for i, r := range docs {
		ids[i] = r.ID
	}
	sort.Strings(ids)
	name := fmt.Sprintf("%s|%+v", strings.Join(ids, ","), opts)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}
