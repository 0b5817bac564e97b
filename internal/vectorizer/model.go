package vectorizer

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"github.com/actuallystonmai/recipe-recommender/internal/domain"
)

// FormatVersion is bumped whenever the artifact layout changes.
const FormatVersion = 1

// Model is the fitted text-to-vector transform. It is immutable once
// built; every vector in one corpus epoch must come from the same Model.
type Model struct {
	FormatVersion          int            `json:"format_version"`
	Version                string         `json:"version"`
	Dimension              int            `json:"dimension"`
	NumFeatures            int            `json:"num_features"`
	NumDocuments           int            `json:"num_documents"`
	FittedAt               time.Time      `json:"fitted_at"`
	Channels               []ChannelModel `json:"channels"`
	Mean                   []float64      `json:"mean"`
	MeanProjection         []float64      `json:"mean_projection"`
	Components             [][]float64    `json:"components"`
	ExplainedVarianceRatio []float64      `json:"explained_variance_ratio"`
}

// Vectorize maps r through the fitted transform. It reports false when r
// yields no in-vocabulary terms, in which case r has no vector.
func (m *Model) Vectorize(r domain.Recipe) (domain.FeatureVector, bool) {
	row := m.row(&r)
	if row.empty() {
		return nil, false
	}
	return m.project(row)
}

func (m *Model) row(r *domain.Recipe) sparseRow {
	parts := make([]sparseRow, len(m.Channels))
	for i := range m.Channels {
		parts[i] = m.Channels[i].transform(analyze(channelText(m.Channels[i].Name, r)))
	}
	return concatRows(parts)
}

func (m *Model) project(row sparseRow) (domain.FeatureVector, bool) {
	out := make(domain.FeatureVector, m.Dimension)
	nonZero := false
	for j, comp := range m.Components {
		var s float64
		for p, t := range row.idx {
			s += row.val[p] * comp[t]
		}
		out[j] = s - m.MeanProjection[j]
		if out[j] != 0 {
			nonZero = true
		}
	}
	return out, nonZero
}

// ExplainedVariance sums the variance ratio kept by the components.
func (m *Model) ExplainedVariance() float64 {
	var s float64
	for _, v := range m.ExplainedVarianceRatio {
		s += v
	}
	return s
}

func (m *Model) validate() error {
	if m.FormatVersion != FormatVersion {
		return fmt.Errorf("unsupported model format %d", m.FormatVersion)
	}
	if m.Dimension <= 0 || len(m.Components) > m.Dimension {
		return fmt.Errorf("%w: %d components for dimension %d", domain.ErrDimensionMismatch, len(m.Components), m.Dimension)
	}
	if len(m.MeanProjection) != len(m.Components) || len(m.Mean) != m.NumFeatures {
		return fmt.Errorf("%w: mean sizes do not match components", domain.ErrDimensionMismatch)
	}
	for i, c := range m.Components {
		if len(c) != m.NumFeatures {
			return fmt.Errorf("%w: component %d has %d features, want %d", domain.ErrDimensionMismatch, i, len(c), m.NumFeatures)
		}
	}
	width := 0
	for _, ch := range m.Channels {
		if !knownChannel(ch.Name) {
			return fmt.Errorf("unknown channel %q", ch.Name)
		}
		if ch.Offset != width || len(ch.IDF) != len(ch.Vocabulary) {
			return fmt.Errorf("channel %q layout is inconsistent", ch.Name)
		}
		for term, i := range ch.Vocabulary {
			if i < 0 || i >= len(ch.IDF) {
				return fmt.Errorf("channel %q term %q index %d out of range", ch.Name, term, i)
			}
		}
		width += len(ch.IDF)
	}
	if width != m.NumFeatures {
		return fmt.Errorf("channels cover %d features, want %d", width, m.NumFeatures)
	}
	return nil
}

// Save writes the model atomically to path as JSON.
func (m *Model) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write model: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename model: %w", err)
	}
	return nil
}

// Load reads a model saved by Save. A missing file yields ErrModelNotFitted.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrModelNotFitted, path)
		}
		return nil, fmt.Errorf("read model: %w", err)
	}
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("invalid model %s: %w", path, err)
	}
	return &m, nil
}
