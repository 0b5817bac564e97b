package vectorstore

import (
	"context"
	"sync"

	"github.com/actuallystonmai/recipe-recommender/internal/domain"
)

// MemorySource is an in-process Source used by tests and by the
// vectorizer dry run.
type MemorySource struct {
	mu      sync.RWMutex
	vectors map[string]domain.FeatureVector
}

func NewMemorySource(vectors map[string]domain.FeatureVector) *MemorySource {
	m := &MemorySource{vectors: make(map[string]domain.FeatureVector, len(vectors))}
	for id, v := range vectors {
		m.vectors[id] = v
	}
	return m
}

func (m *MemorySource) SaveVector(_ context.Context, id string, v domain.FeatureVector) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors[id] = v
	return nil
}

func (m *MemorySource) GetVector(ctx context.Context, id string) (domain.FeatureVector, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vectors[id]
	return v, ok, nil
}

func (m *MemorySource) GetVectors(ctx context.Context, ids []string) (map[string]domain.FeatureVector, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]domain.FeatureVector, len(ids))
	for _, id := range ids {
		if v, ok := m.vectors[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func (m *MemorySource) AllVectors(ctx context.Context) (map[string]domain.FeatureVector, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]domain.FeatureVector, len(m.vectors))
	for id, v := range m.vectors {
		out[id] = v
	}
	return out, nil
}
