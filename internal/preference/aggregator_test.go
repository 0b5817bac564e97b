package preference

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/actuallystonmai/recipe-recommender/internal/domain"
)

type mapGetter map[string]domain.FeatureVector

func (m mapGetter) GetMany(_ context.Context, ids []string) (map[string]domain.FeatureVector, error) {
	out := make(map[string]domain.FeatureVector)
	for _, id := range ids {
		if v, ok := m[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

type errGetter struct{ err error }

func (e errGetter) GetMany(context.Context, []string) (map[string]domain.FeatureVector, error) {
	return nil, e.err
}

func newAgg(t *testing.T, g VectorGetter) *Aggregator {
	t.Helper()
	a, err := NewAggregator(g, 1.0, -0.5)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestAggregateUnitNorm(t *testing.T) {
	g := mapGetter{
		"a": {3, 0, 0},
		"b": {0, 4, 0},
		"c": {1, 1, 1},
		"d": {-2, 0, 5},
	}
	tests := []struct {
		name     string
		liked    []string
		disliked []string
	}{
		{"single like", []string{"a"}, nil},
		{"several likes", []string{"a", "b", "c"}, nil},
		{"likes and dislikes", []string{"a", "b"}, []string{"d"}},
		{"dislikes only", nil, []string{"c", "d"}},
		{"with unknown ids", []string{"a", "missing"}, []string{"gone"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pref, err := newAgg(t, g).Aggregate(context.Background(), tt.liked, tt.disliked)
			if err != nil {
				t.Fatalf("Aggregate() error = %v", err)
			}
			if pref == nil {
				t.Fatal("Aggregate() = nil, want vector")
			}
			if n := pref.Norm(); math.Abs(n-1) > 1e-12 {
				t.Errorf("norm = %v, want 1", n)
			}
		})
	}
}

func TestAggregateSingleLikeIsDirection(t *testing.T) {
	g := mapGetter{"1": {1, 0}, "2": {0, 1}}
	pref, err := newAgg(t, g).Aggregate(context.Background(), []string{"1"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if pref[0] != 1 || pref[1] != 0 {
		t.Errorf("pref = %v, want [1 0]", pref)
	}
}

func TestAggregateDislikePushesAway(t *testing.T) {
	g := mapGetter{"like": {1, 0}, "dislike": {0, 1}}
	pref, err := newAgg(t, g).Aggregate(context.Background(), []string{"like"}, []string{"dislike"})
	if err != nil {
		t.Fatal(err)
	}
	// 1.0*[1,0] - 0.5*[0,1] normalised
	want := []float64{1 / math.Sqrt(1.25), -0.5 / math.Sqrt(1.25)}
	for i := range want {
		if math.Abs(pref[i]-want[i]) > 1e-12 {
			t.Fatalf("pref = %v, want %v", pref, want)
		}
	}
}

func TestAggregateNone(t *testing.T) {
	g := mapGetter{"a": {1, 0}, "zeroSum": {2, 0}}

	pref, err := newAgg(t, g).Aggregate(context.Background(), nil, nil)
	if err != nil || pref != nil {
		t.Errorf("no feedback: got %v, %v; want nil, nil", pref, err)
	}

	pref, err = newAgg(t, g).Aggregate(context.Background(), []string{"unknown"}, []string{"other"})
	if err != nil || pref != nil {
		t.Errorf("no vectors: got %v, %v; want nil, nil", pref, err)
	}

	// 1.0*[1,0] + (-0.5)*[2,0] cancels exactly
	pref, err = newAgg(t, g).Aggregate(context.Background(), []string{"a"}, []string{"zeroSum"})
	if err != nil || pref != nil {
		t.Errorf("cancelling feedback: got %v, %v; want nil, nil", pref, err)
	}
}

func TestAggregateDeterministic(t *testing.T) {
	g := mapGetter{"a": {0.1, 0.2, 0.3}, "b": {0.7, 0.11, 0.13}, "c": {0.17, 0.19, 0.23}, "d": {0.29, 0.31, 0.37}}
	agg := newAgg(t, g)
	first, _ := agg.Aggregate(context.Background(), []string{"a", "b", "c"}, []string{"d"})
	for i := 0; i < 20; i++ {
		again, _ := agg.Aggregate(context.Background(), []string{"a", "b", "c"}, []string{"d"})
		for j := range first {
			if first[j] != again[j] {
				t.Fatalf("run %d differs at %d: %v vs %v", i, j, first[j], again[j])
			}
		}
	}
}

func TestAggregateDuplicateIdsCountOnce(t *testing.T) {
	g := mapGetter{"a": {1, 0}, "b": {0, 1}}
	pref, err := newAgg(t, g).Aggregate(context.Background(), []string{"a", "a", "a", "b"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(pref[0]-pref[1]) > 1e-12 {
		t.Errorf("pref = %v, want equal components", pref)
	}
}

func TestAggregateErrors(t *testing.T) {
	boom := errors.New("timeout")
	if _, err := newAgg(t, errGetter{boom}).Aggregate(context.Background(), []string{"a"}, nil); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}

	mixed := mapGetter{"a": {1, 0}, "b": {1, 0, 0}}
	if _, err := newAgg(t, mixed).Aggregate(context.Background(), []string{"a", "b"}, nil); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("err = %v, want ErrDimensionMismatch", err)
	}
}

func TestNewAggregatorRejectsWeights(t *testing.T) {
	if _, err := NewAggregator(mapGetter{}, 0, -0.5); err == nil {
		t.Error("zero like weight accepted")
	}
	if _, err := NewAggregator(mapGetter{}, 1, 0.5); err == nil {
		t.Error("positive dislike weight accepted")
	}
}
