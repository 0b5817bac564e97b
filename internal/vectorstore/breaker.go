package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/actuallystonmai/recipe-recommender/internal/domain"
	"github.com/actuallystonmai/recipe-recommender/internal/logging"
	"github.com/actuallystonmai/recipe-recommender/internal/metrics"
)

// BreakerSource guards a Source with a circuit breaker so a failing
// database turns into fast errors (and therefore fallbacks) instead of
// piling up slow requests.
type BreakerSource struct {
	src  Source
	cb   *gobreaker.CircuitBreaker[any]
	name string
}

type BreakerSettings struct {
	Name         string
	MinRequests  uint32
	FailureRatio float64
	OpenTimeout  time.Duration
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Name:         "vector-store",
		MinRequests:  10,
		FailureRatio: 0.6,
		OpenTimeout:  30 * time.Second,
	}
}

func NewBreakerSource(src Source, s BreakerSettings) *BreakerSource {
	metrics.CircuitBreakerState.WithLabelValues(s.Name).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= s.FailureRatio
		},
		// a caller giving up is not a store failure
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})
	return &BreakerSource{src: src, cb: cb, name: s.Name}
}

func (b *BreakerSource) execute(fn func() (any, error)) (any, error) {
	result, err := b.cb.Execute(fn)
	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
	}
	return result, err
}

type vectorResult struct {
	v  domain.FeatureVector
	ok bool
}

func (b *BreakerSource) GetVector(ctx context.Context, id string) (domain.FeatureVector, bool, error) {
	res, err := b.execute(func() (any, error) {
		v, ok, err := b.src.GetVector(ctx, id)
		return vectorResult{v: v, ok: ok}, err
	})
	if err != nil {
		return nil, false, err
	}
	r, ok := res.(vectorResult)
	if !ok {
		return nil, false, fmt.Errorf("circuit breaker: unexpected result type %T", res)
	}
	return r.v, r.ok, nil
}

func (b *BreakerSource) GetVectors(ctx context.Context, ids []string) (map[string]domain.FeatureVector, error) {
	return castMap(b.execute(func() (any, error) {
		return b.src.GetVectors(ctx, ids)
	}))
}

func (b *BreakerSource) AllVectors(ctx context.Context) (map[string]domain.FeatureVector, error) {
	return castMap(b.execute(func() (any, error) {
		return b.src.AllVectors(ctx)
	}))
}

// State reports the breaker state, for health output.
func (b *BreakerSource) State() string {
	return b.cb.State().String()
}

func castMap(res any, err error) (map[string]domain.FeatureVector, error) {
	if err != nil {
		return nil, err
	}
	m, ok := res.(map[string]domain.FeatureVector)
	if !ok {
		return nil, fmt.Errorf("circuit breaker: unexpected result type %T", res)
	}
	return m, nil
}

// 0=closed, 1=half-open, 2=open
func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
