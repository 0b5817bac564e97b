// Package session runs the per-user recommendation queue: serving from it,
// refilling it from the ranker, and topping it up after feedback.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/actuallystonmai/recipe-recommender/internal/domain"
	"github.com/actuallystonmai/recipe-recommender/internal/logging"
	"github.com/actuallystonmai/recipe-recommender/internal/metrics"
	"github.com/actuallystonmai/recipe-recommender/internal/ranker"
)

type Options struct {
	DefaultK int
	MaxK     int
	// StoreTimeout bounds each feedback, queue and item store call.
	StoreTimeout time.Duration
	// LockWait bounds how long a request waits for the user lock.
	LockWait time.Duration
}

func DefaultOptions() Options {
	return Options{DefaultK: 10, MaxK: 50, StoreTimeout: 2 * time.Second, LockWait: 3 * time.Second}
}

// Deps are the collaborators of a Manager. Sampler and Locker are
// optional.
type Deps struct {
	Items       ItemStore
	Feedback    FeedbackStore
	Queue       QueueStore
	Preferences PreferenceSource
	Ranker      Ranker
	Sampler     *Sampler
	Locker      Locker
}

type Manager struct {
	items    ItemStore
	feedback FeedbackStore
	queue    QueueStore
	prefs    PreferenceSource
	ranker   Ranker
	sampler  *Sampler
	locker   Locker
	opts     Options
}

func NewManager(d Deps, opts Options) (*Manager, error) {
	if d.Items == nil || d.Feedback == nil || d.Queue == nil || d.Preferences == nil || d.Ranker == nil {
		return nil, errors.New("session: items, feedback, queue, preferences and ranker are required")
	}
	if d.Sampler == nil {
		d.Sampler = NewSampler(0)
	}
	if d.Locker == nil {
		d.Locker = NewKeyedMutex()
	}
	def := DefaultOptions()
	if opts.DefaultK <= 0 {
		opts.DefaultK = def.DefaultK
	}
	if opts.MaxK < opts.DefaultK {
		opts.MaxK = max(def.MaxK, opts.DefaultK)
	}
	return &Manager{
		items:    d.Items,
		feedback: d.Feedback,
		queue:    d.Queue,
		prefs:    d.Preferences,
		ranker:   d.Ranker,
		sampler:  d.Sampler,
		locker:   d.Locker,
		opts:     opts,
	}, nil
}

func (m *Manager) clampK(k int) int {
	if k <= 0 {
		return m.opts.DefaultK
	}
	return min(k, m.opts.MaxK)
}

func (m *Manager) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.opts.StoreTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, m.opts.StoreTimeout)
}

// lockUser never fails: if the lock cannot be taken in time the caller
// proceeds unlocked.
func (m *Manager) lockUser(ctx context.Context, userID string) func() {
	lctx := ctx
	if m.opts.LockWait > 0 {
		var cancel context.CancelFunc
		lctx, cancel = context.WithTimeout(ctx, m.opts.LockWait)
		defer cancel()
	}
	unlock, err := m.locker.Lock(lctx, userID)
	if err != nil {
		logging.Warn().Err(err).Str("user_id", userID).Msg("user lock unavailable, continuing unlocked")
		metrics.RecordDegraded("lock")
		return func() {}
	}
	return unlock
}

// GenerateOrServe returns up to k ids from the front of the user's queue,
// generating and persisting a new queue when it is empty. Store or ranking
// failures degrade to random sampling; only an abandoned ctx is an error.
func (m *Manager) GenerateOrServe(ctx context.Context, userID string, k int) (domain.RecommendationResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.RecommendationResult{}, err
	}
	k = m.clampK(k)
	unlock := m.lockUser(ctx, userID)
	defer unlock()

	sctx, cancel := m.storeCtx(ctx)
	queue, err := m.queue.GetQueue(sctx, userID)
	cancel()
	degraded := false
	if err != nil {
		logging.Error().Err(err).Str("user_id", userID).Msg("read recommendation queue")
		degraded = true
		queue = nil
	}

	if len(queue) > 0 {
		ids := slices.Clone(queue[:min(k, len(queue))])
		logging.Debug().Str("user_id", userID).Int("queued", len(queue)).Int("served", len(ids)).Msg("serving from queue")
		metrics.RecommendationsServed.WithLabelValues(string(domain.SourceQueue)).Add(float64(len(ids)))
		return domain.RecommendationResult{RecipeIDs: ids, Source: domain.SourceQueue}, nil
	}
	return m.fill(ctx, userID, k, degraded), nil
}

// Refresh discards the live queue and generates a new one. Discarded ids
// stay in the history and are not recommended again.
func (m *Manager) Refresh(ctx context.Context, userID string, k int) (domain.RecommendationResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.RecommendationResult{}, err
	}
	k = m.clampK(k)
	unlock := m.lockUser(ctx, userID)
	defer unlock()

	degraded := false
	sctx, cancel := m.storeCtx(ctx)
	err := m.queue.ClearQueue(sctx, userID)
	cancel()
	if err != nil {
		logging.Error().Err(err).Str("user_id", userID).Msg("clear recommendation queue")
		degraded = true
	}
	return m.fill(ctx, userID, k, degraded), nil
}

func (m *Manager) fill(ctx context.Context, userID string, k int, degraded bool) domain.RecommendationResult {
	gen := m.generate(ctx, userID, nil, k)
	degraded = degraded || gen.degraded

	if len(gen.ids) > 0 {
		sctx, cancel := m.storeCtx(ctx)
		_, err := m.queue.UpdateQueue(sctx, userID, func(queue []string) []string {
			return appendMissing(queue, gen.ids...)
		})
		cancel()
		if err != nil {
			logging.Error().Err(err).Str("user_id", userID).Msg("save recommendation queue")
			degraded = true
		}
	}
	if degraded {
		metrics.RecordDegraded("generate_or_serve")
	}
	metrics.RecommendationsServed.WithLabelValues(string(gen.source)).Add(float64(len(gen.ids)))
	return domain.RecommendationResult{RecipeIDs: gen.ids, Source: gen.source, Degraded: degraded}
}

// RecordFeedbackAndReplenish stores the feedback, takes the item off the
// queue and appends one replacement. The returned error is non-nil only
// when the feedback itself was not stored; replenishment problems are
// reported on the result.
func (m *Manager) RecordFeedbackAndReplenish(ctx context.Context, userID, itemID string, polarity domain.Polarity) (domain.FeedbackResult, error) {
	if polarity != domain.Like && polarity != domain.Dislike {
		return domain.FeedbackResult{}, fmt.Errorf("%w: %q", domain.ErrInvalidPolarity, polarity)
	}

	sctx, cancel := m.storeCtx(ctx)
	exists, err := m.items.ItemExists(sctx, itemID)
	cancel()
	if err != nil {
		return domain.FeedbackResult{}, fmt.Errorf("check recipe %s: %w", itemID, err)
	}
	if !exists {
		return domain.FeedbackResult{}, fmt.Errorf("%w: %s", domain.ErrItemNotFound, itemID)
	}

	unlock := m.lockUser(ctx, userID)
	defer unlock()

	sctx, cancel = m.storeCtx(ctx)
	err = m.feedback.SaveFeedback(sctx, domain.Feedback{
		UserID:    userID,
		RecipeID:  itemID,
		Polarity:  polarity,
		CreatedAt: time.Now().UTC(),
	})
	cancel()
	if err != nil {
		return domain.FeedbackResult{}, fmt.Errorf("save feedback: %w", err)
	}
	metrics.FeedbackRecorded.WithLabelValues(string(polarity)).Inc()

	res := domain.FeedbackResult{UserID: userID, RecipeID: itemID, Polarity: polarity}
	var problems []error

	sctx, cancel = m.storeCtx(ctx)
	queue, err := m.queue.GetQueue(sctx, userID)
	cancel()
	if err != nil {
		problems = append(problems, fmt.Errorf("read queue: %w", err))
		sctx, cancel = m.storeCtx(ctx)
		if err := m.queue.RemoveFromQueue(sctx, userID, itemID); err != nil {
			problems = append(problems, fmt.Errorf("remove from queue: %w", err))
		}
		cancel()
		return m.finishFeedback(res, problems), nil
	}
	queue = slices.DeleteFunc(queue, func(id string) bool { return id == itemID })

	gen := m.generate(ctx, userID, queue, 1)
	res.Source = gen.source
	if gen.degraded {
		problems = append(problems, errors.New("replacement generated by fallback"))
	}
	var replacement []string
	if len(gen.ids) > 0 {
		res.ReplacementID = gen.ids[0]
		replacement = gen.ids[:1]
	}

	// the queue may have changed since it was read; edit the stored one
	sctx, cancel = m.storeCtx(ctx)
	_, err = m.queue.UpdateQueue(sctx, userID, func(current []string) []string {
		next := slices.DeleteFunc(slices.Clone(current), func(id string) bool { return id == itemID })
		return appendMissing(next, replacement...)
	})
	cancel()
	if err != nil {
		problems = append(problems, fmt.Errorf("update queue: %w", err))
	}

	return m.finishFeedback(res, problems), nil
}

// appendMissing appends the ids not already in queue.
func appendMissing(queue []string, ids ...string) []string {
	for _, id := range ids {
		if !slices.Contains(queue, id) {
			queue = append(queue, id)
		}
	}
	return queue
}

func (m *Manager) finishFeedback(res domain.FeedbackResult, problems []error) domain.FeedbackResult {
	if len(problems) == 0 {
		metrics.Replenishments.WithLabelValues("ok").Inc()
		return res
	}
	err := errors.Join(problems...)
	logging.Warn().Err(err).Str("user_id", res.UserID).Str("recipe_id", res.RecipeID).Msg("feedback stored, replenishment degraded")
	metrics.RecordDegraded("replenish")
	metrics.Replenishments.WithLabelValues("degraded").Inc()
	res.ReplenishDegraded = true
	res.ReplenishError = err.Error()
	return res
}

// Similar ranks the corpus against a single recipe, excluding it.
func (m *Manager) Similar(ctx context.Context, itemID string, k int) ([]ranker.Scored, error) {
	k = m.clampK(k)
	pref, err := m.prefs.Aggregate(ctx, []string{itemID}, nil)
	if err != nil {
		return nil, fmt.Errorf("similar to %s: %w", itemID, err)
	}
	if pref == nil {
		return []ranker.Scored{}, nil
	}
	return m.ranker.Rank(ctx, pref, map[string]struct{}{itemID: {}}, k)
}

type generated struct {
	ids      []string
	source   domain.RecommendationSource
	degraded bool
}

// generate picks k new ids for userID. queued ids are never picked, nor is
// anything the user gave feedback on or was recommended before.
func (m *Manager) generate(ctx context.Context, userID string, queued []string, k int) generated {
	hard := make(map[string]struct{}, len(queued))
	for _, id := range queued {
		hard[id] = struct{}{}
	}
	degraded := false

	sctx, cancel := m.storeCtx(ctx)
	history, err := m.queue.History(sctx, userID)
	cancel()
	if err != nil {
		logging.Warn().Err(err).Str("user_id", userID).Msg("read recommendation history")
		degraded = true
	}

	sctx, cancel = m.storeCtx(ctx)
	fb, err := m.feedback.GetFeedback(sctx, userID)
	cancel()
	if err != nil {
		logging.Error().Err(err).Str("user_id", userID).Msg("read feedback")
		return m.fallback(ctx, userID, hard, history, k, "feedback_unavailable", domain.SourceFallback, true)
	}
	for _, id := range fb.Liked {
		hard[id] = struct{}{}
	}
	for _, id := range fb.Disliked {
		hard[id] = struct{}{}
	}

	if fb.Empty() {
		return m.fallback(ctx, userID, hard, history, k, "cold_start", domain.SourceColdStart, degraded)
	}

	pref, err := m.prefs.Aggregate(ctx, fb.Liked, fb.Disliked)
	if err != nil {
		logging.Error().Err(err).Str("user_id", userID).Msg("aggregate preference")
		return m.fallback(ctx, userID, hard, history, k, "preference_error", domain.SourceFallback, true)
	}
	if pref == nil {
		return m.fallback(ctx, userID, hard, history, k, "no_usable_vectors", domain.SourceFallback, degraded)
	}

	exclude := union(hard, history)
	scored, err := m.ranker.Rank(ctx, pref, exclude, k)
	if err != nil {
		logging.Error().Err(err).Str("user_id", userID).Msg("rank recipes")
		return m.fallback(ctx, userID, hard, history, k, "rank_error", domain.SourceFallback, true)
	}
	if len(scored) == 0 {
		return m.fallback(ctx, userID, hard, history, k, "rank_empty", domain.SourceFallback, degraded)
	}
	return generated{ids: ranker.IDs(scored), source: domain.SourcePersonalized, degraded: degraded}
}

// fallback samples uniformly from rankable ids, or from every known item
// when the index is empty. History is dropped from the exclusion set when
// it would otherwise leave nothing to serve.
func (m *Manager) fallback(ctx context.Context, userID string, hard map[string]struct{}, history []string, k int, reason string, source domain.RecommendationSource, degraded bool) generated {
	pool := m.ranker.Candidates()
	if len(pool) == 0 {
		sctx, cancel := m.storeCtx(ctx)
		ids, err := m.items.AllItemIDs(sctx)
		cancel()
		if err != nil {
			logging.Error().Err(err).Str("user_id", userID).Msg("list recipe ids for fallback")
			degraded = true
		}
		pool = slices.Clone(ids)
		slices.Sort(pool)
	}

	ids := m.sampler.Sample(pool, union(hard, history), k)
	if len(ids) == 0 && len(history) > 0 {
		ids = m.sampler.Sample(pool, hard, k)
	}
	metrics.Fallbacks.WithLabelValues(reason).Inc()
	logging.Info().Str("user_id", userID).Str("reason", reason).Int("count", len(ids)).Msg("serving random recommendations")
	return generated{ids: ids, source: source, degraded: degraded}
}

func union(set map[string]struct{}, extra []string) map[string]struct{} {
	out := make(map[string]struct{}, len(set)+len(extra))
	for id := range set {
		out[id] = struct{}{}
	}
	for _, id := range extra {
		out[id] = struct{}{}
	}
	return out
}
