// Package metrics holds the Prometheus collectors for the recommender.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommender_http_requests_total",
			Help: "Total HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommender_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	RecommendationsServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommender_recommendations_served_total",
			Help: "Recommendation lists returned, by source",
		},
		[]string{"source"}, // queue, personalized, cold_start, random_fallback
	)

	FeedbackRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommender_feedback_recorded_total",
			Help: "Feedback events persisted, by polarity",
		},
		[]string{"polarity"},
	)

	DegradedResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommender_degraded_total",
			Help: "Operations that fell back to a degraded path",
		},
		[]string{"operation"},
	)

	Fallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommender_random_fallbacks_total",
			Help: "Recommendations generated by random sampling, by reason",
		},
		[]string{"reason"},
	)

	Replenishments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommender_replenishments_total",
			Help: "Queue top-ups after feedback, by outcome",
		},
		[]string{"outcome"}, // ok, degraded
	)

	InvalidVectors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommender_invalid_vectors_total",
			Help: "Stored vectors rejected at read time, by reason",
		},
		[]string{"reason"}, // wrong_dimension, non_finite, zero_vector, unnormalizable
	)

	RankDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommender_rank_duration_seconds",
			Help:    "Time spent scoring the candidate index",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	IndexSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recommender_index_items",
			Help: "Number of items in the in-memory ranking index",
		},
	)

	StoreOps = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommender_store_operation_duration_seconds",
			Help:    "Latency of storage collaborator calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"store", "operation"},
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommender_store_errors_total",
			Help: "Failed storage collaborator calls",
		},
		[]string{"store", "operation"},
	)

	// 0=closed, 1=half-open, 2=open
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "recommender_circuit_breaker_state",
			Help: "Circuit breaker state per dependency",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommender_circuit_breaker_requests_total",
			Help: "Requests through a circuit breaker, by result",
		},
		[]string{"name", "result"}, // success, failure, rejected
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommender_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	BatchUsersProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommender_batch_users_total",
			Help: "Users processed by batch recommendation, by status",
		},
		[]string{"status"},
	)
)

func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordStoreOp observes one collaborator call and counts it as an error when err is non-nil.
func RecordStoreOp(store, operation string, duration time.Duration, err error) {
	StoreOps.WithLabelValues(store, operation).Observe(duration.Seconds())
	if err != nil {
		StoreErrors.WithLabelValues(store, operation).Inc()
	}
}

func RecordDegraded(operation string) {
	DegradedResponses.WithLabelValues(operation).Inc()
}
