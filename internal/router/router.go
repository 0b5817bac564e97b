package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/actuallystonmai/recipe-recommender/internal/handler"
	"github.com/actuallystonmai/recipe-recommender/internal/logging"
	"github.com/actuallystonmai/recipe-recommender/internal/metrics"
)

type Options struct {
	RequestTimeout time.Duration
	CORSOrigins    []string
	// RateLimitReqs per RateLimitWindow and client IP, on write endpoints.
	RateLimitReqs   int
	RateLimitWindow time.Duration
}

func Setup(h *handler.Handler, opts Options) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if opts.RequestTimeout > 0 {
			r.Use(middleware.Timeout(opts.RequestTimeout))
		}

		r.Get("/users/{userID}/recommendations", h.GetRecommendations)
		r.Get("/users/{userID}/stats", h.GetUserStats)
		r.Get("/recipes/{recipeID}", h.GetRecipe)
		r.Get("/recipes/{recipeID}/similar", h.GetSimilar)
		r.Get("/search", h.Search)
		r.Get("/recommendations/batch", h.GetBatchRecommendations)

		r.Group(func(r chi.Router) {
			if opts.RateLimitReqs > 0 {
				r.Use(httprate.LimitByIP(opts.RateLimitReqs, opts.RateLimitWindow))
			}
			r.Post("/users/login", h.Login)
			r.Post("/users/{userID}/feedback", h.SubmitFeedback)
			r.Post("/users/{userID}/recommendations/refresh", h.RefreshRecommendations)
		})
	})

	return r
}

// requestLogger logs each request through zerolog and records it in the
// HTTP metrics under its route pattern.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		elapsed := time.Since(start)
		metrics.RecordHTTPRequest(r.Method, route, status, elapsed)

		ev := logging.Info()
		if status >= http.StatusInternalServerError {
			ev = logging.Warn()
		}
		ev.Str("method", r.Method).
			Str("route", route).
			Int("status", status).
			Dur("duration", elapsed).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}
