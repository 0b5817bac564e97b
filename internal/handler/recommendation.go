package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/actuallystonmai/recipe-recommender/internal/domain"
	"github.com/actuallystonmai/recipe-recommender/internal/service"
)

// GET /users/{userID}/recommendations
func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if !h.validID(w, "user_id", userID) {
		return
	}
	limit, ok := h.limitParam(w, r)
	if !ok {
		return
	}

	result, err := h.service.GetRecommendations(r.Context(), userID, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newRecommendationResponse(result))
}

// POST /users/{userID}/recommendations/refresh
func (h *Handler) RefreshRecommendations(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if !h.validID(w, "user_id", userID) {
		return
	}
	limit, ok := h.limitParam(w, r)
	if !ok {
		return
	}

	result, err := h.service.Refresh(r.Context(), userID, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newRecommendationResponse(result))
}

// POST /users/{userID}/feedback
func (h *Handler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if !h.validID(w, "user_id", userID) {
		return
	}
	var req FeedbackRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	polarity, err := domain.ParsePolarity(req.Polarity)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out, err := h.service.SubmitFeedback(r.Context(), userID, req.RecipeID, polarity)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FeedbackResponse{
		UserID:            out.UserID,
		RecipeID:          out.RecipeID,
		Polarity:          string(out.Polarity),
		Replacement:       out.Replacement,
		ReplacementSource: string(out.Source),
		ReplenishDegraded: out.ReplenishDegraded,
		ReplenishError:    out.ReplenishError,
	})
}

// POST /users/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	out, err := h.service.Login(r.Context(), service.LoginInput{
		Email:    req.Email,
		Name:     req.Name,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := LoginResponse{User: out.User}
	if out.Recommendations != nil {
		recs := newRecommendationResponse(out.Recommendations)
		resp.Recommendations = &recs
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /users/{userID}/stats
func (h *Handler) GetUserStats(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if !h.validID(w, "user_id", userID) {
		return
	}
	stats, err := h.service.Stats(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
