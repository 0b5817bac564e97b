package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

const maxSearchSize = 100

// GET /recipes/{recipeID}
func (h *Handler) GetRecipe(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "recipeID")
	if !h.validID(w, "recipe_id", id) {
		return
	}
	rc, err := h.service.GetRecipe(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rc)
}

// GET /recipes/{recipeID}/similar
func (h *Handler) GetSimilar(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "recipeID")
	if !h.validID(w, "recipe_id", id) {
		return
	}
	limit, ok := h.limitParam(w, r)
	if !ok {
		return
	}
	scored, err := h.service.Similar(r.Context(), id, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	items := make([]SimilarItem, len(scored))
	for i, s := range scored {
		items[i] = SimilarItem{Recipe: s.Recipe, Score: s.Score}
	}
	writeJSON(w, http.StatusOK, SimilarResponse{RecipeID: id, Similar: items})
}

// GET /search?q=&page=&size=
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if err := h.validate.Var(q, "required,max=200"); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameter", "Invalid q parameter")
		return
	}
	page, ok := intParam(w, r, "page", 1, 1, 10000)
	if !ok {
		return
	}
	size, ok := intParam(w, r, "size", 20, 1, maxSearchSize)
	if !ok {
		return
	}

	res, err := h.service.Search(r.Context(), q, page, size)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{
		Query:   q,
		Results: res.Recipes,
		Pagination: Pagination{
			Page:        res.Page.Page,
			Size:        res.Page.Size,
			TotalHits:   res.Page.TotalHits,
			TotalPages:  res.Page.TotalPages,
			HasNext:     res.Page.HasNext,
			HasPrevious: res.Page.HasPrevious,
		},
	})
}
