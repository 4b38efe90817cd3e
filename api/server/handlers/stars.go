package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/exoplanet-explorer/backend/api/services"
)

type Stars struct {
	curves *services.LightcurveService
}

func NewStars(curves *services.LightcurveService) *Stars {
	return &Stars{curves: curves}
}

// Search handles GET /api/v1/stars/search?query=...&mission=...
func (h *Stars) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		respondError(w, http.StatusBadRequest, "query parameter is required")
		return
	}
	mission := r.URL.Query().Get("mission")

	stars := h.curves.SearchTargets(r.Context(), query, mission)
	respondJSON(w, http.StatusOK, map[string]any{
		"query": query,
		"stars": stars,
		"total": len(stars),
	})
}

// Get handles GET /api/v1/stars/{id}: a single-target lookup through the
// same resolver as search.
func (h *Stars) Get(w http.ResponseWriter, r *http.Request) {
	starID := strings.TrimSpace(chi.URLParam(r, "id"))
	if starID == "" {
		respondError(w, http.StatusBadRequest, "star id is required")
		return
	}
	mission := r.URL.Query().Get("mission")

	stars := h.curves.SearchTargets(r.Context(), starID, mission)
	for _, star := range stars {
		if strings.EqualFold(star.ID, starID) || strings.EqualFold(star.Name, starID) {
			respondJSON(w, http.StatusOK, star)
			return
		}
	}
	if len(stars) > 0 {
		respondJSON(w, http.StatusOK, stars[0])
		return
	}
	respondError(w, http.StatusNotFound, "star not found: "+starID)
}
