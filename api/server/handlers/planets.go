package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/exoplanet-explorer/backend/api/domain"
	"github.com/exoplanet-explorer/backend/api/services"
)

type Planets struct {
	nasa *services.NASAService
}

func NewPlanets(nasa *services.NASAService) *Planets {
	return &Planets{nasa: nasa}
}

// Search handles GET /api/v1/planets.
func (h *Planets) Search(w http.ResponseWriter, r *http.Request) {
	filter := domain.PlanetFilter{
		Mission:   r.URL.Query().Get("mission"),
		MinPeriod: queryFloat(r, "min_period"),
		MaxPeriod: queryFloat(r, "max_period"),
		MinRadius: queryFloat(r, "min_radius"),
		MaxRadius: queryFloat(r, "max_radius"),
		Limit:     queryInt(r, "limit", 50),
		Offset:    queryInt(r, "offset", 0),
	}
	if filter.Limit < 1 || filter.Limit > 500 {
		respondError(w, http.StatusBadRequest, "limit must be between 1 and 500")
		return
	}
	if filter.Offset < 0 {
		respondError(w, http.StatusBadRequest, "offset must not be negative")
		return
	}

	respondJSON(w, http.StatusOK, h.nasa.SearchPlanets(r.Context(), filter))
}

// Get handles GET /api/v1/planets/{name}. The path segment may be either a
// planet name or a planet id.
func (h *Planets) Get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	planet, ok := h.nasa.PlanetByName(r.Context(), name)
	if !ok {
		respondError(w, http.StatusNotFound, "planet not found: "+name)
		return
	}
	respondJSON(w, http.StatusOK, planet)
}

// Stats handles GET /api/v1/planets/stats/overview.
func (h *Planets) Stats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.nasa.Stats(r.Context()))
}
