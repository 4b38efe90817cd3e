package handlers

import (
	"net/http"

	"github.com/exoplanet-explorer/backend/api/services"
)

type Missions struct {
	nasa *services.NASAService
}

func NewMissions(nasa *services.NASAService) *Missions {
	return &Missions{nasa: nasa}
}

// List handles GET /api/v1/missions.
func (h *Missions) List(w http.ResponseWriter, r *http.Request) {
	missions := h.nasa.Missions(r.Context())
	respondJSON(w, http.StatusOK, map[string]any{
		"missions": missions,
		"total":    len(missions),
	})
}
