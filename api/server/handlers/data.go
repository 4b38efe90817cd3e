package handlers

import (
	"net/http"

	"github.com/exoplanet-explorer/backend/api/etl"
	"github.com/exoplanet-explorer/backend/api/services"
)

type Data struct {
	extractor *etl.Extractor
	nasa      *services.NASAService
	curves    *services.LightcurveService
}

func NewData(extractor *etl.Extractor, nasa *services.NASAService, curves *services.LightcurveService) *Data {
	return &Data{extractor: extractor, nasa: nasa, curves: curves}
}

// Status handles GET /api/v1/data/status.
func (h *Data) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.extractor.Status())
}

// Refresh handles POST /api/v1/data/refresh: drops every service cache so
// the next requests hit the upstream archives again.
func (h *Data) Refresh(w http.ResponseWriter, r *http.Request) {
	h.nasa.Invalidate()
	h.curves.Invalidate()
	respondJSON(w, http.StatusOK, map[string]string{"status": "caches invalidated"})
}
