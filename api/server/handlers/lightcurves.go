package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/exoplanet-explorer/backend/api/services"
)

type Lightcurves struct {
	curves *services.LightcurveService
}

func NewLightcurves(curves *services.LightcurveService) *Lightcurves {
	return &Lightcurves{curves: curves}
}

// Get handles GET /api/v1/lightcurves/{targetID}.
func (h *Lightcurves) Get(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "targetID")
	mission := r.URL.Query().Get("mission")

	lc := h.curves.Lightcurve(r.Context(), targetID, mission)
	respondJSON(w, http.StatusOK, lc)
}

// Download handles GET /api/v1/lightcurves/{targetID}/download, serving the
// curve as CSV.
func (h *Lightcurves) Download(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "targetID")
	mission := r.URL.Query().Get("mission")

	lc := h.curves.Lightcurve(r.Context(), targetID, mission)
	filename := strings.ReplaceAll(targetID, " ", "_") + "_lightcurve.csv"

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(h.curves.CSV(lc)))
}

// Metadata handles GET /api/v1/lightcurves/{targetID}/metadata: summary stats
// without the full flux arrays.
func (h *Lightcurves) Metadata(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "targetID")
	mission := r.URL.Query().Get("mission")

	lc := h.curves.Lightcurve(r.Context(), targetID, mission)

	var timeStart, timeEnd float64
	if n := len(lc.Data.Time); n > 0 {
		timeStart = lc.Data.Time[0]
		timeEnd = lc.Data.Time[n-1]
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"star_id":    lc.StarID,
		"star_name":  lc.StarName,
		"mission":    lc.Mission,
		"metadata":   lc.Metadata,
		"cadence":    lc.Data.Cadence,
		"time_start": timeStart,
		"time_end":   timeEnd,
		"gaps":       services.DetectGaps(lc.Data.Time),
	})
}
