package handlers

import (
	"net/http"
	"time"
)

var startedAt = time.Now()

// Health is the liveness probe.
func Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"service":        "exoplanet-api",
		"uptime_seconds": int(time.Since(startedAt).Seconds()),
	})
}

// Ready reports readiness; the API serves mock fallbacks even before data
// initialization finishes, so readiness tracks only process health.
func Ready(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
