package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exoplanet-explorer/backend/api/domain"
)

func ptr(f float64) *float64 { return &f }

func tapRows() []tapPlanet {
	return []tapPlanet{
		{Name: "Kepler-22 b", HostName: "Kepler-22", Facility: "Kepler", Period: ptr(289.9), Radius: ptr(2.4), Method: "Transit", DiscYear: ptr(2011)},
		{Name: "TOI-715 b", HostName: "TOI-715", Facility: "Transiting Exoplanet Survey Satellite (TESS)", Period: ptr(19.3), Radius: ptr(1.55), Method: "Transit", DiscYear: ptr(2024)},
		{Name: "K2-18 b", HostName: "K2-18", Facility: "K2", Period: ptr(32.9), Radius: ptr(2.6), Method: "Transit", DiscYear: ptr(2015)},
	}
}

// newTAPServer serves the given rows for every query and counts requests.
func newTAPServer(t *testing.T, rows []tapPlanet) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Contains(t, r.URL.Query().Get("query"), "default_flag = 1")
		json.NewEncoder(w).Encode(rows)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestSearchPlanetsPaging(t *testing.T) {
	srv, _ := newTAPServer(t, tapRows())
	svc := NewNASAService(srv.URL, srv.Client(), time.Hour)

	page := svc.SearchPlanets(context.Background(), domain.PlanetFilter{Limit: 2})
	require.Len(t, page.Planets, 2)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 2, page.PerPage)
	assert.Equal(t, "Kepler-22 b", page.Planets[0].Name)
	assert.Equal(t, "Kepler", page.Planets[0].Mission)
	assert.Equal(t, domain.LabelConfirmed, page.Planets[0].Disposition)

	page = svc.SearchPlanets(context.Background(), domain.PlanetFilter{Limit: 2, Offset: 2})
	require.Len(t, page.Planets, 1)
	assert.Equal(t, "K2-18 b", page.Planets[0].Name)
	assert.Equal(t, 2, page.Page)

	// Offset past the end yields an empty page, not an error.
	page = svc.SearchPlanets(context.Background(), domain.PlanetFilter{Limit: 2, Offset: 10})
	assert.Empty(t, page.Planets)
	assert.Equal(t, 3, page.Total)
}

func TestSearchPlanetsCachesByQuery(t *testing.T) {
	srv, hits := newTAPServer(t, tapRows())
	svc := NewNASAService(srv.URL, srv.Client(), time.Hour)

	svc.SearchPlanets(context.Background(), domain.PlanetFilter{})
	svc.SearchPlanets(context.Background(), domain.PlanetFilter{Offset: 1})
	assert.Equal(t, int64(1), hits.Load(), "same where clause must be served from cache")

	svc.SearchPlanets(context.Background(), domain.PlanetFilter{MinRadius: 1})
	assert.Equal(t, int64(2), hits.Load())

	svc.Invalidate()
	svc.SearchPlanets(context.Background(), domain.PlanetFilter{})
	assert.Equal(t, int64(3), hits.Load(), "invalidate must force a refetch")
}

func TestSearchPlanetsMockFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()
	svc := NewNASAService(srv.URL, srv.Client(), time.Hour)

	page := svc.SearchPlanets(context.Background(), domain.PlanetFilter{})
	assert.Equal(t, 100, page.Total)
	require.Len(t, page.Planets, 50)
	assert.Equal(t, "Mock Planet 1", page.Planets[0].Name)

	// The mock catalog is seeded, so paging stays stable across calls.
	again := svc.SearchPlanets(context.Background(), domain.PlanetFilter{})
	assert.Equal(t, page.Planets, again.Planets)

	filtered := svc.SearchPlanets(context.Background(), domain.PlanetFilter{Mission: "kepler"})
	for _, p := range filtered.Planets {
		assert.Equal(t, "Kepler", p.Mission)
	}
}

func TestPlanetByName(t *testing.T) {
	srv, _ := newTAPServer(t, tapRows())
	svc := NewNASAService(srv.URL, srv.Client(), time.Hour)

	planet, ok := svc.PlanetByName(context.Background(), "toi-715 B")
	require.True(t, ok)
	assert.Equal(t, "TOI-715 b", planet.Name)
	assert.Equal(t, "TESS", planet.Mission)
	assert.Equal(t, 2024, planet.DiscoveryYear)

	byID, ok := svc.PlanetByName(context.Background(), planet.ID)
	require.True(t, ok)
	assert.Equal(t, planet.Name, byID.Name)

	_, ok = svc.PlanetByName(context.Background(), "Tatooine")
	assert.False(t, ok)
}

func TestStats(t *testing.T) {
	srv, _ := newTAPServer(t, tapRows())
	svc := NewNASAService(srv.URL, srv.Client(), time.Hour)

	stats := svc.Stats(context.Background())
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.ByMission["Kepler"])
	assert.Equal(t, 1, stats.ByMission["TESS"])
	assert.Equal(t, 1, stats.ByMission["K2"])
	assert.Equal(t, 3, stats.ByMethod["Transit"])
	assert.Equal(t, 1, stats.ByYear["2011"])
	assert.NotEmpty(t, stats.LastUpdated)
}

func TestMissions(t *testing.T) {
	rows := append(tapRows(),
		tapPlanet{Name: "Kepler-62 f", HostName: "Kepler-62", Facility: "Kepler"},
		tapPlanet{Name: "Kepler-442 b", HostName: "Kepler-442", Facility: "Kepler"},
	)
	srv, _ := newTAPServer(t, rows)
	svc := NewNASAService(srv.URL, srv.Client(), time.Hour)

	missions := svc.Missions(context.Background())
	require.NotEmpty(t, missions)
	assert.Equal(t, "Kepler", missions[0].Name)
	assert.Equal(t, 3, missions[0].TotalObjects)
	assert.Equal(t, "2009-03-07", missions[0].LaunchDate)
	assert.False(t, missions[0].Active)

	for _, m := range missions {
		if m.Name == "TESS" {
			assert.True(t, m.Active)
		}
	}
}

func TestFacilityToMission(t *testing.T) {
	assert.Equal(t, "TESS", facilityToMission("Transiting Exoplanet Survey Satellite (TESS)"))
	assert.Equal(t, "Kepler", facilityToMission("Kepler"))
	assert.Equal(t, "HAT", facilityToMission("HATNet"))
	assert.Equal(t, "Unknown", facilityToMission(""))
	// Unrecognized long facility names truncate to 20 chars.
	assert.Len(t, facilityToMission("Very Large Telescope Imaging Survey"), 20)
}

func TestPlanetIDStable(t *testing.T) {
	assert.Equal(t, planetID("Kepler-22 b"), planetID("Kepler-22 b"))
	assert.NotEqual(t, planetID("Kepler-22 b"), planetID("Kepler-22 c"))
	assert.Regexp(t, `^pl_[0-9a-f]{16}$`, planetID("Kepler-22 b"))
}
