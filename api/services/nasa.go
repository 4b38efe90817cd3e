// Package services holds the API's upstream data access: the NASA Exoplanet
// Archive, MAST-style lightcurve retrieval, and the mock ML classifier.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/exoplanet-explorer/backend/api/domain"
	"github.com/exoplanet-explorer/backend/shared/otel"
)

const (
	planetColumns = "pl_name,hostname,pl_orbper,pl_rade,pl_masse,pl_eqt,discoverymethod,disc_year,disc_facility,st_rad,st_mass,st_teff"

	maxPlanetLimit     = 500
	defaultPlanetLimit = 50
)

// tapPlanet is one row of the archive's "ps" table in TAP JSON format.
// Nullable columns come back as JSON null, hence the pointers.
type tapPlanet struct {
	Name     string   `json:"pl_name"`
	HostName string   `json:"hostname"`
	Period   *float64 `json:"pl_orbper"`
	Radius   *float64 `json:"pl_rade"`
	Mass     *float64 `json:"pl_masse"`
	EqTemp   *float64 `json:"pl_eqt"`
	Method   string   `json:"discoverymethod"`
	DiscYear *float64 `json:"disc_year"`
	Facility string   `json:"disc_facility"`
	StarRad  *float64 `json:"st_rad"`
	StarMass *float64 `json:"st_mass"`
	StarTemp *float64 `json:"st_teff"`
}

// NASAService queries the Exoplanet Archive TAP sync endpoint with a TTL'd
// response cache. Upstream failures fall back to a deterministic mock
// catalog so the API keeps serving during demos and outages.
type NASAService struct {
	baseURL string
	http    *http.Client
	cache   *expirable.LRU[string, []tapPlanet]

	mu         sync.Mutex
	lastUpdate time.Time
}

func NewNASAService(baseURL string, client *http.Client, ttl time.Duration) *NASAService {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &NASAService{
		baseURL: baseURL,
		http:    client,
		cache:   expirable.NewLRU[string, []tapPlanet](100, nil, ttl),
	}
}

// Invalidate drops every cached archive response; the next query hits
// upstream again.
func (s *NASAService) Invalidate() {
	s.cache.Purge()
}

// queryArchive runs one ADQL query against the TAP sync endpoint, caching by
// the where clause.
func (s *NASAService) queryArchive(ctx context.Context, where string) ([]tapPlanet, error) {
	if rows, ok := s.cache.Get(where); ok {
		slog.InfoContext(ctx, "archive cache hit", "where", where)
		return rows, nil
	}

	ctx, span := otel.Tracer("api").Start(ctx, "nasa.query",
		trace.WithAttributes(attribute.String("nasa.where", where), otel.CacheHit(false)))
	defer span.End()

	adql := fmt.Sprintf("select %s from ps where %s", planetColumns, where)
	params := url.Values{}
	params.Set("query", adql)
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build archive request: %w", err)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query archive: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("archive returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var rows []tapPlanet
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode archive response: %w", err)
	}

	s.cache.Add(where, rows)
	s.mu.Lock()
	s.lastUpdate = time.Now()
	s.mu.Unlock()

	slog.InfoContext(ctx, "archive query complete", "rows", len(rows))
	return rows, nil
}

// catalog returns the confirmed-planet rows matching the filter's upstream
// constraints, mock rows when the archive is unreachable.
func (s *NASAService) catalog(ctx context.Context, f domain.PlanetFilter) []tapPlanet {
	conditions := []string{"pl_name is not null", "default_flag = 1"}
	if facility := missionToFacility(f.Mission); facility != "" {
		conditions = append(conditions, fmt.Sprintf("disc_facility like '%%%s%%'", facility))
	}
	if f.MinPeriod > 0 {
		conditions = append(conditions, fmt.Sprintf("pl_orbper >= %g", f.MinPeriod))
	}
	if f.MaxPeriod > 0 {
		conditions = append(conditions, fmt.Sprintf("pl_orbper <= %g", f.MaxPeriod))
	}
	if f.MinRadius > 0 {
		conditions = append(conditions, fmt.Sprintf("pl_rade >= %g", f.MinRadius))
	}
	if f.MaxRadius > 0 {
		conditions = append(conditions, fmt.Sprintf("pl_rade <= %g", f.MaxRadius))
	}

	rows, err := s.queryArchive(ctx, strings.Join(conditions, " and "))
	if err != nil {
		slog.ErrorContext(ctx, "archive unavailable, serving mock catalog", "error", err)
		return mockCatalog(f)
	}
	return rows
}

// SearchPlanets pages through the filtered catalog.
func (s *NASAService) SearchPlanets(ctx context.Context, f domain.PlanetFilter) *domain.PlanetPage {
	if f.Limit <= 0 {
		f.Limit = defaultPlanetLimit
	}
	if f.Limit > maxPlanetLimit {
		f.Limit = maxPlanetLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	rows := s.catalog(ctx, f)
	total := len(rows)

	start := f.Offset
	if start > total {
		start = total
	}
	end := start + f.Limit
	if end > total {
		end = total
	}

	planets := make([]domain.Planet, 0, end-start)
	for _, row := range rows[start:end] {
		planets = append(planets, rowToPlanet(row))
	}

	return &domain.PlanetPage{
		Planets: planets,
		Total:   total,
		Page:    f.Offset/f.Limit + 1,
		PerPage: f.Limit,
	}
}

// PlanetByName finds one planet by id or case-insensitive name.
func (s *NASAService) PlanetByName(ctx context.Context, nameOrID string) (*domain.Planet, bool) {
	page := s.SearchPlanets(ctx, domain.PlanetFilter{Limit: maxPlanetLimit})
	for _, p := range page.Planets {
		if p.ID == nameOrID || strings.EqualFold(p.Name, nameOrID) {
			return &p, true
		}
	}
	return nil, false
}

// Stats aggregates the catalog by mission, method, and year.
func (s *NASAService) Stats(ctx context.Context) *domain.PlanetStats {
	rows := s.catalog(ctx, domain.PlanetFilter{})

	stats := &domain.PlanetStats{
		Total:     len(rows),
		ByMission: map[string]int{},
		ByMethod:  map[string]int{},
		ByYear:    map[string]int{},
	}
	for _, row := range rows {
		if row.Facility != "" {
			stats.ByMission[facilityToMission(row.Facility)]++
		}
		if row.Method != "" {
			stats.ByMethod[row.Method]++
		}
		if row.DiscYear != nil {
			stats.ByYear[fmt.Sprintf("%d", int(*row.DiscYear))]++
		}
	}

	s.mu.Lock()
	if !s.lastUpdate.IsZero() {
		stats.LastUpdated = s.lastUpdate.UTC().Format(time.RFC3339)
	}
	s.mu.Unlock()
	return stats
}

var missionInfo = map[string]domain.Mission{
	"Kepler": {
		Name:        "Kepler",
		Description: "NASA's first planet-hunting mission, operational 2009-2013",
		LaunchDate:  "2009-03-07",
	},
	"TESS": {
		Name:        "TESS",
		Description: "Transiting Exoplanet Survey Satellite, launched 2018",
		LaunchDate:  "2018-04-18",
		Active:      true,
	},
	"K2": {
		Name:        "K2",
		Description: "Extended Kepler mission, operational 2014-2018",
		LaunchDate:  "2014-05-30",
	},
}

// Missions lists discovery facilities ranked by confirmed-planet count.
func (s *NASAService) Missions(ctx context.Context) []domain.Mission {
	rows := s.catalog(ctx, domain.PlanetFilter{})

	counts := map[string]int{}
	for _, row := range rows {
		if row.Facility != "" {
			counts[row.Facility]++
		}
	}

	facilities := make([]string, 0, len(counts))
	for f := range counts {
		facilities = append(facilities, f)
	}
	sort.Slice(facilities, func(i, j int) bool {
		if counts[facilities[i]] != counts[facilities[j]] {
			return counts[facilities[i]] > counts[facilities[j]]
		}
		return facilities[i] < facilities[j]
	})
	if len(facilities) > 10 {
		facilities = facilities[:10]
	}

	missions := make([]domain.Mission, 0, len(facilities))
	for _, facility := range facilities {
		name := facilityToMission(facility)
		m, ok := missionInfo[name]
		if !ok {
			m = domain.Mission{
				Name:        name,
				Description: fmt.Sprintf("%s exoplanet survey", facility),
			}
		}
		m.Facility = facility
		m.TotalObjects = counts[facility]
		missions = append(missions, m)
	}
	return missions
}

func rowToPlanet(row tapPlanet) domain.Planet {
	p := domain.Planet{
		ID:              planetID(row.Name),
		Name:            row.Name,
		HostStar:        row.HostName,
		Disposition:     domain.LabelConfirmed,
		Period:          row.Period,
		Radius:          row.Radius,
		Mass:            row.Mass,
		Temperature:     row.EqTemp,
		DiscoveryMethod: row.Method,
		Mission:         facilityToMission(row.Facility),
	}
	if row.DiscYear != nil {
		p.DiscoveryYear = int(*row.DiscYear)
	}
	return p
}

// planetID derives a stable opaque id from the planet name.
func planetID(name string) string {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(name); i++ {
		h ^= uint64(name[i])
		h *= 1099511628211
	}
	return fmt.Sprintf("pl_%016x", h)
}

func facilityToMission(facility string) string {
	if facility == "" {
		return "Unknown"
	}
	lower := strings.ToLower(facility)
	switch {
	case strings.Contains(lower, "kepler"):
		return "Kepler"
	case strings.Contains(lower, "tess"):
		return "TESS"
	case strings.Contains(lower, "k2"):
		return "K2"
	case strings.Contains(lower, "corot"):
		return "CoRoT"
	case strings.Contains(lower, "hat"):
		return "HAT"
	case strings.Contains(lower, "wasp"):
		return "WASP"
	case strings.Contains(lower, "kelt"):
		return "KELT"
	}
	if len(facility) > 20 {
		return facility[:20]
	}
	return facility
}

func missionToFacility(mission string) string {
	switch strings.ToLower(mission) {
	case "kepler":
		return "Kepler"
	case "tess":
		return "TESS"
	case "k2":
		return "K2"
	case "corot":
		return "CoRoT"
	}
	return ""
}

// mockCatalog builds a deterministic stand-in catalog; the seed is fixed so
// paging over mock data is stable across requests.
func mockCatalog(f domain.PlanetFilter) []tapPlanet {
	rng := rand.New(rand.NewSource(42))
	facilities := []string{"Kepler", "TESS", "K2"}

	rows := make([]tapPlanet, 0, 100)
	for i := 0; i < 100; i++ {
		period := expSample(rng, 1, 1)
		radius := expSample(rng, 0, 0.5)
		mass := expSample(rng, 0, 0.8)
		temp := rng.NormFloat64()*200 + 500
		year := float64(2009 + rng.Intn(15))

		row := tapPlanet{
			Name:     fmt.Sprintf("Mock Planet %d", i+1),
			HostName: fmt.Sprintf("Mock Star %d", i+1),
			Facility: facilities[i%3],
			Period:   &period,
			Radius:   &radius,
			Mass:     &mass,
			EqTemp:   &temp,
			Method:   "Transit",
			DiscYear: &year,
		}
		if !matchesFilter(row, f) {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

func matchesFilter(row tapPlanet, f domain.PlanetFilter) bool {
	if facility := missionToFacility(f.Mission); facility != "" && row.Facility != facility {
		return false
	}
	if f.MinPeriod > 0 && (row.Period == nil || *row.Period < f.MinPeriod) {
		return false
	}
	if f.MaxPeriod > 0 && (row.Period == nil || *row.Period > f.MaxPeriod) {
		return false
	}
	if f.MinRadius > 0 && (row.Radius == nil || *row.Radius < f.MinRadius) {
		return false
	}
	if f.MaxRadius > 0 && (row.Radius == nil || *row.Radius > f.MaxRadius) {
		return false
	}
	return true
}

// expSample draws from a lognormal: exp(mu + sigma*z).
func expSample(rng *rand.Rand, mu, sigma float64) float64 {
	return math.Exp(mu + sigma*rng.NormFloat64())
}
