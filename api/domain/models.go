// Package domain defines the API's data shapes: exoplanets, stars, light
// curves, missions, and mock ML classifications.
package domain

// Planet is one confirmed exoplanet row from the NASA Exoplanet Archive
// (table "ps", default_flag = 1).
type Planet struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	HostStar        string   `json:"host_star"`
	Disposition     string   `json:"disposition"`
	Period          *float64 `json:"period"`
	Radius          *float64 `json:"radius"`
	Mass            *float64 `json:"mass"`
	Temperature     *float64 `json:"temperature"`
	DiscoveryMethod string   `json:"discovery_method,omitempty"`
	DiscoveryYear   int      `json:"discovery_year,omitempty"`
	Mission         string   `json:"mission"`
}

// PlanetFilter narrows a catalog search. Zero values mean "no constraint".
type PlanetFilter struct {
	Mission   string
	MinPeriod float64
	MaxPeriod float64
	MinRadius float64
	MaxRadius float64
	Limit     int
	Offset    int
}

// PlanetPage is one page of search results.
type PlanetPage struct {
	Planets []Planet `json:"planets"`
	Total   int      `json:"total"`
	Page    int      `json:"page"`
	PerPage int      `json:"per_page"`
}

// PlanetStats is the /planets/stats/overview payload.
type PlanetStats struct {
	Total       int            `json:"total"`
	ByMission   map[string]int `json:"by_mission"`
	ByMethod    map[string]int `json:"by_method"`
	ByYear      map[string]int `json:"by_year"`
	LastUpdated string         `json:"last_updated,omitempty"`
}

// Mission summarizes one discovery facility.
type Mission struct {
	Name         string `json:"name"`
	Facility     string `json:"facility"`
	TotalObjects int    `json:"total_objects"`
	Description  string `json:"description"`
	Active       bool   `json:"active"`
	LaunchDate   string `json:"launch_date,omitempty"`
}

// Star is one MAST target search hit.
type Star struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	RA            *float64 `json:"ra"`
	Dec           *float64 `json:"dec"`
	Magnitude     *float64 `json:"magnitude"`
	Mission       string   `json:"mission"`
	HasLightcurve bool     `json:"has_lightcurve"`
}

// LightCurve is a stitched, processed flux time series for one target.
type LightCurve struct {
	StarID   string             `json:"star_id"`
	StarName string             `json:"star_name"`
	Mission  string             `json:"mission"`
	Data     LightCurveData     `json:"data"`
	Metadata LightCurveMetadata `json:"metadata"`
}

type LightCurveData struct {
	Time    []float64 `json:"time"`
	Flux    []float64 `json:"flux"`
	FluxErr []float64 `json:"flux_err,omitempty"`
	Quality []int     `json:"quality,omitempty"`
	Cadence string    `json:"cadence"`
}

type LightCurveMetadata struct {
	Length       int     `json:"length"`
	DurationDays float64 `json:"duration_days"`
	MeanFlux     float64 `json:"mean_flux"`
	StdFlux      float64 `json:"std_flux"`
	MockData     bool    `json:"mock_data,omitempty"`
	HasTransits  bool    `json:"has_transits,omitempty"`
	Normalized   bool    `json:"normalized"`
	OutliersCut  bool    `json:"outliers_removed"`
}

// Classification labels, matching the archive's disposition vocabulary.
const (
	LabelConfirmed     = "CONFIRMED"
	LabelCandidate     = "CANDIDATE"
	LabelFalsePositive = "FALSE_POSITIVE"
)

// Classification is one mock ML prediction.
type Classification struct {
	Prediction    string             `json:"prediction"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities"`
	ModelUsed     string             `json:"model_used"`
}
