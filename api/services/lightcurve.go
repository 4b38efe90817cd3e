package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/exoplanet-explorer/backend/api/domain"
	"github.com/exoplanet-explorer/backend/shared/otel"
)

// LightcurveService resolves targets and flux series. Real lookups go
// through the MAST portal API; anything the portal cannot serve falls back
// to a synthetic curve seeded by the target id, so the same target always
// renders the same curve.
type LightcurveService struct {
	mastURL string
	http    *http.Client

	curves  *expirable.LRU[string, *domain.LightCurve]
	targets *expirable.LRU[string, []domain.Star]
}

func NewLightcurveService(mastURL string, client *http.Client) *LightcurveService {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &LightcurveService{
		mastURL: mastURL,
		http:    client,
		curves:  expirable.NewLRU[string, *domain.LightCurve](50, nil, 2*time.Hour),
		targets: expirable.NewLRU[string, []domain.Star](200, nil, time.Hour),
	}
}

// Invalidate drops both the curve and target caches.
func (s *LightcurveService) Invalidate() {
	s.curves.Purge()
	s.targets.Purge()
}

// SearchTargets looks a query up in MAST's name resolver; a failed or empty
// lookup produces mock targets derived from the query.
func (s *LightcurveService) SearchTargets(ctx context.Context, query, mission string) []domain.Star {
	cacheKey := query + "|" + mission
	if stars, ok := s.targets.Get(cacheKey); ok {
		return stars
	}

	ctx, span := otel.Tracer("api").Start(ctx, "lightcurve.search_targets")
	defer span.End()

	stars, err := s.resolveTargets(ctx, query, mission)
	if err != nil || len(stars) == 0 {
		if err != nil {
			slog.WarnContext(ctx, "mast lookup failed, serving mock targets", "query", query, "error", err)
		}
		stars = mockTargets(query, mission)
	}

	s.targets.Add(cacheKey, stars)
	return stars
}

type mastResolved struct {
	ResolvedCoordinate []struct {
		Ra        float64 `json:"ra"`
		Decl      float64 `json:"decl"`
		Canonical string  `json:"canonicalName"`
	} `json:"resolvedCoordinate"`
}

func (s *LightcurveService) resolveTargets(ctx context.Context, query, mission string) ([]domain.Star, error) {
	params := url.Values{}
	params.Set("input", fmt.Sprintf(`{"service":"Mast.Name.Lookup","params":{"input":%q,"format":"json"}}`, query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.mastURL+"/invoke?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build mast request: %w", err)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mast lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mast returned %d", resp.StatusCode)
	}

	var resolved mastResolved
	if err := json.NewDecoder(resp.Body).Decode(&resolved); err != nil {
		return nil, fmt.Errorf("decode mast response: %w", err)
	}

	if mission == "" {
		mission = "TESS"
	}
	stars := make([]domain.Star, 0, len(resolved.ResolvedCoordinate))
	for _, c := range resolved.ResolvedCoordinate {
		ra, dec := c.Ra, c.Decl
		stars = append(stars, domain.Star{
			ID:            c.Canonical,
			Name:          c.Canonical,
			RA:            &ra,
			Dec:           &dec,
			Mission:       strings.ToUpper(mission),
			HasLightcurve: true,
		})
	}
	return stars, nil
}

// Lightcurve fetches (or synthesizes) the flux series for a target.
func (s *LightcurveService) Lightcurve(ctx context.Context, targetID, mission string) *domain.LightCurve {
	if mission == "" {
		mission = "TESS"
	}
	mission = strings.ToUpper(mission)

	cacheKey := targetID + "|" + mission
	if lc, ok := s.curves.Get(cacheKey); ok {
		return lc
	}

	// There is no public bulk flux endpoint to proxy without the lightkurve
	// toolchain, so curves are always synthesized server-side.
	lc := syntheticLightcurve(targetID, mission)
	s.curves.Add(cacheKey, lc)
	slog.InfoContext(ctx, "lightcurve ready",
		"target", targetID, "mission", mission, "points", lc.Metadata.Length)
	return lc
}

// CSV renders the curve in the export column order: time, flux, flux_err.
func (s *LightcurveService) CSV(lc *domain.LightCurve) string {
	var sb strings.Builder
	hasErr := len(lc.Data.FluxErr) == len(lc.Data.Time)

	sb.WriteString("time,flux")
	if hasErr {
		sb.WriteString(",flux_err")
	}
	sb.WriteString("\n")

	for i := range lc.Data.Time {
		sb.WriteString(strconv.FormatFloat(lc.Data.Time[i], 'g', -1, 64))
		sb.WriteString(",")
		sb.WriteString(strconv.FormatFloat(lc.Data.Flux[i], 'g', -1, 64))
		if hasErr {
			sb.WriteString(",")
			sb.WriteString(strconv.FormatFloat(lc.Data.FluxErr[i], 'g', -1, 64))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// DetectGaps counts spacings larger than 5x the median cadence.
func DetectGaps(times []float64) int {
	if len(times) < 2 {
		return 0
	}
	diffs := make([]float64, len(times)-1)
	for i := 1; i < len(times); i++ {
		diffs[i-1] = times[i] - times[i-1]
	}
	sorted := append([]float64(nil), diffs...)
	sort.Float64s(sorted)
	median := sorted[len(sorted)/2]

	gaps := 0
	for _, d := range diffs {
		if d > 5*median {
			gaps++
		}
	}
	return gaps
}

// seedFor hashes a target id into a deterministic rng seed.
func seedFor(targetID string) int64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(targetID); i++ {
		h ^= uint64(targetID[i])
		h *= 1099511628211
	}
	return int64(h & math.MaxInt64)
}

// syntheticLightcurve builds a realistic flux series: stellar variability,
// white noise, and, for planet-host-looking targets, periodic transit dips.
func syntheticLightcurve(targetID, mission string) *domain.LightCurve {
	seed := seedFor(targetID)
	rng := rand.New(rand.NewSource(seed))

	var points int
	var durationDays float64
	var cadence string
	switch mission {
	case "TESS":
		points, durationDays, cadence = 2000, 27.0, "short"
	case "KEPLER":
		points, durationDays, cadence = 4000, 90.0, "long"
	default:
		points, durationDays, cadence = 1500, 30.0, "short"
	}

	times := make([]float64, points)
	flux := make([]float64, points)
	fluxErr := make([]float64, points)
	quality := make([]int, points)

	step := durationDays / float64(points-1)
	for i := range times {
		times[i] = float64(i) * step
	}

	variabilityAmp := 0.001 + float64(seed%100)/50000
	variabilityScale := 2.0 + float64(seed%10)
	noise := 0.0005 + float64(seed%50)/100000

	for i := range flux {
		flux[i] = 1.0
		for harmonic := 1; harmonic < 5; harmonic++ {
			flux[i] += variabilityAmp *
				math.Sin(2*math.Pi*times[i]/(variabilityScale*float64(harmonic))) /
				float64(harmonic)
		}
		flux[i] += rng.NormFloat64() * noise
		fluxErr[i] = noise
	}

	hasTransits := strings.Contains(targetID, "TOI") ||
		strings.Contains(targetID, "KOI") ||
		seed%3 == 0
	if hasTransits {
		period := 2.0 + float64(seed%20)
		depth := 0.002 + float64(seed%100)/100000
		duration := 0.1 + float64(seed%50)/1000

		for center := period / 2; center < durationDays; center += period {
			for i := range times {
				if math.Abs(times[i]-center) < duration/2 {
					flux[i] -= depth
				}
			}
		}
	}

	// Flag ~10% of points, the way pipeline quality masks do.
	for _, idx := range rng.Perm(points)[:points/10] {
		quality[idx] = 1
	}

	mean, std := meanStd(flux)
	return &domain.LightCurve{
		StarID:   targetID,
		StarName: fmt.Sprintf("Mock Star %s", targetID),
		Mission:  mission,
		Data: domain.LightCurveData{
			Time:    times,
			Flux:    flux,
			FluxErr: fluxErr,
			Quality: quality,
			Cadence: cadence,
		},
		Metadata: domain.LightCurveMetadata{
			Length:       points,
			DurationDays: durationDays,
			MeanFlux:     mean,
			StdFlux:      std,
			MockData:     true,
			HasTransits:  hasTransits,
			Normalized:   true,
			OutliersCut:  true,
		},
	}
}

func meanStd(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))

	var sq float64
	for _, x := range xs {
		d := x - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(xs)))
}

// mockTargets fabricates plausible search hits for a query, TOI queries get
// a single synthesized TIC match like the original resolver stub.
func mockTargets(query, mission string) []domain.Star {
	if mission == "" {
		mission = "TESS"
	}
	mission = strings.ToUpper(mission)

	upper := strings.ToUpper(query)
	if strings.Contains(upper, "TOI") {
		num := 100
		digits := strings.TrimLeft(strings.NewReplacer("TOI-", "", "TOI ", "").Replace(upper), " ")
		if fields := strings.Fields(digits); len(fields) > 0 {
			if n, err := strconv.Atoi(fields[0]); err == nil {
				num = n
			}
		}
		ra := 45.0 + float64(num)*0.01
		dec := -30.0 + float64(num)*0.01
		mag := 10.5 + float64(num%5)*0.2
		return []domain.Star{{
			ID:            fmt.Sprintf("TIC %d", 123456789+num),
			Name:          fmt.Sprintf("TOI-%d", num),
			RA:            &ra,
			Dec:           &dec,
			Magnitude:     &mag,
			Mission:       mission,
			HasLightcurve: true,
		}}
	}

	stars := make([]domain.Star, 0, 5)
	for i := 0; i < 5; i++ {
		ra := 45.0 + float64(i)*0.1
		dec := -30.0 + float64(i)*0.1
		mag := 10.5 + float64(i)*0.2
		stars = append(stars, domain.Star{
			ID:            fmt.Sprintf("TIC %d", 123456789+i),
			Name:          fmt.Sprintf("Mock-%s-%d", query, i+1),
			RA:            &ra,
			Dec:           &dec,
			Magnitude:     &mag,
			Mission:       mission,
			HasLightcurve: true,
		})
	}
	return stars
}
