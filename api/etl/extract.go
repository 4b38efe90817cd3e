// Package etl pre-extracts catalog and lightcurve datasets to local CSV/JSON
// files at startup so the first requests do not block on upstream archives.
package etl

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/exoplanet-explorer/backend/api/domain"
	"github.com/exoplanet-explorer/backend/api/services"
)

// catalogMaxAge is how old the on-disk catalog may be before it is refreshed.
const catalogMaxAge = 24 * time.Hour

// popularTargets are pre-warmed at startup; the well-known planet hosts the
// frontend showcases first.
var popularTargets = []string{
	"TOI-715 b", "TOI-849 b", "WASP-96 b", "HD 209458 b", "TRAPPIST-1",
	"Kepler-442 b", "K2-18 b", "55 Cancri e", "GJ 1214 b", "HAT-P-7 b",
	"Kepler-186 f", "Kepler-452 b", "Kepler-22 b", "Kepler-62 f",
	"Kepler-438 b", "Kepler-1649 c", "KOI-5715.01", "KIC 8462852",
	"Kepler-16 b", "Kepler-90 h",
}

// Status reports data-initialization progress for /api/v1/data/status.
type Status struct {
	Complete     bool      `json:"startup_complete"`
	CatalogReady bool      `json:"catalog_ready"`
	CatalogPath  string    `json:"catalog_path,omitempty"`
	CatalogRows  int       `json:"catalog_rows"`
	CurvesReady  int       `json:"lightcurves_ready"`
	CurvesTotal  int       `json:"lightcurves_total"`
	Failures     []string  `json:"failures,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	CompletedAt  time.Time `json:"completed_at,omitzero"`
}

// Extractor downloads the exoplanet catalog and popular lightcurves into
// dataDir (raw/ for per-mission curve dumps, processed/ for the catalog).
type Extractor struct {
	nasa    *services.NASAService
	curves  *services.LightcurveService
	dataDir string

	mu     sync.Mutex
	status Status
}

func NewExtractor(nasa *services.NASAService, curves *services.LightcurveService, dataDir string) *Extractor {
	return &Extractor{nasa: nasa, curves: curves, dataDir: dataDir}
}

// Status returns a copy of the current progress.
func (e *Extractor) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

func (e *Extractor) fail(step string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status.Failures = append(e.status.Failures, fmt.Sprintf("%s: %v", step, err))
}

// Run performs the full initialization. Failures are recorded but never
// abort startup; the services all have mock fallbacks.
func (e *Extractor) Run(ctx context.Context) {
	e.mu.Lock()
	e.status = Status{StartedAt: time.Now().UTC(), CurvesTotal: len(popularTargets)}
	e.mu.Unlock()

	for _, dir := range []string{
		filepath.Join(e.dataDir, "processed"),
		filepath.Join(e.dataDir, "raw", "kepler"),
		filepath.Join(e.dataDir, "raw", "tess"),
		filepath.Join(e.dataDir, "raw", "k2"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			e.fail("mkdir", err)
			return
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := e.extractCatalog(gctx); err != nil {
			e.fail("catalog", err)
		}
		return nil
	})
	g.Go(func() error {
		e.extractPopularCurves(gctx)
		return nil
	})
	g.Go(func() error {
		if err := e.writeMissionSummaries(gctx); err != nil {
			e.fail("missions", err)
		}
		return nil
	})
	_ = g.Wait()

	e.mu.Lock()
	e.status.Complete = true
	e.status.CompletedAt = time.Now().UTC()
	failures := len(e.status.Failures)
	e.mu.Unlock()

	slog.InfoContext(ctx, "data initialization complete", "failures", failures)
}

func (e *Extractor) extractCatalog(ctx context.Context) error {
	catalogPath := filepath.Join(e.dataDir, "processed", "exoplanets_catalog.csv")
	metaPath := filepath.Join(e.dataDir, "processed", "catalog_metadata.json")

	if info, err := os.Stat(catalogPath); err == nil && time.Since(info.ModTime()) < catalogMaxAge {
		slog.InfoContext(ctx, "catalog fresh, skipping download", "path", catalogPath)
		e.markCatalogReady(catalogPath, -1)
		return nil
	}

	page := e.nasa.SearchPlanets(ctx, domain.PlanetFilter{Limit: 500})

	var sb strings.Builder
	sb.WriteString("name,host_star,mission,period,radius,mass,temperature,discovery_method,discovery_year\n")
	for _, p := range page.Planets {
		sb.WriteString(csvField(p.Name))
		sb.WriteString(",")
		sb.WriteString(csvField(p.HostStar))
		sb.WriteString(",")
		sb.WriteString(p.Mission)
		sb.WriteString(",")
		sb.WriteString(floatField(p.Period))
		sb.WriteString(",")
		sb.WriteString(floatField(p.Radius))
		sb.WriteString(",")
		sb.WriteString(floatField(p.Mass))
		sb.WriteString(",")
		sb.WriteString(floatField(p.Temperature))
		sb.WriteString(",")
		sb.WriteString(csvField(p.DiscoveryMethod))
		sb.WriteString(",")
		if p.DiscoveryYear > 0 {
			sb.WriteString(strconv.Itoa(p.DiscoveryYear))
		}
		sb.WriteString("\n")
	}

	if err := os.WriteFile(catalogPath, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}

	meta := map[string]any{
		"rows":         len(page.Planets),
		"total":        page.Total,
		"extracted_at": time.Now().UTC().Format(time.RFC3339),
		"source":       "NASA Exoplanet Archive (ps, default_flag=1)",
	}
	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(metaPath, raw, 0o644); err != nil {
		return fmt.Errorf("write catalog metadata: %w", err)
	}

	e.markCatalogReady(catalogPath, len(page.Planets))
	slog.InfoContext(ctx, "catalog extracted", "rows", len(page.Planets), "path", catalogPath)
	return nil
}

func (e *Extractor) markCatalogReady(path string, rows int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status.CatalogReady = true
	e.status.CatalogPath = path
	if rows >= 0 {
		e.status.CatalogRows = rows
	}
}

func (e *Extractor) extractPopularCurves(ctx context.Context) {
	for _, target := range popularTargets {
		if ctx.Err() != nil {
			return
		}

		mission := missionFor(target)
		lc := e.curves.Lightcurve(ctx, target, mission)

		name := strings.ReplaceAll(target, " ", "_") + ".csv"
		path := filepath.Join(e.dataDir, "raw", strings.ToLower(mission), name)
		if err := os.WriteFile(path, []byte(e.curves.CSV(lc)), 0o644); err != nil {
			e.fail("lightcurve "+target, err)
			continue
		}

		e.mu.Lock()
		e.status.CurvesReady++
		e.mu.Unlock()
	}
}

func (e *Extractor) writeMissionSummaries(ctx context.Context) error {
	missions := e.nasa.Missions(ctx)
	raw, err := json.MarshalIndent(missions, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(e.dataDir, "processed", "mission_summaries.json")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write mission summaries: %w", err)
	}
	return nil
}

// missionFor buckets a popular target into the mission whose raw/ directory
// stores its curve.
func missionFor(target string) string {
	switch {
	case strings.Contains(target, "Kepler"), strings.Contains(target, "KOI"), strings.Contains(target, "KIC"):
		return "KEPLER"
	case strings.Contains(target, "K2"):
		return "K2"
	default:
		return "TESS"
	}
}

func csvField(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}

func floatField(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'g', -1, 64)
}
