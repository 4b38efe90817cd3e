package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/exoplanet-explorer/backend/api/config"
	"github.com/exoplanet-explorer/backend/api/etl"
	"github.com/exoplanet-explorer/backend/api/server/handlers"
	"github.com/exoplanet-explorer/backend/api/services"
	"github.com/exoplanet-explorer/backend/shared/otel"
)

const ReadTimeout = 30 * time.Second

type Server struct {
	cfg        *config.Config
	router     *chi.Mux
	server     *http.Server
	hub        *Hub
	classifier *services.Classifier
}

func NewServer(
	cfg *config.Config,
	nasa *services.NASAService,
	curves *services.LightcurveService,
	classifier *services.Classifier,
	extractor *etl.Extractor,
) *Server {
	hub := NewHub()
	router := chi.NewRouter()

	router.Use(otel.Middleware("exoplanet-api"))
	router.Use(Recovery)
	router.Use(Logger)
	router.Use(Metrics)
	router.Use(CORS(cfg.Server.AllowedOrigins))

	s := &Server{
		cfg:        cfg,
		router:     router,
		hub:        hub,
		classifier: classifier,
	}

	router.Get("/health", handlers.Health)
	router.Get("/health/live", handlers.Health)
	router.Get("/health/ready", handlers.Ready)
	router.Handle("/metrics", MetricsHandler())

	router.Route("/api/v1", func(r chi.Router) {
		planetH := handlers.NewPlanets(nasa)
		r.Get("/planets", planetH.Search)
		r.Get("/planets/stats/overview", planetH.Stats)
		r.Get("/planets/{name}", planetH.Get)

		starH := handlers.NewStars(curves)
		r.Get("/stars/search", starH.Search)
		r.Get("/stars/{id}", starH.Get)

		lcH := handlers.NewLightcurves(curves)
		r.Get("/lightcurves/{targetID}", lcH.Get)
		r.Get("/lightcurves/{targetID}/download", lcH.Download)
		r.Get("/lightcurves/{targetID}/metadata", lcH.Metadata)

		missionH := handlers.NewMissions(nasa)
		r.Get("/missions", missionH.List)

		dataH := handlers.NewData(extractor, nasa, curves)
		r.Get("/data/status", dataH.Status)
		r.Post("/data/refresh", dataH.Refresh)

		r.Get("/ws/chat/{clientID}", s.handleChatWS)
		r.Get("/ws/ml/{modelType}", s.handleMLWS)
		r.Get("/ws/stats", s.handleStatsWS)
	})

	return s
}

func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.server = &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: ReadTimeout,
		// WebSocket streams stay open indefinitely.
		WriteTimeout: 0,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
