package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/exoplanet-explorer/backend/api/config"
	"github.com/exoplanet-explorer/backend/api/etl"
	"github.com/exoplanet-explorer/backend/api/server"
	"github.com/exoplanet-explorer/backend/api/services"
	"github.com/exoplanet-explorer/backend/shared/httpclient"
	"github.com/exoplanet-explorer/backend/shared/otel"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	result, err := otel.Init(otel.Config{
		ServiceName: "exoplanet-api",
		Environment: cfg.Environment,
		Pretty:      cfg.Environment == "development",
	})
	if err != nil {
		slog.Error("failed to initialize opentelemetry", "error", err)
	} else {
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			result.Shutdown(shutdownCtx)
		}()
	}

	slog.Info("starting exoplanet explorer api")
	slog.Info("server configured", "host", cfg.Server.Host, "port", cfg.Server.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	nasa := services.NewNASAService(cfg.Upstream.ExoplanetArchiveURL,
		httpclient.New(httpclient.WithTimeout(httpclient.TimeoutMedium)), cfg.Upstream.CacheTTL)
	curves := services.NewLightcurveService(cfg.Upstream.MASTURL,
		httpclient.New(httpclient.WithTimeout(httpclient.TimeoutLong)))
	classifier := services.NewClassifier()
	extractor := etl.NewExtractor(nasa, curves, cfg.DataDir)

	go extractor.Run(ctx)

	srv := server.NewServer(cfg, nasa, curves, classifier, extractor)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "host", cfg.Server.Host, "port", cfg.Server.Port)
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		slog.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-sigCh:
		slog.Info("received signal, shutting down", "signal", sig)

		shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		if err := srv.Stop(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
		slog.Info("server stopped")
	}
}
