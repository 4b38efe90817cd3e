// Package config holds the API service configuration, loaded from the
// environment with sane local-development defaults.
package config

import (
	"time"

	"github.com/exoplanet-explorer/backend/shared/config"
)

type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

type UpstreamConfig struct {
	// ExoplanetArchiveURL is the NASA Exoplanet Archive TAP sync endpoint.
	ExoplanetArchiveURL string
	// MASTURL is the MAST portal API base used for target lookups.
	MASTURL  string
	CacheTTL time.Duration
}

type Config struct {
	Server      ServerConfig
	Upstream    UpstreamConfig
	DataDir     string
	Environment string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: config.GetEnv("API_HOST", "0.0.0.0"),
			Port: config.GetEnvInt("API_PORT", 8000),
			AllowedOrigins: config.GetEnvSlice("CORS_ORIGINS",
				[]string{"http://localhost:5173", "http://localhost:3000"}),
		},
		Upstream: UpstreamConfig{
			ExoplanetArchiveURL: config.GetEnv("NASA_EXOPLANET_API_URL",
				"https://exoplanetarchive.ipac.caltech.edu/TAP/sync"),
			MASTURL:  config.GetEnv("MAST_API_URL", "https://mast.stsci.edu/api/v0.1"),
			CacheTTL: config.GetEnvDuration("CACHE_TTL", time.Hour),
		},
		DataDir:     config.GetEnv("DATA_DIR", "data"),
		Environment: config.GetEnv("ENVIRONMENT", "development"),
	}
}
