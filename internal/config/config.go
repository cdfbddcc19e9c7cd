// Package config loads client configuration from the environment, with an
// optional .env file for development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/waveline/feedsync/internal/logger"
)

// Config holds everything the client and CLI need to talk to the platform.
type Config struct {
	// APIURL is the base URL of the REST API, e.g. http://localhost:8787
	APIURL string

	// WSURL is the websocket endpoint for push events. Derived from APIURL
	// when unset.
	WSURL string

	// Token is the opaque bearer token sent on every request.
	Token string

	// PageSize is the default page size for list fetches.
	PageSize int

	// FetchTimeout bounds how long the UI waits on a page fetch or mutation
	// before giving up client-side. The underlying request is not canceled
	// by the engine's wait state, only by this context deadline.
	FetchTimeout time.Duration

	// LogLevel and LogFile configure the logger.
	LogLevel string
	LogFile  string

	// CachePath is the sqlite file for the offline snapshot cache. Empty
	// disables the cache.
	CachePath string

	// OTLPEndpoint enables trace export when set.
	OTLPEndpoint string
}

// Load reads configuration from the environment. A .env file in the working
// directory is honored when present; its absence is not an error.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.WarnWithFields("Failed to load .env file", err)
	}

	cfg := &Config{
		APIURL:       getEnv("FEEDSYNC_API_URL", "http://localhost:8787"),
		WSURL:        os.Getenv("FEEDSYNC_WS_URL"),
		Token:        os.Getenv("FEEDSYNC_TOKEN"),
		PageSize:     getEnvInt("FEEDSYNC_PAGE_SIZE", 20),
		FetchTimeout: getEnvDuration("FEEDSYNC_FETCH_TIMEOUT", 10*time.Second),
		LogLevel:     getEnv("FEEDSYNC_LOG_LEVEL", "info"),
		LogFile:      getEnv("FEEDSYNC_LOG_FILE", "feedsync.log"),
		CachePath:    os.Getenv("FEEDSYNC_CACHE_PATH"),
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if cfg.WSURL == "" {
		cfg.WSURL = cfg.APIURL + "/ws"
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 20
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
