package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	AmapAPIKey     string
	QWeatherAPIKey string

	// RemoteBaseURL is the diary service endpoint; empty means the
	// engine starts in local mode with nothing to sync against.
	RemoteBaseURL string

	// StorageMode is the startup mode; a persisted mode overrides it.
	StorageMode string

	// SyncInterval controls how often the background reconciliation runs.
	SyncInterval time.Duration

	// WeatherCacheTTL bounds how long a resolved report is served
	// without asking a provider again.
	WeatherCacheTTL time.Duration

	// ForceNight pins the night presentation regardless of clock time.
	ForceNight bool

	DBPath string
	Port   string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.AmapAPIKey = os.Getenv("AMAP_API_KEY")
	cfg.QWeatherAPIKey = os.Getenv("QWEATHER_API_KEY")
	cfg.RemoteBaseURL = os.Getenv("DIARY_REMOTE_URL")

	cfg.StorageMode = getenvDefault("STORAGE_MODE", "hybrid")
	switch cfg.StorageMode {
	case "local", "cloud", "hybrid":
	default:
		return nil, fmt.Errorf("invalid STORAGE_MODE: %q", cfg.StorageMode)
	}

	intervalStr := getenvDefault("SYNC_INTERVAL", "5m")
	interval, err := time.ParseDuration(intervalStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SYNC_INTERVAL: %w", err)
	}
	cfg.SyncInterval = interval

	ttlStr := getenvDefault("WEATHER_CACHE_TTL", "30m")
	ttl, err := time.ParseDuration(ttlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid WEATHER_CACHE_TTL: %w", err)
	}
	cfg.WeatherCacheTTL = ttl

	cfg.ForceNight = getenvBool("FORCE_NIGHT", false)
	cfg.DBPath = getenvDefault("DB_PATH", "weather-diary.db")
	cfg.Port = getenvDefault("PORT", "8080")

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}
