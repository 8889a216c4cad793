package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/i474232898/source-open-meteo/internal/logger"
	"github.com/i474232898/source-open-meteo/internal/openmeteo"
)

type AppConfig struct {
	// SourceConfigPath points at the connector's JSON configuration (serve mode).
	SourceConfigPath string

	// SyncInterval controls how often serve mode re-reads the streams.
	SyncInterval time.Duration

	// Outbound API settings.
	BaseURL        string
	HTTPTimeout    time.Duration
	MaxRetries     int
	RateLimitRPS   float64
	RateLimitBurst int

	// In-memory store retention.
	StoreMaxHistory int           // max number of batches per stream (0 = unlimited)
	StoreMaxAge     time.Duration // max age of batches (0 = unlimited)

	Port string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		logger.GetLogger().Debugw("no .env file loaded", "error", err)
	}
	cfg := &AppConfig{}

	cfg.SourceConfigPath = os.Getenv("SOURCE_CONFIG_PATH")
	cfg.BaseURL = getenvDefault("OPENMETEO_BASE_URL", openmeteo.BaseURL)
	cfg.Port = getenvDefault("PORT", "8080")

	var err error
	if cfg.SyncInterval, err = getenvDuration("SYNC_INTERVAL", "15m"); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "30s"); err != nil {
		return nil, err
	}
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", "24h"); err != nil {
		return nil, err
	}

	cfg.MaxRetries = getenvInt("HTTP_MAX_RETRIES", 3)
	cfg.RateLimitBurst = getenvInt("RATE_LIMIT_BURST", 1)
	cfg.StoreMaxHistory = getenvInt("STORE_MAX_HISTORY", 96) // roughly 24h at 15-minute intervals

	rps := getenvDefault("RATE_LIMIT_RPS", "0")
	if cfg.RateLimitRPS, err = strconv.ParseFloat(rps, 64); err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}

	return cfg, nil
}

// LoadSourceConfig reads the connector configuration from a JSON file.
func LoadSourceConfig(path string) (openmeteo.SourceConfig, error) {
	if path == "" {
		return openmeteo.SourceConfig{}, fmt.Errorf("source config path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return openmeteo.SourceConfig{}, fmt.Errorf("read source config: %w", err)
	}
	return openmeteo.ParseSourceConfig(data)
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
