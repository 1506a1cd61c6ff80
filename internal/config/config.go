package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/i474232898/weather-tracker/internal/common"
	"github.com/i474232898/weather-tracker/internal/weather"
)

type AppConfig struct {
	OpenWeatherAPIKey string
	WeatherAPIKey     string
	GeocoderAPIKey    string

	// Units is passed to providers: "metric" or "imperial".
	Units string

	HTTPTimeout  time.Duration // per outbound HTTP request
	FetchTimeout time.Duration // per resolution, including retries and fallbacks

	// DebounceInterval is the quiet period before a location is resolved.
	DebounceInterval time.Duration

	// RefreshInterval re-submits the latest location (0 = disabled).
	RefreshInterval time.Duration

	DefaultLocation string

	RedisURL  string // empty = in-memory cache
	CacheFile string // optional JSON snapshot for the in-memory cache

	KafkaBrokers []string // empty = no publishing
	KafkaTopic   string

	Port string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.WeatherAPIKey = os.Getenv("WEATHERAPI_API_KEY")
	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")

	cfg.Units = getenvDefault("WEATHER_UNITS", "metric")
	if cfg.Units != "metric" && cfg.Units != "imperial" {
		return nil, fmt.Errorf("invalid WEATHER_UNITS %q: want metric or imperial", cfg.Units)
	}

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = getenvDuration("FETCH_TIMEOUT", "30s"); err != nil {
		return nil, err
	}
	if cfg.DebounceInterval, err = getenvDuration("DEBOUNCE_INTERVAL", weather.DefaultQuietInterval.String()); err != nil {
		return nil, err
	}
	if cfg.RefreshInterval, err = getenvDuration("REFRESH_INTERVAL", "0"); err != nil {
		return nil, err
	}

	cfg.DefaultLocation = os.Getenv("DEFAULT_LOCATION")
	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.CacheFile = os.Getenv("CACHE_FILE")

	cfg.KafkaBrokers = common.SplitList(os.Getenv("KAFKA_BROKERS"))
	cfg.KafkaTopic = getenvDefault("KAFKA_TOPIC", "weather-updates")

	cfg.Port = getenvDefault("PORT", "8080")
	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return d, nil
}
