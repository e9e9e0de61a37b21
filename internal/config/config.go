package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config lists the tunable parameters for the location server.
type Config struct {
	HTTPPort     int
	MetricsPort  int
	DatabasePath string
	LogLevel     string
	Locale       string
	Retention    time.Duration

	PruneInterval time.Duration

	GazetteerPath string

	NominatimURL      string
	ElevationURL      string
	GeocoderUserAgent string
	GeocoderRPS       float64
	GeocoderTimeout   time.Duration
	MaxResults        int

	MQTTBroker      string
	MQTTClientID    string
	MQTTTopicPrefix string

	MDNS bool
}

const (
	defaultHTTPPort          = 8080
	defaultMetricsPort       = 9090
	defaultDatabasePath      = "data/geocache.db"
	defaultLogLevel          = "info"
	defaultLocale            = "en-US"
	defaultRetention         = 365 * 24 * time.Hour
	defaultPruneInterval     = 24 * time.Hour
	defaultGeocoderUserAgent = "geocache-location-server/1.0"
	defaultGeocoderRPS       = 1
	defaultGeocoderTimeout   = 10 * time.Second
	defaultMaxResults        = 5
	defaultMQTTTopicPrefix   = "geocache"

	envPrefix = "GEOCACHE_"
)

// Load derives configuration values from environment variables, falling back
// to defaults. A .env file in the working directory is read first when
// present; variables already set in the environment win.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not read .env file", "error", err)
	}

	cfg := Config{
		HTTPPort:          defaultHTTPPort,
		MetricsPort:       defaultMetricsPort,
		DatabasePath:      getenvDefault("DATABASE_PATH", defaultDatabasePath),
		LogLevel:          getenvDefault("LOG_LEVEL", defaultLogLevel),
		Locale:            getenvDefault("LOCALE", defaultLocale),
		Retention:         defaultRetention,
		PruneInterval:     defaultPruneInterval,
		GazetteerPath:     getenvDefault("GAZETTEER_PATH", ""),
		NominatimURL:      getenvDefault("NOMINATIM_URL", ""),
		ElevationURL:      getenvDefault("ELEVATION_URL", ""),
		GeocoderUserAgent: getenvDefault("GEOCODER_USER_AGENT", defaultGeocoderUserAgent),
		GeocoderRPS:       defaultGeocoderRPS,
		GeocoderTimeout:   defaultGeocoderTimeout,
		MaxResults:        defaultMaxResults,
		MQTTBroker:        getenvDefault("MQTT_BROKER", ""),
		MQTTClientID:      getenvDefault("MQTT_CLIENT_ID", ""),
		MQTTTopicPrefix:   strings.Trim(getenvDefault("MQTT_TOPIC_PREFIX", defaultMQTTTopicPrefix), "/"),
	}

	var err error
	if cfg.HTTPPort, err = getenvInt("HTTP_PORT", cfg.HTTPPort); err != nil {
		return Config{}, err
	}
	if cfg.MetricsPort, err = getenvInt("METRICS_PORT", cfg.MetricsPort); err != nil {
		return Config{}, err
	}
	if cfg.MaxResults, err = getenvInt("MAX_RESULTS", cfg.MaxResults); err != nil {
		return Config{}, err
	}
	if cfg.Retention, err = getenvDuration("RETENTION", cfg.Retention); err != nil {
		return Config{}, err
	}
	if cfg.PruneInterval, err = getenvDuration("PRUNE_INTERVAL", cfg.PruneInterval); err != nil {
		return Config{}, err
	}
	if cfg.GeocoderTimeout, err = getenvDuration("GEOCODER_TIMEOUT", cfg.GeocoderTimeout); err != nil {
		return Config{}, err
	}

	if v := os.Getenv(envPrefix + "GEOCODER_RPS"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil || rps <= 0 {
			return Config{}, fmt.Errorf("invalid %sGEOCODER_RPS: %q", envPrefix, v)
		}
		cfg.GeocoderRPS = rps
	}

	if v := os.Getenv(envPrefix + "MDNS"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %sMDNS: %w", envPrefix, err)
		}
		cfg.MDNS = enabled
	}

	if cfg.Retention <= 0 {
		return Config{}, fmt.Errorf("invalid %sRETENTION: must be positive", envPrefix)
	}
	if cfg.MaxResults <= 0 {
		return Config{}, fmt.Errorf("invalid %sMAX_RESULTS: must be positive", envPrefix)
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(envPrefix + key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s%s: %w", envPrefix, key, err)
	}
	return n, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s%s: %w", envPrefix, key, err)
	}
	return d, nil
}
