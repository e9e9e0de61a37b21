// Package geocoder talks to the reverse geocoding and elevation services used
// when the local cache has no answer.
package geocoder

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"geocache/location-server/internal/locale"
)

const (
	DefaultNominatimURL = "https://nominatim.openstreetmap.org"
	DefaultElevationURL = "https://api.open-elevation.com/api/v1/lookup"
	DefaultUserAgent    = "geocache-location-server/1.0"
)

// ErrNoResults is returned when a service answers but knows nothing about
// the requested point.
var ErrNoResults = errors.New("no results")

// Config configures a Client. Zero values select defaults.
type Config struct {
	NominatimURL   string
	ElevationURL   string
	UserAgent      string
	RequestsPerSec float64
	Timeout        time.Duration
	Backoff        BackoffConfig
	Locale         locale.Provider
	HTTPClient     *http.Client
}

// Client is a rate-limited Nominatim and Open-Elevation client.
type Client struct {
	nominatimURL string
	elevationURL string
	userAgent    string
	locale       locale.Provider
	http         *http.Client
	limiter      *rate.Limiter
	backoff      BackoffConfig

	reverseCB   *gobreaker.CircuitBreaker
	elevationCB *gobreaker.CircuitBreaker
}

// New builds a Client from cfg.
func New(cfg Config) *Client {
	if cfg.NominatimURL == "" {
		cfg.NominatimURL = DefaultNominatimURL
	}
	if cfg.ElevationURL == "" {
		cfg.ElevationURL = DefaultElevationURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Backoff.InitialInterval <= 0 {
		cfg.Backoff = BackoffConfig{
			MaxRetries:      2,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		}
	}
	if cfg.Locale == nil {
		cfg.Locale = locale.Static{}
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		nominatimURL: strings.TrimRight(cfg.NominatimURL, "/"),
		elevationURL: cfg.ElevationURL,
		userAgent:    cfg.UserAgent,
		locale:       cfg.Locale,
		http:         cfg.HTTPClient,
		limiter:      rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1),
		backoff:      cfg.Backoff,
		reverseCB:    newBreaker("nominatim"),
		elevationCB:  newBreaker("open-elevation"),
	}
}
