package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/grandcat/zeroconf"

	"geocache/location-server/internal/config"
	"geocache/location-server/internal/gazetteer"
	"geocache/location-server/internal/geocoder"
	"geocache/location-server/internal/locale"
	"geocache/location-server/internal/metrics"
	"geocache/location-server/internal/resolver"
	"geocache/location-server/internal/scheduler"
	"geocache/location-server/internal/store"
)

// App wires together the location services and manages their lifecycle.
type App struct {
	cfg       config.Config
	logger    *slog.Logger
	store     *store.Store
	gazetteer *gazetteer.Gazetteer
	resolver  *resolver.Resolver
	scheduler *scheduler.Scheduler
	mqtt      mqtt.Client
	mdns      *zeroconf.Server
}

// New constructs a new application instance.
func New(cfg config.Config, logger *slog.Logger) *App {
	return &App{cfg: cfg, logger: logger}
}

// setup opens the store and builds the resolver. A store that cannot be
// opened is replaced by a disabled one so resolution keeps working from the
// network alone.
func (a *App) setup(ctx context.Context) error {
	db, err := store.Open(ctx, a.cfg.DatabasePath,
		store.WithLogger(a.logger),
		store.WithRetention(a.cfg.Retention),
	)
	if err != nil {
		a.logger.Error("store unavailable, caching disabled", "path", a.cfg.DatabasePath, "error", err)
		db = store.Disabled(a.logger)
	}
	a.store = db

	if a.cfg.GazetteerPath != "" {
		a.gazetteer, err = gazetteer.LoadFile(a.cfg.GazetteerPath, a.logger)
	} else {
		a.gazetteer, err = gazetteer.Default(a.logger)
	}
	if err != nil {
		return err
	}

	loc, err := locale.Parse(a.cfg.Locale)
	if err != nil {
		return err
	}

	gc := geocoder.New(geocoder.Config{
		NominatimURL:   a.cfg.NominatimURL,
		ElevationURL:   a.cfg.ElevationURL,
		UserAgent:      a.cfg.GeocoderUserAgent,
		RequestsPerSec: a.cfg.GeocoderRPS,
		Timeout:        a.cfg.GeocoderTimeout,
		Locale:         loc,
	})

	a.resolver, err = resolver.New(resolver.Options{
		Store:      a.store,
		Geocoder:   gc,
		Gazetteer:  a.gazetteer,
		Locale:     loc,
		Logger:     a.logger,
		MaxResults: a.cfg.MaxResults,
	})
	if err != nil {
		return err
	}

	a.scheduler = scheduler.New(a.store, a.cfg.Retention, a.cfg.PruneInterval, a.logger)

	a.logger.Info("resolver ready",
		"language", loc.Language(),
		"country", loc.Country(),
		"cities", a.gazetteer.Len(),
		"cache", a.store.Available(),
	)
	return nil
}

// Run starts all configured services and blocks until the context is cancelled or an error occurs.
func (a *App) Run(ctx context.Context) error {
	if err := a.setup(ctx); err != nil {
		return err
	}
	defer func() {
		if cerr := a.store.Close(); cerr != nil {
			a.logger.Error("close store", "error", cerr)
		}
	}()

	if err := a.scheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer a.scheduler.Stop()

	if a.cfg.MQTTBroker != "" {
		if err := a.startMQTT(); err != nil {
			return err
		}
		defer a.stopMQTT()
	}

	httpErrCh := make(chan error, 2)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.HTTPPort),
		Handler:           a.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.logger.Info("http server started", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErrCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var metricsServer *http.Server
	if a.cfg.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", a.cfg.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			a.logger.Info("metrics server started", "addr", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				httpErrCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	if a.cfg.MDNS {
		if err := a.startMDNS(a.cfg.HTTPPort); err != nil {
			a.logger.Warn("mDNS advertisement failed", "error", err)
		}
		defer a.stopMDNS()
	}

	shutdown := func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var errs []error
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http server shutdown: %w", err))
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
			}
		}
		a.logger.Info("http servers stopped")
		return errors.Join(errs...)
	}

	select {
	case <-ctx.Done():
		return shutdown()
	case err := <-httpErrCh:
		_ = shutdown()
		return err
	}
}
