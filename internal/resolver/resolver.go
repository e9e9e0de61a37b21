// Package resolver turns coordinates into places and elevations, answering
// from the spatial cache when it can and from the network geocoder when it
// must.
package resolver

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"time"

	"geocache/location-server/internal/geo"
	"geocache/location-server/internal/locale"
	"geocache/location-server/internal/metrics"
	"geocache/location-server/internal/model"
	"geocache/location-server/internal/store"
)

// Store is the spatial cache the resolver reads and writes.
type Store interface {
	Addresses(ctx context.Context, language string, filter func(model.AddressRecord) bool) iter.Seq[model.AddressRecord]
	UpsertAddress(ctx context.Context, rec model.AddressRecord) (int64, error)
	DeleteAddress(ctx context.Context, id int64) bool

	QueryElevations(ctx context.Context, filter func(model.ElevationSample) bool) []model.ElevationSample
	UpsertElevation(ctx context.Context, sample model.ElevationSample) (int64, error)

	QueryCities(ctx context.Context, filter func(model.CityRecord) bool) []model.CityRecord
	UpsertCity(ctx context.Context, city model.CityRecord) (int64, error)
	DeleteCity(ctx context.Context, id int64) bool
}

// Geocoder is the network collaborator consulted on a cache miss.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, at model.Coordinate, maxResults int) ([]model.Place, error)
	FetchElevation(ctx context.Context, at model.Coordinate) (model.ElevationSample, error)
}

// Gazetteer supplies the built-in cities.
type Gazetteer interface {
	ListCities() []model.CityRecord
	Lookup(id int64) (model.CityRecord, bool)
}

// Options carries the resolver's collaborators. Store is required; a nil
// Geocoder disables network fallback and a nil Gazetteer lists no cities.
type Options struct {
	Store      Store
	Geocoder   Geocoder
	Gazetteer  Gazetteer
	Locale     locale.Provider
	Logger     *slog.Logger
	Clock      func() time.Time
	MaxResults int
}

// Resolver coordinates cache lookups, network fallback and the city
// directory.
type Resolver struct {
	store      Store
	geocoder   Geocoder
	gazetteer  Gazetteer
	locale     locale.Provider
	logger     *slog.Logger
	now        func() time.Time
	maxResults int
}

// New builds a Resolver.
func New(opts Options) (*Resolver, error) {
	if opts.Store == nil {
		return nil, errors.New("resolver: store is required")
	}
	r := &Resolver{
		store:      opts.Store,
		geocoder:   opts.Geocoder,
		gazetteer:  opts.Gazetteer,
		locale:     opts.Locale,
		logger:     opts.Logger,
		now:        opts.Clock,
		maxResults: opts.MaxResults,
	}
	if r.locale == nil {
		r.locale = locale.Static{}
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.maxResults <= 0 {
		r.maxResults = 5
	}
	return r, nil
}

// Language is the language stamped on addresses resolved now.
func (r *Resolver) Language() string {
	return r.locale.Language()
}

// Resolve returns the place at c. A cached address within geo.SameLocation
// wins, nearest first; otherwise the network geocoder is asked and its
// answer cached. An invalid coordinate is the only error; a point nobody can
// name resolves to (nil, nil).
func (r *Resolver) Resolve(ctx context.Context, c model.Coordinate) (model.Place, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	start := r.now()
	metrics.ResolveRequestsTotal.Inc()
	defer func() {
		metrics.ResolveDurationMs.Observe(float64(r.now().Sub(start).Milliseconds()))
	}()

	lang := r.locale.Language()
	if hit, ok := r.lookupAddress(ctx, c, lang); ok {
		metrics.CacheLookupsTotal.WithLabelValues("address", "hit").Inc()
		r.logger.Debug("address cache hit", "id", hit.ID, "lat", c.Latitude, "lon", c.Longitude)
		return hit, nil
	}
	metrics.CacheLookupsTotal.WithLabelValues("address", "miss").Inc()

	place := r.fetchPlace(ctx, c)
	if place == nil {
		metrics.UnresolvedTotal.Inc()
		return nil, nil
	}
	return r.remember(ctx, c, lang, place), nil
}

func (r *Resolver) lookupAddress(ctx context.Context, c model.Coordinate, lang string) (model.AddressRecord, bool) {
	var (
		best     model.AddressRecord
		bestDist float64
		found    bool
	)
	for a := range r.store.Addresses(ctx, lang, geo.AddressMatcher(c)) {
		d := geo.AddressDistance(c, a)
		if !found || d < bestDist {
			best, bestDist, found = a, d, true
		}
	}
	return best, found
}

func (r *Resolver) fetchPlace(ctx context.Context, c model.Coordinate) model.Place {
	if r.geocoder == nil {
		return nil
	}

	start := time.Now()
	places, err := r.geocoder.ReverseGeocode(ctx, c, r.maxResults)
	metrics.NetworkDurationMs.WithLabelValues("reverse").Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.NetworkRequestsTotal.WithLabelValues("reverse", "error").Inc()
		r.logger.Warn("reverse geocode failed", "lat", c.Latitude, "lon", c.Longitude, "error", err)
		return nil
	}
	for _, p := range places {
		if p != nil {
			metrics.NetworkRequestsTotal.WithLabelValues("reverse", "ok").Inc()
			return p
		}
	}
	metrics.NetworkRequestsTotal.WithLabelValues("reverse", "empty").Inc()
	return nil
}

// remember persists a network answer according to its kind and returns the
// record as stored.
func (r *Resolver) remember(ctx context.Context, c model.Coordinate, lang string, p model.Place) model.Place {
	switch v := p.(type) {
	case model.AddressRecord:
		v.ID = model.UnsavedID
		v.Query = c
		v.Language = lang
		v.UpdatedAt = r.now()
		id, err := r.store.UpsertAddress(ctx, v)
		if err != nil {
			r.logger.Warn("address not cached", "error", err)
			return v
		}
		v.ID = id
		r.logger.Info("address resolved from network", "id", id, "language", lang)
		return v
	case model.CityRecord:
		v.AccessedAt = r.now()
		id, err := r.store.UpsertCity(ctx, v)
		if err != nil {
			r.logger.Warn("city not cached", "error", err)
			return v
		}
		v.ID = id
		return v
	case model.CountryRecord:
		return v
	}
	return p
}

// isNotPersistable reports whether err only says the record cannot be saved.
func isNotPersistable(err error) bool {
	return errors.Is(err, store.ErrNotPersistable)
}
