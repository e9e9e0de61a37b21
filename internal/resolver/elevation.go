package resolver

import (
	"context"
	"time"

	"geocache/location-server/internal/elevation"
	"geocache/location-server/internal/geo"
	"geocache/location-server/internal/metrics"
	"geocache/location-server/internal/model"
)

// Elevation returns the elevation at c. Cached samples on the plateau around
// c are interpolated first; when they cannot produce an estimate the network
// is asked and its sample cached. ok is false when no value is available.
func (r *Resolver) Elevation(ctx context.Context, c model.Coordinate) (model.ElevationSample, bool, error) {
	if err := c.Validate(); err != nil {
		return model.ElevationSample{}, false, err
	}

	neighbours := r.store.QueryElevations(ctx, geo.ElevationMatcher(c))
	if est, ok := elevation.Interpolate(c, neighbours, r.now()); ok {
		metrics.CacheLookupsTotal.WithLabelValues("elevation", "hit").Inc()
		if est.Origin == model.OriginInterpolated {
			metrics.InterpolationsTotal.Inc()
		}
		return est, true, nil
	}
	metrics.CacheLookupsTotal.WithLabelValues("elevation", "miss").Inc()

	sample, ok := r.fetchElevation(ctx, c, neighbours)
	return sample, ok, nil
}

// RefreshElevation skips interpolation and fetches the elevation at c from
// the network. A cached sample within geo.SameLocation is updated in place.
func (r *Resolver) RefreshElevation(ctx context.Context, c model.Coordinate) (model.ElevationSample, bool, error) {
	if err := c.Validate(); err != nil {
		return model.ElevationSample{}, false, err
	}
	neighbours := r.store.QueryElevations(ctx, geo.ElevationMatcher(c))
	sample, ok := r.fetchElevation(ctx, c, neighbours)
	return sample, ok, nil
}

// EstimateElevation is Elevation reduced to its value in metres.
func (r *Resolver) EstimateElevation(ctx context.Context, c model.Coordinate) (float64, bool, error) {
	s, ok, err := r.Elevation(ctx, c)
	if err != nil || !ok {
		return 0, false, err
	}
	return s.Elevation, true, nil
}

func (r *Resolver) fetchElevation(ctx context.Context, c model.Coordinate, neighbours []model.ElevationSample) (model.ElevationSample, bool) {
	if r.geocoder == nil {
		return model.ElevationSample{}, false
	}

	start := time.Now()
	sample, err := r.geocoder.FetchElevation(ctx, c)
	metrics.NetworkDurationMs.WithLabelValues("elevation").Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.NetworkRequestsTotal.WithLabelValues("elevation", "error").Inc()
		r.logger.Warn("fetch elevation failed", "lat", c.Latitude, "lon", c.Longitude, "error", err)
		return model.ElevationSample{}, false
	}
	metrics.NetworkRequestsTotal.WithLabelValues("elevation", "ok").Inc()

	sample.ID = model.UnsavedID
	sample.Coordinate = c
	sample.CapturedAt = r.now()
	sample.Origin = model.OriginNetwork

	var nearest float64
	for _, n := range neighbours {
		if d := geo.Distance(c, n.Coordinate); d <= geo.SameLocation && (sample.ID == model.UnsavedID || d < nearest) {
			sample.ID, nearest = n.ID, d
		}
	}

	id, err := r.store.UpsertElevation(ctx, sample)
	if err != nil {
		r.logger.Warn("elevation not cached", "error", err)
		return sample, true
	}
	sample.ID = id
	return sample, true
}
