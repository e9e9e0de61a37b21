// Package elevation estimates the elevation of a point from cached samples
// around it.
package elevation

import (
	"time"

	"geocache/location-server/internal/geo"
	"geocache/location-server/internal/model"
)

// Interpolate estimates the elevation at q from its plateau neighbourhood.
//
// A lone neighbour inside geo.SameCity is returned unchanged. Two or more
// neighbours are combined with weights w_i = 1 - d_i/Σd, where d_i is the
// squared distance to q, and the weighted sum is divided by n-1 (the sum of
// the weights). The result is ephemeral and tagged as interpolated.
//
// The second return value is false when no estimate is possible.
func Interpolate(q model.Coordinate, neighbours []model.ElevationSample, now time.Time) (model.ElevationSample, bool) {
	n := len(neighbours)
	if n == 0 {
		return model.ElevationSample{}, false
	}

	distances := make([]float64, n)
	var sum float64
	for i, s := range neighbours {
		d := geo.Distance(q, s.Coordinate)
		distances[i] = d * d
		sum += distances[i]
	}

	if n == 1 {
		if distances[0] <= geo.SameCity*geo.SameCity {
			return neighbours[0], true
		}
		return model.ElevationSample{}, false
	}

	var weighted float64
	if sum == 0 {
		// All samples sit on q: uniform weights of (n-1)/n.
		for _, s := range neighbours {
			weighted += s.Elevation * float64(n-1) / float64(n)
		}
	} else {
		for i, s := range neighbours {
			weighted += (1 - distances[i]/sum) * s.Elevation
		}
	}

	return model.ElevationSample{
		ID:         model.EphemeralID,
		Coordinate: q,
		Elevation:  weighted / float64(n-1),
		CapturedAt: now,
		Origin:     model.OriginInterpolated,
	}, true
}
