// Package geo decides when two coordinates are close enough to share cached
// addresses, elevations or a city bucket.
package geo

import (
	"math"

	"geocache/location-server/internal/model"
)

// EarthRadius is the mean Earth radius in metres.
const EarthRadius = 6371008.8

// Distance thresholds in metres, from tightest to loosest.
const (
	// SameLocation is the radius within which two points share an address.
	SameLocation = 250.0
	// SameCity is the radius within which a single elevation sample is
	// trusted as-is, and the size of a city bucket.
	SameCity = 15000.0
	// SamePlateau is the radius of the elevation interpolation neighbourhood.
	SamePlateau = 50000.0
)

// Distance returns the great-circle distance between a and b in metres
// using the haversine formula.
func Distance(a, b model.Coordinate) float64 {
	φ1 := radians(a.Latitude)
	φ2 := radians(b.Latitude)
	Δφ := radians(b.Latitude - a.Latitude)
	Δλ := radians(b.Longitude - a.Longitude)

	h := math.Sin(Δφ/2)*math.Sin(Δφ/2) +
		math.Cos(φ1)*math.Cos(φ2)*math.Sin(Δλ/2)*math.Sin(Δλ/2)
	if h > 1 {
		h = 1
	}
	return 2 * EarthRadius * math.Asin(math.Sqrt(h))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// IsSameLocation reports whether a and b are within SameLocation.
func IsSameLocation(a, b model.Coordinate) bool {
	return Distance(a, b) <= SameLocation
}

// IsSameCity reports whether a and b are within SameCity.
func IsSameCity(a, b model.Coordinate) bool {
	return Distance(a, b) <= SameCity
}

// IsSamePlateau reports whether a and b are within SamePlateau.
func IsSamePlateau(a, b model.Coordinate) bool {
	return Distance(a, b) <= SamePlateau
}
