package geo

import (
	"math"
	"testing"

	"geocache/location-server/internal/model"
)

var (
	jerusalem = model.Coordinate{Latitude: 31.7683, Longitude: 35.2137}
	telAviv   = model.Coordinate{Latitude: 32.0853, Longitude: 34.7818}
	newYork   = model.Coordinate{Latitude: 40.7128, Longitude: -74.0060}
)

func TestDistanceSymmetryAndIdentity(t *testing.T) {
	points := []model.Coordinate{jerusalem, telAviv, newYork, {Latitude: -89.9, Longitude: 179.9}, {}}
	for _, a := range points {
		if d := Distance(a, a); d != 0 {
			t.Fatalf("Distance(%v, %v) = %v, want 0", a, a, d)
		}
		for _, b := range points {
			if ab, ba := Distance(a, b), Distance(b, a); math.Abs(ab-ba) > 1e-6 {
				t.Fatalf("asymmetric distance %v vs %v for %v, %v", ab, ba, a, b)
			}
		}
	}
}

func TestDistanceKnownValues(t *testing.T) {
	tests := []struct {
		name string
		a, b model.Coordinate
		want float64
		tol  float64
	}{
		{"jerusalem-telaviv", jerusalem, telAviv, 54000, 1500},
		{"one degree of longitude at equator", model.Coordinate{}, model.Coordinate{Longitude: 1}, 111195, 5},
		{"antipodes", model.Coordinate{}, model.Coordinate{Longitude: 180}, math.Pi * EarthRadius, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.a, tt.b)
			if math.Abs(got-tt.want) > tt.tol {
				t.Fatalf("Distance = %.1f, want %.1f ± %.1f", got, tt.want, tt.tol)
			}
		})
	}
}

func TestThresholdOrdering(t *testing.T) {
	if !(SameLocation < SameCity && SameCity < SamePlateau) {
		t.Fatalf("thresholds out of order: %v %v %v", SameLocation, SameCity, SamePlateau)
	}
}

func TestAddressMatcher(t *testing.T) {
	q := jerusalem
	near := model.Coordinate{Latitude: q.Latitude + 0.001, Longitude: q.Longitude}
	far := telAviv

	match := AddressMatcher(q)
	tests := []struct {
		name string
		rec  model.AddressRecord
		want bool
	}{
		{"query coordinate near", model.AddressRecord{Query: near, Resolved: far}, true},
		{"resolved coordinate near", model.AddressRecord{Query: far, Resolved: near}, true},
		{"both far", model.AddressRecord{Query: far, Resolved: newYork}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := match(tt.rec); got != tt.want {
				t.Fatalf("match = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestElevationMatcher(t *testing.T) {
	match := ElevationMatcher(jerusalem)
	if !match(model.ElevationSample{Coordinate: model.Coordinate{Latitude: 31.9, Longitude: 35.2}}) {
		t.Fatal("expected sample 15km away to be in the plateau")
	}
	if match(model.ElevationSample{Coordinate: newYork}) {
		t.Fatal("expected new york to be outside the plateau")
	}
}

func TestCityIDDeterministic(t *testing.T) {
	a := CityID(jerusalem)
	b := CityID(model.Coordinate{Latitude: jerusalem.Latitude + 0.0001, Longitude: jerusalem.Longitude - 0.0001})
	if CityBucket(jerusalem) != CityBucket(model.Coordinate{Latitude: jerusalem.Latitude + 0.0001, Longitude: jerusalem.Longitude - 0.0001}) {
		t.Skip("test points straddle a bucket edge")
	}
	if a != b {
		t.Fatalf("same bucket produced ids %d and %d", a, b)
	}
	if a <= 0 {
		t.Fatalf("city id must be positive, got %d", a)
	}
	if CityID(jerusalem) != a {
		t.Fatal("re-deriving the same coordinate changed the id")
	}
}

func TestCityIDDistinctBuckets(t *testing.T) {
	seen := make(map[int64]Bucket)
	for lat := -80.0; lat <= 80; lat += 2.5 {
		for lon := -170.0; lon <= 170; lon += 2.5 {
			c := model.Coordinate{Latitude: lat, Longitude: lon}
			id := CityID(c)
			if prev, ok := seen[id]; ok && prev != CityBucket(c) {
				t.Fatalf("buckets %v and %v collide on %d", prev, CityBucket(c), id)
			}
			seen[id] = CityBucket(c)
		}
	}
}

func TestCityBucketFoldsAntimeridian(t *testing.T) {
	east := model.Coordinate{Latitude: -16.5, Longitude: 180}
	west := model.Coordinate{Latitude: -16.5, Longitude: -180}
	if d := Distance(east, west); d > 1e-3 {
		t.Fatalf("distance across the antimeridian = %v, want ~0", d)
	}
	if CityBucket(east) != CityBucket(west) || CityID(east) != CityID(west) {
		t.Fatalf("buckets %v and %v differ for the same meridian", CityBucket(east), CityBucket(west))
	}
	if CityBucket(model.Coordinate{Longitude: 179.5}) == CityBucket(model.Coordinate{Longitude: -179.5}) {
		t.Fatal("distinct longitudes near the antimeridian should keep their own buckets")
	}
}
