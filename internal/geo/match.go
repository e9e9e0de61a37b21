package geo

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"

	"geocache/location-server/internal/model"
)

// AddressMatcher accepts cached addresses that either were asked about near q
// or resolved to a point near q.
func AddressMatcher(q model.Coordinate) func(model.AddressRecord) bool {
	return func(a model.AddressRecord) bool {
		return IsSameLocation(q, a.Query) || IsSameLocation(q, a.Resolved)
	}
}

// AddressDistance is the smaller of the distances from q to the record's
// query and resolved coordinates.
func AddressDistance(q model.Coordinate, a model.AddressRecord) float64 {
	return math.Min(Distance(q, a.Query), Distance(q, a.Resolved))
}

// ElevationMatcher accepts samples in the plateau around q.
func ElevationMatcher(q model.Coordinate) func(model.ElevationSample) bool {
	return func(s model.ElevationSample) bool {
		return IsSamePlateau(q, s.Coordinate)
	}
}

// bucketDegrees is SameCity metres of arc along a meridian.
var bucketDegrees = SameCity / (EarthRadius * math.Pi / 180)

// Bucket is a coordinate rounded onto the city grid.
type Bucket struct {
	Lat int64
	Lon int64
}

// CityBucket rounds c onto the SameCity-sized grid. Longitude 180 is folded
// onto -180 so the antimeridian has one bucket.
func CityBucket(c model.Coordinate) Bucket {
	lon := c.Longitude
	if lon >= 180 {
		lon -= 360
	}
	return Bucket{
		Lat: int64(math.Round(c.Latitude / bucketDegrees)),
		Lon: int64(math.Round(lon / bucketDegrees)),
	}
}

// ID hashes the bucket into a positive, non-zero identifier.
func (b Bucket) ID() int64 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], uint64(b.Lat))
	binary.LittleEndian.PutUint64(buf[8:], uint64(b.Lon))
	id := int64(xxhash.Sum64(buf[:]) & math.MaxInt64)
	if id == 0 {
		return 1
	}
	return id
}

// CityID is the stable identity of the city bucket containing c.
func CityID(c model.Coordinate) int64 {
	return CityBucket(c).ID()
}
