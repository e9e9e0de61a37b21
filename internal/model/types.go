package model

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidCoordinate is returned when a latitude or longitude is out of range.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

const (
	// UnsavedID marks a record that has not been written to the store yet.
	UnsavedID int64 = 0
	// EphemeralID marks a record that must never be persisted.
	EphemeralID int64 = -1
)

// Coordinate is a WGS84 latitude/longitude pair in degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate rejects coordinates outside [-90,90] x [-180,180].
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Latitude) || c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("%w: latitude == %v", ErrInvalidCoordinate, c.Latitude)
	}
	if math.IsNaN(c.Longitude) || c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: longitude == %v", ErrInvalidCoordinate, c.Longitude)
	}
	return nil
}

// Kind tags the variants of Place.
type Kind string

const (
	KindAddress Kind = "address"
	KindCity    Kind = "city"
	KindCountry Kind = "country"
)

// ParseKind maps a path or query value onto a Kind.
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindAddress, KindCity, KindCountry:
		return Kind(s), true
	}
	return "", false
}

// Place is a resolved location. The set of implementations is closed:
// AddressRecord, CityRecord and CountryRecord.
type Place interface {
	Kind() Kind
	PlaceID() int64
	Point() Coordinate
	Label() string
	IsFavorite() bool

	place()
}

// AddressRecord is an address resolved by a geocoder for a query point.
type AddressRecord struct {
	ID        int64      `json:"id"`
	Query     Coordinate `json:"query"`
	Resolved  Coordinate `json:"resolved"`
	Formatted string     `json:"formatted"`
	// Language is empty for language-neutral records.
	Language  string    `json:"language,omitempty"`
	Favorite  bool      `json:"favorite"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a AddressRecord) Kind() Kind        { return KindAddress }
func (a AddressRecord) PlaceID() int64    { return a.ID }
func (a AddressRecord) Point() Coordinate { return a.Resolved }
func (a AddressRecord) Label() string     { return a.Formatted }
func (a AddressRecord) IsFavorite() bool  { return a.Favorite }
func (AddressRecord) place()              {}

// CityRecord is an entry of the built-in gazetteer. Its id is derived from
// the coordinate bucket, not assigned by the store.
type CityRecord struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Country    string     `json:"country"`
	TimeZone   string     `json:"time_zone,omitempty"`
	Coordinate Coordinate `json:"coordinate"`
	Favorite   bool       `json:"favorite"`
	AccessedAt time.Time  `json:"accessed_at,omitempty"`
}

func (c CityRecord) Kind() Kind        { return KindCity }
func (c CityRecord) PlaceID() int64    { return c.ID }
func (c CityRecord) Point() Coordinate { return c.Coordinate }
func (c CityRecord) Label() string     { return c.Name }
func (c CityRecord) IsFavorite() bool  { return c.Favorite }
func (CityRecord) place()              {}

// CountryRecord is a coarse, country-level answer. It is never persisted.
type CountryRecord struct {
	Code       string     `json:"code"`
	Name       string     `json:"name"`
	Coordinate Coordinate `json:"coordinate"`
}

func (c CountryRecord) Kind() Kind        { return KindCountry }
func (c CountryRecord) PlaceID() int64    { return EphemeralID }
func (c CountryRecord) Point() Coordinate { return c.Coordinate }
func (c CountryRecord) Label() string     { return c.Name }
func (c CountryRecord) IsFavorite() bool  { return false }
func (CountryRecord) place()              {}

// Origin says where an elevation value came from.
type Origin string

const (
	OriginStored       Origin = "stored"
	OriginNetwork      Origin = "network"
	OriginInterpolated Origin = "interpolated"
)

// ElevationSample is an elevation in metres at a coordinate.
type ElevationSample struct {
	ID         int64      `json:"id"`
	Coordinate Coordinate `json:"coordinate"`
	Elevation  float64    `json:"elevation"`
	CapturedAt time.Time  `json:"captured_at"`
	Origin     Origin     `json:"origin"`
}
