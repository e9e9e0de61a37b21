// Package gazetteer holds the read-only dataset of built-in cities.
package gazetteer

import (
	"bytes"
	"embed"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/goccy/go-yaml"

	"geocache/location-server/internal/geo"
	"geocache/location-server/internal/model"
)

//go:embed data/cities.yaml
var builtin embed.FS

type document struct {
	Cities []entry `yaml:"cities"`
}

type entry struct {
	Name      string  `yaml:"name"`
	Country   string  `yaml:"country"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	TimeZone  string  `yaml:"time_zone"`
}

// Gazetteer is an immutable list of cities keyed by bucket id.
type Gazetteer struct {
	cities []model.CityRecord
	byID   map[int64]int
}

// Load parses a YAML city list. Cities with invalid coordinates are errors;
// a city whose bucket is already taken is skipped with a warning.
func Load(r io.Reader, logger *slog.Logger) (*Gazetteer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode gazetteer: %w", err)
	}

	g := &Gazetteer{byID: make(map[int64]int, len(doc.Cities))}
	for i, e := range doc.Cities {
		c := model.Coordinate{Latitude: e.Latitude, Longitude: e.Longitude}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("gazetteer city %d (%s): %w", i, e.Name, err)
		}

		id := geo.CityID(c)
		if prev, ok := g.byID[id]; ok {
			logger.Warn("gazetteer bucket collision, skipping city",
				"city", e.Name, "kept", g.cities[prev].Name, "id", id)
			continue
		}

		g.byID[id] = len(g.cities)
		g.cities = append(g.cities, model.CityRecord{
			ID:         id,
			Name:       e.Name,
			Country:    e.Country,
			TimeZone:   e.TimeZone,
			Coordinate: c,
		})
	}
	return g, nil
}

// LoadFile reads a YAML city list from path.
func LoadFile(path string, logger *slog.Logger) (*Gazetteer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gazetteer: %w", err)
	}
	defer f.Close()
	return Load(f, logger)
}

// Default returns the embedded city list.
func Default(logger *slog.Logger) (*Gazetteer, error) {
	b, err := builtin.ReadFile("data/cities.yaml")
	if err != nil {
		return nil, fmt.Errorf("read builtin gazetteer: %w", err)
	}
	return Load(bytes.NewReader(b), logger)
}

// ListCities returns a copy of every city.
func (g *Gazetteer) ListCities() []model.CityRecord {
	if g == nil {
		return nil
	}
	out := make([]model.CityRecord, len(g.cities))
	copy(out, g.cities)
	return out
}

// Lookup returns the city with the given bucket id.
func (g *Gazetteer) Lookup(id int64) (model.CityRecord, bool) {
	if g == nil {
		return model.CityRecord{}, false
	}
	i, ok := g.byID[id]
	if !ok {
		return model.CityRecord{}, false
	}
	return g.cities[i], true
}

// Len is the number of cities.
func (g *Gazetteer) Len() int {
	if g == nil {
		return 0
	}
	return len(g.cities)
}
