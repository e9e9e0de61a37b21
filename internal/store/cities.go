package store

import (
	"context"
	"fmt"
	"iter"
	"slices"

	"geocache/location-server/internal/geo"
	"geocache/location-server/internal/model"
)

// Cities yields the stored state (favourite, last access) of gazetteer
// cities. Names and coordinates live in the gazetteer, not here.
func (s *Store) Cities(ctx context.Context, filter func(model.CityRecord) bool) iter.Seq[model.CityRecord] {
	return func(yield func(model.CityRecord) bool) {
		if s.db == nil {
			return
		}

		rows, err := s.db.QueryContext(ctx, `SELECT id, timestamp, favorite FROM cities ORDER BY id;`)
		if err != nil {
			s.logger.Error("query cities", "error", err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			var (
				city     model.CityRecord
				ts       int64
				favorite int
			)
			if err := rows.Scan(&city.ID, &ts, &favorite); err != nil {
				s.logger.Error("scan city", "error", err)
				return
			}
			city.AccessedAt = fromMillis(ts)
			city.Favorite = favorite != 0

			if filter != nil && !filter(city) {
				continue
			}
			if !yield(city) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			s.logger.Error("iterate cities", "error", err)
		}
	}
}

// QueryCities collects Cities into a slice.
func (s *Store) QueryCities(ctx context.Context, filter func(model.CityRecord) bool) []model.CityRecord {
	return slices.Collect(s.Cities(ctx, filter))
}

// UpsertCity records the favourite flag and access time of a city. An unsaved
// city gets the id of its coordinate bucket, so repeated upserts of the same
// bucket update one row.
func (s *Store) UpsertCity(ctx context.Context, city model.CityRecord) (int64, error) {
	if city.ID < 0 {
		return city.ID, fmt.Errorf("%w: city id %d", ErrNotPersistable, city.ID)
	}

	id := city.ID
	if id == model.UnsavedID {
		if err := city.Coordinate.Validate(); err != nil {
			return city.ID, err
		}
		id = geo.CityID(city.Coordinate)
	}
	if s.db == nil {
		return id, nil
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO cities (id, timestamp, favorite) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET timestamp = excluded.timestamp, favorite = excluded.favorite;`,
		id,
		s.now().UnixMilli(),
		city.Favorite,
	)
	if err != nil {
		s.logger.Error("upsert city", "id", id, "error", err)
	}
	return id, nil
}

// DeleteCity forgets the stored state of a city.
func (s *Store) DeleteCity(ctx context.Context, id int64) bool {
	return s.deleteByID(ctx, "cities", id)
}
