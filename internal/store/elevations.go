package store

import (
	"context"
	"fmt"
	"iter"
	"slices"

	"geocache/location-server/internal/model"
)

// Elevations yields fresh cached elevation samples accepted by filter.
func (s *Store) Elevations(ctx context.Context, filter func(model.ElevationSample) bool) iter.Seq[model.ElevationSample] {
	return func(yield func(model.ElevationSample) bool) {
		if s.db == nil {
			return
		}

		rows, err := s.db.QueryContext(
			ctx,
			`SELECT id, latitude, longitude, elevation, timestamp
			 FROM elevations
			 WHERE timestamp >= ?
			 ORDER BY id;`,
			s.expiry(),
		)
		if err != nil {
			s.logger.Error("query elevations", "error", err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			var (
				sample model.ElevationSample
				ts     int64
			)
			if err := rows.Scan(&sample.ID, &sample.Coordinate.Latitude, &sample.Coordinate.Longitude, &sample.Elevation, &ts); err != nil {
				s.logger.Error("scan elevation", "error", err)
				return
			}
			sample.CapturedAt = fromMillis(ts)
			sample.Origin = model.OriginStored

			if filter != nil && !filter(sample) {
				continue
			}
			if !yield(sample) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			s.logger.Error("iterate elevations", "error", err)
		}
	}
}

// QueryElevations collects Elevations into a slice.
func (s *Store) QueryElevations(ctx context.Context, filter func(model.ElevationSample) bool) []model.ElevationSample {
	return slices.Collect(s.Elevations(ctx, filter))
}

// UpsertElevation inserts an unsaved sample or refreshes the row with the
// sample's id, returning the id after the write.
func (s *Store) UpsertElevation(ctx context.Context, sample model.ElevationSample) (int64, error) {
	if sample.ID < 0 {
		return sample.ID, fmt.Errorf("%w: elevation id %d", ErrNotPersistable, sample.ID)
	}
	if err := sample.Coordinate.Validate(); err != nil {
		return sample.ID, err
	}
	if s.db == nil {
		return sample.ID, nil
	}

	ts := s.now().UnixMilli()

	if sample.ID == model.UnsavedID {
		res, err := s.db.ExecContext(
			ctx,
			`INSERT INTO elevations (latitude, longitude, elevation, timestamp) VALUES (?, ?, ?, ?);`,
			sample.Coordinate.Latitude,
			sample.Coordinate.Longitude,
			sample.Elevation,
			ts,
		)
		if err != nil {
			s.logger.Error("insert elevation", "error", err)
			return sample.ID, nil
		}
		id, err := res.LastInsertId()
		if err != nil {
			s.logger.Error("insert elevation id", "error", err)
			return sample.ID, nil
		}
		return id, nil
	}

	_, err := s.db.ExecContext(
		ctx,
		`UPDATE elevations SET latitude = ?, longitude = ?, elevation = ?, timestamp = ? WHERE id = ?;`,
		sample.Coordinate.Latitude,
		sample.Coordinate.Longitude,
		sample.Elevation,
		ts,
		sample.ID,
	)
	if err != nil {
		s.logger.Error("update elevation", "id", sample.ID, "error", err)
	}
	return sample.ID, nil
}

// DeleteElevation removes the sample with id and reports whether it existed.
func (s *Store) DeleteElevation(ctx context.Context, id int64) bool {
	return s.deleteByID(ctx, "elevations", id)
}
