package store

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"slices"

	"geocache/location-server/internal/model"
)

const selectAddresses = `SELECT id, query_latitude, query_longitude, latitude, longitude, formatted, language, timestamp, favorite
	FROM addresses WHERE timestamp >= ?`

// Addresses yields fresh cached addresses accepted by filter. Records tagged
// with a language other than language are skipped; language-neutral records
// always pass. An empty language matches every record.
//
// The sequence runs a new query each time it is ranged over.
func (s *Store) Addresses(ctx context.Context, language string, filter func(model.AddressRecord) bool) iter.Seq[model.AddressRecord] {
	return func(yield func(model.AddressRecord) bool) {
		if s.db == nil {
			return
		}

		query := selectAddresses
		args := []any{s.expiry()}
		if language != "" {
			query += ` AND (language IS NULL OR language = ?)`
			args = append(args, language)
		}

		rows, err := s.db.QueryContext(ctx, query+` ORDER BY id;`, args...)
		if err != nil {
			s.logger.Error("query addresses", "error", err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			rec, err := scanAddress(rows)
			if err != nil {
				s.logger.Error("scan address", "error", err)
				return
			}
			if filter != nil && !filter(rec) {
				continue
			}
			if !yield(rec) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			s.logger.Error("iterate addresses", "error", err)
		}
	}
}

// QueryAddresses collects Addresses into a slice.
func (s *Store) QueryAddresses(ctx context.Context, language string, filter func(model.AddressRecord) bool) []model.AddressRecord {
	return slices.Collect(s.Addresses(ctx, language, filter))
}

func scanAddress(row scanner) (model.AddressRecord, error) {
	var (
		rec      model.AddressRecord
		language sql.NullString
		ts       int64
		favorite int
	)

	err := row.Scan(
		&rec.ID,
		&rec.Query.Latitude,
		&rec.Query.Longitude,
		&rec.Resolved.Latitude,
		&rec.Resolved.Longitude,
		&rec.Formatted,
		&language,
		&ts,
		&favorite,
	)
	if err != nil {
		return model.AddressRecord{}, err
	}

	rec.Language = language.String
	rec.UpdatedAt = fromMillis(ts)
	rec.Favorite = favorite != 0
	return rec, nil
}

// UpsertAddress inserts rec when its id is unsaved, otherwise updates the row
// with that id. It returns the record's id after the write. Ephemeral records
// and invalid coordinates are rejected; database failures are logged and the
// incoming id is returned.
func (s *Store) UpsertAddress(ctx context.Context, rec model.AddressRecord) (int64, error) {
	if rec.ID < 0 {
		return rec.ID, fmt.Errorf("%w: address id %d", ErrNotPersistable, rec.ID)
	}
	if err := rec.Query.Validate(); err != nil {
		return rec.ID, err
	}
	if err := rec.Resolved.Validate(); err != nil {
		return rec.ID, err
	}
	if s.db == nil {
		return rec.ID, nil
	}

	ts := s.now().UnixMilli()

	if rec.ID == model.UnsavedID {
		res, err := s.db.ExecContext(
			ctx,
			`INSERT INTO addresses (query_latitude, query_longitude, latitude, longitude, formatted, language, timestamp, favorite)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?);`,
			rec.Query.Latitude,
			rec.Query.Longitude,
			rec.Resolved.Latitude,
			rec.Resolved.Longitude,
			rec.Formatted,
			nullString(rec.Language),
			ts,
			rec.Favorite,
		)
		if err != nil {
			s.logger.Error("insert address", "error", err)
			return rec.ID, nil
		}
		id, err := res.LastInsertId()
		if err != nil {
			s.logger.Error("insert address id", "error", err)
			return rec.ID, nil
		}
		return id, nil
	}

	_, err := s.db.ExecContext(
		ctx,
		`UPDATE addresses
		 SET latitude = ?, longitude = ?, formatted = ?, language = ?, timestamp = ?, favorite = ?
		 WHERE id = ?;`,
		rec.Resolved.Latitude,
		rec.Resolved.Longitude,
		rec.Formatted,
		nullString(rec.Language),
		ts,
		rec.Favorite,
		rec.ID,
	)
	if err != nil {
		s.logger.Error("update address", "id", rec.ID, "error", err)
	}
	return rec.ID, nil
}

// DeleteAddress removes the address with id and reports whether it existed.
func (s *Store) DeleteAddress(ctx context.Context, id int64) bool {
	return s.deleteByID(ctx, "addresses", id)
}
