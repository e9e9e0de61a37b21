package resolver

import (
	"context"
	"slices"

	"geocache/location-server/internal/geo"
	"geocache/location-server/internal/locale"
	"geocache/location-server/internal/model"
)

// ListAll returns the directory of known places: cached addresses in the
// active language (and language-neutral ones), then the built-in cities with
// their stored favourite and access state. filter, when set, is applied to
// both groups first; a city within geo.SameLocation of a listed address is
// then left out. Each group is sorted by label.
func (r *Resolver) ListAll(ctx context.Context, filter func(model.Place) bool) []model.Place {
	lang := r.locale.Language()
	collator := locale.Collator(lang)

	keep := func(p model.Place) bool { return filter == nil || filter(p) }

	addresses := slices.Collect(r.store.Addresses(ctx, lang, func(a model.AddressRecord) bool { return keep(a) }))
	slices.SortStableFunc(addresses, func(a, b model.AddressRecord) int {
		return collator.CompareString(a.Label(), b.Label())
	})

	cities := slices.DeleteFunc(r.cities(ctx), func(c model.CityRecord) bool {
		return !keep(c) || slices.ContainsFunc(addresses, geo.AddressMatcher(c.Coordinate))
	})
	slices.SortStableFunc(cities, func(a, b model.CityRecord) int {
		return collator.CompareString(a.Label(), b.Label())
	})

	out := make([]model.Place, 0, len(addresses)+len(cities))
	for _, a := range addresses {
		out = append(out, a)
	}
	for _, c := range cities {
		out = append(out, c)
	}
	return out
}

// cities merges the gazetteer with the stored per-city state.
func (r *Resolver) cities(ctx context.Context) []model.CityRecord {
	if r.gazetteer == nil {
		return nil
	}
	list := r.gazetteer.ListCities()
	if len(list) == 0 {
		return list
	}

	state := make(map[int64]model.CityRecord)
	for _, c := range r.store.QueryCities(ctx, nil) {
		state[c.ID] = c
	}
	for i := range list {
		if s, ok := state[list[i].ID]; ok {
			list[i].Favorite = s.Favorite
			list[i].AccessedAt = s.AccessedAt
		}
	}
	return list
}

// Find returns the place of the given kind and id. Addresses are found in
// any language. Countries are never stored and are never found.
func (r *Resolver) Find(ctx context.Context, kind model.Kind, id int64) (model.Place, bool) {
	if id <= 0 {
		return nil, false
	}
	switch kind {
	case model.KindAddress:
		for a := range r.store.Addresses(ctx, "", func(a model.AddressRecord) bool { return a.ID == id }) {
			return a, true
		}
	case model.KindCity:
		if r.gazetteer == nil {
			return nil, false
		}
		c, ok := r.gazetteer.Lookup(id)
		if !ok {
			return nil, false
		}
		if stored := r.store.QueryCities(ctx, func(s model.CityRecord) bool { return s.ID == id }); len(stored) > 0 {
			c.Favorite = stored[0].Favorite
			c.AccessedAt = stored[0].AccessedAt
		}
		return c, true
	}
	return nil, false
}

// SetFavorite sets the favourite flag of p in the store and returns the
// updated place. Ephemeral records and countries are returned unchanged.
func (r *Resolver) SetFavorite(ctx context.Context, p model.Place, favorite bool) (model.Place, error) {
	switch v := p.(type) {
	case model.AddressRecord:
		v.Favorite = favorite
		id, err := r.store.UpsertAddress(ctx, v)
		if err != nil {
			if isNotPersistable(err) {
				return p, nil
			}
			return p, err
		}
		v.ID = id
		v.UpdatedAt = r.now()
		return v, nil
	case model.CityRecord:
		v.Favorite = favorite
		id, err := r.store.UpsertCity(ctx, v)
		if err != nil {
			if isNotPersistable(err) {
				return p, nil
			}
			return p, err
		}
		v.ID = id
		v.AccessedAt = r.now()
		return v, nil
	}
	return p, nil
}

// Delete removes p from the store and reports whether anything was removed.
// Deleting a city forgets its stored state; the gazetteer entry remains.
func (r *Resolver) Delete(ctx context.Context, p model.Place) bool {
	switch v := p.(type) {
	case model.AddressRecord:
		if v.ID <= 0 {
			return false
		}
		return r.store.DeleteAddress(ctx, v.ID)
	case model.CityRecord:
		if v.ID <= 0 {
			return false
		}
		return r.store.DeleteCity(ctx, v.ID)
	}
	return false
}
