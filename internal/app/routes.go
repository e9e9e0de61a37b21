package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"geocache/location-server/internal/model"
)

var validate = validator.New()

// resolveTimeout bounds requests that may fall back to the network.
const resolveTimeout = 30 * time.Second

func (a *App) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", a.handleHealthz)
	r.Get("/readyz", a.handleReadyz)

	r.Route("/api", func(r chi.Router) {
		r.Get("/resolve", a.handleResolve)
		r.Get("/elevation", a.handleElevation)

		r.Get("/locations", a.handleListLocations)
		r.Put("/locations/{kind}/{id}/favorite", a.handleSetFavorite)
		r.Delete("/locations/{kind}/{id}", a.handleDeleteLocation)

		r.Get("/admin/stats", a.handleStats)
		r.Post("/admin/wipe", a.handleWipeDatabase)
		r.Post("/admin/prune", a.handlePrune)
	})

	return r
}

// coordinateQuery is the lat/lon pair accepted by the lookup endpoints.
type coordinateQuery struct {
	Lat string `validate:"required,latitude"`
	Lon string `validate:"required,longitude"`
}

func parseCoordinate(r *http.Request) (model.Coordinate, error) {
	q := coordinateQuery{
		Lat: strings.TrimSpace(r.URL.Query().Get("lat")),
		Lon: strings.TrimSpace(r.URL.Query().Get("lon")),
	}
	if err := validate.Struct(q); err != nil {
		return model.Coordinate{}, err
	}

	lat, err := strconv.ParseFloat(q.Lat, 64)
	if err != nil {
		return model.Coordinate{}, err
	}
	lon, err := strconv.ParseFloat(q.Lon, 64)
	if err != nil {
		return model.Coordinate{}, err
	}
	return model.Coordinate{Latitude: lat, Longitude: lon}, nil
}

// placeResponse tags a place with its kind on the wire.
type placeResponse struct {
	Kind  model.Kind  `json:"kind"`
	Place model.Place `json:"place"`
}

func newPlaceResponse(p model.Place) placeResponse {
	return placeResponse{Kind: p.Kind(), Place: p}
}

func (a *App) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("failed to encode response", "error", err)
	}
}

func (a *App) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (a *App) handleReadyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if a.resolver == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"starting"}`))
		return
	}
	if a.cfg.MQTTBroker != "" && (a.mqtt == nil || !a.mqtt.IsConnectionOpen()) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"mqtt disconnected"}`))
		return
	}
	_, _ = w.Write([]byte(`{"status":"ready"}`))
}

func (a *App) handleResolve(w http.ResponseWriter, r *http.Request) {
	c, err := parseCoordinate(r)
	if err != nil {
		http.Error(w, "valid lat and lon query parameters are required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), resolveTimeout)
	defer cancel()

	place, err := a.resolver.Resolve(ctx, c)
	if err != nil {
		if errors.Is(err, model.ErrInvalidCoordinate) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		a.logger.Error("resolve failed", "error", err)
		http.Error(w, "failed to resolve", http.StatusInternalServerError)
		return
	}
	if place == nil {
		a.writeJSON(w, http.StatusNotFound, map[string]string{"status": "unresolved"})
		return
	}

	a.writeJSON(w, http.StatusOK, newPlaceResponse(place))
}

func (a *App) handleElevation(w http.ResponseWriter, r *http.Request) {
	c, err := parseCoordinate(r)
	if err != nil {
		http.Error(w, "valid lat and lon query parameters are required", http.StatusBadRequest)
		return
	}
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))

	ctx, cancel := context.WithTimeout(r.Context(), resolveTimeout)
	defer cancel()

	var (
		sample model.ElevationSample
		ok     bool
	)
	if refresh {
		sample, ok, err = a.resolver.RefreshElevation(ctx, c)
	} else {
		sample, ok, err = a.resolver.Elevation(ctx, c)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !ok {
		a.writeJSON(w, http.StatusNotFound, map[string]string{"status": "unknown"})
		return
	}

	a.writeJSON(w, http.StatusOK, sample)
}

func (a *App) handleListLocations(w http.ResponseWriter, r *http.Request) {
	favoritesOnly, _ := strconv.ParseBool(r.URL.Query().Get("favorites"))

	var kind model.Kind
	if v := r.URL.Query().Get("kind"); v != "" {
		k, ok := model.ParseKind(v)
		if !ok {
			http.Error(w, "unknown kind", http.StatusBadRequest)
			return
		}
		kind = k
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	places := a.resolver.ListAll(ctx, func(p model.Place) bool {
		if favoritesOnly && !p.IsFavorite() {
			return false
		}
		return kind == "" || p.Kind() == kind
	})

	resp := struct {
		Language  string          `json:"language"`
		Locations []placeResponse `json:"locations"`
	}{
		Language:  a.resolver.Language(),
		Locations: make([]placeResponse, 0, len(places)),
	}
	for _, p := range places {
		resp.Locations = append(resp.Locations, newPlaceResponse(p))
	}

	a.writeJSON(w, http.StatusOK, resp)
}

// findPlace resolves the {kind}/{id} path parameters. It writes the error
// response and returns false when the place does not exist.
func (a *App) findPlace(ctx context.Context, w http.ResponseWriter, r *http.Request) (model.Place, bool) {
	kind, ok := model.ParseKind(chi.URLParam(r, "kind"))
	if !ok {
		http.Error(w, "unknown kind", http.StatusBadRequest)
		return nil, false
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return nil, false
	}

	place, ok := a.resolver.Find(ctx, kind, id)
	if !ok {
		http.Error(w, "location not found", http.StatusNotFound)
		return nil, false
	}
	return place, true
}

func (a *App) handleSetFavorite(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Favorite *bool `json:"favorite" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(body); err != nil {
		http.Error(w, "favorite is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	place, ok := a.findPlace(ctx, w, r)
	if !ok {
		return
	}

	updated, err := a.resolver.SetFavorite(ctx, place, *body.Favorite)
	if err != nil {
		a.logger.Error("set favorite failed", "kind", place.Kind(), "id", place.PlaceID(), "error", err)
		http.Error(w, "failed to update", http.StatusInternalServerError)
		return
	}

	a.writeJSON(w, http.StatusOK, newPlaceResponse(updated))
}

func (a *App) handleDeleteLocation(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	place, ok := a.findPlace(ctx, w, r)
	if !ok {
		return
	}

	if !a.resolver.Delete(ctx, place) {
		http.Error(w, "location not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := struct {
		CacheAvailable bool   `json:"cache_available"`
		Language       string `json:"language"`
		Cities         int    `json:"gazetteer_cities"`
		Addresses      int    `json:"addresses"`
		Elevations     int    `json:"elevations"`
		StoredCities   int    `json:"stored_cities"`
		Retention      string `json:"retention"`
	}{
		CacheAvailable: a.store.Available(),
		Language:       a.resolver.Language(),
		Cities:         a.gazetteer.Len(),
		Retention:      a.cfg.Retention.String(),
	}

	if resp.CacheAvailable {
		counts, err := a.store.Counts(ctx)
		if err != nil {
			a.logger.Error("failed to count records", "error", err)
			http.Error(w, "failed to load stats", http.StatusInternalServerError)
			return
		}
		resp.Addresses = counts.Addresses
		resp.Elevations = counts.Elevations
		resp.StoredCities = counts.Cities
	}

	a.writeJSON(w, http.StatusOK, resp)
}

func (a *App) handleWipeDatabase(w http.ResponseWriter, r *http.Request) {
	if !a.store.Available() {
		http.Error(w, "store not initialized", http.StatusServiceUnavailable)
		return
	}

	var body struct {
		Confirm string `json:"confirm" validate:"required,eq=wipe"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	body.Confirm = strings.ToLower(strings.TrimSpace(body.Confirm))
	if err := validate.Struct(body); err != nil {
		http.Error(w, "confirmation required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := a.store.Wipe(ctx); err != nil {
		a.logger.Error("wipe: failed", "error", err)
		http.Error(w, "failed to wipe data", http.StatusInternalServerError)
		return
	}

	a.logger.Warn("wipe: all cached locations cleared")
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) handlePrune(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	removed := a.scheduler.RunOnce(ctx)
	a.writeJSON(w, http.StatusOK, map[string]int64{"removed": removed})
}
