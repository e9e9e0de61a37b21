package geocoder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"geocache/location-server/internal/locale"
	"geocache/location-server/internal/model"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	return New(Config{
		NominatimURL:   srv.URL,
		ElevationURL:   srv.URL + "/api/v1/lookup",
		UserAgent:      "geocache-test",
		RequestsPerSec: 1000,
		Backoff: BackoffConfig{
			MaxRetries:      2,
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
		},
		Locale: locale.MustParse("he-IL"),
	})
}

var jerusalem = model.Coordinate{Latitude: 31.7683, Longitude: 35.2137}

func TestReverseGeocodeAddress(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reverse" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("User-Agent"); got != "geocache-test" {
			t.Errorf("User-Agent = %q", got)
		}
		if got := r.Header.Get("Accept-Language"); got != "he-IL,he;q=0.9" {
			t.Errorf("Accept-Language = %q", got)
		}
		if r.URL.Query().Get("format") != "jsonv2" {
			t.Errorf("format = %q", r.URL.Query().Get("format"))
		}
		w.Write([]byte(`{"lat":"31.7767","lon":"35.2345","addresstype":"road",
			"display_name":"Western Wall Plaza, Jerusalem, Israel",
			"address":{"country":"Israel","country_code":"il"}}`))
	}))

	places, err := c.ReverseGeocode(context.Background(), jerusalem, 5)
	if err != nil {
		t.Fatalf("ReverseGeocode: %v", err)
	}
	if len(places) != 1 {
		t.Fatalf("got %d places, want 1", len(places))
	}
	addr, ok := places[0].(model.AddressRecord)
	if !ok {
		t.Fatalf("got %T, want AddressRecord", places[0])
	}
	if addr.ID != model.UnsavedID || addr.Language != "he" || addr.Query != jerusalem {
		t.Fatalf("unexpected record %+v", addr)
	}
	if addr.Resolved.Latitude != 31.7767 || addr.Resolved.Longitude != 35.2345 {
		t.Fatalf("resolved = %+v", addr.Resolved)
	}
}

func TestReverseGeocodeCountry(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"lat":"31.5","lon":"34.8","addresstype":"country","name":"ישראל",
			"display_name":"ישראל","address":{"country":"ישראל","country_code":"il"}}`))
	}))

	places, err := c.ReverseGeocode(context.Background(), jerusalem, 1)
	if err != nil {
		t.Fatalf("ReverseGeocode: %v", err)
	}
	country, ok := places[0].(model.CountryRecord)
	if !ok {
		t.Fatalf("got %T, want CountryRecord", places[0])
	}
	if country.Code != "IL" || country.Name != "ישראל" || country.PlaceID() != model.EphemeralID {
		t.Fatalf("unexpected record %+v", country)
	}
}

func TestReverseGeocodeNoResults(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"Unable to geocode"}`))
	}))

	_, err := c.ReverseGeocode(context.Background(), model.Coordinate{}, 1)
	if !errors.Is(err, ErrNoResults) {
		t.Fatalf("err = %v, want ErrNoResults", err)
	}
}

func TestReverseGeocodeRejectsInvalidCoordinate(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))

	_, err := c.ReverseGeocode(context.Background(), model.Coordinate{Latitude: 91}, 1)
	if !errors.Is(err, model.ErrInvalidCoordinate) {
		t.Fatalf("err = %v, want ErrInvalidCoordinate", err)
	}
	if calls.Load() != 0 {
		t.Fatal("invalid coordinate reached the network")
	}
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"lat":"1","lon":"2","display_name":"Somewhere"}`))
	}))

	places, err := c.ReverseGeocode(context.Background(), model.Coordinate{Latitude: 1, Longitude: 2}, 1)
	if err != nil {
		t.Fatalf("ReverseGeocode: %v", err)
	}
	if len(places) != 1 || calls.Load() != 3 {
		t.Fatalf("places=%d calls=%d", len(places), calls.Load())
	}
}

func TestDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))

	_, err := c.ReverseGeocode(context.Background(), jerusalem, 1)
	if !errors.Is(err, errUnexpected) {
		t.Fatalf("err = %v, want errUnexpected", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestFetchElevation(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/lookup" {
			t.Errorf("got %s %s", r.Method, r.URL.Path)
		}
		var req elevationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if len(req.Locations) != 1 || req.Locations[0].Latitude != jerusalem.Latitude {
			t.Errorf("unexpected body %+v", req)
		}
		w.Write([]byte(`{"results":[{"latitude":31.7683,"longitude":35.2137,"elevation":754}]}`))
	}))

	s, err := c.FetchElevation(context.Background(), jerusalem)
	if err != nil {
		t.Fatalf("FetchElevation: %v", err)
	}
	if s.Elevation != 754 || s.Origin != model.OriginNetwork || s.ID != model.UnsavedID {
		t.Fatalf("unexpected sample %+v", s)
	}
}

func TestFetchElevationMissingValue(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[{"latitude":0,"longitude":0,"elevation":null}]}`))
	}))

	if _, err := c.FetchElevation(context.Background(), model.Coordinate{}); !errors.Is(err, ErrNoResults) {
		t.Fatalf("err = %v, want ErrNoResults", err)
	}
}

func TestContextCancelStopsBackoff(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	c.backoff = BackoffConfig{MaxRetries: 10, InitialInterval: time.Hour}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := c.ReverseGeocode(ctx, jerusalem, 1); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}
