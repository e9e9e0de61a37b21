package geocoder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"geocache/location-server/internal/model"
)

type reverseResponse struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	AddressType string `json:"addresstype"`
	Error       string `json:"error"`
	Address     struct {
		Country     string `json:"country"`
		CountryCode string `json:"country_code"`
	} `json:"address"`
}

// ReverseGeocode asks Nominatim for the places at c, in the active language.
// Nominatim answers /reverse with a single place, so the slice holds at most
// min(1, maxResults) entries. Country-level answers come back as
// CountryRecord, everything else as an unsaved AddressRecord.
func (c *Client) ReverseGeocode(ctx context.Context, at model.Coordinate, maxResults int) ([]model.Place, error) {
	if err := at.Validate(); err != nil {
		return nil, err
	}
	if maxResults <= 0 {
		maxResults = 1
	}

	lang := c.acceptLanguage()
	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("lat", strconv.FormatFloat(at.Latitude, 'f', -1, 64))
		values.Set("lon", strconv.FormatFloat(at.Longitude, 'f', -1, 64))
		values.Set("format", "jsonv2")
		values.Set("addressdetails", "1")

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.nominatimURL+"/reverse?"+values.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if lang != "" {
			req.Header.Set("Accept-Language", lang)
		}
		return req, nil
	}

	resp, err := c.do(ctx, c.reverseCB, buildRequest)
	if err != nil {
		return nil, fmt.Errorf("reverse geocode %v,%v: %w", at.Latitude, at.Longitude, err)
	}
	defer resp.Body.Close()

	var payload reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode reverse geocode response: %w", err)
	}
	if payload.Error != "" || (payload.DisplayName == "" && payload.Address.Country == "") {
		return nil, ErrNoResults
	}

	resolved := at
	lat, latErr := strconv.ParseFloat(payload.Lat, 64)
	lon, lonErr := strconv.ParseFloat(payload.Lon, 64)
	if latErr == nil && lonErr == nil {
		if p := (model.Coordinate{Latitude: lat, Longitude: lon}); p.Validate() == nil {
			resolved = p
		}
	}

	places := make([]model.Place, 0, 1)
	if payload.AddressType == "country" {
		name := payload.Address.Country
		if name == "" {
			name = payload.Name
		}
		places = append(places, model.CountryRecord{
			Code:       strings.ToUpper(payload.Address.CountryCode),
			Name:       name,
			Coordinate: resolved,
		})
	} else {
		places = append(places, model.AddressRecord{
			ID:        model.UnsavedID,
			Query:     at,
			Resolved:  resolved,
			Formatted: payload.DisplayName,
			Language:  c.locale.Language(),
		})
	}

	if len(places) > maxResults {
		places = places[:maxResults]
	}
	return places, nil
}

func (c *Client) acceptLanguage() string {
	lang := c.locale.Language()
	if lang == "" {
		return ""
	}
	if country := c.locale.Country(); country != "" {
		return lang + "-" + country + "," + lang + ";q=0.9"
	}
	return lang
}
