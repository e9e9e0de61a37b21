package geocoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"geocache/location-server/internal/model"
)

type elevationLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type elevationRequest struct {
	Locations []elevationLocation `json:"locations"`
}

type elevationResponse struct {
	Results []struct {
		Latitude  float64  `json:"latitude"`
		Longitude float64  `json:"longitude"`
		Elevation *float64 `json:"elevation"`
	} `json:"results"`
}

// FetchElevation looks up the elevation at c with Open-Elevation. The sample
// is unsaved and tagged with the network origin.
func (c *Client) FetchElevation(ctx context.Context, at model.Coordinate) (model.ElevationSample, error) {
	if err := at.Validate(); err != nil {
		return model.ElevationSample{}, err
	}

	body, err := json.Marshal(elevationRequest{
		Locations: []elevationLocation{{Latitude: at.Latitude, Longitude: at.Longitude}},
	})
	if err != nil {
		return model.ElevationSample{}, err
	}

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.elevationURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	resp, err := c.do(ctx, c.elevationCB, buildRequest)
	if err != nil {
		return model.ElevationSample{}, fmt.Errorf("fetch elevation %v,%v: %w", at.Latitude, at.Longitude, err)
	}
	defer resp.Body.Close()

	var payload elevationResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return model.ElevationSample{}, fmt.Errorf("decode elevation response: %w", err)
	}
	if len(payload.Results) == 0 || payload.Results[0].Elevation == nil {
		return model.ElevationSample{}, ErrNoResults
	}

	e := *payload.Results[0].Elevation
	if math.IsNaN(e) || math.IsInf(e, 0) {
		return model.ElevationSample{}, ErrNoResults
	}

	return model.ElevationSample{
		ID:         model.UnsavedID,
		Coordinate: at,
		Elevation:  e,
		CapturedAt: time.Now(),
		Origin:     model.OriginNetwork,
	}, nil
}
