// Copyright 2026 The GeoTagger Authors
// SPDX-License-Identifier: Apache-2.0

package geotag

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Geocoder resolves a coordinate pair to a place description.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (*LocationRecord, error)
}

// PhotonBaseURL is the default reverse geocoding endpoint.
const PhotonBaseURL = "https://photon.komoot.io"

// PhotonClient is a Geocoder backed by the Photon API. Photon is keyless;
// requests carry only the coordinates and the display language.
type PhotonClient struct {
	baseURL    string
	lang       string
	httpClient *http.Client
}

// NewPhotonClient creates a client for the given endpoint (empty means
// the public instance) resolving names in the given language.
func NewPhotonClient(baseURL, lang string) *PhotonClient {
	if baseURL == "" {
		baseURL = PhotonBaseURL
	}

	return &PhotonClient{
		baseURL: baseURL,
		lang:    lang,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// photonResponse is a GeoJSON feature collection. Only the first
// feature's properties are consumed; keys absent from the response leave
// the corresponding record field empty.
type photonResponse struct {
	Features []struct {
		Properties LocationRecord `json:"properties"`
	} `json:"features"`
}

// Reverse issues a single GET against the reverse endpoint. No retry: the
// caller's policy is single-attempt-with-timeout.
func (p *PhotonClient) Reverse(ctx context.Context, lat, lon float64) (*LocationRecord, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("lang", p.lang)

	reqURL := p.baseURL + "/reverse?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reverse geocoding request failed: %w", err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("photon returned status %d", resp.StatusCode)
	}

	var photonResp photonResponse
	if err := json.NewDecoder(resp.Body).Decode(&photonResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if len(photonResp.Features) == 0 {
		return nil, fmt.Errorf("no results for %f, %f", lat, lon)
	}

	record := photonResp.Features[0].Properties

	return &record, nil
}
