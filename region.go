package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	geojson "github.com/paulmach/orb/geojson"
)

// RegionClient talks to the external Region Lookup Service which resolves
// administrative names to GeoJSON boundaries.
type RegionClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// regionClient is initialized at startup from the program configuration.
var regionClient *RegionClient

/*
newRegionClient creates a Region Lookup Service client. A single resolution
attempt per request, no retries; failure surfaces immediately.
*/
func newRegionClient(baseURL string) *RegionClient {
	return &RegionClient{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

/*
regionSpecifier derives the ordered clip specifier of a selector: the most
specific fully-specified level wins (village+tehsil, tehsil, district, state,
continent, checked in that order). The value tuple runs from the chosen level
up to continent.
*/
func regionSpecifier(selector RegionSelector) (level string, values []string, err error) {
	switch {
	case selector.Village != "" && selector.Tehsil != "":
		return "village", []string{selector.Village, selector.Tehsil, selector.District, selector.State, selector.Continent}, nil
	case selector.Tehsil != "":
		return "tehsil", []string{selector.Tehsil, selector.District, selector.State, selector.Continent}, nil
	case selector.District != "":
		return "district", []string{selector.District, selector.State, selector.Continent}, nil
	case selector.State != "":
		return "state", []string{selector.State, selector.Continent}, nil
	case selector.Continent != "":
		return "continent", []string{selector.Continent}, nil
	default:
		return "", nil, fmt.Errorf("%w: region selector has no level set", ErrRequest)
	}
}

/*
LookupRegion resolves an administrative region selector to a feature
collection holding the region boundary.
*/
func (client *RegionClient) LookupRegion(selector RegionSelector) (*geojson.FeatureCollection, error) {
	level, values, err := regionSpecifier(selector)
	if err != nil {
		return nil, err
	}

	requestBody, err := json.Marshal(map[string]any{
		"clip": []any{level, values},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: error [%v] at json.Marshal()", ErrRequest, err)
	}

	response, err := client.HTTPClient.Post(client.BaseURL, "application/json", bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("%w: error [%v] calling region lookup service", ErrRegionNotFound, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: region lookup service returned status %d", ErrRegionNotFound, response.StatusCode)
	}

	bodyData, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: error [%v] reading region lookup response", ErrRegionNotFound, err)
	}

	lookupResponse := struct {
		RegionGeoJSON json.RawMessage `json:"region_geojson"`
	}{}
	err = json.Unmarshal(bodyData, &lookupResponse)
	if err != nil {
		return nil, fmt.Errorf("%w: error [%v] unmarshaling region lookup response", ErrRegionNotFound, err)
	}
	if len(lookupResponse.RegionGeoJSON) == 0 {
		return nil, fmt.Errorf("%w: region lookup response carries no region_geojson", ErrRegionNotFound)
	}

	collection, err := geojson.UnmarshalFeatureCollection(lookupResponse.RegionGeoJSON)
	if err != nil {
		return nil, fmt.Errorf("%w: error [%v] decoding region feature collection", ErrRegionNotFound, err)
	}

	return collection, nil
}
