package main

import (
	"encoding/json"
	"os"
)

// --------------------------------------------------------------------------------
// Constants.
// --------------------------------------------------------------------------------

// HTTP Accept headers
const (
	JSONAPIMediaType   = "application/json; charset=utf-8"
	TextPlainMediaType = "text/html; charset=utf-8"
)

// request body limits (in bytes, for security reasons)
const (
	MaxStatisticsRequestBodySize = 8 * 1024 * 1024
)

// noDataFloor is the large-magnitude NoData threshold: any raw pixel value
// more negative than this is treated as NoData even when the raster declares
// a different NoData value or none at all. Guards against float32
// overflow/garbage values some encoders emit in place of an explicit sentinel.
const noDataFloor = -1.0e30

// sparseCoverageThreshold separates 'sparse' from 'dense' rasters by the
// fraction of valid pixels over total pixels.
const sparseCoverageThreshold = 0.10

// --------------------------------------------------------------------------------
// Request  : Client -> StatisticsRequest  -> Service
// Response : Client <- StatisticsResponse <- Service
// --------------------------------------------------------------------------------

// StatisticsRequest represents a zonal statistics request. Exactly one of
// Geometry, Region, VectorLayer selects the clip geometry source.
type StatisticsRequest struct {
	LayerName   string          `json:"layer_name"`
	Layer       string          `json:"layer"` // legacy alias for layer_name
	Geometry    json.RawMessage `json:"geometry"`
	Region      *RegionSelector `json:"region"`
	VectorLayer string          `json:"vector_layer"`
	Debug       bool            `json:"debug"`
	Method      string          `json:"method"` // "direct_file" or empty
}

// RegionSelector names an administrative region; the most specific non-empty
// level wins (village+tehsil, tehsil, district, state, continent).
type RegionSelector struct {
	Village   string `json:"village"`
	Tehsil    string `json:"tehsil"`
	District  string `json:"district"`
	State     string `json:"state"`
	Continent string `json:"continent"`
}

// BandStatistics represents per-band summary statistics over the valid
// pixels of the clipped region. All value fields are null when Count is zero.
type BandStatistics struct {
	Min   *float64 `json:"min"`
	Max   *float64 `json:"max"`
	Mean  *float64 `json:"mean"`
	Std   *float64 `json:"std"`
	Count int      `json:"count"`

	// Excluded counts pixels of the clamped window that were masked out or
	// NoData; Count+Excluded equals the window pixel total.
	Excluded int `json:"-"`
}

// RasterInfo echoes metadata of the source raster.
type RasterInfo struct {
	Bands  int    `json:"bands"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	CRS    string `json:"crs"`
}

// StatisticsResponse represents the success response contract.
type StatisticsResponse struct {
	Status       string                    `json:"status"`
	Layer        string                    `json:"layer"`
	MinMax       map[string]BandStatistics `json:"min_max"`
	GeometryType string                    `json:"geometry_type"`
	ClipBounds   [4]float64                `json:"clip_bounds"` // minLon, minLat, maxLon, maxLat (WGS84)
	RasterInfo   RasterInfo                `json:"raster_info"`
	Method       string                    `json:"method,omitempty"`
}

// ErrorResponse represents the error response contract. Callers distinguish
// failure only by Status; Error is a human-readable message, not a code.
type ErrorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// LayersResponse lists the raster layers known to the catalog.
type LayersResponse struct {
	Status string   `json:"status"`
	Layers []string `json:"layers"`
}

// WGS84BoundingBox represents a lon/lat bounding box.
type WGS84BoundingBox struct {
	MinLon float64 `json:"min_lon"`
	MinLat float64 `json:"min_lat"`
	MaxLon float64 `json:"max_lon"`
	MaxLat float64 `json:"max_lat"`
}

/*
FileExists checks if a file already exists.
It returns true if the file exists, and false otherwise.
*/
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	// check if it's actually a file and not a directory
	return !info.IsDir()
}

/*
floatPtr returns a pointer to the given float value (for nullable JSON fields).
*/
func floatPtr(v float64) *float64 {
	return &v
}
