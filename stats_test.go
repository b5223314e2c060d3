package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
)

func postStatistics(t *testing.T, body string) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()
	request := httptest.NewRequest(http.MethodPost, "/v1/statistics", strings.NewReader(body))
	recorder := httptest.NewRecorder()
	statisticsRequest(recorder, request)

	response := map[string]json.RawMessage{}
	err := json.Unmarshal(recorder.Body.Bytes(), &response)
	if err != nil {
		t.Fatalf("response is no JSON object: %v, body %s", err, recorder.Body.String())
	}
	return recorder, response
}

func responseStatus(t *testing.T, response map[string]json.RawMessage) string {
	t.Helper()
	var status string
	err := json.Unmarshal(response["status"], &status)
	if err != nil {
		t.Fatal(err)
	}
	return status
}

func TestStatisticsRequest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dtmAll_mosaic.tif")
	createTestRaster(t, path, 100, 100, lonLatTransform, 4326, func(_, row int) float64 {
		return float64(row)
	})
	Catalog = map[string]RasterEntry{
		"dtmall_mosaic": {Name: "dtmAll_mosaic", Path: path},
	}
	defer func() { Catalog = nil }()

	recorder, response := postStatistics(t, `{
		"layer_name": "dtmAll_mosaic",
		"geometry": {"type":"Polygon","coordinates":[[[0,0.9],[0.1,0.9],[0.1,1],[0,1],[0,0.9]]]}
	}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200, body %s", recorder.Code, recorder.Body.String())
	}
	if responseStatus(t, response) != "success" {
		t.Fatalf("status = %q, want success", responseStatus(t, response))
	}

	minMax := map[string]BandStatistics{}
	err := json.Unmarshal(response["min_max"], &minMax)
	if err != nil {
		t.Fatal(err)
	}
	statistics, exists := minMax["band_1"]
	if !exists {
		t.Fatal("band_1 missing in min_max")
	}
	if statistics.Count != 100 {
		t.Errorf("count = %d, want 100", statistics.Count)
	}
	if statistics.Min == nil || *statistics.Min != 0 || statistics.Max == nil || *statistics.Max != 9 {
		t.Errorf("min/max = %v/%v, want 0/9", statistics.Min, statistics.Max)
	}

	var geometryType string
	_ = json.Unmarshal(response["geometry_type"], &geometryType)
	if geometryType != "Polygon" {
		t.Errorf("geometry_type = %q, want Polygon", geometryType)
	}

	rasterInfo := RasterInfo{}
	err = json.Unmarshal(response["raster_info"], &rasterInfo)
	if err != nil {
		t.Fatal(err)
	}
	if rasterInfo.Bands != 1 || rasterInfo.Width != 100 || rasterInfo.Height != 100 || rasterInfo.CRS != "EPSG:4326" {
		t.Errorf("raster_info = %+v", rasterInfo)
	}

	var method string
	_ = json.Unmarshal(response["method"], &method)
	if method != "catalog" {
		t.Errorf("method = %q, want catalog", method)
	}
}

func TestStatisticsRequestExactShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dtmAll_mosaic.tif")
	createTestRaster(t, path, 100, 100, lonLatTransform, 4326, func(_, row int) float64 {
		return float64(row)
	})
	Catalog = map[string]RasterEntry{
		"dtmall_mosaic": {Name: "dtmAll_mosaic", Path: path},
	}
	defer func() { Catalog = nil }()

	// a triangle covering half its bounding box: the mask must follow the
	// posted shape, not the full 100x100 rectangle
	recorder, response := postStatistics(t, `{
		"layer_name": "dtmAll_mosaic",
		"geometry": {"type":"Polygon","coordinates":[[[0,1],[1,1],[0,0],[0,1]]]}
	}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200, body %s", recorder.Code, recorder.Body.String())
	}

	minMax := map[string]BandStatistics{}
	err := json.Unmarshal(response["min_max"], &minMax)
	if err != nil {
		t.Fatal(err)
	}
	count := minMax["band_1"].Count
	if count < 4800 || count > 5200 {
		t.Errorf("count = %d, want about 5000 (half the raster), not the full 10000", count)
	}

	// a posted multipolygon keeps its type tag in the echo
	recorder, response = postStatistics(t, `{
		"layer_name": "dtmAll_mosaic",
		"geometry": {"type":"MultiPolygon","coordinates":[
			[[[0,0],[0.1,0],[0.1,0.1],[0,0.1],[0,0]]],
			[[[0.5,0.5],[0.6,0.5],[0.6,0.6],[0.5,0.6],[0.5,0.5]]]]}
	}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200, body %s", recorder.Code, recorder.Body.String())
	}
	var geometryType string
	_ = json.Unmarshal(response["geometry_type"], &geometryType)
	if geometryType != "MultiPolygon" {
		t.Errorf("geometry_type = %q, want MultiPolygon", geometryType)
	}
}

func TestStatisticsRequestDirectFileMethod(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dtmAll_mosaic.tif")
	createTestRaster(t, path, 10, 10, lonLatTransform, 4326, func(_, _ int) float64 { return 7 })
	Catalog = map[string]RasterEntry{
		"dtmall_mosaic": {Name: "dtmAll_mosaic", Path: path},
	}
	defer func() { Catalog = nil }()

	recorder, response := postStatistics(t, `{
		"layer": "dtmAll_mosaic",
		"method": "direct_file",
		"geometry": {"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}
	}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200, body %s", recorder.Code, recorder.Body.String())
	}

	var method string
	_ = json.Unmarshal(response["method"], &method)
	if method != "direct file access" {
		t.Errorf("method = %q, want %q", method, "direct file access")
	}
}

func TestStatisticsRequestErrors(t *testing.T) {
	Catalog = map[string]RasterEntry{}
	defer func() { Catalog = nil }()

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"invalid JSON", `{`, http.StatusBadRequest},
		{"missing layer name", `{"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}}`, http.StatusBadRequest},
		{"unsupported method", `{"layer_name":"x","method":"geoserver","geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}}`, http.StatusBadRequest},
		{"no clip source", `{"layer_name":"x"}`, http.StatusBadRequest},
		{"two clip sources", `{"layer_name":"x","vector_layer":"a","region":{"district":"Pune"}}`, http.StatusBadRequest},
		{"unknown layer", `{"layer_name":"nothing_matches_this","geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}}`, http.StatusNotFound},
	}

	for _, test := range tests {
		recorder, response := postStatistics(t, test.body)
		if recorder.Code != test.wantCode {
			t.Errorf("%s: status code = %d, want %d", test.name, recorder.Code, test.wantCode)
		}
		if responseStatus(t, response) != "error" {
			t.Errorf("%s: status = %q, want error", test.name, responseStatus(t, response))
		}
		var message string
		_ = json.Unmarshal(response["error"], &message)
		if message == "" {
			t.Errorf("%s: error message is empty", test.name)
		}
	}
}

func TestLayersRequest(t *testing.T) {
	Catalog = map[string]RasterEntry{
		"b_layer": {Name: "b_layer", Path: "/data/b_layer.tif"},
		"a_layer": {Name: "a_layer", Path: "/data/a_layer.tif"},
	}
	defer func() { Catalog = nil }()

	request := httptest.NewRequest(http.MethodGet, "/v1/layers", nil)
	recorder := httptest.NewRecorder()
	layersRequest(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200", recorder.Code)
	}
	response := LayersResponse{}
	err := json.Unmarshal(recorder.Body.Bytes(), &response)
	if err != nil {
		t.Fatal(err)
	}
	if response.Status != "success" {
		t.Errorf("status = %q, want success", response.Status)
	}
	if len(response.Layers) != 2 || response.Layers[0] != "a_layer" || response.Layers[1] != "b_layer" {
		t.Errorf("layers = %v, want sorted [a_layer b_layer]", response.Layers)
	}
}

func TestClassifyCoverage(t *testing.T) {
	if classifyCoverage(0.0) != "sparse" {
		t.Error("0.0 must classify as sparse")
	}
	if classifyCoverage(0.0999) != "sparse" {
		t.Error("0.0999 must classify as sparse")
	}
	if classifyCoverage(0.10) != "dense" {
		t.Error("0.10 must classify as dense")
	}
	if classifyCoverage(1.0) != "dense" {
		t.Error("1.0 must classify as dense")
	}
}
