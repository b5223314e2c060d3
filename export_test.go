package main

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	geojson "github.com/paulmach/orb/geojson"
)

func TestExportRasterPoints(t *testing.T) {
	directory := t.TempDir()
	path := filepath.Join(directory, "small.tif")
	// 4 pixels of value, one NoData floor breach
	createTestRaster(t, path, 2, 2, lonLatTransform, 4326, func(col, row int) float64 {
		if col == 1 && row == 1 {
			return -2e30
		}
		return float64(10*row + col)
	})

	err := exportRasterPoints(path)
	if err != nil {
		t.Fatal(err)
	}

	// CSV: header plus the three valid pixels
	file, err := os.Open(filepath.Join(directory, "small_wgs84.csv"))
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 4 {
		t.Fatalf("csv records = %d, want 4 (header + 3 points)", len(records))
	}
	if records[0][0] != "lon" || records[0][1] != "lat" || records[0][2] != "z" {
		t.Errorf("csv header = %v", records[0])
	}
	// first pixel center: lon 0.005, lat 0.995, value 0
	if records[1][0] != "0.005000" || records[1][1] != "0.995000" || records[1][2] != "0.00" {
		t.Errorf("first record = %v", records[1])
	}

	// compact JSON: parallel coordinate arrays plus metadata
	data, err := os.ReadFile(filepath.Join(directory, "small_wgs84.json"))
	if err != nil {
		t.Fatal(err)
	}
	document := struct {
		Meta struct {
			File  string `json:"file"`
			CRS   string `json:"crs"`
			Count int    `json:"count"`
		} `json:"meta"`
		Lon []float64 `json:"lon"`
		Lat []float64 `json:"lat"`
		Z   []float64 `json:"z"`
	}{}
	err = json.Unmarshal(data, &document)
	if err != nil {
		t.Fatal(err)
	}
	if document.Meta.Count != 3 || document.Meta.CRS != "EPSG:4326" || document.Meta.File != "small.tif" {
		t.Errorf("meta = %+v", document.Meta)
	}
	if len(document.Lon) != 3 || len(document.Lat) != 3 || len(document.Z) != 3 {
		t.Errorf("array lengths = %d/%d/%d, want 3 each", len(document.Lon), len(document.Lat), len(document.Z))
	}

	// GeoJSON: one point feature per valid pixel
	data, err = os.ReadFile(filepath.Join(directory, "small_wgs84.geojson"))
	if err != nil {
		t.Fatal(err)
	}
	collection, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(collection.Features) != 3 {
		t.Fatalf("features = %d, want 3", len(collection.Features))
	}
	if collection.Features[0].Properties["z"] != 0.0 {
		t.Errorf("first feature z = %v, want 0", collection.Features[0].Properties["z"])
	}
}

func TestRoundTo(t *testing.T) {
	if roundTo(73.1234567, 6) != 73.123457 {
		t.Errorf("roundTo(73.1234567, 6) = %f", roundTo(73.1234567, 6))
	}
	if roundTo(18.9951, 2) != 19.0 {
		t.Errorf("roundTo(18.9951, 2) = %f", roundTo(18.9951, 2))
	}
	if roundTo(-0.0000004, 6) != 0 {
		t.Errorf("roundTo(-0.0000004, 6) = %f", roundTo(-0.0000004, 6))
	}
}
