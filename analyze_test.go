package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestAnalyzeRasterFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.tif")
	// left half carries data, right half the sentinel floor breach
	createTestRaster(t, path, 100, 100, lonLatTransform, 4326, func(col, _ int) float64 {
		if col >= 50 {
			return -2e30
		}
		return float64(col)
	})

	summary, err := analyzeRasterFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if summary.Width != 100 || summary.Height != 100 || summary.Bands != 1 {
		t.Errorf("dimensions = %dx%d/%d bands", summary.Width, summary.Height, summary.Bands)
	}
	if summary.TotalPixels != 10000 {
		t.Errorf("total pixels = %d, want 10000", summary.TotalPixels)
	}
	if summary.ValidPixels != 5000 {
		t.Errorf("valid pixels = %d, want 5000", summary.ValidPixels)
	}
	if summary.PercentValid != 50.0 {
		t.Errorf("percent valid = %f, want 50", summary.PercentValid)
	}
	if summary.MinValue == nil || *summary.MinValue != 0 || summary.MaxValue == nil || *summary.MaxValue != 49 {
		t.Errorf("value range = %v - %v, want 0 - 49", summary.MinValue, summary.MaxValue)
	}
	if summary.Coverage != "dense" {
		t.Errorf("coverage = %q, want dense", summary.Coverage)
	}
	if summary.Bounds.MinLon > summary.Bounds.MaxLon || summary.Bounds.MinLat > summary.Bounds.MaxLat {
		t.Errorf("bounds = %+v", summary.Bounds)
	}
}

func TestAnalyzeRasterFileSparse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sparse.tif")
	// a single valid pixel out of 100
	createTestRaster(t, path, 10, 10, lonLatTransform, 4326, func(col, row int) float64 {
		if col == 0 && row == 0 {
			return 3
		}
		return -2e30
	})

	summary, err := analyzeRasterFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if summary.ValidPixels != 1 {
		t.Errorf("valid pixels = %d, want 1", summary.ValidPixels)
	}
	if summary.Coverage != "sparse" {
		t.Errorf("coverage = %q, want sparse", summary.Coverage)
	}
}

func TestAnalyzeDirectory(t *testing.T) {
	directory := t.TempDir()
	createTestRaster(t, filepath.Join(directory, "a.tif"), 10, 10, lonLatTransform, 4326, func(_, _ int) float64 { return 1 })
	createTestRaster(t, filepath.Join(directory, "b.tiff"), 10, 10, lonLatTransform, 4326, func(_, _ int) float64 { return 2 })
	// an unreadable file must be skipped, not abort the sweep
	err := os.WriteFile(filepath.Join(directory, "broken.tif"), []byte("not a tiff"), 0o644)
	if err != nil {
		t.Fatal(err)
	}

	catalogFile := filepath.Join(t.TempDir(), "raster-catalog.json")
	progConfig.CatalogFile = catalogFile
	defer func() { progConfig.CatalogFile = "" }()

	err = analyzeDirectory(directory)
	if err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(catalogFile)
	if err != nil {
		t.Fatal(err)
	}
	summaries := []RasterSummary{}
	err = json.Unmarshal(data, &summaries)
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 2 {
		t.Fatalf("summaries = %d, want 2", len(summaries))
	}

	reportFile := filepath.Join(filepath.Dir(catalogFile), "raster-catalog-report.txt")
	report, err := os.ReadFile(reportFile)
	if err != nil {
		t.Fatal(err)
	}
	if len(report) == 0 {
		t.Error("master report is empty")
	}
}

func TestAnalyzeDirectoryEmpty(t *testing.T) {
	err := analyzeDirectory(t.TempDir())
	if err == nil {
		t.Error("expected error for directory without GeoTIFF files")
	}
}
