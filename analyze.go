package main

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// RasterSummary represents the per-file metadata of the batch analysis
// sweep.
type RasterSummary struct {
	File         string           `json:"file"`
	Width        int              `json:"width"`
	Height       int              `json:"height"`
	Bands        int              `json:"bands"`
	CRS          string           `json:"crs"`
	TotalPixels  int              `json:"total_pixels"`
	ValidPixels  int              `json:"valid_pixels"`
	PercentValid float64          `json:"percent_valid"`
	MinValue     *float64         `json:"min_value"`
	MaxValue     *float64         `json:"max_value"`
	Bounds       WGS84BoundingBox `json:"bounds_wgs84"`
	Coverage     string           `json:"coverage"` // sparse | dense
}

// analyzeBlockRows bounds the memory of one windowed read during a sweep.
const analyzeBlockRows = 512

/*
analyzeDirectory sweeps all GeoTIFF files below the given directory and
persists a machine-readable catalog file plus a human-readable master
report.
*/
func analyzeDirectory(directory string) error {
	paths := []string{}
	err := filepath.WalkDir(directory, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		extension := strings.ToLower(filepath.Ext(path))
		if extension == ".tif" || extension == ".tiff" {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("batch analysis: error [%w] at filepath.WalkDir(), directory %s", err, directory)
	}
	sort.Strings(paths)

	if len(paths) == 0 {
		return fmt.Errorf("batch analysis: no GeoTIFF files found below [%s]", directory)
	}

	summaries := []RasterSummary{}
	for _, path := range paths {
		summary, err := analyzeRasterFile(path)
		if err != nil {
			// one unreadable file must not abort the sweep over its siblings
			slog.Warn("batch analysis: skipping file", "file", path, "error", err)
			continue
		}
		summaries = append(summaries, summary)
		slog.Info("batch analysis: file analyzed", "file", filepath.Base(path),
			"valid pixels", summary.ValidPixels, "percent valid", summary.PercentValid, "coverage", summary.Coverage)
	}

	if len(summaries) == 0 {
		return fmt.Errorf("batch analysis: no readable GeoTIFF files below [%s]", directory)
	}

	catalogFile := progConfig.CatalogFile
	if catalogFile == "" {
		catalogFile = "raster-catalog.json"
	}
	data, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		return fmt.Errorf("batch analysis: error [%w] at json.MarshalIndent()", err)
	}
	err = os.WriteFile(catalogFile, data, 0o644)
	if err != nil {
		return fmt.Errorf("batch analysis: error [%w] at os.WriteFile(), file %s", err, catalogFile)
	}

	reportFile := strings.TrimSuffix(catalogFile, filepath.Ext(catalogFile)) + "-report.txt"
	err = writeMasterReport(reportFile, directory, summaries)
	if err != nil {
		return err
	}

	slog.Info("batch analysis finished", "files", len(summaries), "catalog", catalogFile, "report", reportFile)
	return nil
}

/*
analyzeRasterFile analyzes one raster file: dimensions, valid-pixel count and
percentage over band 1, value range, WGS84 bounds and the sparse/dense
coverage classification.
*/
func analyzeRasterFile(path string) (RasterSummary, error) {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	source, err := openRasterSource(RasterEntry{Name: name, Path: path})
	if err != nil {
		return RasterSummary{}, err
	}
	defer source.Close()

	bounds, err := calculateWGS84BoundingBox(source)
	if err != nil {
		return RasterSummary{}, err
	}

	band := source.dataset.Bands()[0]
	noData, hasNoData := band.NoData()

	validPixels := 0
	minValue := math.Inf(1)
	maxValue := math.Inf(-1)

	// row-block sweep keeps each read self-contained and bounded
	for rowStart := 0; rowStart < source.Height; rowStart += analyzeBlockRows {
		rows := min(analyzeBlockRows, source.Height-rowStart)
		buffer := make([]float64, source.Width*rows)
		err = band.Read(0, rowStart, buffer, source.Width, rows)
		if err != nil {
			return RasterSummary{}, fmt.Errorf("%w: error [%v] reading rows %d-%d of [%s]", ErrRasterRead, err, rowStart, rowStart+rows, path)
		}
		for _, value := range buffer {
			if math.IsNaN(value) || math.IsInf(value, 0) {
				continue
			}
			if hasNoData && value == noData {
				continue
			}
			if value < noDataFloor {
				continue
			}
			validPixels++
			minValue = math.Min(minValue, value)
			maxValue = math.Max(maxValue, value)
		}
	}

	totalPixels := source.Width * source.Height
	validFraction := 0.0
	if totalPixels > 0 {
		validFraction = float64(validPixels) / float64(totalPixels)
	}

	summary := RasterSummary{
		File:         path,
		Width:        source.Width,
		Height:       source.Height,
		Bands:        source.Bands,
		CRS:          source.CRS,
		TotalPixels:  totalPixels,
		ValidPixels:  validPixels,
		PercentValid: validFraction * 100.0,
		Bounds:       bounds,
		Coverage:     classifyCoverage(validFraction),
	}
	if validPixels > 0 {
		summary.MinValue = floatPtr(minValue)
		summary.MaxValue = floatPtr(maxValue)
	}

	return summary, nil
}

/*
writeMasterReport writes the human-readable master report of a batch
analysis sweep.
*/
func writeMasterReport(filename string, directory string, summaries []RasterSummary) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("batch analysis: error [%w] at os.Create(), file %s", err, filename)
	}
	defer file.Close()

	fmt.Fprintf(file, "Raster Analysis Master Report\n")
	fmt.Fprintf(file, "=============================\n\n")
	fmt.Fprintf(file, "Directory : %s\n", directory)
	fmt.Fprintf(file, "Files     : %d\n", len(summaries))
	fmt.Fprintf(file, "Generated : %s\n\n", time.Now().UTC().Format(time.RFC3339))

	for _, summary := range summaries {
		fmt.Fprintf(file, "File          : %s\n", filepath.Base(summary.File))
		fmt.Fprintf(file, "  Dimensions  : %d x %d (%d band(s), %s)\n", summary.Width, summary.Height, summary.Bands, summary.CRS)
		fmt.Fprintf(file, "  Valid pixels: %d of %d (%.2f %%)\n", summary.ValidPixels, summary.TotalPixels, summary.PercentValid)
		if summary.MinValue != nil && summary.MaxValue != nil {
			fmt.Fprintf(file, "  Value range : %.2f - %.2f\n", *summary.MinValue, *summary.MaxValue)
		} else {
			fmt.Fprintf(file, "  Value range : no valid data\n")
		}
		fmt.Fprintf(file, "  WGS84 bounds: %.6f, %.6f, %.6f, %.6f\n", summary.Bounds.MinLon, summary.Bounds.MinLat, summary.Bounds.MaxLon, summary.Bounds.MaxLat)
		fmt.Fprintf(file, "  Coverage    : %s\n\n", summary.Coverage)
	}

	return nil
}
