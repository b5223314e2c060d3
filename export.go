package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/airbusgeo/godal"
	"github.com/paulmach/orb"
	geojson "github.com/paulmach/orb/geojson"
)

// exportPoint is one exported pixel in WGS84.
type exportPoint struct {
	Lon float64
	Lat float64
	Z   float64
}

/*
exportRasterPoints converts the first band of a raster into web-consumable
point data: CSV, compact JSON and a GeoJSON FeatureCollection, all in WGS84.
Coordinates are rounded to 6 decimals (about 1 m), values to 2;
NoData/sentinel pixels are skipped. Output files land next to the input
file.
*/
func exportRasterPoints(path string) error {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	source, err := openRasterSource(RasterEntry{Name: name, Path: path})
	if err != nil {
		return err
	}
	defer source.Close()

	points, err := collectExportPoints(source)
	if err != nil {
		return err
	}

	base := strings.TrimSuffix(path, filepath.Ext(path)) + "_wgs84"

	err = writeCSVExport(base+".csv", points)
	if err != nil {
		return err
	}
	err = writeJSONExport(base+".json", source, points)
	if err != nil {
		return err
	}
	err = writeGeoJSONExport(base+".geojson", points)
	if err != nil {
		return err
	}

	slog.Info("raster export finished", "file", path, "points", len(points),
		"csv", base+".csv", "json", base+".json", "geojson", base+".geojson")
	return nil
}

/*
collectExportPoints reads band 1 row by row, transforms pixel centers to
WGS84 and collects the valid pixels.
*/
func collectExportPoints(source *RasterSource) ([]exportPoint, error) {
	if source.srs == nil {
		return nil, fmt.Errorf("%w: raster [%s] declares no spatial reference system", ErrReprojection, source.Path)
	}

	targetSRS, err := godal.NewSpatialRefFromEPSG(4326)
	if err != nil {
		return nil, fmt.Errorf("%w: error [%v] at godal.NewSpatialRefFromEPSG(4326)", ErrReprojection, err)
	}
	defer targetSRS.Close()

	band := source.dataset.Bands()[0]
	noData, hasNoData := band.NoData()
	gt := source.geoTransform

	points := make([]exportPoint, 0, source.Width*source.Height)
	buffer := make([]float64, source.Width)
	xCoords := make([]float64, source.Width)
	yCoords := make([]float64, source.Width)

	for row := 0; row < source.Height; row++ {
		err = band.Read(0, row, buffer, source.Width, 1)
		if err != nil {
			return nil, fmt.Errorf("%w: error [%v] reading row %d of [%s]", ErrRasterRead, err, row, source.Path)
		}

		// pixel centers of this row
		for col := 0; col < source.Width; col++ {
			xCoords[col] = gt[0] + (float64(col)+0.5)*gt[1]
			yCoords[col] = gt[3] + (float64(row)+0.5)*gt[5]
		}
		err = transformPoints(source.srs, targetSRS, xCoords, yCoords)
		if err != nil {
			return nil, err
		}

		for col, value := range buffer {
			if math.IsNaN(value) || math.IsInf(value, 0) {
				continue
			}
			if hasNoData && value == noData {
				continue
			}
			if value < noDataFloor {
				continue
			}
			points = append(points, exportPoint{
				Lon: roundTo(xCoords[col], 6),
				Lat: roundTo(yCoords[col], 6),
				Z:   roundTo(value, 2),
			})
		}
	}

	return points, nil
}

/*
writeCSVExport writes the exported points as lon,lat,z CSV.
*/
func writeCSVExport(filename string, points []exportPoint) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("raster export: error [%w] at os.Create(), file %s", err, filename)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	err = writer.Write([]string{"lon", "lat", "z"})
	if err != nil {
		return fmt.Errorf("raster export: error [%w] at writer.Write()", err)
	}
	for _, point := range points {
		row := []string{
			strconv.FormatFloat(point.Lon, 'f', 6, 64),
			strconv.FormatFloat(point.Lat, 'f', 6, 64),
			strconv.FormatFloat(point.Z, 'f', 2, 64),
		}
		err = writer.Write(row)
		if err != nil {
			return fmt.Errorf("raster export: error [%w] at writer.Write()", err)
		}
	}

	err = writer.Error()
	if err != nil {
		return fmt.Errorf("raster export: error [%w] at writer.Error()", err)
	}
	return nil
}

/*
writeJSONExport writes the exported points as one compact JSON document with
a small metadata header and parallel coordinate arrays.
*/
func writeJSONExport(filename string, source *RasterSource, points []exportPoint) error {
	lon := make([]float64, len(points))
	lat := make([]float64, len(points))
	z := make([]float64, len(points))
	for i, point := range points {
		lon[i] = point.Lon
		lat[i] = point.Lat
		z[i] = point.Z
	}

	document := map[string]any{
		"meta": map[string]any{
			"file":  filepath.Base(source.Path),
			"crs":   "EPSG:4326",
			"dims":  []int{source.Width, source.Height},
			"count": len(points),
		},
		"lon": lon,
		"lat": lat,
		"z":   z,
	}

	data, err := json.Marshal(document)
	if err != nil {
		return fmt.Errorf("raster export: error [%w] at json.Marshal()", err)
	}
	err = os.WriteFile(filename, data, 0o644)
	if err != nil {
		return fmt.Errorf("raster export: error [%w] at os.WriteFile(), file %s", err, filename)
	}
	return nil
}

/*
writeGeoJSONExport writes the exported points as GeoJSON FeatureCollection
with the pixel value in the 'z' property.
*/
func writeGeoJSONExport(filename string, points []exportPoint) error {
	collection := geojson.NewFeatureCollection()
	for _, point := range points {
		feature := geojson.NewFeature(orb.Point{point.Lon, point.Lat})
		feature.Properties = geojson.Properties{"z": point.Z}
		collection.Append(feature)
	}

	data, err := collection.MarshalJSON()
	if err != nil {
		return fmt.Errorf("raster export: error [%w] at collection.MarshalJSON()", err)
	}
	err = os.WriteFile(filename, data, 0o644)
	if err != nil {
		return fmt.Errorf("raster export: error [%w] at os.WriteFile(), file %s", err, filename)
	}
	return nil
}

/*
roundTo rounds a value to the given number of decimal places.
*/
func roundTo(value float64, decimals int) float64 {
	factor := math.Pow(10, float64(decimals))
	return math.Round(value*factor) / factor
}
